// Package sui is a minimal JSON-RPC client for the Sui ledger: event queries,
// move call submission and balance lookups.
package sui

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	methodQueryEvents      = "suix_queryEvents"
	methodBatchTransaction = "unsafe_batchTransaction"
	methodExecuteTx        = "sui_executeTransactionBlock"
	methodGetBalance       = "suix_getBalance"

	waitForLocalExecution = "WaitForLocalExecution"
	effectsSuccess        = "success"
)

// Client talks to a Sui full node over JSON-RPC.
type Client struct {
	cfg    Config
	logger *zap.Logger
	rpc    *rpc.Client
	signer Signer
}

// New dials the configured endpoint. Dialing HTTP endpoints does not perform
// any request.
func New(ctx context.Context, cfg *Config, opts ...Option) (*Client, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid sui config: %w", err)
	}
	s := applyOptions(opts)

	rc, err := rpc.DialOptions(ctx, cfg.RPCURL, rpc.WithHTTPClient(s.httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to dial sui rpc: %w", err)
	}

	c := &Client{
		cfg:    cfg.withDefaults(),
		logger: s.logger,
		rpc:    rc,
		signer: s.signer,
	}

	fields := []zap.Field{
		zap.String("rpc_url", cfg.RPCURL),
		zap.String("package_id", cfg.PackageID),
	}
	if c.signer != nil {
		fields = append(fields, zap.String("signer", c.signer.Address()))
	}
	s.logger.Info("Sui client configured", fields...)

	return c, nil
}

// Close releases the underlying connection.
func (c *Client) Close() { c.rpc.Close() }

// Address returns the signer's address, or "" without a signer.
func (c *Client) Address() string {
	if c.signer == nil {
		return ""
	}
	return c.signer.Address()
}

// ModuleFilter returns the filter for the configured custody module.
func (c *Client) ModuleFilter() ModuleFilter {
	return ModuleFilter{Package: c.cfg.PackageID, Module: c.cfg.Module}
}

func (c *Client) call(ctx context.Context, result any, method string, args ...any) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	if err := c.rpc.CallContext(ctx, result, method, args...); err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	return nil
}

// QueryEvents returns up to limit events of filter strictly after cursor, in
// ascending ledger order. A nil cursor starts from the first event.
func (c *Client) QueryEvents(ctx context.Context, filter ModuleFilter, cursor *EventID, limit int) (*EventPage, error) {
	var page EventPage
	if err := c.call(ctx, &page, methodQueryEvents, eventFilterParam{MoveEventModule: filter}, cursor, limit, false); err != nil {
		return nil, err
	}
	return &page, nil
}

// PurgeCall builds the reclamation call for one held item.
func (c *Client) PurgeCall(itemID, itemType string) MoveCall {
	return MoveCall{
		Package:       c.cfg.PackageID,
		Module:        c.cfg.Module,
		Function:      "purge",
		TypeArguments: []string{itemType},
		Arguments:     []any{c.cfg.GlobalPurgatoryID, itemID, c.cfg.ClockObjectID},
	}
}

// SubmitTransaction builds, signs and executes tx, waiting for local
// execution. A transaction that executed with failed effects is returned as a
// TxResult with Success false and no error; errors are reserved for
// transport, build and signing failures.
func (c *Client) SubmitTransaction(ctx context.Context, tx TxBody, gasBudget uint64) (*TxResult, error) {
	if c.signer == nil {
		return nil, ErrNoSigner
	}
	if len(tx.Calls) == 0 {
		return nil, errors.New("empty transaction")
	}

	requests := make([]batchRequest, len(tx.Calls))
	for i, call := range tx.Calls {
		typeArgs := call.TypeArguments
		if typeArgs == nil {
			typeArgs = []string{}
		}
		requests[i] = batchRequest{MoveCallRequestParams: moveCallRequestParams{
			PackageObjectID: call.Package,
			Module:          call.Module,
			Function:        call.Function,
			TypeArguments:   typeArgs,
			Arguments:       call.Arguments,
		}}
	}

	var built txBytesResponse
	budget := strconv.FormatUint(gasBudget, 10)
	if err := c.call(ctx, &built, methodBatchTransaction, c.signer.Address(), requests, nil, budget, nil); err != nil {
		return nil, err
	}

	txBytes, err := base64.StdEncoding.DecodeString(built.TxBytes)
	if err != nil {
		return nil, fmt.Errorf("decode tx bytes: %w", err)
	}
	sig, err := c.signer.SignTransaction(txBytes)
	if err != nil {
		return nil, fmt.Errorf("sign transaction: %w", err)
	}

	var executed executeResponse
	err = c.call(ctx, &executed, methodExecuteTx,
		built.TxBytes, []string{sig}, executeOptions{ShowEffects: true}, waitForLocalExecution)
	if err != nil {
		return nil, err
	}

	res := &TxResult{Digest: executed.Digest}
	if executed.Effects == nil {
		res.Error = "no effects returned"
		return res, nil
	}
	if executed.Effects.Status.Status != effectsSuccess {
		res.Error = executed.Effects.Status.Error
		if res.Error == "" {
			res.Error = executed.Effects.Status.Status
		}
		return res, nil
	}

	gas, err := gasUsed(executed.Effects.GasUsed)
	if err != nil {
		c.logger.Warn("Unparseable gas summary", zap.String("digest", executed.Digest), zap.Error(err))
	}
	res.Success = true
	res.GasUsed = gas
	return res, nil
}

// gasUsed is computation + storage - rebate.
func gasUsed(g gasCostSummary) (int64, error) {
	var total int64
	for i, v := range []string{g.ComputationCost, g.StorageCost, g.StorageRebate} {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("parse gas %q: %w", v, err)
		}
		if i == 2 {
			n = -n
		}
		total += n
	}
	return total, nil
}

// GetBalance returns the SUI balance of owner.
func (c *Client) GetBalance(ctx context.Context, owner string) (*Balance, error) {
	var resp balanceResponse
	if err := c.call(ctx, &resp, methodGetBalance, owner, SuiCoinType); err != nil {
		return nil, err
	}
	mist, err := decimal.NewFromString(resp.TotalBalance)
	if err != nil {
		return nil, fmt.Errorf("parse balance %q: %w", resp.TotalBalance, err)
	}
	return &Balance{Owner: owner, CoinType: resp.CoinType, Mist: mist}, nil
}
