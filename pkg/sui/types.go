package sui

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// MistPerSui is the number of MIST in one SUI.
const MistPerSui = 1_000_000_000

// SuiCoinType is the type tag of the native coin.
const SuiCoinType = "0x2::sui::SUI"

// EventID is the ledger position of one event.
type EventID struct {
	TxDigest string `json:"txDigest"`
	EventSeq string `json:"eventSeq"`
}

// Event is a Move event as returned by suix_queryEvents.
type Event struct {
	ID          EventID         `json:"id"`
	PackageID   string          `json:"packageId"`
	Module      string          `json:"transactionModule"`
	Sender      string          `json:"sender"`
	Type        string          `json:"type"`
	ParsedJSON  json.RawMessage `json:"parsedJson"`
	TimestampMs string          `json:"timestampMs,omitempty"`
}

// Name returns the bare struct name of the event type, dropping the
// package, module and any type arguments.
func (e *Event) Name() string {
	t := e.Type
	if i := strings.IndexByte(t, '<'); i >= 0 {
		t = t[:i]
	}
	if i := strings.LastIndex(t, "::"); i >= 0 {
		t = t[i+2:]
	}
	return t
}

// EventPage is one page of events in ledger order.
type EventPage struct {
	Data        []Event  `json:"data"`
	NextCursor  *EventID `json:"nextCursor"`
	HasNextPage bool     `json:"hasNextPage"`
}

// ModuleFilter selects every event emitted by one module of a package.
type ModuleFilter struct {
	Package string `json:"package"`
	Module  string `json:"module"`
}

// MoveCall is one entry function invocation inside a transaction.
type MoveCall struct {
	Package       string
	Module        string
	Function      string
	TypeArguments []string
	Arguments     []any
}

// TxBody is an ordered list of move calls submitted as one transaction.
type TxBody struct {
	Calls []MoveCall
}

// TxResult is the confirmed outcome of a submitted transaction.
type TxResult struct {
	Success bool
	Digest  string
	GasUsed int64
	Error   string
}

// Balance is the total balance of one coin type owned by an address.
type Balance struct {
	Owner    string
	CoinType string
	Mist     decimal.Decimal
}

// Sui converts the MIST balance to SUI.
func (b Balance) Sui() decimal.Decimal {
	return b.Mist.Shift(-9)
}

type eventFilterParam struct {
	MoveEventModule ModuleFilter `json:"MoveEventModule"`
}

type moveCallRequestParams struct {
	PackageObjectID string   `json:"packageObjectId"`
	Module          string   `json:"module"`
	Function        string   `json:"function"`
	TypeArguments   []string `json:"typeArguments"`
	Arguments       []any    `json:"arguments"`
}

type batchRequest struct {
	MoveCallRequestParams moveCallRequestParams `json:"moveCallRequestParams"`
}

type txBytesResponse struct {
	TxBytes string `json:"txBytes"`
}

type executeOptions struct {
	ShowEffects bool `json:"showEffects"`
}

type gasCostSummary struct {
	ComputationCost string `json:"computationCost"`
	StorageCost     string `json:"storageCost"`
	StorageRebate   string `json:"storageRebate"`
}

type executionStatus struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type txEffects struct {
	Status  executionStatus `json:"status"`
	GasUsed gasCostSummary  `json:"gasUsed"`
}

type executeResponse struct {
	Digest  string     `json:"digest"`
	Effects *txEffects `json:"effects"`
}

type balanceResponse struct {
	CoinType        string `json:"coinType"`
	CoinObjectCount int64  `json:"coinObjectCount"`
	TotalBalance    string `json:"totalBalance"`
}
