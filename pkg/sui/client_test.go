package sui

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/blake2b"
)

type rpcRequest struct {
	ID     json.RawMessage   `json:"id"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

// fakeNode answers JSON-RPC calls from a per-method handler table and records
// the params it saw.
type fakeNode struct {
	mu       sync.Mutex
	handlers map[string]func(params []json.RawMessage) (any, *rpcError)
	seen     map[string][][]json.RawMessage
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func newFakeNode(t *testing.T) (*fakeNode, *httptest.Server) {
	t.Helper()
	n := &fakeNode{
		handlers: map[string]func([]json.RawMessage) (any, *rpcError){},
		seen:     map[string][][]json.RawMessage{},
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		n.mu.Lock()
		n.seen[req.Method] = append(n.seen[req.Method], req.Params)
		h := n.handlers[req.Method]
		n.mu.Unlock()

		resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
		if h == nil {
			resp["error"] = rpcError{Code: -32601, Message: "method not found"}
		} else if result, rerr := h(req.Params); rerr != nil {
			resp["error"] = rerr
		} else {
			resp["result"] = result
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return n, srv
}

func (n *fakeNode) on(method string, h func([]json.RawMessage) (any, *rpcError)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.handlers[method] = h
}

func (n *fakeNode) params(method string) [][]json.RawMessage {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.seen[method]
}

func testSigner(t *testing.T) *KeypairSigner {
	t.Helper()
	seed := make([]byte, ed25519.SeedSize)
	for i := range seed {
		seed[i] = byte(i)
	}
	return NewKeypairSigner(ed25519.NewKeyFromSeed(seed))
}

func newTestClient(t *testing.T, url string, opts ...Option) *Client {
	t.Helper()
	c, err := New(context.Background(), &Config{
		RPCURL:            url,
		PackageID:         "0xpkg",
		GlobalPurgatoryID: "0xglobal",
		RequestTimeout:    2 * time.Second,
	}, opts...)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func TestQueryEvents(t *testing.T) {
	node, srv := newFakeNode(t)
	node.on(methodQueryEvents, func([]json.RawMessage) (any, *rpcError) {
		return map[string]any{
			"data": []map[string]any{{
				"id":         map[string]string{"txDigest": "D1", "eventSeq": "0"},
				"type":       "0xpkg::core::ItemThrown",
				"sender":     "0xalice",
				"parsedJson": map[string]any{"item_id": "0x1"},
			}},
			"nextCursor":  map[string]string{"txDigest": "D1", "eventSeq": "0"},
			"hasNextPage": false,
		}, nil
	})

	c := newTestClient(t, srv.URL)
	page, err := c.QueryEvents(context.Background(), c.ModuleFilter(), &EventID{TxDigest: "D0", EventSeq: "4"}, 50)
	require.NoError(t, err)
	require.Len(t, page.Data, 1)
	assert.Equal(t, "ItemThrown", page.Data[0].Name())
	assert.Equal(t, "D1", page.NextCursor.TxDigest)
	assert.False(t, page.HasNextPage)

	params := node.params(methodQueryEvents)
	require.Len(t, params, 1)
	assert.JSONEq(t, `{"MoveEventModule":{"package":"0xpkg","module":"core"}}`, string(params[0][0]))
	assert.JSONEq(t, `{"txDigest":"D0","eventSeq":"4"}`, string(params[0][1]))
	assert.JSONEq(t, `50`, string(params[0][2]))
	assert.JSONEq(t, `false`, string(params[0][3]))
}

func TestQueryEvents_NilCursorAndRPCError(t *testing.T) {
	node, srv := newFakeNode(t)
	node.on(methodQueryEvents, func(params []json.RawMessage) (any, *rpcError) {
		if string(params[1]) != "null" {
			return nil, &rpcError{Code: -32602, Message: "expected null cursor"}
		}
		return nil, &rpcError{Code: -32000, Message: "node overloaded"}
	})

	c := newTestClient(t, srv.URL)
	_, err := c.QueryEvents(context.Background(), c.ModuleFilter(), nil, 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "node overloaded")
}

func TestSubmitTransaction_Success(t *testing.T) {
	node, srv := newFakeNode(t)
	txBytes := []byte("pretend-bcs-transaction")
	node.on(methodBatchTransaction, func([]json.RawMessage) (any, *rpcError) {
		return map[string]any{"txBytes": base64.StdEncoding.EncodeToString(txBytes)}, nil
	})
	node.on(methodExecuteTx, func([]json.RawMessage) (any, *rpcError) {
		return map[string]any{
			"digest": "DIGEST",
			"effects": map[string]any{
				"status": map[string]string{"status": "success"},
				"gasUsed": map[string]string{
					"computationCost": "1000",
					"storageCost":     "5000",
					"storageRebate":   "1500",
				},
			},
		}, nil
	})

	signer := testSigner(t)
	c := newTestClient(t, srv.URL, WithSigner(signer))
	res, err := c.SubmitTransaction(context.Background(), TxBody{Calls: []MoveCall{
		c.PurgeCall("0xitem1", "0x2::nft::Ape"),
		c.PurgeCall("0xitem2", "0x2::nft::Ape"),
	}}, 100_000_000)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "DIGEST", res.Digest)
	assert.Equal(t, int64(4500), res.GasUsed)

	built := node.params(methodBatchTransaction)
	require.Len(t, built, 1)
	assert.JSONEq(t, `"`+signer.Address()+`"`, string(built[0][0]))
	assert.JSONEq(t, `[
		{"moveCallRequestParams":{"packageObjectId":"0xpkg","module":"core","function":"purge","typeArguments":["0x2::nft::Ape"],"arguments":["0xglobal","0xitem1","0x6"]}},
		{"moveCallRequestParams":{"packageObjectId":"0xpkg","module":"core","function":"purge","typeArguments":["0x2::nft::Ape"],"arguments":["0xglobal","0xitem2","0x6"]}}
	]`, string(built[0][1]))
	assert.JSONEq(t, `"100000000"`, string(built[0][3]))

	exec := node.params(methodExecuteTx)
	require.Len(t, exec, 1)
	assert.JSONEq(t, `"WaitForLocalExecution"`, string(exec[0][3]))

	var sigs []string
	require.NoError(t, json.Unmarshal(exec[0][1], &sigs))
	require.Len(t, sigs, 1)
	raw, err := base64.StdEncoding.DecodeString(sigs[0])
	require.NoError(t, err)
	require.Len(t, raw, 1+ed25519.SignatureSize+ed25519.PublicKeySize)
	assert.Equal(t, Ed25519, raw[0])
	digest := blake2b.Sum256(append([]byte{0, 0, 0}, txBytes...))
	pub := ed25519.PublicKey(raw[1+ed25519.SignatureSize:])
	assert.True(t, ed25519.Verify(pub, digest[:], raw[1:1+ed25519.SignatureSize]))
}

func TestSubmitTransaction_FailedEffects(t *testing.T) {
	node, srv := newFakeNode(t)
	node.on(methodBatchTransaction, func([]json.RawMessage) (any, *rpcError) {
		return map[string]any{"txBytes": base64.StdEncoding.EncodeToString([]byte("tx"))}, nil
	})
	node.on(methodExecuteTx, func([]json.RawMessage) (any, *rpcError) {
		return map[string]any{
			"digest": "DIGEST",
			"effects": map[string]any{
				"status":  map[string]string{"status": "failure", "error": "MoveAbort(2)"},
				"gasUsed": map[string]string{"computationCost": "1", "storageCost": "0", "storageRebate": "0"},
			},
		}, nil
	})

	c := newTestClient(t, srv.URL, WithSigner(testSigner(t)))
	res, err := c.SubmitTransaction(context.Background(), TxBody{Calls: []MoveCall{c.PurgeCall("0x1", "T")}}, 1)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "MoveAbort(2)", res.Error)
}

func TestSubmitTransaction_NoSigner(t *testing.T) {
	_, srv := newFakeNode(t)
	c := newTestClient(t, srv.URL)
	_, err := c.SubmitTransaction(context.Background(), TxBody{Calls: []MoveCall{c.PurgeCall("0x1", "T")}}, 1)
	assert.True(t, errors.Is(err, ErrNoSigner))
}

func TestCall_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c, err := New(context.Background(), &Config{RPCURL: srv.URL, PackageID: "0xpkg", RequestTimeout: 50 * time.Millisecond})
	require.NoError(t, err)
	defer c.Close()

	start := time.Now()
	_, err = c.QueryEvents(context.Background(), c.ModuleFilter(), nil, 1)
	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}

func TestGetBalance(t *testing.T) {
	node, srv := newFakeNode(t)
	node.on(methodGetBalance, func(params []json.RawMessage) (any, *rpcError) {
		return map[string]any{"coinType": SuiCoinType, "coinObjectCount": 3, "totalBalance": "2500000000"}, nil
	})

	c := newTestClient(t, srv.URL)
	bal, err := c.GetBalance(context.Background(), "0xreaper")
	require.NoError(t, err)
	assert.Equal(t, "2500000000", bal.Mist.String())
	assert.Equal(t, "2.5", bal.Sui().String())

	params := node.params(methodGetBalance)
	require.Len(t, params, 1)
	assert.JSONEq(t, `"0x2::sui::SUI"`, string(params[0][1]))
}

func TestEventName(t *testing.T) {
	cases := map[string]string{
		"0xpkg::core::ItemThrown":                         "ItemThrown",
		"0xpkg::core::ItemPurged<0x2::nft::Ape>":          "ItemPurged",
		"0xpkg::core::ItemRestored<0x2::a::B<0x3::c::D>>": "ItemRestored",
		"Bare": "Bare",
	}
	for typ, want := range cases {
		e := Event{Type: typ}
		assert.Equal(t, want, e.Name(), typ)
	}
}
