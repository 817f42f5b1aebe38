package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openproof/signet/pkg/log"
	"github.com/openproof/signet/pkg/message"
	"github.com/openproof/signet/pkg/sign"
)

func newTestNode(t *testing.T) *RPCNode {
	t.Helper()

	keyBytes, err := hex.DecodeString(testNodeKeyHex)
	require.NoError(t, err)
	key, _ := btcec.PrivKeyFromBytes(keyBytes)

	store := NewRecordStore(setupTestDB(t))
	metrics := NewMetricsWithRegistry(prometheus.NewRegistry())
	return NewRPCNode(key, &chaincfg.MainNetParams, store, metrics, log.NewNoopLogger())
}

func newTestContext(method string, params any) *RPCContext {
	return &RPCContext{
		Context: context.Background(),
		Message: RPCMessage{
			Req: &RPCData{
				RequestID: 1,
				Method:    method,
				Params:    params,
				Timestamp: uint64(time.Now().UnixMilli()),
			},
		},
	}
}

func TestHandlePing(t *testing.T) {
	node := newTestNode(t)

	c := newTestContext(MethodPing, struct{}{})
	node.handlePing(c)

	require.NotNil(t, c.Message.Res)
	assert.Equal(t, methodPong, c.Message.Res.Method)
	assert.EqualValues(t, 1, c.Message.Res.RequestID)
}

func TestHandleGetAddress(t *testing.T) {
	node := newTestNode(t)

	c := newTestContext(MethodGetAddress, struct{}{})
	node.handleGetAddress(c)

	require.NotNil(t, c.Message.Res)
	require.Equal(t, MethodGetAddress, c.Message.Res.Method)

	result, ok := c.Message.Res.Params.(AddressResult)
	require.True(t, ok)
	assert.Equal(t, node.Address(), result.Address)
	assert.Equal(t, chaincfg.MainNetParams.Name, result.Network)
	assert.NotEmpty(t, result.Address)
}

func TestHandleSignMessage(t *testing.T) {
	node := newTestNode(t)

	c := newTestContext(MethodSignMessage, SignParams{Message: "hello, world"})
	node.handleSignMessage(c)

	require.NotNil(t, c.Message.Res)
	require.Equal(t, MethodSignMessage, c.Message.Res.Method)

	result, ok := c.Message.Res.Params.(SignResult)
	require.True(t, ok)
	assert.Equal(t, node.Address(), result.Address)
	assert.Equal(t, "hello, world", result.Message)

	// The produced signature must verify against the node's own address.
	msg := message.NewForNet("hello, world", &chaincfg.MainNetParams)
	valid, err := msg.VerifyString(result.Address, result.Signature)
	require.NoError(t, err)
	assert.True(t, valid)
}

func TestHandleSignMessageEmptyText(t *testing.T) {
	node := newTestNode(t)

	c := newTestContext(MethodSignMessage, SignParams{})
	node.handleSignMessage(c)

	require.NotNil(t, c.Message.Res)
	require.Equal(t, MethodSignMessage, c.Message.Res.Method)

	result := c.Message.Res.Params.(SignResult)
	msg := message.NewForNet("", &chaincfg.MainNetParams)
	valid, err := msg.VerifyString(result.Address, result.Signature)
	require.NoError(t, err)
	assert.True(t, valid)
}

func TestHandleVerifyMessage(t *testing.T) {
	node := newTestNode(t)

	signCtx := newTestContext(MethodSignMessage, SignParams{Message: "audit me"})
	node.handleSignMessage(signCtx)
	signed := signCtx.Message.Res.Params.(SignResult)

	t.Run("valid signature", func(t *testing.T) {
		c := newTestContext(MethodVerifyMessage, VerifyParams{
			Address:   signed.Address,
			Message:   signed.Message,
			Signature: signed.Signature,
		})
		node.handleVerifyMessage(c)

		require.Equal(t, MethodVerifyMessage, c.Message.Res.Method)
		result := c.Message.Res.Params.(VerifyResult)
		assert.True(t, result.Valid)
		assert.Empty(t, result.Reason)
	})

	t.Run("different message fails", func(t *testing.T) {
		c := newTestContext(MethodVerifyMessage, VerifyParams{
			Address:   signed.Address,
			Message:   "some other text",
			Signature: signed.Signature,
		})
		node.handleVerifyMessage(c)

		require.Equal(t, MethodVerifyMessage, c.Message.Res.Method)
		result := c.Message.Res.Params.(VerifyResult)
		assert.False(t, result.Valid)
		assert.NotEmpty(t, result.Reason)
	})

	t.Run("malformed address yields error response", func(t *testing.T) {
		c := newTestContext(MethodVerifyMessage, VerifyParams{
			Address:   "not-an-address",
			Message:   signed.Message,
			Signature: signed.Signature,
		})
		node.handleVerifyMessage(c)

		assert.Equal(t, methodError, c.Message.Res.Method)
	})

	t.Run("missing signature rejected by validation", func(t *testing.T) {
		c := newTestContext(MethodVerifyMessage, VerifyParams{
			Address: signed.Address,
			Message: signed.Message,
		})
		node.handleVerifyMessage(c)

		assert.Equal(t, methodError, c.Message.Res.Method)
	})

	t.Run("verifications are recorded", func(t *testing.T) {
		records, err := node.store.Recent(10)
		require.NoError(t, err)
		require.NotEmpty(t, records)

		assert.Equal(t, signed.Address, records[0].Address)
		assert.NotEmpty(t, records[0].MessageDigest)
	})
}

func TestHandleGetHistory(t *testing.T) {
	node := newTestNode(t)

	signCtx := newTestContext(MethodSignMessage, SignParams{Message: "history entry"})
	node.handleSignMessage(signCtx)
	signed := signCtx.Message.Res.Params.(SignResult)

	verifyCtx := newTestContext(MethodVerifyMessage, VerifyParams{
		Address:   signed.Address,
		Message:   signed.Message,
		Signature: signed.Signature,
	})
	node.handleVerifyMessage(verifyCtx)

	c := newTestContext(MethodGetHistory, HistoryParams{Limit: 10})
	node.handleGetHistory(c)

	require.Equal(t, MethodGetHistory, c.Message.Res.Method)
	result := c.Message.Res.Params.(HistoryResult)
	require.Len(t, result.Entries, 1)
	assert.Equal(t, signed.Address, result.Entries[0].Address)
	assert.True(t, result.Entries[0].Valid)
}

func TestHandleConnectionMalformedFrame(t *testing.T) {
	node := newTestNode(t)

	srv := httptest.NewServer(http.HandlerFunc(node.HandleConnection))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	// A literal null request combined with a bad sig field leaves Req nil
	// on the decode-error path; the node must answer, not crash.
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"req":null,"sig":0}`)))

	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	parsed, err := ParseRPCMessage(raw)
	require.NoError(t, err)
	require.NotNil(t, parsed.Res)
	assert.Equal(t, methodError, parsed.Res.Method)

	// The connection keeps serving after the bad frame.
	ping, err := json.Marshal(RPCMessage{Req: &RPCData{
		RequestID: 2,
		Method:    MethodPing,
		Params:    struct{}{},
		Timestamp: uint64(time.Now().UnixMilli()),
	}})
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, ping))

	_, raw, err = conn.ReadMessage()
	require.NoError(t, err)
	parsed, err = ParseRPCMessage(raw)
	require.NoError(t, err)
	require.NotNil(t, parsed.Res)
	assert.Equal(t, methodPong, parsed.Res.Method)
	assert.EqualValues(t, 2, parsed.Res.RequestID)
}

func TestPrepareRawRPCResponse(t *testing.T) {
	node := newTestNode(t)

	data := &RPCData{
		RequestID: 5,
		Method:    methodPong,
		Params:    struct{}{},
		Timestamp: uint64(time.Now().UnixMilli()),
	}

	raw, err := prepareRawRPCResponse(node.signer, data)
	require.NoError(t, err)

	var parsed RPCMessage
	require.NoError(t, json.Unmarshal(raw, &parsed))
	require.NotNil(t, parsed.Res)
	require.Len(t, parsed.Sig, 1)

	// The signature covers the double SHA-256 of the response payload and
	// must recover to the node's own address.
	hash := chainhash.DoubleHashB(parsed.Res.rawBytes)
	pub, err := sign.RecoverBitcoinPublicKey(hash, parsed.Sig[0], &chaincfg.MainNetParams)
	require.NoError(t, err)
	assert.Equal(t, node.Address(), pub.Address().String())
	assert.True(t, sign.VerifyBitcoinHashSignature(hash, parsed.Sig[0], pub))

	_, err = prepareRawRPCResponse(node.signer, nil)
	assert.Error(t, err)
}

func TestFailResponses(t *testing.T) {
	c := newTestContext(MethodVerifyMessage, struct{}{})

	t.Run("rpc error is exposed", func(t *testing.T) {
		c.Fail(RPCErrorf("invalid parameters: missing address"), "fallback")
		result := c.Message.Res.Params.(ErrorResponse)
		assert.Equal(t, "invalid parameters: missing address", result.Error)
	})

	t.Run("internal error is hidden behind fallback", func(t *testing.T) {
		c.Fail(assert.AnError, "failed to process")
		result := c.Message.Res.Params.(ErrorResponse)
		assert.Equal(t, "failed to process", result.Error)
	})

	t.Run("generic message when nothing is provided", func(t *testing.T) {
		c.Fail(nil, "")
		result := c.Message.Res.Params.(ErrorResponse)
		assert.Equal(t, defaultRPCErrorMessage, result.Error)
	})
}
