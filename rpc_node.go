package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/openproof/signet/pkg/log"
	"github.com/openproof/signet/pkg/message"
	"github.com/openproof/signet/pkg/sign"
)

const (
	defaultRPCErrorMessage = "an error occurred while processing the request"
)

// ErrorResponse is the payload of an "error" response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// RPCNode is a WebSocket-based RPC server. It routes incoming messages to
// the registered method handlers and signs every response with the node key.
type RPCNode struct {
	// upgrader handles the HTTP to WebSocket protocol upgrade
	upgrader websocket.Upgrader

	// handlers maps RPC method names to their handlers
	handlers map[string]RPCHandler

	// signer signs all outgoing messages
	signer *sign.BitcoinSigner
	// signingKey is the raw node key used for message_sign requests
	signingKey *btcec.PrivateKey
	// params selects the address network for signing and verification
	params *chaincfg.Params

	store    *RecordStore
	metrics  *Metrics
	validate *validator.Validate
	logger   log.Logger
}

// NewRPCNode creates an RPC node serving the signet methods.
// The node key signs both outgoing responses and message_sign requests.
func NewRPCNode(key *btcec.PrivateKey, params *chaincfg.Params, store *RecordStore, metrics *Metrics, logger log.Logger) *RPCNode {
	n := &RPCNode{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins for simplicity
			},
		},

		handlers: make(map[string]RPCHandler),

		signer:     sign.NewBitcoinSignerFromKey(key, params),
		signingKey: key,
		params:     params,

		store:    store,
		metrics:  metrics,
		validate: validator.New(),
		logger:   logger.WithName("rpc-node"),
	}

	n.Handle(MethodPing, n.handlePing)
	n.Handle(MethodGetAddress, n.handleGetAddress)
	n.Handle(MethodSignMessage, n.handleSignMessage)
	n.Handle(MethodVerifyMessage, n.handleVerifyMessage)
	n.Handle(MethodGetHistory, n.handleGetHistory)

	return n
}

// Handle registers a handler for the specified RPC method.
func (n *RPCNode) Handle(method string, handler RPCHandler) {
	if method == "" {
		panic("Websocket method cannot be empty")
	}
	if handler == nil {
		panic(fmt.Sprintf("Websocket handler cannot be nil for method %s", method))
	}

	n.handlers[method] = handler
}

// Address returns the node's signing address on the configured network.
func (n *RPCNode) Address() string {
	return n.signer.PublicKey().Address().String()
}

// HandleConnection is the main entry point for WebSocket connections.
// It upgrades the HTTP connection to WebSocket, manages concurrent read/write
// operations, and processes incoming RPC messages.
// This method blocks until the connection is closed.
func (n *RPCNode) HandleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := n.upgrader.Upgrade(w, r, nil)
	if err != nil {
		n.logger.Error("failed to upgrade connection to WebSocket", "error", err)
		return
	}
	defer conn.Close()

	connectionID := uuid.NewString()
	rpcConnection := NewRPCConnection(connectionID, conn, n.logger, n.metrics.MessageSent.Inc)

	n.metrics.ConnectionsTotal.Inc()
	n.metrics.ConnectedClients.Inc()
	defer func() {
		n.metrics.ConnectedClients.Dec()
		n.logger.Info("connection closed", "connectionID", connectionID)
	}()

	parentCtx, cancel := context.WithCancel(r.Context())
	wg := &sync.WaitGroup{}
	wg.Add(2)
	abortOthers := func() {
		cancel()  // Trigger exit on other goroutines
		wg.Done() // Decrement the wait group counter
	}

	go rpcConnection.Serve(parentCtx, abortOthers)
	go n.processMessages(rpcConnection, parentCtx, abortOthers)

	wg.Wait()
}

// processMessages handles incoming messages from the RPCConnection.
// It validates messages and routes them to the registered handlers.
func (n *RPCNode) processMessages(rpcConn *RPCConnection, ctx context.Context, abortOthers context.CancelFunc) {
	defer abortOthers() // Stop other goroutines when done

	for {
		var messageBytes []byte
		select {
		case <-ctx.Done():
			n.logger.Debug("context done, stopping message processing")
			return
		case messageBytes = <-rpcConn.ProcessSink():
			if len(messageBytes) == 0 {
				return // Exit if the message is empty (connection closed)
			}
		}
		n.metrics.MessageReceived.Inc()

		msg := RPCMessage{Req: &RPCData{}}
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			// A literal "req": null leaves msg.Req nil even when the
			// decode error came from a later field.
			var requestID uint64
			if msg.Req != nil {
				requestID = msg.Req.RequestID
			}
			n.logger.Debug("invalid message format", "error", err, "message", string(messageBytes))
			n.sendErrorResponse(rpcConn, requestID, "invalid message format")
			continue
		}

		if err := n.validate.Struct(&msg); err != nil {
			n.logger.Debug("message validation failed", "error", err, "message", string(messageBytes))
			n.sendErrorResponse(rpcConn, 0, "message validation failed")
			continue
		}
		if msg.Req == nil {
			n.logger.Debug("message request is empty", "message", string(messageBytes))
			n.sendErrorResponse(rpcConn, 0, "message request is empty")
			continue
		}

		handler, ok := n.handlers[msg.Req.Method]
		if !ok {
			n.logger.Debug("no handler found for method", "method", msg.Req.Method)
			n.sendErrorResponse(rpcConn, msg.Req.RequestID, fmt.Sprintf("unknown method: %s", msg.Req.Method))
			continue
		}

		n.logger.Info("processing message",
			"requestID", msg.Req.RequestID,
			"method", msg.Req.Method)

		reqCtx := &RPCContext{
			Context: SetContextLogger(context.Background(), n.logger),
			Message: msg,
		}
		handler(reqCtx)

		status := "success"
		if reqCtx.Message.Res != nil && reqCtx.Message.Res.Method == methodError {
			status = "error"
		}
		n.metrics.RPCRequests.WithLabelValues(msg.Req.Method, status).Inc()

		responseBytes, err := prepareRawRPCResponse(n.signer, reqCtx.Message.Res)
		if err != nil {
			n.logger.Error("failed to prepare response", "error", err, "method", msg.Req.Method)
			continue
		}
		rpcConn.Write(responseBytes)
	}
}

// RPCHandler is a function that processes an RPC request.
type RPCHandler func(c *RPCContext)

// RPCContext contains all the information about an RPC request and provides
// methods for handlers to respond to the request.
type RPCContext struct {
	// Context is the standard Go context for the request
	Context context.Context
	// Message contains the incoming request and will hold the response
	Message RPCMessage
}

// Succeed sets a successful response with the given method and parameters.
func (c *RPCContext) Succeed(method string, params RPCDataParams) {
	c.Message.Res = &RPCData{
		RequestID: c.Message.Req.RequestID,
		Method:    method,
		Params:    params,
		Timestamp: uint64(time.Now().UnixMilli()),
	}
}

// Fail sets an error response for the RPC request.
//
// If err is an RPCError its exact message is sent to the client; any other
// error is replaced by fallbackMessage so internal details stay hidden. When
// both are empty a generic message is sent.
func (c *RPCContext) Fail(err error, fallbackMessage string) {
	msg := fallbackMessage
	if _, ok := err.(RPCError); ok {
		msg = err.Error()
	}
	if msg == "" {
		msg = defaultRPCErrorMessage
	}

	c.Message.Res = &RPCData{
		RequestID: c.Message.Req.RequestID,
		Method:    methodError,
		Params:    ErrorResponse{Error: msg},
		Timestamp: uint64(time.Now().UnixMilli()),
	}
}

// prepareRawRPCResponse creates a signed RPC response message from the given
// data. The signature covers the double SHA-256 of the marshaled response.
func prepareRawRPCResponse(signer *sign.BitcoinSigner, data *RPCData) ([]byte, error) {
	if data == nil {
		return nil, fmt.Errorf("response data is nil")
	}

	resDataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response data: %w", err)
	}

	signature, err := signer.Sign(chainhash.DoubleHashB(resDataBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to sign response data: %w", err)
	}

	responseMessage := &RPCMessage{
		Res: data,
		Sig: []sign.Signature{signature},
	}
	resMessageBytes, err := json.Marshal(responseMessage)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response message: %w", err)
	}

	return resMessageBytes, nil
}

// sendErrorResponse sends an error response to a connection.
// It's used for protocol-level errors before request processing.
func (n *RPCNode) sendErrorResponse(conn *RPCConnection, requestID uint64, msg string) {
	if requestID == 0 {
		requestID = uint64(time.Now().UnixMilli())
	}
	if conn == nil {
		n.logger.Error("connection is nil, cannot send error response", "requestID", requestID)
		return
	}

	data := &RPCData{
		RequestID: requestID,
		Method:    methodError,
		Params:    ErrorResponse{Error: msg},
		Timestamp: uint64(time.Now().UnixMilli()),
	}

	responseBytes, err := prepareRawRPCResponse(n.signer, data)
	if err != nil {
		n.logger.Error("failed to prepare error response", "error", err)
		return
	}

	conn.Write(responseBytes)
}

func (n *RPCNode) handlePing(c *RPCContext) {
	c.Succeed(methodPong, struct{}{})
}

func (n *RPCNode) handleGetAddress(c *RPCContext) {
	c.Succeed(MethodGetAddress, AddressResult{
		Address: n.Address(),
		Network: n.params.Name,
	})
}

func (n *RPCNode) handleSignMessage(c *RPCContext) {
	var params SignParams
	if err := c.Message.Req.ParamsInto(&params); err != nil {
		c.Fail(RPCErrorf("invalid parameters: %v", err), "")
		return
	}

	msg := message.NewForNet(params.Message, n.params)
	signature, err := msg.Sign(n.signingKey)
	if err != nil {
		logger := LoggerFromContext(c.Context)
		logger.Error("failed to sign message", "error", err)
		c.Fail(err, "failed to sign message")
		return
	}
	n.metrics.SignRequests.Inc()

	c.Succeed(MethodSignMessage, SignResult{
		Address:   n.Address(),
		Message:   params.Message,
		Signature: signature,
	})
}

func (n *RPCNode) handleVerifyMessage(c *RPCContext) {
	var params VerifyParams
	if err := c.Message.Req.ParamsInto(&params); err != nil {
		c.Fail(RPCErrorf("invalid parameters: %v", err), "")
		return
	}
	if err := n.validate.Struct(&params); err != nil {
		c.Fail(RPCErrorf("invalid parameters: %v", err), "")
		return
	}

	msg := message.NewForNet(params.Message, n.params)
	valid, err := msg.VerifyString(params.Address, params.Signature)
	if err != nil {
		n.metrics.VerificationsTotal.WithLabelValues("error").Inc()
		c.Fail(RPCErrorf("%v", err), "")
		return
	}

	reason := ""
	outcome := "valid"
	if !valid {
		reason = msg.LastError()
		outcome = "invalid"
	}
	n.metrics.VerificationsTotal.WithLabelValues(outcome).Inc()

	digest := hex.EncodeToString(msg.MagicHash())
	if err := n.store.Save(params.Address, digest, params.Message, params.Signature, valid, reason, n.params.Name); err != nil {
		logger := LoggerFromContext(c.Context)
		logger.Error("failed to save verification record", "error", err)
	}

	c.Succeed(MethodVerifyMessage, VerifyResult{
		Valid:  valid,
		Reason: reason,
	})
}

func (n *RPCNode) handleGetHistory(c *RPCContext) {
	var params HistoryParams
	if err := c.Message.Req.ParamsInto(&params); err != nil {
		c.Fail(RPCErrorf("invalid parameters: %v", err), "")
		return
	}
	if err := n.validate.Struct(&params); err != nil {
		c.Fail(RPCErrorf("invalid parameters: %v", err), "")
		return
	}

	records, err := n.store.Recent(params.Limit)
	if err != nil {
		logger := LoggerFromContext(c.Context)
		logger.Error("failed to query verification records", "error", err)
		c.Fail(err, "failed to retrieve history")
		return
	}

	entries := make([]HistoryEntry, 0, len(records))
	for _, record := range records {
		entries = append(entries, HistoryEntry{
			Address:   record.Address,
			Digest:    record.MessageDigest,
			Valid:     record.Valid,
			Reason:    record.Reason,
			CreatedAt: record.CreatedAt,
		})
	}

	c.Succeed(MethodGetHistory, HistoryResult{Entries: entries})
}
