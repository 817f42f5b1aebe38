package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/openproof/signet/pkg/sign"
)

// RPC method names served by signetd.
const (
	MethodPing          = "ping"
	MethodGetAddress    = "get_address"
	MethodSignMessage   = "message_sign"
	MethodVerifyMessage = "message_verify"
	MethodGetHistory    = "get_history"

	methodError = "error"
	methodPong  = "pong"
)

// RPCMessage represents a complete message in the RPC protocol, including data and signatures
type RPCMessage struct {
	Req *RPCData         `json:"req,omitempty" validate:"required_without=Res,excluded_with=Res"`
	Res *RPCData         `json:"res,omitempty" validate:"required_without=Req,excluded_with=Req"`
	Sig []sign.Signature `json:"sig"`
}

// ParseRPCMessage parses a JSON string into an RPCMessage
func ParseRPCMessage(data []byte) (RPCMessage, error) {
	var req RPCMessage
	if err := json.Unmarshal(data, &req); err != nil {
		return RPCMessage{}, fmt.Errorf("failed to parse request: %w", err)
	}
	return req, nil
}

// RPCDataParams is the payload of a request or response.
type RPCDataParams = any

// RPCData represents the common structure for both requests and responses
// Format: [request_id, method, params, ts]
type RPCData struct {
	RequestID uint64        `json:"request_id" validate:"required"`
	Method    string        `json:"method" validate:"required"`
	Params    RPCDataParams `json:"params" validate:"required"`
	Timestamp uint64        `json:"ts" validate:"required"`
	rawBytes  []byte
}

// UnmarshalJSON implements the json.Unmarshaler interface for RPCData
func (m *RPCData) UnmarshalJSON(data []byte) error {
	var rawArr []json.RawMessage
	if err := json.Unmarshal(data, &rawArr); err != nil {
		return fmt.Errorf("error reading RPCData as array: %w", err)
	}
	if len(rawArr) != 4 {
		return errors.New("invalid RPCData: expected 4 elements in array")
	}

	// Element 0: uint64 RequestID
	if err := json.Unmarshal(rawArr[0], &m.RequestID); err != nil {
		return fmt.Errorf("invalid request_id: %w", err)
	}
	// Element 1: string Method
	if err := json.Unmarshal(rawArr[1], &m.Method); err != nil {
		return fmt.Errorf("invalid method: %w", err)
	}
	// Element 2: RPCDataParams Params
	if err := json.Unmarshal(rawArr[2], &m.Params); err != nil {
		return fmt.Errorf("invalid params: %w", err)
	}
	// Element 3: uint64 Timestamp
	if err := json.Unmarshal(rawArr[3], &m.Timestamp); err != nil {
		return fmt.Errorf("invalid timestamp: %w", err)
	}

	// Store raw bytes for signature verification
	m.rawBytes = data

	return nil
}

// MarshalJSON for RPCData always emits the array-form [RequestID, Method, Params, Timestamp].
func (m RPCData) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{
		m.RequestID,
		m.Method,
		m.Params,
		m.Timestamp,
	})
}

// ParamsInto re-decodes the request params into a typed structure.
func (m *RPCData) ParamsInto(out any) error {
	raw, err := json.Marshal(m.Params)
	if err != nil {
		return fmt.Errorf("invalid params: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("invalid params: %w", err)
	}
	return nil
}

// CreateResponse constructs an RPCMessage with a "res" payload mirroring the
// request id.
func CreateResponse(id uint64, method string, responseParams RPCDataParams) *RPCMessage {
	return &RPCMessage{
		Res: &RPCData{
			RequestID: id,
			Method:    method,
			Params:    responseParams,
			Timestamp: uint64(time.Now().UnixMilli()),
		},
		Sig: []sign.Signature{},
	}
}

// SignParams is the payload of a message_sign request. An empty message is
// valid, so the field carries no "required" constraint.
type SignParams struct {
	Message string `json:"message"`
}

// SignResult is the payload of a message_sign response.
type SignResult struct {
	Address   string `json:"address"`
	Message   string `json:"message"`
	Signature string `json:"signature"`
}

// VerifyParams is the payload of a message_verify request.
type VerifyParams struct {
	Address   string `json:"address" validate:"required"`
	Message   string `json:"message"`
	Signature string `json:"signature" validate:"required,base64"`
}

// VerifyResult is the payload of a message_verify response.
type VerifyResult struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}

// AddressResult is the payload of a get_address response.
type AddressResult struct {
	Address string `json:"address"`
	Network string `json:"network"`
}

// HistoryParams is the payload of a get_history request.
type HistoryParams struct {
	Limit int `json:"limit" validate:"gte=0,lte=1000"`
}

// HistoryEntry is one audit record in a get_history response.
type HistoryEntry struct {
	Address   string    `json:"address"`
	Digest    string    `json:"digest"`
	Valid     bool      `json:"valid"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// HistoryResult is the payload of a get_history response.
type HistoryResult struct {
	Entries []HistoryEntry `json:"entries"`
}

// RPCError represents an error in the RPC protocol that should be sent back
// to the client in the RPC response. Unlike generic errors, RPCError messages
// are guaranteed to be included in the error response sent to the client.
//
// Use RPCError for specific, user-facing error messages. For internal errors
// that should not be exposed to clients, use regular errors instead.
type RPCError struct {
	err error
}

// RPCErrorf creates a new RPCError with a formatted error message that will
// be sent to the client in the RPC response. The message should be clear,
// actionable, and safe to expose to external clients.
func RPCErrorf(format string, args ...any) RPCError {
	return RPCError{
		err: fmt.Errorf(format, args...),
	}
}

// Error implements the error interface for RPCError
func (e RPCError) Error() string {
	return e.err.Error()
}
