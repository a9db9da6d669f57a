package jsonrpc

import (
	"encoding/json"

	"deploygate/api"
)

// NewResult creates a JSON-RPC success response carrying the marshaled result.
func NewResult(id json.RawMessage, result any) (*api.JSONRPCMessage, error) {
	data, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}
	return &api.JSONRPCMessage{
		JSONRPC: api.JSONRPCVersion,
		ID:      id,
		Result:  data,
	}, nil
}

// NewError creates a JSON-RPC error response. A nil id produces the null-id
// response shape required for parse errors.
func NewError(id json.RawMessage, code int, message string) *api.JSONRPCMessage {
	if id == nil {
		id = json.RawMessage("null")
	}
	return &api.JSONRPCMessage{
		JSONRPC: api.JSONRPCVersion,
		ID:      id,
		Error: &api.JSONRPCError{
			Code:    code,
			Message: message,
		},
	}
}

// NewParseError creates the response for bytes that never became a request.
func NewParseError(message string) *api.JSONRPCMessage {
	return NewError(nil, api.CodeParseError, message)
}

// Marshal encodes a JSONRPCMessage to JSON bytes.
func Marshal(msg *api.JSONRPCMessage) ([]byte, error) {
	return json.Marshal(msg)
}
