package jsonrpc

import (
	"encoding/json"
	"fmt"

	"deploygate/api"
)

// VersionError marks a message that parsed as JSON but does not declare
// protocol version 2.0. The decoded message travels with it so the caller
// can still correlate an error response.
type VersionError struct {
	Version string
}

func (e *VersionError) Error() string {
	return fmt.Sprintf("unsupported JSON-RPC version: %q", e.Version)
}

// Parse decodes a raw JSON byte slice into a JSONRPCMessage. On a version
// mismatch the decoded message is returned alongside a *VersionError.
func Parse(data []byte) (*api.JSONRPCMessage, error) {
	var msg api.JSONRPCMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("invalid JSON-RPC message: %w", err)
	}
	if msg.JSONRPC != api.JSONRPCVersion {
		return &msg, &VersionError{Version: msg.JSONRPC}
	}
	return &msg, nil
}

// ExtractToolCall extracts tool name and arguments from a tools/call request.
func ExtractToolCall(msg *api.JSONRPCMessage) (*api.ToolCallParams, error) {
	if msg.Method != "tools/call" {
		return nil, fmt.Errorf("not a tools/call request: %q", msg.Method)
	}
	if msg.Params == nil {
		return nil, fmt.Errorf("tools/call request has no params")
	}
	var params api.ToolCallParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return nil, fmt.Errorf("failed to parse tools/call params: %w", err)
	}
	if params.Name == "" {
		return nil, fmt.Errorf("tools/call request has no tool name")
	}
	return &params, nil
}

// ExtractArguments unmarshals arguments into a map for validation and policy
// matching.
func ExtractArguments(raw json.RawMessage) (map[string]any, error) {
	if raw == nil {
		return nil, nil
	}
	var args map[string]any
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, fmt.Errorf("failed to parse arguments: %w", err)
	}
	return args, nil
}
