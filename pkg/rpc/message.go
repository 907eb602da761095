package rpc

import (
	"encoding/json"
	"fmt"

	"github.com/backkem/streamremote/pkg/software"
)

// Version is the only accepted value of the jsonrpc member.
const Version = "2.0"

// Method names.
const (
	MethodHello               = "hello"
	MethodOutputsGet          = "outputs/get"
	MethodOutputsStart        = "outputs/start"
	MethodOutputsStop         = "outputs/stop"
	MethodOutputsSetDelay     = "outputs/setDelay"
	MethodOutputsStateChanged = "outputs/stateChanged"
)

// Error codes sent to clients.
const (
	// CodeSoftwareFailure reports that the streaming software refused a command.
	CodeSoftwareFailure = 0
)

// Request is an incoming method call.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      json.RawMessage `json:"id,omitempty"`
}

// Response answers a Request. Build it with NewResultResponse or
// NewErrorResponse so that exactly one of Result and Error is set.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// NewResultResponse answers id with result. A nil result is sent as {}.
func NewResultResponse(id json.RawMessage, result any) Response {
	if result == nil {
		result = emptyResult{}
	}
	return Response{JSONRPC: Version, ID: id, Result: result}
}

// NewErrorResponse answers id with err.
func NewErrorResponse(id json.RawMessage, err *Error) Response {
	return Response{JSONRPC: Version, ID: id, Error: err}
}

// Notification is an unsolicited message without id.
type Notification struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// Error is a JSON-RPC error object.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("rpc: remote error %d: %s", e.Code, e.Message)
}

// OutputInfo is the wire form of a software.Output.
type OutputInfo struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Type         string `json:"type"`
	State        string `json:"state"`
	DelaySeconds int64  `json:"delaySeconds"`
}

// NewOutputInfo converts an output to its wire form.
func NewOutputInfo(o software.Output) OutputInfo {
	return OutputInfo{
		ID:           o.ID,
		Name:         o.Name,
		Type:         o.Type.String(),
		State:        o.State.String(),
		DelaySeconds: o.DelaySeconds,
	}
}

// OutputParams are the params of outputs/start and outputs/stop.
type OutputParams struct {
	ID string `json:"id"`
}

// SetDelayParams are the params of outputs/setDelay.
type SetDelayParams struct {
	ID      string `json:"id"`
	Seconds int64  `json:"seconds"`
}

// StateChangedParams are the params of outputs/stateChanged.
type StateChangedParams struct {
	ID    string `json:"id"`
	State string `json:"state"`
}

// emptyResult encodes as {}.
type emptyResult struct{}

var helloNotification = mustMarshal(Notification{JSONRPC: Version, Method: MethodHello})

// Hello returns the encoded hello notification sent once a channel is up.
func Hello() []byte {
	return append([]byte(nil), helloNotification...)
}

// StateChanged returns the encoded outputs/stateChanged notification.
func StateChanged(id string, state software.OutputState) ([]byte, error) {
	return json.Marshal(Notification{
		JSONRPC: Version,
		Method:  MethodOutputsStateChanged,
		Params:  StateChangedParams{ID: id, State: state.String()},
	})
}

// NewRequest encodes a request with a numeric id. params may be nil.
func NewRequest(id uint64, method string, params any) ([]byte, error) {
	req := struct {
		JSONRPC string `json:"jsonrpc"`
		Method  string `json:"method"`
		Params  any    `json:"params,omitempty"`
		ID      uint64 `json:"id"`
	}{Version, method, params, id}
	return json.Marshal(req)
}

// Message is any message a client receives: a response or a notification.
type Message struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// IsNotification reports whether m carries a method and no id.
func (m *Message) IsNotification() bool {
	return m.Method != "" && len(m.ID) == 0
}

// DecodeMessage parses a message received by a client.
func DecodeMessage(data []byte) (*Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if m.JSONRPC != Version {
		return nil, ErrVersionMismatch
	}
	return &m, nil
}

func mustMarshal(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}
