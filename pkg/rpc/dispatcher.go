package rpc

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/backkem/streamremote/pkg/software"
	"github.com/pion/logging"
)

// setDelayFailure is the error returned when the software rejects a delay.
var setDelayFailure = &Error{
	Code:    CodeSoftwareFailure,
	Message: "The software failed to set the delay",
}

// DispatcherConfig configures a Dispatcher.
type DispatcherConfig struct {
	// Software receives the calls. Required.
	Software software.Software

	// LoggerFactory for creating loggers.
	LoggerFactory logging.LoggerFactory
}

// Dispatcher maps requests onto a software.Software. It keeps no per-client
// state, so one Dispatcher can serve every connection.
type Dispatcher struct {
	software software.Software
	log      logging.LeveledLogger
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(config DispatcherConfig) (*Dispatcher, error) {
	if config.Software == nil {
		return nil, ErrNoSoftware
	}
	d := &Dispatcher{software: config.Software}
	if config.LoggerFactory != nil {
		d.log = config.LoggerFactory.NewLogger("rpc")
	}
	return d, nil
}

// Dispatch handles one decrypted request and returns the encoded response, or
// nil when no response is due. A non-nil error wraps ErrProtocol and means the
// connection must be closed without replying.
func (d *Dispatcher) Dispatch(payload []byte) ([]byte, error) {
	req, err := decodeRequest(payload)
	if err != nil {
		return nil, err
	}

	if d.log != nil {
		d.log.Debugf("Dispatching %s id=%s", req.Method, req.ID)
	}

	var result any
	var rpcErr *Error

	switch req.Method {
	case MethodOutputsGet:
		result = d.outputs()

	case MethodOutputsStart:
		var p OutputParams
		if err := decodeParams(req.Params, &p); err != nil {
			return nil, err
		}
		d.software.StartOutput(p.ID)
		result = emptyResult{}

	case MethodOutputsStop:
		var p OutputParams
		if err := decodeParams(req.Params, &p); err != nil {
			return nil, err
		}
		d.software.StopOutput(p.ID)
		result = emptyResult{}

	case MethodOutputsSetDelay:
		var p SetDelayParams
		if err := decodeParams(req.Params, &p); err != nil {
			return nil, err
		}
		if d.software.SetOutputDelay(p.ID, p.Seconds) {
			result = emptyResult{}
		} else {
			rpcErr = setDelayFailure
		}

	default:
		if d.log != nil {
			d.log.Debugf("Ignoring unknown method %q", req.Method)
		}
		return nil, nil
	}

	resp := NewResultResponse(req.ID, result)
	if rpcErr != nil {
		resp = NewErrorResponse(req.ID, rpcErr)
	}
	return json.Marshal(resp)
}

func (d *Dispatcher) outputs() map[string]OutputInfo {
	outputs := d.software.Outputs()
	m := make(map[string]OutputInfo, len(outputs))
	for _, o := range outputs {
		m[o.ID] = NewOutputInfo(o)
	}
	return m
}

func decodeRequest(payload []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if req.JSONRPC != Version {
		return nil, ErrVersionMismatch
	}
	return &req, nil
}

func decodeParams(raw json.RawMessage, v any) error {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ErrInvalidParams
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	return nil
}
