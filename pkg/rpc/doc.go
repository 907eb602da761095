// Package rpc implements the JSON-RPC 2.0 layer carried inside the encrypted
// channel.
//
// The server side is a Dispatcher that turns one decrypted request into a call
// on a software.Software and an optional encoded response. Notifications
// (hello, outputs/stateChanged) are built with Hello and StateChanged. The
// client side uses NewRequest and DecodeMessage.
//
// Methods:
//
//	outputs/get       -> {"<id>": {"id", "name", "type", "state", "delaySeconds"}, ...}
//	outputs/start     {"id"}            -> {}
//	outputs/stop      {"id"}            -> {}
//	outputs/setDelay  {"id", "seconds"} -> {} or error {"code": 0, "message": ...}
//
// Requests naming any other method get no response. Payloads that are not a
// JSON-RPC 2.0 object, or whose params do not decode, are protocol errors.
package rpc
