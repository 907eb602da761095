package rpc

import (
	"encoding/json"
	"testing"
)

func TestResponseConstructors(t *testing.T) {
	id := json.RawMessage(`"a"`)

	tests := []struct {
		name string
		resp Response
		want string
	}{
		{
			name: "result",
			resp: NewResultResponse(id, map[string]int{"n": 1}),
			want: `{"jsonrpc":"2.0","id":"a","result":{"n":1}}`,
		},
		{
			name: "nil result",
			resp: NewResultResponse(id, nil),
			want: `{"jsonrpc":"2.0","id":"a","result":{}}`,
		},
		{
			name: "error",
			resp: NewErrorResponse(id, &Error{Code: CodeSoftwareFailure, Message: "no"}),
			want: `{"jsonrpc":"2.0","id":"a","error":{"code":0,"message":"no"}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if (tt.resp.Result == nil) == (tt.resp.Error == nil) {
				t.Errorf("Result = %v, Error = %v; want exactly one set", tt.resp.Result, tt.resp.Error)
			}
			got, err := json.Marshal(tt.resp)
			if err != nil {
				t.Fatalf("Marshal() error = %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("Marshal() = %s, want %s", got, tt.want)
			}
		})
	}
}
