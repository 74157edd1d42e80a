// Package wire defines the JSON-RPC 2.0 envelope shapes exchanged between
// client and server, plus the validity predicates applied to decoded wire
// values.
//
// Validation runs on generic decoded JSON (map[string]any as produced by
// encoding/json into `any`), because a malformed envelope cannot be trusted
// to unmarshal into a typed struct. The typed Request/Response structs are
// used for construction and marshaling once a value has been validated.
package wire

import (
	"encoding/json"
	"fmt"
)

// Version is the protocol tag carried by every envelope.
const Version = "2.0"

// Standard JSON-RPC 2.0 error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
	CodeApplication    = -32000 // default for handler errors without an explicit code
)

// Local error codes, synthesized on the client side for conditions that never
// cross the wire. They sit in the -32800 range so they can never collide with
// a server-reported code.
const (
	CodeAborted         = -32800
	CodeTimeout         = -32801
	CodeTransport       = -32802
	CodeDuplicateID     = -32803
	CodeInvalidResponse = -32804
)

// Request is a JSON-RPC 2.0 request envelope.
// A nil ID marks a notification: the id field is omitted on the wire and no
// response is expected.
type Request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      any    `json:"id,omitempty"`
	Method  string `json:"method"`
	Params  []any  `json:"params,omitempty"`
}

// Response is a JSON-RPC 2.0 response envelope. Exactly one of Result and
// Error is transmitted; a custom marshaler enforces this so a success with a
// null result still carries the result field.
type Response struct {
	JSONRPC string `json:"jsonrpc"`
	ID      any    `json:"id"`
	Result  any    `json:"result,omitempty"`
	Error   *Error `json:"error,omitempty"`
}

// Error is the JSON-RPC error member. It implements the error interface so a
// server-reported failure can travel through normal Go error returns.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

// NewRequest builds a request envelope. Pass a nil id for a notification.
func NewRequest(id any, method string, params []any) *Request {
	return &Request{JSONRPC: Version, ID: id, Method: method, Params: params}
}

// Notification reports whether the request carries no id.
func (r *Request) Notification() bool {
	return r.ID == nil
}

// NewResult builds a success response echoing the request id.
func NewResult(id, result any) *Response {
	return &Response{JSONRPC: Version, ID: id, Result: result}
}

// NewError builds an error response echoing the request id (null when the
// request id could not be recovered).
func NewError(id any, code int, message string, data any) *Response {
	return &Response{JSONRPC: Version, ID: id, Error: &Error{Code: code, Message: message, Data: data}}
}

// MarshalJSON emits either the result or the error member, never both and
// never neither. The id field is always present, marshaling as null when the
// originating request was unparseable.
func (r *Response) MarshalJSON() ([]byte, error) {
	if r.Error != nil {
		return json.Marshal(struct {
			JSONRPC string `json:"jsonrpc"`
			ID      any    `json:"id"`
			Error   *Error `json:"error"`
		}{r.JSONRPC, r.ID, r.Error})
	}
	return json.Marshal(struct {
		JSONRPC string `json:"jsonrpc"`
		ID      any    `json:"id"`
		Result  any    `json:"result"`
	}{r.JSONRPC, r.ID, r.Result})
}

// IsValidRequest reports whether v is a structurally valid request envelope:
// protocol tag "2.0", a string method, and params either absent or an array.
func IsValidRequest(v any) bool {
	switch m := v.(type) {
	case map[string]any:
		if m["jsonrpc"] != Version {
			return false
		}
		if _, ok := m["method"].(string); !ok {
			return false
		}
		if p, present := m["params"]; present {
			if _, ok := p.([]any); !ok {
				return false
			}
		}
		return true
	case *Request:
		return m != nil && m.JSONRPC == Version && m.Method != ""
	}
	return false
}

// IsValidResponse reports whether v is a structurally valid response
// envelope: protocol tag "2.0", an id that is a string, number, or null, and
// exactly one of result/error, where an error member carries a numeric code
// and a string message.
func IsValidResponse(v any) bool {
	switch m := v.(type) {
	case map[string]any:
		if m["jsonrpc"] != Version {
			return false
		}
		id, present := m["id"]
		if !present || !validID(id) {
			return false
		}
		_, hasResult := m["result"]
		errVal, hasError := m["error"]
		if hasResult == hasError {
			return false
		}
		if hasError {
			em, ok := errVal.(map[string]any)
			if !ok {
				return false
			}
			if !isNumber(em["code"]) {
				return false
			}
			if _, ok := em["message"].(string); !ok {
				return false
			}
		}
		return true
	case *Response:
		// The typed arm covers constructor-built envelopes only: a nil
		// Result with a nil Error is a null result, since the struct
		// cannot represent an absent result distinctly. Exactly-one-of is
		// enforced on the wire by MarshalJSON and checked on decoded
		// values by the map arm above.
		if m == nil || m.JSONRPC != Version || !validID(m.ID) {
			return false
		}
		return (m.Result == nil) || (m.Error == nil)
	}
	return false
}

// ExtractRequestID recovers the id from a possibly malformed request, so an
// error response can still be correlated. Returns nil unless the id is a
// string or a number. Numeric ids are normalized with NormalizeID.
func ExtractRequestID(v any) any {
	var id any
	switch m := v.(type) {
	case map[string]any:
		id = m["id"]
	case *Request:
		if m != nil {
			id = m.ID
		}
	}
	if id == nil {
		return nil
	}
	switch id.(type) {
	case string, float64, int, int64, json.Number:
		return NormalizeID(id)
	}
	return nil
}

// NormalizeID maps the various numeric shapes a decoded id can take onto a
// single comparable form: int64 for integral numbers, string for strings.
// Correlation maps are keyed by normalized ids so that the id a client
// generated (say int64(7)) matches the float64(7) encoding/json hands back.
func NormalizeID(id any) any {
	switch n := id.(type) {
	case string:
		return n
	case int:
		return int64(n)
	case int64:
		return n
	case float64:
		if n == float64(int64(n)) {
			return int64(n)
		}
		return n
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i
		}
		if f, err := n.Float64(); err == nil {
			return f
		}
		return n.String()
	}
	return id
}

// ParseRequest converts a decoded wire value into a typed Request. The value
// must already satisfy IsValidRequest.
func ParseRequest(v any) *Request {
	switch m := v.(type) {
	case map[string]any:
		req := &Request{JSONRPC: Version}
		req.ID = ExtractRequestID(v)
		req.Method, _ = m["method"].(string)
		req.Params, _ = m["params"].([]any)
		return req
	case *Request:
		return m
	}
	return nil
}

// ParseResponse converts a decoded wire value into a typed Response. The
// value must already satisfy IsValidResponse.
func ParseResponse(v any) *Response {
	switch m := v.(type) {
	case map[string]any:
		resp := &Response{JSONRPC: Version, ID: NormalizeID(m["id"])}
		if errVal, ok := m["error"].(map[string]any); ok {
			e := &Error{}
			if c, ok := errVal["code"].(float64); ok {
				e.Code = int(c)
			}
			e.Message, _ = errVal["message"].(string)
			e.Data = errVal["data"]
			resp.Error = e
			return resp
		}
		resp.Result = m["result"]
		return resp
	case *Response:
		return m
	}
	return nil
}

func validID(id any) bool {
	if id == nil {
		return true
	}
	switch id.(type) {
	case string:
		return true
	}
	return isNumber(id)
}

func isNumber(v any) bool {
	switch v.(type) {
	case float64, int, int64, json.Number:
		return true
	}
	return false
}
