// Package transcoder provides the pluggable serialize/deserialize pair
// applied to whole envelopes on each side of the wire. It is the sole
// extension point for payloads that are not JSON-native (dates, sets, ...):
// the protocol layer itself never special-cases value types.
package transcoder

// Transcoder transforms a full envelope value before marshaling (Serialize)
// and after unmarshaling (Deserialize). Implementations must be symmetric:
// Deserialize(Serialize(v)) is observably equivalent to v for every value the
// service methods produce or accept.
type Transcoder interface {
	Serialize(v any) (any, error)
	Deserialize(v any) (any, error)
}

// Identity is the default transcoder: it assumes all payload values are
// already JSON-native and passes envelopes through untouched.
type Identity struct{}

func (Identity) Serialize(v any) (any, error) { return v, nil }

func (Identity) Deserialize(v any) (any, error) { return v, nil }

// Funcs adapts a pair of plain functions into a Transcoder. A nil function
// behaves as identity, so callers can override only one direction.
type Funcs struct {
	SerializeFunc   func(v any) (any, error)
	DeserializeFunc func(v any) (any, error)
}

func (f Funcs) Serialize(v any) (any, error) {
	if f.SerializeFunc == nil {
		return v, nil
	}
	return f.SerializeFunc(v)
}

func (f Funcs) Deserialize(v any) (any, error) {
	if f.DeserializeFunc == nil {
		return v, nil
	}
	return f.DeserializeFunc(v)
}

// Default returns t, or the identity transcoder when t is nil. Both
// dispatchers call this so a nil option means "JSON-native values only".
func Default(t Transcoder) Transcoder {
	if t == nil {
		return Identity{}
	}
	return t
}
