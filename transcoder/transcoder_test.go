package transcoder

import (
	"fmt"
	"strings"
	"testing"
	"time"
)

// dateTranscoder rewrites time.Time values into {"$date": RFC3339} objects
// and back, walking the envelope recursively. This is the canonical use case
// for the transcoder hook: round-tripping a non-JSON-native value.
type dateTranscoder struct{}

func (dateTranscoder) Serialize(v any) (any, error) {
	return walk(v, func(x any) any {
		if t, ok := x.(time.Time); ok {
			return map[string]any{"$date": t.Format(time.RFC3339Nano)}
		}
		return x
	}), nil
}

func (dateTranscoder) Deserialize(v any) (any, error) {
	return walk(v, func(x any) any {
		if m, ok := x.(map[string]any); ok {
			if s, ok := m["$date"].(string); ok && len(m) == 1 {
				if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
					return t
				}
			}
		}
		return x
	}), nil
}

func walk(v any, f func(any) any) any {
	v = f(v)
	switch m := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(m))
		for k, e := range m {
			out[k] = walk(e, f)
		}
		return out
	case []any:
		out := make([]any, len(m))
		for i, e := range m {
			out[i] = walk(e, f)
		}
		return out
	}
	return v
}

func TestIdentityPassesThrough(t *testing.T) {
	v := map[string]any{"jsonrpc": "2.0", "id": 1, "result": []any{1, 2}}
	out, err := Identity{}.Serialize(v)
	if err != nil {
		t.Fatalf("Serialize failed: %v", err)
	}
	if fmt.Sprint(out) != fmt.Sprint(v) {
		t.Errorf("identity changed the envelope: got %v, want %v", out, v)
	}
}

func TestDateTranscoderSymmetry(t *testing.T) {
	stamp := time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)
	envelope := map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"result":  map[string]any{"created": stamp, "name": "x"},
	}

	tc := dateTranscoder{}
	serialized, err := tc.Serialize(envelope)
	if err != nil {
		t.Fatalf("Serialize failed: %v", err)
	}
	// After serialization no time.Time must remain.
	if strings.Contains(fmt.Sprintf("%T", serialized.(map[string]any)["result"].(map[string]any)["created"]), "time.Time") {
		t.Fatal("Serialize left a time.Time in the envelope")
	}

	back, err := tc.Deserialize(serialized)
	if err != nil {
		t.Fatalf("Deserialize failed: %v", err)
	}
	got := back.(map[string]any)["result"].(map[string]any)["created"]
	if ts, ok := got.(time.Time); !ok || !ts.Equal(stamp) {
		t.Errorf("round trip lost the date: got %v (%T), want %v", got, got, stamp)
	}
}

func TestFuncsNilDirectionIsIdentity(t *testing.T) {
	tc := Funcs{SerializeFunc: func(v any) (any, error) { return "wrapped", nil }}

	out, err := tc.Serialize(1)
	if err != nil || out != "wrapped" {
		t.Fatalf("Serialize = %v, %v, want wrapped", out, err)
	}
	out, err = tc.Deserialize(42)
	if err != nil || out != 42 {
		t.Fatalf("Deserialize = %v, %v, want 42 passthrough", out, err)
	}
}

func TestDefault(t *testing.T) {
	if _, ok := Default(nil).(Identity); !ok {
		t.Error("Default(nil) should be the identity transcoder")
	}
	tc := dateTranscoder{}
	if Default(tc) != tc {
		t.Error("Default should return the given transcoder unchanged")
	}
}
