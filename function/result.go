package function

import (
	"encoding/json"

	"github.com/tidwall/gjson"
)

// Result is the JSON payload a function produced. It passes opaquely from
// the executor to the result renderers.
type Result json.RawMessage

// NewResult marshals v into a Result.
func NewResult(v any) (Result, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return Result(data), nil
}

// Failure returns the structured failure payload {"error": msg}.
func Failure(msg string) Result {
	r, _ := NewResult(map[string]string{"error": msg})
	return r
}

// Passthrough is the result reported for a call to a function nobody
// registered, so the model can correct itself.
func Passthrough(name, arguments string) Result {
	r, _ := NewResult(map[string]string{
		"error":     ErrUnknownFunction.Error(),
		"name":      name,
		"arguments": arguments,
	})
	return r
}

// Get returns the value at path.
func (r Result) Get(path string) gjson.Result {
	return gjson.GetBytes(r, path)
}

// IsFailure reports whether the payload is a structured failure.
func (r Result) IsFailure() bool {
	return r.Get("error").Exists()
}

// String returns the payload as JSON text; an empty result is "{}".
func (r Result) String() string {
	if len(r) == 0 {
		return "{}"
	}
	return string(r)
}

// MarshalJSON implements json.Marshaler.
func (r Result) MarshalJSON() ([]byte, error) {
	return []byte(r.String()), nil
}
