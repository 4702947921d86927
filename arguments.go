package fcstream

import (
	"encoding/json"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

var emptyArguments = json.RawMessage(`{}`)

// ParseArguments turns model-supplied argument text into a JSON object.
// Blank input is the empty object. Input that is not an object, or an object
// double-encoded as a JSON string, is recovered where possible; otherwise the
// empty object is returned with ok set to false.
func ParseArguments(raw string) (args json.RawMessage, ok bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return emptyArguments, true
	}
	if !gjson.Valid(raw) {
		return emptyArguments, false
	}
	res := gjson.Parse(raw)
	if res.IsObject() {
		return json.RawMessage(raw), true
	}
	if res.Type == gjson.String && isObject(res.Str) {
		return json.RawMessage(res.Str), true
	}
	return emptyArguments, false
}

// ArgumentString returns the string argument at path, or "" when absent.
func ArgumentString(args json.RawMessage, path string) string {
	return gjson.GetBytes(args, path).String()
}

// SetArgument returns a copy of args with path set to value.
func SetArgument(args json.RawMessage, path string, value any) (json.RawMessage, error) {
	if len(args) == 0 {
		args = emptyArguments
	}
	out, err := sjson.SetBytes(append([]byte(nil), args...), path, value)
	if err != nil {
		return nil, err
	}
	return out, nil
}
