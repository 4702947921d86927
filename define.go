package fcstream

import (
	"encoding/json"
	"reflect"
	"strings"

	"github.com/sashabaranov/go-openai/jsonschema"
	"github.com/thecxx/fcstream/constants"
)

// FunctionOptions holds the configuration options for a function tool.
type FunctionOptions struct {
	Name        string
	Description string
	Parameters  any
	Strict      bool
}

// FunctionDefinition is the provider-neutral declaration of a function tool.
type FunctionDefinition struct {
	Name        string                `json:"name"`
	Description string                `json:"description"`
	Parameters  jsonschema.Definition `json:"parameters"`
	Strict      bool                  `json:"strict,omitempty"`
}

// FunctionOption defines a functional option for configuring a function tool.
type FunctionOption func(opts *FunctionOptions)

// WithFunctionParameters sets the schema that describes the function's parameters.
// Anything that marshals to a JSON schema object is accepted.
func WithFunctionParameters(parameters any) FunctionOption {
	return func(opts *FunctionOptions) { opts.Parameters = parameters }
}

// WithParametersOf derives the parameter schema from the `fcstream` tags of
// the struct (or pointer to struct) v.
func WithParametersOf(v any) FunctionOption {
	return func(opts *FunctionOptions) {
		typ := reflect.TypeOf(v)
		if typ == nil {
			return
		}
		if typ.Kind() == reflect.Ptr {
			typ = typ.Elem()
		}
		if typ.Kind() != reflect.Struct {
			return
		}
		opts.Parameters = *parseStructToDefinition(typ)
	}
}

// WithFunctionStrict enables or disables Strict Mode for structured output.
func WithFunctionStrict(strict bool) FunctionOption {
	return func(opts *FunctionOptions) { opts.Strict = strict }
}

// DefineFunction creates a function tool definition.
func DefineFunction(name, description string, opts ...FunctionOption) Tool {
	options := &FunctionOptions{
		Name:        name,
		Description: description,
	}

	for _, opt := range opts {
		opt(options)
	}

	return &tool{
		type_: constants.ToolTypeFunction,
		definition: &FunctionDefinition{
			Name:        options.Name,
			Description: options.Description,
			Parameters:  normalizeParameters(options.Parameters),
			Strict:      options.Strict,
		},
	}
}

// FunctionDefinitionOf returns the function declaration carried by t, or nil
// when t is not a function tool.
func FunctionDefinitionOf(t Tool) *FunctionDefinition {
	if t == nil || t.Type() != constants.ToolTypeFunction {
		return nil
	}
	def, _ := t.Definition().(*FunctionDefinition)
	return def
}

func emptyObject() jsonschema.Definition {
	return jsonschema.Definition{
		Type:       jsonschema.Object,
		Properties: make(map[string]jsonschema.Definition),
		Required:   make([]string, 0),
	}
}

// normalizeParameters coerces parameters into a jsonschema.Definition.
// Providers reject a missing schema, so anything unusable becomes an empty object.
func normalizeParameters(parameters any) jsonschema.Definition {
	switch p := parameters.(type) {
	case nil:
		return emptyObject()
	case jsonschema.Definition:
		return p
	case *jsonschema.Definition:
		if p != nil {
			return *p
		}
		return emptyObject()
	}

	data, err := json.Marshal(parameters)
	if err != nil {
		return emptyObject()
	}
	var def jsonschema.Definition
	if err := json.Unmarshal(data, &def); err != nil || def.Type == "" {
		return emptyObject()
	}
	return def
}

func parseStructToDefinition(t reflect.Type) *jsonschema.Definition {
	def := &jsonschema.Definition{
		Type:       jsonschema.Object,
		Properties: make(map[string]jsonschema.Definition),
		Required:   []string{},
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		// Skip unexported fields
		if field.PkgPath != "" {
			continue
		}

		argTag := field.Tag.Get("fcstream")
		if argTag == "" {
			continue
		}

		parts := strings.Split(argTag, ",")

		var (
			name     = parts[0]
			required bool
			desc     string
			enum     []string
		)
		for i := 1; i < len(parts); i++ {
			part := parts[i]
			if part == "required" {
				required = true
			} else if strings.HasPrefix(part, "enum=") {
				enum = strings.Split(strings.TrimPrefix(part, "enum="), "|")
			} else if strings.HasPrefix(part, "desc=") {
				// desc swallows the rest of the tag, commas included
				desc = strings.Join(append([]string{strings.TrimPrefix(part, "desc=")}, parts[i+1:]...), ",")
				break
			}
		}

		fieldDef := definitionOf(field.Type)
		fieldDef.Description = desc
		fieldDef.Enum = enum

		def.Properties[name] = fieldDef
		if required {
			def.Required = append(def.Required, name)
		}
	}

	return def
}

// definitionOf maps Go types to JSON Schema types.
func definitionOf(typ reflect.Type) jsonschema.Definition {
	switch typ.Kind() {
	case reflect.String:
		return jsonschema.Definition{Type: jsonschema.String}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return jsonschema.Definition{Type: jsonschema.Integer}
	case reflect.Float32, reflect.Float64:
		return jsonschema.Definition{Type: jsonschema.Number}
	case reflect.Bool:
		return jsonschema.Definition{Type: jsonschema.Boolean}
	case reflect.Slice, reflect.Array:
		items := definitionOf(typ.Elem())
		return jsonschema.Definition{Type: jsonschema.Array, Items: &items}
	case reflect.Struct:
		return *parseStructToDefinition(typ)
	case reflect.Ptr:
		return definitionOf(typ.Elem())
	}
	return jsonschema.Definition{}
}
