package backend

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/joseph-ayodele/docbatch/constants"
	"github.com/joseph-ayodele/docbatch/internal/common"
)

type registration struct {
	backend Backend
	schema  *jsonschema.Schema
}

// Registry maps each operation to its backend. Built once, read-only after.
type Registry struct {
	entries map[constants.Operation]registration
}

// NewRegistry compiles each backend's option schema and rejects unknown or
// duplicate operations.
func NewRegistry(backends ...Backend) (*Registry, error) {
	r := &Registry{entries: make(map[constants.Operation]registration, len(backends))}
	for _, b := range backends {
		op := b.Operation()
		if _, ok := constants.ParseOperation(string(op)); !ok {
			return nil, common.NewAppError("REGISTRY_ERROR", fmt.Sprintf("unknown operation %q", op), common.ErrInvalidInput)
		}
		if _, dup := r.entries[op]; dup {
			return nil, common.NewAppError("REGISTRY_ERROR", fmt.Sprintf("operation %q registered twice", op), common.ErrInvalidInput)
		}
		schema, err := compileSchema(string(op), b.Schema())
		if err != nil {
			return nil, common.NewAppError("REGISTRY_ERROR", fmt.Sprintf("schema for %q", op), err)
		}
		r.entries[op] = registration{backend: b, schema: schema}
	}
	return r, nil
}

func compileSchema(name, text string) (*jsonschema.Schema, error) {
	if strings.TrimSpace(text) == "" {
		text = `{"type": "object"}`
	}
	url := "mem://options/" + name + ".json"
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(url, strings.NewReader(text)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
}

// Lookup returns the backend registered for op.
func (r *Registry) Lookup(op constants.Operation) (Backend, bool) {
	e, ok := r.entries[op]
	return e.backend, ok
}

// Operations lists registered operations, sorted.
func (r *Registry) Operations() []constants.Operation {
	ops := make([]constants.Operation, 0, len(r.entries))
	for op := range r.entries {
		ops = append(ops, op)
	}
	sort.Slice(ops, func(i, j int) bool { return ops[i] < ops[j] })
	return ops
}

// ValidateOptions checks an option bag against op's schema.
// A nil bag is validated as an empty object.
func (r *Registry) ValidateOptions(op constants.Operation, options map[string]any) error {
	e, ok := r.entries[op]
	if !ok {
		return common.ValidationErrors{{Field: "operation", Value: op, Message: "no backend registered"}}
	}
	// round trip so numbers and nested values have the shapes the validator expects
	if options == nil {
		options = map[string]any{}
	}
	b, err := json.Marshal(options)
	if err != nil {
		return common.ValidationErrors{{Field: "options", Message: fmt.Sprintf("not JSON encodable: %v", err)}}
	}
	var doc any
	if err := json.Unmarshal(b, &doc); err != nil {
		return common.ValidationErrors{{Field: "options", Message: err.Error()}}
	}
	if err := e.schema.Validate(doc); err != nil {
		return schemaErrors(err)
	}
	return nil
}

func schemaErrors(err error) error {
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return common.ValidationErrors{{Field: "options", Message: err.Error()}}
	}
	var out common.ValidationErrors
	var walk func(e *jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			field := "options" + strings.ReplaceAll(e.InstanceLocation, "/", ".")
			out = append(out, common.ValidationError{Field: field, Message: e.Message})
			return
		}
		for _, c := range e.Causes {
			walk(c)
		}
	}
	walk(ve)
	return out
}
