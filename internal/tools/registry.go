// Package tools maps protocol method names onto handlers that compose
// validation, policy, and the external deployctl command.
package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Handler executes one tool call with already schema-checked arguments.
type Handler func(ctx context.Context, args json.RawMessage) (any, error)

// Tool is one registered tool: a unique name, a typed parameter schema, and
// a handler.
type Tool struct {
	Name        string
	Description string
	InputSchema json.RawMessage

	compiled *jsonschema.Schema
	handler  Handler
}

// Descriptor is the wire shape served by tools/list.
type Descriptor struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// Registry holds the closed set of tools. It is built once at startup and
// read-only afterwards.
type Registry struct {
	tools map[string]*Tool
	order []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]*Tool)}
}

// Register compiles the tool's schema and adds it under its name. Duplicate
// names and broken schemas are programmer errors surfaced at startup.
func (r *Registry) Register(name, description string, schema json.RawMessage, h Handler) error {
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool %q already registered", name)
	}
	compiled, err := jsonschema.CompileString(name+".json", string(schema))
	if err != nil {
		return fmt.Errorf("compiling schema for tool %q: %w", name, err)
	}
	r.tools[name] = &Tool{
		Name:        name,
		Description: description,
		InputSchema: schema,
		compiled:    compiled,
		handler:     h,
	}
	r.order = append(r.order, name)
	return nil
}

// Lookup returns the named tool, or nil if unknown.
func (r *Registry) Lookup(name string) *Tool {
	return r.tools[name]
}

// Descriptors lists the registered tools in registration order.
func (r *Registry) Descriptors() []Descriptor {
	out := make([]Descriptor, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		out = append(out, Descriptor{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.InputSchema,
		})
	}
	return out
}

// checkSchema validates raw arguments against the tool's compiled schema.
func (t *Tool) checkSchema(args json.RawMessage) error {
	if args == nil {
		args = json.RawMessage(`{}`)
	}
	var v any
	if err := json.Unmarshal(args, &v); err != nil {
		return &InvalidParamsError{Tool: t.Name, Reason: "arguments are not valid JSON"}
	}
	if err := t.compiled.Validate(v); err != nil {
		return &InvalidParamsError{Tool: t.Name, Reason: err.Error()}
	}
	return nil
}
