package toolcall

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/xeipuuv/gojsonschema"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/harun/studiobridge/internal/observability"
	"github.com/harun/studiobridge/internal/tracing"
	"github.com/harun/studiobridge/pkg/relay"
)

// Parameter defines a parameter for a tool
type Parameter struct {
	Name        string        `json:"name"`
	Type        string        `json:"type"` // string, number, integer, boolean, object, array, any
	Description string        `json:"description"`
	Required    bool          `json:"required"`
	Default     interface{}   `json:"default,omitempty"`
	Enum        []interface{} `json:"enum,omitempty"`
}

// ShapeFunc maps the raw plugin result into the tool's declared response
type ShapeFunc func(result map[string]interface{}) (interface{}, error)

// Definition defines a tool's metadata and result shaping
type Definition struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Parameters  []Parameter `json:"parameters"`
	Shape       ShapeFunc   `json:"-"` // nil means pass the result through
}

// ValidationError reports an argument shape mismatch, raised before any
// command record exists
type ValidationError struct {
	Tool    string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid arguments for %s: %s", e.Tool, e.Message)
}

// Registry maps tool names to definitions and drives the synchronous call
// contract over the relay queue. The relay stays tool-agnostic; everything
// tool-specific lives here.
type Registry struct {
	queue   *relay.Queue
	tools   map[string]*Definition
	schemas map[string]*gojsonschema.Schema
	order   []string // registration order, for stable listings
	mu      sync.RWMutex
}

// NewRegistry creates an empty tool registry bound to a relay queue
func NewRegistry(queue *relay.Queue) *Registry {
	return &Registry{
		queue:   queue,
		tools:   make(map[string]*Definition),
		schemas: make(map[string]*gojsonschema.Schema),
	}
}

// Register adds a tool definition
func (r *Registry) Register(def Definition) error {
	if err := validateDefinition(def); err != nil {
		return fmt.Errorf("invalid tool definition: %w", err)
	}

	schema, err := generateJSONSchema(def)
	if err != nil {
		return fmt.Errorf("failed to generate schema for %s: %w", def.Name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[def.Name]; exists {
		return fmt.Errorf("tool already registered: %s", def.Name)
	}

	r.tools[def.Name] = &def
	r.schemas[def.Name] = schema
	r.order = append(r.order, def.Name)

	log.Info().Str("tool", def.Name).Msg("Tool registered")
	return nil
}

// Get returns a tool definition by name
func (r *Registry) Get(name string) (*Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.tools[name]
	return def, ok
}

// List returns all definitions in registration order
func (r *Registry) List() []*Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]*Definition, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.tools[name])
	}
	return defs
}

// Count returns the number of registered tools
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Call runs the synchronous call contract: validate, enqueue, await, shape.
// All four error kinds (validation, execution, timeout, vanished) fail the
// call; none are retried here.
func (r *Registry) Call(ctx context.Context, name string, args map[string]interface{}) (interface{}, error) {
	startTime := time.Now()

	ctx, span := tracing.StartSpan(
		ctx,
		"studiobridge.toolcall",
		"toolcall.call",
		attribute.String("tool", name),
	)
	defer span.End()

	logger := tracing.LoggerFromContext(ctx, log.Logger)

	r.mu.RLock()
	def := r.tools[name]
	schema := r.schemas[name]
	r.mu.RUnlock()

	if def == nil {
		err := &ValidationError{Tool: name, Message: "unknown tool"}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if args == nil {
		args = make(map[string]interface{})
	}
	applyDefaults(def, args)

	if err := validateArgs(schema, args); err != nil {
		verr := &ValidationError{Tool: name, Message: err.Error()}
		logger.Debug().Str("tool", name).Err(err).Msg("Argument validation failed")
		span.RecordError(verr)
		span.SetStatus(codes.Error, verr.Error())
		observability.RecordToolCall(name, time.Since(startTime), false)
		return nil, verr
	}

	id := r.queue.Enqueue(name, args)
	ctx = tracing.WithCommandID(ctx, id)

	result, err := r.queue.Await(ctx, id, 0)

	duration := time.Since(startTime)
	if err != nil {
		observability.RecordToolCall(name, duration, false)
		observability.RecordCallAudit(ctx, name, "failure", map[string]interface{}{
			"command_id": id,
			"error":      err.Error(),
		})
		logger.Debug().
			Str("tool", name).
			Int64("commandId", id).
			Dur("duration", duration).
			Err(err).
			Msg("Tool call failed")
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	shaped := interface{}(result)
	if def.Shape != nil {
		shaped, err = def.Shape(result)
		if err != nil {
			observability.RecordToolCall(name, duration, false)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
	}

	observability.RecordToolCall(name, duration, true)
	observability.RecordCallAudit(ctx, name, "success", map[string]interface{}{
		"command_id": id,
	})

	logger.Debug().
		Str("tool", name).
		Int64("commandId", id).
		Dur("duration", duration).
		Msg("Tool call completed")

	return shaped, nil
}

// applyDefaults fills missing arguments that declare a default value
func applyDefaults(def *Definition, args map[string]interface{}) {
	for _, param := range def.Parameters {
		if param.Default == nil {
			continue
		}
		if _, present := args[param.Name]; !present {
			args[param.Name] = param.Default
		}
	}
}

// validateDefinition validates a tool definition
func validateDefinition(def Definition) error {
	if def.Name == "" {
		return fmt.Errorf("tool name cannot be empty")
	}
	if def.Description == "" {
		return fmt.Errorf("tool description cannot be empty")
	}

	validTypes := map[string]bool{
		"string": true, "number": true, "boolean": true,
		"object": true, "array": true, "integer": true,
		"any": true,
	}
	for _, param := range def.Parameters {
		if param.Name == "" {
			return fmt.Errorf("parameter name cannot be empty")
		}
		if !validTypes[param.Type] {
			return fmt.Errorf("invalid parameter type %s for %s", param.Type, param.Name)
		}
		if param.Description == "" {
			return fmt.Errorf("parameter description cannot be empty for %s", param.Name)
		}
	}

	return nil
}

// generateJSONSchema compiles the tool's parameter schema
func generateJSONSchema(def Definition) (*gojsonschema.Schema, error) {
	schemaLoader := gojsonschema.NewGoLoader(schemaDocument(def))
	schema, err := gojsonschema.NewSchema(schemaLoader)
	if err != nil {
		return nil, err
	}

	return schema, nil
}

// schemaDocument builds a JSON Schema document from tool parameters
func schemaDocument(def Definition) map[string]interface{} {
	schemaMap := map[string]interface{}{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           make(map[string]interface{}),
	}

	properties := schemaMap["properties"].(map[string]interface{})
	required := []string{}

	for _, param := range def.Parameters {
		paramSchema := map[string]interface{}{
			"description": param.Description,
		}
		// "any" accepts every JSON value, expressed by omitting "type"
		if param.Type != "any" {
			paramSchema["type"] = param.Type
		}
		if param.Default != nil {
			paramSchema["default"] = param.Default
		}
		if len(param.Enum) > 0 {
			paramSchema["enum"] = param.Enum
		}

		properties[param.Name] = paramSchema

		if param.Required {
			required = append(required, param.Name)
		}
	}

	if len(required) > 0 {
		schemaMap["required"] = required
	}

	return schemaMap
}

// validateArgs validates arguments against a generated schema
func validateArgs(schema *gojsonschema.Schema, args map[string]interface{}) error {
	if schema == nil {
		return nil
	}

	argsLoader := gojsonschema.NewGoLoader(args)
	result, err := schema.Validate(argsLoader)
	if err != nil {
		return err
	}

	if !result.Valid() {
		errs := []string{}
		for _, verr := range result.Errors() {
			errs = append(errs, verr.String())
		}
		return fmt.Errorf("validation errors: %v", errs)
	}

	return nil
}
