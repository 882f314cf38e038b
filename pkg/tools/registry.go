package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/comigor/campbot/internal/chat"
	"github.com/comigor/campbot/internal/logger"
)

var emptyObjectSchema = json.RawMessage(`{"type":"object","properties":{}}`)

// Registry is the fixed catalog of tools offered to the model.
type Registry struct {
	tools    map[string]Tool
	order    []string
	timeout  time.Duration
	timeouts map[string]time.Duration
}

// NewRegistry creates a Registry. Each Execute runs under timeout when it is
// positive.
func NewRegistry(timeout time.Duration, tools ...Tool) *Registry {
	r := &Registry{
		tools:    make(map[string]Tool, len(tools)),
		timeout:  timeout,
		timeouts: map[string]time.Duration{},
	}
	for _, t := range tools {
		r.Register(t)
	}
	return r
}

// Register registers a new tool, replacing any tool with the same name.
func (r *Registry) Register(tool Tool) {
	name := tool.Definition().Name
	if _, exists := r.tools[name]; !exists {
		r.order = append(r.order, name)
	}
	r.tools[name] = tool
}

// SetTimeout bounds calls to one tool with d instead of the registry default.
// Call it before the registry is in use.
func (r *Registry) SetTimeout(name string, d time.Duration) {
	r.timeouts[name] = d
}

func (r *Registry) timeoutFor(name string) time.Duration {
	if d, ok := r.timeouts[name]; ok && d > 0 {
		return d
	}
	return r.timeout
}

// Get retrieves a tool by name
func (r *Registry) Get(name string) (Tool, error) {
	tool, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("tool not found: %s", name)
	}
	return tool, nil
}

// List returns all registered tools in registration order.
func (r *Registry) List() []Tool {
	ts := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		ts = append(ts, r.tools[name])
	}
	return ts
}

// Definitions describes every tool for the model.
func (r *Registry) Definitions() []chat.ToolDefinition {
	defs := make([]chat.ToolDefinition, 0, len(r.order))
	for _, t := range r.List() {
		def := t.Definition()
		schema := emptyObjectSchema
		if len(def.InputSchema.Properties) > 0 {
			b, err := json.Marshal(def.InputSchema)
			if err != nil {
				logger.L.Error("marshal tool schema", "tool", def.Name, "error", err)
			} else {
				schema = b
			}
		}
		defs = append(defs, chat.ToolDefinition{Name: def.Name, Description: def.Description, Schema: schema})
	}
	return defs
}

// Execute runs a tool call and always returns a well-formed result: unknown
// tools, contract violations and gateway failures become error payloads.
func (r *Registry) Execute(ctx context.Context, call chat.ToolCall) chat.ToolResult {
	res := chat.ToolResult{CallID: call.ID, Name: call.Name}
	log := logger.L.With("tool", call.Name, "call_id", call.ID)

	fail := func(p ErrorPayload) chat.ToolResult {
		res.Payload = p.marshal()
		res.IsError = true
		return res
	}

	tool, ok := r.tools[call.Name]
	if !ok {
		log.Warn("unknown tool requested")
		return fail(ErrorPayload{Code: CodeUnknownTool, Message: fmt.Sprintf("Outil inconnu: %s", call.Name)})
	}

	input, args, err := normalizeInput(call.Input)
	if err == nil {
		err = validate(tool.Definition().InputSchema, args)
	}
	if err != nil {
		log.Info("tool input rejected", "error", err)
		return fail(ErrorPayload{Code: CodeInvalidInput, Message: err.Error()})
	}

	if timeout := r.timeoutFor(call.Name); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	out, err := tool.Run(ctx, input)
	if err != nil {
		p := classify(err)
		log.Warn("tool failed", "code", p.Code, "error", err, "elapsed", time.Since(start))
		return fail(p)
	}

	payload, err := json.Marshal(out)
	if err != nil {
		log.Error("marshal tool result", "error", err)
		return fail(ErrorPayload{Code: CodeUpstreamError, Message: "Résultat illisible."})
	}
	log.Debug("tool executed", "elapsed", time.Since(start))
	res.Payload = payload
	return res
}
