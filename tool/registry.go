package tool

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/relayforge/relay"
)

// registeredTool combines a tool definition with its handler.
type registeredTool struct {
	tool       relay.Tool
	handler    Handler
	validator  Validator
	isExternal bool // external tools have no local handler
}

// Registry manages registered tools and their handlers.
// It is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]registeredTool
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]registeredTool),
	}
}

// Register adds a tool with its handler to the registry.
// Returns an error if a tool with the same name is already registered.
func (r *Registry) Register(t relay.Tool, handler Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[t.Name]; exists {
		return &ErrToolAlreadyRegistered{Name: t.Name}
	}

	r.tools[t.Name] = registeredTool{
		tool:    t,
		handler: handler,
	}
	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(t relay.Tool, handler Handler) {
	if err := r.Register(t, handler); err != nil {
		panic(err)
	}
}

// RegisterExternal registers a tool definition without a handler. External
// tools are executed by the API consumer: when a run calls one, the engine
// pauses with required tool actions instead of executing locally.
func (r *Registry) RegisterExternal(t relay.Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[t.Name]; exists {
		return &ErrToolAlreadyRegistered{Name: t.Name}
	}

	r.tools[t.Name] = registeredTool{
		tool:       t,
		isExternal: true,
	}
	return nil
}

// RegisterExternals registers multiple external tool definitions.
func (r *Registry) RegisterExternals(tools []relay.Tool) error {
	for _, t := range tools {
		if err := r.RegisterExternal(t); err != nil {
			return err
		}
	}
	return nil
}

// IsExternal returns true if the named tool has no local handler.
func (r *Registry) IsExternal(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rt, ok := r.tools[name]
	return ok && rt.isExternal
}

// Unregister removes a tool from the registry.
// It is a no-op if the tool is not registered.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tools, name)
}

// Get retrieves a handler by tool name.
// Returns the handler and true if found, or nil and false if not found.
func (r *Registry) Get(name string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rt, ok := r.tools[name]
	if !ok {
		return nil, false
	}
	return rt.handler, true
}

// GetTool retrieves a tool definition by name.
func (r *Registry) GetTool(name string) (relay.Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rt, ok := r.tools[name]
	if !ok {
		return relay.Tool{}, false
	}
	return rt.tool, true
}

// Tools returns all registered tool definitions, for handing to a provider.
func (r *Registry) Tools() []relay.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make([]relay.Tool, 0, len(r.tools))
	for _, rt := range r.tools {
		tools = append(tools, rt.tool)
	}
	return tools
}

// Names returns the names of all registered tools.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	return names
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// RegisterFunc registers a tool with a typed handler that automatically
// unmarshals the arguments JSON into T.
//
// Example:
//
//	type SearchArgs struct {
//	    Query string `json:"query" desc:"Search query" required:"true"`
//	}
//
//	tool.RegisterFunc(registry, "search", "Search the web",
//	    func(ctx context.Context, args SearchArgs) (string, error) {
//	        return doSearch(args.Query), nil
//	    },
//	)
func RegisterFunc[T any](r *Registry, name, description string, fn TypedHandler[T]) error {
	schema, err := SchemaFor[T]()
	if err != nil {
		return err
	}

	t := relay.Tool{
		Name:        name,
		Description: description,
		Parameters:  schema,
	}

	return r.Register(t, typedHandler(fn))
}

// MustRegisterFunc is like RegisterFunc but panics on error.
func MustRegisterFunc[T any](r *Registry, name, description string, fn TypedHandler[T]) {
	if err := RegisterFunc(r, name, description, fn); err != nil {
		panic(err)
	}
}

func typedHandler[T any](fn TypedHandler[T]) Handler {
	return func(ctx context.Context, call relay.ToolCall) (string, error) {
		var args T
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			return "", err
		}
		return fn(ctx, args)
	}
}

// Execute runs the handler for a tool call once, without retry or timeout.
// If the tool is not found, returns ErrToolNotFound. If the tool is
// external, returns ErrExternalTool. Handler errors are captured in
// ToolResult.IsError with the message as content, so the model can recover.
func (r *Registry) Execute(ctx context.Context, call relay.ToolCall) (relay.ToolResult, error) {
	r.mu.RLock()
	rt, ok := r.tools[call.Name]
	r.mu.RUnlock()

	if !ok {
		return relay.ToolResult{}, &ErrToolNotFound{Name: call.Name}
	}

	if rt.isExternal {
		return relay.ToolResult{}, &ErrExternalTool{Name: call.Name}
	}

	content, err := rt.handler(ctx, call)
	if err != nil {
		return relay.ToolResult{
			ToolCallID: call.ID,
			Content:    err.Error(),
			IsError:    true,
		}, nil
	}

	return relay.ToolResult{
		ToolCallID: call.ID,
		Content:    content,
	}, nil
}

// Validator returns the argument validator registered for a tool, or nil.
func (r *Registry) Validator(name string) Validator {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tools[name].validator
}

// Registration holds a tool and its handler for fluent registration.
type Registration struct {
	Tool      relay.Tool
	Handler   Handler
	Validator Validator
}

// Validate attaches an argument validator to the registration.
func (reg Registration) Validate(v Validator) Registration {
	reg.Validator = v
	return reg
}

// Func creates a Registration with automatic schema generation from the
// typed handler. Panics if schema generation fails.
//
// Example:
//
//	registry := tool.NewRegistry().Add(
//	    tool.Func("weather", "Get weather", func(ctx context.Context, args WeatherArgs) (string, error) {
//	        return getWeather(args.Location), nil
//	    }),
//	)
func Func[T any](name, description string, fn TypedHandler[T]) Registration {
	return Registration{
		Tool: relay.Tool{
			Name:        name,
			Description: description,
			Parameters:  MustSchemaFor[T](),
		},
		Handler: typedHandler(fn),
	}
}

// WithHandler creates a Registration from a Handler and schema.
// Use this when you have a pre-built Handler implementation.
func WithHandler(name, description string, schema json.RawMessage, h Handler) Registration {
	return Registration{
		Tool: relay.Tool{
			Name:        name,
			Description: description,
			Parameters:  schema,
		},
		Handler: h,
	}
}

// WithTool creates a Registration from an existing Tool and Handler.
func WithTool(t relay.Tool, h Handler) Registration {
	return Registration{Tool: t, Handler: h}
}

// External creates a Registration for a tool with no local handler.
func External(t relay.Tool) Registration {
	return Registration{Tool: t}
}

// Add registers one or more tools to the registry. Registrations with a nil
// handler are registered as external tools. Panics if any tool is already
// registered. Returns the registry for fluent chaining.
func (r *Registry) Add(regs ...Registration) *Registry {
	for _, reg := range regs {
		if reg.Handler == nil {
			if err := r.RegisterExternal(reg.Tool); err != nil {
				panic(err)
			}
			continue
		}
		r.MustRegister(reg.Tool, reg.Handler)
		if reg.Validator != nil {
			r.mu.Lock()
			rt := r.tools[reg.Tool.Name]
			rt.validator = reg.Validator
			r.tools[reg.Tool.Name] = rt
			r.mu.Unlock()
		}
	}
	return r
}
