// Package tool provides the tool registry and execution infrastructure for
// run execution.
//
// A Registry maps tool names to definitions and, for locally executable
// tools, to handlers. Tools registered without a handler are external: the
// engine surfaces their calls as required tool actions and waits for the
// caller to submit outputs.
//
// Define tool arguments as a struct with tags, then use Func for automatic
// schema generation:
//
//	type WeatherArgs struct {
//	    Location string `json:"location" desc:"City name" required:"true"`
//	    Unit     string `json:"unit" desc:"Temperature unit" enum:"celsius,fahrenheit"`
//	}
//
//	registry := tool.NewRegistry().Add(
//	    tool.Func("get_weather", "Get current weather",
//	        func(ctx context.Context, args WeatherArgs) (string, error) {
//	            return fmt.Sprintf(`{"temp": 72, "location": %q}`, args.Location), nil
//	        }),
//	)
//
// Supported struct tags for schema generation: json (field name), desc
// (description), required ("true" adds the field to the required list), and
// enum (comma-separated allowed values for string fields).
//
// The Executor wraps registry handlers with per-call timeouts and retry on
// failure, producing an Execution report per call.
package tool
