// Package relay provides the shared domain types for the relay run
// execution server: runs, threads, messages, tools, and the unified
// provider request/response contract.
//
// relay exposes an OpenAI-Assistants-compatible API where a client creates
// a conversational run and the server drives it through model inference,
// tool invocation, and completion. The root package holds data types and
// the run state machine; orchestration lives in the engine package,
// transport in server and stream, and inference adapters under provider.
//
// # Architecture
//
//   - relay (this package): domain types and the error taxonomy
//   - provider: unified inference contract + Anthropic/OpenAI/Google adapters
//   - tool: name-keyed registry with validated, retried, timed execution
//   - engine: the run state machine and tool calling flow
//   - stream: live event streaming (SSE or JSON lines) with heartbeats
//   - store: run/thread/message persistence (memory and SQLite)
//   - server: the HTTP boundary (echo)
//
// # Basic usage
//
//	st := store.NewMemory()
//	eng := engine.New(st, st, prov, registry)
//	run, err := eng.ExecuteRun(ctx, threadID, runID)
package relay
