// Package core provides the foundational domain types, interfaces and execution
// contexts used by agentroute. It defines the core abstractions for:
//
//   - Handlers (named specialists a request can be delegated to)
//   - Generators (the external text decision service used for routing)
//   - Events and Turns (immutable records of a single request's processing)
//   - Sessions (ordered turn history keyed by app, user and session id)
//   - TurnContext / ToolContext (scoped execution passed to handlers and actions)
//
// The package keeps implementation concerns (persistence, routing policy,
// concrete handlers) out of scope and exposes small interfaces so backends
// and providers can be swapped independently.
package core
