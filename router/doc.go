// Package router implements the coordinator that classifies a request
// against the handler registry and drives the delegated turn.
//
// Classification makes a single Generator call. The prompt lists every
// registered handler in registration order and the answer is parsed as
// follows:
//
//   - a registered handler name selects that handler
//   - CLARIFY, optionally followed by a message (separated by ":", "-" or
//     a space), asks for clarification
//   - a single unknown name asks for clarification (reason unknown_handler)
//   - anything else asks for clarification (reason ambiguous)
//
// The router performs no secondary scoring and enforces no timeout of its
// own; the caller's context is propagated to the generator and handlers.
package router
