// Package runner drives a single routing turn to completion.
//
// A Runner sits between callers and a core.Dispatcher (normally the
// router). For each request it
//   - checks the session exists
//   - dispatches the request and consumes the event stream
//   - stops at the first final event, ignoring anything produced after it
//   - appends the whole turn to the session store in one step
//
// A stream that ends without a final event yields the sentinel text
// "Agent did not produce a final response." and core.ErrNoFinalResponse.
// Submit wraps Run for callers that only want text.
package runner
