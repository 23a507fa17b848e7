// Package model defines the provider-neutral Model interface, a deterministic
// MockModel for tests and examples, and the Generator adapter that turns any
// Model into the core.Generator the router and handlers consume.
//
// Provider implementations live in the openai and anthropic subpackages.
package model
