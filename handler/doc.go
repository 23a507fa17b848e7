// Package handler provides the Handler implementations a router delegates
// to. Specialist binds a name and description to an ordered set of actions
// and optionally a Generator for requests no action covers; FuncHandler
// wraps a plain function.
package handler
