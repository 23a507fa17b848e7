// Package testutil contains helper builders and stubs used across tests to
// reduce boilerplate when constructing events, generators and dispatchers.
// They are not intended for production usage.
package testutil
