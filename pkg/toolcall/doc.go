// Package toolcall turns named tool requests into relay round trips.
//
// A Registry holds declarative tool definitions. Call validates the incoming
// arguments against the tool's generated JSON Schema, applies declared
// defaults, enqueues a command on the relay queue, awaits its resolution,
// and shapes the raw plugin result into the tool's response. Validation
// failures are reported before any command record is created.
package toolcall
