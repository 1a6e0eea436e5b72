// Package relay provides the in-memory command queue bridging synchronous
// tool calls to the poll-driven Roblox Studio plugin.
//
// Invariants:
// - Command ids are strictly increasing and never reused.
// - A pending command is claimed for dispatch exactly once, in creation order.
// - A command is removed from the live set when its awaiting caller observes
//   a terminal state (resolution or timeout); late resolutions are discarded.
//
// Usage:
//
//	queue := relay.New(relay.Options{})
//	id := queue.Enqueue("run_script", map[string]any{"code": "return 1"})
//	result, err := queue.Await(ctx, id, 0)
package relay
