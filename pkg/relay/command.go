package relay

import (
	"errors"
	"time"
)

// Status tracks a command record through its lifecycle
type Status string

const (
	// StatusPending means the command is created but not yet claimed
	StatusPending Status = "pending"
	// StatusSent means the dispatch endpoint claimed the command
	StatusSent Status = "sent"
	// StatusDone means a result or error is attached
	StatusDone Status = "done"
)

// Outcome is a command's terminal result: either a payload or an error string
type Outcome struct {
	Result map[string]interface{}
	Err    string
}

// Dispatch is the claim-for-dispatch view of a command, serialized to the plugin
type Dispatch struct {
	ID   int64                  `json:"id"`
	Tool string                 `json:"tool"`
	Args map[string]interface{} `json:"args"`
}

// command is the live record owned by the queue
type command struct {
	id         int64
	tool       string
	args       map[string]interface{}
	status     Status
	outcome    Outcome
	enqueuedAt time.Time
	done       chan struct{} // closed exactly once, when the command resolves
}

// ErrTimeout is returned when the plugin never posts a completion in time.
var ErrTimeout = errors.New("no response from Roblox Studio: is the companion plugin running?")

// ErrVanished is returned when a command disappears from the live set without
// resolving. This should not happen in correct operation.
var ErrVanished = errors.New("command vanished from the relay queue before it was resolved")

// ExecutionError carries a failure reported by the Studio plugin, verbatim.
type ExecutionError struct {
	Message string
}

func (e *ExecutionError) Error() string {
	return e.Message
}
