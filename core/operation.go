package core

import (
	"sync"

	"github.com/lisuiheng/pulse-go/bridge"
)

// OperationState is the lifecycle of one asynchronous request.
type OperationState int

const (
	OperationRunning OperationState = iota
	OperationDone
	OperationCancelled
)

func (s OperationState) String() string {
	switch s {
	case OperationRunning:
		return "running"
	case OperationDone:
		return "done"
	case OperationCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Operation is a cancellable handle to one in-flight asynchronous request
// issued against a context or stream. The issuing context owns it; the
// application holds a non-owning reference usable only to observe and
// cancel.
type Operation struct {
	ctx *Context
	reg *bridge.Registration[any]

	mu    sync.Mutex
	state OperationState
}

// State returns the current lifecycle state.
func (o *Operation) State() OperationState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Cancel suppresses local delivery of the completion handler. It does not
// abort the in-flight native request. Cancelling a finished or already
// cancelled operation is a no-op; across any race with completion the
// handler fires at most once.
func (o *Operation) Cancel() {
	o.mu.Lock()
	if o.state != OperationRunning {
		o.mu.Unlock()
		return
	}
	o.state = OperationCancelled
	o.mu.Unlock()

	o.reg.Close()
	o.ctx.removeOp(o)
}

// complete claims the transition to Done. It reports false if the
// operation was cancelled first, in which case the caller must not deliver.
func (o *Operation) complete() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state != OperationRunning {
		return false
	}
	o.state = OperationDone
	return true
}
