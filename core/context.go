// Package core implements the client-facing state machines of the binding:
// Context (one server connection), Stream (one audio channel) and Operation
// (one in-flight request), on top of the mainloop, bridge and proto
// packages.
package core

import (
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/lisuiheng/pulse-go/bridge"
	"github.com/lisuiheng/pulse-go/compat"
	"github.com/lisuiheng/pulse-go/mainloop"
	"github.com/lisuiheng/pulse-go/proto"
)

// Context is one logical connection to the sound server. It owns every
// Operation it issues, every Stream bound to it and every callback
// registration it creates; all of them are released when the context
// reaches a terminal state. The context must not outlive the mainloop it
// was created against.
type Context struct {
	api   mainloop.API
	rt    proto.Runtime
	name  string
	log   *slog.Logger
	cset  compat.Set
	props proto.PropList

	// All bridged handlers of this context and its streams live here; the
	// runtime only ever sees tokens into it.
	reg *bridge.Registry[any]

	mu       sync.Mutex
	state    proto.ContextState
	errno    proto.ErrCode
	failErr  error
	stateH   func(proto.ContextState)
	stateReg *bridge.Registration[any]
	eventReg *bridge.Registration[any]
	ops      map[*Operation]struct{}
	streams  map[*Stream]struct{}
}

// ContextOption configures NewContext.
type ContextOption func(*Context)

// WithLogger sets the logger the context and its streams report through.
func WithLogger(log *slog.Logger) ContextOption {
	return func(c *Context) {
		if log != nil {
			c.log = log
		}
	}
}

// WithCompat overrides the build-selected protocol revision set. Intended
// for tests.
func WithCompat(set compat.Set) ContextOption {
	return func(c *Context) { c.cset = set }
}

// WithProperties attaches a client property list that is pushed to the
// server as soon as the connection reaches Ready.
func WithProperties(props proto.PropList) ContextOption {
	return func(c *Context) { c.props = props.Clone() }
}

// NewContext creates an unconnected context named name, running on api and
// speaking through rt.
func NewContext(api mainloop.API, rt proto.Runtime, name string, opts ...ContextOption) (*Context, error) {
	if api == nil || rt == nil {
		return nil, fmt.Errorf("mainloop API and runtime are required")
	}
	c := &Context{
		api:     api,
		rt:      rt,
		name:    name,
		log:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		cset:    compat.Active(),
		reg:     bridge.NewRegistry[any](),
		state:   proto.ContextUnconnected,
		ops:     make(map[*Operation]struct{}),
		streams: make(map[*Stream]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Name returns the application name the context was created with.
func (c *Context) Name() string { return c.name }

// Compat returns the protocol revision set the context consults.
func (c *Context) Compat() compat.Set { return c.cset }

// State returns the current connection state.
func (c *Context) State() proto.ContextState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Errno returns the native code of the most recent failure.
func (c *Context) Errno() proto.ErrCode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errno
}

// Err returns the failure that moved the context to Failed, or nil.
func (c *Context) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.failErr
}

// SetStateHandler replaces the state-change handler. The handler fires on
// the mainloop's dispatch context for every transition, with the new state.
func (c *Context) SetStateHandler(h func(proto.ContextState)) {
	c.mu.Lock()
	c.stateH = h
	c.mu.Unlock()
}

// PendingOperations reports how many issued operations have not resolved.
func (c *Context) PendingOperations() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.ops)
}

// Connect starts the handshake toward server (empty means the default
// server). Valid only in Unconnected; progress is reported through the
// state handler.
func (c *Context) Connect(server string, flags proto.ContextFlags) error {
	c.mu.Lock()
	if c.state != proto.ContextUnconnected {
		st := c.state
		c.mu.Unlock()
		return fmt.Errorf("connect in state %s: %w", st, ErrInvalidState)
	}
	c.stateReg = c.reg.Register(func(v any) {
		c.onStateChange(v.(proto.ContextState))
	})
	tok := c.stateReg.Token()
	c.mu.Unlock()

	c.rt.SetStateCallback(c.stateTramp, tok)
	if err := c.rt.Connect(server, flags); err != nil {
		c.mu.Lock()
		c.stateReg.Close()
		c.stateReg = nil
		c.mu.Unlock()
		return fmt.Errorf("connect: %w", err)
	}
	c.log.Info("connecting", "server", server, "name", c.name)
	return nil
}

// Disconnect tears the connection down immediately: every pending
// operation is cancelled, every stream is terminated, every callback
// registration is released, and the context reaches Terminated. Idempotent.
func (c *Context) Disconnect() {
	c.mu.Lock()
	if c.state == proto.ContextTerminated {
		c.mu.Unlock()
		return
	}
	c.state = proto.ContextTerminated
	ops, streams := c.takeOwnedLocked()
	regs := c.takeRegistrationsLocked()
	h := c.stateH
	c.mu.Unlock()

	for _, op := range ops {
		op.Cancel()
	}
	for _, s := range streams {
		s.contextClosed(proto.StreamTerminated)
	}
	c.rt.Disconnect()
	for _, r := range regs {
		r.Close()
	}
	c.log.Info("disconnected", "name", c.name)
	if h != nil {
		h(proto.ContextTerminated)
	}
}

// Drain completes once the server has processed everything issued so far.
func (c *Context) Drain(done func()) (*Operation, error) {
	c.mu.Lock()
	if err := c.checkReadyLocked("drain"); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	op, tok := c.newOpLocked(func(any) {
		if done != nil {
			done()
		}
	})
	c.mu.Unlock()

	c.rt.Drain(c.notifyTramp, tok)
	return op, nil
}

// UpdateProperties merges props into the client's property list on the
// server.
func (c *Context) UpdateProperties(props proto.PropList, done func(error)) (*Operation, error) {
	c.mu.Lock()
	if err := c.checkReadyLocked("update properties"); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	op, tok := c.newSuccessOpLocked(done)
	c.mu.Unlock()

	c.rt.UpdateProperties(props.Clone(), c.successTramp, tok)
	return op, nil
}

// onStateChange applies one server-reported transition. Runs on the
// mainloop dispatch context.
func (c *Context) onStateChange(st proto.ContextState) {
	c.mu.Lock()
	if c.state == proto.ContextTerminated {
		// Already torn down locally.
		c.mu.Unlock()
		return
	}
	c.state = st
	var ops []*Operation
	var streams []*Stream
	var regs []*bridge.Registration[any]
	if st == proto.ContextFailed {
		c.errno = c.rt.LastError()
		c.failErr = fmt.Errorf("%w: %s", ErrConnectionLost, c.errno)
		ops, streams = c.takeOwnedLocked()
		regs = c.takeRegistrationsLocked()
	}
	h := c.stateH
	c.mu.Unlock()

	c.log.Debug("context state", "name", c.name, "state", st)

	// The state handler observes the failure before anything is rejected
	// with ErrInvalidState.
	if h != nil {
		h(st)
	}
	for _, op := range ops {
		op.Cancel()
	}
	for _, s := range streams {
		s.contextClosed(proto.StreamFailed)
	}
	for _, r := range regs {
		r.Close()
	}

	if st == proto.ContextReady {
		c.pushProperties()
	}
}

// pushProperties sends the property list given at construction, if any.
func (c *Context) pushProperties() {
	c.mu.Lock()
	props := c.props
	if len(props) == 0 || c.state != proto.ContextReady {
		c.mu.Unlock()
		return
	}
	_, tok := c.newSuccessOpLocked(func(err error) {
		if err != nil {
			c.log.Warn("setting client properties failed", "name", c.name, "error", err)
		}
	})
	c.mu.Unlock()

	c.rt.UpdateProperties(props.Clone(), c.successTramp, tok)
}

func (c *Context) checkReadyLocked(what string) error {
	if c.state != proto.ContextReady {
		return fmt.Errorf("%s in state %s: %w", what, c.state, ErrInvalidState)
	}
	return nil
}

// takeOwnedLocked empties and returns the owned operation and stream sets.
func (c *Context) takeOwnedLocked() ([]*Operation, []*Stream) {
	ops := make([]*Operation, 0, len(c.ops))
	for op := range c.ops {
		ops = append(ops, op)
	}
	c.ops = make(map[*Operation]struct{})
	streams := make([]*Stream, 0, len(c.streams))
	for s := range c.streams {
		streams = append(streams, s)
	}
	c.streams = make(map[*Stream]struct{})
	return ops, streams
}

func (c *Context) takeRegistrationsLocked() []*bridge.Registration[any] {
	var regs []*bridge.Registration[any]
	if c.stateReg != nil {
		regs = append(regs, c.stateReg)
		c.stateReg = nil
	}
	if c.eventReg != nil {
		regs = append(regs, c.eventReg)
		c.eventReg = nil
	}
	return regs
}

// newOpLocked allocates an operation whose one-shot completion handler
// delivers v to deliver unless the operation was cancelled first.
func (c *Context) newOpLocked(deliver func(v any)) (*Operation, bridge.Token) {
	op := &Operation{ctx: c}
	op.reg = c.reg.RegisterOnce(func(v any) {
		if op.complete() {
			deliver(v)
		}
		c.removeOp(op)
	})
	c.ops[op] = struct{}{}
	return op, op.reg.Token()
}

// newSuccessOpLocked is newOpLocked for the common success/failure reply,
// translating a failed reply into a ServerError.
func (c *Context) newSuccessOpLocked(done func(error)) (*Operation, bridge.Token) {
	return c.newOpLocked(func(v any) {
		if done == nil {
			return
		}
		if v.(bool) {
			done(nil)
		} else {
			done(&ServerError{Code: c.rt.LastError()})
		}
	})
}

func (c *Context) removeOp(op *Operation) {
	c.mu.Lock()
	delete(c.ops, op)
	c.mu.Unlock()
}

func (c *Context) addStream(s *Stream) {
	c.mu.Lock()
	c.streams[s] = struct{}{}
	c.mu.Unlock()
}

func (c *Context) removeStream(s *Stream) {
	c.mu.Lock()
	delete(c.streams, s)
	c.mu.Unlock()
}

// liveRegistrations reports bridged handlers still registered. Used by
// tests to prove teardown leaves nothing behind.
func (c *Context) liveRegistrations() int { return c.reg.Len() }

// Trampolines: the fixed entry points handed to the runtime together with
// a token. They only resolve the token; ownership stays in c.reg.

func (c *Context) stateTramp(tok bridge.Token, st proto.ContextState) {
	c.reg.Dispatch(tok, st)
}

func (c *Context) successTramp(tok bridge.Token, ok bool) {
	c.reg.Dispatch(tok, ok)
}

func (c *Context) notifyTramp(tok bridge.Token) {
	c.reg.Dispatch(tok, nil)
}
