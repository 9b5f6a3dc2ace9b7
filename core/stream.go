package core

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/lisuiheng/pulse-go/bridge"
	"github.com/lisuiheng/pulse-go/compat"
	"github.com/lisuiheng/pulse-go/proto"
)

// Stream is one directional audio channel bound to a Ready context. Its
// lifetime is strictly nested inside the owning context's Ready period: the
// context terminates or fails every bound stream when it leaves Ready.
type Stream struct {
	ctx  *Context
	h    proto.StreamHandle
	name string
	spec proto.SampleSpec
	cm   proto.ChannelMap
	log  *slog.Logger

	// autoResume uncorks the stream after an underflow. Off by default:
	// the binding delivers the underflow event and takes no action, which
	// matches the native client library. Recovery policy differs between
	// server versions, so it is an option rather than a fixed behavior.
	autoResume bool

	mu       sync.Mutex
	state    proto.StreamState
	dir      proto.Direction
	writable uint32
	attr     proto.BufferAttr
	stateH   func(proto.StreamState)
	writeH   func(nbytes uint32)
	readH    func(nbytes uint32)
	underH   func()
	overH    func()
	regs     []*bridge.Registration[any]
}

// StreamOption configures NewStream.
type StreamOption func(*Stream)

// WithChannelMap sets an explicit channel map. It must match the sample
// spec's channel count.
func WithChannelMap(cm proto.ChannelMap) StreamOption {
	return func(s *Stream) { s.cm = cm }
}

// WithStreamLogger sets the stream's logger.
func WithStreamLogger(log *slog.Logger) StreamOption {
	return func(s *Stream) {
		if log != nil {
			s.log = log
		}
	}
}

// WithAutoResume makes the stream uncork itself after an underflow.
func WithAutoResume(enabled bool) StreamOption {
	return func(s *Stream) { s.autoResume = enabled }
}

// NewStream allocates an unconnected stream on ctx. The sample spec fixes
// the interpretation of every buffer crossing this stream for its whole
// lifetime. ctx must be Ready.
func NewStream(ctx *Context, name string, spec proto.SampleSpec, opts ...StreamOption) (*Stream, error) {
	if !spec.Valid() {
		return nil, fmt.Errorf("%s: %w", spec, ErrInvalidSpec)
	}
	s := &Stream{
		ctx:   ctx,
		name:  name,
		spec:  spec,
		log:   ctx.log,
		state: proto.StreamUnconnected,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cm == nil {
		s.cm = proto.DefaultChannelMap(spec.Channels)
	}
	if s.cm != nil && !s.cm.Compatible(spec) {
		return nil, fmt.Errorf("channel map does not match %s: %w", spec, ErrInvalidSpec)
	}

	ctx.mu.Lock()
	if err := ctx.checkReadyLocked("create stream"); err != nil {
		ctx.mu.Unlock()
		return nil, err
	}
	ctx.mu.Unlock()

	h, err := ctx.rt.NewStream(name, spec, s.cm)
	if err != nil {
		return nil, fmt.Errorf("new stream: %w", err)
	}
	s.h = h
	s.register()
	ctx.addStream(s)
	return s, nil
}

// register wires every persistent stream callback through the context's
// bridge registry.
func (s *Stream) register() {
	reg := s.ctx.reg

	stateReg := reg.Register(func(v any) { s.onStateChange(v.(proto.StreamState)) })
	s.h.SetStateCallback(func(tok bridge.Token, st proto.StreamState) {
		reg.Dispatch(tok, st)
	}, stateReg.Token())

	writeReg := reg.Register(func(v any) { s.onWriteRequest(v.(uint32)) })
	s.h.SetWriteCallback(func(tok bridge.Token, n uint32) {
		reg.Dispatch(tok, n)
	}, writeReg.Token())

	readReg := reg.Register(func(v any) { s.onReadRequest(v.(uint32)) })
	s.h.SetReadCallback(func(tok bridge.Token, n uint32) {
		reg.Dispatch(tok, n)
	}, readReg.Token())

	underReg := reg.Register(func(any) { s.onUnderflow() })
	s.h.SetUnderflowCallback(func(tok bridge.Token) {
		reg.Dispatch(tok, nil)
	}, underReg.Token())

	overReg := reg.Register(func(any) { s.onOverflow() })
	s.h.SetOverflowCallback(func(tok bridge.Token) {
		reg.Dispatch(tok, nil)
	}, overReg.Token())

	s.mu.Lock()
	s.regs = []*bridge.Registration[any]{stateReg, writeReg, readReg, underReg, overReg}
	s.mu.Unlock()
}

// Name returns the stream name.
func (s *Stream) Name() string { return s.name }

// SampleSpec returns the spec fixed at creation.
func (s *Stream) SampleSpec() proto.SampleSpec { return s.spec }

// Direction is meaningful once the stream has been connected.
func (s *Stream) Direction() proto.Direction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dir
}

// State returns the current lifecycle state.
func (s *Stream) State() proto.StreamState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// NegotiatedAttr returns the buffering metrics the server chose. Valid
// once the stream is Ready.
func (s *Stream) NegotiatedAttr() proto.BufferAttr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attr
}

// SetStateHandler replaces the state-change handler.
func (s *Stream) SetStateHandler(h func(proto.StreamState)) {
	s.mu.Lock()
	s.stateH = h
	s.mu.Unlock()
}

// SetWriteHandler replaces the write-ready handler. nbytes is the
// additional capacity the server just advertised.
func (s *Stream) SetWriteHandler(h func(nbytes uint32)) {
	s.mu.Lock()
	s.writeH = h
	s.mu.Unlock()
}

// SetReadHandler replaces the read-ready handler.
func (s *Stream) SetReadHandler(h func(nbytes uint32)) {
	s.mu.Lock()
	s.readH = h
	s.mu.Unlock()
}

// SetUnderflowHandler replaces the underflow handler.
func (s *Stream) SetUnderflowHandler(h func()) {
	s.mu.Lock()
	s.underH = h
	s.mu.Unlock()
}

// SetOverflowHandler replaces the overflow handler.
func (s *Stream) SetOverflowHandler(h func()) {
	s.mu.Lock()
	s.overH = h
	s.mu.Unlock()
}

// ConnectPlayback binds the stream to a sink (empty device means the
// server default) and starts the creation handshake. attr is advisory; nil
// leaves everything to the server.
func (s *Stream) ConnectPlayback(device string, attr *proto.BufferAttr, flags proto.StreamFlags) error {
	return s.connect(proto.DirectionPlayback, device, attr, flags)
}

// ConnectRecord binds the stream to a source and starts the creation
// handshake.
func (s *Stream) ConnectRecord(device string, attr *proto.BufferAttr, flags proto.StreamFlags) error {
	return s.connect(proto.DirectionRecord, device, attr, flags)
}

func (s *Stream) connect(dir proto.Direction, device string, attr *proto.BufferAttr, flags proto.StreamFlags) error {
	if st := s.ctx.State(); st != proto.ContextReady {
		return fmt.Errorf("connect stream with context %s: %w", st, ErrInvalidState)
	}
	s.mu.Lock()
	if s.state != proto.StreamUnconnected {
		st := s.state
		s.mu.Unlock()
		return fmt.Errorf("connect stream in state %s: %w", st, ErrInvalidState)
	}
	s.dir = dir
	s.mu.Unlock()

	if attr == nil {
		a := proto.DefaultBufferAttr()
		attr = &a
	}
	var err error
	if dir == proto.DirectionPlayback {
		err = s.h.ConnectPlayback(device, attr, flags)
	} else {
		err = s.h.ConnectRecord(device, attr, flags)
	}
	if err != nil {
		return fmt.Errorf("connect %s stream: %w", dir, err)
	}
	s.log.Info("stream connecting", "stream", s.name, "direction", dir, "spec", s.spec)
	return nil
}

// Disconnect terminates the stream and releases its registrations.
// Idempotent.
func (s *Stream) Disconnect() {
	s.mu.Lock()
	if s.state == proto.StreamTerminated || s.state == proto.StreamFailed {
		s.mu.Unlock()
		return
	}
	s.state = proto.StreamTerminated
	h := s.stateH
	regs := s.regs
	s.regs = nil
	s.mu.Unlock()

	s.h.Disconnect()
	if h != nil {
		h(proto.StreamTerminated)
	}
	for _, r := range regs {
		r.Close()
	}
	s.ctx.removeStream(s)
	s.log.Info("stream disconnected", "stream", s.name)
}

// Drain resolves once the server has played everything written so far.
// Draining does not change the stream state; disconnect explicitly when
// done.
func (s *Stream) Drain(done func(error)) (*Operation, error) {
	if err := s.checkReady(); err != nil {
		return nil, err
	}
	s.ctx.mu.Lock()
	op, tok := s.ctx.newSuccessOpLocked(done)
	s.ctx.mu.Unlock()
	s.h.Drain(s.ctx.successTramp, tok)
	return op, nil
}

// Cork pauses (true) or resumes (false) the stream.
func (s *Stream) Cork(cork bool, done func(error)) (*Operation, error) {
	if err := s.checkReady(); err != nil {
		return nil, err
	}
	s.ctx.mu.Lock()
	op, tok := s.ctx.newSuccessOpLocked(done)
	s.ctx.mu.Unlock()
	s.h.Cork(cork, s.ctx.successTramp, tok)
	return op, nil
}

// Flush discards everything buffered server-side for this stream.
func (s *Stream) Flush(done func(error)) (*Operation, error) {
	if err := s.checkReady(); err != nil {
		return nil, err
	}
	s.ctx.mu.Lock()
	op, tok := s.ctx.newSuccessOpLocked(done)
	s.ctx.mu.Unlock()
	s.h.Flush(s.ctx.successTramp, tok)
	return op, nil
}

// UpdateSampleRate changes the stream rate on the fly. Fails with
// ErrUnsupportedByVersion when the selected protocol revision predates the
// capability.
func (s *Stream) UpdateSampleRate(rate uint32, done func(error)) (*Operation, error) {
	if err := s.ctx.cset.Require(compat.FeatureSampleRateAdjust); err != nil {
		return nil, err
	}
	if rate == 0 || rate > proto.RateMax {
		return nil, fmt.Errorf("rate %d: %w", rate, ErrInvalidSpec)
	}
	if err := s.checkReady(); err != nil {
		return nil, err
	}
	s.ctx.mu.Lock()
	op, tok := s.ctx.newSuccessOpLocked(done)
	s.ctx.mu.Unlock()
	s.h.UpdateSampleRate(rate, s.ctx.successTramp, tok)
	return op, nil
}

func (s *Stream) checkReady() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != proto.StreamReady {
		return fmt.Errorf("stream in state %s: %w", s.state, ErrInvalidState)
	}
	return nil
}

// onStateChange applies one server-reported stream transition.
func (s *Stream) onStateChange(st proto.StreamState) {
	s.mu.Lock()
	if s.state == proto.StreamTerminated {
		s.mu.Unlock()
		return
	}
	s.state = st
	if st == proto.StreamReady {
		s.attr = s.h.NegotiatedAttr()
	}
	h := s.stateH
	var regs []*bridge.Registration[any]
	if st == proto.StreamFailed || st == proto.StreamTerminated {
		regs = s.regs
		s.regs = nil
	}
	s.mu.Unlock()

	s.log.Debug("stream state", "stream", s.name, "state", st)
	if h != nil {
		h(st)
	}
	for _, r := range regs {
		r.Close()
	}
	if regs != nil {
		s.ctx.removeStream(s)
	}
}

// contextClosed propagates a context exit from Ready down to the stream.
func (s *Stream) contextClosed(st proto.StreamState) {
	s.mu.Lock()
	if s.state == proto.StreamTerminated || s.state == proto.StreamFailed {
		s.mu.Unlock()
		return
	}
	s.state = st
	h := s.stateH
	regs := s.regs
	s.regs = nil
	s.mu.Unlock()

	if h != nil {
		h(st)
	}
	for _, r := range regs {
		r.Close()
	}
}
