package core

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lisuiheng/pulse-go/emul"
	"github.com/lisuiheng/pulse-go/mainloop"
	"github.com/lisuiheng/pulse-go/proto"
)

// rig wires a mainloop, an emulated server and a context together for one
// test. The loop is pumped manually so every assertion runs between
// dispatch rounds.
type rig struct {
	t   *testing.T
	ml  *mainloop.Mainloop
	srv *emul.Server
	ctx *Context
}

func newRig(t *testing.T, opts ...ContextOption) *rig {
	t.Helper()
	ml, err := mainloop.New()
	require.NoError(t, err)
	t.Cleanup(ml.Close)

	srv := emul.New(ml, nil)
	ctx, err := NewContext(ml, srv, "rig", opts...)
	require.NoError(t, err)
	return &rig{t: t, ml: ml, srv: srv, ctx: ctx}
}

// pump iterates the loop without blocking until cond holds.
func (r *rig) pump(cond func() bool) {
	r.t.Helper()
	for i := 0; i < 200; i++ {
		if cond() {
			return
		}
		_, err := r.ml.Iterate(false)
		require.NoError(r.t, err)
	}
	r.t.Fatal("condition not reached within bounded iterations")
}

func (r *rig) connect() {
	r.t.Helper()
	require.NoError(r.t, r.ctx.Connect("", proto.ContextNoFlags))
	r.pump(func() bool { return r.ctx.State() == proto.ContextReady })
}

func TestConnectWalksHandshakeStates(t *testing.T) {
	r := newRig(t)

	var seen []proto.ContextState
	r.ctx.SetStateHandler(func(st proto.ContextState) {
		seen = append(seen, st)
	})

	require.NoError(t, r.ctx.Connect("", proto.ContextNoFlags))
	r.pump(func() bool { return r.ctx.State() == proto.ContextReady })

	assert.Equal(t, []proto.ContextState{
		proto.ContextConnecting,
		proto.ContextAuthorizing,
		proto.ContextSettingName,
		proto.ContextReady,
	}, seen)
}

func TestConnectOnlyFromUnconnected(t *testing.T) {
	r := newRig(t)
	r.connect()

	err := r.ctx.Connect("", proto.ContextNoFlags)
	require.ErrorIs(t, err, ErrInvalidState)
}

func TestConnectFailureReportsCode(t *testing.T) {
	r := newRig(t)
	r.srv.FailConnect(proto.ErrAccess)

	var seen []proto.ContextState
	r.ctx.SetStateHandler(func(st proto.ContextState) { seen = append(seen, st) })

	require.NoError(t, r.ctx.Connect("", proto.ContextNoFlags))
	r.pump(func() bool { return r.ctx.State() == proto.ContextFailed })

	assert.Equal(t, proto.ErrAccess, r.ctx.Errno())
	require.ErrorIs(t, r.ctx.Err(), ErrConnectionLost)
	assert.Contains(t, seen, proto.ContextFailed)
}

func TestOperationsRequireReady(t *testing.T) {
	r := newRig(t)

	_, err := r.ctx.GetServerInfo(nil)
	require.ErrorIs(t, err, ErrInvalidState)
	_, err = r.ctx.GetSinkInfoList(nil)
	require.ErrorIs(t, err, ErrInvalidState)
	_, err = r.ctx.SetSinkMute(0, true, nil)
	require.ErrorIs(t, err, ErrInvalidState)
	_, err = r.ctx.Subscribe(proto.SubscriptionMaskAll, nil, nil)
	require.ErrorIs(t, err, ErrInvalidState)
	_, err = r.ctx.Drain(nil)
	require.ErrorIs(t, err, ErrInvalidState)

	// A rejected request never reaches the native side.
	assert.Zero(t, r.srv.Calls("GetServerInfo"))
	assert.Zero(t, r.srv.Calls("GetSinkInfoList"))
	assert.Zero(t, r.srv.Calls("SetSinkMute"))
	assert.Zero(t, r.srv.Calls("Subscribe"))
	assert.Zero(t, r.srv.Calls("Drain"))
}

func TestGetServerInfo(t *testing.T) {
	r := newRig(t)
	r.connect()

	var info *proto.ServerInfo
	op, err := r.ctx.GetServerInfo(func(si *proto.ServerInfo) { info = si })
	require.NoError(t, err)
	r.pump(func() bool { return info != nil })

	assert.Equal(t, "emul.sink0", info.DefaultSinkName)
	assert.Equal(t, OperationDone, op.State())
	assert.Zero(t, r.ctx.PendingOperations())
}

func TestGetSinkInfoListCollectsUntilEOL(t *testing.T) {
	r := newRig(t)
	r.connect()

	var list []*proto.SinkInfo
	var calls int
	op, err := r.ctx.GetSinkInfoList(func(sinks []*proto.SinkInfo) {
		calls++
		list = sinks
	})
	require.NoError(t, err)
	r.pump(func() bool { return calls > 0 })

	require.Len(t, list, 2)
	assert.Equal(t, uint32(0), list[0].Index)
	assert.Equal(t, uint32(1), list[1].Index)
	assert.Equal(t, 1, calls)
	assert.Equal(t, OperationDone, op.State())
}

func TestGetSinkInfoByIndexMissing(t *testing.T) {
	r := newRig(t)
	r.connect()

	var done bool
	var found *proto.SinkInfo
	_, err := r.ctx.GetSinkInfoByIndex(99, func(si *proto.SinkInfo) {
		done = true
		found = si
	})
	require.NoError(t, err)
	r.pump(func() bool { return done })

	assert.Nil(t, found)
}

func TestSetSinkVolumeRejectsInvalidVector(t *testing.T) {
	r := newRig(t)
	r.connect()

	_, err := r.ctx.SetSinkVolume(0, proto.CVolume{}, nil)
	require.ErrorIs(t, err, ErrInvalidSpec)
	assert.Zero(t, r.srv.Calls("SetSinkVolume"))
}

func TestSetSinkVolumeAppliesAndNotifies(t *testing.T) {
	r := newRig(t)
	r.connect()

	var events []proto.SubscriptionEvent
	var subscribed bool
	_, err := r.ctx.Subscribe(proto.SubscriptionMaskSink, func(ev proto.SubscriptionEvent) {
		events = append(events, ev)
	}, func(err error) {
		require.NoError(t, err)
		subscribed = true
	})
	require.NoError(t, err)
	r.pump(func() bool { return subscribed })

	vol := proto.NewCVolume(2, proto.VolumeNorm/2)
	var opErr error
	var done bool
	_, err = r.ctx.SetSinkVolume(0, vol, func(err error) {
		opErr = err
		done = true
	})
	require.NoError(t, err)
	r.pump(func() bool { return done && len(events) > 0 })

	require.NoError(t, opErr)
	assert.Equal(t, vol, r.srv.Sink(0).Volume)
	assert.Equal(t, proto.FacilitySink, events[0].Facility)
	assert.Equal(t, proto.EventChanged, events[0].Kind)
	assert.Equal(t, uint32(0), events[0].Index)
}

func TestSubscriptionMaskFilters(t *testing.T) {
	r := newRig(t)
	r.connect()

	var events []proto.SubscriptionEvent
	var subscribed bool
	_, err := r.ctx.Subscribe(proto.SubscriptionMaskSink, func(ev proto.SubscriptionEvent) {
		events = append(events, ev)
	}, func(error) { subscribed = true })
	require.NoError(t, err)
	r.pump(func() bool { return subscribed })

	var done bool
	_, err = r.ctx.SetSourceMute(0, true, func(error) { done = true })
	require.NoError(t, err)
	r.pump(func() bool { return done })

	// The source change is outside the subscribed mask.
	for i := 0; i < 20; i++ {
		_, err := r.ml.Iterate(false)
		require.NoError(t, err)
	}
	assert.Empty(t, events)
}

func TestServerFailureReply(t *testing.T) {
	r := newRig(t)
	r.connect()

	r.srv.FailNext(proto.ErrAccess)
	var opErr error
	var done bool
	_, err := r.ctx.SetSinkMute(0, true, func(err error) {
		opErr = err
		done = true
	})
	require.NoError(t, err)
	r.pump(func() bool { return done })

	var serr *ServerError
	require.ErrorAs(t, opErr, &serr)
	assert.Equal(t, proto.ErrAccess, serr.Code)
	assert.False(t, r.srv.Sink(0).Muted)
}

func TestOperationCancelSuppressesDelivery(t *testing.T) {
	r := newRig(t)
	r.connect()

	var delivered bool
	op, err := r.ctx.GetServerInfo(func(*proto.ServerInfo) { delivered = true })
	require.NoError(t, err)

	op.Cancel()
	op.Cancel() // idempotent
	assert.Equal(t, OperationCancelled, op.State())
	assert.Zero(t, r.ctx.PendingOperations())

	for i := 0; i < 20; i++ {
		_, err := r.ml.Iterate(false)
		require.NoError(t, err)
	}
	assert.False(t, delivered)
	assert.Equal(t, OperationCancelled, op.State())
}

func TestUpdatePropertiesReachesServer(t *testing.T) {
	r := newRig(t)
	r.connect()

	var done bool
	_, err := r.ctx.UpdateProperties(proto.PropList{
		proto.PropMediaName: "ringtone",
	}, func(err error) {
		require.NoError(t, err)
		done = true
	})
	require.NoError(t, err)
	r.pump(func() bool { return done })

	assert.Equal(t, "ringtone", r.srv.ClientProps()[proto.PropMediaName])
}

func TestWithPropertiesPushedOnReady(t *testing.T) {
	r := newRig(t, WithProperties(proto.PropList{
		proto.PropApplicationName: "rig",
	}))
	r.connect()

	r.pump(func() bool {
		return r.srv.ClientProps()[proto.PropApplicationName] == "rig" &&
			r.ctx.PendingOperations() == 0
	})
	assert.Equal(t, 1, r.srv.Calls("UpdateProperties"))
}

func TestSetDefaultSink(t *testing.T) {
	r := newRig(t)
	r.connect()

	var done bool
	_, err := r.ctx.SetDefaultSink("emul.sink1", func(err error) {
		require.NoError(t, err)
		done = true
	})
	require.NoError(t, err)
	r.pump(func() bool { return done })

	assert.Equal(t, "emul.sink1", r.srv.DefaultSink())
}

func TestDrainResolves(t *testing.T) {
	r := newRig(t)
	r.connect()

	var drained bool
	op, err := r.ctx.Drain(func() { drained = true })
	require.NoError(t, err)
	r.pump(func() bool { return drained })

	assert.Equal(t, OperationDone, op.State())
}

func TestKillConnectionFailsEverything(t *testing.T) {
	r := newRig(t)
	r.connect()

	s, err := NewStream(r.ctx, "doomed", proto.SampleSpec{
		Format: proto.SampleS16LE, Rate: 44100, Channels: 2,
	})
	require.NoError(t, err)
	require.NoError(t, s.ConnectPlayback("", nil, proto.StreamNoFlags))
	r.pump(func() bool { return s.State() == proto.StreamReady })

	var streamStates []proto.StreamState
	s.SetStateHandler(func(st proto.StreamState) { streamStates = append(streamStates, st) })

	r.srv.KillConnection(proto.ErrConnectionTerminated)
	r.pump(func() bool { return r.ctx.State() == proto.ContextFailed })

	assert.Equal(t, proto.ErrConnectionTerminated, r.ctx.Errno())
	require.ErrorIs(t, r.ctx.Err(), ErrConnectionLost)
	assert.Equal(t, proto.StreamFailed, s.State())
	assert.Contains(t, streamStates, proto.StreamFailed)

	_, err = r.ctx.GetServerInfo(nil)
	require.ErrorIs(t, err, ErrInvalidState)
	assert.Zero(t, r.ctx.liveRegistrations())
}

func TestDisconnectTearsDownEverything(t *testing.T) {
	r := newRig(t)
	r.connect()

	s, err := NewStream(r.ctx, "short-lived", proto.SampleSpec{
		Format: proto.SampleS16LE, Rate: 44100, Channels: 2,
	})
	require.NoError(t, err)
	require.NoError(t, s.ConnectPlayback("", nil, proto.StreamNoFlags))
	r.pump(func() bool { return s.State() == proto.StreamReady })

	var delivered bool
	_, err = r.ctx.GetServerInfo(func(*proto.ServerInfo) { delivered = true })
	require.NoError(t, err)

	var last proto.ContextState
	r.ctx.SetStateHandler(func(st proto.ContextState) { last = st })

	r.ctx.Disconnect()
	r.ctx.Disconnect() // idempotent

	assert.Equal(t, proto.ContextTerminated, r.ctx.State())
	assert.Equal(t, proto.ContextTerminated, last)
	assert.Equal(t, proto.StreamTerminated, s.State())
	assert.Zero(t, r.ctx.PendingOperations())
	assert.Zero(t, r.ctx.liveRegistrations())

	// Stale native notifications after teardown hit dead tokens.
	for i := 0; i < 20; i++ {
		_, err := r.ml.Iterate(false)
		require.NoError(t, err)
	}
	assert.False(t, delivered)
	assert.Equal(t, proto.ContextTerminated, r.ctx.State())
}

func TestNewContextValidatesArguments(t *testing.T) {
	ml, err := mainloop.New()
	require.NoError(t, err)
	defer ml.Close()

	_, err = NewContext(nil, emul.New(ml, nil), "x")
	require.Error(t, err)
	_, err = NewContext(ml, nil, "x")
	require.Error(t, err)
}

func TestServerErrorMessage(t *testing.T) {
	err := &ServerError{Code: proto.ErrAccess}
	assert.Contains(t, err.Error(), "Access denied")
	var target *ServerError
	assert.True(t, errors.As(err, &target))
}
