// Package emul provides an in-memory sound server runtime implementing
// proto.Runtime. It stands in for the native client library in tests and
// demos: the handshake, introspection tables, subscription events and the
// stream data protocol are served from process memory, with every
// notification delivered through FIFO deferred events on the mainloop the
// server was created against. Hooks inject failures and count native calls
// so tests can prove that local precondition violations never reach the
// runtime.
package emul

import (
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/lisuiheng/pulse-go/bridge"
	"github.com/lisuiheng/pulse-go/mainloop"
	"github.com/lisuiheng/pulse-go/proto"
)

// DefaultWriteChunk is how much playback capacity one write request
// advertises unless configured otherwise.
const DefaultWriteChunk = 4096

// Server is one emulated connection endpoint.
type Server struct {
	api mainloop.API
	log *slog.Logger

	mu        sync.Mutex
	connected bool
	lastErr   proto.ErrCode

	stateCB  proto.ContextNotifyFunc
	stateTok bridge.Token
	subCB    proto.SubscribeFunc
	subTok   bridge.Token
	subMask  proto.SubscriptionMask

	failConnect    proto.ErrCode
	failConnectSet bool
	failNext       proto.ErrCode
	failNextSet    bool

	calls map[string]int

	info          proto.ServerInfo
	sinks         []*proto.SinkInfo
	sources       []*proto.SourceInfo
	defaultSink   string
	defaultSource string
	clientProps   proto.PropList

	writeChunk uint32
	streams    []*Stream
}

// New creates a server with two sinks and one source, driven by api.
func New(api mainloop.API, log *slog.Logger) *Server {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	spec := proto.SampleSpec{Format: proto.SampleS16LE, Rate: 44100, Channels: 2}
	s := &Server{
		api:         api,
		log:         log,
		calls:       make(map[string]int),
		clientProps: make(proto.PropList),
		writeChunk:  DefaultWriteChunk,
		defaultSink: "emul.sink0",
	}
	s.info = proto.ServerInfo{
		PackageName:       "pulse-go-emul",
		PackageVersion:    "1.0",
		User:              "emul",
		Hostname:          "localhost",
		DefaultSampleSpec: spec,
		DefaultSinkName:   "emul.sink0",
		DefaultSourceName: "emul.source0",
	}
	s.defaultSource = "emul.source0"
	for i := uint32(0); i < 2; i++ {
		s.sinks = append(s.sinks, &proto.SinkInfo{
			Index:         i,
			Name:          "emul.sink" + string(rune('0'+i)),
			Description:   "Emulated Sink",
			SampleSpec:    spec,
			ChannelMap:    proto.DefaultChannelMap(2),
			OwnerModule:   proto.InvalidIndex,
			Volume:        proto.NewCVolume(2, proto.VolumeNorm),
			MonitorSource: proto.InvalidIndex,
			Driver:        "emul",
			Flags:         proto.SinkLatency | proto.SinkDecibelVolume,
			State:         proto.SinkIdle,
			BaseVolume:    proto.VolumeNorm,
			VolumeSteps:   65537,
			Card:          proto.InvalidIndex,
		})
	}
	s.sources = append(s.sources, &proto.SourceInfo{
		Index:         0,
		Name:          "emul.source0",
		Description:   "Emulated Source",
		SampleSpec:    spec,
		ChannelMap:    proto.DefaultChannelMap(2),
		OwnerModule:   proto.InvalidIndex,
		Volume:        proto.NewCVolume(2, proto.VolumeNorm),
		MonitorOfSink: proto.InvalidIndex,
		Driver:        "emul",
		Flags:         proto.SourceLatency,
		State:         proto.SourceIdle,
		BaseVolume:    proto.VolumeNorm,
		VolumeSteps:   65537,
		Card:          proto.InvalidIndex,
	})
	return s
}

// post schedules f as a one-shot deferred event. Deferred events dispatch
// FIFO, which is what gives clients the per-connection ordering guarantee.
func (s *Server) post(f func()) {
	_, err := s.api.NewDeferEvent(func(e mainloop.DeferEvent) {
		e.Free()
		f()
	})
	if err != nil {
		s.log.Warn("emul: dropping notification, loop is shutting down", "error", err)
	}
}

func (s *Server) count(name string) {
	s.mu.Lock()
	s.calls[name]++
	s.mu.Unlock()
}

// Calls reports how often a native entry point was invoked.
func (s *Server) Calls(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[name]
}

// FailConnect makes the next Connect handshake end in Failed with code.
func (s *Server) FailConnect(code proto.ErrCode) {
	s.mu.Lock()
	s.failConnect = code
	s.failConnectSet = true
	s.mu.Unlock()
}

// FailNext makes the next success-style command reply with failure.
func (s *Server) FailNext(code proto.ErrCode) {
	s.mu.Lock()
	s.failNext = code
	s.failNextSet = true
	s.mu.Unlock()
}

// KillConnection drops the connection asynchronously, as a server shutdown
// or kill would.
func (s *Server) KillConnection(code proto.ErrCode) {
	s.mu.Lock()
	s.connected = false
	s.lastErr = code
	s.mu.Unlock()
	s.notifyState(proto.ContextFailed)
	for _, st := range s.snapshotStreams() {
		st.notifyState(proto.StreamFailed)
	}
}

// PushEvent injects one subscription event, honoring the subscribed mask.
func (s *Server) PushEvent(ev proto.SubscriptionEvent) {
	s.post(func() {
		s.mu.Lock()
		cb, tok, mask := s.subCB, s.subTok, s.subMask
		s.mu.Unlock()
		if cb != nil && mask.Contains(ev.Facility) {
			cb(tok, ev)
		}
	})
}

// Sink returns the current table entry, or nil.
func (s *Server) Sink(index uint32) *proto.SinkInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, si := range s.sinks {
		if si.Index == index {
			return si
		}
	}
	return nil
}

// DefaultSink reports the server's default playback device name.
func (s *Server) DefaultSink() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.defaultSink
}

// ClientProps returns the property list accumulated via UpdateProperties.
func (s *Server) ClientProps() proto.PropList {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clientProps.Clone()
}

// SetWriteChunk changes how much capacity each write request advertises.
func (s *Server) SetWriteChunk(n uint32) {
	s.mu.Lock()
	s.writeChunk = n
	s.mu.Unlock()
}

func (s *Server) notifyState(st proto.ContextState) {
	s.post(func() {
		s.mu.Lock()
		cb, tok := s.stateCB, s.stateTok
		s.mu.Unlock()
		if cb != nil {
			cb(tok, st)
		}
	})
}

// takeFailNext consumes a pending injected failure.
func (s *Server) takeFailNext() (proto.ErrCode, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.failNextSet {
		return proto.ErrOK, false
	}
	s.failNextSet = false
	s.lastErr = s.failNext
	return s.failNext, true
}

// reply posts a success or injected-failure completion.
func (s *Server) reply(cb proto.SuccessFunc, tok bridge.Token) bool {
	if _, failed := s.takeFailNext(); failed {
		s.post(func() { cb(tok, false) })
		return false
	}
	s.post(func() { cb(tok, true) })
	return true
}

func (s *Server) snapshotStreams() []*Stream {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Stream, len(s.streams))
	copy(out, s.streams)
	return out
}

// Streams returns the streams created on this connection, oldest first.
func (s *Server) Streams() []*Stream { return s.snapshotStreams() }

// proto.Runtime implementation.

func (s *Server) Connect(server string, flags proto.ContextFlags) error {
	s.count("Connect")
	s.mu.Lock()
	if s.failConnectSet {
		code := s.failConnect
		s.failConnectSet = false
		s.lastErr = code
		s.mu.Unlock()
		s.notifyState(proto.ContextConnecting)
		s.notifyState(proto.ContextFailed)
		return nil
	}
	s.connected = true
	s.mu.Unlock()

	for _, st := range []proto.ContextState{
		proto.ContextConnecting,
		proto.ContextAuthorizing,
		proto.ContextSettingName,
		proto.ContextReady,
	} {
		s.notifyState(st)
	}
	return nil
}

func (s *Server) Disconnect() {
	s.count("Disconnect")
	s.mu.Lock()
	s.connected = false
	s.mu.Unlock()
	s.notifyState(proto.ContextTerminated)
}

func (s *Server) SetStateCallback(cb proto.ContextNotifyFunc, tok bridge.Token) {
	s.mu.Lock()
	s.stateCB = cb
	s.stateTok = tok
	s.mu.Unlock()
}

func (s *Server) LastError() proto.ErrCode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *Server) SetSubscribeCallback(cb proto.SubscribeFunc, tok bridge.Token) {
	s.mu.Lock()
	s.subCB = cb
	s.subTok = tok
	s.mu.Unlock()
}

func (s *Server) Subscribe(mask proto.SubscriptionMask, cb proto.SuccessFunc, tok bridge.Token) {
	s.count("Subscribe")
	s.mu.Lock()
	s.subMask = mask
	s.mu.Unlock()
	s.reply(cb, tok)
}

func (s *Server) GetServerInfo(cb proto.ServerInfoFunc, tok bridge.Token) {
	s.count("GetServerInfo")
	s.mu.Lock()
	info := s.info
	info.DefaultSinkName = s.defaultSink
	info.DefaultSourceName = s.defaultSource
	s.mu.Unlock()
	s.post(func() { cb(tok, &info) })
}

func (s *Server) GetSinkInfoList(cb proto.SinkInfoFunc, tok bridge.Token) {
	s.count("GetSinkInfoList")
	s.mu.Lock()
	list := make([]*proto.SinkInfo, len(s.sinks))
	for i, si := range s.sinks {
		cp := *si
		list[i] = &cp
	}
	s.mu.Unlock()
	s.post(func() {
		for _, si := range list {
			cb(tok, si, false)
		}
		cb(tok, nil, true)
	})
}

func (s *Server) GetSinkInfoByIndex(index uint32, cb proto.SinkInfoFunc, tok bridge.Token) {
	s.count("GetSinkInfoByIndex")
	var found *proto.SinkInfo
	s.mu.Lock()
	for _, si := range s.sinks {
		if si.Index == index {
			cp := *si
			found = &cp
			break
		}
	}
	if found == nil {
		s.lastErr = proto.ErrNoEntity
	}
	s.mu.Unlock()
	s.post(func() {
		if found != nil {
			cb(tok, found, false)
		}
		cb(tok, nil, true)
	})
}

func (s *Server) GetSourceInfoList(cb proto.SourceInfoFunc, tok bridge.Token) {
	s.count("GetSourceInfoList")
	s.mu.Lock()
	list := make([]*proto.SourceInfo, len(s.sources))
	for i, si := range s.sources {
		cp := *si
		list[i] = &cp
	}
	s.mu.Unlock()
	s.post(func() {
		for _, si := range list {
			cb(tok, si, false)
		}
		cb(tok, nil, true)
	})
}

func (s *Server) SetSinkVolume(index uint32, volume proto.CVolume, cb proto.SuccessFunc, tok bridge.Token) {
	s.count("SetSinkVolume")
	sink := s.Sink(index)
	if sink == nil {
		s.mu.Lock()
		s.lastErr = proto.ErrNoEntity
		s.mu.Unlock()
		s.post(func() { cb(tok, false) })
		return
	}
	if s.reply(cb, tok) {
		s.mu.Lock()
		sink.Volume = append(proto.CVolume(nil), volume...)
		s.mu.Unlock()
		s.PushEvent(proto.SubscriptionEvent{Facility: proto.FacilitySink, Kind: proto.EventChanged, Index: index})
	}
}

func (s *Server) SetSinkMute(index uint32, mute bool, cb proto.SuccessFunc, tok bridge.Token) {
	s.count("SetSinkMute")
	sink := s.Sink(index)
	if sink == nil {
		s.mu.Lock()
		s.lastErr = proto.ErrNoEntity
		s.mu.Unlock()
		s.post(func() { cb(tok, false) })
		return
	}
	if s.reply(cb, tok) {
		s.mu.Lock()
		sink.Muted = mute
		s.mu.Unlock()
		s.PushEvent(proto.SubscriptionEvent{Facility: proto.FacilitySink, Kind: proto.EventChanged, Index: index})
	}
}

func (s *Server) SetSourceVolume(index uint32, volume proto.CVolume, cb proto.SuccessFunc, tok bridge.Token) {
	s.count("SetSourceVolume")
	s.mu.Lock()
	var src *proto.SourceInfo
	for _, si := range s.sources {
		if si.Index == index {
			src = si
			break
		}
	}
	if src == nil {
		s.lastErr = proto.ErrNoEntity
		s.mu.Unlock()
		s.post(func() { cb(tok, false) })
		return
	}
	s.mu.Unlock()
	if s.reply(cb, tok) {
		s.mu.Lock()
		src.Volume = append(proto.CVolume(nil), volume...)
		s.mu.Unlock()
		s.PushEvent(proto.SubscriptionEvent{Facility: proto.FacilitySource, Kind: proto.EventChanged, Index: index})
	}
}

func (s *Server) SetSourceMute(index uint32, mute bool, cb proto.SuccessFunc, tok bridge.Token) {
	s.count("SetSourceMute")
	s.mu.Lock()
	var src *proto.SourceInfo
	for _, si := range s.sources {
		if si.Index == index {
			src = si
			break
		}
	}
	if src == nil {
		s.lastErr = proto.ErrNoEntity
		s.mu.Unlock()
		s.post(func() { cb(tok, false) })
		return
	}
	s.mu.Unlock()
	if s.reply(cb, tok) {
		s.mu.Lock()
		src.Muted = mute
		s.mu.Unlock()
		s.PushEvent(proto.SubscriptionEvent{Facility: proto.FacilitySource, Kind: proto.EventChanged, Index: index})
	}
}

func (s *Server) SetDefaultSink(name string, cb proto.SuccessFunc, tok bridge.Token) {
	s.count("SetDefaultSink")
	if s.reply(cb, tok) {
		s.mu.Lock()
		s.defaultSink = name
		s.mu.Unlock()
		s.PushEvent(proto.SubscriptionEvent{Facility: proto.FacilityServer, Kind: proto.EventChanged, Index: proto.InvalidIndex})
	}
}

func (s *Server) SetDefaultSource(name string, cb proto.SuccessFunc, tok bridge.Token) {
	s.count("SetDefaultSource")
	if s.reply(cb, tok) {
		s.mu.Lock()
		s.defaultSource = name
		s.mu.Unlock()
		s.PushEvent(proto.SubscriptionEvent{Facility: proto.FacilityServer, Kind: proto.EventChanged, Index: proto.InvalidIndex})
	}
}

func (s *Server) UpdateProperties(props proto.PropList, cb proto.SuccessFunc, tok bridge.Token) {
	s.count("UpdateProperties")
	if s.reply(cb, tok) {
		s.mu.Lock()
		for k, v := range props {
			s.clientProps[k] = v
		}
		s.mu.Unlock()
	}
}

func (s *Server) Drain(cb proto.NotifyFunc, tok bridge.Token) {
	s.count("Drain")
	s.post(func() { cb(tok) })
}

func (s *Server) NewStream(name string, spec proto.SampleSpec, cm proto.ChannelMap) (proto.StreamHandle, error) {
	s.count("NewStream")
	if !spec.Valid() {
		return nil, errors.New("emul: invalid sample spec")
	}
	st := &Stream{srv: s, name: name, spec: spec, cm: cm}
	s.mu.Lock()
	s.streams = append(s.streams, st)
	s.mu.Unlock()
	return st, nil
}
