package emul

import (
	"errors"

	"github.com/lisuiheng/pulse-go/bridge"
	"github.com/lisuiheng/pulse-go/proto"
)

// Negotiation fallbacks, applied wherever the client left an attribute to
// the server. Sized like a typical desktop daemon: a quarter second target,
// requests at a quarter of the target.
const (
	negotiatedMaxLength = 4 * 1024 * 1024
	negotiatedFragsize  = 65536
)

type Stream struct {
	srv  *Server
	name string
	spec proto.SampleSpec
	cm   proto.ChannelMap

	// guarded by srv.mu
	dir       proto.Direction
	connected bool
	corked    bool
	attr      proto.BufferAttr
	writable  uint32
	written   []byte
	captured  [][]byte

	stateCB  proto.StreamNotifyFunc
	stateTok bridge.Token
	writeCB  proto.RequestFunc
	writeTok bridge.Token
	readCB   proto.RequestFunc
	readTok  bridge.Token
	underCB  proto.NotifyFunc
	underTok bridge.Token
	overCB   proto.NotifyFunc
	overTok  bridge.Token
}

func (st *Stream) notifyState(state proto.StreamState) {
	st.srv.post(func() {
		st.srv.mu.Lock()
		cb, tok := st.stateCB, st.stateTok
		st.srv.mu.Unlock()
		if cb != nil {
			cb(tok, state)
		}
	})
}

// negotiate fills server-chosen attributes the way the daemon would.
func (st *Stream) negotiate(attr *proto.BufferAttr) proto.BufferAttr {
	out := proto.DefaultBufferAttr()
	if attr != nil {
		out = *attr
	}
	if out.MaxLength == proto.InvalidIndex {
		out.MaxLength = negotiatedMaxLength
	}
	if out.TLength == proto.InvalidIndex {
		out.TLength = uint32(st.spec.BytesPerSecond() / 4)
	}
	if out.Prebuf == proto.InvalidIndex {
		out.Prebuf = out.TLength
	}
	if out.MinReq == proto.InvalidIndex {
		out.MinReq = out.TLength / 4
	}
	if out.Fragsize == proto.InvalidIndex {
		out.Fragsize = negotiatedFragsize
	}
	return out
}

func (st *Stream) connect(dir proto.Direction, attr *proto.BufferAttr) error {
	st.srv.mu.Lock()
	if !st.srv.connected {
		st.srv.lastErr = proto.ErrConnectionTerminated
		st.srv.mu.Unlock()
		return errors.New("emul: not connected")
	}
	if st.connected {
		st.srv.mu.Unlock()
		return errors.New("emul: stream already connected")
	}
	st.dir = dir
	st.connected = true
	st.attr = st.negotiate(attr)
	chunk := st.srv.writeChunk
	if chunk > st.attr.TLength {
		chunk = st.attr.TLength
	}
	st.srv.mu.Unlock()

	st.notifyState(proto.StreamCreating)
	st.notifyState(proto.StreamReady)
	if dir == proto.DirectionPlayback {
		st.RequestWrite(chunk)
	}
	return nil
}

// RequestWrite advertises n more bytes of playback capacity.
func (st *Stream) RequestWrite(n uint32) {
	st.srv.post(func() {
		st.srv.mu.Lock()
		st.writable += n
		cb, tok := st.writeCB, st.writeTok
		st.srv.mu.Unlock()
		if cb != nil {
			cb(tok, n)
		}
	})
}

// PushCapture queues captured audio on a record stream and announces it.
func (st *Stream) PushCapture(p []byte) {
	data := append([]byte(nil), p...)
	st.srv.mu.Lock()
	st.captured = append(st.captured, data)
	st.srv.mu.Unlock()
	st.srv.post(func() {
		st.srv.mu.Lock()
		cb, tok := st.readCB, st.readTok
		st.srv.mu.Unlock()
		if cb != nil {
			cb(tok, uint32(len(data)))
		}
	})
}

// TriggerUnderflow fires the underflow callback, as a starved buffer would.
func (st *Stream) TriggerUnderflow() {
	st.srv.post(func() {
		st.srv.mu.Lock()
		cb, tok := st.underCB, st.underTok
		st.srv.mu.Unlock()
		if cb != nil {
			cb(tok)
		}
	})
}

// TriggerOverflow fires the overflow callback.
func (st *Stream) TriggerOverflow() {
	st.srv.post(func() {
		st.srv.mu.Lock()
		cb, tok := st.overCB, st.overTok
		st.srv.mu.Unlock()
		if cb != nil {
			cb(tok)
		}
	})
}

// Written returns everything queued for playback so far.
func (st *Stream) Written() []byte {
	st.srv.mu.Lock()
	defer st.srv.mu.Unlock()
	return append([]byte(nil), st.written...)
}

// proto.StreamHandle implementation.

func (st *Stream) ConnectPlayback(device string, attr *proto.BufferAttr, flags proto.StreamFlags) error {
	st.srv.count("StreamConnectPlayback")
	if flags&proto.StreamStartCorked != 0 {
		st.srv.mu.Lock()
		st.corked = true
		st.srv.mu.Unlock()
	}
	return st.connect(proto.DirectionPlayback, attr)
}

func (st *Stream) ConnectRecord(device string, attr *proto.BufferAttr, flags proto.StreamFlags) error {
	st.srv.count("StreamConnectRecord")
	return st.connect(proto.DirectionRecord, attr)
}

func (st *Stream) Disconnect() {
	st.srv.count("StreamDisconnect")
	st.srv.mu.Lock()
	st.connected = false
	st.srv.mu.Unlock()
	st.notifyState(proto.StreamTerminated)
}

func (st *Stream) SetStateCallback(cb proto.StreamNotifyFunc, tok bridge.Token) {
	st.srv.mu.Lock()
	st.stateCB, st.stateTok = cb, tok
	st.srv.mu.Unlock()
}

func (st *Stream) SetWriteCallback(cb proto.RequestFunc, tok bridge.Token) {
	st.srv.mu.Lock()
	st.writeCB, st.writeTok = cb, tok
	st.srv.mu.Unlock()
}

func (st *Stream) SetReadCallback(cb proto.RequestFunc, tok bridge.Token) {
	st.srv.mu.Lock()
	st.readCB, st.readTok = cb, tok
	st.srv.mu.Unlock()
}

func (st *Stream) SetUnderflowCallback(cb proto.NotifyFunc, tok bridge.Token) {
	st.srv.mu.Lock()
	st.underCB, st.underTok = cb, tok
	st.srv.mu.Unlock()
}

func (st *Stream) SetOverflowCallback(cb proto.NotifyFunc, tok bridge.Token) {
	st.srv.mu.Lock()
	st.overCB, st.overTok = cb, tok
	st.srv.mu.Unlock()
}

func (st *Stream) NegotiatedAttr() proto.BufferAttr {
	st.srv.mu.Lock()
	defer st.srv.mu.Unlock()
	return st.attr
}

func (st *Stream) WritableSize() uint32 {
	st.srv.mu.Lock()
	defer st.srv.mu.Unlock()
	return st.writable
}

func (st *Stream) Write(p []byte, seek proto.SeekMode) (int, error) {
	st.srv.count("StreamWrite")
	st.srv.mu.Lock()
	defer st.srv.mu.Unlock()
	if !st.connected {
		return 0, errors.New("emul: stream not connected")
	}
	if uint32(len(p)) > st.writable {
		return 0, errors.New("emul: write past advertised capacity")
	}
	st.writable -= uint32(len(p))
	st.written = append(st.written, p...)
	return len(p), nil
}

func (st *Stream) Peek() ([]byte, error) {
	st.srv.count("StreamPeek")
	st.srv.mu.Lock()
	defer st.srv.mu.Unlock()
	if len(st.captured) == 0 {
		return nil, nil
	}
	return st.captured[0], nil
}

func (st *Stream) Drop() error {
	st.srv.count("StreamDrop")
	st.srv.mu.Lock()
	defer st.srv.mu.Unlock()
	if len(st.captured) == 0 {
		return errors.New("emul: drop without a current fragment")
	}
	st.captured = st.captured[1:]
	return nil
}

func (st *Stream) Drain(cb proto.SuccessFunc, tok bridge.Token) {
	st.srv.count("StreamDrain")
	st.srv.reply(cb, tok)
}

func (st *Stream) Cork(cork bool, cb proto.SuccessFunc, tok bridge.Token) {
	st.srv.count("StreamCork")
	if st.srv.reply(cb, tok) {
		st.srv.mu.Lock()
		st.corked = cork
		st.srv.mu.Unlock()
	}
}

func (st *Stream) Flush(cb proto.SuccessFunc, tok bridge.Token) {
	st.srv.count("StreamFlush")
	if st.srv.reply(cb, tok) {
		st.srv.mu.Lock()
		st.written = nil
		st.srv.mu.Unlock()
	}
}

func (st *Stream) UpdateSampleRate(rate uint32, cb proto.SuccessFunc, tok bridge.Token) {
	st.srv.count("StreamUpdateSampleRate")
	if st.srv.reply(cb, tok) {
		st.srv.mu.Lock()
		st.spec.Rate = rate
		st.srv.mu.Unlock()
	}
}
