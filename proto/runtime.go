package proto

import "github.com/lisuiheng/pulse-go/bridge"

// Callback types mirror the native function-pointer-plus-userdata calling
// convention: the opaque userdata word is a bridge.Token, and the function
// value plays the role of the trampoline entry point. The runtime must
// invoke every callback on the dispatch context of the mainloop it is
// driven by, in the order the underlying events occurred.

// ContextNotifyFunc reports a connection state change.
type ContextNotifyFunc func(tok bridge.Token, state ContextState)

// StreamNotifyFunc reports a stream state change.
type StreamNotifyFunc func(tok bridge.Token, state StreamState)

// SuccessFunc reports completion of one request.
type SuccessFunc func(tok bridge.Token, success bool)

// RequestFunc reports that the server wants (or has) nbytes of data.
type RequestFunc func(tok bridge.Token, nbytes uint32)

// NotifyFunc reports an event that carries no payload.
type NotifyFunc func(tok bridge.Token)

// SubscribeFunc delivers one subscription event.
type SubscribeFunc func(tok bridge.Token, ev SubscriptionEvent)

// ServerInfoFunc delivers the server description.
type ServerInfoFunc func(tok bridge.Token, info *ServerInfo)

// SinkInfoFunc delivers one sink description; eol marks the end of a list,
// with info nil.
type SinkInfoFunc func(tok bridge.Token, info *SinkInfo, eol bool)

// SourceInfoFunc delivers one source description; eol marks the end of a
// list, with info nil.
type SourceInfoFunc func(tok bridge.Token, info *SourceInfo, eol bool)

// Runtime is one native connection endpoint, the external collaborator this
// binding drives. Implementations wrap the server's client library (or
// emulate it, see package emul). All methods are non-blocking; results
// arrive through the registered callbacks on the mainloop.
type Runtime interface {
	// Connect starts the handshake. Progress and failure are reported
	// through the state callback; a non-nil error means the request could
	// not even be issued.
	Connect(server string, flags ContextFlags) error

	// Disconnect tears the connection down. The state callback fires with
	// ContextTerminated.
	Disconnect()

	// SetStateCallback replaces the connection state callback.
	SetStateCallback(cb ContextNotifyFunc, tok bridge.Token)

	// LastError returns the code of the most recent failure.
	LastError() ErrCode

	// SetSubscribeCallback replaces the subscription event callback.
	SetSubscribeCallback(cb SubscribeFunc, tok bridge.Token)

	// Subscribe narrows or widens the set of facilities the subscribe
	// callback receives events for.
	Subscribe(mask SubscriptionMask, cb SuccessFunc, tok bridge.Token)

	GetServerInfo(cb ServerInfoFunc, tok bridge.Token)
	GetSinkInfoList(cb SinkInfoFunc, tok bridge.Token)
	GetSinkInfoByIndex(index uint32, cb SinkInfoFunc, tok bridge.Token)
	GetSourceInfoList(cb SourceInfoFunc, tok bridge.Token)

	SetSinkVolume(index uint32, volume CVolume, cb SuccessFunc, tok bridge.Token)
	SetSinkMute(index uint32, mute bool, cb SuccessFunc, tok bridge.Token)
	SetSourceVolume(index uint32, volume CVolume, cb SuccessFunc, tok bridge.Token)
	SetSourceMute(index uint32, mute bool, cb SuccessFunc, tok bridge.Token)
	SetDefaultSink(name string, cb SuccessFunc, tok bridge.Token)
	SetDefaultSource(name string, cb SuccessFunc, tok bridge.Token)

	// UpdateProperties merges props into the client's property list.
	UpdateProperties(props PropList, cb SuccessFunc, tok bridge.Token)

	// Drain completes once the server has processed everything issued so
	// far on this connection.
	Drain(cb NotifyFunc, tok bridge.Token)

	// NewStream allocates an unconnected stream on this connection.
	NewStream(name string, spec SampleSpec, cm ChannelMap) (StreamHandle, error)
}

// StreamHandle is one native audio channel.
type StreamHandle interface {
	ConnectPlayback(device string, attr *BufferAttr, flags StreamFlags) error
	ConnectRecord(device string, attr *BufferAttr, flags StreamFlags) error
	Disconnect()

	SetStateCallback(cb StreamNotifyFunc, tok bridge.Token)
	SetWriteCallback(cb RequestFunc, tok bridge.Token)
	SetReadCallback(cb RequestFunc, tok bridge.Token)
	SetUnderflowCallback(cb NotifyFunc, tok bridge.Token)
	SetOverflowCallback(cb NotifyFunc, tok bridge.Token)

	// NegotiatedAttr returns the buffer metrics the server chose. Valid
	// once the stream is ready.
	NegotiatedAttr() BufferAttr

	// WritableSize returns how many bytes the server currently accepts.
	WritableSize() uint32

	// Write queues p for playback. The caller must respect the write
	// request protocol; the handle itself does not police it.
	Write(p []byte, seek SeekMode) (int, error)

	// Peek returns the next captured fragment without consuming it, or nil
	// if none is available.
	Peek() ([]byte, error)

	// Drop consumes the fragment returned by the last Peek.
	Drop() error

	Drain(cb SuccessFunc, tok bridge.Token)
	Cork(cork bool, cb SuccessFunc, tok bridge.Token)
	Flush(cb SuccessFunc, tok bridge.Token)

	// UpdateSampleRate changes the stream rate on the fly. Only available
	// on newer protocol revisions; callers gate on the compat set.
	UpdateSampleRate(rate uint32, cb SuccessFunc, tok bridge.Token)
}
