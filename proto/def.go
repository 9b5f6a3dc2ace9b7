// Package proto defines the vocabulary of the native sound-server protocol:
// states, flags, sample formats, volumes, buffer attributes, subscription
// events and error codes, plus the Runtime interface that models the native
// client library the binding drives.
package proto

// InvalidIndex marks an object index that refers to nothing.
const InvalidIndex = ^uint32(0)

// ContextState is the lifecycle state of one server connection.
type ContextState int

const (
	ContextUnconnected ContextState = iota
	ContextConnecting
	ContextAuthorizing
	ContextSettingName
	ContextReady
	ContextFailed
	ContextTerminated
)

// IsGood reports whether the state is one of the connected (non-terminal,
// non-idle) states.
func (s ContextState) IsGood() bool {
	switch s {
	case ContextConnecting, ContextAuthorizing, ContextSettingName, ContextReady:
		return true
	}
	return false
}

func (s ContextState) String() string {
	switch s {
	case ContextUnconnected:
		return "unconnected"
	case ContextConnecting:
		return "connecting"
	case ContextAuthorizing:
		return "authorizing"
	case ContextSettingName:
		return "setting-name"
	case ContextReady:
		return "ready"
	case ContextFailed:
		return "failed"
	case ContextTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// ContextFlags modify connection behavior.
type ContextFlags uint32

const (
	ContextNoFlags     ContextFlags = 0x0
	ContextNoAutoSpawn ContextFlags = 0x1
	ContextNoFail      ContextFlags = 0x2
)

// StreamState is the lifecycle state of one audio channel.
type StreamState int

const (
	StreamUnconnected StreamState = iota
	StreamCreating
	StreamReady
	StreamFailed
	StreamTerminated
)

// IsGood reports whether the stream is being set up or usable.
func (s StreamState) IsGood() bool {
	return s == StreamCreating || s == StreamReady
}

func (s StreamState) String() string {
	switch s {
	case StreamUnconnected:
		return "unconnected"
	case StreamCreating:
		return "creating"
	case StreamReady:
		return "ready"
	case StreamFailed:
		return "failed"
	case StreamTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Direction distinguishes playback from capture streams.
type Direction int

const (
	DirectionPlayback Direction = iota
	DirectionRecord
)

func (d Direction) String() string {
	if d == DirectionRecord {
		return "record"
	}
	return "playback"
}

// SeekMode positions a playback write relative to the server-side buffer.
type SeekMode int

const (
	SeekRelative SeekMode = iota
	SeekAbsolute
	SeekRelativeOnRead
	SeekRelativeEnd
)

// StreamFlags modify stream creation.
type StreamFlags uint32

const (
	StreamNoFlags           StreamFlags = 0x0
	StreamStartCorked       StreamFlags = 0x1
	StreamInterpolateTiming StreamFlags = 0x2
	StreamNotMonotonic      StreamFlags = 0x4
	StreamAutoTimingUpdate  StreamFlags = 0x8
	StreamNoRemapChannels   StreamFlags = 0x10
	StreamNoRemixChannels   StreamFlags = 0x20
	StreamFixFormat         StreamFlags = 0x40
	StreamFixRate           StreamFlags = 0x80
	StreamFixChannels       StreamFlags = 0x100
	StreamDontMove          StreamFlags = 0x200
	StreamVariableRate      StreamFlags = 0x400
	StreamPeakDetect        StreamFlags = 0x800
	StreamStartMuted        StreamFlags = 0x1000
	StreamAdjustLatency     StreamFlags = 0x2000
	StreamEarlyRequests     StreamFlags = 0x4000
	StreamFailOnSuspend     StreamFlags = 0x10000
)

// BufferAttr holds stream buffering metrics. All values are advisory: the
// server answers with the attributes it actually chose. A value of
// InvalidIndex asks the server to pick a default.
type BufferAttr struct {
	MaxLength uint32
	TLength   uint32
	Prebuf    uint32
	MinReq    uint32
	Fragsize  uint32
}

// DefaultBufferAttr leaves every metric to the server.
func DefaultBufferAttr() BufferAttr {
	return BufferAttr{
		MaxLength: InvalidIndex,
		TLength:   InvalidIndex,
		Prebuf:    InvalidIndex,
		MinReq:    InvalidIndex,
		Fragsize:  InvalidIndex,
	}
}

// SinkState is the server-side run state of a sink.
type SinkState int

const (
	SinkInvalidState SinkState = iota - 1
	SinkRunning
	SinkIdle
	SinkSuspended
)

// IsOpened reports whether the sink is playing (running or idle).
func (s SinkState) IsOpened() bool { return s == SinkRunning || s == SinkIdle }

// SourceState is the server-side run state of a source.
type SourceState int

const (
	SourceInvalidState SourceState = iota - 1
	SourceRunning
	SourceIdle
	SourceSuspended
)

// IsOpened reports whether the source is capturing (running or idle).
func (s SourceState) IsOpened() bool { return s == SourceRunning || s == SourceIdle }

// SinkFlags describe sink capabilities.
type SinkFlags uint32

const (
	SinkHWVolumeCtrl   SinkFlags = 0x1
	SinkLatency        SinkFlags = 0x2
	SinkHardware       SinkFlags = 0x4
	SinkNetwork        SinkFlags = 0x8
	SinkHWMuteCtrl     SinkFlags = 0x10
	SinkDecibelVolume  SinkFlags = 0x20
	SinkFlatVolume     SinkFlags = 0x40
	SinkDynamicLatency SinkFlags = 0x80
	SinkSetFormats     SinkFlags = 0x100
)

// SourceFlags describe source capabilities.
type SourceFlags uint32

const (
	SourceHWVolumeCtrl   SourceFlags = 0x1
	SourceLatency        SourceFlags = 0x2
	SourceHardware       SourceFlags = 0x4
	SourceNetwork        SourceFlags = 0x8
	SourceHWMuteCtrl     SourceFlags = 0x10
	SourceDecibelVolume  SourceFlags = 0x20
	SourceDynamicLatency SourceFlags = 0x40
	SourceFlatVolume     SourceFlags = 0x80
)
