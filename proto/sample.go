package proto

import (
	"fmt"
	"time"
)

// SampleFormat identifies the on-the-wire encoding of one sample.
type SampleFormat int

const (
	SampleInvalid SampleFormat = iota - 1
	SampleU8
	SampleALaw
	SampleULaw
	SampleS16LE
	SampleS16BE
	SampleFloat32LE
	SampleFloat32BE
	SampleS32LE
	SampleS32BE
	SampleS24LE
	SampleS24BE
	SampleS24In32LE
	SampleS24In32BE
)

// SampleSize returns the width of one sample in bytes, or 0 for an invalid
// format.
func (f SampleFormat) SampleSize() int {
	switch f {
	case SampleU8, SampleALaw, SampleULaw:
		return 1
	case SampleS16LE, SampleS16BE:
		return 2
	case SampleS24LE, SampleS24BE:
		return 3
	case SampleFloat32LE, SampleFloat32BE, SampleS32LE, SampleS32BE, SampleS24In32LE, SampleS24In32BE:
		return 4
	default:
		return 0
	}
}

func (f SampleFormat) String() string {
	switch f {
	case SampleU8:
		return "u8"
	case SampleALaw:
		return "alaw"
	case SampleULaw:
		return "ulaw"
	case SampleS16LE:
		return "s16le"
	case SampleS16BE:
		return "s16be"
	case SampleFloat32LE:
		return "float32le"
	case SampleFloat32BE:
		return "float32be"
	case SampleS32LE:
		return "s32le"
	case SampleS32BE:
		return "s32be"
	case SampleS24LE:
		return "s24le"
	case SampleS24BE:
		return "s24be"
	case SampleS24In32LE:
		return "s24-32le"
	case SampleS24In32BE:
		return "s24-32be"
	default:
		return "invalid"
	}
}

// ParseSampleFormat maps the textual form back to a format.
func ParseSampleFormat(s string) (SampleFormat, error) {
	for f := SampleU8; f <= SampleS24In32BE; f++ {
		if f.String() == s {
			return f, nil
		}
	}
	return SampleInvalid, fmt.Errorf("unknown sample format %q", s)
}

const (
	// RateMax is the highest sample rate the server accepts.
	RateMax = 48000 * 8

	// ChannelsMax is the highest channel count the server accepts.
	ChannelsMax = 32
)

// SampleSpec fixes the interpretation of raw sample buffers for the
// lifetime of a stream.
type SampleSpec struct {
	Format   SampleFormat
	Rate     uint32
	Channels uint8
}

// Valid reports whether the spec can describe a stream.
func (s SampleSpec) Valid() bool {
	return s.Format.SampleSize() > 0 &&
		s.Rate > 0 && s.Rate <= RateMax &&
		s.Channels > 0 && s.Channels <= ChannelsMax
}

// FrameSize returns the byte width of one frame (one sample per channel).
func (s SampleSpec) FrameSize() int {
	return s.Format.SampleSize() * int(s.Channels)
}

// BytesPerSecond returns the data rate of a stream with this spec.
func (s SampleSpec) BytesPerSecond() int {
	return s.FrameSize() * int(s.Rate)
}

// BytesToDuration converts a byte count to play time under this spec.
func (s SampleSpec) BytesToDuration(n int) time.Duration {
	bps := s.BytesPerSecond()
	if bps == 0 {
		return 0
	}
	return time.Duration(n) * time.Second / time.Duration(bps)
}

// DurationToBytes converts play time to a frame-aligned byte count.
func (s SampleSpec) DurationToBytes(d time.Duration) int {
	n := int(d * time.Duration(s.BytesPerSecond()) / time.Second)
	if fs := s.FrameSize(); fs > 0 {
		n -= n % fs
	}
	return n
}

func (s SampleSpec) String() string {
	return fmt.Sprintf("%s %dch %dHz", s.Format, s.Channels, s.Rate)
}

// ChannelPosition labels one channel of a map.
type ChannelPosition int

const (
	PositionInvalid ChannelPosition = iota - 1
	PositionMono
	PositionFrontLeft
	PositionFrontRight
	PositionFrontCenter
	PositionRearCenter
	PositionRearLeft
	PositionRearRight
	PositionLFE
	PositionFrontLeftOfCenter
	PositionFrontRightOfCenter
	PositionSideLeft
	PositionSideRight
)

// ChannelMap assigns a position to every channel of a stream.
type ChannelMap []ChannelPosition

// DefaultChannelMap returns the conventional map for a channel count, or nil
// if there is no convention.
func DefaultChannelMap(channels uint8) ChannelMap {
	switch channels {
	case 1:
		return ChannelMap{PositionMono}
	case 2:
		return ChannelMap{PositionFrontLeft, PositionFrontRight}
	case 4:
		return ChannelMap{PositionFrontLeft, PositionFrontRight, PositionRearLeft, PositionRearRight}
	case 6:
		return ChannelMap{
			PositionFrontLeft, PositionFrontRight, PositionFrontCenter,
			PositionLFE, PositionRearLeft, PositionRearRight,
		}
	default:
		return nil
	}
}

// Compatible reports whether the map can serve a stream with the given spec.
func (m ChannelMap) Compatible(s SampleSpec) bool {
	return len(m) == int(s.Channels)
}
