package proto

import "fmt"

// Volume is the gain of one channel on the server's cubic scale.
type Volume uint32

const (
	// VolumeMuted is silence.
	VolumeMuted Volume = 0
	// VolumeNorm is 100%, no attenuation and no amplification.
	VolumeNorm Volume = 0x10000
	// VolumeMax is the largest volume the server accepts.
	VolumeMax Volume = ^Volume(0) / 2
	// VolumeInvalid marks a volume that carries no value.
	VolumeInvalid Volume = ^Volume(0)
)

// Valid reports whether v carries a usable value.
func (v Volume) Valid() bool { return v <= VolumeMax }

// Percent expresses v relative to VolumeNorm.
func (v Volume) Percent() float64 { return float64(v) / float64(VolumeNorm) * 100 }

func (v Volume) String() string {
	if !v.Valid() {
		return "invalid"
	}
	return fmt.Sprintf("%.0f%%", v.Percent())
}

// CVolume is a per-channel volume vector.
type CVolume []Volume

// NewCVolume returns a vector of the given width with every channel at v.
func NewCVolume(channels uint8, v Volume) CVolume {
	cv := make(CVolume, channels)
	for i := range cv {
		cv[i] = v
	}
	return cv
}

// Valid reports whether the vector is non-empty and every channel carries a
// usable value.
func (cv CVolume) Valid() bool {
	if len(cv) == 0 || len(cv) > ChannelsMax {
		return false
	}
	for _, v := range cv {
		if !v.Valid() {
			return false
		}
	}
	return true
}

// Avg returns the mean channel volume.
func (cv CVolume) Avg() Volume {
	if len(cv) == 0 {
		return VolumeMuted
	}
	var sum uint64
	for _, v := range cv {
		sum += uint64(v)
	}
	return Volume(sum / uint64(len(cv)))
}

// Max returns the loudest channel volume.
func (cv CVolume) Max() Volume {
	var m Volume
	for _, v := range cv {
		if v > m {
			m = v
		}
	}
	return m
}

// ScaledBy returns a copy with every channel multiplied by f, clamped to
// VolumeMax.
func (cv CVolume) ScaledBy(f float64) CVolume {
	out := make(CVolume, len(cv))
	for i, v := range cv {
		s := float64(v) * f
		if s < 0 {
			s = 0
		}
		if s > float64(VolumeMax) {
			s = float64(VolumeMax)
		}
		out[i] = Volume(s)
	}
	return out
}
