package proto

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSampleSpecValid(t *testing.T) {
	good := SampleSpec{Format: SampleS16LE, Rate: 44100, Channels: 2}
	assert.True(t, good.Valid())

	assert.False(t, SampleSpec{Format: SampleInvalid, Rate: 44100, Channels: 2}.Valid())
	assert.False(t, SampleSpec{Format: SampleS16LE, Rate: 0, Channels: 2}.Valid())
	assert.False(t, SampleSpec{Format: SampleS16LE, Rate: RateMax + 1, Channels: 2}.Valid())
	assert.False(t, SampleSpec{Format: SampleS16LE, Rate: 44100, Channels: 0}.Valid())
	assert.False(t, SampleSpec{Format: SampleS16LE, Rate: 44100, Channels: ChannelsMax + 1}.Valid())
}

func TestSampleSpecMetrics(t *testing.T) {
	spec := SampleSpec{Format: SampleS16LE, Rate: 44100, Channels: 2}

	assert.Equal(t, 4, spec.FrameSize())
	assert.Equal(t, 176400, spec.BytesPerSecond())
	assert.Equal(t, time.Second, spec.BytesToDuration(176400))

	n := spec.DurationToBytes(250 * time.Millisecond)
	assert.Equal(t, 44100, n)
	assert.Zero(t, n%spec.FrameSize())
}

func TestParseSampleFormat(t *testing.T) {
	f, err := ParseSampleFormat("float32le")
	require.NoError(t, err)
	assert.Equal(t, SampleFloat32LE, f)

	_, err = ParseSampleFormat("mp3")
	require.Error(t, err)
}

func TestDefaultChannelMap(t *testing.T) {
	stereo := DefaultChannelMap(2)
	require.Len(t, stereo, 2)
	assert.True(t, stereo.Compatible(SampleSpec{Format: SampleS16LE, Rate: 44100, Channels: 2}))
	assert.False(t, stereo.Compatible(SampleSpec{Format: SampleS16LE, Rate: 44100, Channels: 6}))

	assert.Nil(t, DefaultChannelMap(3))
}

func TestVolumePercent(t *testing.T) {
	assert.Equal(t, 100.0, VolumeNorm.Percent())
	assert.Equal(t, 0.0, VolumeMuted.Percent())
	assert.Equal(t, 50.0, (VolumeNorm / 2).Percent())
}

func TestCVolumeOps(t *testing.T) {
	cv := NewCVolume(2, VolumeNorm)
	assert.True(t, cv.Valid())
	assert.Equal(t, VolumeNorm, cv.Avg())
	assert.Equal(t, VolumeNorm, cv.Max())

	half := cv.ScaledBy(0.5)
	assert.Equal(t, VolumeNorm/2, half.Avg())

	assert.False(t, CVolume{}.Valid())
	assert.False(t, CVolume{VolumeInvalid}.Valid())
}

func TestSubscriptionMask(t *testing.T) {
	m := SubscriptionMaskSink | SubscriptionMaskServer
	assert.True(t, m.Contains(FacilitySink))
	assert.True(t, m.Contains(FacilityServer))
	assert.False(t, m.Contains(FacilitySource))

	for f := FacilitySink; f <= FacilityCard; f++ {
		assert.True(t, SubscriptionMaskAll.Contains(f), f.String())
	}
}
