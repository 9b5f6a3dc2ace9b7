package compat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActiveDefaultsToLatest(t *testing.T) {
	// Built without a pulse_proto tag, the latest revision is active.
	assert.Equal(t, Latest, Active().Version())
}

func TestRoundTripEveryRevision(t *testing.T) {
	features := []Feature{
		FeatureSRBChannel,
		FeatureMemfdTransport,
		FeatureStreamMoveExtendedInfo,
		FeatureBufferAttrChangedEvent,
		FeatureSinkMessageCommand,
		FeatureRemoteClientName,
		FeatureSampleRateAdjust,
	}

	for rev := V30; rev <= Latest; rev++ {
		set, err := SetFor(rev)
		require.NoError(t, err)
		assert.Equal(t, rev, set.Version())

		for _, f := range features {
			want := rev >= MinRevision(f)
			assert.Equal(t, want, set.Supports(f), "%s under %s", f, rev)
			if want {
				assert.NoError(t, set.Require(f))
			} else {
				assert.ErrorIs(t, set.Require(f), ErrUnsupported)
			}
		}
	}
}

func TestFeatureGates(t *testing.T) {
	v30, _ := SetFor(V30)
	v31, _ := SetFor(V31)
	v35, _ := SetFor(V35)

	assert.True(t, v30.Supports(FeatureSRBChannel))
	assert.False(t, v30.Supports(FeatureMemfdTransport))
	assert.True(t, v31.Supports(FeatureMemfdTransport))
	assert.False(t, v31.Supports(FeatureSampleRateAdjust))
	assert.True(t, v35.Supports(FeatureSampleRateAdjust))
}

func TestSetForRejectsUnknownRevision(t *testing.T) {
	_, err := SetFor(Revision(29))
	assert.ErrorIs(t, err, ErrUnsupported)
	_, err = SetFor(Latest + 1)
	assert.ErrorIs(t, err, ErrUnsupported)
}
