// Package compat binds the native protocol revision the module was built
// against. Exactly one revision is active per process, selected at build
// time through the pulse_proto_NN build tags (none selected means the
// latest supported). The rest of the module never branches on "which
// version is this"; it holds a Set and asks it about logical features.
package compat

import (
	"errors"
	"fmt"
)

// ErrUnsupported reports a feature absent from the active protocol
// revision. Callers surface it instead of producing wrong values.
var ErrUnsupported = errors.New("not supported by the selected protocol revision")

// Revision is one native protocol revision the binding can target.
type Revision int

const (
	V30 Revision = 30 + iota
	V31
	V32
	V33
	V34
	V35
)

// Latest is the newest revision this module understands.
const Latest = V35

func (r Revision) String() string { return fmt.Sprintf("protocol v%d", int(r)) }

// Valid reports whether r is a revision this module understands.
func (r Revision) Valid() bool { return r >= V30 && r <= Latest }

// Feature is a logical capability whose availability depends on the
// protocol revision.
type Feature int

const (
	// FeatureSRBChannel is the shared-ringbuffer command channel.
	FeatureSRBChannel Feature = iota
	// FeatureMemfdTransport is memfd-backed shared memory transport.
	FeatureMemfdTransport
	// FeatureStreamMoveExtendedInfo is extended device info on stream-moved
	// notifications.
	FeatureStreamMoveExtendedInfo
	// FeatureBufferAttrChangedEvent is the asynchronous buffer-attribute
	// change notification.
	FeatureBufferAttrChangedEvent
	// FeatureSinkMessageCommand is the generic sink message command.
	FeatureSinkMessageCommand
	// FeatureRemoteClientName is the remote client name field in client
	// info.
	FeatureRemoteClientName
	// FeatureSampleRateAdjust is on-the-fly stream sample rate adjustment.
	FeatureSampleRateAdjust

	featureCount
)

var featureMin = [featureCount]Revision{
	FeatureSRBChannel:             V30,
	FeatureMemfdTransport:         V31,
	FeatureStreamMoveExtendedInfo: V32,
	FeatureBufferAttrChangedEvent: V32,
	FeatureSinkMessageCommand:     V33,
	FeatureRemoteClientName:       V34,
	FeatureSampleRateAdjust:       V35,
}

func (f Feature) String() string {
	switch f {
	case FeatureSRBChannel:
		return "srbchannel"
	case FeatureMemfdTransport:
		return "memfd-transport"
	case FeatureStreamMoveExtendedInfo:
		return "stream-move-extended-info"
	case FeatureBufferAttrChangedEvent:
		return "buffer-attr-changed-event"
	case FeatureSinkMessageCommand:
		return "sink-message-command"
	case FeatureRemoteClientName:
		return "remote-client-name"
	case FeatureSampleRateAdjust:
		return "sample-rate-adjust"
	default:
		return "unknown"
	}
}

// Set is the immutable capability table of one revision.
type Set struct {
	rev Revision
}

// Active returns the Set of the build-selected revision.
func Active() Set { return Set{rev: selected} }

// SetFor returns the Set of an arbitrary supported revision. Intended for
// tests; production code uses Active.
func SetFor(rev Revision) (Set, error) {
	if !rev.Valid() {
		return Set{}, fmt.Errorf("revision %d: %w", int(rev), ErrUnsupported)
	}
	return Set{rev: rev}, nil
}

// Version returns the revision the set describes.
func (s Set) Version() Revision { return s.rev }

// Supports reports whether the revision carries the feature.
func (s Set) Supports(f Feature) bool {
	if f < 0 || f >= featureCount {
		return false
	}
	return s.rev >= featureMin[f]
}

// Require returns ErrUnsupported (wrapped with the feature name) if the
// revision lacks the feature.
func (s Set) Require(f Feature) error {
	if s.Supports(f) {
		return nil
	}
	return fmt.Errorf("%s under %s: %w", f, s.rev, ErrUnsupported)
}

// MinRevision returns the first revision that carries the feature.
func MinRevision(f Feature) Revision {
	if f < 0 || f >= featureCount {
		return Latest + 1
	}
	return featureMin[f]
}
