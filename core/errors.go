package core

import (
	"errors"
	"fmt"

	"github.com/lisuiheng/pulse-go/compat"
	"github.com/lisuiheng/pulse-go/proto"
)

var (
	// ErrInvalidState reports a request issued against a context or stream
	// that is not in a state accepting it. Checked locally; no native call
	// is made.
	ErrInvalidState = errors.New("operation not valid in current state")

	// ErrTooLarge reports a playback write longer than the advertised
	// writable size.
	ErrTooLarge = errors.New("write exceeds advertised writable size")

	// ErrBadDirection reports a playback call on a record stream or vice
	// versa.
	ErrBadDirection = errors.New("operation not valid for stream direction")

	// ErrInvalidSpec reports an unusable sample specification or channel
	// map.
	ErrInvalidSpec = errors.New("invalid sample specification")

	// ErrCancelled reports delivery suppressed by cancellation.
	ErrCancelled = errors.New("operation cancelled")

	// ErrConnectionLost reports an asynchronous connection failure.
	ErrConnectionLost = errors.New("connection lost")

	// ErrUnsupportedByVersion reports a feature absent from the protocol
	// revision the module was built against.
	ErrUnsupportedByVersion = compat.ErrUnsupported
)

// ServerError wraps a native error code delivered by the server.
type ServerError struct {
	Code proto.ErrCode
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server error %d: %s", int(e.Code), e.Code)
}
