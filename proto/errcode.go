package proto

import "fmt"

// ErrCode is a native server error code, surfaced verbatim.
type ErrCode int

const (
	ErrOK ErrCode = iota
	ErrAccess
	ErrCommand
	ErrInvalid
	ErrExist
	ErrNoEntity
	ErrConnectionRefused
	ErrProtocol
	ErrTimeout
	ErrAuthKey
	ErrInternal
	ErrConnectionTerminated
	ErrKilled
	ErrInvalidServer
	ErrModInitFailed
	ErrBadState
	ErrNoData
	ErrVersion
	ErrTooLargePayload
	ErrNotSupported
	ErrUnknown
	ErrNoExtension
	ErrObsolete
	ErrNotImplemented
	ErrForked
	ErrIO
	ErrBusy
)

var errStrings = map[ErrCode]string{
	ErrOK:                   "OK",
	ErrAccess:               "Access denied",
	ErrCommand:              "Unknown command",
	ErrInvalid:              "Invalid argument",
	ErrExist:                "Entity exists",
	ErrNoEntity:             "No such entity",
	ErrConnectionRefused:    "Connection refused",
	ErrProtocol:             "Protocol error",
	ErrTimeout:              "Timeout",
	ErrAuthKey:              "No authentication key",
	ErrInternal:             "Internal error",
	ErrConnectionTerminated: "Connection terminated",
	ErrKilled:               "Entity killed",
	ErrInvalidServer:        "Invalid server",
	ErrModInitFailed:        "Module initialization failed",
	ErrBadState:             "Bad state",
	ErrNoData:               "No data",
	ErrVersion:              "Incompatible protocol version",
	ErrTooLargePayload:      "Too large",
	ErrNotSupported:         "Not supported",
	ErrUnknown:              "Unknown error code",
	ErrNoExtension:          "No such extension",
	ErrObsolete:             "Obsolete functionality",
	ErrNotImplemented:       "Missing implementation",
	ErrForked:               "Client forked",
	ErrIO:                   "Input/Output error",
	ErrBusy:                 "Device or resource busy",
}

func (e ErrCode) String() string {
	if s, ok := errStrings[e]; ok {
		return s
	}
	return fmt.Sprintf("error #%d", int(e))
}
