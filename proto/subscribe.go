package proto

// Facility names the class of server object a subscription event concerns.
type Facility int

const (
	FacilitySink Facility = iota
	FacilitySource
	FacilitySinkInput
	FacilitySourceOutput
	FacilityModule
	FacilityClient
	FacilitySampleCache
	FacilityServer
	FacilityCard
)

func (f Facility) String() string {
	switch f {
	case FacilitySink:
		return "sink"
	case FacilitySource:
		return "source"
	case FacilitySinkInput:
		return "sink-input"
	case FacilitySourceOutput:
		return "source-output"
	case FacilityModule:
		return "module"
	case FacilityClient:
		return "client"
	case FacilitySampleCache:
		return "sample-cache"
	case FacilityServer:
		return "server"
	case FacilityCard:
		return "card"
	default:
		return "unknown"
	}
}

// Mask selects the facility in Facility's bit of a SubscriptionMask.
func (f Facility) Mask() SubscriptionMask { return 1 << uint(f) }

// SubscriptionMask selects which facilities a subscription covers.
type SubscriptionMask uint32

const (
	SubscriptionMaskNull         SubscriptionMask = 0
	SubscriptionMaskSink         SubscriptionMask = 1 << FacilitySink
	SubscriptionMaskSource       SubscriptionMask = 1 << FacilitySource
	SubscriptionMaskSinkInput    SubscriptionMask = 1 << FacilitySinkInput
	SubscriptionMaskSourceOutput SubscriptionMask = 1 << FacilitySourceOutput
	SubscriptionMaskModule       SubscriptionMask = 1 << FacilityModule
	SubscriptionMaskClient       SubscriptionMask = 1 << FacilityClient
	SubscriptionMaskSampleCache  SubscriptionMask = 1 << FacilitySampleCache
	SubscriptionMaskServer       SubscriptionMask = 1 << FacilityServer
	SubscriptionMaskCard         SubscriptionMask = 1 << FacilityCard
	SubscriptionMaskAll          SubscriptionMask = 0x02ff
)

// Contains reports whether the mask covers the given facility.
func (m SubscriptionMask) Contains(f Facility) bool {
	return m&f.Mask() != 0
}

// EventKind says what happened to the object an event names.
type EventKind int

const (
	EventNew EventKind = iota
	EventChanged
	EventRemoved
)

func (k EventKind) String() string {
	switch k {
	case EventNew:
		return "new"
	case EventChanged:
		return "changed"
	case EventRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// SubscriptionEvent is one server-side change notification.
type SubscriptionEvent struct {
	Facility Facility
	Kind     EventKind
	Index    uint32
}

func (e SubscriptionEvent) String() string {
	return e.Facility.String() + " " + e.Kind.String()
}
