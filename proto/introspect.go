package proto

// PropList carries the free-form properties attached to server objects.
type PropList map[string]string

// Well-known property keys.
const (
	PropApplicationName = "application.name"
	PropMediaName       = "media.name"
	PropDeviceString    = "device.string"
	PropDeviceClass     = "device.class"
)

// Clone returns an independent copy of the list.
func (p PropList) Clone() PropList {
	if p == nil {
		return nil
	}
	out := make(PropList, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// ServerInfo describes the daemon itself.
type ServerInfo struct {
	PackageName       string
	PackageVersion    string
	User              string
	Hostname          string
	DefaultSampleSpec SampleSpec
	DefaultSinkName   string
	DefaultSourceName string
	Cookie            uint32
}

// SinkInfo describes one playback device.
type SinkInfo struct {
	Index          uint32
	Name           string
	Description    string
	SampleSpec     SampleSpec
	ChannelMap     ChannelMap
	OwnerModule    uint32
	Volume         CVolume
	Muted          bool
	MonitorSource  uint32
	Latency        uint64
	Driver         string
	Flags          SinkFlags
	Properties     PropList
	State          SinkState
	BaseVolume     Volume
	VolumeSteps    uint32
	Card           uint32
	ActivePortName string
}

// SourceInfo describes one capture device.
type SourceInfo struct {
	Index           uint32
	Name            string
	Description     string
	SampleSpec      SampleSpec
	ChannelMap      ChannelMap
	OwnerModule     uint32
	Volume          CVolume
	Muted           bool
	MonitorOfSink   uint32
	Latency         uint64
	Driver          string
	Flags           SourceFlags
	Properties      PropList
	State           SourceState
	BaseVolume      Volume
	VolumeSteps     uint32
	Card            uint32
	ActivePortName  string
}

// ClientInfo describes one connected client.
type ClientInfo struct {
	Index       uint32
	Name        string
	OwnerModule uint32
	Driver      string
	Properties  PropList
}

// CardInfo describes one sound card.
type CardInfo struct {
	Index             uint32
	Name              string
	OwnerModule       uint32
	Driver            string
	Properties        PropList
	ActiveProfileName string
}
