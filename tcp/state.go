package tcp

// State is the lifecycle state of a Socket.
type State uint8

const (
	StateUnconnected State = iota
	StateConnecting
	StateConnected
	StateEnding
	StateDestroyed
)

func (s State) String() string {
	switch s {
	case StateUnconnected:
		return "unconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateEnding:
		return "ending"
	case StateDestroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}

// ReadyState summarizes which directions of a socket are usable.
type ReadyState string

const (
	ReadyOpening   ReadyState = "opening"
	ReadyOpen      ReadyState = "open"
	ReadyReadOnly  ReadyState = "readOnly"
	ReadyWriteOnly ReadyState = "writeOnly"
	ReadyClosed    ReadyState = "closed"
)
