package domain

// ConnState is the lifecycle state of a client connection.
type ConnState int32

const (
	StateConnecting ConnState = iota
	StateOpen
	StateClosing
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "CONNECTING"
	case StateOpen:
		return "OPEN"
	case StateClosing:
		return "CLOSING"
	case StateClosed:
		return "CLOSED"
	}
	return "UNKNOWN"
}

type Stats struct {
	Online int    `json:"online"`
	Pixels uint64 `json:"pixels"`
}

type Settings struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type Connection interface {
	ID() string
	State() ConnState
	Send(data []byte) error
	Close() error
}

type Broadcaster interface {
	Register(conn Connection)
	Unregister(conn Connection)
	Stats() Stats
}

type MessageHandler interface {
	Handle(conn Connection, data []byte)
}

// StatsSender is implemented by connections that keep at most one pending
// stats payload, replacing an unsent one with the newer value.
type StatsSender interface {
	SendStats(data []byte) error
}
