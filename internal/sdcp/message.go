package sdcp

// Kind is the routing class of an inbound document.
type Kind int

const (
	KindUnknown Kind = iota
	KindStatus
	KindAck
)

func (k Kind) String() string {
	switch k {
	case KindStatus:
		return "status"
	case KindAck:
		return "ack"
	default:
		return "unknown"
	}
}

// Ack is a command acknowledgment.
type Ack struct {
	Cmd  int
	Code int
}

// Classify routes a decoded document. A Status object wins over an ack.
func Classify(doc Document) Kind {
	if _, ok := doc.Object("Status"); ok {
		return KindStatus
	}
	if _, ok := ParseAck(doc); ok {
		return KindAck
	}
	return KindUnknown
}

// ParseAck extracts Data.Cmd and Data.Data.Ack.
func ParseAck(doc Document) (Ack, bool) {
	data, ok := doc.Object("Data")
	if !ok {
		return Ack{}, false
	}
	cmd, ok := data.Int("Cmd")
	if !ok {
		return Ack{}, false
	}
	inner, ok := data.Object("Data")
	if !ok {
		return Ack{}, false
	}
	code, ok := inner.Int("Ack")
	if !ok {
		return Ack{}, false
	}
	return Ack{Cmd: cmd, Code: code}, true
}

// AckText describes an ack result code.
func AckText(code int) string {
	switch code {
	case 0:
		return "success"
	case 1:
		return "failure"
	case 2:
		return "file not found"
	default:
		return "unknown"
	}
}
