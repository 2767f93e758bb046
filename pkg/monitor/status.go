package monitor

// Status is the simple classifier's verdict for one tick.
type Status int

const (
	StatusUnknown Status = iota
	StatusIdle
	StatusNormal
	StatusOverload
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusNormal:
		return "normal"
	case StatusOverload:
		return "overload"
	default:
		return "unknown"
	}
}
