package mount

// State represents the current state of a bookmark's mount lifecycle.
type State int

const (
	Unmounted  State = iota // No active mount for the URI
	Mounting                // Mount request in flight
	Mounted                 // OS reports an active mount
	Unmounting              // Unmount request in flight
	Failed                  // Last mount attempt failed
)

func (s State) String() string {
	switch s {
	case Unmounted:
		return "unmounted"
	case Mounting:
		return "mounting"
	case Mounted:
		return "mounted"
	case Unmounting:
		return "unmounting"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}
