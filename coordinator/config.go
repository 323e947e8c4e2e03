package coordinator

// Config holds configuration options for the Coordinator.
type Config struct {
	// MaxSessionSize caps the number of participants per session.
	// Zero means unlimited.
	MaxSessionSize int
}
