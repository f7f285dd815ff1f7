package exitcodes

// Exit codes for dump-sanitiser
// These codes form the operational contract with scripts wrapping a run
const (
	Success         = 0 // Successful execution
	InvalidConfig   = 2 // Configuration file or flags invalid
	SafetyViolation = 3 // Safety validator blocked an operation
	RuntimeError    = 4 // Scan, transfer or deletion failure during a run
	InvalidPath     = 5 // Source or destination root missing or not a directory
)
