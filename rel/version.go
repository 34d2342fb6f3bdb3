package rel

// Version constants for the canonical format and engine.
const (
	// FormatVersion is the canonical serialization format version.
	FormatVersion = "1"

	// EngineVersion is the relfold engine version.
	EngineVersion = "0.1.0"
)
