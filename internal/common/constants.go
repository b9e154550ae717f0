package common

const (
	// Compression constants
	DefaultCompressionLevel = "balanced"
	MaxConcurrencyLimit     = 8
	EngineVersion           = "1.0.0"

	// File operation constants
	DefaultFilePermissions = 0755
	DefaultFileMode        = 0644

	CompressedSuffix = "_compressed"
)
