package constants

// Default server configuration values
const (
	DefaultServerPort            = 8080
	DefaultServerReadTimeoutSec  = 15
	DefaultServerWriteTimeoutSec = 15
	DefaultServerIdleTimeoutSec  = 60
	DefaultGracefulShutdownSec   = 30
	ServerErrorChannelSize       = 1
)

// Default websocket transport values
const (
	DefaultSendQueueSize     = 32
	DefaultWriteTimeoutSec   = 10
	DefaultMaxEventSizeBytes = 64 * 1024
)

// Default call signaling values
const (
	DefaultRingTimeoutSec    = 30
	DefaultEndCallCooldownMs = 2000
)

// Default upload configuration values
const (
	DefaultMaxUploadSizeMB = 5
	DefaultUploadDir       = "uploads"
	BytesPerMegabyte       = 1024 * 1024
)

// Validation bounds
const (
	MaxNameLength      = 64
	MaxProfileField    = 128
	MaxRoomNameLength  = 64
	MaxMessageLength   = 4096
	MaxMessageIDLength = 64
)

// Privacy settings
const (
	DefaultIDMaskLength = 4
)
