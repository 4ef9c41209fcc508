package constants

import "time"

// Shared duration vocabulary used by timeouts and polling.
const (
	Duration2Seconds  = 2 * time.Second
	Duration5Seconds  = 5 * time.Second
	Duration10Seconds = 10 * time.Second
	Duration15Seconds = 15 * time.Second
	Duration60Seconds = 60 * time.Second

	Duration15Minutes = 15 * time.Minute
	Duration1Hour     = time.Hour
)

// Domain-level timeout constants.
const (
	ReleaseMetadataTimeout = Duration15Seconds
	AssetDownloadTimeout   = Duration60Seconds

	HTTPReadHeaderTimeout = Duration5Seconds
	HTTPWriteTimeout      = 2 * AssetDownloadTimeout
	HTTPShutdownTimeout   = Duration10Seconds

	NonceTTL            = Duration1Hour
	FlashTTL            = Duration15Minutes
	OptionWatchInterval = Duration2Seconds
)
