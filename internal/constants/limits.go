// Package constants holds limits and timeouts shared across packages.
package constants

// Size limits for bodies read from remote endpoints.
const (
	MaxReleaseIndexSize = 10 * 1024 * 1024
	MaxAssetSize        = 5 * 1024 * 1024
	MaxHashFileSize     = 4 * 1024
	MaxRedirects        = 10
)

// UserAgent is sent with every outbound request.
const UserAgent = "send2crm-release-manager/1.0"

// PermissionDenied is the message returned to callers that may not manage settings.
const PermissionDenied = "Insufficient permissions"
