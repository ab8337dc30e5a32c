package types

// AppInfo identifies the client build that registers for notifications.
type AppInfo struct {
	Bundle      string `json:"bundle"`
	Version     string `json:"version"`
	BuildNumber string `json:"buildNumber"`
}

// DeviceType constants accepted by the transaction service
const (
	DeviceTypeIOS     = "IOS"
	DeviceTypeAndroid = "ANDROID"
	DeviceTypeWeb     = "WEB"
)

// IsValidDeviceType reports whether t is a known device type
func IsValidDeviceType(t string) bool {
	switch t {
	case DeviceTypeIOS, DeviceTypeAndroid, DeviceTypeWeb:
		return true
	}
	return false
}

// AuthorizationStatus mirrors the platform's notification permission state.
type AuthorizationStatus string

const (
	AuthorizationUndetermined AuthorizationStatus = "undetermined"
	AuthorizationDenied       AuthorizationStatus = "denied"
	AuthorizationGranted      AuthorizationStatus = "granted"
	AuthorizationProvisional  AuthorizationStatus = "provisional"
	AuthorizationEphemeral    AuthorizationStatus = "ephemeral"
)

// HasPermission reports whether notifications may be delivered.
// Ephemeral grants are session-scoped and do not count.
func (s AuthorizationStatus) HasPermission() bool {
	return s == AuthorizationGranted || s == AuthorizationProvisional
}

// IsValid reports whether s is one of the known statuses
func (s AuthorizationStatus) IsValid() bool {
	switch s {
	case AuthorizationUndetermined, AuthorizationDenied, AuthorizationGranted,
		AuthorizationProvisional, AuthorizationEphemeral:
		return true
	}
	return false
}

// TrackingState is the coarse push state reported to analytics.
type TrackingState string

const (
	TrackingEnabled  TrackingState = "enabled"
	TrackingDisabled TrackingState = "disabled"
	TrackingUnknown  TrackingState = "unknown"
)

// TrackingState collapses the status into enabled/disabled/unknown
func (s AuthorizationStatus) TrackingState() TrackingState {
	switch s {
	case AuthorizationGranted, AuthorizationProvisional, AuthorizationEphemeral:
		return TrackingEnabled
	case AuthorizationDenied:
		return TrackingDisabled
	default:
		return TrackingUnknown
	}
}
