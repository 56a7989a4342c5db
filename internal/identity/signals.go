package identity

// Signals is the full inbound payload produced by the client-side signal
// collector. Every field is optional: resolution must not fail merely because
// a signal is absent or malformed.
type Signals struct {
	// Token is the bearer token from a previous visit, if the client kept it.
	Token string
	// Fingerprint is the raw client-derived device signature. The server
	// hashes it before storage; the raw value is never persisted.
	Fingerprint string
	// SessionID is an opaque session handle from the auth collaborator.
	SessionID string
	// LegacyID carries a pre-migration identity id for soft linking.
	LegacyID string
	// RegisteredUserID is set by the auth collaborator when the request
	// already carries a valid login; it short-circuits anonymous matching.
	RegisteredUserID string

	Device    DeviceMetadata
	Telemetry Telemetry
}

// DeviceMetadata describes the client device as self-reported alongside the
// User-Agent header.
type DeviceMetadata struct {
	UserAgent    string `json:"user_agent,omitempty"`
	Platform     string `json:"platform,omitempty"`
	ScreenWidth  int    `json:"screen_width,omitempty"`
	ScreenHeight int    `json:"screen_height,omitempty"`
	Timezone     string `json:"timezone,omitempty"`
	Language     string `json:"language,omitempty"`
}

// Telemetry is the behavioral measurement batch attached to a request.
// Pure observation: the collector makes no decisions.
type Telemetry struct {
	FocusMillis     int     `json:"focus_ms,omitempty"`
	IdleMillis      int     `json:"idle_ms,omitempty"`
	PasteCount      int     `json:"paste_count,omitempty"`
	KeystrokeCount  int     `json:"keystroke_count,omitempty"`
	ScrollDepthPct  int     `json:"scroll_depth_pct,omitempty"`
	PointerDistance float64 `json:"pointer_distance,omitempty"`
}
