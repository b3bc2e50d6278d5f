package icloud

// PhotoDescriptor is a lightweight reference to one remote library item,
// returned by listing. It exists only within a listing round trip: either
// the item is downloaded and committed locally, or the descriptor is
// discarded.
type PhotoDescriptor struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
}

// ChallengeKind names the verification mechanism a pending sign-in is
// waiting on.
type ChallengeKind string

const (
	// ChallengeNone means no interactive verification is pending.
	ChallengeNone ChallengeKind = ""
	// Challenge2FA is the code-based two-factor flow: the service pushes
	// a numeric code to a trusted device.
	Challenge2FA ChallengeKind = "2fa"
	// Challenge2SA is the older device-trust two-step flow where a code
	// is sent to a device the user selects.
	Challenge2SA ChallengeKind = "2sa"
)

// Variant selects the quality of a downloadable asset.
type Variant string

const (
	// VariantOriginal is the full-resolution asset.
	VariantOriginal Variant = "original"
	// VariantPreview is the service's reduced-size rendition.
	VariantPreview Variant = "preview"
)

type signInRequest struct {
	AppleID  string `json:"appleId"`
	Password string `json:"password"`
}

type signInResponse struct {
	DSID           string   `json:"dsid"`
	Token          string   `json:"token"`
	Requires2FA    bool     `json:"requires2fa"`
	ChallengeKind  string   `json:"challengeKind"`
	TrustedDevices []string `json:"trustedDevices"`
}

type verifyRequest struct {
	DSID string `json:"dsid"`
	Code string `json:"code"`
}

type verifyResponse struct {
	Token string `json:"token"`
}

type listResponse struct {
	Total  int               `json:"total"`
	Photos []PhotoDescriptor `json:"photos"`
}

type errorResponse struct {
	Error string `json:"error"`
}
