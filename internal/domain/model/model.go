// Package model contains domain models passed between layers.
package model

import "time"

// Level is the ordinal permission level attached to zones and grants.
// Higher values dominate lower ones.
type Level int

// Permission levels, weakest to strongest.
const (
	LevelNone Level = iota
	LevelBasic
	LevelRestricted
	LevelHighSecurity
	LevelAdmin
)

// String returns the canonical name used in config files and logs.
func (l Level) String() string {
	switch l {
	case LevelNone:
		return "none"
	case LevelBasic:
		return "basic"
	case LevelRestricted:
		return "restricted"
	case LevelHighSecurity:
		return "high_security"
	case LevelAdmin:
		return "admin"
	default:
		return "unknown"
	}
}

// ParseLevel maps a config-file level name to its ordinal.
// Unknown names map to LevelNone so a typo can never widen access.
func ParseLevel(s string) Level {
	switch s {
	case "basic":
		return LevelBasic
	case "restricted":
		return LevelRestricted
	case "high_security":
		return LevelHighSecurity
	case "admin":
		return LevelAdmin
	default:
		return LevelNone
	}
}

// Encoding is one enrolled feature vector for an identity.
// Encodings are immutable once stored; re-enrollment appends.
type Encoding struct {
	Vector    []float64 // fixed-length feature vector
	Quality   float64   // [0,1], from the encoder
	CreatedAt time.Time
}

// Identity is an enrolled person with a multi-sample gallery.
type Identity struct {
	ID          string
	DisplayName string
	Encodings   []Encoding
	Active      bool
}

// Matchable reports whether the identity can participate in matching.
func (i Identity) Matchable() bool {
	return i.Active && len(i.Encodings) > 0
}

// BBox is a face region within a frame, in pixel coordinates.
type BBox struct {
	X, Y, W, H int
}

// Frame is a single camera frame entering the pipeline.
type Frame struct {
	ID       string // unique per submission
	CameraID string
	Image    []byte // raw encoded image; opaque to the core
	TS       time.Time
}

// Detection is one face region reported by the detector.
type Detection struct {
	BBox       BBox
	Confidence float64 // detector confidence, [0,1]
}

// MatchResult is the outcome of matching one detected face.
// An empty IdentityID means the face was not identified.
type MatchResult struct {
	IdentityID string
	Confidence float64 // [0,1], higher is better
	BBox       BBox
	Timestamp  time.Time
	CameraID   string
}

// Identified reports whether the match resolved to an enrolled identity.
func (m MatchResult) Identified() bool {
	return m.IdentityID != ""
}

// Reason explains an access decision.
type Reason string

// Decision reasons. Exactly one is set per decision.
const (
	ReasonMatchedSufficientLevel Reason = "MATCHED_SUFFICIENT_LEVEL"
	ReasonInsufficientLevel      Reason = "INSUFFICIENT_LEVEL"
	ReasonOutsideSchedule        Reason = "OUTSIDE_SCHEDULE"
	ReasonUnidentified           Reason = "UNIDENTIFIED"
	ReasonZoneUnknown            Reason = "ZONE_UNKNOWN"
)

// AccessDecision is the terminal result of one access request.
type AccessDecision struct {
	Granted    bool
	IdentityID string // empty when unidentified
	ZoneID     string
	Reason     Reason
	Timestamp  time.Time
}
