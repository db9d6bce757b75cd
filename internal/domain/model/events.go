package model

import "time"

// Kind discriminates the closed set of pipeline events.
type Kind string

// Event kinds published on the dispatcher.
const (
	KindMatch     Kind = "match"
	KindDecision  Kind = "decision"
	KindFrameDrop Kind = "frame_drop"
)

// Event is the sealed union of pipeline events. Only the types in this
// package implement it.
type Event interface {
	Kind() Kind
	EventID() string
}

// MatchEvent is emitted for every detected face, identified or not.
type MatchEvent struct {
	ID     string
	Result MatchResult
}

func (e MatchEvent) Kind() Kind      { return KindMatch }
func (e MatchEvent) EventID() string { return e.ID }

// DecisionEvent is emitted for every access decision, granted or denied.
type DecisionEvent struct {
	ID       string
	Decision AccessDecision
}

func (e DecisionEvent) Kind() Kind      { return KindDecision }
func (e DecisionEvent) EventID() string { return e.ID }

// Denied reports whether the carried decision denied access.
// Alerting subscribers filter on this.
func (e DecisionEvent) Denied() bool { return !e.Decision.Granted }

// FrameDropEvent is emitted when a camera queue sheds its oldest frame.
type FrameDropEvent struct {
	ID       string
	CameraID string
	FrameID  string
	TS       time.Time
}

func (e FrameDropEvent) Kind() Kind      { return KindFrameDrop }
func (e FrameDropEvent) EventID() string { return e.ID }
