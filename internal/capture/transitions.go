// Package capture drives the client side of the intake: the profile form,
// the video recording session and the final review.
//
// Recording session states:
//
//	Idle ──Start──► Recording ──Stop/Timeout──► Recorded ──Upload──► Uploading ──UploadOK──► Done
//	 ▲  ◄──Denied──┘    │                         │  ▲                  │
//	 └──────NoData──────┘                         │  └───UploadFailed───┘
//	 ▲                                            │
//	 └───────────────────Rerecord─────────────────┘
//
// Done is terminal.
package capture

import (
	"errors"
	"fmt"
)

// State is the recording session state.
type State int

const (
	StateIdle State = iota
	StateRecording
	StateRecorded
	StateUploading
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecording:
		return "recording"
	case StateRecorded:
		return "recorded"
	case StateUploading:
		return "uploading"
	case StateDone:
		return "done"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Event drives a session from one state to the next.
type Event int

const (
	EventStart Event = iota
	EventDenied
	EventTick
	EventStop
	EventTimeout
	EventNoData
	EventRerecord
	EventUpload
	EventUploadOK
	EventUploadFailed
)

func (e Event) String() string {
	switch e {
	case EventStart:
		return "start"
	case EventDenied:
		return "denied"
	case EventTick:
		return "tick"
	case EventStop:
		return "stop"
	case EventTimeout:
		return "timeout"
	case EventNoData:
		return "no-data"
	case EventRerecord:
		return "rerecord"
	case EventUpload:
		return "upload"
	case EventUploadOK:
		return "upload-ok"
	case EventUploadFailed:
		return "upload-failed"
	default:
		return fmt.Sprintf("event(%d)", int(e))
	}
}

// ErrInvalidTransition is returned when an event is not allowed in the
// current state.
var ErrInvalidTransition = errors.New("invalid transition")

type transition struct {
	from  State
	event Event
}

// transitions lists every allowed (state, event) pair and its target.
var transitions = map[transition]State{
	{StateIdle, EventStart}:  StateRecording,
	{StateIdle, EventDenied}: StateIdle,

	{StateRecording, EventTick}:    StateRecording,
	{StateRecording, EventStop}:    StateRecorded,
	{StateRecording, EventTimeout}: StateRecorded,
	{StateRecording, EventNoData}:  StateIdle,

	{StateRecorded, EventRerecord}: StateIdle,
	{StateRecorded, EventUpload}:   StateUploading,

	{StateUploading, EventUploadOK}:     StateDone,
	{StateUploading, EventUploadFailed}: StateRecorded,
	// Done is terminal
}

// Next returns the state reached from s on e.
func Next(s State, e Event) (State, error) {
	to, ok := transitions[transition{s, e}]
	if !ok {
		return s, fmt.Errorf("%w: %s on %s", ErrInvalidTransition, e, s)
	}
	return to, nil
}

// HasClip reports whether a session in state s holds recorded bytes.
func HasClip(s State) bool {
	return s == StateRecorded || s == StateUploading || s == StateDone
}
