// Package notes turns one hand's landmarks into the on/off state of seven solfège notes.
//
// A note is on when its target landmark lies within a distance threshold of the
// thumb tip. The "do" target has no landmark of its own; it is derived every frame
// as the midpoint of the thumb MCP and the index MCP and appended under DoID.
package notes

import (
	"fmt"
	"strings"

	"github.com/ayusman/solfa/internal/hand"
)

// Landmark ids and size guards used by derivation and classification.
const (
	// DoID is the id reserved for the derived "do" landmark.
	DoID = hand.NumLandmarks
	// ThumbTipID is the reference landmark every target is measured against.
	ThumbTipID = hand.ThumbTip
	// DoSourceA and DoSourceB are the landmarks whose midpoint is "do".
	DoSourceA = hand.ThumbMCP
	DoSourceB = hand.IndexMCP

	// MinLandmarksForDerivation is the smallest set that can hold ids 0-5.
	MinLandmarksForDerivation = 6
	// MinLandmarksForClassification is a full hand plus the derived "do".
	MinLandmarksForClassification = hand.NumLandmarks + 1

	// DefaultEpsilon is the pinch threshold in pixels for a 640x480 frame.
	DefaultEpsilon = 30.0
)

// Note identifies one of the seven playable notes. Its value is the index in a Vector.
type Note int

const (
	Do Note = iota
	Re
	Mi
	Fa
	Sol
	La
	Si
	NumNotes
)

var noteNames = [NumNotes]string{"do", "re", "mi", "fa", "sol", "la", "si"}

// Targets lists the landmark id measured for each note, in Vector order.
var Targets = [NumNotes]int{
	Do:  DoID,
	Re:  hand.IndexMCP,
	Mi:  hand.IndexTip,
	Fa:  hand.MiddleTip,
	Sol: hand.RingTip,
	La:  hand.PinkyTip,
	Si:  hand.PinkyMCP,
}

// String returns the solfège name of the note.
func (n Note) String() string {
	if n < 0 || n >= NumNotes {
		return "unknown"
	}
	return noteNames[n]
}

// MarshalText encodes the note as its name.
func (n Note) MarshalText() ([]byte, error) {
	if n < 0 || n >= NumNotes {
		return nil, fmt.Errorf("note %d out of range", int(n))
	}
	return []byte(noteNames[n]), nil
}

// UnmarshalText decodes a note name.
func (n *Note) UnmarshalText(text []byte) error {
	parsed, ok := ParseNote(string(text))
	if !ok {
		return fmt.Errorf("unknown note %q", text)
	}
	*n = parsed
	return nil
}

// Target returns the landmark id the note is measured at, or -1 for an
// out-of-range note.
func (n Note) Target() int {
	if n < 0 || n >= NumNotes {
		return -1
	}
	return Targets[n]
}

// ParseNote returns the note with the given solfège name.
func ParseNote(name string) (Note, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range noteNames {
		if n == name {
			return Note(i), true
		}
	}
	return 0, false
}

// All returns every note in Vector order.
func All() []Note {
	all := make([]Note, NumNotes)
	for i := range all {
		all[i] = Note(i)
	}
	return all
}

// Vector holds the on/off state of every note for a single frame.
type Vector [NumNotes]bool

// Any reports whether at least one note is on.
func (v Vector) Any() bool {
	for _, on := range v {
		if on {
			return true
		}
	}
	return false
}

// Active returns the notes that are on, in Vector order.
func (v Vector) Active() []Note {
	var active []Note
	for i, on := range v {
		if on {
			active = append(active, Note(i))
		}
	}
	return active
}

// Diff compares v against the previous frame's vector and returns the notes that
// turned on and the notes that turned off.
func (v Vector) Diff(prev Vector) (on, off []Note) {
	for i := range v {
		switch {
		case v[i] && !prev[i]:
			on = append(on, Note(i))
		case !v[i] && prev[i]:
			off = append(off, Note(i))
		}
	}
	return on, off
}

// String joins the names of the active notes, or "-" when none are on.
func (v Vector) String() string {
	active := v.Active()
	if len(active) == 0 {
		return "-"
	}
	names := make([]string, len(active))
	for i, n := range active {
		names[i] = n.String()
	}
	return strings.Join(names, " ")
}
