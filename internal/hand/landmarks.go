// Package hand provides the hand landmark topology and the per-frame landmark set types.
package hand

import "math"

// Hand landmark indices following MediaPipe convention.
// See: https://developers.google.com/mediapipe/solutions/vision/hand_landmarker
const (
	Wrist        = 0
	ThumbCMC     = 1
	ThumbMCP     = 2
	ThumbIP      = 3
	ThumbTip     = 4
	IndexMCP     = 5
	IndexPIP     = 6
	IndexDIP     = 7
	IndexTip     = 8
	MiddleMCP    = 9
	MiddlePIP    = 10
	MiddleDIP    = 11
	MiddleTip    = 12
	RingMCP      = 13
	RingPIP      = 14
	RingDIP      = 15
	RingTip      = 16
	PinkyMCP     = 17
	PinkyPIP     = 18
	PinkyDIP     = 19
	PinkyTip     = 20
	NumLandmarks = 21
)

// Landmark is a labeled 2D point in pixel space.
type Landmark struct {
	ID int `json:"id"`
	X  int `json:"x"`
	Y  int `json:"y"`
}

// LandmarkSet is the ordered landmark list of a single hand.
// Position in the slice is insertion order only; use Lookup to find a landmark by id.
type LandmarkSet []Landmark

// Hand is one detected hand as returned by a landmark source.
type Hand struct {
	Landmarks  LandmarkSet `json:"landmarks"`
	Handedness string      `json:"handedness"` // "Left" or "Right"
	Score      float64     `json:"score"`
}

// Lookup returns the landmark with the given id.
func (s LandmarkSet) Lookup(id int) (Landmark, bool) {
	for _, lm := range s {
		if lm.ID == id {
			return lm, true
		}
	}
	return Landmark{}, false
}

// Has reports whether a landmark with the given id is present.
func (s LandmarkSet) Has(id int) bool {
	_, ok := s.Lookup(id)
	return ok
}

// Index builds an id to landmark map. When an id repeats, the first entry wins.
func (s LandmarkSet) Index() map[int]Landmark {
	idx := make(map[int]Landmark, len(s))
	for _, lm := range s {
		if _, ok := idx[lm.ID]; !ok {
			idx[lm.ID] = lm
		}
	}
	return idx
}

// Clone returns a copy that shares no backing array with s.
// A nil set clones to nil.
func (s LandmarkSet) Clone() LandmarkSet {
	if s == nil {
		return nil
	}
	out := make(LandmarkSet, len(s))
	copy(out, s)
	return out
}

// Distance returns the planar Euclidean distance between two landmarks.
func Distance(a, b Landmark) float64 {
	dx := float64(a.X - b.X)
	dy := float64(a.Y - b.Y)
	return math.Sqrt(dx*dx + dy*dy)
}

// FromNormalized converts normalized [0,1] coordinates into a landmark set in pixel
// space for a frame of the given size. Ids are assigned by enumeration and
// coordinates are truncated toward zero.
func FromNormalized(points [][2]float64, width, height int) LandmarkSet {
	set := make(LandmarkSet, 0, len(points))
	for i, p := range points {
		set = append(set, Landmark{
			ID: i,
			X:  int(p[0] * float64(width)),
			Y:  int(p[1] * float64(height)),
		})
	}
	return set
}
