package notes

import (
	"errors"
	"fmt"
	"math"

	"github.com/ayusman/solfa/internal/hand"
)

var (
	// ErrMalformedLandmarks is returned when a populated landmark set lacks an id
	// the hand topology guarantees.
	ErrMalformedLandmarks = errors.New("malformed landmark set")
	// ErrInvalidEpsilon is returned for a negative or NaN threshold.
	ErrInvalidEpsilon = errors.New("invalid epsilon")
)

// DerivePosition returns a copy of set with the "do" landmark placed at the
// floored midpoint of DoSourceA and DoSourceB.
//
// Sets shorter than MinLandmarksForDerivation are returned unchanged. If the set
// already carries a DoID entry it is recomputed in place instead of appended again.
// The input is never modified.
func DerivePosition(set hand.LandmarkSet) (hand.LandmarkSet, error) {
	if len(set) < MinLandmarksForDerivation {
		return set, nil
	}

	a, ok := set.Lookup(DoSourceA)
	if !ok {
		return nil, fmt.Errorf("%w: missing landmark %d", ErrMalformedLandmarks, DoSourceA)
	}
	b, ok := set.Lookup(DoSourceB)
	if !ok {
		return nil, fmt.Errorf("%w: missing landmark %d", ErrMalformedLandmarks, DoSourceB)
	}

	do := hand.Landmark{
		ID: DoID,
		X:  floorHalf(a.X + b.X),
		Y:  floorHalf(a.Y + b.Y),
	}

	out := make(hand.LandmarkSet, 0, len(set)+1)
	replaced := false
	for _, lm := range set {
		if lm.ID == DoID {
			if replaced {
				continue
			}
			lm = do
			replaced = true
		}
		out = append(out, lm)
	}
	if !replaced {
		out = append(out, do)
	}

	return out, nil
}

// floorHalf returns ⌊n/2⌋, rounding negative odd sums down.
func floorHalf(n int) int {
	if n < 0 && n%2 != 0 {
		return n/2 - 1
	}
	return n / 2
}

// Classify measures every target against the thumb tip and reports which ones are
// within epsilon pixels. The boundary is inclusive.
//
// Sets shorter than MinLandmarksForClassification yield an all-false vector.
func Classify(set hand.LandmarkSet, epsilon float64) (Vector, error) {
	var v Vector

	if err := ValidateEpsilon(epsilon); err != nil {
		return v, err
	}

	if len(set) < MinLandmarksForClassification {
		return v, nil
	}

	idx := set.Index()

	thumb, ok := idx[ThumbTipID]
	if !ok {
		return v, fmt.Errorf("%w: missing thumb tip %d", ErrMalformedLandmarks, ThumbTipID)
	}

	for i, id := range Targets {
		target, ok := idx[id]
		if !ok {
			return Vector{}, fmt.Errorf("%w: missing target %d (%s)", ErrMalformedLandmarks, id, Note(i))
		}
		v[i] = hand.Distance(thumb, target) <= epsilon
	}

	return v, nil
}

// ValidateEpsilon rejects thresholds Classify cannot use.
func ValidateEpsilon(epsilon float64) error {
	if epsilon < 0 || math.IsNaN(epsilon) {
		return fmt.Errorf("%w: %v", ErrInvalidEpsilon, epsilon)
	}
	return nil
}

// Evaluate derives the "do" landmark and classifies the result in one step.
// It returns the augmented set alongside the vector so callers can draw it.
func Evaluate(set hand.LandmarkSet, epsilon float64) (hand.LandmarkSet, Vector, error) {
	derived, err := DerivePosition(set)
	if err != nil {
		return set, Vector{}, err
	}

	v, err := Classify(derived, epsilon)
	if err != nil {
		return derived, Vector{}, err
	}

	return derived, v, nil
}
