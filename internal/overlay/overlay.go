// Package overlay draws landmarks, note labels and frame rate onto preview frames.
package overlay

import (
	"fmt"
	"image"
	"image/color"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/solfa/internal/hand"
	"github.com/ayusman/solfa/internal/notes"
)

// Drawing sizes in pixels.
const (
	DotRadius    = 5
	LabelScale   = 1.5
	LabelThick   = 3
	LineThick    = 2
	FPSScale     = 3
	FPSThick     = 3
	filledCircle = -1
)

var (
	colorLandmark = color.RGBA{G: 255, A: 255}
	colorThumb    = color.RGBA{A: 255}
	colorLabel    = color.RGBA{R: 255, G: 255, A: 255}
	colorActive   = color.RGBA{R: 255, A: 255}
	colorLine     = color.RGBA{R: 255, G: 255, B: 255, A: 255}
)

// FPSOrigin is where the frame rate is printed.
var FPSOrigin = image.Pt(10, 70)

// Draw annotates img with every landmark of set, the note labels at their targets
// and the segment the "do" landmark is derived from. Labels of notes that are on
// are drawn in the active color.
func Draw(img *gocv.Mat, set hand.LandmarkSet, v notes.Vector) {
	if img == nil || img.Empty() || len(set) == 0 {
		return
	}

	idx := set.Index()

	a, okA := idx[notes.DoSourceA]
	b, okB := idx[notes.DoSourceB]
	if okA && okB {
		gocv.Line(img, point(a), point(b), colorLine, LineThick)
	}

	for _, lm := range set {
		c := colorLandmark
		if lm.ID == notes.ThumbTipID {
			c = colorThumb
		}
		gocv.Circle(img, point(lm), DotRadius, c, filledCircle)
	}

	for _, n := range notes.All() {
		lm, ok := idx[n.Target()]
		if !ok {
			continue
		}
		c := colorLabel
		if v[n] {
			c = colorActive
		}
		gocv.PutText(img, n.String(), point(lm), gocv.FontHersheyPlain, LabelScale, c, LabelThick)
	}
}

// DrawFPS prints the frame rate in the top-left corner.
func DrawFPS(img *gocv.Mat, fps float64) {
	if img == nil || img.Empty() {
		return
	}
	gocv.PutText(img, fmt.Sprintf("%d", int(fps)), FPSOrigin, gocv.FontHersheyPlain, FPSScale, colorLabel, FPSThick)
}

func point(lm hand.Landmark) image.Point {
	return image.Pt(lm.X, lm.Y)
}

// FPSMeter measures the instantaneous frame rate from consecutive ticks.
type FPSMeter struct {
	last time.Time
}

// Tick records a frame at now and returns the rate since the previous frame.
// The first tick returns 0.
func (m *FPSMeter) Tick(now time.Time) float64 {
	prev := m.last
	m.last = now

	if prev.IsZero() {
		return 0
	}
	elapsed := now.Sub(prev)
	if elapsed <= 0 {
		return 0
	}
	return float64(time.Second) / float64(elapsed)
}
