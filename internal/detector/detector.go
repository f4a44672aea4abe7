// Package detector provides hand landmark sources that turn video frames into landmark sets.
package detector

import (
	"gocv.io/x/gocv"

	"github.com/ayusman/solfa/internal/hand"
)

// Detector defines the interface for hand landmark sources.
type Detector interface {
	// Detect analyzes a video frame and returns the detected hands with landmarks
	// in the frame's pixel space. Returns an empty slice if no hands are detected.
	Detect(frame *gocv.Mat) ([]hand.Hand, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Config holds configuration options for hand detection.
type Config struct {
	// MaxHands is the maximum number of hands to detect (default: 1).
	MaxHands int

	// MinConfidence is the minimum detection confidence threshold (0.0-1.0).
	MinConfidence float64

	// MinTrackingConf is the minimum tracking confidence threshold (0.0-1.0).
	MinTrackingConf float64
}

// DefaultConfig returns a Config with sensible default values.
// Only the first hand is ever played, so one hand is enough.
func DefaultConfig() Config {
	return Config{
		MaxHands:        1,
		MinConfidence:   0.5,
		MinTrackingConf: 0.5,
	}
}
