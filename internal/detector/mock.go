package detector

import (
	"sync"

	"gocv.io/x/gocv"

	"github.com/ayusman/solfa/internal/hand"
)

// MockDetector is a test implementation of the Detector interface.
// It allows tests to control the detection results.
type MockDetector struct {
	hands []hand.Hand
	err   error
	calls int
	mu    sync.Mutex
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetHands sets the hands that will be returned by Detect.
func (m *MockDetector) SetHands(hands []hand.Hand) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hands = hands
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns how many times Detect has been called.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Detect returns the pre-configured hands or error.
func (m *MockDetector) Detect(frame *gocv.Mat) ([]hand.Hand, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.hands, nil
}

// Close is a no-op for the mock detector.
func (m *MockDetector) Close() error {
	return nil
}

// openHandPoints is a right hand, palm facing the camera, in a 640x480 frame.
var openHandPoints = [hand.NumLandmarks][2]int{
	hand.Wrist:     {320, 420},
	hand.ThumbCMC:  {360, 400},
	hand.ThumbMCP:  {395, 370},
	hand.ThumbIP:   {420, 340},
	hand.ThumbTip:  {445, 315},
	hand.IndexMCP:  {370, 300},
	hand.IndexPIP:  {375, 250},
	hand.IndexDIP:  {378, 215},
	hand.IndexTip:  {380, 185},
	hand.MiddleMCP: {330, 290},
	hand.MiddlePIP: {330, 235},
	hand.MiddleDIP: {330, 195},
	hand.MiddleTip: {330, 160},
	hand.RingMCP:   {292, 298},
	hand.RingPIP:   {287, 248},
	hand.RingDIP:   {284, 213},
	hand.RingTip:   {282, 185},
	hand.PinkyMCP:  {258, 315},
	hand.PinkyPIP:  {250, 275},
	hand.PinkyDIP:  {245, 250},
	hand.PinkyTip:  {242, 225},
}

// OpenHandLandmarks returns a preset hand with every finger extended and the
// thumb away from all note targets.
func OpenHandLandmarks() hand.Hand {
	set := make(hand.LandmarkSet, hand.NumLandmarks)
	for id, p := range openHandPoints {
		set[id] = hand.Landmark{ID: id, X: p[0], Y: p[1]}
	}

	return hand.Hand{
		Landmarks:  set,
		Handedness: "Right",
		Score:      0.95,
	}
}

// PinchLandmarks returns the open hand preset with the thumb tip moved onto the
// given landmark id. Pinching hand.NumLandmarks places the thumb on the midpoint
// of the thumb MCP and index MCP.
func PinchLandmarks(target int) hand.Hand {
	h := OpenHandLandmarks()

	var x, y int
	if target == hand.NumLandmarks {
		a := openHandPoints[hand.ThumbMCP]
		b := openHandPoints[hand.IndexMCP]
		x, y = (a[0]+b[0])/2, (a[1]+b[1])/2
	} else {
		x, y = openHandPoints[target][0], openHandPoints[target][1]
	}

	h.Landmarks[hand.ThumbTip] = hand.Landmark{ID: hand.ThumbTip, X: x, Y: y}
	return h
}
