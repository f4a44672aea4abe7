package capture

import (
	"fmt"
	"sync"

	"gocv.io/x/gocv"
)

// VideoFile replays a recorded video through the Camera interface.
type VideoFile struct {
	path    string
	capture *gocv.VideoCapture
	mu      sync.Mutex
	fps     int
}

// NewVideoFile creates a frame source for the video at path. The file is opened by Open.
func NewVideoFile(path string) *VideoFile {
	return &VideoFile{path: path}
}

// Open opens the video file and reads its native frame rate.
func (v *VideoFile) Open() error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.capture != nil {
		return nil
	}

	capture, err := gocv.VideoCaptureFile(v.path)
	if err != nil {
		return fmt.Errorf("open video %s: %w", v.path, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return fmt.Errorf("open video %s: unsupported or missing file", v.path)
	}

	v.capture = capture
	v.fps = int(capture.Get(gocv.VideoCaptureFPS))
	if v.fps <= 0 {
		v.fps = DefaultFPS
	}

	return nil
}

// Close releases the underlying capture.
func (v *VideoFile) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.capture == nil {
		return nil
	}

	err := v.capture.Close()
	v.capture = nil
	return err
}

// ReadFrame returns the next frame, or ErrEndOfStream once the file is exhausted.
func (v *VideoFile) ReadFrame() (*gocv.Mat, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.capture == nil {
		return nil, ErrCameraNotOpen
	}

	return readMat(v.capture)
}

// SetFPS is a no-op; a file plays at its recorded rate.
func (v *VideoFile) SetFPS(fps int) {}

// FPS returns the recorded frame rate.
func (v *VideoFile) FPS() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.fps
}

// IsOpen reports whether the file is open.
func (v *VideoFile) IsOpen() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.capture != nil
}

// FrameCount returns the number of frames reported by the container, or 0 when unknown.
func (v *VideoFile) FrameCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.capture == nil {
		return 0
	}

	n := int(v.capture.Get(gocv.VideoCaptureFrameCount))
	if n < 0 {
		return 0
	}
	return n
}
