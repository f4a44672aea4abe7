// Package app drives the note pipeline: it reads frames, finds a hand, classifies
// the pinch and fans the result out to listeners, the session recorder and plugins.
package app

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/ayusman/solfa/internal/capture"
	"github.com/ayusman/solfa/internal/detector"
	"github.com/ayusman/solfa/internal/notes"
	"github.com/ayusman/solfa/internal/overlay"
	"github.com/ayusman/solfa/internal/plugin"
	"github.com/ayusman/solfa/internal/store"
	"github.com/google/uuid"
)

// Config holds configuration options for the application.
type Config struct {
	Store     *store.Store
	PluginDir string
	CameraID  int
	FPS       int

	// Epsilon is the pinch threshold in pixels. Nil uses notes.DefaultEpsilon;
	// zero is a valid threshold that needs exact coincidence.
	Epsilon *float64

	// Camera overrides the device camera, e.g. a capture.VideoFile for replay.
	Camera capture.Camera
	// Detector overrides the landmark source. When nil MediaPipe is tried first.
	Detector detector.Detector
	// Source labels recorded sessions. Defaults to "camera:<id>".
	Source string
	// PluginTimeout bounds one plugin run.
	PluginTimeout time.Duration
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	epsilon := notes.DefaultEpsilon
	return Config{
		Epsilon:       &epsilon,
		FPS:           capture.DefaultFPS,
		PluginTimeout: plugin.DefaultTimeout,
	}
}

// App is the main application that turns camera frames into played notes.
type App struct {
	config     Config
	camera     capture.Camera
	detector   detector.Detector
	pluginMgr  *plugin.Manager
	dispatcher *plugin.Dispatcher

	mu      sync.RWMutex
	enabled bool
	epsilon float64
	stopCh  chan struct{}
	doneCh  chan struct{}

	// frame state, owned by whoever calls ProcessFrame
	procMu  sync.Mutex
	prev    notes.Vector
	frameNo int
	fps     overlay.FPSMeter
	session *store.Session

	listenersMu sync.RWMutex
	listeners   map[int]func(Result)
	nextID      int

	jpegMu sync.RWMutex
	jpeg   []byte
	last   Result
}

// New creates a new App instance with the given configuration.
func New(config Config) (*App, error) {
	defaults := DefaultConfig()
	epsilon := *defaults.Epsilon
	if config.Epsilon != nil {
		epsilon = *config.Epsilon
	}
	if err := notes.ValidateEpsilon(epsilon); err != nil {
		return nil, err
	}
	config.Epsilon = &epsilon
	if config.FPS <= 0 {
		config.FPS = defaults.FPS
	}
	if config.PluginTimeout <= 0 {
		config.PluginTimeout = defaults.PluginTimeout
	}
	if config.Source == "" {
		config.Source = fmt.Sprintf("camera:%d", config.CameraID)
	}

	a := &App{
		config:    config,
		camera:    config.Camera,
		detector:  config.Detector,
		pluginMgr: plugin.NewManager(config.PluginDir),
		epsilon:   epsilon,
		listeners: make(map[int]func(Result)),
	}

	if a.camera == nil {
		a.camera = capture.NewCamera(config.CameraID)
	}

	// Try MediaPipe first, fall back to mock detector
	if a.detector == nil {
		if mp, err := detector.NewMediaPipeDetector(detector.DefaultConfig()); err == nil {
			a.detector = mp
			log.Println("Using MediaPipe hand detection")
		} else {
			log.Printf("MediaPipe not available (%v), using mock detector", err)
			a.detector = detector.NewMockDetector()
		}
	}

	a.dispatcher = plugin.NewDispatcher(a.pluginMgr, plugin.NewExecutor(config.PluginTimeout), plugin.DispatcherConfig{})

	return a, nil
}

// SetEnabled enables or disables note detection.
func (a *App) SetEnabled(enabled bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.enabled = enabled
}

// IsEnabled returns whether note detection is currently enabled.
func (a *App) IsEnabled() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.enabled
}

// SetEpsilon changes the pinch threshold used for subsequent frames.
func (a *App) SetEpsilon(epsilon float64) error {
	if err := notes.ValidateEpsilon(epsilon); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.epsilon = epsilon
	return nil
}

// Epsilon returns the current pinch threshold in pixels.
func (a *App) Epsilon() float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.epsilon
}

// SetDetector sets the hand detector implementation to use.
func (a *App) SetDetector(d detector.Detector) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.detector = d
}

// Detector returns the hand detector.
func (a *App) Detector() detector.Detector {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.detector
}

// Camera returns the frame source.
func (a *App) Camera() capture.Camera {
	return a.camera
}

// PluginManager returns the plugin manager.
func (a *App) PluginManager() *plugin.Manager {
	return a.pluginMgr
}

// DiscoverPlugins scans the plugin directory and loads available plugins.
func (a *App) DiscoverPlugins() error {
	return a.pluginMgr.Discover()
}

// Subscribe registers fn to receive every Result. The returned func unsubscribes.
// Listeners run on the pipeline goroutine and must not block.
func (a *App) Subscribe(fn func(Result)) func() {
	a.listenersMu.Lock()
	id := a.nextID
	a.nextID++
	a.listeners[id] = fn
	a.listenersMu.Unlock()

	return func() {
		a.listenersMu.Lock()
		delete(a.listeners, id)
		a.listenersMu.Unlock()
	}
}

func (a *App) notify(r Result) {
	a.listenersMu.RLock()
	defer a.listenersMu.RUnlock()
	for _, fn := range a.listeners {
		fn(r)
	}
}

// LatestJPEG returns the most recent annotated frame, or nil before the first frame.
func (a *App) LatestJPEG() []byte {
	a.jpegMu.RLock()
	defer a.jpegMu.RUnlock()
	return a.jpeg
}

// LastResult returns the most recent Result.
func (a *App) LastResult() Result {
	a.jpegMu.RLock()
	defer a.jpegMu.RUnlock()
	return a.last
}

// Start opens the camera, begins a session and runs the pipeline loop.
func (a *App) Start() error {
	a.mu.Lock()

	// Don't start if already running
	if a.stopCh != nil {
		a.mu.Unlock()
		return nil
	}

	if err := a.camera.Open(); err != nil {
		a.mu.Unlock()
		return err
	}
	a.camera.SetFPS(a.config.FPS)

	stopCh, doneCh := make(chan struct{}), make(chan struct{})
	a.stopCh, a.doneCh = stopCh, doneCh
	epsilon := a.epsilon
	a.mu.Unlock()

	if err := a.beginSession(epsilon); err != nil {
		log.Printf("Session recording disabled: %v", err)
	}

	go a.runPipeline(stopCh, doneCh)

	log.Println("Note pipeline started")
	return nil
}

// Stop halts the pipeline and closes the current session. The App can be started again.
func (a *App) Stop() {
	a.mu.Lock()
	stopCh, doneCh := a.stopCh, a.doneCh
	a.stopCh, a.doneCh = nil, nil
	a.mu.Unlock()

	if stopCh == nil {
		return
	}

	close(stopCh)
	<-doneCh

	if err := a.camera.Close(); err != nil {
		log.Printf("Error closing camera: %v", err)
	}

	a.endSession()
	log.Println("Note pipeline stopped")
}

// IsRunning reports whether the pipeline loop is active.
func (a *App) IsRunning() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.stopCh != nil
}

// Close stops the pipeline and releases the detector and plugin worker.
func (a *App) Close() error {
	a.Stop()
	a.dispatcher.Close()

	d := a.Detector()
	if d == nil {
		return nil
	}
	return d.Close()
}

// beginSession opens a session row when a store is configured.
func (a *App) beginSession(epsilon float64) error {
	if a.config.Store == nil {
		return nil
	}

	sess := &store.Session{
		ID:      uuid.New().String(),
		Source:  a.config.Source,
		Epsilon: epsilon,
	}
	if err := a.config.Store.Sessions().Create(sess); err != nil {
		return err
	}

	a.procMu.Lock()
	a.session = sess
	a.frameNo = 0
	a.prev = notes.Vector{}
	a.procMu.Unlock()

	log.Printf("Recording session %s", sess.ID)
	return nil
}

func (a *App) endSession() {
	a.procMu.Lock()
	sess, frames := a.session, a.frameNo
	a.session = nil
	a.procMu.Unlock()

	if sess == nil {
		return
	}
	if err := a.config.Store.Sessions().End(sess.ID, frames); err != nil && !errors.Is(err, store.ErrNotFound) {
		log.Printf("Failed to end session %s: %v", sess.ID, err)
	}
}

// SessionID returns the id of the session being recorded, or "".
func (a *App) SessionID() string {
	a.procMu.Lock()
	defer a.procMu.Unlock()
	if a.session == nil {
		return ""
	}
	return a.session.ID
}
