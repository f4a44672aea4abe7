package app

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/ayusman/solfa/internal/capture"
	"github.com/ayusman/solfa/internal/detector"
	"github.com/ayusman/solfa/internal/hand"
	"github.com/ayusman/solfa/internal/notes"
	"github.com/ayusman/solfa/internal/store"
	"gocv.io/x/gocv"
)

// sequenceDetector returns one preset per call and repeats the last one.
type sequenceDetector struct {
	mu    sync.Mutex
	hands [][]hand.Hand
	calls int
}

func (s *sequenceDetector) Detect(*gocv.Mat) ([]hand.Hand, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.calls
	if i >= len(s.hands) {
		i = len(s.hands) - 1
	}
	s.calls++
	return s.hands[i], nil
}

func (s *sequenceDetector) Close() error { return nil }

func pinch(target int) []hand.Hand { return []hand.Hand{detector.PinchLandmarks(target)} }
func openHand() []hand.Hand        { return []hand.Hand{detector.OpenHandLandmarks()} }

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestApp(t *testing.T, cfg Config) *App {
	t.Helper()
	if cfg.Detector == nil {
		cfg.Detector = detector.NewMockDetector()
	}
	if cfg.PluginDir == "" {
		cfg.PluginDir = t.TempDir()
	}
	a, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

func newFrame(t *testing.T) *gocv.Mat {
	t.Helper()
	m := gocv.NewMatWithSize(capture.DefaultHeight, capture.DefaultWidth, gocv.MatTypeCV8UC3)
	t.Cleanup(func() { m.Close() })
	return &m
}

func TestNew(t *testing.T) {
	t.Run("applies defaults", func(t *testing.T) {
		a := newTestApp(t, Config{})
		if a.Epsilon() != notes.DefaultEpsilon {
			t.Errorf("Epsilon() = %v, want %v", a.Epsilon(), notes.DefaultEpsilon)
		}
		if a.config.FPS != capture.DefaultFPS {
			t.Errorf("FPS = %d, want %d", a.config.FPS, capture.DefaultFPS)
		}
		if a.config.Source != "camera:0" {
			t.Errorf("Source = %q", a.config.Source)
		}
		if a.IsEnabled() || a.IsRunning() {
			t.Error("new app should be disabled and stopped")
		}
	})

	t.Run("keeps zero epsilon", func(t *testing.T) {
		zero := 0.0
		a := newTestApp(t, Config{Epsilon: &zero})
		if a.Epsilon() != 0 {
			t.Errorf("Epsilon() = %v, want 0", a.Epsilon())
		}
	})

	t.Run("rejects negative epsilon", func(t *testing.T) {
		negative := -1.0
		_, err := New(Config{Epsilon: &negative, Detector: detector.NewMockDetector()})
		if !errors.Is(err, notes.ErrInvalidEpsilon) {
			t.Errorf("expected ErrInvalidEpsilon, got %v", err)
		}
	})
}

func TestApp_SetEpsilon(t *testing.T) {
	a := newTestApp(t, Config{})

	if err := a.SetEpsilon(12); err != nil {
		t.Fatalf("SetEpsilon() error = %v", err)
	}
	if a.Epsilon() != 12 {
		t.Errorf("Epsilon() = %v, want 12", a.Epsilon())
	}

	if err := a.SetEpsilon(-3); !errors.Is(err, notes.ErrInvalidEpsilon) {
		t.Errorf("expected ErrInvalidEpsilon, got %v", err)
	}
	if a.Epsilon() != 12 {
		t.Error("invalid epsilon should not replace the current one")
	}
}

func TestApp_ProcessFrame(t *testing.T) {
	t.Run("pinch edges", func(t *testing.T) {
		seq := &sequenceDetector{hands: [][]hand.Hand{pinch(hand.IndexTip), pinch(hand.IndexTip), openHand()}}
		a := newTestApp(t, Config{Detector: seq})
		frame := newFrame(t)

		r := a.ProcessFrame(frame)
		if !r.HandDetected || r.Frame != 1 {
			t.Fatalf("unexpected result: %+v", r)
		}
		if r.Notes != (notes.Vector{notes.Mi: true}) {
			t.Errorf("Notes = %v, want mi", r.Notes)
		}
		if len(r.On) != 1 || r.On[0] != notes.Mi || len(r.Off) != 0 {
			t.Errorf("first frame edges on=%v off=%v", r.On, r.Off)
		}
		if len(r.Landmarks) != notes.MinLandmarksForClassification {
			t.Errorf("expected derived landmark in result, got %d landmarks", len(r.Landmarks))
		}

		r = a.ProcessFrame(frame)
		if len(r.On) != 0 || len(r.Off) != 0 {
			t.Errorf("held pinch should produce no edges, got on=%v off=%v", r.On, r.Off)
		}

		r = a.ProcessFrame(frame)
		if r.Notes.Any() {
			t.Errorf("open hand should be silent, got %v", r.Notes)
		}
		if len(r.Off) != 1 || r.Off[0] != notes.Mi {
			t.Errorf("release edges off=%v", r.Off)
		}
	})

	t.Run("no hand", func(t *testing.T) {
		a := newTestApp(t, Config{})

		r := a.ProcessFrame(newFrame(t))
		if r.HandDetected || r.Notes.Any() || len(r.Landmarks) != 0 {
			t.Errorf("unexpected result without hand: %+v", r)
		}
	})

	t.Run("malformed landmarks are silent", func(t *testing.T) {
		set := make(hand.LandmarkSet, 0, 10)
		for id := 6; id < 16; id++ {
			set = append(set, hand.Landmark{ID: id, X: 10, Y: 10})
		}
		seq := &sequenceDetector{hands: [][]hand.Hand{{{Landmarks: set}}}}
		a := newTestApp(t, Config{Detector: seq})

		r := a.ProcessFrame(newFrame(t))
		if !r.HandDetected {
			t.Error("hand should still be reported")
		}
		if r.Notes.Any() {
			t.Errorf("malformed set should be silent, got %v", r.Notes)
		}
	})

	t.Run("epsilon change applies to next frame", func(t *testing.T) {
		a := newTestApp(t, Config{Detector: &sequenceDetector{hands: [][]hand.Hand{pinch(hand.IndexTip)}}})
		frame := newFrame(t)

		if err := a.SetEpsilon(0); err != nil {
			t.Fatal(err)
		}
		r := a.ProcessFrame(frame)
		if !r.Notes[notes.Mi] {
			t.Errorf("exact pinch should hold at epsilon 0, got %v", r.Notes)
		}
	})

	t.Run("nil frame is not detected", func(t *testing.T) {
		mock := detector.NewMockDetector()
		mock.SetHands(pinch(hand.IndexTip))
		a := newTestApp(t, Config{Detector: mock})

		r := a.ProcessFrame(nil)
		if r.HandDetected || mock.Calls() != 0 {
			t.Errorf("nil frame should skip detection, got %+v", r)
		}
	})
}

func TestApp_LatestJPEG(t *testing.T) {
	mock := detector.NewMockDetector()
	mock.SetHands(pinch(hand.PinkyTip))
	a := newTestApp(t, Config{Detector: mock})

	if a.LatestJPEG() != nil {
		t.Fatal("expected no frame before processing")
	}

	r := a.ProcessFrame(newFrame(t))

	jpeg := a.LatestJPEG()
	if len(jpeg) < 2 || jpeg[0] != 0xFF || jpeg[1] != 0xD8 {
		t.Fatalf("LatestJPEG() is not a JPEG (%d bytes)", len(jpeg))
	}
	if a.LastResult().Frame != r.Frame {
		t.Errorf("LastResult().Frame = %d, want %d", a.LastResult().Frame, r.Frame)
	}
}

func TestApp_Subscribe(t *testing.T) {
	a := newTestApp(t, Config{})
	frame := newFrame(t)

	var got []int
	unsubscribe := a.Subscribe(func(r Result) { got = append(got, r.Frame) })

	a.ProcessFrame(frame)
	a.ProcessFrame(frame)
	unsubscribe()
	a.ProcessFrame(frame)

	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Errorf("listener saw frames %v, want [1 2]", got)
	}
}

func TestResult_JSON(t *testing.T) {
	r := Result{Frame: 3, HandDetected: true, Notes: notes.Vector{notes.Re: true}}
	r.Active = r.Notes.Active()
	r.On = r.Active

	data, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	active, ok := decoded["notes"].([]any)
	if !ok || len(active) != 1 || active[0] != "re" {
		t.Errorf("notes = %v", decoded["notes"])
	}
	vector, ok := decoded["vector"].([]any)
	if !ok || len(vector) != int(notes.NumNotes) || vector[1] != true {
		t.Errorf("vector = %v", decoded["vector"])
	}
}

func TestApp_Replay_RecordsSession(t *testing.T) {
	s := newTestStore(t)

	frames := make([]*gocv.Mat, 4)
	for i := range frames {
		frames[i] = newFrame(t)
	}

	seq := &sequenceDetector{hands: [][]hand.Hand{openHand(), pinch(hand.IndexTip), pinch(hand.IndexTip), openHand()}}
	a := newTestApp(t, Config{
		Store:    s,
		Camera:   capture.NewMockCamera(frames, false),
		Detector: seq,
		Source:   "clip.mp4",
	})

	n, err := a.Replay(context.Background())
	if err != nil {
		t.Fatalf("Replay() error = %v", err)
	}
	if n != 4 {
		t.Errorf("Replay() processed %d frames, want 4", n)
	}

	sessions, err := s.Sessions().List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("expected 1 session, got %d", len(sessions))
	}
	sess := sessions[0]
	if sess.Source != "clip.mp4" || sess.Frames != 4 || sess.EndedAt == nil {
		t.Errorf("unexpected session: %+v", sess)
	}

	events, err := s.Events().ListBySession(sess.ID)
	if err != nil {
		t.Fatalf("ListBySession() error = %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d: %+v", len(events), events)
	}
	if events[0].Note != "mi" || events[0].State != store.NoteOn || events[0].Frame != 2 {
		t.Errorf("unexpected first event: %+v", events[0])
	}
	if events[1].Note != "mi" || events[1].State != store.NoteOff || events[1].Frame != 4 {
		t.Errorf("unexpected second event: %+v", events[1])
	}
}

func TestApp_Replay_Cancelled(t *testing.T) {
	frame := newFrame(t)
	a := newTestApp(t, Config{Camera: capture.NewMockCamera([]*gocv.Mat{frame}, true)})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := a.Replay(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestApp_TriggersBinding(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("skipping test on Windows")
	}

	pluginRoot := t.TempDir()
	pluginDir := filepath.Join(pluginRoot, "recorder")
	if err := os.MkdirAll(pluginDir, 0755); err != nil {
		t.Fatal(err)
	}
	manifest := `{"name":"recorder","executable":"run.sh","actions":["press"]}`
	if err := os.WriteFile(filepath.Join(pluginDir, "plugin.json"), []byte(manifest), 0644); err != nil {
		t.Fatal(err)
	}
	script := "#!/bin/sh\ncat > received.json\necho '{\"success\":true}'\n"
	if err := os.WriteFile(filepath.Join(pluginDir, "run.sh"), []byte(script), 0755); err != nil {
		t.Fatal(err)
	}

	s := newTestStore(t)
	err := s.Bindings().Create(&store.Binding{
		ID:         "b1",
		Note:       "sol",
		PluginName: "recorder",
		ActionName: "press",
		Config:     json.RawMessage(`{"key":"g"}`),
		Enabled:    true,
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	a := newTestApp(t, Config{
		Store:     s,
		PluginDir: pluginRoot,
		Detector:  &sequenceDetector{hands: [][]hand.Hand{pinch(hand.RingTip)}},
	})
	if err := a.DiscoverPlugins(); err != nil {
		t.Fatalf("DiscoverPlugins() error = %v", err)
	}

	a.ProcessFrame(newFrame(t))

	received := filepath.Join(pluginDir, "received.json")
	deadline := time.Now().Add(10 * time.Second)
	var data []byte
	for time.Now().Before(deadline) {
		data, err = os.ReadFile(received)
		if err == nil && len(data) > 0 {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if len(data) == 0 {
		t.Fatal("plugin was not run for the bound note")
	}

	var req struct {
		Action string          `json:"action"`
		Note   string          `json:"note"`
		Index  int             `json:"index"`
		Event  string          `json:"event"`
		Config json.RawMessage `json:"config"`
	}
	if err := json.Unmarshal(data, &req); err != nil {
		t.Fatalf("plugin received invalid JSON %q: %v", data, err)
	}
	if req.Action != "press" || req.Note != "sol" || req.Index != int(notes.Sol) || req.Event != "note-on" {
		t.Errorf("plugin received %+v", req)
	}
	if string(req.Config) != `{"key":"g"}` {
		t.Errorf("plugin received config %s", req.Config)
	}
}

func TestApp_StartStop(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping pipeline loop test")
	}

	frame := newFrame(t)
	cam := capture.NewMockCamera([]*gocv.Mat{frame}, true)
	s := newTestStore(t)
	a := newTestApp(t, Config{Store: s, Camera: cam, FPS: 50})
	a.SetEnabled(true)

	seen := make(chan Result, 16)
	a.Subscribe(func(r Result) {
		select {
		case seen <- r:
		default:
		}
	})

	if err := a.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := a.Start(); err != nil {
		t.Fatalf("second Start() error = %v", err)
	}
	if !a.IsRunning() || a.SessionID() == "" {
		t.Fatal("expected running pipeline with a session")
	}
	sessionID := a.SessionID()

	select {
	case <-seen:
	case <-time.After(5 * time.Second):
		t.Fatal("pipeline produced no result")
	}

	a.Stop()
	a.Stop()

	if a.IsRunning() || cam.IsOpen() {
		t.Error("Stop() should halt the loop and close the camera")
	}

	sess, err := s.Sessions().GetByID(sessionID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if sess.EndedAt == nil || sess.Frames == 0 {
		t.Errorf("session not closed with frames: %+v", sess)
	}
}
