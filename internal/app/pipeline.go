package app

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/ayusman/solfa/internal/capture"
	"github.com/ayusman/solfa/internal/hand"
	"github.com/ayusman/solfa/internal/notes"
	"github.com/ayusman/solfa/internal/overlay"
	"github.com/ayusman/solfa/internal/plugin"
	"github.com/ayusman/solfa/internal/store"
	"gocv.io/x/gocv"
)

// Result is the outcome of one processed frame.
type Result struct {
	Frame        int              `json:"frame"`
	Timestamp    time.Time        `json:"timestamp"`
	HandDetected bool             `json:"handDetected"`
	Handedness   string           `json:"handedness,omitempty"`
	Landmarks    hand.LandmarkSet `json:"landmarks,omitempty"`
	Notes        notes.Vector     `json:"vector"`
	Active       []notes.Note     `json:"notes"`
	On           []notes.Note     `json:"on,omitempty"`
	Off          []notes.Note     `json:"off,omitempty"`
	FPS          float64          `json:"fps"`
}

// ProcessFrame runs one frame through the pipeline:
//
//  1. Mirror the frame horizontally (selfie view)
//  2. Detect hands and keep the first one
//  3. Derive "do" and classify the pinch
//  4. Record note edges and trigger bound plugins
//  5. Annotate the frame for the stream and notify listeners
//
// A malformed landmark set is logged and reported as silence. The frame is
// modified in place but not closed.
func (a *App) ProcessFrame(frame *gocv.Mat) Result {
	r := a.process(frame)
	a.notify(r)
	return r
}

func (a *App) process(frame *gocv.Mat) Result {
	now := time.Now()
	d, epsilon := a.Detector(), a.Epsilon()

	usable := frame != nil && !frame.Empty()
	if usable {
		capture.Mirror(frame)
	}

	a.procMu.Lock()
	defer a.procMu.Unlock()

	a.frameNo++
	r := Result{Frame: a.frameNo, Timestamp: now}

	if d != nil && usable {
		hands, err := d.Detect(frame)
		if err != nil {
			log.Printf("Error detecting hands: %v", err)
		} else if len(hands) > 0 {
			h := hands[0]
			r.HandDetected = true
			r.Handedness = h.Handedness

			set, v, err := notes.Evaluate(h.Landmarks, epsilon)
			if err != nil {
				log.Printf("Skipping frame %d: %v", r.Frame, err)
			} else {
				r.Notes = v
			}
			r.Landmarks = set
		}
	}

	r.Active = r.Notes.Active()
	r.On, r.Off = r.Notes.Diff(a.prev)
	a.prev = r.Notes
	r.FPS = a.fps.Tick(now)

	a.record(r)
	a.trigger(r)

	if usable {
		a.publishFrame(frame, r)
	} else {
		a.jpegMu.Lock()
		a.last = r
		a.jpegMu.Unlock()
	}

	return r
}

// record stores the frame's note edges in the current session.
// Caller holds procMu.
func (a *App) record(r Result) {
	if a.session == nil || len(r.On)+len(r.Off) == 0 {
		return
	}

	ts := r.Timestamp.UnixMilli()
	events := make([]store.NoteEvent, 0, len(r.On)+len(r.Off))
	for _, n := range r.On {
		events = append(events, store.NoteEvent{SessionID: a.session.ID, Note: n.String(), State: store.NoteOn, Frame: r.Frame, TimestampMs: ts})
	}
	for _, n := range r.Off {
		events = append(events, store.NoteEvent{SessionID: a.session.ID, Note: n.String(), State: store.NoteOff, Frame: r.Frame, TimestampMs: ts})
	}

	if err := a.config.Store.Events().Create(events...); err != nil {
		log.Printf("Failed to record note events: %v", err)
	}
}

// trigger queues the bound plugin action for every note that turned on.
func (a *App) trigger(r Result) {
	if a.config.Store == nil {
		return
	}

	for _, n := range r.On {
		b, err := a.config.Store.Bindings().GetByNote(n.String())
		if err != nil {
			log.Printf("Failed to look up binding for %s: %v", n, err)
			continue
		}
		if b == nil || !b.Enabled {
			continue
		}

		log.Printf("Note %s -> %s/%s", n, b.PluginName, b.ActionName)
		a.dispatcher.Submit(plugin.Job{
			Plugin: b.PluginName,
			Request: &plugin.Request{
				Action: b.ActionName,
				Note:   n.String(),
				Index:  int(n),
				Event:  plugin.EventNoteOn,
				Config: b.Config,
			},
		})
	}
}

// publishFrame encodes an annotated copy of frame for the MJPEG stream.
func (a *App) publishFrame(frame *gocv.Mat, r Result) {
	annotated := frame.Clone()
	defer annotated.Close()

	overlay.Draw(&annotated, r.Landmarks, r.Notes)
	overlay.DrawFPS(&annotated, r.FPS)

	var jpeg []byte
	if buf, err := gocv.IMEncode(gocv.JPEGFileExt, annotated); err != nil {
		log.Printf("Error encoding frame: %v", err)
	} else {
		jpeg = append([]byte(nil), buf.GetBytes()...)
		buf.Close()
	}

	a.jpegMu.Lock()
	if jpeg != nil {
		a.jpeg = jpeg
	}
	a.last = r
	a.jpegMu.Unlock()
}

// runPipeline reads and processes a frame on every tick until stopCh closes.
// Every frame is classified; there is no idle mode.
func (a *App) runPipeline(stopCh, doneCh chan struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(time.Second / time.Duration(a.config.FPS))
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			// Skip processing if detection is disabled
			if !a.IsEnabled() {
				continue
			}

			frame, err := a.camera.ReadFrame()
			if err != nil {
				if errors.Is(err, capture.ErrEndOfStream) {
					log.Println("Frame source exhausted")
					return
				}
				log.Printf("Error reading frame: %v", err)
				continue
			}

			a.ProcessFrame(frame)
			frame.Close()
		}
	}
}

// Replay processes every frame of the configured camera as fast as possible
// until the source ends or ctx is cancelled, recording a session when a store
// is configured. It returns the number of frames processed.
func (a *App) Replay(ctx context.Context) (int, error) {
	if err := a.camera.Open(); err != nil {
		return 0, err
	}
	defer a.camera.Close()

	if err := a.beginSession(a.Epsilon()); err != nil {
		return 0, err
	}
	defer a.endSession()

	frames := 0
	for {
		if err := ctx.Err(); err != nil {
			return frames, err
		}

		frame, err := a.camera.ReadFrame()
		if err != nil {
			if errors.Is(err, capture.ErrEndOfStream) {
				return frames, nil
			}
			return frames, err
		}

		a.ProcessFrame(frame)
		frame.Close()
		frames++
	}
}
