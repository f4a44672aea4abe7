package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/ayusman/solfa/internal/app"
	"github.com/ayusman/solfa/internal/capture"
	"github.com/ayusman/solfa/internal/notes"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

type replayOptions struct {
	Epsilon float64
	Vectors bool
}

var replayOpts replayOptions

var replayCmd = &cobra.Command{
	Use:   "replay <video>",
	Short: "Run the note pipeline over a recorded video and store the session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runReplay(cmd, args[0], replayOpts)
	},
}

func init() {
	rootCmd.AddCommand(replayCmd)

	replayCmd.Flags().Float64Var(&replayOpts.Epsilon, "epsilon", notes.DefaultEpsilon, "Pinch threshold in pixels")
	replayCmd.Flags().BoolVar(&replayOpts.Vectors, "vectors", false, "Print the note vector of every frame instead of a progress bar")
}

func runReplay(cmd *cobra.Command, path string, opts replayOptions) error {
	epsilon, err := resolveEpsilon(cmd, opts.Epsilon)
	if err != nil {
		return err
	}

	video := capture.NewVideoFile(path)
	if err := video.Open(); err != nil {
		return err
	}

	a, err := app.New(app.Config{
		Store:   db,
		Epsilon: &epsilon,
		Camera:  video,
		Source:  "video:" + path,
	})
	if err != nil {
		video.Close()
		return err
	}
	defer a.Close()

	played := make(map[notes.Note]int)
	var bar *progressbar.ProgressBar
	if !opts.Vectors {
		total := video.FrameCount()
		if total == 0 {
			total = -1
		}
		bar = progressbar.NewOptions(total,
			progressbar.OptionSetDescription("Replaying "+path),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
		)
	}

	sessionID := ""
	unsubscribe := a.Subscribe(func(r app.Result) {
		if sessionID == "" {
			sessionID = a.SessionID()
		}
		for _, n := range r.On {
			played[n]++
		}
		if bar != nil {
			bar.Add(1)
			return
		}
		fmt.Printf("%6d  %s  %s\n", r.Frame, r.Notes, formatNotes(r.Active))
	})
	defer unsubscribe()

	frames, err := a.Replay(cmd.Context())
	if bar != nil {
		bar.Finish()
		fmt.Fprintln(os.Stderr)
	}
	interrupted := err != nil && errors.Is(err, context.Canceled)
	if err != nil && !interrupted {
		return err
	}

	if interrupted {
		fmt.Println("Interrupted; partial session kept")
	}
	fmt.Printf("Processed %d frames at epsilon %.1f px\n", frames, epsilon)
	if sessionID != "" {
		fmt.Printf("Session: %s\n", sessionID)
	}
	fmt.Printf("Played: %s\n", formatCounts(played))
	return nil
}

func formatNotes(ns []notes.Note) string {
	if len(ns) == 0 {
		return "-"
	}
	names := make([]string, len(ns))
	for i, n := range ns {
		names[i] = n.String()
	}
	return strings.Join(names, " ")
}

// formatCounts renders note-on counts in note order, e.g. "do x2, mi x1".
func formatCounts(counts map[notes.Note]int) string {
	var parts []string
	for _, n := range notes.All() {
		if c := counts[n]; c > 0 {
			parts = append(parts, fmt.Sprintf("%s x%d", n, c))
		}
	}
	return joinCounts(parts)
}

// formatPlayed renders stored note-on counts keyed by note name.
func formatPlayed(counts map[string]int) string {
	var parts, unknown []string
	for _, n := range notes.All() {
		if c := counts[n.String()]; c > 0 {
			parts = append(parts, fmt.Sprintf("%s x%d", n, c))
		}
	}
	for name, c := range counts {
		if _, ok := notes.ParseNote(name); !ok && c > 0 {
			unknown = append(unknown, fmt.Sprintf("%s x%d", name, c))
		}
	}
	sort.Strings(unknown)
	return joinCounts(append(parts, unknown...))
}

func joinCounts(parts []string) string {
	if len(parts) == 0 {
		return "nothing"
	}
	return strings.Join(parts, ", ")
}
