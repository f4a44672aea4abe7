package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/exec"
	"path/filepath"
	"runtime"
	"time"

	"github.com/ayusman/solfa/internal/app"
	"github.com/ayusman/solfa/internal/capture"
	"github.com/ayusman/solfa/internal/notes"
	"github.com/ayusman/solfa/internal/server"
	"github.com/ayusman/solfa/internal/tray"
	"github.com/spf13/cobra"
)

type runOptions struct {
	Camera    int
	Epsilon   float64
	FPS       int
	Addr      string
	PluginDir string
	WebDir    string
	NoTray    bool
}

var runOpts runOptions

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the live camera pipeline with the web UI and tray menu",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runLive(cmd, runOpts)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	f := runCmd.Flags()
	f.IntVar(&runOpts.Camera, "camera", 0, "Camera device id")
	f.Float64Var(&runOpts.Epsilon, "epsilon", notes.DefaultEpsilon, "Pinch threshold in pixels")
	f.IntVar(&runOpts.FPS, "fps", capture.DefaultFPS, "Frames per second to process")
	f.StringVar(&runOpts.Addr, "addr", ":8080", "HTTP listen address")
	f.StringVar(&runOpts.PluginDir, "plugins", "", "Plugin directory (default: ~/.solfa/plugins)")
	f.StringVar(&runOpts.WebDir, "web", "", "Static web UI directory (default: search ./web and ~/.solfa/web)")
	f.BoolVar(&runOpts.NoTray, "no-tray", false, "Run without the system tray menu")
}

func runLive(cmd *cobra.Command, opts runOptions) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	epsilon, err := resolveEpsilon(cmd, opts.Epsilon)
	if err != nil {
		return err
	}
	cameraID, err := resolveCamera(cmd, opts.Camera)
	if err != nil {
		return err
	}

	if opts.PluginDir == "" {
		if opts.PluginDir = findDir("plugins"); opts.PluginDir == "" {
			dir, err := dataDir()
			if err != nil {
				return err
			}
			opts.PluginDir = filepath.Join(dir, "plugins")
		}
	}
	if opts.WebDir == "" {
		opts.WebDir = findDir("web")
	}

	a, err := app.New(app.Config{
		Store:     db,
		PluginDir: opts.PluginDir,
		CameraID:  cameraID,
		Epsilon:   &epsilon,
		FPS:       opts.FPS,
	})
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.DiscoverPlugins(); err != nil {
		log.Printf("Failed to discover plugins: %v", err)
	}
	for _, p := range a.PluginManager().List() {
		log.Printf("Loaded plugin %s (%s)", p.Manifest.Name, p.Path)
	}

	a.SetEnabled(true)
	if err := a.Start(); err != nil {
		return fmt.Errorf("failed to start pipeline: %w", err)
	}

	srv := server.New(server.Config{
		StaticDir: opts.WebDir,
		Store:     db,
		Pipeline:  a,
		Plugins:   a.PluginManager(),
	})
	defer srv.Close()

	httpSrv := &http.Server{Addr: opts.Addr, Handler: srv}
	go func() {
		log.Printf("Starting server on %s (epsilon %.1f px, camera %d)", opts.Addr, epsilon, cameraID)
		if opts.WebDir != "" {
			log.Printf("Serving static files from: %s", opts.WebDir)
		}
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Server failed: %v", err)
			cancel()
		}
	}()

	if opts.NoTray {
		<-ctx.Done()
	} else {
		runTray(ctx, cancel, a, settingsURL(opts.Addr))
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	return httpSrv.Shutdown(shutdownCtx)
}

// runTray blocks in the tray event loop until Quit is chosen or ctx is done.
func runTray(ctx context.Context, cancel context.CancelFunc, a *app.App, url string) {
	t := tray.New(a.IsEnabled())
	t.OnToggle(a.SetEnabled)
	t.OnSettings(func() {
		if err := openBrowser(url); err != nil {
			log.Printf("Failed to open %s: %v", url, err)
		}
	})
	t.OnQuit(cancel)

	unsubscribe := a.Subscribe(func(r app.Result) {
		if len(r.On) == 0 {
			return
		}
		names := make([]string, len(r.On))
		for i, n := range r.On {
			names[i] = n.String()
		}
		t.SetLastNotes(names)
	})
	defer unsubscribe()

	go func() {
		<-ctx.Done()
		t.Quit()
	}()

	t.Run()
}

func settingsURL(addr string) string {
	host := addr
	if len(host) > 0 && host[0] == ':' {
		host = "localhost" + host
	}
	return "http://" + host + "/"
}

func openBrowser(url string) error {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", url).Start()
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", url).Start()
	default:
		return exec.Command("xdg-open", url).Start()
	}
}
