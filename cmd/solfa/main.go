// Command solfa plays notes from hand pinches seen by a camera.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/ayusman/solfa/internal/store"
	"github.com/spf13/cobra"
)

// Version is the application version.
const Version = "0.1.0"

var (
	// db is the store shared by subcommands.
	db *store.Store
	// dbPath overrides the default database location.
	dbPath string
)

var rootCmd = &cobra.Command{
	Use:           "solfa",
	Short:         "Play solfège notes by pinching fingers in front of a camera",
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if dbPath == "" {
			dir, err := dataDir()
			if err != nil {
				return err
			}
			dbPath = filepath.Join(dir, "solfa.db")
		}

		var err error
		db, err = store.New(dbPath)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if db != nil {
			db.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite database path (default: ~/.solfa/solfa.db)")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// dataDir returns ~/.solfa, creating it if needed.
func dataDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	dir := filepath.Join(homeDir, ".solfa")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}
	return dir, nil
}

// findDir returns the first existing directory named name relative to the
// working directory, or under ~/.solfa. Returns "" if none is found.
func findDir(name string) string {
	for _, p := range []string{name, filepath.Join("..", name), filepath.Join("..", "..", name)} {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			if abs, err := filepath.Abs(p); err == nil {
				return abs
			}
			return p
		}
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	p := filepath.Join(homeDir, ".solfa", name)
	if info, err := os.Stat(p); err == nil && info.IsDir() {
		return p
	}
	return ""
}

// resolveEpsilon applies flag > stored setting > default.
func resolveEpsilon(cmd *cobra.Command, flagValue float64) (float64, error) {
	if cmd.Flags().Changed("epsilon") {
		return flagValue, nil
	}
	return db.Settings().GetFloat(store.SettingEpsilon, flagValue)
}

// resolveCamera applies flag > stored setting > default.
func resolveCamera(cmd *cobra.Command, flagValue int) (int, error) {
	if cmd.Flags().Changed("camera") {
		return flagValue, nil
	}
	return db.Settings().GetInt(store.SettingCamera, flagValue)
}
