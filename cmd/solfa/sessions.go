package main

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/ayusman/solfa/internal/store"
	"github.com/spf13/cobra"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List recorded sessions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return listSessions()
	},
}

var sessionEventsCmd = &cobra.Command{
	Use:   "events <id>",
	Short: "Print the note events of a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return listEvents(args[0])
	},
}

var sessionDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a session and its events",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := db.Sessions().Delete(args[0]); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("session %s not found", args[0])
			}
			return err
		}
		fmt.Printf("Deleted session %s\n", args[0])
		return nil
	},
}

func init() {
	sessionsCmd.AddCommand(sessionEventsCmd, sessionDeleteCmd)
	rootCmd.AddCommand(sessionsCmd)
}

func listSessions() error {
	sessions, err := db.Sessions().List()
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}

	if len(sessions) == 0 {
		fmt.Println("No sessions recorded.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "ID\tSOURCE\tEPSILON\tFRAMES\tSTARTED\tPLAYED")
	fmt.Fprintln(w, "--\t------\t-------\t------\t-------\t------")

	for _, sess := range sessions {
		played, err := db.Events().CountOn(sess.ID)
		if err != nil {
			return fmt.Errorf("failed to count notes for %s: %w", sess.ID, err)
		}
		fmt.Fprintf(w, "%s\t%s\t%.1f\t%d\t%s\t%s\n",
			sess.ID, sess.Source, sess.Epsilon, sess.Frames,
			sess.StartedAt.Local().Format("2006-01-02 15:04"), formatPlayed(played))
	}
	return w.Flush()
}

func listEvents(id string) error {
	if _, err := db.Sessions().GetByID(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("session %s not found", id)
		}
		return err
	}

	events, err := db.Events().ListBySession(id)
	if err != nil {
		return fmt.Errorf("failed to list events: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "FRAME\tNOTE\tSTATE\tTIME (ms)")
	for _, e := range events {
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\n", e.Frame, e.Note, e.State, e.TimestampMs)
	}
	return w.Flush()
}
