package main

import (
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/ayusman/solfa/internal/notes"
	"github.com/ayusman/solfa/internal/store"
	"github.com/spf13/cobra"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show persisted settings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		all, err := db.Settings().All()
		if err != nil {
			return err
		}
		if len(all) == 0 {
			fmt.Println("No settings stored; defaults apply.")
			return nil
		}

		keys := make([]string, 0, len(all))
		for k := range all {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Printf("%s = %s\n", k, all[k])
		}
		return nil
	},
}

var settingsGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print one setting",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := db.Settings().Get(args[0])
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("%s is not set", args[0])
			}
			return err
		}
		fmt.Println(v)
		return nil
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Store a setting (epsilon or camera)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		value, err := normalizeSetting(args[0], args[1])
		if err != nil {
			return err
		}
		return db.Settings().Set(args[0], value)
	},
}

func init() {
	settingsCmd.AddCommand(settingsGetCmd, settingsSetCmd)
	rootCmd.AddCommand(settingsCmd)
}

// normalizeSetting validates value for key and returns its stored form.
func normalizeSetting(key, value string) (string, error) {
	switch key {
	case store.SettingEpsilon:
		eps, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return "", fmt.Errorf("epsilon: %w", err)
		}
		if err := notes.ValidateEpsilon(eps); err != nil {
			return "", err
		}
		return strconv.FormatFloat(eps, 'f', -1, 64), nil
	case store.SettingCamera:
		id, err := strconv.Atoi(value)
		if err != nil {
			return "", fmt.Errorf("camera: %w", err)
		}
		if id < 0 {
			return "", fmt.Errorf("camera: device id must be non-negative, got %d", id)
		}
		return strconv.Itoa(id), nil
	default:
		return "", fmt.Errorf("unknown setting %q (want %s or %s)", key, store.SettingEpsilon, store.SettingCamera)
	}
}
