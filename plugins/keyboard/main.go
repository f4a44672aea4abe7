// Package main provides a keyboard plugin for macOS.
// It types the key configured for each played note via AppleScript.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// Request represents the input from the plugin executor.
type Request struct {
	Action string          `json:"action"`
	Note   string          `json:"note"`
	Index  int             `json:"index"`
	Event  string          `json:"event"`
	Config json.RawMessage `json:"config"`
	Params json.RawMessage `json:"params"`
}

// Response represents the output to the plugin executor.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Config maps note names to keys.
//
//	{"keys": {"do": "a", "re": "s"}, "modifiers": ["command"]}
type Config struct {
	Keys      map[string]string `json:"keys"`
	Key       string            `json:"key"`
	Modifiers []string          `json:"modifiers"` // command, option, control, shift
}

// modifierMap maps user-friendly modifier names to AppleScript equivalents.
var modifierMap = map[string]string{
	"command": "command down",
	"cmd":     "command down",
	"option":  "option down",
	"alt":     "option down",
	"control": "control down",
	"ctrl":    "control down",
	"shift":   "shift down",
}

func main() {
	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeResponse(fmt.Errorf("failed to decode request: %w", err))
		return
	}

	switch req.Action {
	case "press":
		if req.Event != "" && req.Event != "note-on" {
			writeResponse(nil)
			return
		}
		writeResponse(press(req))
	default:
		writeResponse(fmt.Errorf("unknown action: %s", req.Action))
	}
}

func press(req Request) error {
	var cfg Config
	if len(req.Config) > 0 {
		if err := json.Unmarshal(req.Config, &cfg); err != nil {
			return fmt.Errorf("failed to parse config: %w", err)
		}
	}

	key := cfg.Keys[req.Note]
	if key == "" {
		key = cfg.Key
	}
	if key == "" {
		return fmt.Errorf("no key configured for note %q", req.Note)
	}

	return runAppleScript(buildKeystrokeScript(key, cfg.Modifiers))
}

// buildKeystrokeScript generates an AppleScript for the given key and modifiers.
func buildKeystrokeScript(key string, modifiers []string) string {
	var appleModifiers []string
	for _, mod := range modifiers {
		if appleMod, ok := modifierMap[strings.ToLower(mod)]; ok {
			appleModifiers = append(appleModifiers, appleMod)
		}
	}

	script := fmt.Sprintf(`tell application "System Events" to keystroke %q`, key)
	if len(appleModifiers) > 0 {
		script += fmt.Sprintf(" using {%s}", strings.Join(appleModifiers, ", "))
	}
	return script
}

func writeResponse(err error) {
	resp := Response{Success: err == nil}
	if err != nil {
		resp.Error = err.Error()
	}
	json.NewEncoder(os.Stdout).Encode(resp)
}

// runAppleScript executes an AppleScript command and returns any error.
func runAppleScript(script string) error {
	output, err := exec.Command("osascript", "-e", script).CombinedOutput()
	if err != nil {
		return errors.Join(err, errors.New(strings.TrimSpace(string(output))))
	}
	return nil
}
