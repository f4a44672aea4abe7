package notes

import (
	"encoding/json"
	"testing"

	"github.com/ayusman/solfa/internal/hand"
)

func TestTargets(t *testing.T) {
	want := [NumNotes]int{21, 5, 8, 12, 16, 20, 17}
	if Targets != want {
		t.Errorf("Targets = %v, want %v", Targets, want)
	}
	if DoID != 21 || ThumbTipID != 4 || DoSourceA != 2 || DoSourceB != 5 {
		t.Error("landmark id constants drifted from the hand topology")
	}
	if MinLandmarksForClassification != hand.NumLandmarks+1 {
		t.Errorf("MinLandmarksForClassification = %d, want %d", MinLandmarksForClassification, hand.NumLandmarks+1)
	}
}

func TestNote_Target(t *testing.T) {
	for _, n := range All() {
		if n.Target() != Targets[n] {
			t.Errorf("%s.Target() = %d, want %d", n, n.Target(), Targets[n])
		}
	}
	for _, n := range []Note{-1, NumNotes, 42} {
		if got := n.Target(); got != -1 {
			t.Errorf("Note(%d).Target() = %d, want -1", int(n), got)
		}
	}
}

func TestNote_String(t *testing.T) {
	tests := []struct {
		note Note
		want string
	}{
		{Do, "do"},
		{Re, "re"},
		{Mi, "mi"},
		{Fa, "fa"},
		{Sol, "sol"},
		{La, "la"},
		{Si, "si"},
		{NumNotes, "unknown"},
		{Note(-1), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.note.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseNote(t *testing.T) {
	for _, n := range All() {
		got, ok := ParseNote(n.String())
		if !ok || got != n {
			t.Errorf("ParseNote(%q) = %v, %v", n.String(), got, ok)
		}
	}

	if n, ok := ParseNote(" SOL "); !ok || n != Sol {
		t.Errorf("ParseNote should ignore case and spaces, got %v, %v", n, ok)
	}
	if _, ok := ParseNote("ti"); ok {
		t.Error("ParseNote(\"ti\") should fail")
	}
}

func TestVector(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		var v Vector
		if v.Any() {
			t.Error("Any() should be false")
		}
		if len(v.Active()) != 0 {
			t.Error("Active() should be empty")
		}
		if v.String() != "-" {
			t.Errorf("String() = %q, want %q", v.String(), "-")
		}
	})

	t.Run("active notes in order", func(t *testing.T) {
		v := Vector{Si: true, Do: true, Mi: true}
		active := v.Active()
		want := []Note{Do, Mi, Si}
		if len(active) != len(want) {
			t.Fatalf("Active() = %v, want %v", active, want)
		}
		for i := range want {
			if active[i] != want[i] {
				t.Errorf("Active()[%d] = %v, want %v", i, active[i], want[i])
			}
		}
		if v.String() != "do mi si" {
			t.Errorf("String() = %q, want %q", v.String(), "do mi si")
		}
	})

	t.Run("diff reports edges", func(t *testing.T) {
		prev := Vector{Do: true, Re: true}
		cur := Vector{Re: true, Fa: true}

		on, off := cur.Diff(prev)
		if len(on) != 1 || on[0] != Fa {
			t.Errorf("on = %v, want [fa]", on)
		}
		if len(off) != 1 || off[0] != Do {
			t.Errorf("off = %v, want [do]", off)
		}

		on, off = cur.Diff(cur)
		if on != nil || off != nil {
			t.Errorf("expected no edges for identical vectors, got %v %v", on, off)
		}
	})
}

func TestNote_JSON(t *testing.T) {
	data, err := json.Marshal([]Note{Do, Sol})
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if string(data) != `["do","sol"]` {
		t.Errorf("Marshal() = %s", data)
	}

	var back []Note
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if len(back) != 2 || back[0] != Do || back[1] != Sol {
		t.Errorf("Unmarshal() = %v", back)
	}

	if err := json.Unmarshal([]byte(`["ti"]`), &back); err == nil {
		t.Error("expected error for unknown note name")
	}
	if _, err := json.Marshal(Note(9)); err == nil {
		t.Error("expected error for out of range note")
	}
}
