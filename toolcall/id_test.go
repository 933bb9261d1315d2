package toolcall

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func isAlphanumeric(s string) bool {
	for _, r := range s {
		if !strings.ContainsRune(idAlphabet, r) {
			return false
		}
	}
	return true
}

func TestGenerateID_FormatAndUniqueness(t *testing.T) {
	seen := make(map[string]struct{}, 5000)
	for i := 0; i < 5000; i++ {
		id := GenerateID()
		if len(id) != len(IDPrefix)+IDLength {
			t.Fatalf("id %q: want length 29 got %d", id, len(id))
		}
		if !strings.HasPrefix(id, "call_") {
			t.Fatalf("id %q missing prefix", id)
		}
		if !isAlphanumeric(id[len(IDPrefix):]) {
			t.Fatalf("id %q has non-alphanumeric suffix", id)
		}
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate id %q after %d ids", id, i)
		}
		seen[id] = struct{}{}
	}
}

func TestGenerateID_UsesWholeAlphabet(t *testing.T) {
	counts := make(map[byte]int)
	for i := 0; i < 2000; i++ {
		id := GenerateID()
		for j := len(IDPrefix); j < len(id); j++ {
			counts[id[j]]++
		}
	}
	// 48000 draws over 62 symbols; every symbol is all but certain to appear.
	if len(counts) != len(idAlphabet) {
		t.Fatalf("expected all %d symbols, saw %d", len(idAlphabet), len(counts))
	}
}

func TestCreate_GeneratesIDWhenEmpty(t *testing.T) {
	_, ctrl, err := Create(t.Context(), "t", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !strings.HasPrefix(ctrl.ToolCallID(), IDPrefix) || len(ctrl.ToolCallID()) != 29 {
		t.Fatalf("unexpected generated id %q", ctrl.ToolCallID())
	}
}

func TestGenerateID_Property(t *testing.T) {
	properties := gopter.NewProperties(gopter.DefaultTestParameters())

	properties.Property("every generated id is call_ + 24 alphanumerics", prop.ForAll(
		func(_ int) bool {
			id := GenerateID()
			return len(id) == 29 && strings.HasPrefix(id, IDPrefix) && isAlphanumeric(id[5:])
		},
		gen.Int(),
	))

	properties.TestingRun(t)
}
