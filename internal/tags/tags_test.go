package tags

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/javanhut/gam/internal/refs"
)

var (
	snapA = strings.Repeat("a", 64)
	snapB = strings.Repeat("b", 64)
)

func TestAddRemoveAndReverse(t *testing.T) {
	path := filepath.Join(t.TempDir(), "refs", "tags.json")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	if err := s.Add("before-boss", snapA); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	s.Add("checkpoint", snapA)
	s.Add("ending", snapB)

	if err := s.Add("ending", snapA); !errors.Is(err, ErrExists) {
		t.Errorf("duplicate Add = %v, want ErrExists", err)
	}
	for _, name := range []string{"", ".", "..", "a/b", `a\b`} {
		err := s.Add(name, snapA)
		if !errors.Is(err, ErrInvalidName) {
			t.Errorf("Add(%q) = %v, want ErrInvalidName", name, err)
		}
		if refs.ValidateName(name) == nil {
			t.Errorf("timeline rules accept %q but tag rules reject it", name)
		}
	}
	for _, name := range []string{"before-boss", "v1.0", "act 2"} {
		if err := ValidateName(name); err != nil {
			t.Errorf("ValidateName(%q) = %v", name, err)
		}
		if err := refs.ValidateName(name); err != nil {
			t.Errorf("refs.ValidateName(%q) = %v", name, err)
		}
	}

	got := s.ForSnapshot(snapA)
	if len(got) != 2 || got[0] != "before-boss" || got[1] != "checkpoint" {
		t.Errorf("ForSnapshot = %v", got)
	}

	if err := s.Remove("checkpoint"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if err := s.Remove("checkpoint"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Remove = %v, want ErrNotFound", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	all := reopened.All()
	if len(all) != 2 || all[0].Name != "before-boss" || all[1].Snapshot != snapB {
		t.Errorf("persisted tags = %+v", all)
	}
	if id, ok := reopened.Get("ending"); !ok || id != snapB {
		t.Errorf("Get(ending) = %q, %v", id, ok)
	}
}

func TestRemoveSnapshot(t *testing.T) {
	s, _ := Open(filepath.Join(t.TempDir(), "tags.json"))
	s.Add("one", snapA)
	s.Add("two", snapA)
	s.Add("three", snapB)

	removed, err := s.RemoveSnapshot(snapA)
	if err != nil {
		t.Fatalf("RemoveSnapshot failed: %v", err)
	}
	if len(removed) != 2 {
		t.Errorf("removed %v", removed)
	}
	if len(s.All()) != 1 {
		t.Errorf("remaining tags = %+v", s.All())
	}
}

func TestCorruptFileIsAnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tags.json")
	os.WriteFile(path, []byte("{not json"), 0644)
	if _, err := Open(path); err == nil {
		t.Error("Open should fail on a corrupt tag file")
	}
}

func TestParseRef(t *testing.T) {
	if name, ok := ParseRef("refs/tags/final"); !ok || name != "final" {
		t.Errorf("ParseRef = %q, %v", name, ok)
	}
	if _, ok := ParseRef("deadbeef"); ok {
		t.Error("plain prefix should not parse as a tag ref")
	}
}
