package diff

import (
	"slices"
	"testing"

	"github.com/javanhut/gam/internal/cas"
	"github.com/javanhut/gam/internal/snapshot"
)

func files(pairs ...string) []snapshot.FileEntry {
	var out []snapshot.FileEntry
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, snapshot.FileEntry{
			Path:   pairs[i],
			Digest: cas.SumB3([]byte(pairs[i+1])),
			Size:   int64(len(pairs[i+1])),
		})
	}
	return out
}

func TestClassification(t *testing.T) {
	a := files("a.dat", "same", "b.dat", "old", "gone.dat", "bye")
	b := files("a.dat", "same", "b.dat", "newer", "new.dat", "hi")

	r := Files(a, b)
	if got := Paths(r.Added); !slices.Equal(got, []string{"new.dat"}) {
		t.Errorf("added = %v", got)
	}
	if got := Paths(r.Deleted); !slices.Equal(got, []string{"gone.dat"}) {
		t.Errorf("deleted = %v", got)
	}
	if got := Paths(r.Modified); !slices.Equal(got, []string{"b.dat"}) {
		t.Errorf("modified = %v", got)
	}
	if got := Paths(r.Unchanged); !slices.Equal(got, []string{"a.dat"}) {
		t.Errorf("unchanged = %v", got)
	}
	// old: 4+3+3 = 10, new: 4+5+2 = 11
	if r.SizeDelta() != 1 {
		t.Errorf("size delta = %d, want 1", r.SizeDelta())
	}
	if !r.HasChanges() {
		t.Error("HasChanges should be true")
	}
	if got := Paths(r.Changes()); !slices.Equal(got, []string{"b.dat", "gone.dat", "new.dat"}) {
		t.Errorf("Changes = %v", got)
	}
}

func TestSymmetry(t *testing.T) {
	a := files("x", "1", "y", "2", "z", "3")
	b := files("y", "2", "z", "changed", "w", "4")

	ab := Files(a, b)
	ba := Files(b, a)

	if !slices.Equal(Paths(ab.Added), Paths(ba.Deleted)) {
		t.Errorf("added(A,B) %v != deleted(B,A) %v", Paths(ab.Added), Paths(ba.Deleted))
	}
	if !slices.Equal(Paths(ab.Deleted), Paths(ba.Added)) {
		t.Errorf("deleted(A,B) %v != added(B,A) %v", Paths(ab.Deleted), Paths(ba.Added))
	}
	if !slices.Equal(Paths(ab.Modified), Paths(ba.Modified)) {
		t.Errorf("modified differs: %v vs %v", Paths(ab.Modified), Paths(ba.Modified))
	}
	if ab.SizeDelta() != -ba.SizeDelta() {
		t.Errorf("size deltas %d and %d should be opposite", ab.SizeDelta(), ba.SizeDelta())
	}
}

func TestIdenticalSets(t *testing.T) {
	a := files("x", "1")
	r := Files(a, files("x", "1"))
	if r.HasChanges() || len(r.Unchanged) != 1 {
		t.Errorf("identical sets produced %+v", r)
	}
}
