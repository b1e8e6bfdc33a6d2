package gc

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/javanhut/gam/internal/cas"
	"github.com/javanhut/gam/internal/refs"
	"github.com/javanhut/gam/internal/snapshot"
	"github.com/javanhut/gam/internal/testutil"
)

type fixture struct {
	gamDir    string
	content   *cas.ContentStore
	snapshots *snapshot.Store
	refs      *refs.RefsManager
	collector *Collector

	blobX, blobY, blobZ cas.Blob
	s1, s2              *snapshot.Snapshot
}

// newFixture builds: s1 {x} unreferenced, s2 {y} head of main, z stored but
// used by no snapshot.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	clk := testutil.FixedClock()
	gamDir, content, snapshots, rm := newStores(t, clk)

	f := &fixture{gamDir: gamDir, content: content, snapshots: snapshots, refs: rm}
	var err error
	src := t.TempDir()
	store := func(name, data string) cas.Blob {
		blob, err := content.Store(testutil.WriteFile(t, src, name, data))
		if err != nil {
			t.Fatalf("Store failed: %v", err)
		}
		return blob
	}
	f.blobX = store("x", "xxxxxxxxxx")
	f.blobY = store("y", "yyyyyyyyyyyyyyyyyyyy")
	f.blobZ = store("z", "zzzzz")

	entry := func(b cas.Blob) []snapshot.FileEntry {
		return []snapshot.FileEntry{{Path: "save.dat", Digest: b.Hash, Size: b.Size}}
	}
	f.s1, err = snapshots.Create(snapshot.CreateParams{Files: entry(f.blobX), Timeline: "main", Name: "s1"})
	if err != nil {
		t.Fatal(err)
	}
	clk.Advance(time.Minute)
	f.s2, err = snapshots.Create(snapshot.CreateParams{Files: entry(f.blobY), Timeline: "main", Parent: f.s1.ID, Name: "s2"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := rm.Create("main", f.s2.ID, ""); err != nil {
		t.Fatal(err)
	}
	if err := rm.SetCurrent("main"); err != nil {
		t.Fatal(err)
	}

	f.collector = New(content, snapshots, rm, nil)
	return f
}

func newStores(t *testing.T, clk *testutil.StubClock) (string, *cas.ContentStore, *snapshot.Store, *refs.RefsManager) {
	t.Helper()
	gamDir := filepath.Join(t.TempDir(), ".gam")

	content, err := cas.NewContentStore(filepath.Join(gamDir, "objects", "content"), cas.Options{})
	if err != nil {
		t.Fatalf("NewContentStore failed: %v", err)
	}
	t.Cleanup(func() { content.Close() })
	snapshots, err := snapshot.NewStore(filepath.Join(gamDir, "objects", "snapshot"), snapshot.Options{Clock: clk})
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	rm, err := refs.NewRefsManager(gamDir, refs.Options{Clock: clk})
	if err != nil {
		t.Fatalf("NewRefsManager failed: %v", err)
	}
	return gamDir, content, snapshots, rm
}

func TestDryRunParity(t *testing.T) {
	f := newFixture(t)

	dry, err := f.collector.Run(Options{DryRun: true})
	if err != nil {
		t.Fatalf("dry run failed: %v", err)
	}
	if !f.content.Exists(f.blobZ.Hash) {
		t.Fatal("dry run must not delete content")
	}

	actual, err := f.collector.Run(Options{})
	if err != nil {
		t.Fatalf("real run failed: %v", err)
	}

	if len(dry.OrphanedContent) != len(actual.OrphanedContent) || dry.ContentBytes != actual.ContentBytes {
		t.Errorf("content: dry %d/%d, actual %d/%d",
			len(dry.OrphanedContent), dry.ContentBytes, len(actual.OrphanedContent), actual.ContentBytes)
	}
	if len(dry.OrphanedSnapshots) != len(actual.OrphanedSnapshots) || dry.SnapshotBytes != actual.SnapshotBytes {
		t.Errorf("snapshots: dry %d/%d, actual %d/%d",
			len(dry.OrphanedSnapshots), dry.SnapshotBytes, len(actual.OrphanedSnapshots), actual.SnapshotBytes)
	}
	if dry.TotalBytes() != actual.TotalBytes() {
		t.Errorf("total: dry %d, actual %d", dry.TotalBytes(), actual.TotalBytes())
	}
}

func TestAggressiveDryRunParity(t *testing.T) {
	f := newFixture(t)

	dry, err := f.collector.Run(Options{Aggressive: true, DryRun: true})
	if err != nil {
		t.Fatalf("dry run failed: %v", err)
	}
	if dry.SnapshotsRemoved {
		t.Error("dry run must not remove snapshots")
	}
	if _, err := f.snapshots.Get(f.s1.ID); err != nil {
		t.Fatalf("s1 should still exist after a dry run: %v", err)
	}

	actual, err := f.collector.Run(Options{Aggressive: true})
	if err != nil {
		t.Fatalf("real run failed: %v", err)
	}
	if dry.TotalBytes() != actual.TotalBytes() || len(dry.OrphanedSnapshots) != len(actual.OrphanedSnapshots) {
		t.Errorf("dry %+v, actual %+v", dry, actual)
	}
}

func TestNonAggressiveKeepsSnapshots(t *testing.T) {
	f := newFixture(t)

	report, err := f.collector.Run(Options{})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(report.OrphanedContent) != 1 || report.OrphanedContent[0] != f.blobZ.Hash {
		t.Errorf("orphaned content = %v, want only z", report.OrphanedContent)
	}
	if report.ContentBytes != f.blobZ.StoredSize {
		t.Errorf("content bytes = %d, want %d", report.ContentBytes, f.blobZ.StoredSize)
	}
	if f.content.Exists(f.blobZ.Hash) {
		t.Error("orphaned blob should be removed without --aggressive")
	}

	if len(report.OrphanedSnapshots) != 1 || report.OrphanedSnapshots[0] != f.s1.ID {
		t.Errorf("orphaned snapshots = %v, want s1", report.OrphanedSnapshots)
	}
	if report.SnapshotsRemoved {
		t.Error("snapshots must not be removed without --aggressive")
	}
	if _, err := f.snapshots.Get(f.s1.ID); err != nil {
		t.Errorf("s1 should remain on disk: %v", err)
	}
	if !f.content.Exists(f.blobX.Hash) {
		t.Error("blobs of a still-present snapshot are live")
	}
}

// The total counts orphaned snapshot bytes even when those snapshots stay
// on disk. Changing this should be a deliberate decision.
func TestNonAggressiveTotalIncludesUnreclaimedSnapshots(t *testing.T) {
	f := newFixture(t)
	s1Size, err := f.snapshots.FileSize(f.s1.ID)
	if err != nil {
		t.Fatal(err)
	}

	report, err := f.collector.Run(Options{})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if report.SnapshotBytes != s1Size {
		t.Errorf("snapshot bytes = %d, want %d", report.SnapshotBytes, s1Size)
	}
	if report.TotalBytes() != f.blobZ.StoredSize+s1Size {
		t.Errorf("total = %d, want %d", report.TotalBytes(), f.blobZ.StoredSize+s1Size)
	}
}

func TestAggressiveRemovesSnapshotsThenContent(t *testing.T) {
	f := newFixture(t)

	first, err := f.collector.Run(Options{Aggressive: true})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !first.SnapshotsRemoved {
		t.Error("aggressive run should remove snapshots")
	}
	if _, err := f.snapshots.Get(f.s1.ID); err == nil {
		t.Error("s1 should be deleted")
	}
	if _, err := f.snapshots.Get(f.s2.ID); err != nil {
		t.Errorf("s2 is the main head and must survive: %v", err)
	}
	// x was live when the run started, so it goes on the next pass.
	if !f.content.Exists(f.blobX.Hash) {
		t.Error("x should survive the pass that deleted s1")
	}
	zPrefix := f.blobZ.Hash.String()[:2]
	shared := f.blobX.Hash.String()[:2] == zPrefix || f.blobY.Hash.String()[:2] == zPrefix
	if _, err := os.Stat(filepath.Join(f.content.Root(), zPrefix)); !shared && !os.IsNotExist(err) {
		t.Errorf("z's empty prefix directory should be pruned, stat err = %v", err)
	}

	second, err := f.collector.Run(Options{Aggressive: true})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(second.OrphanedContent) != 1 || second.OrphanedContent[0] != f.blobX.Hash {
		t.Errorf("second pass orphans = %v, want x", second.OrphanedContent)
	}
	if len(second.OrphanedSnapshots) != 0 {
		t.Errorf("second pass snapshots = %v, want none", second.OrphanedSnapshots)
	}
	if f.content.Exists(f.blobX.Hash) {
		t.Error("x should be gone after the second pass")
	}
	if !f.content.Exists(f.blobY.Hash) {
		t.Error("y is referenced by s2 and must survive")
	}
}

func TestDetachedHeadKeepsSnapshot(t *testing.T) {
	f := newFixture(t)
	if err := f.refs.Detach(f.s1.ID); err != nil {
		t.Fatal(err)
	}

	report, err := f.collector.Run(Options{Aggressive: true})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(report.OrphanedSnapshots) != 0 {
		t.Errorf("detached HEAD target should not be orphaned: %v", report.OrphanedSnapshots)
	}
}

func TestUnreadableHeadStopsRun(t *testing.T) {
	for _, opts := range []Options{{}, {Aggressive: true}, {Aggressive: true, DryRun: true}} {
		f := newFixture(t)
		if err := f.refs.Detach(f.s1.ID); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(f.gamDir, "HEAD"), nil, 0644); err != nil {
			t.Fatal(err)
		}

		report, err := f.collector.Run(opts)
		if !errors.Is(err, refs.ErrInvalidHead) {
			t.Fatalf("Run(%+v) = %v, want ErrInvalidHead", opts, err)
		}
		if report != nil {
			t.Errorf("Run(%+v) returned a report alongside the error", opts)
		}
		if _, err := f.snapshots.Get(f.s1.ID); err != nil {
			t.Errorf("s1 must survive a failed run: %v", err)
		}
		if !f.content.Exists(f.blobZ.Hash) {
			t.Error("content must not be swept when refs cannot be read")
		}
	}
}

func TestPruneOnlyInAggressiveRealRun(t *testing.T) {
	_, content, snapshots, rm := newStores(t, testutil.FixedClock())
	if _, err := rm.Create("main", "", ""); err != nil {
		t.Fatal(err)
	}
	if err := rm.SetCurrent("main"); err != nil {
		t.Fatal(err)
	}
	blob, err := content.Store(testutil.WriteFile(t, t.TempDir(), "old.sav", "stale"))
	if err != nil {
		t.Fatalf("Store failed: %v", err)
	}
	prefixDir := filepath.Join(content.Root(), blob.Hash.String()[:2])
	collector := New(content, snapshots, rm, nil)

	steps := []struct {
		opts       Options
		dirRemains bool
		pruned     int
	}{
		{Options{}, true, 0},
		{Options{Aggressive: true, DryRun: true}, true, 0},
		{Options{Aggressive: true}, false, 1},
	}
	for _, step := range steps {
		report, err := collector.Run(step.opts)
		if err != nil {
			t.Fatalf("Run(%+v) failed: %v", step.opts, err)
		}
		if report.PrunedDirs != step.pruned {
			t.Errorf("Run(%+v) pruned %d, want %d", step.opts, report.PrunedDirs, step.pruned)
		}
		_, statErr := os.Stat(prefixDir)
		if remains := statErr == nil; remains != step.dirRemains {
			t.Errorf("after Run(%+v) prefix dir exists = %v, want %v", step.opts, remains, step.dirRemains)
		}
	}
	if content.Exists(blob.Hash) {
		t.Error("orphaned blob should be gone")
	}
}
