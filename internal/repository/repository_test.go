package repository

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/javanhut/gam/internal/activity"
	"github.com/javanhut/gam/internal/cas"
	"github.com/javanhut/gam/internal/gc"
	"github.com/javanhut/gam/internal/refs"
	"github.com/javanhut/gam/internal/snapshot"
	"github.com/javanhut/gam/internal/tags"
	"github.com/javanhut/gam/internal/testutil"
)

func newRepo(t *testing.T, files map[string]string) (*Repository, *testutil.StubClock) {
	t.Helper()
	dir := t.TempDir()
	testutil.WriteTree(t, dir, files)
	clk := testutil.FixedClock()
	repo, err := Init(dir, false, Options{Clock: clk})
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo, clk
}

func save(t *testing.T, repo *Repository, clk *testutil.StubClock, name string) *snapshot.Snapshot {
	t.Helper()
	clk.Advance(time.Minute)
	snap, err := repo.Save(SaveOptions{Name: name})
	if err != nil {
		t.Fatalf("Save(%s) failed: %v", name, err)
	}
	if snap == nil {
		t.Fatalf("Save(%s) created no snapshot", name)
	}
	return snap
}

func TestEndToEnd(t *testing.T) {
	repo, clk := newRepo(t, map[string]string{"a.dat": "alpha", "b.dat": "bravo"})

	s1 := save(t, repo, clk, "s1")
	testutil.WriteFile(t, repo.WorkDir(), "b.dat", "bravo, later")
	s2 := save(t, repo, clk, "s2")

	if s2.Parent != s1.ID {
		t.Errorf("s2 parent = %s, want %s", s2.Parent, s1.ID)
	}

	cmp, err := repo.Diff(s1.ID, s2.ID)
	if err != nil {
		t.Fatalf("Diff failed: %v", err)
	}
	if len(cmp.Added) != 0 || len(cmp.Deleted) != 0 || len(cmp.Modified) != 1 {
		t.Fatalf("diff = +%d -%d ~%d, want +0 -0 ~1", len(cmp.Added), len(cmp.Deleted), len(cmp.Modified))
	}
	if cmp.Modified[0].Path != "b.dat" {
		t.Errorf("modified path = %s, want b.dat", cmp.Modified[0].Path)
	}

	dry, err := repo.GC(gc.Options{DryRun: true})
	if err != nil {
		t.Fatalf("dry-run gc failed: %v", err)
	}
	if len(dry.OrphanedContent) != 0 {
		t.Errorf("dry run orphaned content = %d, want 0", len(dry.OrphanedContent))
	}
	// s1 is not a timeline head, so it already counts as an orphaned snapshot.
	if !slices.Equal(dry.OrphanedSnapshots, []string{s1.ID}) {
		t.Errorf("dry run orphaned snapshots = %v, want [s1]", dry.OrphanedSnapshots)
	}

	if _, err := repo.DeleteSnapshot(s1.ID, true); err != nil {
		t.Fatalf("DeleteSnapshot failed: %v", err)
	}

	report, err := repo.GC(gc.Options{Aggressive: true})
	if err != nil {
		t.Fatalf("aggressive gc failed: %v", err)
	}
	oldDigest := cas.SumB3([]byte("bravo"))
	if !slices.Equal(report.OrphanedContent, []cas.Hash{oldDigest}) {
		t.Errorf("orphaned content = %v, want the old b.dat digest", report.OrphanedContent)
	}
	if report.ContentBytes != int64(len("bravo")) {
		t.Errorf("content bytes = %d, want %d", report.ContentBytes, len("bravo"))
	}
	// s1 was removed by the delete, leaving nothing for the snapshot sweep.
	if len(report.OrphanedSnapshots) != 0 {
		t.Errorf("orphaned snapshots = %v, want none", report.OrphanedSnapshots)
	}
	if repo.Content().Exists(oldDigest) {
		t.Error("old b.dat blob should be gone")
	}
	if _, err := repo.Snapshots().Get(s1.ID); !errors.Is(err, snapshot.ErrNotFound) {
		t.Errorf("s1 lookup = %v, want ErrNotFound", err)
	}

	res, err := repo.Restore(s2.ShortID())
	if err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	if res.Files != 2 {
		t.Errorf("restored %d files, want 2", res.Files)
	}
}

func TestInitAndOpen(t *testing.T) {
	dir := t.TempDir()
	if _, err := Open(dir, Options{}); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("Open before init = %v, want ErrNotInitialized", err)
	}

	repo, err := Init(dir, false, Options{})
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	current, err := repo.CurrentTimeline()
	if err != nil {
		t.Fatalf("CurrentTimeline failed: %v", err)
	}
	if current != "main" {
		t.Errorf("current timeline = %q, want main", current)
	}
	entries, err := repo.Activity().All()
	if err != nil {
		t.Fatalf("read activity: %v", err)
	}
	if len(entries) != 1 || entries[0].Action.Kind != activity.Init {
		t.Errorf("activity after init = %+v", entries)
	}
	repo.Close()

	if _, err := Init(dir, false, Options{}); !errors.Is(err, ErrAlreadyInitialized) {
		t.Errorf("second Init = %v, want ErrAlreadyInitialized", err)
	}
	repo, err = Init(dir, true, Options{})
	if err != nil {
		t.Fatalf("forced Init failed: %v", err)
	}
	repo.Close()

	if _, err := Init(filepath.Join(dir, "missing"), false, Options{}); !errors.Is(err, ErrGamePathNotFound) {
		t.Errorf("Init on missing dir = %v, want ErrGamePathNotFound", err)
	}
}

func TestOpenMissingGamePath(t *testing.T) {
	repo, _ := newRepo(t, nil)
	if err := repo.SetConfig("core.game_path", filepath.Join(t.TempDir(), "gone")); err != nil {
		t.Fatalf("SetConfig failed: %v", err)
	}
	dir := filepath.Dir(repo.GamDir())
	repo.Close()

	if _, err := Open(dir, Options{}); !errors.Is(err, ErrGamePathNotFound) {
		t.Errorf("Open = %v, want ErrGamePathNotFound", err)
	}
}

func TestSaveEmptyDirectory(t *testing.T) {
	repo, _ := newRepo(t, nil)

	snap, err := repo.Save(SaveOptions{Name: "nothing"})
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if snap != nil {
		t.Errorf("Save on empty directory created %s", snap.ShortID())
	}
	all, err := repo.ListSnapshots("")
	if err != nil {
		t.Fatalf("ListSnapshots failed: %v", err)
	}
	if len(all) != 0 {
		t.Errorf("snapshots = %d, want 0", len(all))
	}
}

func TestSaveDefaultName(t *testing.T) {
	repo, _ := newRepo(t, map[string]string{"slot1.sav": "x"})

	snap, err := repo.Save(SaveOptions{})
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if snap.Name != "Snapshot 2024-01-15 10:30" {
		t.Errorf("default name = %q", snap.Name)
	}
}

func TestSaveTimelineResolution(t *testing.T) {
	repo, clk := newRepo(t, map[string]string{"slot1.sav": "x"})
	s1 := save(t, repo, clk, "s1")

	if _, err := repo.Save(SaveOptions{Timeline: "nope"}); !errors.Is(err, refs.ErrTimelineNotFound) {
		t.Errorf("save on missing timeline = %v, want ErrTimelineNotFound", err)
	}

	if _, err := repo.Switch(s1.ShortID()); err != nil {
		t.Fatalf("Switch to snapshot failed: %v", err)
	}
	if _, err := repo.Save(SaveOptions{}); !errors.Is(err, refs.ErrDetachedHead) {
		t.Errorf("save on detached HEAD = %v, want ErrDetachedHead", err)
	}

	clk.Advance(time.Minute)
	snap, err := repo.Save(SaveOptions{Timeline: "main", Name: "explicit"})
	if err != nil {
		t.Fatalf("save with explicit timeline failed: %v", err)
	}
	if snap.Timeline != "main" || snap.Parent != s1.ID {
		t.Errorf("snapshot timeline=%s parent=%s", snap.Timeline, snap.Parent)
	}
}

func TestSaveSkipsDotDirsAndIgnoredFiles(t *testing.T) {
	repo, clk := newRepo(t, map[string]string{
		"slot1.sav":          "keep",
		".cache/blob":        "skip",
		"Thumbs.db":          "kept",
		"logs/run.log":       "skip",
		"logs/important.log": "keep",
	})
	if err := repo.AddIgnorePattern("*.log"); err != nil {
		t.Fatalf("AddIgnorePattern failed: %v", err)
	}
	if err := repo.AddIgnorePattern("!important.log"); err != nil {
		t.Fatalf("AddIgnorePattern failed: %v", err)
	}

	snap := save(t, repo, clk, "filtered")
	var paths []string
	for _, f := range snap.Files {
		paths = append(paths, f.Path)
	}
	// Writing an ignore file replaces the built-in defaults, so Thumbs.db is kept.
	want := []string{"Thumbs.db", "logs/important.log", "slot1.sav"}
	if !slices.Equal(paths, want) {
		t.Errorf("saved paths = %v, want %v", paths, want)
	}

	removed, err := repo.RemoveIgnorePattern("*.log")
	if err != nil || !removed {
		t.Fatalf("RemoveIgnorePattern = %v, %v", removed, err)
	}
	ignored, _, err := repo.CheckIgnored("logs/run.log")
	if err != nil {
		t.Fatalf("CheckIgnored failed: %v", err)
	}
	if ignored {
		t.Error("run.log should no longer be ignored")
	}
}

func TestDefaultIgnoreRulesWithoutFile(t *testing.T) {
	repo, _ := newRepo(t, map[string]string{"slot1.sav": "keep", "Thumbs.db": "junk"})

	ignored, matched, err := repo.CheckIgnored("Thumbs.db")
	if err != nil {
		t.Fatalf("CheckIgnored failed: %v", err)
	}
	if !ignored || len(matched) == 0 {
		t.Errorf("Thumbs.db ignored=%v matched=%v, want ignored by a default rule", ignored, matched)
	}

	if err := repo.SetConfig("core.use_gamignore", "false"); err != nil {
		t.Fatalf("SetConfig failed: %v", err)
	}
	if ignored, _, _ := repo.CheckIgnored("Thumbs.db"); ignored {
		t.Error("with use_gamignore off nothing should be ignored")
	}
}

func TestRestore(t *testing.T) {
	repo, clk := newRepo(t, map[string]string{"slot1.sav": "v1", "cfg/settings.ini": "a=1"})
	s1 := save(t, repo, clk, "s1")

	testutil.WriteFile(t, repo.WorkDir(), "slot1.sav", "v2")
	testutil.WriteFile(t, repo.WorkDir(), "extra.sav", "new")
	if err := os.RemoveAll(filepath.Join(repo.WorkDir(), "cfg")); err != nil {
		t.Fatal(err)
	}
	s2 := save(t, repo, clk, "s2")

	res, err := repo.Restore(s1.ShortID())
	if err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	if res.HeadMoved {
		t.Error("restore with attached HEAD should not move HEAD")
	}
	if got := testutil.ReadFile(t, repo.WorkDir(), "slot1.sav"); got != "v1" {
		t.Errorf("slot1.sav = %q, want v1", got)
	}
	if got := testutil.ReadFile(t, repo.WorkDir(), "cfg/settings.ini"); got != "a=1" {
		t.Errorf("settings.ini = %q, want a=1", got)
	}
	if got := testutil.ReadFile(t, repo.WorkDir(), "extra.sav"); got != "new" {
		t.Errorf("files outside the snapshot should be left alone, got %q", got)
	}
	head, err := repo.Refs().HeadSnapshot()
	if err != nil {
		t.Fatal(err)
	}
	if head != s2.ID {
		t.Errorf("main head = %s, want s2", snapshot.ShortID(head))
	}

	if _, err := repo.Switch(s2.ID); err != nil {
		t.Fatalf("Switch failed: %v", err)
	}
	res, err = repo.Restore(s1.ID)
	if err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	if !res.HeadMoved {
		t.Error("restore with detached HEAD should move HEAD")
	}
	h, err := repo.Refs().ReadHead()
	if err != nil {
		t.Fatal(err)
	}
	if h.Snapshot != s1.ID {
		t.Errorf("detached HEAD = %s, want s1", snapshot.ShortID(h.Snapshot))
	}

	if _, err := repo.Restore("ffffffff"); !errors.Is(err, snapshot.ErrNotFound) {
		t.Errorf("restore unknown id = %v, want ErrNotFound", err)
	}
}

func TestTags(t *testing.T) {
	repo, clk := newRepo(t, map[string]string{"slot1.sav": "boss fight"})
	s1 := save(t, repo, clk, "s1")
	testutil.WriteFile(t, repo.WorkDir(), "slot1.sav", "after boss")
	s2 := save(t, repo, clk, "s2")

	if _, err := repo.AddTag("boss", s1.ShortID()); err != nil {
		t.Fatalf("AddTag failed: %v", err)
	}
	if _, err := repo.AddTag("boss", s2.ShortID()); !errors.Is(err, tags.ErrExists) {
		t.Errorf("duplicate tag = %v, want ErrExists", err)
	}
	if _, err := repo.AddTag("a/b", s2.ShortID()); !errors.Is(err, tags.ErrInvalidName) {
		t.Errorf("bad tag name = %v, want ErrInvalidName", err)
	}

	got, err := repo.ResolveSnapshot("refs/tags/boss")
	if err != nil {
		t.Fatalf("resolve tag: %v", err)
	}
	if got.ID != s1.ID {
		t.Errorf("refs/tags/boss = %s, want s1", got.ShortID())
	}
	if _, err := repo.ResolveSnapshot("refs/tags/none"); !errors.Is(err, tags.ErrNotFound) {
		t.Errorf("missing tag = %v, want tags.ErrNotFound", err)
	}

	if _, err := repo.DeleteSnapshot(s1.ID, false); err != nil {
		t.Fatalf("DeleteSnapshot failed: %v", err)
	}
	all, err := repo.Tags()
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 0 {
		t.Errorf("tags after deleting their snapshot = %v", all)
	}
}

func TestDeleteReferencedSnapshot(t *testing.T) {
	repo, clk := newRepo(t, map[string]string{"slot1.sav": "x"})
	s1 := save(t, repo, clk, "s1")

	if _, err := repo.DeleteSnapshot(s1.ShortID(), false); !errors.Is(err, ErrSnapshotReferenced) {
		t.Fatalf("delete head = %v, want ErrSnapshotReferenced", err)
	}
	if _, err := repo.DeleteSnapshot(s1.ShortID(), true); err != nil {
		t.Fatalf("forced delete failed: %v", err)
	}
	if _, err := repo.ResolveSnapshot(s1.ID); !errors.Is(err, snapshot.ErrNotFound) {
		t.Errorf("lookup after delete = %v, want ErrNotFound", err)
	}
}

func TestTimelineLifecycle(t *testing.T) {
	repo, clk := newRepo(t, map[string]string{"slot1.sav": "x"})
	s1 := save(t, repo, clk, "s1")

	tl, err := repo.CreateTimeline("speedrun", "", "any% route")
	if err != nil {
		t.Fatalf("CreateTimeline failed: %v", err)
	}
	if tl.Head != s1.ID {
		t.Errorf("new timeline head = %s, want HEAD's snapshot", snapshot.ShortID(tl.Head))
	}
	if _, err := repo.CreateTimeline("speedrun", "", ""); !errors.Is(err, refs.ErrTimelineExists) {
		t.Errorf("duplicate timeline = %v, want ErrTimelineExists", err)
	}
	if _, err := repo.CreateTimeline("..", "", ""); !errors.Is(err, refs.ErrInvalidName) {
		t.Errorf("bad name = %v, want ErrInvalidName", err)
	}

	if _, err := repo.Switch("speedrun"); err != nil {
		t.Fatalf("Switch failed: %v", err)
	}
	testutil.WriteFile(t, repo.WorkDir(), "slot1.sav", "fast")
	s2 := save(t, repo, clk, "s2")
	if s2.Timeline != "speedrun" || s2.Parent != s1.ID {
		t.Errorf("s2 timeline=%s parent=%s", s2.Timeline, snapshot.ShortID(s2.Parent))
	}

	if err := repo.RenameTimeline("speedrun", "glitchless"); err != nil {
		t.Fatalf("RenameTimeline failed: %v", err)
	}
	current, err := repo.CurrentTimeline()
	if err != nil {
		t.Fatal(err)
	}
	if current != "glitchless" {
		t.Errorf("current after rename = %q", current)
	}

	history, err := repo.History()
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	// Snapshots keep the timeline name they were taken on.
	if len(history) != 0 {
		t.Errorf("history on renamed timeline = %d snapshots, want 0", len(history))
	}

	if err := repo.DeleteTimeline("glitchless", false); err == nil {
		t.Error("deleting the current timeline should be refused")
	}
	if _, err := repo.Switch("main"); err != nil {
		t.Fatal(err)
	}
	if err := repo.DeleteTimeline("glitchless", false); err != nil {
		t.Fatalf("DeleteTimeline failed: %v", err)
	}
	if err := repo.DeleteTimeline("glitchless", false); !errors.Is(err, refs.ErrTimelineNotFound) {
		t.Errorf("second delete = %v, want ErrTimelineNotFound", err)
	}

	if _, err := repo.Switch("nowhere"); !errors.Is(err, refs.ErrTimelineNotFound) {
		t.Errorf("switch to unknown target = %v, want ErrTimelineNotFound", err)
	}
}

func TestStatus(t *testing.T) {
	repo, clk := newRepo(t, map[string]string{"a.sav": "one", "b.sav": "two"})

	st, err := repo.Status()
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if st.HeadSnapshot != nil || len(st.Changes.Added) != 2 {
		t.Errorf("fresh status: head=%v added=%d", st.HeadSnapshot, len(st.Changes.Added))
	}

	save(t, repo, clk, "s1")
	testutil.WriteFile(t, repo.WorkDir(), "b.sav", "changed")
	testutil.WriteFile(t, repo.WorkDir(), "c.sav", "new")
	if err := os.Remove(filepath.Join(repo.WorkDir(), "a.sav")); err != nil {
		t.Fatal(err)
	}

	st, err = repo.Status()
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if st.Head.Timeline != "main" || st.TimelineSnapshots != 1 {
		t.Errorf("head=%+v timeline snapshots=%d", st.Head, st.TimelineSnapshots)
	}
	if st.TrackedFiles != 2 || st.TrackedBytes != int64(len("changed")+len("new")) {
		t.Errorf("tracked %d files, %d bytes", st.TrackedFiles, st.TrackedBytes)
	}
	if len(st.Changes.Added) != 1 || len(st.Changes.Modified) != 1 || len(st.Changes.Deleted) != 1 {
		t.Errorf("changes +%d ~%d -%d, want 1 each",
			len(st.Changes.Added), len(st.Changes.Modified), len(st.Changes.Deleted))
	}
}

func TestStatusWithDeletedHead(t *testing.T) {
	repo, clk := newRepo(t, map[string]string{"a.sav": "one"})
	s1 := save(t, repo, clk, "s1")
	if _, err := repo.DeleteSnapshot(s1.ID, true); err != nil {
		t.Fatalf("DeleteSnapshot failed: %v", err)
	}

	st, err := repo.Status()
	if err != nil {
		t.Fatalf("Status with a deleted head failed: %v", err)
	}
	if st.MissingHead != s1.ID || st.HeadSnapshot != nil {
		t.Errorf("missing head = %q, head snapshot = %v", st.MissingHead, st.HeadSnapshot)
	}
	if len(st.Changes.Added) != 1 || st.TrackedFiles != 1 {
		t.Errorf("changes against empty base: added=%d tracked=%d", len(st.Changes.Added), st.TrackedFiles)
	}

	checks, err := Doctor(filepath.Dir(repo.GamDir()), false)
	if err != nil {
		t.Fatal(err)
	}
	if failed := failedChecks(checks); !slices.Equal(failed, []string{"timeline heads"}) {
		t.Errorf("doctor failures = %v, want timeline heads", failed)
	}
}

func TestCompressionStrategy(t *testing.T) {
	repo, clk := newRepo(t, nil)
	dir := filepath.Dir(repo.GamDir())
	if err := repo.SetConfig("storage.strategy", "compression"); err != nil {
		t.Fatalf("SetConfig failed: %v", err)
	}
	repo.Close()

	repo, err := Open(dir, Options{Clock: clk})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer repo.Close()

	payload := ""
	for i := 0; i < 200; i++ {
		payload += "inventory: potion x99\n"
	}
	testutil.WriteFile(t, dir, "slot1.sav", payload)
	snap := save(t, repo, clk, "compressed")
	if snap.Compression != snapshot.CompressionZstd {
		t.Errorf("compression = %q, want zstd", snap.Compression)
	}
	if cs := snap.Files[0].CompressedSize; cs == nil || *cs >= snap.Files[0].Size {
		t.Errorf("compressed size = %v, want below %d", cs, snap.Files[0].Size)
	}

	testutil.WriteFile(t, dir, "slot1.sav", "overwritten")
	if _, err := repo.Restore(snap.ID); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	if got := testutil.ReadFile(t, dir, "slot1.sav"); got != payload {
		t.Error("restored compressed file differs from the original")
	}
}

func TestSetConfigRejectsInvalid(t *testing.T) {
	repo, _ := newRepo(t, nil)
	if err := repo.SetConfig("storage.strategy", "magic"); err == nil {
		t.Error("invalid strategy should be rejected")
	}
	if repo.Config().Storage.Strategy != "deduplication" {
		t.Errorf("strategy changed to %q after a failed set", repo.Config().Storage.Strategy)
	}
}

func TestGCRecordsActivity(t *testing.T) {
	repo, _ := newRepo(t, nil)
	if _, err := repo.GC(gc.Options{DryRun: true}); err != nil {
		t.Fatal(err)
	}
	if _, err := repo.GC(gc.Options{}); err != nil {
		t.Fatal(err)
	}
	entries, err := repo.Activity().Entries(0)
	if err != nil {
		t.Fatal(err)
	}
	n := 0
	for _, e := range entries {
		if e.Action.Kind == activity.GC {
			n++
		}
	}
	if n != 1 {
		t.Errorf("gc entries = %d, want 1 (dry runs are not logged)", n)
	}
}

func TestGCRefusesUnreadableHead(t *testing.T) {
	repo, clk := newRepo(t, map[string]string{"slot1.sav": "first"})
	s1 := save(t, repo, clk, "s1")
	testutil.WriteFile(t, repo.WorkDir(), "slot1.sav", "second")
	save(t, repo, clk, "s2")
	if _, err := repo.Switch(s1.ID); err != nil {
		t.Fatalf("Switch failed: %v", err)
	}
	if err := os.WriteFile(filepath.Join(repo.GamDir(), HeadFile), nil, 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := repo.GC(gc.Options{Aggressive: true}); !errors.Is(err, refs.ErrInvalidHead) {
		t.Fatalf("GC with empty HEAD = %v, want ErrInvalidHead", err)
	}
	if _, err := repo.ResolveSnapshot(s1.ID); err != nil {
		t.Errorf("s1 must survive the refused gc: %v", err)
	}
	if _, err := repo.DeleteSnapshot(s1.ID, false); !errors.Is(err, refs.ErrInvalidHead) {
		t.Errorf("DeleteSnapshot with empty HEAD = %v, want ErrInvalidHead", err)
	}

	if _, err := Doctor(filepath.Dir(repo.GamDir()), true); err != nil {
		t.Fatalf("Doctor failed: %v", err)
	}
	report, err := repo.GC(gc.Options{Aggressive: true})
	if err != nil {
		t.Fatalf("GC after doctor --fix failed: %v", err)
	}
	if !slices.Equal(report.OrphanedSnapshots, []string{s1.ID}) {
		t.Errorf("orphaned snapshots = %v, want s1", report.OrphanedSnapshots)
	}
}

func TestDoctor(t *testing.T) {
	repo, _ := newRepo(t, nil)
	dir := filepath.Dir(repo.GamDir())
	repo.Close()

	checks, err := Doctor(dir, false)
	if err != nil {
		t.Fatalf("Doctor failed: %v", err)
	}
	for _, c := range checks {
		if !c.OK {
			t.Errorf("fresh repository check %s failed: %s", c.Name, c.Problem)
		}
	}

	if err := os.Remove(filepath.Join(dir, DirName, HeadFile)); err != nil {
		t.Fatal(err)
	}
	if err := os.RemoveAll(filepath.Join(dir, DirName, "objects", "snapshot")); err != nil {
		t.Fatal(err)
	}

	checks, err = Doctor(dir, false)
	if err != nil {
		t.Fatal(err)
	}
	if failed := failedChecks(checks); !slices.Equal(failed, []string{"objects/snapshot", "HEAD"}) {
		t.Errorf("failed checks = %v", failed)
	}

	checks, err = Doctor(dir, true)
	if err != nil {
		t.Fatal(err)
	}
	for _, c := range checks {
		if !c.OK && !c.Fixed {
			t.Errorf("check %s not fixed: %s", c.Name, c.Problem)
		}
	}

	repo, err = Open(dir, Options{})
	if err != nil {
		t.Fatalf("Open after fix failed: %v", err)
	}
	defer repo.Close()
	if current, err := repo.CurrentTimeline(); err != nil || current != "main" {
		t.Errorf("current after fix = %q, %v", current, err)
	}

	checks, err = Doctor(t.TempDir(), false)
	if err != nil {
		t.Fatal(err)
	}
	if len(checks) != 1 || checks[0].OK {
		t.Errorf("doctor on plain directory = %+v", checks)
	}
}

func failedChecks(checks []Check) []string {
	var out []string
	for _, c := range checks {
		if !c.OK {
			out = append(out, c.Name)
		}
	}
	return out
}

func TestIgnoreManagement(t *testing.T) {
	repo, _ := newRepo(t, nil)

	ignored, matched, err := repo.CheckIgnored("Thumbs.db")
	if err != nil {
		t.Fatal(err)
	}
	if !ignored || len(matched) != 1 || matched[0].Text != "Thumbs.db" {
		t.Errorf("default check = %v %v", ignored, matched)
	}

	if err := repo.AddIgnorePattern(""); err == nil {
		t.Error("empty pattern accepted")
	}
	for _, p := range []string{"*.log", "!keep.log"} {
		if err := repo.AddIgnorePattern(p); err != nil {
			t.Fatalf("AddIgnorePattern(%q) failed: %v", p, err)
		}
	}

	cases := map[string]bool{
		"debug.log":      true,
		"keep.log":       false,
		"logs/debug.log": true,
		"Thumbs.db":      false,
	}
	for path, want := range cases {
		got, _, err := repo.CheckIgnored(path)
		if err != nil {
			t.Fatal(err)
		}
		if got != want {
			t.Errorf("CheckIgnored(%q) = %v, want %v", path, got, want)
		}
	}

	removed, err := repo.RemoveIgnorePattern("*.log")
	if err != nil || !removed {
		t.Fatalf("RemoveIgnorePattern = %v, %v", removed, err)
	}
	if removed, _ := repo.RemoveIgnorePattern("*.log"); removed {
		t.Error("second remove reported a match")
	}
	if got := testutil.ReadFile(t, repo.GamDir(), IgnoreFile); got != "!keep.log\n" {
		t.Errorf("ignore file = %q", got)
	}

	if err := repo.InitIgnoreFile(false); !errors.Is(err, os.ErrExist) {
		t.Errorf("InitIgnoreFile over existing file = %v, want ErrExist", err)
	}
	if err := repo.InitIgnoreFile(true); err != nil {
		t.Fatalf("forced InitIgnoreFile failed: %v", err)
	}
	if ignored, _, _ := repo.CheckIgnored("Thumbs.db"); !ignored {
		t.Error("template does not ignore Thumbs.db")
	}

	entries, err := repo.Activity().Entries(0)
	if err != nil {
		t.Fatal(err)
	}
	var kinds []activity.Kind
	for _, e := range entries {
		kinds = append(kinds, e.Action.Kind)
	}
	want := []activity.Kind{activity.Init, activity.IgnoreAdd, activity.IgnoreAdd, activity.IgnoreRemove}
	if !slices.Equal(kinds, want) {
		t.Errorf("activity kinds = %v, want %v", kinds, want)
	}
}
