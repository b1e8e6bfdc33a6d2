package repository

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/javanhut/gam/internal/activity"
	"github.com/javanhut/gam/internal/config"
	"github.com/javanhut/gam/internal/gc"
	"github.com/javanhut/gam/internal/ignore"
	"github.com/javanhut/gam/internal/refs"
)

// GC runs the garbage collector. Non dry runs are recorded in the activity
// log with the number of bytes reported.
func (r *Repository) GC(opts gc.Options) (*gc.Report, error) {
	report, err := gc.New(r.content, r.snapshots, r.refs, r.log).Run(opts)
	if err != nil {
		return report, err
	}
	if !opts.DryRun {
		mode := "normal"
		if opts.Aggressive {
			mode = "aggressive"
		}
		current, err := r.refs.Current()
		if err != nil {
			return report, err
		}
		if err := r.activity.Record(activity.GC, current, fmt.Sprintf("%d bytes", report.TotalBytes()), mode); err != nil {
			return report, err
		}
	}
	return report, nil
}

// InitIgnoreFile writes the commented starter ignore file.
func (r *Repository) InitIgnoreFile(force bool) error {
	return ignore.WriteTemplate(r.IgnoreFilePath(), force)
}

// AddIgnorePattern appends a pattern line to the ignore file, creating the
// file if needed. Once the file exists the built-in defaults no longer
// apply unless the file repeats them.
func (r *Repository) AddIgnorePattern(pattern string) error {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" || strings.HasPrefix(pattern, "#") {
		return fmt.Errorf("invalid ignore pattern %q", pattern)
	}

	data, err := os.ReadFile(r.IgnoreFilePath())
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("read ignore file: %w", err)
	}
	content := string(data)
	if content != "" && !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	content += pattern + "\n"
	if err := os.WriteFile(r.IgnoreFilePath(), []byte(content), 0644); err != nil {
		return fmt.Errorf("write ignore file: %w", err)
	}
	return r.activity.Record(activity.IgnoreAdd, "", pattern, "")
}

// RemoveIgnorePattern drops every line whose trimmed text equals pattern
// and reports whether any was found. Other lines, comments included, are
// kept as they are.
func (r *Repository) RemoveIgnorePattern(pattern string) (bool, error) {
	pattern = strings.TrimSpace(pattern)
	data, err := os.ReadFile(r.IgnoreFilePath())
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("read ignore file: %w", err)
	}

	lines := strings.SplitAfter(string(data), "\n")
	kept := lines[:0]
	removed := false
	for _, line := range lines {
		if line != "" && strings.TrimSpace(line) == pattern {
			removed = true
			continue
		}
		kept = append(kept, line)
	}
	if !removed {
		return false, nil
	}
	if err := os.WriteFile(r.IgnoreFilePath(), []byte(strings.Join(kept, "")), 0644); err != nil {
		return false, fmt.Errorf("write ignore file: %w", err)
	}
	return true, r.activity.Record(activity.IgnoreRemove, "", pattern, "")
}

// CheckIgnored reports whether path, relative to the tracked directory,
// would be skipped by save, along with every pattern that matched it.
func (r *Repository) CheckIgnored(path string) (bool, []ignore.Pattern, error) {
	engine, err := r.IgnoreEngine()
	if err != nil {
		return false, nil, err
	}
	rel := filepath.ToSlash(path)
	ignored, matched := engine.Explain(rel)
	return ignored, matched, nil
}

// Check is one doctor finding.
type Check struct {
	Name string
	OK   bool
	// Problem describes what is wrong when OK is false.
	Problem string
	// Fixed is set when doctor repaired the problem.
	Fixed bool
}

// Doctor inspects the repository layout under dir without opening it, so
// it works on repositories Open rejects. With fix set it recreates missing
// directories, HEAD and the default timeline. Problems it cannot repair are
// reported and left alone.
func Doctor(dir string, fix bool) ([]Check, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", dir, err)
	}
	gamDir := filepath.Join(abs, DirName)
	d := &doctor{fix: fix}

	if !isDir(gamDir) {
		d.fail(DirName, "repository not initialized; run gam init", nil)
		return d.checks, nil
	}
	d.ok(DirName)

	defaultTimeline := "main"
	cfg, err := config.Load(filepath.Join(gamDir, ConfigFile))
	switch {
	case errors.Is(err, os.ErrNotExist):
		d.fail("config", "config file missing; re-run gam init --force", nil)
	case err != nil:
		d.fail("config", err.Error(), nil)
	default:
		d.ok("config")
		defaultTimeline = cfg.Core.DefaultTimeline
		if cfg.Core.GamePath != "" && !isDir(cfg.Core.GamePath) {
			d.fail("game path", fmt.Sprintf("%s does not exist", cfg.Core.GamePath), nil)
		} else {
			d.ok("game path")
		}
	}

	for _, sub := range []string{
		filepath.Join("objects", "snapshot"),
		filepath.Join("objects", "content"),
		filepath.Join("refs", "timelines"),
	} {
		path := filepath.Join(gamDir, sub)
		if isDir(path) {
			d.ok(filepath.ToSlash(sub))
			continue
		}
		d.fail(filepath.ToSlash(sub), "directory missing", func() error { return os.MkdirAll(path, 0755) })
	}

	if !isDir(filepath.Join(gamDir, "refs", "timelines")) {
		return d.checks, nil
	}
	rm, err := refs.NewRefsManager(gamDir, refs.Options{})
	if err != nil {
		return d.checks, err
	}
	timelines, err := rm.List()
	if err != nil {
		return d.checks, err
	}
	if len(timelines) == 0 {
		d.fail("timelines", "no timeline exists", func() error {
			_, err := rm.Create(defaultTimeline, "", "default timeline")
			return err
		})
	} else {
		d.ok("timelines")
	}

	head, err := rm.ReadHead()
	switch {
	case err != nil:
		d.fail("HEAD", err.Error(), func() error { return rm.SetCurrent(defaultTimeline) })
	case !head.Detached() && !rm.Exists(head.Timeline):
		d.fail("HEAD", fmt.Sprintf("points at missing timeline %q", head.Timeline), func() error {
			if !rm.Exists(defaultTimeline) {
				if _, err := rm.Create(defaultTimeline, "", "default timeline"); err != nil {
					return err
				}
			}
			return rm.SetCurrent(defaultTimeline)
		})
	default:
		d.ok("HEAD")
	}

	snapDir := filepath.Join(gamDir, "objects", "snapshot")
	var dangling []string
	for _, tl := range timelines {
		if tl.Head == "" {
			continue
		}
		if len(tl.Head) < 3 {
			dangling = append(dangling, tl.Name)
			continue
		}
		if _, err := os.Stat(filepath.Join(snapDir, tl.Head[:2], tl.Head[2:])); err != nil {
			dangling = append(dangling, tl.Name)
		}
	}
	if len(dangling) > 0 {
		slices.Sort(dangling)
		d.fail("timeline heads", "missing head snapshot on "+strings.Join(dangling, ", "), nil)
	} else {
		d.ok("timeline heads")
	}

	if _, err := ignore.Load(filepath.Join(gamDir, IgnoreFile)); err != nil && !os.IsNotExist(err) {
		d.fail("ignore file", err.Error(), nil)
	} else {
		d.ok("ignore file")
	}

	return d.checks, nil
}

type doctor struct {
	fix    bool
	checks []Check
}

func (d *doctor) ok(name string) {
	d.checks = append(d.checks, Check{Name: name, OK: true})
}

// fail records a problem and, when fixing, runs repair. A repair error is
// appended to the problem text.
func (d *doctor) fail(name, problem string, repair func() error) {
	c := Check{Name: name, Problem: problem}
	if d.fix && repair != nil {
		if err := repair(); err != nil {
			c.Problem += "; fix failed: " + err.Error()
		} else {
			c.Fixed = true
		}
	}
	d.checks = append(d.checks, c)
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
