// Package repository ties the stores together into the operations a user
// runs against a tracked save directory: init, save, restore, diff, timeline
// and tag management, status, gc and doctor.
//
// A Repository is built from an explicit directory; there is no process-wide
// "current repository". Operations are synchronous and assume no other
// process touches the same .gam directory while they run.
package repository

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/javanhut/gam/internal/activity"
	"github.com/javanhut/gam/internal/cas"
	"github.com/javanhut/gam/internal/clock"
	"github.com/javanhut/gam/internal/config"
	"github.com/javanhut/gam/internal/ignore"
	"github.com/javanhut/gam/internal/refs"
	"github.com/javanhut/gam/internal/snapshot"
	"github.com/javanhut/gam/internal/tags"
	"github.com/javanhut/gam/internal/workspace"
)

// DirName is the repository directory created inside the tracked directory.
const DirName = ".gam"

// Names of the files and directories under DirName.
const (
	ConfigFile   = "config"
	ActivityFile = "activity.log"
	IgnoreFile   = ".gamignore"
	TagsFile     = "tags.json"
	HeadFile     = "HEAD"
)

var (
	ErrNotInitialized     = errors.New("not a gam repository")
	ErrAlreadyInitialized = errors.New("repository already initialized")
	ErrGamePathNotFound   = errors.New("game path not found")
	ErrSnapshotReferenced = errors.New("snapshot is referenced")
)

// Options configures a Repository. Zero values select the real clock and a
// discard logger.
type Options struct {
	Clock  clock.Clock
	Logger *slog.Logger
}

// Repository is an opened .gam directory and the tracked directory it
// versions.
type Repository struct {
	gamDir  string
	workDir string
	cfg     *config.Config

	content   *cas.ContentStore
	snapshots *snapshot.Store
	refs      *refs.RefsManager
	activity  *activity.Log

	clock clock.Clock
	log   *slog.Logger
}

// Init creates a repository in dir, which must exist. The tracked directory
// recorded in the config is dir itself. An existing repository is an error
// unless force is set, in which case config and HEAD are rewritten and all
// stored objects are kept.
func Init(dir string, force bool, opts Options) (*Repository, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", dir, err)
	}
	if info, err := os.Stat(abs); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrGamePathNotFound, abs)
	}

	gamDir := filepath.Join(abs, DirName)
	if _, err := os.Stat(gamDir); err == nil && !force {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyInitialized, gamDir)
	}

	for _, sub := range []string{
		filepath.Join("refs", "timelines"),
		filepath.Join("objects", "snapshot"),
		filepath.Join("objects", "content"),
	} {
		if err := os.MkdirAll(filepath.Join(gamDir, sub), 0755); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", sub, err)
		}
	}

	cfg := config.DefaultConfig(abs)
	if err := config.Save(filepath.Join(gamDir, ConfigFile), cfg); err != nil {
		return nil, err
	}

	repo, err := Open(abs, opts)
	if err != nil {
		return nil, err
	}

	tl := cfg.Core.DefaultTimeline
	if !repo.refs.Exists(tl) {
		if _, err := repo.refs.Create(tl, "", "default timeline"); err != nil {
			repo.Close()
			return nil, err
		}
	}
	if err := repo.refs.SetCurrent(tl); err != nil {
		repo.Close()
		return nil, err
	}
	if err := repo.activity.Record(activity.Init, tl, abs, ""); err != nil {
		repo.Close()
		return nil, err
	}
	repo.log.Info("repository initialized", "path", abs, "timeline", tl)
	return repo, nil
}

// Open opens the repository whose .gam directory lives in dir.
func Open(dir string, opts Options) (*Repository, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", dir, err)
	}
	gamDir := filepath.Join(abs, DirName)
	if info, err := os.Stat(gamDir); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: no %s in %s", ErrNotInitialized, DirName, abs)
	}

	cfg, err := config.Load(filepath.Join(gamDir, ConfigFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: missing %s", ErrNotInitialized, ConfigFile)
		}
		return nil, err
	}

	workDir := cfg.Core.GamePath
	if workDir == "" {
		workDir = abs
	}
	if info, err := os.Stat(workDir); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrGamePathNotFound, workDir)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	clk := clock.OrReal(opts.Clock)

	content, err := cas.NewContentStore(filepath.Join(gamDir, "objects", "content"), cas.Options{
		Compress: cfg.Compress(),
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}
	snapshots, err := snapshot.NewStore(filepath.Join(gamDir, "objects", "snapshot"), snapshot.Options{Clock: clk, Logger: logger})
	if err != nil {
		content.Close()
		return nil, err
	}
	rm, err := refs.NewRefsManager(gamDir, refs.Options{Clock: clk, Logger: logger})
	if err != nil {
		content.Close()
		return nil, err
	}

	return &Repository{
		gamDir:    gamDir,
		workDir:   workDir,
		cfg:       cfg,
		content:   content,
		snapshots: snapshots,
		refs:      rm,
		activity:  activity.New(filepath.Join(gamDir, ActivityFile), activity.Options{Clock: clk, Logger: logger}),
		clock:     clk,
		log:       logger,
	}, nil
}

// Close releases the content index.
func (r *Repository) Close() error {
	return r.content.Close()
}

// GamDir returns the absolute path of the .gam directory.
func (r *Repository) GamDir() string { return r.gamDir }

// WorkDir returns the tracked directory.
func (r *Repository) WorkDir() string { return r.workDir }

// Config returns the loaded configuration.
func (r *Repository) Config() *config.Config { return r.cfg }

// Content exposes the blob store.
func (r *Repository) Content() *cas.ContentStore { return r.content }

// Snapshots exposes the snapshot store.
func (r *Repository) Snapshots() *snapshot.Store { return r.snapshots }

// Refs exposes the timeline manager.
func (r *Repository) Refs() *refs.RefsManager { return r.refs }

// Activity exposes the activity log.
func (r *Repository) Activity() *activity.Log { return r.activity }

// SetConfig updates one key and writes the config file. The storage
// strategy takes effect the next time the repository is opened.
func (r *Repository) SetConfig(key, value string) error {
	next := *r.cfg
	if err := next.SetValue(key, value); err != nil {
		return err
	}
	if err := config.Save(filepath.Join(r.gamDir, ConfigFile), &next); err != nil {
		return err
	}
	*r.cfg = next
	r.log.Debug("config updated", "key", key, "value", value)
	return nil
}

// IgnoreFilePath is the location of the ignore file inside .gam.
func (r *Repository) IgnoreFilePath() string {
	return filepath.Join(r.gamDir, IgnoreFile)
}

func (r *Repository) tagsPath() string {
	return filepath.Join(r.gamDir, "refs", TagsFile)
}

func (r *Repository) tags() (*tags.Store, error) {
	return tags.Open(r.tagsPath())
}

// IgnoreEngine returns the rules used when scanning. With use_gamignore off
// nothing is ignored; with no ignore file the built-in defaults apply.
func (r *Repository) IgnoreEngine() (*ignore.Engine, error) {
	if !r.cfg.Core.UseGamignore {
		return ignore.New(nil), nil
	}
	engine, err := ignore.Load(r.IgnoreFilePath())
	if err != nil {
		if os.IsNotExist(err) {
			return ignore.Default(), nil
		}
		return nil, fmt.Errorf("load ignore rules: %w", err)
	}
	return engine, nil
}

func (r *Repository) scan() ([]workspace.ScannedFile, error) {
	engine, err := r.IgnoreEngine()
	if err != nil {
		return nil, err
	}
	return workspace.Scan(r.workDir, engine)
}
