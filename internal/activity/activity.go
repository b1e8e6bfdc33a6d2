// Package activity appends one line per mutating operation to
// .gam/activity.log and reads them back.
//
// Each line is "<rfc3339>|<action>|<timeline>|<target>|<source>".
package activity

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/javanhut/gam/internal/clock"
)

// Kind enumerates the known actions. Unrecognized carries text written by a
// newer or older format.
type Kind int

const (
	Unrecognized Kind = iota
	Init
	SnapshotSave
	SnapshotDelete
	Restore
	TimelineCreate
	TimelineDelete
	TimelineSwitch
	TimelineRename
	IgnoreAdd
	IgnoreRemove
	GC
	TagAdd
	TagRemove
)

var kindNames = map[Kind]string{
	Init:           "init",
	SnapshotSave:   "snapshot_save",
	SnapshotDelete: "snapshot_delete",
	Restore:        "restore",
	TimelineCreate: "timeline_create",
	TimelineDelete: "timeline_delete",
	TimelineSwitch: "timeline_switch",
	TimelineRename: "timeline_rename",
	IgnoreAdd:      "ignore_add",
	IgnoreRemove:   "ignore_remove",
	GC:             "gc",
	TagAdd:         "tag_add",
	TagRemove:      "tag_remove",
}

// Action is a parsed action field.
type Action struct {
	Kind Kind
	// Raw holds the original text when Kind is Unrecognized.
	Raw string
}

// Of returns the action for a known kind.
func Of(k Kind) Action { return Action{Kind: k} }

// ParseAction maps a log field to an Action. Underscore, space and hyphen
// separated spellings are all accepted.
func ParseAction(s string) Action {
	norm := strings.NewReplacer(" ", "_", "-", "_").Replace(strings.ToLower(strings.TrimSpace(s)))
	for k, name := range kindNames {
		if name == norm {
			return Action{Kind: k}
		}
	}
	return Action{Kind: Unrecognized, Raw: s}
}

// String returns the form written to the log.
func (a Action) String() string {
	if a.Kind == Unrecognized {
		return a.Raw
	}
	return kindNames[a.Kind]
}

// Label is a human readable form ("snapshot save").
func (a Action) Label() string {
	return strings.ReplaceAll(a.String(), "_", " ")
}

// Entry is one log line.
type Entry struct {
	Timestamp time.Time
	Action    Action
	Timeline  string
	Target    string
	Source    string
}

// ParseLine decodes a log line. ok is false for lines without a valid
// timestamp and action.
func ParseLine(line string) (e Entry, ok bool) {
	parts := strings.Split(strings.TrimRight(line, "\r\n"), "|")
	if len(parts) < 3 {
		return Entry{}, false
	}
	ts, err := time.Parse(time.RFC3339, parts[0])
	if err != nil {
		return Entry{}, false
	}
	e = Entry{Timestamp: ts, Action: ParseAction(parts[1]), Timeline: parts[2]}
	if len(parts) > 3 {
		e.Target = parts[3]
	}
	if len(parts) > 4 {
		e.Source = parts[4]
	}
	return e, true
}

// Format encodes e as a log line without the trailing newline.
func (e Entry) Format() string {
	return strings.Join([]string{
		e.Timestamp.Format(time.RFC3339),
		clean(e.Action.String()),
		clean(e.Timeline),
		clean(e.Target),
		clean(e.Source),
	}, "|")
}

// clean keeps a field from breaking the line format.
func clean(s string) string {
	return strings.NewReplacer("|", "_", "\n", " ", "\r", " ").Replace(s)
}

// Options configures a Log.
type Options struct {
	Clock  clock.Clock
	Logger *slog.Logger
}

// Log is the append-only activity file.
type Log struct {
	path  string
	clock clock.Clock
	log   *slog.Logger
}

// New returns the activity log stored at path.
func New(path string, opts Options) *Log {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Log{path: path, clock: clock.OrReal(opts.Clock), log: logger}
}

// Record appends an entry stamped with the current time.
func (l *Log) Record(kind Kind, timeline, target, source string) error {
	return l.Append(Entry{
		Timestamp: l.clock.Now(),
		Action:    Of(kind),
		Timeline:  timeline,
		Target:    target,
		Source:    source,
	})
}

// Append writes e to the end of the log.
func (l *Log) Append(e Entry) error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return fmt.Errorf("create activity log directory: %w", err)
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("open activity log: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(e.Format() + "\n"); err != nil {
		return fmt.Errorf("append activity log: %w", err)
	}
	l.log.Debug("activity recorded", "action", e.Action.String(), "target", e.Target)
	return nil
}

// All returns every parseable entry, oldest first.
func (l *Log) All() ([]Entry, error) {
	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open activity log: %w", err)
	}
	defer f.Close()

	var entries []Entry
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if e, ok := ParseLine(sc.Text()); ok {
			entries = append(entries, e)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read activity log: %w", err)
	}
	return entries, nil
}

// Entries returns the last limit entries, oldest first. A limit of zero or
// less returns everything.
func (l *Log) Entries(limit int) ([]Entry, error) {
	all, err := l.All()
	if err != nil {
		return nil, err
	}
	return tail(all, limit), nil
}

// ByTimeline returns the last limit entries recorded against timeline.
func (l *Log) ByTimeline(timeline string, limit int) ([]Entry, error) {
	all, err := l.All()
	if err != nil {
		return nil, err
	}
	var filtered []Entry
	for _, e := range all {
		if e.Timeline == timeline {
			filtered = append(filtered, e)
		}
	}
	return tail(filtered, limit), nil
}

func tail(entries []Entry, limit int) []Entry {
	if limit > 0 && len(entries) > limit {
		return entries[len(entries)-limit:]
	}
	return entries
}
