// Package schema has the models and constants shared by all parts of modwatch.
package schema

import (
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// fingerprintNamespace scopes the UUIDv5 fingerprints generated for change records.
var fingerprintNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/socinabox/modwatch"))

// TrackedDirectory is a path prefix inside the monitored repository.
type TrackedDirectory struct {
	Category string `json:"category"` // Display name, e.g. "exploits"
	Prefix   string `json:"prefix"`   // Repository-relative prefix without trailing slash
}

// NewTrackedDirectory normalizes a prefix and derives its category from the last path segment.
func NewTrackedDirectory(prefix string) TrackedDirectory {
	clean := strings.Trim(path.Clean("/"+strings.TrimSpace(prefix)), "/")
	return TrackedDirectory{
		Category: path.Base(clean),
		Prefix:   clean,
	}
}

// Matches reports whether the file path lies under this directory.
// Matching is segment-aware, so "modules/post" does not match "modules/postgres/x.rb".
func (d TrackedDirectory) Matches(filePath string) bool {
	if d.Prefix == "" {
		return false
	}
	return strings.HasPrefix(filePath, d.Prefix+"/")
}

// DefaultTrackedDirectories returns the tracked directories for DefaultTrackedPrefixes.
func DefaultTrackedDirectories() []TrackedDirectory {
	dirs := make([]TrackedDirectory, 0, len(DefaultTrackedPrefixes))
	for _, p := range DefaultTrackedPrefixes {
		dirs = append(dirs, NewTrackedDirectory(p))
	}
	return dirs
}

// PollWindow is the time range used to filter commit history. Both edges are inclusive.
type PollWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// NewPollWindow returns the trailing window of the given length ending at now.
func NewPollWindow(now time.Time, length time.Duration) PollWindow {
	now = now.UTC()
	return PollWindow{Start: now.Add(-length), End: now}
}

// Contains reports whether t falls inside the window, edges included.
func (w PollWindow) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// Duration returns the window length.
func (w PollWindow) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

// ChangeRecord is one detected file-level change inside the poll window.
type ChangeRecord struct {
	Name         string     `json:"name"`     // Module file name
	Category     string     `json:"category"` // Tracked directory category
	Path         string     `json:"path"`     // Full repository path
	Kind         ChangeKind `json:"kind"`
	LastModified time.Time  `json:"last_modified"`
	CommitSHA    string     `json:"commit_sha"`
	ContentURL   string     `json:"content_url,omitempty"` // Empty for removed records
	Fingerprint  string     `json:"fingerprint"`
}

// Report is the ordered result of one monitor run.
type Report struct {
	Repo        string             `json:"repo"`
	Window      PollWindow         `json:"window"`
	Tracked     []TrackedDirectory `json:"tracked"`
	Records     []ChangeRecord     `json:"records"`
	GeneratedAt time.Time          `json:"generated_at"`
}

// CountByKind tallies the report records per change kind.
func (r *Report) CountByKind() map[ChangeKind]int {
	counts := make(map[ChangeKind]int, len(AllChangeKinds))
	for _, rec := range r.Records {
		counts[rec.Kind]++
	}
	return counts
}

// GroupByCategory returns the records of each tracked directory, in tracked order.
// Directories without records are omitted.
func (r *Report) GroupByCategory() []CategoryGroup {
	var groups []CategoryGroup
	for _, d := range r.Tracked {
		var recs []ChangeRecord
		for _, rec := range r.Records {
			if rec.Category == d.Category && d.Matches(rec.Path) {
				recs = append(recs, rec)
			}
		}
		if len(recs) > 0 {
			groups = append(groups, CategoryGroup{Directory: d, Records: recs})
		}
	}
	return groups
}

// CategoryGroup holds the records of one tracked directory.
type CategoryGroup struct {
	Directory TrackedDirectory `json:"directory"`
	Records   []ChangeRecord   `json:"records"`
}

// Fingerprint returns the stable identity of a change, used to file each change at most once.
func Fingerprint(repo, filePath, sha string) string {
	return uuid.NewSHA1(fingerprintNamespace, []byte(repo+"|"+filePath+"|"+sha)).String()
}
