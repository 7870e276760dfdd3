package core

import (
	"context"
	"errors"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/socinabox/modwatch/internal/contract"
	"github.com/socinabox/modwatch/schema"
)

// MonitorConfig is everything a run needs besides the source client.
type MonitorConfig struct {
	Repo       string
	Token      string
	Tracked    []schema.TrackedDirectory
	Window     time.Duration
	Extensions []string // Empty accepts every file
}

// NewMonitorConfig extracts the monitor settings from the validated config.
func NewMonitorConfig(cfg *contract.Config) MonitorConfig {
	return MonitorConfig{
		Repo:       cfg.Repo,
		Token:      cfg.GitHubToken,
		Tracked:    cfg.Tracked,
		Window:     cfg.Window,
		Extensions: cfg.Extensions,
	}
}

// Monitor detects module changes in the tracked directories of a repository.
type Monitor struct {
	cfg    MonitorConfig
	client contract.SourceClient

	// Now returns the current time; replaceable for deterministic runs.
	Now func() time.Time
}

// NewMonitor creates a Monitor reading history through client.
func NewMonitor(cfg MonitorConfig, client contract.SourceClient) *Monitor {
	return &Monitor{cfg: cfg, client: client, Now: time.Now}
}

// Run polls the trailing window ending now and returns the ordered report.
// Any client failure aborts the run and no partial report is returned.
func (m *Monitor) Run(ctx context.Context) (*schema.Report, error) {
	return m.RunWindow(ctx, schema.NewPollWindow(m.Now(), m.cfg.Window))
}

// RunWindow polls an explicit window.
func (m *Monitor) RunWindow(ctx context.Context, window schema.PollWindow) (*schema.Report, error) {
	if m.cfg.Token == "" {
		return nil, contract.NewAuthenticationError("scan "+m.cfg.Repo, errors.New("no GitHub token configured"))
	}
	log := contract.Logger()

	commits, err := m.fetch(ctx, window)
	if err != nil {
		return nil, err
	}

	latest := m.classify(commits, window)
	records := m.buildRecords(latest)

	log.Debug().
		Str("repo", m.cfg.Repo).
		Int("commits", len(commits)).
		Int("records", len(records)).
		Msg("scan complete")

	return &schema.Report{
		Repo:        m.cfg.Repo,
		Window:      window,
		Tracked:     m.cfg.Tracked,
		Records:     records,
		GeneratedAt: window.End,
	}, nil
}

// fetch lists the commits of every tracked directory and loads each distinct commit once.
func (m *Monitor) fetch(ctx context.Context, window schema.PollWindow) ([]*schema.Commit, error) {
	log := contract.Logger()
	var shas []string
	seen := make(map[string]struct{})

	for _, dir := range m.cfg.Tracked {
		refs, err := m.client.ListCommits(ctx, m.cfg.Repo, dir.Prefix, window)
		if err != nil {
			return nil, err
		}
		log.Debug().Str("dir", dir.Prefix).Int("commits", len(refs)).Msg("listed commits")
		for _, ref := range refs {
			if _, ok := seen[ref.SHA]; ok {
				continue
			}
			seen[ref.SHA] = struct{}{}
			shas = append(shas, ref.SHA)
		}
	}

	commits := make([]*schema.Commit, 0, len(shas))
	for _, sha := range shas {
		if err := ctx.Err(); err != nil {
			return nil, contract.NewNetworkError("scan "+m.cfg.Repo, err)
		}
		commit, err := m.client.GetCommit(ctx, m.cfg.Repo, sha)
		if err != nil {
			return nil, err
		}
		if commit == nil {
			return nil, contract.NewMalformedResponseError("get commit "+sha, errors.New("empty commit"))
		}
		commits = append(commits, commit)
	}
	return commits, nil
}

// fileRevision is the latest observed change of one path.
type fileRevision struct {
	dirIndex int
	file     schema.CommitFile
	commit   *schema.Commit
}

// classify keeps, per tracked path, the change from the most recent commit inside the window.
// A rename also removes its previous path, so modules moved out of a tracked directory are reported.
func (m *Monitor) classify(commits []*schema.Commit, window schema.PollWindow) map[string]fileRevision {
	latest := make(map[string]fileRevision)
	for _, commit := range commits {
		if !window.Contains(commit.Date) {
			continue
		}
		for _, f := range commit.Files {
			m.keepLatest(latest, commit, f)
			if f.Status == "renamed" && f.PreviousFilename != "" && f.PreviousFilename != f.Filename {
				m.keepLatest(latest, commit, schema.CommitFile{Filename: f.PreviousFilename, Status: "removed"})
			}
		}
	}
	return latest
}

func (m *Monitor) keepLatest(latest map[string]fileRevision, commit *schema.Commit, f schema.CommitFile) {
	idx := m.trackedIndex(f.Filename)
	if idx < 0 || !contract.HasAcceptedExtension(f.Filename, m.cfg.Extensions) {
		return
	}
	if prev, ok := latest[f.Filename]; ok && !newerThan(commit, prev.commit) {
		return
	}
	latest[f.Filename] = fileRevision{dirIndex: idx, file: f, commit: commit}
}

// trackedIndex returns the position of the tracked directory containing p, or -1.
func (m *Monitor) trackedIndex(p string) int {
	for i, dir := range m.cfg.Tracked {
		if dir.Matches(p) {
			return i
		}
	}
	return -1
}

// newerThan orders commits by date, breaking ties on the SHA so reruns agree.
func newerThan(a, b *schema.Commit) bool {
	if !a.Date.Equal(b.Date) {
		return a.Date.After(b.Date)
	}
	return a.SHA > b.SHA
}

// buildRecords turns the latest revisions into records ordered by tracked directory then path.
func (m *Monitor) buildRecords(latest map[string]fileRevision) []schema.ChangeRecord {
	revs := make([]fileRevision, 0, len(latest))
	for _, rev := range latest {
		revs = append(revs, rev)
	}
	sort.Slice(revs, func(i, j int) bool {
		if revs[i].dirIndex != revs[j].dirIndex {
			return revs[i].dirIndex < revs[j].dirIndex
		}
		return revs[i].file.Filename < revs[j].file.Filename
	})

	records := make([]schema.ChangeRecord, 0, len(revs))
	for _, rev := range revs {
		kind := ClassifyStatus(rev.file.Status)
		rec := schema.ChangeRecord{
			Name:         path.Base(rev.file.Filename),
			Category:     m.cfg.Tracked[rev.dirIndex].Category,
			Path:         rev.file.Filename,
			Kind:         kind,
			LastModified: rev.commit.Date,
			CommitSHA:    rev.commit.SHA,
			Fingerprint:  schema.Fingerprint(m.cfg.Repo, rev.file.Filename, rev.commit.SHA),
		}
		if kind != schema.RemovedChange {
			rec.ContentURL = contentURL(m.cfg.Repo, rev.commit, rev.file)
		}
		records = append(records, rec)
	}
	return records
}

// ClassifyStatus maps a file status reported by the hosting API to a change kind.
func ClassifyStatus(status string) schema.ChangeKind {
	switch status {
	case "added", "copied":
		return schema.AddedChange
	case "removed":
		return schema.RemovedChange
	default:
		return schema.ModifiedChange
	}
}

// contentURL prefers the blob URL from the API and otherwise builds one from the commit.
func contentURL(repo string, commit *schema.Commit, f schema.CommitFile) string {
	if f.BlobURL != "" {
		return f.BlobURL
	}
	base, ok := strings.CutSuffix(commit.HTMLURL, "/commit/"+commit.SHA)
	if !ok || base == "" {
		base = "https://github.com/" + repo
	}
	return base + "/blob/" + commit.SHA + "/" + f.Filename
}
