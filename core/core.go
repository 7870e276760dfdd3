// Package core has the core logic for detecting, reporting and filing module changes.
package core

import (
	"context"
	"net/http"
	"time"

	"github.com/socinabox/modwatch/internal/contract"
	"github.com/socinabox/modwatch/internal/github"
	"github.com/socinabox/modwatch/internal/jira"
	"github.com/socinabox/modwatch/internal/outwriter"
	"github.com/socinabox/modwatch/schema"
)

// ExecutorFunc defines the function signature for executing the different commands.
type ExecutorFunc func(ctx context.Context, cfg *contract.Config, mgr contract.CacheManager) error

// scanner bundles the clients used by a scan so they can be replaced in tests.
type scanner struct {
	source  contract.SourceClient
	tracker contract.IssueTracker // nil unless filing is enabled
	mgr     contract.CacheManager
	now     func() time.Time
}

// newScanner wires the GitHub client (behind the commit cache) and, if enabled, the Jira client.
func newScanner(cfg *contract.Config, mgr contract.CacheManager) *scanner {
	httpClient := &http.Client{Timeout: cfg.Timeout}
	var commitStore contract.CacheStore
	if mgr != nil {
		commitStore = mgr.GetCommitStore()
	}
	s := &scanner{
		source: newCachedSourceClient(github.NewClient(cfg.APIURL, cfg.GitHubToken, httpClient), commitStore),
		mgr:    mgr,
		now:    time.Now,
	}
	if cfg.FileIssues {
		s.tracker = jira.NewClient(cfg.Jira, httpClient)
	}
	return s
}

// ExecuteScan runs a single scan, prints the report and files issues when enabled.
// It serves as the main entry point for the 'scan' command.
func ExecuteScan(ctx context.Context, cfg *contract.Config, mgr contract.CacheManager) error {
	return newScanner(cfg, mgr).execute(ctx, cfg)
}

// GetScanResults runs a single scan and returns the report without printing it.
func GetScanResults(ctx context.Context, cfg *contract.Config, mgr contract.CacheManager) (*schema.Report, time.Duration, error) {
	start := time.Now()
	report, err := newScanner(cfg, mgr).scan(ctx, cfg)
	return report, time.Since(start), err
}

// execute is one full scan cycle: fetch, render, then file.
func (s *scanner) execute(ctx context.Context, cfg *contract.Config) error {
	start := time.Now()
	report, err := s.scan(ctx, cfg)
	if err != nil {
		return err
	}
	if err := outwriter.PrintReport(report, cfg, time.Since(start)); err != nil {
		return err
	}
	_, err = s.file(ctx, cfg, report)
	return err
}

// scan runs the monitor and records the run in the history store when one is configured.
func (s *scanner) scan(ctx context.Context, cfg *contract.Config) (*schema.Report, error) {
	monitor := NewMonitor(NewMonitorConfig(cfg), s.source)
	monitor.Now = s.now
	window := schema.NewPollWindow(s.now(), cfg.Window)

	history := s.historyStore()
	var runID int64
	if history != nil {
		var err error
		runID, err = history.BeginRun(cfg.Repo, window, s.now())
		if err != nil {
			contract.LogWarn("Run tracking initialization failed", err)
		}
	}

	report, err := monitor.RunWindow(ctx, window)

	if history != nil && runID > 0 {
		status, total, errKind := schema.RunSucceeded, 0, ""
		if err != nil {
			status, errKind = schema.RunFailed, string(contract.ErrorKindOf(err))
		} else {
			total = len(report.Records)
			if recErr := history.RecordChanges(runID, report.Records); recErr != nil {
				contract.LogWarn("Failed to record changes", recErr)
			}
		}
		if endErr := history.EndRun(runID, s.now(), total, status, errKind); endErr != nil {
			contract.LogWarn("Failed to finalize run tracking", endErr)
		}
	}
	return report, err
}

// file forwards the report to the tracker when filing is enabled.
func (s *scanner) file(ctx context.Context, cfg *contract.Config, report *schema.Report) ([]schema.FilingResult, error) {
	if !cfg.FileIssues || s.tracker == nil {
		return nil, nil
	}
	filer := NewFiler(s.tracker, s.historyStore(), cfg.Jira, cfg.FileKinds)
	filer.now = s.now
	results, err := filer.File(ctx, report.Records)

	created := 0
	for _, res := range results {
		if res.Created {
			created++
		}
	}
	contract.Logger().Info().
		Int("created", created).
		Int("existing", len(results)-created).
		Msg("issue filing finished")
	return results, err
}

func (s *scanner) historyStore() contract.HistoryStore {
	if s.mgr == nil {
		return nil
	}
	return s.mgr.GetHistoryStore()
}
