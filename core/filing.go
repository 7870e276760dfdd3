package core

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/socinabox/modwatch/internal/contract"
	"github.com/socinabox/modwatch/schema"
)

// FingerprintLabelPrefix marks issues with the fingerprint of the change they report.
const FingerprintLabelPrefix = "modwatch-"

// Filer files report records as tracker issues, at most once per fingerprint.
type Filer struct {
	tracker contract.IssueTracker
	ledger  contract.HistoryStore // Optional local record of filed issues
	jira    contract.JiraConfig
	kinds   []schema.ChangeKind
	now     func() time.Time
}

// NewFiler creates a Filer. ledger may be nil, in which case only the tracker is consulted.
func NewFiler(tracker contract.IssueTracker, ledger contract.HistoryStore, jira contract.JiraConfig, kinds []schema.ChangeKind) *Filer {
	return &Filer{tracker: tracker, ledger: ledger, jira: jira, kinds: kinds, now: time.Now}
}

// File files every selected record that has no issue yet. Failures of single records
// do not stop the others; they are joined into the returned error.
func (f *Filer) File(ctx context.Context, records []schema.ChangeRecord) ([]schema.FilingResult, error) {
	var results []schema.FilingResult
	var errs []error
	for _, rec := range records {
		if !slices.Contains(f.kinds, rec.Kind) {
			continue
		}
		res, err := f.fileOne(ctx, rec)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		results = append(results, res)
	}
	return results, errors.Join(errs...)
}

func (f *Filer) fileOne(ctx context.Context, rec schema.ChangeRecord) (schema.FilingResult, error) {
	log := contract.Logger()
	res := schema.FilingResult{Record: rec}

	if f.ledger != nil {
		filed, err := f.ledger.LookupFiled(rec.Fingerprint)
		if err != nil {
			contract.LogWarn("Filed-issue ledger lookup failed", err)
		} else if filed != nil {
			res.IssueKey = filed.IssueKey
			return res, nil
		}
	}

	label := FingerprintLabelPrefix + rec.Fingerprint
	key, err := f.tracker.FindIssue(ctx, label)
	if err != nil {
		return res, err
	}
	if key == "" {
		key, err = f.tracker.CreateIssue(ctx, f.BuildIssue(rec))
		if err != nil {
			return res, err
		}
		res.Created = true
		log.Info().Str("issue", key).Str("path", rec.Path).Msg("filed issue")
	}
	res.IssueKey = key

	if f.ledger != nil {
		err := f.ledger.RecordFiled(schema.FiledIssue{
			Fingerprint: rec.Fingerprint,
			IssueKey:    key,
			Path:        rec.Path,
			CommitSHA:   rec.CommitSHA,
			FiledAt:     f.now().UTC(),
		})
		if err != nil {
			contract.LogWarn("Failed to record filed issue "+key, err)
		}
	}
	return res, nil
}

// BuildIssue renders the tracker issue for a record.
func (f *Filer) BuildIssue(rec schema.ChangeRecord) schema.IssueRequest {
	var b strings.Builder
	fmt.Fprintf(&b, "Type: %s\n", rec.Category)
	fmt.Fprintf(&b, "Path: %s\n", rec.Path)
	if rec.ContentURL != "" {
		fmt.Fprintf(&b, "URL: %s\n", rec.ContentURL)
	}
	fmt.Fprintf(&b, "Change: %s\n", rec.Kind)
	fmt.Fprintf(&b, "Last modified: %s\n", rec.LastModified.UTC().Format(contract.DateTimeFormat))
	fmt.Fprintf(&b, "Commit: %s\n", rec.CommitSHA)

	labels := slices.Clone(f.jira.Labels)
	for _, l := range []string{rec.Category, FingerprintLabelPrefix + rec.Fingerprint} {
		if !slices.Contains(labels, l) {
			labels = append(labels, l)
		}
	}

	return schema.IssueRequest{
		Project:     f.jira.Project,
		Summary:     issueSummary(rec),
		Description: b.String(),
		IssueType:   f.jira.IssueType,
		Priority:    f.jira.Priority,
		Labels:      labels,
	}
}

func issueSummary(rec schema.ChangeRecord) string {
	switch rec.Kind {
	case schema.AddedChange:
		return "New Metasploit Module: " + rec.Name
	case schema.RemovedChange:
		return "Removed Metasploit Module: " + rec.Name
	default:
		return "Updated Metasploit Module: " + rec.Name
	}
}
