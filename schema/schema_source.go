package schema

import "time"

// CommitRef is one entry of a commit history listing.
type CommitRef struct {
	SHA  string    `json:"sha"`
	Date time.Time `json:"date"`
}

// CommitFile is one file touched by a commit, as reported by the hosting API.
type CommitFile struct {
	Filename         string `json:"filename"`
	Status           string `json:"status"` // added, removed, modified, renamed, copied, changed, unchanged
	BlobURL          string `json:"blob_url,omitempty"`
	RawURL           string `json:"raw_url,omitempty"`
	PreviousFilename string `json:"previous_filename,omitempty"`
}

// Commit is the detail of a single commit including its file list.
type Commit struct {
	SHA     string       `json:"sha"`
	Date    time.Time    `json:"date"`
	HTMLURL string       `json:"html_url"`
	Message string       `json:"message,omitempty"`
	Files   []CommitFile `json:"files"`
}

// IssueRequest holds the fields of an issue to be created in the tracker.
type IssueRequest struct {
	Project     string   `json:"project"`
	Summary     string   `json:"summary"`
	Description string   `json:"description"`
	IssueType   string   `json:"issue_type"`
	Priority    string   `json:"priority,omitempty"`
	Labels      []string `json:"labels,omitempty"`
}

// FilingResult describes what happened to one record during issue filing.
type FilingResult struct {
	Record   ChangeRecord `json:"record"`
	IssueKey string       `json:"issue_key,omitempty"`
	Created  bool         `json:"created"` // False when an existing issue was found
}
