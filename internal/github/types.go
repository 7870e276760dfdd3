package github

import (
	"errors"
	"time"

	"github.com/socinabox/modwatch/schema"
)

// githubCommit is an entry of GET /repos/{owner}/{repo}/commits.
type githubCommit struct {
	SHA     string           `json:"sha"`
	HTMLURL string           `json:"html_url"`
	Commit  githubCommitMeta `json:"commit"`
}

type githubCommitMeta struct {
	Message   string          `json:"message"`
	Author    *githubIdentity `json:"author"`
	Committer *githubIdentity `json:"committer"`
}

type githubIdentity struct {
	Name  string    `json:"name"`
	Email string    `json:"email"`
	Date  time.Time `json:"date"`
}

// githubCommitDetail is the payload of GET /repos/{owner}/{repo}/commits/{sha}.
type githubCommitDetail struct {
	githubCommit
	Files []githubFile `json:"files"`
}

type githubFile struct {
	Filename         string `json:"filename"`
	Status           string `json:"status"`
	BlobURL          string `json:"blob_url"`
	RawURL           string `json:"raw_url"`
	PreviousFilename string `json:"previous_filename"`
}

// date returns the committer date, falling back to the author date.
func (m githubCommitMeta) date() time.Time {
	if m.Committer != nil && !m.Committer.Date.IsZero() {
		return m.Committer.Date.UTC()
	}
	if m.Author != nil {
		return m.Author.Date.UTC()
	}
	return time.Time{}
}

func (gc githubCommit) toRef() (schema.CommitRef, error) {
	if gc.SHA == "" {
		return schema.CommitRef{}, errors.New("commit without sha")
	}
	date := gc.Commit.date()
	if date.IsZero() {
		return schema.CommitRef{}, errors.New("commit " + gc.SHA + " without date")
	}
	return schema.CommitRef{SHA: gc.SHA, Date: date}, nil
}

func (d githubCommitDetail) toCommit() (*schema.Commit, error) {
	ref, err := d.toRef()
	if err != nil {
		return nil, err
	}
	return &schema.Commit{
		SHA:     ref.SHA,
		Date:    ref.Date,
		HTMLURL: d.HTMLURL,
		Message: d.Commit.Message,
	}, nil
}
