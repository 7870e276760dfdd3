package contract

import (
	"context"

	"github.com/socinabox/modwatch/schema"
	"github.com/stretchr/testify/mock"
)

// MockSourceClient is a mock implementation of SourceClient for testing.
type MockSourceClient struct {
	mock.Mock
}

var _ SourceClient = &MockSourceClient{} // Compile-time check

// ListCommits implements the SourceClient interface.
func (m *MockSourceClient) ListCommits(ctx context.Context, repo string, path string, window schema.PollWindow) ([]schema.CommitRef, error) {
	args := m.Called(ctx, repo, path, window)
	refs, _ := args.Get(0).([]schema.CommitRef)
	return refs, args.Error(1)
}

// GetCommit implements the SourceClient interface.
func (m *MockSourceClient) GetCommit(ctx context.Context, repo string, sha string) (*schema.Commit, error) {
	args := m.Called(ctx, repo, sha)
	commit, _ := args.Get(0).(*schema.Commit)
	return commit, args.Error(1)
}

// MockIssueTracker is a mock implementation of IssueTracker for testing.
type MockIssueTracker struct {
	mock.Mock
}

var _ IssueTracker = &MockIssueTracker{} // Compile-time check

// FindIssue implements the IssueTracker interface.
func (m *MockIssueTracker) FindIssue(ctx context.Context, label string) (string, error) {
	args := m.Called(ctx, label)
	return args.String(0), args.Error(1)
}

// CreateIssue implements the IssueTracker interface.
func (m *MockIssueTracker) CreateIssue(ctx context.Context, issue schema.IssueRequest) (string, error) {
	args := m.Called(ctx, issue)
	return args.String(0), args.Error(1)
}
