package github

import (
	"context"
	"fmt"

	"github.com/chainguard-dev/clog"
	gh "github.com/google/go-github/v66/github"
)

// StatusContext is the check name shown on the commit.
const StatusContext = "asana-link-presence"

// State is a commit status state.
type State string

const (
	StateSuccess State = "success"
	StateFailure State = "failure"
)

// CommitStatus is a status to attach to a commit.
type CommitStatus struct {
	Owner       string
	Repo        string
	SHA         string
	State       State
	Description string
}

// StatusReporter posts commit statuses through the GitHub REST API.
type StatusReporter struct {
	client *gh.Client
}

// NewStatusReporter wraps an authenticated go-github client.
func NewStatusReporter(client *gh.Client) *StatusReporter {
	return &StatusReporter{client: client}
}

// Report creates the status once. Failures are returned, not retried.
func (r *StatusReporter) Report(ctx context.Context, status CommitStatus) error {
	if status.Owner == "" || status.Repo == "" {
		return fmt.Errorf("repository owner and name are required")
	}
	if status.SHA == "" {
		return fmt.Errorf("commit sha is required")
	}

	clog.FromContext(ctx).Infof("[Status] setting %s for %s", status.State, status.SHA)

	_, _, err := r.client.Repositories.CreateStatus(ctx, status.Owner, status.Repo, status.SHA, &gh.RepoStatus{
		State:       gh.String(string(status.State)),
		Description: gh.String(status.Description),
		Context:     gh.String(StatusContext),
	})
	if err != nil {
		return fmt.Errorf("failed to create commit status: %w", err)
	}
	return nil
}
