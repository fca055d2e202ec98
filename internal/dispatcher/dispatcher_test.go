package dispatcher_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/cexll/asana-action/internal/asana"
	asanatest "github.com/cexll/asana-action/internal/asana/testing"
	"github.com/cexll/asana-action/internal/config"
	"github.com/cexll/asana-action/internal/dispatcher"
	"github.com/cexll/asana-action/internal/github"
	ghtest "github.com/cexll/asana-action/internal/github/testing"
	"github.com/cexll/asana-action/internal/modes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	srv       *asanatest.Server
	projectID string
	taskID    string
	body      string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	srv := asanatest.NewServer()
	t.Cleanup(srv.Close)

	projectID := srv.AddProject("Engineering", "New", "In Review", "Done")
	taskID := srv.AddTask("Ship the thing", projectID)
	return &fixture{
		srv:       srv,
		projectID: projectID,
		taskID:    taskID,
		body:      fmt.Sprintf("Fixes https://app.asana.com/0/%s/%s/f please review", projectID, taskID),
	}
}

type fakeReporter struct {
	got []github.CommitStatus
	err error
}

func (f *fakeReporter) Report(_ context.Context, s github.CommitStatus) error {
	f.got = append(f.got, s)
	return f.err
}

func TestPerform_AddCommentIsIdempotent(t *testing.T) {
	fx := newFixture(t)
	d := dispatcher.New(fx.srv.Client())
	ctx := context.Background()
	action := modes.AddComment{CommentID: "1700000000", Text: "rad stuff", IsPinned: true}

	results, err := d.Perform(ctx, action, fx.body)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, modes.KindAddComment, results[0].Action)
	assert.Equal(t, fx.taskID, results[0].TaskID)
	assert.NotEmpty(t, results[0].StoryGID)

	results, err = d.Perform(ctx, action, fx.body)
	require.NoError(t, err)
	assert.Empty(t, results)

	comments := fx.srv.Comments(fx.taskID)
	require.Len(t, comments, 1)
	assert.Equal(t, "rad stuff\n1700000000\n", comments[0].Text)
	assert.True(t, comments[0].IsPinned)
}

func TestPerform_RemoveComment(t *testing.T) {
	fx := newFixture(t)
	d := dispatcher.New(fx.srv.Client())
	ctx := context.Background()

	_, err := d.Perform(ctx, modes.AddComment{CommentID: "key-1", Text: "hello"}, fx.body)
	require.NoError(t, err)

	results, err := d.Perform(ctx, modes.RemoveComment{CommentID: "key-1"}, fx.body)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, fx.taskID, results[0].TaskID)
	assert.Empty(t, fx.srv.Comments(fx.taskID))

	results, err = d.Perform(ctx, modes.RemoveComment{CommentID: "key-1"}, fx.body)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestPerform_RemoveCommentLeavesOtherKeys(t *testing.T) {
	fx := newFixture(t)
	d := dispatcher.New(fx.srv.Client())
	ctx := context.Background()

	_, err := d.Perform(ctx, modes.AddComment{CommentID: "keep", Text: "one"}, fx.body)
	require.NoError(t, err)

	results, err := d.Perform(ctx, modes.RemoveComment{CommentID: "other"}, fx.body)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Len(t, fx.srv.Comments(fx.taskID), 1)
}

func TestPerform_CommentKeysDoNotOverlap(t *testing.T) {
	fx := newFixture(t)
	d := dispatcher.New(fx.srv.Client())
	ctx := context.Background()

	results, err := d.Perform(ctx, modes.AddComment{CommentID: "1742", Text: "deployed build 42"}, fx.body)
	require.NoError(t, err)
	require.Len(t, results, 1)
	longKey := results[0].StoryGID

	results, err = d.Perform(ctx, modes.RemoveComment{CommentID: "42"}, fx.body)
	require.NoError(t, err)
	assert.Empty(t, results)
	require.Len(t, fx.srv.Comments(fx.taskID), 1)

	results, err = d.Perform(ctx, modes.AddComment{CommentID: "42", Text: "short key"}, fx.body)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Len(t, fx.srv.Comments(fx.taskID), 2)

	results, err = d.Perform(ctx, modes.RemoveComment{CommentID: "42"}, fx.body)
	require.NoError(t, err)
	require.Len(t, results, 1)

	comments := fx.srv.Comments(fx.taskID)
	require.Len(t, comments, 1)
	assert.Equal(t, longKey, comments[0].GID)
}

func TestPerform_MoveSection(t *testing.T) {
	fx := newFixture(t)
	d := dispatcher.New(fx.srv.Client())
	ctx := context.Background()

	results, err := d.Perform(ctx, modes.MoveSection{Targets: []config.Target{{Project: "Engineering", Section: "Done"}}}, fx.body)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Engineering", results[0].Project)
	assert.Equal(t, "Done", results[0].Section)
	assert.Equal(t, "Done", fx.srv.SectionName(fx.taskID, fx.projectID))

	results, err = d.Perform(ctx, modes.MoveSection{Targets: []config.Target{{Project: "Engineering", Section: "New"}}}, fx.body)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "New", fx.srv.SectionName(fx.taskID, fx.projectID))

	// Moving into the section the task already sits in still succeeds.
	results, err = d.Perform(ctx, modes.MoveSection{Targets: []config.Target{{Project: "Engineering", Section: "New"}}}, fx.body)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestPerform_MoveSectionOnePerTaskAndTarget(t *testing.T) {
	fx := newFixture(t)
	design := fx.srv.AddProject("Design", "Backlog", "Shipped")
	second := fx.srv.AddTask("Second", fx.projectID, design)
	body := fx.body + fmt.Sprintf("\nalso https://app.asana.com/0/%s/%s", design, second)

	d := dispatcher.New(fx.srv.Client())
	results, err := d.Perform(context.Background(), modes.MoveSection{Targets: []config.Target{
		{Project: "Engineering", Section: "In Review"},
	}}, body)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, fx.taskID, results[0].TaskID)
	assert.Equal(t, second, results[1].TaskID)
	assert.Equal(t, "In Review", fx.srv.SectionName(second, fx.projectID))
	assert.Equal(t, "Backlog", fx.srv.SectionName(second, design))
}

func TestPerform_MoveSectionResolutionErrors(t *testing.T) {
	tests := []struct {
		name   string
		target config.Target
		want   error
	}{
		{name: "unknown project", target: config.Target{Project: "Marketing", Section: "Done"}, want: asana.ErrProjectNotFound},
		{name: "unknown section", target: config.Target{Project: "Engineering", Section: "Archive"}, want: asana.ErrSectionNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newFixture(t)
			d := dispatcher.New(fx.srv.Client())

			results, err := d.Perform(context.Background(), modes.MoveSection{Targets: []config.Target{tt.target}}, fx.body)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
			assert.Contains(t, err.Error(), fx.taskID)
			assert.Nil(t, results)
			assert.Equal(t, "New", fx.srv.SectionName(fx.taskID, fx.projectID))
		})
	}
}

func TestPerform_CompleteTask(t *testing.T) {
	fx := newFixture(t)
	d := dispatcher.New(fx.srv.Client())
	ctx := context.Background()

	results, err := d.Perform(ctx, modes.CompleteTask{IsComplete: true}, fx.body)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.NotNil(t, results[0].Completed)
	assert.True(t, *results[0].Completed)

	task, err := fx.srv.Client().GetTask(ctx, fx.taskID)
	require.NoError(t, err)
	assert.True(t, task.Completed)

	results, err = d.Perform(ctx, modes.CompleteTask{IsComplete: false}, fx.body)
	require.NoError(t, err)
	require.Len(t, results, 1)
	got, _ := fx.srv.Task(fx.taskID)
	assert.False(t, got.Completed)
}

func TestPerform_NoReferencesIsNoop(t *testing.T) {
	actions := []modes.Action{
		modes.AddComment{CommentID: "k", Text: "t"},
		modes.RemoveComment{CommentID: "k"},
		modes.MoveSection{Targets: []config.Target{{Project: "Engineering", Section: "Done"}}},
		modes.CompleteTask{IsComplete: true},
	}

	for _, action := range actions {
		t.Run(string(action.Kind()), func(t *testing.T) {
			fx := newFixture(t)
			d := dispatcher.New(fx.srv.Client())

			results, err := d.Perform(context.Background(), action, "no links in here")
			require.NoError(t, err)
			assert.NotNil(t, results)
			assert.Empty(t, results)
			assert.Empty(t, fx.srv.Calls())
		})
	}
}

func TestPerform_DuplicateReferencesProcessedTwice(t *testing.T) {
	fx := newFixture(t)
	d := dispatcher.New(fx.srv.Client())

	results, err := d.Perform(context.Background(), modes.CompleteTask{IsComplete: true}, fx.body+"\n"+fx.body)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestPerform_AbortsOnFirstError(t *testing.T) {
	fx := newFixture(t)
	body := fx.body + "\nhttps://app.asana.com/0/1/999999"
	d := dispatcher.New(fx.srv.Client())

	fx.srv.FailNext(http.StatusInternalServerError)
	_, err := d.Perform(context.Background(), modes.CompleteTask{IsComplete: true}, body)
	require.Error(t, err)

	var apiErr *asana.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	assert.Len(t, fx.srv.Calls(), 1)

	got, _ := fx.srv.Task(fx.taskID)
	assert.False(t, got.Completed)
}

func TestPerform_MissingTaskFails(t *testing.T) {
	fx := newFixture(t)
	d := dispatcher.New(fx.srv.Client())

	_, err := d.Perform(context.Background(), modes.CompleteTask{IsComplete: true}, "https://app.asana.com/0/1/424242")
	require.Error(t, err)
	assert.True(t, asana.IsNotFound(err))
	assert.Contains(t, err.Error(), "424242")
}

func TestPerform_AssertLink(t *testing.T) {
	tests := []struct {
		name         string
		body         string
		linkRequired bool
		wantState    github.State
	}{
		{name: "link found, required", body: "https://app.asana.com/0/1/2", linkRequired: true, wantState: github.StateSuccess},
		{name: "link found, optional", body: "https://app.asana.com/0/1/2", linkRequired: false, wantState: github.StateSuccess},
		{name: "no link, optional", body: "nothing", linkRequired: false, wantState: github.StateSuccess},
		{name: "no link, required", body: "nothing", linkRequired: true, wantState: github.StateFailure},
		{name: "empty body, required", body: "", linkRequired: true, wantState: github.StateFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, rec, cleanup := ghtest.NewMockGitHubClient()
			defer cleanup()

			srv := asanatest.NewServer()
			defer srv.Close()

			commit := dispatcher.Commit{Owner: "acme", Repo: "widgets", SHA: "abc123"}
			d := dispatcher.New(srv.Client(), dispatcher.WithStatusReporter(github.NewStatusReporter(client), commit))

			results, err := d.Perform(context.Background(), modes.AssertLink{LinkRequired: tt.linkRequired}, tt.body)
			require.NoError(t, err)
			require.Len(t, results, 1)
			assert.Equal(t, tt.wantState, results[0].State)

			calls := rec.Calls()
			require.Len(t, calls, 1)
			assert.Equal(t, ghtest.StatusCall{
				Owner:       "acme",
				Repo:        "widgets",
				SHA:         "abc123",
				State:       string(tt.wantState),
				Description: dispatcher.LinkNotFound,
				Context:     github.StatusContext,
			}, calls[0])

			assert.Empty(t, srv.Calls())
		})
	}
}

func TestPerform_AssertLinkReportFailure(t *testing.T) {
	rep := &fakeReporter{err: errors.New("boom")}
	d := dispatcher.New(nil, dispatcher.WithStatusReporter(rep, dispatcher.Commit{Owner: "o", Repo: "r", SHA: "s"}))

	_, err := d.Perform(context.Background(), modes.AssertLink{LinkRequired: true}, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.Len(t, rep.got, 1)
}

func TestPerform_AssertLinkWithoutReporter(t *testing.T) {
	d := dispatcher.New(nil)

	_, err := d.Perform(context.Background(), modes.AssertLink{}, "")
	assert.True(t, errors.Is(err, dispatcher.ErrNoStatusReporter))
}

func TestPerform_UnknownAction(t *testing.T) {
	srv := asanatest.NewServer()
	defer srv.Close()
	d := dispatcher.New(srv.Client())

	_, err := d.Perform(context.Background(), nil, "https://app.asana.com/0/1/2")
	require.Error(t, err)
	assert.True(t, errors.Is(err, config.ErrUnknownAction))
	assert.Empty(t, srv.Calls())
}
