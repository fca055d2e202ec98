// Package dispatcher runs a configured action against the Asana tasks
// referenced by a pull request body.
package dispatcher

import (
	"context"
	"errors"
	"fmt"

	"github.com/cexll/asana-action/internal/asana"
	"github.com/cexll/asana-action/internal/config"
	"github.com/cexll/asana-action/internal/github"
	"github.com/cexll/asana-action/internal/modes"
	"github.com/cexll/asana-action/internal/taskref"
	"github.com/chainguard-dev/clog"
)

// LinkNotFound is the description attached to every asana-link-presence status.
const LinkNotFound = "asana link not found"

// ErrNoStatusReporter is returned for assert-link when the dispatcher was
// built without a way to publish commit statuses.
var ErrNoStatusReporter = errors.New("dispatcher: no status reporter configured")

// StatusReporter publishes a commit status
type StatusReporter interface {
	Report(ctx context.Context, status github.CommitStatus) error
}

// Commit identifies the commit assert-link reports on.
type Commit struct {
	Owner string
	Repo  string
	SHA   string
}

// Result describes one side effect performed by Perform.
type Result struct {
	Action  modes.Kind `json:"action"`
	TaskID  string     `json:"task_id,omitempty"`
	TaskIDs []string   `json:"task_ids,omitempty"`

	StoryGID   string `json:"story_gid,omitempty"`
	Project    string `json:"project,omitempty"`
	Section    string `json:"section,omitempty"`
	SectionGID string `json:"section_gid,omitempty"`

	Completed *bool        `json:"completed,omitempty"`
	State     github.State `json:"state,omitempty"`
}

// Dispatcher performs actions sequentially against the task tracker.
type Dispatcher struct {
	tasks  asana.Client
	status StatusReporter
	commit Commit
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithStatusReporter enables assert-link, reporting on commit.
func WithStatusReporter(r StatusReporter, commit Commit) Option {
	return func(d *Dispatcher) {
		d.status = r
		d.commit = commit
	}
}

// New creates a dispatcher over the given task client.
func New(tasks asana.Client, opts ...Option) *Dispatcher {
	d := &Dispatcher{tasks: tasks}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Perform extracts task IDs from body and runs action against each of them in
// order. The first failing call aborts the run; results gathered before the
// failure are discarded.
func (d *Dispatcher) Perform(ctx context.Context, action modes.Action, body string) ([]Result, error) {
	ids := taskref.Extract(body)
	log := clog.FromContext(ctx)

	switch a := action.(type) {
	case modes.AssertLink:
		return d.assertLink(ctx, a, ids)
	case modes.AddComment:
		log.Infof("[Dispatcher] add-comment %q on %d task(s)", a.CommentID, len(ids))
		return d.eachTask(ctx, a.Kind(), ids, func(id string) ([]Result, error) {
			return d.addComment(ctx, a, id)
		})
	case modes.RemoveComment:
		log.Infof("[Dispatcher] remove-comment %q on %d task(s)", a.CommentID, len(ids))
		return d.eachTask(ctx, a.Kind(), ids, func(id string) ([]Result, error) {
			return d.removeComment(ctx, a, id)
		})
	case modes.MoveSection:
		log.Infof("[Dispatcher] move-section to %d target(s) on %d task(s)", len(a.Targets), len(ids))
		return d.eachTask(ctx, a.Kind(), ids, func(id string) ([]Result, error) {
			return d.moveSection(ctx, a, id)
		})
	case modes.CompleteTask:
		log.Infof("[Dispatcher] complete-task=%t on %d task(s)", a.IsComplete, len(ids))
		return d.eachTask(ctx, a.Kind(), ids, func(id string) ([]Result, error) {
			return d.completeTask(ctx, a, id)
		})
	default:
		return nil, fmt.Errorf("%w: unsupported action %T", config.ErrUnknownAction, action)
	}
}

func (d *Dispatcher) eachTask(ctx context.Context, kind modes.Kind, ids []string, fn func(id string) ([]Result, error)) ([]Result, error) {
	results := []Result{}
	if len(ids) == 0 {
		clog.FromContext(ctx).Infof("[Dispatcher] no task references found, skipping %s", kind)
		return results, nil
	}
	for _, id := range ids {
		out, err := fn(id)
		if err != nil {
			return nil, fmt.Errorf("%s: task %s: %w", kind, id, err)
		}
		results = append(results, out...)
	}
	return results, nil
}

func (d *Dispatcher) assertLink(ctx context.Context, a modes.AssertLink, ids []string) ([]Result, error) {
	if d.status == nil {
		return nil, ErrNoStatusReporter
	}

	state := github.StateFailure
	if len(ids) > 0 || !a.LinkRequired {
		state = github.StateSuccess
	}
	clog.FromContext(ctx).Infof("[Dispatcher] assert-link: %d reference(s), link-required=%t -> %s", len(ids), a.LinkRequired, state)

	err := d.status.Report(ctx, github.CommitStatus{
		Owner:       d.commit.Owner,
		Repo:        d.commit.Repo,
		SHA:         d.commit.SHA,
		State:       state,
		Description: LinkNotFound,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", a.Kind(), err)
	}
	return []Result{{Action: a.Kind(), TaskIDs: ids, State: state}}, nil
}

func (d *Dispatcher) addComment(ctx context.Context, a modes.AddComment, id string) ([]Result, error) {
	existing, err := asana.FindComment(ctx, d.tasks, id, a.CommentID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		clog.FromContext(ctx).Debugf("[Dispatcher] comment %q already on task %s (story %s)", a.CommentID, id, existing.GID)
		return nil, nil
	}

	story, err := d.tasks.CreateComment(ctx, id, asana.Comment{
		Text:     asana.WithMarker(github.SanitizeText(a.Text), a.CommentID),
		IsPinned: a.IsPinned,
	})
	if err != nil {
		return nil, err
	}
	clog.FromContext(ctx).Infof("[Dispatcher] added comment %s to task %s", story.GID, id)
	return []Result{{Action: a.Kind(), TaskID: id, StoryGID: story.GID}}, nil
}

func (d *Dispatcher) removeComment(ctx context.Context, a modes.RemoveComment, id string) ([]Result, error) {
	existing, err := asana.FindComment(ctx, d.tasks, id, a.CommentID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, nil
	}

	if err := d.tasks.DeleteStory(ctx, existing.GID); err != nil {
		return nil, err
	}
	clog.FromContext(ctx).Infof("[Dispatcher] removed comment %s from task %s", existing.GID, id)
	return []Result{{Action: a.Kind(), TaskID: id, StoryGID: existing.GID}}, nil
}

func (d *Dispatcher) moveSection(ctx context.Context, a modes.MoveSection, id string) ([]Result, error) {
	task, err := d.tasks.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(a.Targets))
	for _, target := range a.Targets {
		project, err := asana.FindProject(task, target.Project)
		if err != nil {
			return nil, err
		}
		section, err := asana.FindSection(ctx, d.tasks, project, target.Section)
		if err != nil {
			return nil, err
		}
		if err := d.tasks.AddTaskToSection(ctx, section.GID, id); err != nil {
			return nil, err
		}
		clog.FromContext(ctx).Infof("[Dispatcher] moved task %s to %s/%s", id, project.Name, section.Name)
		results = append(results, Result{
			Action:     a.Kind(),
			TaskID:     id,
			Project:    project.Name,
			Section:    section.Name,
			SectionGID: section.GID,
		})
	}
	return results, nil
}

func (d *Dispatcher) completeTask(ctx context.Context, a modes.CompleteTask, id string) ([]Result, error) {
	completed := a.IsComplete
	task, err := d.tasks.UpdateTask(ctx, id, asana.TaskUpdate{Completed: &completed})
	if err != nil {
		return nil, err
	}
	clog.FromContext(ctx).Infof("[Dispatcher] task %s completed=%t", id, task.Completed)
	return []Result{{Action: a.Kind(), TaskID: id, Completed: &task.Completed}}, nil
}
