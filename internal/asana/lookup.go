package asana

import (
	"context"
	"fmt"
	"strings"
)

// WithMarker appends the correlation key to a comment body on its own line so
// later runs can find the comment again. An empty key leaves text unchanged.
func WithMarker(text, key string) string {
	if key == "" {
		return text
	}
	return text + "\n" + key + "\n"
}

// FindComment returns the first comment on a task tagged with key, or nil if
// there is none. A comment is tagged when one of its lines, trimmed, equals
// key. Comment volume per task is small so this is a plain linear scan over
// the task's stories.
func FindComment(ctx context.Context, c Client, taskGID, key string) (*Story, error) {
	if key == "" {
		return nil, nil
	}
	stories, err := c.ListStories(ctx, taskGID)
	if err != nil {
		return nil, err
	}
	for i := range stories {
		if stories[i].IsComment() && hasMarker(stories[i].Text, key) {
			return &stories[i], nil
		}
	}
	return nil, nil
}

func hasMarker(text, key string) bool {
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == key {
			return true
		}
	}
	return false
}

// FindProject returns the project named name among the task's memberships.
func FindProject(task *Task, name string) (*Project, error) {
	for i := range task.Projects {
		if task.Projects[i].Name == name {
			return &task.Projects[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %q (task %s)", ErrProjectNotFound, name, task.GID)
}

// FindSection returns the section named name in a project.
func FindSection(ctx context.Context, c Client, project *Project, name string) (*Section, error) {
	sections, err := c.ListSections(ctx, project.GID)
	if err != nil {
		return nil, err
	}
	for i := range sections {
		if sections[i].Name == name {
			return &sections[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %q in project %q", ErrSectionNotFound, name, project.Name)
}
