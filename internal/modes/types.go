// Package modes defines the actions the tool can run. Action is a closed set:
// only the variants declared here implement it.
package modes

import "github.com/cexll/asana-action/internal/config"

// Kind is the action input value selecting a mode.
type Kind string

const (
	KindAssertLink    Kind = "assert-link"
	KindAddComment    Kind = "add-comment"
	KindRemoveComment Kind = "remove-comment"
	KindMoveSection   Kind = "move-section"
	KindCompleteTask  Kind = "complete-task"
)

// Action is one of AssertLink, AddComment, RemoveComment, MoveSection or
// CompleteTask, each carrying its validated inputs.
type Action interface {
	Kind() Kind
	sealed()
}

// AssertLink reports a commit status saying whether the PR references a task.
type AssertLink struct {
	LinkRequired bool
}

// AddComment posts Text on every referenced task unless a comment tagged with
// CommentID already exists there.
type AddComment struct {
	CommentID string
	Text      string
	IsPinned  bool
}

// RemoveComment deletes the comment tagged with CommentID from every referenced task.
type RemoveComment struct {
	CommentID string
}

// MoveSection moves every referenced task into each target section, in order.
type MoveSection struct {
	Targets []config.Target
}

// CompleteTask sets the completion state of every referenced task.
type CompleteTask struct {
	IsComplete bool
}

func (AssertLink) Kind() Kind    { return KindAssertLink }
func (AddComment) Kind() Kind    { return KindAddComment }
func (RemoveComment) Kind() Kind { return KindRemoveComment }
func (MoveSection) Kind() Kind   { return KindMoveSection }
func (CompleteTask) Kind() Kind  { return KindCompleteTask }

func (AssertLink) sealed()    {}
func (AddComment) sealed()    {}
func (RemoveComment) sealed() {}
func (MoveSection) sealed()   {}
func (CompleteTask) sealed()  {}
