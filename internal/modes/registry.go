package modes

import (
	"fmt"
	"strings"

	"github.com/cexll/asana-action/internal/config"
)

// Kinds lists every supported action in documentation order.
func Kinds() []Kind {
	return []Kind{KindAssertLink, KindAddComment, KindRemoveComment, KindMoveSection, KindCompleteTask}
}

// ParseKind validates an action name.
func ParseKind(name string) (Kind, error) {
	for _, k := range Kinds() {
		if string(k) == name {
			return k, nil
		}
	}
	names := make([]string, 0, len(Kinds()))
	for _, k := range Kinds() {
		names = append(names, string(k))
	}
	return "", fmt.Errorf("%w: %q (must be one of %s)", config.ErrUnknownAction, name, strings.Join(names, ", "))
}

// FromConfig builds the action selected by cfg.Action, checking the inputs
// that action requires.
func FromConfig(cfg *config.Config) (Action, error) {
	kind, err := ParseKind(cfg.Action)
	if err != nil {
		return nil, err
	}

	switch kind {
	case KindAssertLink:
		if cfg.GitHubToken == "" && !cfg.HasGitHubApp() {
			return nil, missing(kind, "github-token")
		}
		return AssertLink{LinkRequired: bool(cfg.LinkRequired)}, nil

	case KindAddComment:
		if cfg.CommentID == "" {
			return nil, missing(kind, "comment-id")
		}
		if cfg.Text == "" {
			return nil, missing(kind, "text")
		}
		return AddComment{CommentID: cfg.CommentID, Text: cfg.Text, IsPinned: bool(cfg.IsPinned)}, nil

	case KindRemoveComment:
		if cfg.CommentID == "" {
			return nil, missing(kind, "comment-id")
		}
		return RemoveComment{CommentID: cfg.CommentID}, nil

	case KindMoveSection:
		if len(cfg.Targets) == 0 {
			return nil, missing(kind, "targets")
		}
		for i, t := range cfg.Targets {
			if t.Project == "" || t.Section == "" {
				return nil, fmt.Errorf("%w: targets[%d] needs both project and section", config.ErrMissingInput, i)
			}
		}
		return MoveSection{Targets: append([]config.Target(nil), cfg.Targets...)}, nil

	case KindCompleteTask:
		if !cfg.IsComplete.Set {
			return nil, missing(kind, "is-complete")
		}
		return CompleteTask{IsComplete: cfg.IsComplete.Value}, nil
	}

	return nil, fmt.Errorf("%w: %q", config.ErrUnknownAction, kind)
}

func missing(kind Kind, input string) error {
	return fmt.Errorf("%w: %s is required for %s", config.ErrMissingInput, input, kind)
}
