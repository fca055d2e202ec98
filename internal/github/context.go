package github

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Context is the slice of the runner's event context the action needs
type Context struct {
	Repository Repository

	// Pull request fields; zero when the event has no pull_request object
	PRNumber int
	Body     string
	HeadSHA  string
}

// Repository represents a GitHub repository
type Repository struct {
	Owner    string
	Name     string
	FullName string
}

// HasPullRequest reports whether the event carried a pull request.
func (c *Context) HasPullRequest() bool { return c.PRNumber > 0 }

// LoadContext builds the context from GITHUB_REPOSITORY, the event payload at
// GITHUB_EVENT_PATH and GITHUB_SHA. The payload's pull_request.head.sha wins over
// GITHUB_SHA, which on pull_request events is the merge commit.
func LoadContext(repository, eventPath, sha string) (*Context, error) {
	var payload []byte
	if eventPath != "" {
		data, err := os.ReadFile(eventPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read event payload: %w", err)
		}
		payload = data
	}

	ctx, err := ParseEvent(payload)
	if err != nil {
		return nil, err
	}

	if repository != "" {
		owner, name, ok := strings.Cut(repository, "/")
		if !ok || owner == "" || name == "" {
			return nil, fmt.Errorf("invalid repository %q (expected owner/repo)", repository)
		}
		ctx.Repository = Repository{Owner: owner, Name: name, FullName: repository}
	}
	if ctx.HeadSHA == "" {
		ctx.HeadSHA = sha
	}
	return ctx, nil
}

// ParseEvent parses a GitHub event payload. An empty payload yields an empty context.
func ParseEvent(payload []byte) (*Context, error) {
	ctx := &Context{}
	if len(strings.TrimSpace(string(payload))) == 0 {
		return ctx, nil
	}

	var data map[string]interface{}
	if err := json.Unmarshal(payload, &data); err != nil {
		return nil, fmt.Errorf("failed to parse event payload: %w", err)
	}

	if repo, ok := data["repository"].(map[string]interface{}); ok {
		ctx.Repository = Repository{
			Owner:    getStringField(repo, "owner", "login"),
			Name:     getStringField(repo, "name"),
			FullName: getStringField(repo, "full_name"),
		}
	}

	if pr, ok := data["pull_request"].(map[string]interface{}); ok {
		ctx.PRNumber = int(getNumberField(pr, "number"))
		ctx.Body = getStringField(pr, "body")
		ctx.HeadSHA = getStringField(pr, "head", "sha")
	}

	return ctx, nil
}

// Helper functions for safe map access
func getStringField(data map[string]interface{}, keys ...string) string {
	current := data
	for i, key := range keys {
		if i == len(keys)-1 {
			if val, ok := current[key].(string); ok {
				return val
			}
			return ""
		}
		if next, ok := current[key].(map[string]interface{}); ok {
			current = next
		} else {
			return ""
		}
	}
	return ""
}

func getNumberField(data map[string]interface{}, keys ...string) float64 {
	current := data
	for i, key := range keys {
		if i == len(keys)-1 {
			if val, ok := current[key].(float64); ok {
				return val
			}
			return 0
		}
		if next, ok := current[key].(map[string]interface{}); ok {
			current = next
		} else {
			return 0
		}
	}
	return 0
}
