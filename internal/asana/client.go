package asana

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/chainguard-dev/clog"
)

// DefaultBaseURL is the public Asana REST endpoint.
const DefaultBaseURL = "https://app.asana.com/api/1.0"

const pageLimit = 100

// Client is the set of Asana operations the action performs.
// Implementations must be safe to call sequentially from a single goroutine.
type Client interface {
	GetTask(ctx context.Context, taskGID string) (*Task, error)
	CreateTask(ctx context.Context, fields TaskFields) (*Task, error)
	UpdateTask(ctx context.Context, taskGID string, update TaskUpdate) (*Task, error)
	DeleteTask(ctx context.Context, taskGID string) error

	ListStories(ctx context.Context, taskGID string) ([]Story, error)
	CreateComment(ctx context.Context, taskGID string, comment Comment) (*Story, error)
	DeleteStory(ctx context.Context, storyGID string) error

	ListSections(ctx context.Context, projectGID string) ([]Section, error)
	AddTaskToSection(ctx context.Context, sectionGID, taskGID string) error
}

// HTTPClient talks to the Asana REST API with a personal access token.
type HTTPClient struct {
	token   string
	baseURL string
	http    *http.Client
}

var _ Client = (*HTTPClient)(nil)

// Option configures an HTTPClient.
type Option func(*HTTPClient)

// WithBaseURL points the client at a different API root (tests, proxies).
func WithBaseURL(baseURL string) Option {
	return func(c *HTTPClient) {
		if baseURL != "" {
			c.baseURL = strings.TrimSuffix(baseURL, "/")
		}
	}
}

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *HTTPClient) {
		if hc != nil {
			c.http = hc
		}
	}
}

// NewClient creates an Asana client authenticated with a personal access token.
func NewClient(token string, opts ...Option) (*HTTPClient, error) {
	if strings.TrimSpace(token) == "" {
		return nil, fmt.Errorf("asana personal access token is required")
	}
	c := &HTTPClient{
		token:   token,
		baseURL: DefaultBaseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// GetTask fetches a task with its project memberships.
func (c *HTTPClient) GetTask(ctx context.Context, taskGID string) (*Task, error) {
	var out envelope[Task]
	q := url.Values{"opt_fields": {"gid,name,notes,completed,permalink_url,projects.name"}}
	if err := c.do(ctx, http.MethodGet, "/tasks/"+url.PathEscape(taskGID), q, nil, &out); err != nil {
		return nil, fmt.Errorf("get task %s: %w", taskGID, err)
	}
	return &out.Data, nil
}

// CreateTask creates a task in the given projects.
func (c *HTTPClient) CreateTask(ctx context.Context, fields TaskFields) (*Task, error) {
	var out envelope[Task]
	if err := c.do(ctx, http.MethodPost, "/tasks", nil, envelope[TaskFields]{Data: fields}, &out); err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	return &out.Data, nil
}

// UpdateTask applies update to a task and returns the updated record.
func (c *HTTPClient) UpdateTask(ctx context.Context, taskGID string, update TaskUpdate) (*Task, error) {
	var out envelope[Task]
	if err := c.do(ctx, http.MethodPut, "/tasks/"+url.PathEscape(taskGID), nil, envelope[TaskUpdate]{Data: update}, &out); err != nil {
		return nil, fmt.Errorf("update task %s: %w", taskGID, err)
	}
	return &out.Data, nil
}

// DeleteTask deletes a task.
func (c *HTTPClient) DeleteTask(ctx context.Context, taskGID string) error {
	if err := c.do(ctx, http.MethodDelete, "/tasks/"+url.PathEscape(taskGID), nil, nil, nil); err != nil {
		return fmt.Errorf("delete task %s: %w", taskGID, err)
	}
	return nil
}

// ListStories returns every story on a task, following pagination.
func (c *HTTPClient) ListStories(ctx context.Context, taskGID string) ([]Story, error) {
	var all []Story
	q := url.Values{
		"opt_fields": {"gid,text,resource_subtype,is_pinned"},
		"limit":      {fmt.Sprint(pageLimit)},
	}
	for {
		var out envelope[[]Story]
		if err := c.do(ctx, http.MethodGet, "/tasks/"+url.PathEscape(taskGID)+"/stories", q, nil, &out); err != nil {
			return nil, fmt.Errorf("list stories for task %s: %w", taskGID, err)
		}
		all = append(all, out.Data...)
		if out.NextPage == nil || out.NextPage.Offset == "" {
			return all, nil
		}
		q.Set("offset", out.NextPage.Offset)
	}
}

// CreateComment posts a comment story on a task.
func (c *HTTPClient) CreateComment(ctx context.Context, taskGID string, comment Comment) (*Story, error) {
	var out envelope[Story]
	if err := c.do(ctx, http.MethodPost, "/tasks/"+url.PathEscape(taskGID)+"/stories", nil, envelope[Comment]{Data: comment}, &out); err != nil {
		return nil, fmt.Errorf("create comment on task %s: %w", taskGID, err)
	}
	return &out.Data, nil
}

// DeleteStory deletes a story. Only comments authored by the token owner can be deleted.
func (c *HTTPClient) DeleteStory(ctx context.Context, storyGID string) error {
	if err := c.do(ctx, http.MethodDelete, "/stories/"+url.PathEscape(storyGID), nil, nil, nil); err != nil {
		return fmt.Errorf("delete story %s: %w", storyGID, err)
	}
	return nil
}

// ListSections returns the sections of a project.
func (c *HTTPClient) ListSections(ctx context.Context, projectGID string) ([]Section, error) {
	var all []Section
	q := url.Values{
		"opt_fields": {"gid,name"},
		"limit":      {fmt.Sprint(pageLimit)},
	}
	for {
		var out envelope[[]Section]
		if err := c.do(ctx, http.MethodGet, "/projects/"+url.PathEscape(projectGID)+"/sections", q, nil, &out); err != nil {
			return nil, fmt.Errorf("list sections for project %s: %w", projectGID, err)
		}
		all = append(all, out.Data...)
		if out.NextPage == nil || out.NextPage.Offset == "" {
			return all, nil
		}
		q.Set("offset", out.NextPage.Offset)
	}
}

// AddTaskToSection moves a task into a section, removing it from any other
// section of the same project.
func (c *HTTPClient) AddTaskToSection(ctx context.Context, sectionGID, taskGID string) error {
	body := envelope[map[string]string]{Data: map[string]string{"task": taskGID}}
	if err := c.do(ctx, http.MethodPost, "/sections/"+url.PathEscape(sectionGID)+"/addTask", nil, body, nil); err != nil {
		return fmt.Errorf("add task %s to section %s: %w", taskGID, sectionGID, err)
	}
	return nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	clog.FromContext(ctx).Debugf("[Asana] %s %s", method, path)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return decodeAPIError(resp.StatusCode, respBody)
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeAPIError(status int, body []byte) error {
	apiErr := &APIError{StatusCode: status}
	var payload struct {
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		for _, e := range payload.Errors {
			apiErr.Messages = append(apiErr.Messages, e.Message)
		}
	}
	if len(apiErr.Messages) == 0 && len(body) > 0 {
		apiErr.Messages = []string{strings.TrimSpace(string(body))}
	}
	return apiErr
}
