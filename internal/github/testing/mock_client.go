package testing

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"sync"

	gh "github.com/google/go-github/v66/github"
)

// StatusCall is one recorded POST /repos/{owner}/{repo}/statuses/{sha}.
type StatusCall struct {
	Owner       string
	Repo        string
	SHA         string
	State       string
	Description string
	Context     string
	Auth        string
}

// StatusRecorder collects the status calls seen by the mock server.
type StatusRecorder struct {
	mu       sync.Mutex
	calls    []StatusCall
	failWith int
}

// FailWith makes every following status call return code.
func (r *StatusRecorder) FailWith(code int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failWith = code
}

// Calls returns the recorded status calls.
func (r *StatusRecorder) Calls() []StatusCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]StatusCall(nil), r.calls...)
}

var statusPath = regexp.MustCompile(`^/repos/([^/]+)/([^/]+)/statuses/([^/]+)$`)

// NewMockGitHubClient returns a go-github client backed by a local httptest server
// that responds to the endpoints used by tests:
// - POST /repos/{owner}/{repo}/statuses/{sha} -> 201, recorded
// - GET  /repos/{owner}/{repo}/installation -> {"id": 42}
// - POST /app/installations/42/access_tokens -> {"token": "ghs_installation"}
// The returned cleanup function must be called to close the server.
func NewMockGitHubClient() (*gh.Client, *StatusRecorder, func()) {
	srv, rec := NewMockGitHubServer()

	client := gh.NewClient(srv.Client())
	base, err := url.Parse(srv.URL + "/")
	if err != nil {
		srv.Close()
		panic(err)
	}
	client.BaseURL = base
	client.UploadURL = base

	cleanup := func() { srv.Close() }
	return client, rec, cleanup
}

// NewMockGitHubServer starts the server behind NewMockGitHubClient, for
// callers that build their own client (App auth, enterprise URLs).
func NewMockGitHubServer() (*httptest.Server, *StatusRecorder) {
	rec := &StatusRecorder{}
	mux := http.NewServeMux()

	mux.HandleFunc("/repos/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet && regexp.MustCompile(`^/repos/[^/]+/[^/]+/installation$`).MatchString(r.URL.Path) {
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]int64{"id": 42})
			return
		}

		m := statusPath.FindStringSubmatch(r.URL.Path)
		if r.Method != http.MethodPost || m == nil {
			http.NotFound(w, r)
			return
		}

		var body struct {
			State       string `json:"state"`
			Description string `json:"description"`
			Context     string `json:"context"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		rec.mu.Lock()
		rec.calls = append(rec.calls, StatusCall{
			Owner:       m[1],
			Repo:        m[2],
			SHA:         m[3],
			State:       body.State,
			Description: body.Description,
			Context:     body.Context,
			Auth:        r.Header.Get("Authorization"),
		})
		fail := rec.failWith
		rec.mu.Unlock()

		if fail != 0 {
			http.Error(w, `{"message":"failure injected"}`, fail)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":          1,
			"state":       body.State,
			"description": body.Description,
			"context":     body.Context,
		})
	})

	mux.HandleFunc("/app/installations/42/access_tokens", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"token":      "ghs_installation",
			"expires_at": "2030-01-01T00:00:00Z",
		})
	})

	return httptest.NewServer(mux), rec
}
