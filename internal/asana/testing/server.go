// Package testing provides an in-memory Asana API for tests. It serves the
// endpoints used by asana.HTTPClient over httptest and keeps enough state to
// assert on tasks, comments and section membership afterwards.
package testing

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"sync"

	"github.com/cexll/asana-action/internal/asana"
	"github.com/gorilla/mux"
)

// Token is the personal access token the fake server accepts.
const Token = "test-pat"

type task struct {
	asana.Task
	sections map[string]string // project gid -> section gid
	stories  []string
}

type project struct {
	asana.Project
	sections []asana.Section
}

// Call records one request handled by the server.
type Call struct {
	Method string
	Path   string
}

// Server is a fake Asana API backed by maps.
type Server struct {
	mu       sync.Mutex
	srv      *httptest.Server
	nextID   int
	tasks    map[string]*task
	projects map[string]*project
	stories  map[string]*asana.Story
	owner    map[string]string // story gid -> task gid
	calls    []Call
	failNext int
}

// NewServer starts a fake Asana API. Close it when done.
func NewServer() *Server {
	s := &Server{
		nextID:   1000,
		tasks:    make(map[string]*task),
		projects: make(map[string]*project),
		stories:  make(map[string]*asana.Story),
		owner:    make(map[string]string),
	}

	r := mux.NewRouter()
	r.Use(s.record, s.authenticate)
	r.HandleFunc("/tasks", s.createTask).Methods(http.MethodPost)
	r.HandleFunc("/tasks/{gid}", s.getTask).Methods(http.MethodGet)
	r.HandleFunc("/tasks/{gid}", s.updateTask).Methods(http.MethodPut)
	r.HandleFunc("/tasks/{gid}", s.deleteTask).Methods(http.MethodDelete)
	r.HandleFunc("/tasks/{gid}/stories", s.listStories).Methods(http.MethodGet)
	r.HandleFunc("/tasks/{gid}/stories", s.createStory).Methods(http.MethodPost)
	r.HandleFunc("/stories/{gid}", s.deleteStory).Methods(http.MethodDelete)
	r.HandleFunc("/projects/{gid}/sections", s.listSections).Methods(http.MethodGet)
	r.HandleFunc("/sections/{gid}/addTask", s.addTaskToSection).Methods(http.MethodPost)

	s.srv = httptest.NewServer(r)
	return s
}

// URL is the API root to hand to asana.WithBaseURL.
func (s *Server) URL() string { return s.srv.URL }

// Close shuts the server down.
func (s *Server) Close() { s.srv.Close() }

// Client returns an asana.HTTPClient wired to this server.
func (s *Server) Client() *asana.HTTPClient {
	c, err := asana.NewClient(Token, asana.WithBaseURL(s.srv.URL), asana.WithHTTPClient(s.srv.Client()))
	if err != nil {
		panic(err)
	}
	return c
}

// AddProject creates a project with the named sections and returns its gid.
func (s *Server) AddProject(name string, sections ...string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := &project{Project: asana.Project{GID: s.newID(), Name: name}}
	for _, sec := range sections {
		p.sections = append(p.sections, asana.Section{GID: s.newID(), Name: sec})
	}
	s.projects[p.GID] = p
	return p.GID
}

// AddTask creates a task in the given projects, placed in each project's first section.
func (s *Server) AddTask(name string, projectGIDs ...string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addTask(asana.TaskFields{Name: name, Projects: projectGIDs}).GID
}

// Task returns a snapshot of a task.
func (s *Server) Task(gid string) (asana.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[gid]
	if !ok {
		return asana.Task{}, false
	}
	return t.Task, true
}

// Comments returns the stories currently attached to a task.
func (s *Server) Comments(taskGID string) []asana.Story {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[taskGID]
	if !ok {
		return nil
	}
	out := make([]asana.Story, 0, len(t.stories))
	for _, id := range t.stories {
		out = append(out, *s.stories[id])
	}
	return out
}

// SectionName returns the name of the section holding the task in a project.
func (s *Server) SectionName(taskGID, projectGID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[taskGID]
	if !ok {
		return ""
	}
	p, ok := s.projects[projectGID]
	if !ok {
		return ""
	}
	for _, sec := range p.sections {
		if sec.GID == t.sections[projectGID] {
			return sec.Name
		}
	}
	return ""
}

// FailNext makes the next request fail with the given HTTP status.
func (s *Server) FailNext(code int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = code
}

// Calls returns the requests handled so far.
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

func (s *Server) newID() string {
	s.nextID++
	return strconv.Itoa(s.nextID)
}

func (s *Server) addTask(fields asana.TaskFields) *task {
	t := &task{
		Task:     asana.Task{GID: s.newID(), Name: fields.Name, Notes: fields.Notes},
		sections: make(map[string]string),
	}
	t.PermalinkURL = "https://app.asana.com/0/0/" + t.GID
	for _, pid := range fields.Projects {
		p, ok := s.projects[pid]
		if !ok {
			continue
		}
		t.Projects = append(t.Projects, p.Project)
		if len(p.sections) > 0 {
			t.sections[pid] = p.sections[0].GID
		}
	}
	s.tasks[t.GID] = t
	return t
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.calls = append(s.calls, Call{Method: r.Method, Path: r.URL.Path})
		fail := s.failNext
		s.failNext = 0
		s.mu.Unlock()

		if fail != 0 {
			writeError(w, fail, "injected failure")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+Token {
			writeError(w, http.StatusUnauthorized, "Not Authorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) createTask(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Data asana.TaskFields `json:"data"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	t := s.addTask(in.Data)
	out := t.Task
	s.mu.Unlock()

	writeData(w, http.StatusCreated, out)
}

func (s *Server) getTask(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[mux.Vars(r)["gid"]]
	if !ok {
		writeError(w, http.StatusNotFound, "task: Not Found")
		return
	}
	writeData(w, http.StatusOK, t.Task)
}

func (s *Server) updateTask(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Data asana.TaskUpdate `json:"data"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[mux.Vars(r)["gid"]]
	if !ok {
		writeError(w, http.StatusNotFound, "task: Not Found")
		return
	}
	if in.Data.Completed != nil {
		t.Completed = *in.Data.Completed
	}
	writeData(w, http.StatusOK, t.Task)
}

func (s *Server) deleteTask(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	gid := mux.Vars(r)["gid"]
	t, ok := s.tasks[gid]
	if !ok {
		writeError(w, http.StatusNotFound, "task: Not Found")
		return
	}
	for _, id := range t.stories {
		delete(s.stories, id)
		delete(s.owner, id)
	}
	delete(s.tasks, gid)
	writeData(w, http.StatusOK, struct{}{})
}

func (s *Server) listStories(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[mux.Vars(r)["gid"]]
	if !ok {
		writeError(w, http.StatusNotFound, "task: Not Found")
		return
	}

	all := make([]asana.Story, 0, len(t.stories))
	for _, id := range t.stories {
		all = append(all, *s.stories[id])
	}
	writePage(w, r, all)
}

func (s *Server) createStory(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Data asana.Comment `json:"data"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[mux.Vars(r)["gid"]]
	if !ok {
		writeError(w, http.StatusNotFound, "task: Not Found")
		return
	}
	story := &asana.Story{
		GID:             s.newID(),
		Text:            in.Data.Text,
		ResourceSubtype: asana.StorySubtypeComment,
		IsPinned:        in.Data.IsPinned,
	}
	s.stories[story.GID] = story
	s.owner[story.GID] = t.GID
	t.stories = append(t.stories, story.GID)
	writeData(w, http.StatusCreated, *story)
}

func (s *Server) deleteStory(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	gid := mux.Vars(r)["gid"]
	taskGID, ok := s.owner[gid]
	if !ok {
		writeError(w, http.StatusNotFound, "story: Not Found")
		return
	}
	if t, ok := s.tasks[taskGID]; ok {
		kept := t.stories[:0]
		for _, id := range t.stories {
			if id != gid {
				kept = append(kept, id)
			}
		}
		t.stories = kept
	}
	delete(s.stories, gid)
	delete(s.owner, gid)
	writeData(w, http.StatusOK, struct{}{})
}

func (s *Server) listSections(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.projects[mux.Vars(r)["gid"]]
	if !ok {
		writeError(w, http.StatusNotFound, "project: Not Found")
		return
	}
	writePage(w, r, append([]asana.Section(nil), p.sections...))
}

func (s *Server) addTaskToSection(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Data struct {
			Task string `json:"task"`
		} `json:"data"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sectionGID := mux.Vars(r)["gid"]
	t, ok := s.tasks[in.Data.Task]
	if !ok {
		writeError(w, http.StatusBadRequest, "task: Not a recognized ID: "+in.Data.Task)
		return
	}

	projectIDs := make([]string, 0, len(s.projects))
	for id := range s.projects {
		projectIDs = append(projectIDs, id)
	}
	sort.Strings(projectIDs)
	for _, pid := range projectIDs {
		for _, sec := range s.projects[pid].sections {
			if sec.GID == sectionGID {
				t.sections[pid] = sectionGID
				writeData(w, http.StatusOK, struct{}{})
				return
			}
		}
	}
	writeError(w, http.StatusNotFound, "section: Not Found")
}

// writePage serves a slice honouring Asana's limit/offset pagination, where
// the offset token is the index of the next element.
func writePage[T any](w http.ResponseWriter, r *http.Request, all []T) {
	start := 0
	if off := r.URL.Query().Get("offset"); off != "" {
		n, err := strconv.Atoi(off)
		if err != nil || n < 0 || n > len(all) {
			writeError(w, http.StatusBadRequest, "offset: Invalid")
			return
		}
		start = n
	}
	end := len(all)
	if lim, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && lim > 0 && start+lim < end {
		end = start + lim
	}

	resp := map[string]any{"data": all[start:end]}
	if end < len(all) {
		resp["next_page"] = map[string]string{
			"offset": strconv.Itoa(end),
			"path":   fmt.Sprintf("%s?offset=%d", r.URL.Path, end),
		}
	} else {
		resp["next_page"] = nil
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}

func writeData(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"data": data})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"errors": []map[string]string{{"message": msg}},
	})
}
