package asana

// Task is the subset of an Asana task this action reads and writes.
type Task struct {
	GID          string    `json:"gid"`
	Name         string    `json:"name,omitempty"`
	Notes        string    `json:"notes,omitempty"`
	Completed    bool      `json:"completed"`
	PermalinkURL string    `json:"permalink_url,omitempty"`
	Projects     []Project `json:"projects,omitempty"`
}

// Project is a compact Asana project record.
type Project struct {
	GID  string `json:"gid"`
	Name string `json:"name"`
}

// Section is a compact Asana section record.
type Section struct {
	GID  string `json:"gid"`
	Name string `json:"name"`
}

// Story is an entry in a task's activity feed. Comments are stories with
// resource subtype "comment_added".
type Story struct {
	GID             string `json:"gid"`
	Text            string `json:"text"`
	ResourceSubtype string `json:"resource_subtype,omitempty"`
	IsPinned        bool   `json:"is_pinned,omitempty"`
}

// StorySubtypeComment is the resource subtype of user comments.
const StorySubtypeComment = "comment_added"

// IsComment reports whether the story is a user comment.
func (s Story) IsComment() bool {
	return s.ResourceSubtype == "" || s.ResourceSubtype == StorySubtypeComment
}

// TaskFields are the fields accepted when creating a task.
type TaskFields struct {
	Name     string   `json:"name"`
	Notes    string   `json:"notes,omitempty"`
	Projects []string `json:"projects,omitempty"`
}

// TaskUpdate lists the task fields that can be changed. Nil fields are left untouched.
type TaskUpdate struct {
	Completed *bool `json:"completed,omitempty"`
}

// Comment is a new comment to post on a task.
type Comment struct {
	Text     string `json:"text"`
	IsPinned bool   `json:"is_pinned,omitempty"`
}

// envelope wraps every Asana request and response body.
type envelope[T any] struct {
	Data     T         `json:"data"`
	NextPage *nextPage `json:"next_page,omitempty"`
}

type nextPage struct {
	Offset string `json:"offset"`
	Path   string `json:"path"`
	URI    string `json:"uri"`
}
