// Package taskref extracts Asana task references from free-form text such as
// pull request descriptions.
package taskref

import "regexp"

// linkPattern matches https://<host>/0/<project-id>/<task-id>; anything after the
// task id (for example the "/f" focus suffix) is ignored.
var linkPattern = regexp.MustCompile(`https://[^\s/]+/0/(\d+)/(\d+)`)

// Reference is a single task link found in text.
type Reference struct {
	ProjectID string `json:"project_id"`
	TaskID    string `json:"task_id"`
}

// Parse returns every task link in text in order of appearance.
// Repeated links yield repeated entries.
func Parse(text string) []Reference {
	matches := linkPattern.FindAllStringSubmatch(text, -1)
	refs := make([]Reference, 0, len(matches))
	for _, m := range matches {
		refs = append(refs, Reference{ProjectID: m[1], TaskID: m[2]})
	}
	return refs
}

// Extract returns the task IDs referenced in text, one per link occurrence.
// It returns an empty slice when nothing matches.
func Extract(text string) []string {
	refs := Parse(text)
	ids := make([]string, 0, len(refs))
	for _, ref := range refs {
		ids = append(ids, ref.TaskID)
	}
	return ids
}
