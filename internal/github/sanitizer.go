package github

import (
	"regexp"
)

var (
	reInvisible = regexp.MustCompile("[\u200B\u200C\u200D\uFEFF\u00AD]")
	reControl   = regexp.MustCompile("[\u0000-\u0008\u000B\u000C\u000E-\u001F\u007F-\u009F]")
	reBidi      = regexp.MustCompile("[\u202A-\u202E\u2066-\u2069]")

	reGitHubToken       = regexp.MustCompile(`\bgh[pousr]_[A-Za-z0-9]{36}\b`)
	reGitHubFineGrained = regexp.MustCompile(`\bgithub_pat_[A-Za-z0-9_]{11,221}\b`)
)

const redacted = "[REDACTED_GITHUB_TOKEN]"

// StripInvisibleCharacters removes zero-width, soft hyphen, bidi override and
// control characters. Tabs and line breaks are kept.
func StripInvisibleCharacters(s string) string {
	s = reInvisible.ReplaceAllString(s, "")
	s = reControl.ReplaceAllString(s, "")
	s = reBidi.ReplaceAllString(s, "")
	return s
}

// RedactGitHubTokens censors GitHub token-like strings.
func RedactGitHubTokens(s string) string {
	s = reGitHubToken.ReplaceAllString(s, redacted)
	s = reGitHubFineGrained.ReplaceAllString(s, redacted)
	return s
}

// SanitizeText cleans workflow-provided text before it is posted outside
// GitHub. Formatting is left as written.
func SanitizeText(s string) string {
	if s == "" {
		return s
	}
	return RedactGitHubTokens(StripInvisibleCharacters(s))
}
