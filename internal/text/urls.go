// Package text provides sanitization helpers for outgoing chat text.
package text

import "regexp"

var (
	// urlRegex matches http/https URLs built from the characters the chat
	// platform's link filter reacts to.
	urlRegex = regexp.MustCompile(`https?://(?:[a-zA-Z]|[0-9]|[$-_@.&+]|[!*\\(\\),]|(?:%[0-9a-fA-F][0-9a-fA-F]))+`)

	// urlTokenRegex matches a URL up to the next whitespace.
	urlTokenRegex = regexp.MustCompile(`https?://\S+`)
)

// StripURLs removes every URL substring from s. Nothing else is changed.
func StripURLs(s string) string {
	if s == "" {
		return ""
	}
	return urlRegex.ReplaceAllString(s, "")
}

// StripURLTokens removes every whitespace-delimited token starting with
// http:// or https://. It is meant for error details, where a URL may be
// followed by characters StripURLs would leave behind.
func StripURLTokens(s string) string {
	if s == "" {
		return ""
	}
	return urlTokenRegex.ReplaceAllString(s, "")
}
