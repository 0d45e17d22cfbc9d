// Package completion implements the clients of the remote conversational-AI
// services that turn a user's message into an answer.
package completion

import (
	"context"
	"fmt"
)

// Completer answers a single query on behalf of a recipient.
type Completer interface {
	Complete(ctx context.Context, recipientID, query string) (string, error)
}

// Reasons carried by MalformedResponseError.
const (
	ReasonMissingMessages = "missing messages field"
	ReasonNoAnswer        = "no answer message"
)

// HTTPError is returned when the service answers with a non-2xx status.
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("completion service returned HTTP %d", e.Status)
	}
	return fmt.Sprintf("completion service returned HTTP %d: %s", e.Status, e.Body)
}

// MalformedResponseError is returned when a successful response does not
// contain an answer.
type MalformedResponseError struct {
	Reason string
}

func (e *MalformedResponseError) Error() string {
	return "malformed completion response: " + e.Reason
}
