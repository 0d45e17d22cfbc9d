// Package relay implements the dispatch pipeline that turns each inbound
// chat message into exactly one reply, either from a local command or from
// the completion service.
package relay

import "context"

// ChannelKind tells which identifier space a recipient id belongs to and
// which send primitive applies.
type ChannelKind int

const (
	// ChannelGroup is a group chat where the bot was mentioned.
	ChannelGroup ChannelKind = iota
	// ChannelDirect is a one-to-one conversation with a user.
	ChannelDirect
)

func (k ChannelKind) String() string {
	if k == ChannelGroup {
		return "group"
	}
	return "direct"
}

// InboundMessage is one received chat message.
type InboundMessage struct {
	Kind        ChannelKind
	RecipientID string
	MessageID   string
	Text        string
}

// OutboundMessage is a reply addressed to the recipient of an inbound
// message. MessageID carries the id of the message being answered.
type OutboundMessage struct {
	Kind        ChannelKind
	RecipientID string
	MessageID   string
	Text        string
}

// EventSource delivers inbound messages on out until ctx is done or the
// underlying connection fails. Implementations must not close out.
type EventSource interface {
	Listen(ctx context.Context, out chan<- InboundMessage) error
}

// Sender posts a reply through the platform's group or direct send call.
type Sender interface {
	Send(ctx context.Context, msg OutboundMessage) error
}
