// Package prefs holds per-recipient preference flags toggled by chat commands.
// Flags live in process memory only and are reset when the process restarts.
package prefs

import (
	"fmt"
	"sync"
)

// Kind selects one of the boolean flags kept for a recipient.
type Kind int

const (
	// KindContext is the conversation-context flag.
	KindContext Kind = iota
	// KindDeepThink is the deep-think mode flag.
	KindDeepThink
)

func (k Kind) String() string {
	switch k {
	case KindContext:
		return "context"
	case KindDeepThink:
		return "deep_think"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Flags is the preference record of a single recipient.
type Flags struct {
	Context   bool
	DeepThink bool
}

// Store maps recipient ids to their flags. The zero value is not usable;
// create one with NewStore. Safe for concurrent use.
type Store struct {
	mu    sync.Mutex
	flags map[string]*Flags
}

// NewStore creates an empty preference store.
func NewStore() *Store {
	return &Store{flags: make(map[string]*Flags)}
}

// Get returns the current value of the flag, false if never toggled.
func (s *Store) Get(kind Kind, recipientID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.flags[recipientID]
	if !ok {
		return false
	}
	return *f.field(kind)
}

// Toggle flips the flag for recipientID and returns its new value.
// The record is created on first use and never removed.
func (s *Store) Toggle(kind Kind, recipientID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.flags[recipientID]
	if !ok {
		f = &Flags{}
		s.flags[recipientID] = f
	}
	v := f.field(kind)
	*v = !*v
	return *v
}

// Stats summarises the store contents.
type Stats struct {
	Recipients       int
	ContextEnabled   int
	DeepThinkEnabled int
}

// Stats counts recipients and enabled flags.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Stats{Recipients: len(s.flags)}
	for _, f := range s.flags {
		if f.Context {
			st.ContextEnabled++
		}
		if f.DeepThink {
			st.DeepThinkEnabled++
		}
	}
	return st
}

func (f *Flags) field(kind Kind) *bool {
	if kind == KindDeepThink {
		return &f.DeepThink
	}
	return &f.Context
}
