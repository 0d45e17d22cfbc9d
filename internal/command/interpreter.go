// Package command recognizes the local chat commands that are answered
// without calling the completion service.
package command

import (
	"strings"

	"github.com/edgard/cozerelay/internal/config"
	"github.com/edgard/cozerelay/internal/prefs"
)

// Interpreter matches message text against the configured commands.
type Interpreter struct {
	cfg   config.CommandsConfig
	prefs *prefs.Store
}

// NewInterpreter returns an interpreter that toggles flags in store.
func NewInterpreter(cfg config.CommandsConfig, store *prefs.Store) *Interpreter {
	return &Interpreter{cfg: cfg, prefs: store}
}

// TryHandle returns the reply for text if it is a command. Rules are checked
// in order and the first match wins:
//  1. text equals the affection trigger (no state change)
//  2. text starts with the context prefix (toggles the context flag)
//  3. text starts with the deep-think prefix (toggles the deep-think flag)
//
// handled is false when text should go to the completion service.
func (i *Interpreter) TryHandle(text, recipientID string) (reply string, handled bool) {
	switch {
	case i.cfg.AffectionTrigger != "" && text == i.cfg.AffectionTrigger:
		return i.cfg.AffectionReply, true

	case i.cfg.ContextPrefix != "" && strings.HasPrefix(text, i.cfg.ContextPrefix):
		if i.prefs.Toggle(prefs.KindContext, recipientID) {
			return i.cfg.ContextEnabledReply, true
		}
		return i.cfg.ContextDisabledReply, true

	case i.cfg.DeepThinkPrefix != "" && strings.HasPrefix(text, i.cfg.DeepThinkPrefix):
		if i.prefs.Toggle(prefs.KindDeepThink, recipientID) {
			return i.cfg.DeepThinkEnabledReply, true
		}
		return i.cfg.DeepThinkDisabledReply, true
	}

	return "", false
}
