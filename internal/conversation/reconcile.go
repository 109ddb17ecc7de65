// Package conversation merges an explicit prompt, a prior-message list and
// system instructions into one adapter-ready structure. It is the single
// entry point for resolving the "current" turn of a chat request; boundary
// code never re-derives prompts from message history.
package conversation

import (
	"strings"

	"modelrelay/internal/core"
)

// Reconcile walks messages in order, dropping blank entries, folding
// system-role content into one combined instruction, and mapping assistant
// turns to the model role. The next-turn prompt resolves to the explicit
// prompt when present; otherwise a trailing user turn is popped off the
// history so it does not appear twice. When neither yields text, the request
// carries nothing to send and a validation error is returned.
func Reconcile(prompt string, messages []core.ChatMessage, systemInstruction string) (*core.ReconciledConversation, error) {
	var instructions []string
	if s := strings.TrimSpace(systemInstruction); s != "" {
		instructions = append(instructions, s)
	}

	history := make([]core.Turn, 0, len(messages))
	for _, msg := range messages {
		text := strings.TrimSpace(msg.Content)
		if text == "" {
			continue
		}
		switch msg.Role {
		case core.RoleSystem:
			instructions = append(instructions, text)
		case core.RoleAssistant:
			history = append(history, core.Turn{Role: core.TurnModel, Content: text})
		default:
			history = append(history, core.Turn{Role: core.TurnUser, Content: text})
		}
	}

	// Explicit prompt always wins; the history is then kept whole as prior
	// context, never reinterpreted.
	next := strings.TrimSpace(prompt)
	if next == "" && len(history) > 0 && history[len(history)-1].Role == core.TurnUser {
		next = history[len(history)-1].Content
		history = history[:len(history)-1]
	}
	if next == "" {
		return nil, core.NewValidationError("prompt is required", nil)
	}

	return &core.ReconciledConversation{
		SystemInstruction: strings.Join(instructions, "\n\n"),
		History:           history,
		NextPrompt:        next,
	}, nil
}

// Transcript flattens a reconciled conversation into a single prompt for
// adapters without native multi-turn sessions: an optional System line, one
// labeled line per prior turn, and the next prompt as the final user line.
// A conversation with no history and no instruction passes through as the
// bare prompt so single-turn requests keep their original text.
func Transcript(rc *core.ReconciledConversation) string {
	if rc.SystemInstruction == "" && len(rc.History) == 0 {
		return rc.NextPrompt
	}

	lines := make([]string, 0, len(rc.History)+2)
	if rc.SystemInstruction != "" {
		lines = append(lines, "System: "+rc.SystemInstruction)
	}
	for _, turn := range rc.History {
		label := "User"
		if turn.Role == core.TurnModel {
			label = "Assistant"
		}
		lines = append(lines, label+": "+turn.Content)
	}
	lines = append(lines, "User: "+rc.NextPrompt)
	return strings.Join(lines, "\n")
}
