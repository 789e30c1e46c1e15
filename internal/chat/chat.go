// Package chat answers support questions with an LLM, grounding the answer in
// retrieved tickets.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dshills/ticketsearch/pkg/types"
)

// Roles used in chat messages
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

const systemPreamble = "You are a helpful IT Support Assistant.\n" +
	"Answer the question based on the context provided.\n" +
	"---Context---\n"

const noTicketsContext = "No relevant tickets found."

var (
	// ErrNoMessages is returned when Respond is called with an empty conversation
	ErrNoMessages = errors.New("chat: no messages")
	// ErrEmptyCompletion is returned when the model replies with no choices
	ErrEmptyCompletion = errors.New("chat: empty completion")
)

// Message is one turn of a conversation
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Completer produces the next assistant message for a conversation
type Completer interface {
	Complete(ctx context.Context, messages []Message) (string, error)
}

// Service prepends ticket context to conversations and asks the completer
type Service struct {
	completer Completer
}

// NewService creates a chat service backed by completer
func NewService(completer Completer) *Service {
	return &Service{completer: completer}
}

// Respond answers the conversation using tickets as context
func (s *Service) Respond(ctx context.Context, messages []Message, tickets []types.Ticket) (string, error) {
	if len(messages) == 0 {
		return "", ErrNoMessages
	}

	final := make([]Message, 0, len(messages)+1)
	final = append(final, Message{Role: RoleSystem, Content: SystemPrompt(tickets)})
	final = append(final, messages...)

	answer, err := s.completer.Complete(ctx, final)
	if err != nil {
		return "", fmt.Errorf("completion failed: %w", err)
	}
	return answer, nil
}

// SystemPrompt renders the assistant instructions with a ticket context block
func SystemPrompt(tickets []types.Ticket) string {
	return systemPreamble + ContextBlock(tickets)
}

// ContextBlock lists tickets one per section, separated by "--" lines
func ContextBlock(tickets []types.Ticket) string {
	if len(tickets) == 0 {
		return noTicketsContext
	}
	lines := make([]string, len(tickets))
	for i, t := range tickets {
		lines[i] = fmt.Sprintf("Ticket %s: Details - %s %s", t.ID, t.Title, t.Content)
	}
	return strings.Join(lines, "\n--\n")
}

// LastUserMessage returns the content of the most recent user turn
func LastUserMessage(messages []Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == RoleUser {
			return messages[i].Content
		}
	}
	return ""
}
