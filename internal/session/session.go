package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"PocketChat/internal/llm"
)

// Message is a single displayed chat message.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Transcript is the append-only display history of one chat session.
// Messages are only ever added as completed user/assistant exchanges,
// so the list always alternates roles, and only Clear empties it.
// Safe for concurrent use.
type Transcript struct {
	id        string
	startTime time.Time

	mu       sync.RWMutex
	messages []Message
}

// New creates an empty transcript with a fresh session ID.
func New() *Transcript {
	return &Transcript{
		id:        uuid.NewString(),
		startTime: time.Now(),
	}
}

// ID returns the session identifier.
func (t *Transcript) ID() string { return t.id }

// StartTime returns when the session began.
func (t *Transcript) StartTime() time.Time { return t.startTime }

// AppendExchange records one completed interaction: the user question
// followed by the assistant reply, in that order, atomically.
func (t *Transcript) AppendExchange(question, answer string) {
	now := time.Now()
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messages = append(t.messages,
		Message{Role: string(llm.RoleUser), Content: question, Timestamp: now},
		Message{Role: string(llm.RoleAssistant), Content: answer, Timestamp: now},
	)
}

// Messages returns a snapshot copy of the transcript in order.
func (t *Transcript) Messages() []Message {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Message, len(t.messages))
	copy(out, t.messages)
	return out
}

// Len returns the number of messages.
func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.messages)
}

// Clear discards all messages. The session ID is retained.
func (t *Transcript) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messages = nil
}
