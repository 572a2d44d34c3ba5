package tutor

import (
	"encoding/json"
	"fmt"
	"time"
)

// Role is the closed set of conversation participants. Serialization rejects
// anything outside this set so an unknown shape can never round-trip silently.
type Role string

const (
	RoleHuman     Role = "human"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

func (r Role) Valid() bool {
	switch r {
	case RoleHuman, RoleAssistant, RoleSystem:
		return true
	default:
		return false
	}
}

// MessageEncodingVersion is bumped when the wire shape of Message changes.
const MessageEncodingVersion = 1

// Message is one role-tagged turn in a conversation history.
type Message struct {
	Role      Role
	Content   string
	CreatedAt time.Time
}

type encodedMessage struct {
	V       int       `json:"v"`
	Role    string    `json:"role"`
	Content string    `json:"content"`
	TS      time.Time `json:"ts"`
}

func (m Message) MarshalJSON() ([]byte, error) {
	if !m.Role.Valid() {
		return nil, fmt.Errorf("message: unknown role %q", string(m.Role))
	}
	return json.Marshal(encodedMessage{
		V:       MessageEncodingVersion,
		Role:    string(m.Role),
		Content: m.Content,
		TS:      m.CreatedAt,
	})
}

func (m *Message) UnmarshalJSON(data []byte) error {
	var enc encodedMessage
	if err := json.Unmarshal(data, &enc); err != nil {
		return err
	}
	if enc.V <= 0 || enc.V > MessageEncodingVersion {
		return fmt.Errorf("message: unsupported encoding version %d", enc.V)
	}
	role := Role(enc.Role)
	if !role.Valid() {
		return fmt.Errorf("message: unknown role %q", enc.Role)
	}
	m.Role = role
	m.Content = enc.Content
	m.CreatedAt = enc.TS
	return nil
}

func NewHumanMessage(content string) Message {
	return Message{Role: RoleHuman, Content: content, CreatedAt: time.Now().UTC()}
}

func NewAssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content, CreatedAt: time.Now().UTC()}
}

func NewSystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content, CreatedAt: time.Now().UTC()}
}
