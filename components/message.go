package components

import (
	"encoding/json"

	cohere "github.com/cohere-ai/cohere-go/v2"
	anthropic "github.com/liushuangls/go-anthropic/v2"
	"github.com/rs/xid"
	openai "github.com/sashabaranov/go-openai"
)

// NewTurnID returns a new turn ID.
func NewTurnID() string {
	return xid.New().String()
}

// MessageRole is the role of the message sender (e.g., 'user', 'system', 'assistant')
type MessageRole = string

const (
	SystemRole    MessageRole = "system"
	UserRole      MessageRole = "user"
	AssistantRole MessageRole = "assistant"
	ToolRole      MessageRole = "tool"
)

// Message represents a message in the chat history.
// A Message is immutable once created.
type Message struct {
	// role is the role of the message sender
	role MessageRole
	// content is the text of the message
	content string
	// turnID is the identifier of the turn this message belongs to.
	turnID string
}

// NewMessage returns a new Message
func NewMessage(role MessageRole, content string) *Message {
	return &Message{
		role:    role,
		content: content,
	}
}

// SystemMessage returns a new system Message
func SystemMessage(content string) Message {
	return *NewMessage(SystemRole, content)
}

// UserMessage returns a new user Message
func UserMessage(content string) Message {
	return *NewMessage(UserRole, content)
}

// AssistantMessage returns a new assistant Message
func AssistantMessage(content string) Message {
	return *NewMessage(AssistantRole, content)
}

// WithTurnID returns a copy of the message bound to turnID
func (m Message) WithTurnID(turnID string) Message {
	m.turnID = turnID
	return m
}

// Role returns message role
func (m Message) Role() MessageRole {
	return m.role
}

// Content returns message content
func (m Message) Content() string {
	return m.content
}

// TurnID returns message turnID
func (m Message) TurnID() string {
	return m.turnID
}

type jsonMessage struct {
	Role    MessageRole `json:"role"`
	Content string      `json:"content"`
	TurnID  string      `json:"turn_id,omitempty"`
}

// MarshalJSON implements json.Marshaler
func (m Message) MarshalJSON() ([]byte, error) {
	return json.Marshal(jsonMessage{
		Role:    m.role,
		Content: m.content,
		TurnID:  m.turnID,
	})
}

// UnmarshalJSON implements json.Unmarshaler
func (m *Message) UnmarshalJSON(bs []byte) error {
	var v jsonMessage
	if err := json.Unmarshal(bs, &v); err != nil {
		return err
	}
	m.role = v.Role
	m.content = v.Content
	m.turnID = v.TurnID
	return nil
}

// ToOpenAI convert message to openai ChatCompletionMessage
func (m Message) ToOpenAI(dist *openai.ChatCompletionMessage) {
	dist.Role = m.role
	dist.Content = m.content
}

// ToAnthropic convert message to anthropic Message.
// System messages have no anthropic role; callers lift them into the request system prompt.
func (m Message) ToAnthropic(dist *anthropic.Message) {
	switch m.role {
	case AssistantRole:
		dist.Role = anthropic.RoleAssistant
	default:
		dist.Role = anthropic.RoleUser
	}
	dist.Content = []anthropic.MessageContent{anthropic.NewTextMessageContent(m.content)}
}

// ToCohere convert message to cohere Message
func (m Message) ToCohere(dist *cohere.Message) {
	msg := &cohere.ChatMessage{
		Message: m.content,
	}
	switch m.role {
	case SystemRole:
		dist.Role = "SYSTEM"
		dist.System = msg
	case AssistantRole:
		dist.Role = "CHATBOT"
		dist.Chatbot = msg
	default:
		dist.Role = "USER"
		dist.User = msg
	}
}
