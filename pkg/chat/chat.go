package chat

import (
	"strings"
)

const (
	ChatRoleUser   = "user"      // Prompt
	ChatRoleAgent  = "assistant" // LLM
	ChatRoleSystem = "system"    // Instructions
)

// maxSpeakerPrefix is the longest text before a colon still read as a name
const maxSpeakerPrefix = 50

// ChatMessage is a single message sent to an LLM backend. The shape follows
// the OpenAI/Ollama chat APIs.
type ChatMessage struct {
	Role    string `json:"role"` // "user", "assistant", "system"
	Content string `json:"content"`
}

// System builds a system message
func System(content string) ChatMessage {
	return ChatMessage{Role: ChatRoleSystem, Content: content}
}

// User builds a user message
func User(content string) ChatMessage {
	return ChatMessage{Role: ChatRoleUser, Content: content}
}

// Line is one attributed utterance in a conversation transcript
type Line struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

// Transcript is an ordered conversation record
type Transcript []Line

// String renders the transcript one "Speaker: text" line at a time
func (t Transcript) String() string {
	var b strings.Builder
	for i, l := range t {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(WithSpeaker(l.Text, l.Speaker))
	}
	return b.String()
}

// SpeakerPrefix returns the "Name" of a "Name: text" message, if present.
// A colon within the first sentence is an acceptable false positive.
func SpeakerPrefix(message string) (string, bool) {
	idx := strings.Index(message, ":")
	if idx <= 0 || idx > maxSpeakerPrefix {
		return "", false
	}
	if idx+1 < len(message) && message[idx+1] != ' ' {
		return "", false
	}
	return message[:idx], true
}

// WithSpeaker prefixes message with name unless it already names a speaker
func WithSpeaker(message, name string) string {
	if _, ok := SpeakerPrefix(message); ok {
		return message
	}
	return name + ": " + message
}

// StripSpeaker removes a leading "Name: " if present
func StripSpeaker(message string) string {
	prefix, ok := SpeakerPrefix(message)
	if !ok {
		return message
	}
	return strings.TrimSpace(message[len(prefix)+1:])
}
