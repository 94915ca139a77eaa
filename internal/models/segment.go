package models

import "strings"

// Stored segments carry the role as a text prefix so they can be parsed back
// into messages after a semantic search: "USER: what was my last answer?".
const segmentSeparator = ": "

// NormalizeRole canonicalizes role tags found in persisted text. Variants like
// "USER_MESSAGE" or "assistant" map onto the three storage roles by
// case-insensitive substring match. Returns false for unrecognized tags.
func NormalizeRole(tag string) (Role, bool) {
	upper := strings.ToUpper(tag)
	switch {
	case strings.Contains(upper, "USER"):
		return RoleUser, true
	case strings.Contains(upper, "AI"), strings.Contains(upper, "ASSISTANT"):
		return RoleAI, true
	case strings.Contains(upper, "SYSTEM"):
		return RoleSystem, true
	default:
		return "", false
	}
}

// FormatSegment serializes a message into its stored-segment text form.
func FormatSegment(m Message) string {
	role, ok := NormalizeRole(string(m.Role))
	if !ok {
		role = m.Role
	}
	return string(role) + segmentSeparator + m.Text
}

// ParseSegment parses stored-segment text back into a message. Returns false
// when the text does not match the "ROLE: text" shape, the content is blank,
// or the role tag is unrecognized. Callers drop such segments individually
// rather than aborting the batch.
func ParseSegment(text string) (Message, bool) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return Message{}, false
	}

	idx := strings.Index(trimmed, segmentSeparator)
	if idx < 0 {
		return Message{}, false
	}

	tag := strings.TrimSpace(trimmed[:idx])
	content := strings.TrimSpace(trimmed[idx+len(segmentSeparator):])
	if content == "" {
		return Message{}, false
	}

	role, ok := NormalizeRole(tag)
	if !ok {
		return Message{}, false
	}

	return Message{Role: role, Text: content}, true
}
