package models

import "testing"

func TestNormalizeRole(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Role
		ok   bool
	}{
		{"plain user", "USER", RoleUser, true},
		{"lowercase user", "user", RoleUser, true},
		{"langchain style", "USER_MESSAGE", RoleUser, true},
		{"plain ai", "AI", RoleAI, true},
		{"assistant variant", "ASSISTANT", RoleAI, true},
		{"ai message variant", "Ai_Message", RoleAI, true},
		{"system", "SYSTEM_MESSAGE", RoleSystem, true},
		{"unknown", "TOOL", "", false},
		{"empty", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NormalizeRole(tt.in)
			if ok != tt.ok || got != tt.want {
				t.Errorf("NormalizeRole(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestParseSegment(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Message
		ok   bool
	}{
		{"user segment", "USER: hello there", Message{Role: RoleUser, Text: "hello there"}, true},
		{"ai segment", "AI: hi!", Message{Role: RoleAI, Text: "hi!"}, true},
		{"system segment", "SYSTEM: summary of earlier turns", Message{Role: RoleSystem, Text: "summary of earlier turns"}, true},
		{"normalized tag", "USER_MESSAGE: what time is it?", Message{Role: RoleUser, Text: "what time is it?"}, true},
		{"colon inside content", "AI: the answer is: piano", Message{Role: RoleAI, Text: "the answer is: piano"}, true},
		{"surrounding whitespace", "  USER: trimmed  ", Message{Role: RoleUser, Text: "trimmed"}, true},
		{"missing separator", "no role prefix here", Message{}, false},
		{"blank content", "USER:   ", Message{}, false},
		{"unknown role", "TOOL: output", Message{}, false},
		{"empty", "", Message{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseSegment(tt.in)
			if ok != tt.ok {
				t.Fatalf("ParseSegment(%q) ok = %v, want %v", tt.in, ok, tt.ok)
			}
			if got.Role != tt.want.Role || got.Text != tt.want.Text {
				t.Errorf("ParseSegment(%q) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}
}

func TestFormatSegmentRoundTrip(t *testing.T) {
	msg := NewUserMessage("round trip me")
	parsed, ok := ParseSegment(FormatSegment(msg))
	if !ok {
		t.Fatal("expected round trip to parse")
	}
	if parsed.Role != RoleUser || parsed.Text != "round trip me" {
		t.Errorf("round trip = %+v", parsed)
	}
}
