package message

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMessage_Text(t *testing.T) {
	m := NewMessage(RoleAssistant, time.Now(),
		TextPart{Text: "hello"},
		ThinkingPart{Text: "scratch work, should be ignored"},
		TextPart{Text: "world"},
	)
	assert.Equal(t, "hello\nworld", m.Text())
}

func TestMessage_ToolCalls(t *testing.T) {
	m := NewMessage(RoleAssistant, time.Now(),
		TextPart{Text: "let me check"},
		ToolCallPart{CallID: "c1", ToolName: "search", Arguments: map[string]any{"q": "x"}},
	)
	calls := m.ToolCalls()
	assert.Len(t, calls, 1)
	assert.Equal(t, "search", calls[0].ToolName)
}

func TestAgentState_AppendAndLast(t *testing.T) {
	s := NewAgentState("agent-1")
	_, ok := s.Last()
	assert.False(t, ok)

	s.Append(NewMessage(RoleUser, time.Now(), TextPart{Text: "hi"}))
	last, ok := s.Last()
	assert.True(t, ok)
	assert.Equal(t, "hi", last.Text())
}

func TestPart_ClosedSumTypeSwitch(t *testing.T) {
	parts := []Part{
		TextPart{Text: "a"},
		ToolCallPart{CallID: "1"},
		ToolResultPart{CallID: "1", Content: "ok"},
		ImagePart{MimeType: "image/png", URL: "https://example.com/x.png"},
		ThinkingPart{Text: "hmm"},
	}

	kinds := make(map[string]int)
	for _, p := range parts {
		switch p.(type) {
		case TextPart:
			kinds["text"]++
		case ToolCallPart:
			kinds["tool_call"]++
		case ToolResultPart:
			kinds["tool_result"]++
		case ImagePart:
			kinds["image"]++
		case ThinkingPart:
			kinds["thinking"]++
		default:
			t.Fatalf("unhandled part kind %T", p)
		}
	}
	assert.Equal(t, 1, kinds["text"])
	assert.Equal(t, 1, kinds["tool_call"])
	assert.Equal(t, 1, kinds["tool_result"])
	assert.Equal(t, 1, kinds["image"])
	assert.Equal(t, 1, kinds["thinking"])
}
