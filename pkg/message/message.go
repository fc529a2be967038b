// Package message defines the wire-independent conversational data model
// shared by the turn loop, context manager, and recall engine: messages,
// their parts, and agent state snapshots.
package message

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies who produced a Message.
type Role string

const (
	RoleSystem     Role = "system"
	RoleUser       Role = "user"
	RoleAssistant  Role = "assistant"
	RoleToolResult Role = "tool_result"
)

// Part is a closed sum type: the only implementations are the part kinds
// defined in this file. The unexported marker method prevents other
// packages from adding new variants, so every switch over Part kinds in
// this module can be exhaustive.
type Part interface {
	isPart()
}

// TextPart is plain natural-language content.
type TextPart struct {
	Text string
}

func (TextPart) isPart() {}

// ThinkingPart is a provider's internal reasoning trace, kept out of the
// rendered transcript but retained for audit and guardian inspection.
type ThinkingPart struct {
	Text string
}

func (ThinkingPart) isPart() {}

// ToolCallPart is a request to invoke a tool, emitted by a provider.
type ToolCallPart struct {
	CallID    string
	ToolName  string
	Arguments map[string]any
}

func (ToolCallPart) isPart() {}

// ToolResultPart carries the outcome of executing a ToolCallPart.
type ToolResultPart struct {
	CallID    string
	ToolName  string
	Content   string
	IsError   bool
	Truncated bool
}

func (ToolResultPart) isPart() {}

// ImagePart references binary image content by MIME type and payload or
// URL, never both.
type ImagePart struct {
	MimeType string
	Data     []byte
	URL      string
}

func (ImagePart) isPart() {}

// Message is one turn of conversation: a role and an ordered list of parts.
type Message struct {
	ID        string
	Role      Role
	Parts     []Part
	CreatedAt time.Time
}

// NewMessage builds a Message with a generated ID; at is stamped by the
// caller rather than read here, the same injected-clock seam pkg/edgestore's
// Clock and pkg/procedural's Extractor use for deterministic time in tests.
func NewMessage(role Role, at time.Time, parts ...Part) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      role,
		Parts:     parts,
		CreatedAt: at,
	}
}

// Text concatenates every TextPart in the message, ignoring other part
// kinds. Most callers that need "the message as a string" want this rather
// than a raw Parts walk.
func (m Message) Text() string {
	var out string
	for _, p := range m.Parts {
		if tp, ok := p.(TextPart); ok {
			if out != "" {
				out += "\n"
			}
			out += tp.Text
		}
	}
	return out
}

// ToolCalls returns every ToolCallPart in the message, in order.
func (m Message) ToolCalls() []ToolCallPart {
	var calls []ToolCallPart
	for _, p := range m.Parts {
		if tc, ok := p.(ToolCallPart); ok {
			calls = append(calls, tc)
		}
	}
	return calls
}

// ThinkingLevel is the closed set of extended-thinking budgets an agent can
// request from its provider, per spec §3.
type ThinkingLevel string

const (
	ThinkingNone   ThinkingLevel = "none"
	ThinkingLow    ThinkingLevel = "low"
	ThinkingMedium ThinkingLevel = "medium"
	ThinkingHigh   ThinkingLevel = "high"
)

// ToolDef is the subset of a tool's descriptor an AgentState needs to
// advertise to its provider; pkg/tool.Def carries the full schema, this is
// the name/description slice the spec's AgentState.tools field names.
type ToolDef struct {
	Name        string
	Description string
}

// AgentState is the spec's AgentState: a single agent's working memory —
// transcript, model/provider selection, advertised tools, system prompt,
// and streaming status — plus whatever scratch key/value data the turn
// loop or tools have stashed for this agent. Mutated only by the owning
// turn loop; external readers should treat a *AgentState as a snapshot.
type AgentState struct {
	SessionID     string
	AgentID       string
	History       []Message
	Model         string
	ProviderID    string
	Tools         []ToolDef
	SystemPrompt  string
	ThinkingLevel ThinkingLevel
	IsStreaming   bool
	Scratch       map[string]any
}

// NewAgentState returns an empty state ready for use, with AgentID and
// SessionID both set to agentID (callers that manage sessions and agents
// under distinct ids should set SessionID explicitly afterward).
func NewAgentState(agentID string) *AgentState {
	return &AgentState{
		AgentID:       agentID,
		SessionID:     agentID,
		ThinkingLevel: ThinkingNone,
		Scratch:       make(map[string]any),
	}
}

// Append adds a message to the agent's history.
func (s *AgentState) Append(m Message) {
	s.History = append(s.History, m)
}

// Last returns the most recent message and true, or the zero Message and
// false if history is empty.
func (s *AgentState) Last() (Message, bool) {
	if len(s.History) == 0 {
		return Message{}, false
	}
	return s.History[len(s.History)-1], true
}
