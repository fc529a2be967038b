// Package contextmgr implements the Context Manager (spec §4.9): assembling
// a provider request from an AgentState under a token budget, with tiered
// compaction as usage climbs. Grounded on the shape of
// pkg/agent/context_manager.go (the teacher's own context-assembly step in
// the reasoning loop), generalized from a single compaction strategy into
// spec §4.9's three explicit tiers.
package contextmgr

import (
	"math"
	"sort"
	"strings"

	"github.com/pkoukk/tiktoken-go"

	"github.com/arclane/conduit/pkg/message"
	"github.com/arclane/conduit/pkg/provider"
)

const (
	tierMergeText     = 0.60
	tierDropToolBody  = 0.75
	tierInformational = 0.90
)

// Manager builds provider.RequestContext values from an AgentState,
// enforcing budget via tiered compaction.
type Manager struct {
	encoding *tiktoken.Tiktoken
	budget   int
}

// New builds a Manager with the given token budget. If encodingName is
// empty, "cl100k_base" is used (the teacher's default for cost estimation).
func New(budget int, encodingName string) (*Manager, error) {
	if encodingName == "" {
		encodingName = "cl100k_base"
	}
	enc, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		return nil, err
	}
	return &Manager{encoding: enc, budget: budget}, nil
}

// CountTokens returns the token count of s under the manager's encoding.
func (m *Manager) CountTokens(s string) int {
	return len(m.encoding.Encode(s, nil, nil))
}

// Build assembles a provider.RequestContext from state, applying
// compaction tiers as usage of the budget rises. The output can still
// exceed the budget: system messages, the final message, and tool results
// paired with a retained call are always kept, whatever their size.
// It never mutates state; compaction operates on a working copy of the
// history.
func (m *Manager) Build(state *message.AgentState, tools []provider.ToolSchema) provider.RequestContext {
	history := append([]message.Message(nil), state.History...)

	usage := float64(m.estimate(state.SystemPrompt, history)) / float64(max1(m.budget))
	if usage >= tierMergeText {
		history = mergeAdjacentText(history)
	}
	usage = float64(m.estimate(state.SystemPrompt, history)) / float64(max1(m.budget))
	if usage >= tierDropToolBody {
		history = summarizeToolResults(history)
	}
	usage = float64(m.estimate(state.SystemPrompt, history)) / float64(max1(m.budget))
	if usage >= tierInformational {
		history = informationalCompact(history, m, state.SystemPrompt, tools)
	}

	msgs := make([]any, len(history))
	for i, h := range history {
		msgs[i] = h
	}
	return provider.RequestContext{
		SystemPrompt: state.SystemPrompt,
		Messages:     msgs,
		Tools:        tools,
	}
}

func max1(n int) int {
	if n <= 0 {
		return 1
	}
	return n
}

func (m *Manager) estimate(systemPrompt string, history []message.Message) int {
	total := m.CountTokens(systemPrompt)
	for _, msg := range history {
		total += m.CountTokens(msg.Text())
		for _, p := range msg.Parts {
			if tr, ok := p.(message.ToolResultPart); ok {
				total += m.CountTokens(tr.Content)
			}
		}
	}
	return total
}

// mergeAdjacentText merges consecutive same-role text-only messages into
// one, the 60%-tier compaction per spec §4.9.
func mergeAdjacentText(history []message.Message) []message.Message {
	if len(history) == 0 {
		return history
	}
	out := make([]message.Message, 0, len(history))
	out = append(out, history[0])
	for _, msg := range history[1:] {
		last := &out[len(out)-1]
		if last.Role == msg.Role && onlyText(*last) && onlyText(msg) {
			last.Parts = append(last.Parts, message.TextPart{Text: "\n" + msg.Text()})
			continue
		}
		out = append(out, msg)
	}
	return out
}

func onlyText(msg message.Message) bool {
	for _, p := range msg.Parts {
		if _, ok := p.(message.TextPart); !ok {
			return false
		}
	}
	return true
}

// summarizeToolResults replaces low-salience tool-result bodies with a
// one-line summary keyed by tool-call id, the 75%-tier compaction. The
// final message and all system messages are always preserved untouched.
func summarizeToolResults(history []message.Message) []message.Message {
	if len(history) == 0 {
		return history
	}
	lastIdx := len(history) - 1
	out := make([]message.Message, len(history))
	copy(out, history)

	for i := range out {
		if i == lastIdx || out[i].Role == message.RoleSystem {
			continue
		}
		parts := make([]message.Part, len(out[i].Parts))
		copy(parts, out[i].Parts)
		for j, p := range parts {
			tr, ok := p.(message.ToolResultPart)
			if !ok || len(tr.Content) < 200 {
				continue
			}
			parts[j] = message.ToolResultPart{
				CallID:    tr.CallID,
				ToolName:  tr.ToolName,
				Content:   summarizeOneLine(tr.ToolName, tr.CallID, tr.Content),
				IsError:   tr.IsError,
				Truncated: true,
			}
		}
		out[i].Parts = parts
	}
	return out
}

func summarizeOneLine(toolName, callID, content string) string {
	const maxLen = 80
	snippet := strings.ReplaceAll(content, "\n", " ")
	if len(snippet) > maxLen {
		snippet = snippet[:maxLen]
	}
	return "[" + toolName + " " + callID + "]: " + snippet + "…"
}

// informationalCompact applies the 90%-tier informational compaction:
// TF-IDF saliency, MinHash near-duplicate clustering, and TextRank to
// select a retained subset, always keeping (a) all system messages,
// (b) the final message, and (c) any tool result whose tool call appears
// in a retained assistant message.
func informationalCompact(history []message.Message, m *Manager, systemPrompt string, tools []provider.ToolSchema) []message.Message {
	if len(history) <= 2 {
		return history
	}
	lastIdx := len(history) - 1

	must := map[int]bool{lastIdx: true}
	for i, msg := range history {
		if msg.Role == message.RoleSystem {
			must[i] = true
		}
	}

	scores := tfidfSaliency(history)
	keep := dedupeNearDuplicates(history, scores)
	ranked := textRankOrder(history, scores)

	budget := m.budget
	total := m.estimate(systemPrompt, nil)
	selected := make(map[int]bool)
	for i := range must {
		selected[i] = true
		total += m.CountTokens(history[i].Text())
	}
	for _, i := range ranked {
		if selected[i] || !keep[i] {
			continue
		}
		cost := m.CountTokens(history[i].Text())
		if total+cost > budget {
			continue
		}
		selected[i] = true
		total += cost
	}

	// Rule (c): retain any tool result whose tool call appears in a
	// retained assistant message.
	retainedCalls := map[string]bool{}
	for i := range selected {
		for _, tc := range history[i].ToolCalls() {
			retainedCalls[tc.CallID] = true
		}
	}
	for i, msg := range history {
		if selected[i] {
			continue
		}
		for _, p := range msg.Parts {
			if tr, ok := p.(message.ToolResultPart); ok && retainedCalls[tr.CallID] {
				selected[i] = true
			}
		}
	}

	out := make([]message.Message, 0, len(selected))
	idxs := make([]int, 0, len(selected))
	for i := range selected {
		idxs = append(idxs, i)
	}
	sort.Ints(idxs)
	for _, i := range idxs {
		out = append(out, history[i])
	}
	return out
}

// tfidfSaliency scores each message by the TF-IDF sum of its tokens against
// the message set used as the corpus. Pure Go: no pack library covers
// TF-IDF over arbitrary text (documented in DESIGN.md).
func tfidfSaliency(history []message.Message) []float64 {
	docs := make([][]string, len(history))
	df := map[string]int{}
	for i, msg := range history {
		toks := tokenize(msg.Text())
		docs[i] = toks
		seen := map[string]bool{}
		for _, t := range toks {
			if !seen[t] {
				df[t]++
				seen[t] = true
			}
		}
	}
	n := float64(len(history))
	scores := make([]float64, len(history))
	for i, toks := range docs {
		tf := map[string]int{}
		for _, t := range toks {
			tf[t]++
		}
		var score float64
		for t, c := range tf {
			idf := logFloat(n / float64(1+df[t]))
			score += float64(c) * idf
		}
		scores[i] = score
	}
	return scores
}

func tokenize(s string) []string {
	return strings.Fields(strings.ToLower(s))
}

// dedupeNearDuplicates drops messages that are near-duplicates (by a
// MinHash-style Jaccard estimate over shingles) of an earlier kept
// message, keeping the first (earliest, typically higher-context) copy.
// scores is not consulted.
func dedupeNearDuplicates(history []message.Message, scores []float64) map[int]bool {
	keep := make(map[int]bool, len(history))
	sigs := make([][]uint32, len(history))
	for i, msg := range history {
		sigs[i] = minhashSignature(tokenize(msg.Text()), 16)
	}
	for i := range history {
		keep[i] = true
		for j := 0; j < i; j++ {
			if !keep[j] {
				continue
			}
			if jaccardEstimate(sigs[i], sigs[j]) > 0.9 {
				keep[i] = false
				break
			}
		}
	}
	return keep
}

func minhashSignature(tokens []string, k int) []uint32 {
	sig := make([]uint32, k)
	for i := range sig {
		sig[i] = ^uint32(0)
	}
	shingles := shingle(tokens, 3)
	for _, sh := range shingles {
		base := fnv32(sh)
		for i := 0; i < k; i++ {
			h := base ^ (uint32(i) * 2654435761)
			if h < sig[i] {
				sig[i] = h
			}
		}
	}
	return sig
}

func shingle(tokens []string, n int) []string {
	if len(tokens) < n {
		if len(tokens) == 0 {
			return nil
		}
		return []string{strings.Join(tokens, " ")}
	}
	out := make([]string, 0, len(tokens)-n+1)
	for i := 0; i+n <= len(tokens); i++ {
		out = append(out, strings.Join(tokens[i:i+n], " "))
	}
	return out
}

func fnv32(s string) uint32 {
	var h uint32 = 2166136261
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= 16777619
	}
	return h
}

func jaccardEstimate(a, b []uint32) float64 {
	if len(a) == 0 || len(b) != len(a) {
		return 0
	}
	equal := 0
	for i := range a {
		if a[i] == b[i] {
			equal++
		}
	}
	return float64(equal) / float64(len(a))
}

// textRankOrder ranks message indices by a TextRank-style score: saliency
// seeded PageRank over a similarity graph where edges connect messages
// sharing vocabulary, so a message central to the conversation outranks an
// isolated aside even at equal TF-IDF weight.
func textRankOrder(history []message.Message, saliency []float64) []int {
	n := len(history)
	if n == 0 {
		return nil
	}
	toks := make([][]string, n)
	for i, msg := range history {
		toks[i] = tokenize(msg.Text())
	}
	sim := make([][]float64, n)
	for i := range sim {
		sim[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			s := overlapScore(toks[i], toks[j])
			sim[i][j], sim[j][i] = s, s
		}
	}

	scores := make([]float64, n)
	for i := range scores {
		scores[i] = 1.0 / float64(n)
	}
	const damping = 0.85
	for iter := 0; iter < 20; iter++ {
		next := make([]float64, n)
		for i := range next {
			next[i] = (1 - damping) / float64(n)
			var norm float64
			for j := range sim[i] {
				norm += sim[i][j]
			}
			if norm == 0 {
				continue
			}
			for j, w := range sim[i] {
				if w == 0 {
					continue
				}
				var jNorm float64
				for _, wj := range sim[j] {
					jNorm += wj
				}
				if jNorm == 0 {
					continue
				}
				next[i] += damping * w / jNorm * scores[j]
			}
		}
		scores = next
	}

	for i := range scores {
		scores[i] += saliency[i] * 0.001
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool { return scores[order[a]] > scores[order[b]] })
	return order
}

func overlapScore(a, b []string) float64 {
	seen := map[string]bool{}
	for _, t := range a {
		seen[t] = true
	}
	var common int
	bSeen := map[string]bool{}
	for _, t := range b {
		if bSeen[t] {
			continue
		}
		bSeen[t] = true
		if seen[t] {
			common++
		}
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	return float64(common) / (logFloat(float64(len(a))+1) + logFloat(float64(len(b))+1))
}

func logFloat(x float64) float64 {
	if x <= 0 {
		return 0
	}
	return math.Log(x)
}
