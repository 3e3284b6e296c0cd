// Package transcript finds specs a coding session declared finished.
//
// Completion is signalled in conversation text with a <promise>DONE</promise>
// marker near a spec id. The ids an Extractor returns are untrusted: callers
// must check them against the roadmap before acting on them.
package transcript

import (
	"context"
	"encoding/json"
	"regexp"
	"sort"
	"strings"

	"github.com/moai-adk/orchestrator/internal/types"
)

// Marker is the completion promise an agent emits.
const Marker = "<promise>DONE</promise>"

// Extractor names of the available implementations.
const (
	ExtractorRegex  = "regex"
	ExtractorClaude = "claude"
)

// Extractor pulls completed spec ids out of conversation text.
type Extractor interface {
	ExtractCompletedIDs(ctx context.Context, text string) ([]string, error)
}

// HasMarker reports whether text contains the completion marker.
func HasMarker(text string) bool {
	return strings.Contains(text, Marker)
}

var completionPatterns = []*regexp.Regexp{
	// id mentioned before the marker
	regexp.MustCompile(`(?i)(SPEC-[A-Z0-9-]+)[^<]*<promise>DONE</promise>`),
	// marker followed by an id
	regexp.MustCompile(`(?i)<promise>DONE</promise>[^S]*(SPEC-[A-Z0-9-]+)`),
	// "completed: SPEC-X", "finished: SPEC-X", "done: SPEC-X"
	regexp.MustCompile(`(?i)(?:completed|finished|done):\s*(SPEC-[A-Z0-9-]+)`),
}

// RegexExtractor matches the three completion phrasings.
type RegexExtractor struct{}

// ExtractCompletedIDs returns upper-cased, deduplicated ids in sorted order.
func (RegexExtractor) ExtractCompletedIDs(_ context.Context, text string) ([]string, error) {
	var ids []string
	for _, re := range completionPatterns {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			ids = append(ids, m[1])
		}
	}
	return uniqueIDs(ids), nil
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := []string{}
	for _, id := range ids {
		id = types.NormalizeID(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// hookInput is the JSON a session-end hook receives on stdin.
type hookInput struct {
	Conversation string            `json:"conversation"`
	Transcript   []json.RawMessage `json:"transcript"`
}

// ParseHookInput returns the conversation text carried by a hook payload.
// It prefers the "conversation" field, then joins "transcript[].content".
// Input that is not a JSON object is treated as the conversation itself.
func ParseHookInput(raw []byte) string {
	var in hookInput
	if err := json.Unmarshal(raw, &in); err != nil {
		return string(raw)
	}
	if in.Conversation != "" {
		return in.Conversation
	}
	var parts []string
	for _, msg := range in.Transcript {
		var m struct {
			Content json.RawMessage `json:"content"`
		}
		if err := json.Unmarshal(msg, &m); err != nil {
			continue
		}
		parts = append(parts, contentText(m.Content))
	}
	return strings.Join(parts, " ")
}

// contentText flattens a message content value: a plain string, or a list of
// blocks whose "text" fields are joined.
func contentText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var blocks []struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &blocks); err == nil {
		texts := make([]string, 0, len(blocks))
		for _, b := range blocks {
			if b.Text != "" {
				texts = append(texts, b.Text)
			}
		}
		return strings.Join(texts, " ")
	}
	return string(raw)
}

// FilterKnown splits ids into those tracked by doc and the rest.
func FilterKnown(doc *types.Roadmap, ids []string) (known, unknown []string) {
	for _, id := range ids {
		if s, ok := doc.Get(id); ok {
			known = append(known, s.ID)
		} else {
			unknown = append(unknown, id)
		}
	}
	return known, unknown
}
