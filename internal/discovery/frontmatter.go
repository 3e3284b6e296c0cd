package discovery

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/moai-adk/orchestrator/internal/debug"
	"github.com/moai-adk/orchestrator/internal/types"
)

// Frontmatter is the subset of spec.md metadata the tracker reads.
type Frontmatter struct {
	ID           string   `yaml:"id" toml:"id"`
	Title        string   `yaml:"title" toml:"title"`
	Dependencies []string `yaml:"dependencies" toml:"dependencies"`
}

var inlineDepsPattern = regexp.MustCompile(`dependencies:\s*\[(.*?)\]`)

// ParseDependencies extracts the dependency list from a spec document.
//
// YAML frontmatter is delimited by "---" lines and TOML frontmatter by "+++"
// lines. If the block does not decode, the inline "dependencies: [A, B]" form
// is matched instead. Ids come back normalized, in declaration order.
func ParseDependencies(doc []byte) []string {
	block, delim, ok := frontmatterBlock(doc)
	if !ok {
		return []string{}
	}

	var fm Frontmatter
	var err error
	switch delim {
	case "---":
		err = yaml.Unmarshal(block, &fm)
	case "+++":
		_, err = toml.Decode(string(block), &fm)
	}
	if err != nil {
		debug.Logf("discovery: frontmatter did not decode (%v), matching inline list\n", err)
		return normalize(inlineDependencies(block))
	}
	return normalize(fm.Dependencies)
}

// frontmatterBlock returns the text between the opening delimiter on the
// first line and the next line consisting of the same delimiter.
func frontmatterBlock(doc []byte) ([]byte, string, bool) {
	doc = bytes.TrimPrefix(doc, []byte("\ufeff"))
	text := strings.ReplaceAll(string(doc), "\r\n", "\n")
	for _, delim := range []string{"---", "+++"} {
		if !strings.HasPrefix(text, delim+"\n") {
			continue
		}
		rest := text[len(delim)+1:]
		if strings.HasPrefix(rest, delim+"\n") || rest == delim {
			return nil, delim, true
		}
		end := strings.Index(rest, "\n"+delim)
		if end < 0 {
			return nil, "", false
		}
		after := rest[end+1+len(delim):]
		if after != "" && after[0] != '\n' {
			return nil, "", false
		}
		return []byte(rest[:end]), delim, true
	}
	return nil, "", false
}

func inlineDependencies(block []byte) []string {
	m := inlineDepsPattern.FindSubmatch(block)
	if m == nil {
		return nil
	}
	var out []string
	for _, part := range strings.Split(string(m[1]), ",") {
		if p := strings.Trim(strings.TrimSpace(part), `"'`); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func normalize(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id = types.NormalizeID(id); id != "" {
			out = append(out, id)
		}
	}
	return out
}
