package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/moai-adk/orchestrator/internal/types"
)

var utf8BOM = []byte("\xef\xbb\xbf")

// DecodeRoadmap parses the JSON document format shared by the file and
// object-store backends. A "specs" member that is missing or not an object is
// treated as an empty mapping; any other decoding failure wraps ErrCorrupt.
// A leading UTF-8 byte order mark is ignored.
func DecodeRoadmap(data []byte) (*types.Roadmap, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	var raw struct {
		Version     string          `json:"version"`
		LastUpdated time.Time       `json:"last_updated"`
		Specs       json.RawMessage `json:"specs"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	doc := &types.Roadmap{
		Version:     raw.Version,
		LastUpdated: raw.LastUpdated,
	}
	if specs := bytes.TrimSpace(raw.Specs); len(specs) > 0 && specs[0] == '{' {
		if err := json.Unmarshal(specs, &doc.Specs); err != nil {
			return nil, fmt.Errorf("%w: specs: %v", ErrCorrupt, err)
		}
	}
	doc.Normalize()
	return doc, nil
}

// EncodeRoadmap renders doc as indented JSON with a trailing newline.
func EncodeRoadmap(doc *types.Roadmap) ([]byte, error) {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode roadmap: %w", err)
	}
	return append(data, '\n'), nil
}
