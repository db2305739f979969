package resolver

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// ErrIndexUnavailable is returned when the metadata index is missing or
// cannot be parsed. Callers show a "not available" state instead of failing.
var ErrIndexUnavailable = errors.New("metadata index not available")

// Image-bearing record fields, in the order they are reported.
const (
	FieldQuestion = "picture_question"
	FieldA        = "picture_a"
	FieldB        = "picture_b"
	FieldC        = "picture_c"
	FieldD        = "picture_d"
)

// ImageFields lists the image-bearing fields of a record.
var ImageFields = []string{FieldQuestion, FieldA, FieldB, FieldC, FieldD}

// Scalar is a JSON string or number kept in its textual form. Null, missing,
// object and array values leave it unset.
type Scalar struct {
	Text string
	Set  bool
}

func (s *Scalar) UnmarshalJSON(data []byte) error {
	*s = Scalar{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil
	}
	switch data[0] {
	case '"':
		var text string
		if err := json.Unmarshal(data, &text); err != nil {
			return err
		}
		*s = Scalar{Text: text, Set: true}
	case 'n', '{', '[':
	case 't', 'f':
		*s = Scalar{Text: string(data), Set: true}
	default:
		// numbers compare in shortest form, so 42.0 and 4.2e1 read as 42
		text := string(data)
		if f, err := strconv.ParseFloat(text, 64); err == nil {
			text = strconv.FormatFloat(f, 'f', -1, 64)
		}
		*s = Scalar{Text: text, Set: true}
	}
	return nil
}

func (s Scalar) String() string {
	return s.Text
}

// Record is one entry of the metadata index.
type Record struct {
	Key             string `json:"-"`
	DirectusID      Scalar `json:"directus_id"`
	PictureQuestion Scalar `json:"picture_question"`
	PictureA        Scalar `json:"picture_a"`
	PictureB        Scalar `json:"picture_b"`
	PictureC        Scalar `json:"picture_c"`
	PictureD        Scalar `json:"picture_d"`
}

// Field returns the value of one of ImageFields.
func (r Record) Field(name string) Scalar {
	switch name {
	case FieldQuestion:
		return r.PictureQuestion
	case FieldA:
		return r.PictureA
	case FieldB:
		return r.PictureB
	case FieldC:
		return r.PictureC
	case FieldD:
		return r.PictureD
	}
	return Scalar{}
}

// Index is the parsed metadata index. Records keep the key order of the
// source document.
type Index struct {
	Records []Record
}

// LoadIndex reads and parses the metadata index at path. Every failure wraps
// ErrIndexUnavailable.
func LoadIndex(path string) (*Index, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path is derived from the repository root
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIndexUnavailable, err)
	}
	return ParseIndex(data)
}

// ParseIndex decodes a JSON object of records, preserving key order. A
// repeated key replaces the earlier record in place. Entries that are not
// JSON objects are skipped.
func ParseIndex(data []byte) (*Index, error) {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIndexUnavailable, err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("%w: top-level value is not an object", ErrIndexUnavailable)
	}

	idx := &Index{}
	positions := make(map[string]int)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrIndexUnavailable, err)
		}
		key, _ := tok.(string)

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("%w: record %q: %v", ErrIndexUnavailable, key, err)
		}
		raw = bytes.TrimSpace(raw)
		if len(raw) == 0 || raw[0] != '{' {
			continue
		}

		var rec Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("%w: record %q: %v", ErrIndexUnavailable, key, err)
		}
		rec.Key = key

		if i, dup := positions[key]; dup {
			idx.Records[i] = rec
			continue
		}
		positions[key] = len(idx.Records)
		idx.Records = append(idx.Records, rec)
	}

	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIndexUnavailable, err)
	}
	return idx, nil
}

// FieldMatch is one image field whose value equals a candidate.
type FieldMatch struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

func (m FieldMatch) String() string {
	return m.Field + "=" + m.Value
}

// MetadataHit aggregates every matching field of one record.
type MetadataHit struct {
	Key        string       `json:"key"`
	DirectusID string       `json:"directus_id,omitempty"`
	Matches    []FieldMatch `json:"matches"`
}

// Fields renders the matches as "field=value" joined by ", ".
func (h MetadataHit) Fields() string {
	parts := make([]string, len(h.Matches))
	for i, m := range h.Matches {
		parts[i] = m.String()
	}
	return strings.Join(parts, ", ")
}

// MatchMetadata returns one hit per record with at least one image field equal
// to a candidate, in index order. directus_id is carried for display only and
// never matched.
func MatchMetadata(idx *Index, candidates []string) []MetadataHit {
	if idx == nil {
		return nil
	}
	set := newCandidateSet(candidates)

	var hits []MetadataHit
	for _, rec := range idx.Records {
		var matches []FieldMatch
		for _, name := range ImageFields {
			v := rec.Field(name)
			if v.Set && set[v.Text] {
				matches = append(matches, FieldMatch{Field: name, Value: v.Text})
			}
		}
		if len(matches) == 0 {
			continue
		}
		hits = append(hits, MetadataHit{
			Key:        rec.Key,
			DirectusID: rec.DirectusID.Text,
			Matches:    matches,
		})
	}
	return hits
}
