// Package grub models the GRUB default file and the rendered boot menu.
package grub

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// ParseError reports a malformed line in the GRUB default file or grubenv.
type ParseError struct {
	Line int // 1-based, 0 when the error is not tied to a line
	Msg  string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
	}
	return e.Msg
}

// KeyValue is a KEY=VALUE line of the GRUB default file. Original is
// reproduced verbatim on render unless Changed is set, in which case the
// line is re-serialized as KEY="VALUE" with double quotes.
type KeyValue struct {
	Pos      int    `json:"line"`
	Original string `json:"original"`
	Changed  bool   `json:"changed"`
	Key      string `json:"key"`
	Value    string `json:"value"`
}

// String renders the line for output.
func (kv *KeyValue) String() string {
	if !kv.Changed {
		return kv.Original
	}
	return fmt.Sprintf("%s=%q", kv.Key, kv.Value)
}

// Line kind tags, matching the wire format's "t" field.
const (
	LineKeyValue = "KeyValue"
	LineRaw      = "String"
)

// Line is one line of the file: either a KeyValue entry or an opaque
// raw line (comment, blank, or otherwise unparsed text).
type Line struct {
	KV  *KeyValue // set when the line is a KeyValue
	Raw string    // set otherwise
}

// String renders the line for output.
func (l Line) String() string {
	if l.KV != nil {
		return l.KV.String()
	}
	return l.Raw
}

// lineJSON is the tagged wire form of Line.
type lineJSON struct {
	T        string `json:"t"`
	Pos      int    `json:"line,omitempty"`
	Original string `json:"original,omitempty"`
	Changed  bool   `json:"changed,omitempty"`
	Key      string `json:"key,omitempty"`
	Value    string `json:"value,omitempty"`
	RawLine  string `json:"raw_line,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (l Line) MarshalJSON() ([]byte, error) {
	if l.KV != nil {
		return json.Marshal(lineJSON{
			T:        LineKeyValue,
			Pos:      l.KV.Pos,
			Original: l.KV.Original,
			Changed:  l.KV.Changed,
			Key:      l.KV.Key,
			Value:    l.KV.Value,
		})
	}
	return json.Marshal(struct {
		T       string `json:"t"`
		RawLine string `json:"raw_line"`
	}{LineRaw, l.Raw})
}

// UnmarshalJSON implements json.Unmarshaler.
func (l *Line) UnmarshalJSON(data []byte) error {
	var raw lineJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch raw.T {
	case LineKeyValue:
		l.KV = &KeyValue{
			Pos:      raw.Pos,
			Original: raw.Original,
			Changed:  raw.Changed,
			Key:      raw.Key,
			Value:    raw.Value,
		}
		l.Raw = ""
	case LineRaw:
		l.KV = nil
		l.Raw = raw.RawLine
	default:
		return fmt.Errorf("unknown line tag %q", raw.T)
	}
	return nil
}

// File is the line-preserving model of a GRUB default file. Lines keep
// file order; keyvals indexes KeyValue lines by key, last occurrence
// winning when the source contains duplicates.
type File struct {
	lines   []Line
	keyvals map[string]*KeyValue
}

// newKeyValue parses KEY=VALUE from a raw line. Quote characters are
// stripped from the value regardless of how they appeared.
func newKeyValue(pos int, original string) (*KeyValue, error) {
	trimmed := strings.TrimSpace(original)
	idx := strings.Index(trimmed, "=")
	if idx < 0 {
		return nil, &ParseError{Line: pos + 1, Msg: "expected '='"}
	}
	value := trimmed[idx+1:]
	value = strings.ReplaceAll(value, "'", "")
	value = strings.ReplaceAll(value, `"`, "")
	return &KeyValue{
		Pos:      pos,
		Original: original,
		Key:      trimmed[:idx],
		Value:    value,
	}, nil
}

// Parse builds a File from raw text. Lines that are blank or start
// with '#' after trimming are kept as opaque raw lines; every other
// line must contain '='.
func Parse(text string) (*File, error) {
	f := &File{keyvals: make(map[string]*KeyValue)}

	for idx, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			f.lines = append(f.lines, Line{Raw: line})
			continue
		}

		kv, err := newKeyValue(idx, line)
		if err != nil {
			return nil, err
		}
		f.keyvals[kv.Key] = kv
		f.lines = append(f.lines, Line{KV: kv})
	}

	return f, nil
}

// ParseFile builds a File from the file at path.
func ParseFile(path string) (*File, error) {
	text, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return Parse(string(text))
}

// FromLines rebuilds a File by replaying a client-supplied line
// sequence verbatim. Per-line syntax is not re-validated; the entries
// are already typed.
func FromLines(lines []Line) *File {
	f := &File{keyvals: make(map[string]*KeyValue)}
	for _, line := range lines {
		if line.KV != nil {
			kv := *line.KV
			f.keyvals[kv.Key] = &kv
			f.lines = append(f.lines, Line{KV: &kv})
			continue
		}
		f.lines = append(f.lines, Line{Raw: line.Raw})
	}
	return f
}

// Set updates key to value, marking the line dirty only when the value
// actually differs. An absent key is appended as a new dirty line.
func (f *File) Set(key, value string) {
	if kv, ok := f.keyvals[key]; ok {
		if kv.Value != value {
			kv.Value = value
			kv.Changed = true
		}
		return
	}

	kv := &KeyValue{
		Pos:     len(f.lines),
		Changed: true,
		Key:     key,
		Value:   value,
	}
	f.keyvals[key] = kv
	f.lines = append(f.lines, Line{KV: kv})
}

// Lines returns the ordered line sequence.
func (f *File) Lines() []Line {
	return f.lines
}

// KeyValues returns the key index.
func (f *File) KeyValues() map[string]*KeyValue {
	return f.keyvals
}

// Render serializes the file: dirty KeyValues as KEY="VALUE", all
// other lines verbatim, joined with newlines.
func (f *File) Render() string {
	parts := make([]string, len(f.lines))
	for i, line := range f.lines {
		parts[i] = line.String()
	}
	return strings.Join(parts, "\n")
}
