package grub

import (
	"encoding/json"
	"strings"
	"testing"
)

const sampleConfig = `# If you change this file, run 'grub2-mkconfig -o /boot/grub2/grub.cfg' afterwards

GRUB_DISTRIBUTOR=
GRUB_DEFAULT=saved
GRUB_TIMEOUT=8
GRUB_CMDLINE_LINUX_DEFAULT="splash=silent quiet security=apparmor"

GRUB_TERMINAL="gfxterm"
`

// TestParseRoundTrip verifies that rendering an unmodified file
// reproduces the input exactly, including blanks and comments.
func TestParseRoundTrip(t *testing.T) {
	f, err := Parse(sampleConfig)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if got := f.Render(); got != sampleConfig {
		t.Errorf("Render mismatch:\ngot:  %q\nwant: %q", got, sampleConfig)
	}
}

// TestParseStripsQuotes verifies quote characters are removed from values.
func TestParseStripsQuotes(t *testing.T) {
	f, err := Parse(sampleConfig)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	tests := []struct {
		key  string
		want string
	}{
		{"GRUB_CMDLINE_LINUX_DEFAULT", "splash=silent quiet security=apparmor"},
		{"GRUB_TERMINAL", "gfxterm"},
		{"GRUB_TIMEOUT", "8"},
		{"GRUB_DISTRIBUTOR", ""},
	}

	for _, tt := range tests {
		kv, ok := f.KeyValues()[tt.key]
		if !ok {
			t.Errorf("key %q not found", tt.key)
			continue
		}
		if kv.Value != tt.want {
			t.Errorf("value of %q = %q, want %q", tt.key, kv.Value, tt.want)
		}
	}
}

// TestParseMissingEquals verifies a non-comment line without '='
// fails with the 1-based line number.
func TestParseMissingEquals(t *testing.T) {
	_, err := Parse("GRUB_TIMEOUT=5\nbogus line\n")
	if err == nil {
		t.Fatal("expected parse error")
	}

	perr, ok := err.(*ParseError)
	if !ok {
		t.Fatalf("expected *ParseError, got %T", err)
	}
	if perr.Line != 2 {
		t.Errorf("error line = %d, want 2", perr.Line)
	}
}

// TestSetIdempotent verifies setting an unchanged value never marks
// the line dirty or alters the rendering.
func TestSetIdempotent(t *testing.T) {
	f, err := Parse("GRUB_TIMEOUT=8\n")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	f.Set("GRUB_TIMEOUT", "8")

	if f.KeyValues()["GRUB_TIMEOUT"].Changed {
		t.Error("unchanged value should not mark the line dirty")
	}
	if got := f.Render(); got != "GRUB_TIMEOUT=8\n" {
		t.Errorf("Render = %q, want unchanged input", got)
	}
}

// TestSetDirtySerialization verifies a changed value re-serializes
// with double quotes, discarding the original quoting style.
func TestSetDirtySerialization(t *testing.T) {
	f, err := Parse("GRUB_TERMINAL='gfxterm'\n")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	f.Set("GRUB_TERMINAL", "console")

	if !f.KeyValues()["GRUB_TERMINAL"].Changed {
		t.Error("changed value should mark the line dirty")
	}
	if got := f.Render(); got != "GRUB_TERMINAL=\"console\"\n" {
		t.Errorf("Render = %q, want GRUB_TERMINAL=\"console\"\\n", got)
	}
}

// TestSetAppendsNewKey verifies an absent key is appended as a new
// dirty line after all original lines.
func TestSetAppendsNewKey(t *testing.T) {
	f, err := Parse("GRUB_TIMEOUT=8\n")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	f.Set("FOO", "bar")

	want := "GRUB_TIMEOUT=8\n\nFOO=\"bar\""
	if got := f.Render(); got != want {
		t.Errorf("Render = %q, want %q", got, want)
	}
	if !strings.HasSuffix(f.Render(), "FOO=\"bar\"") {
		t.Error("new key should be appended last")
	}
}

// TestDuplicateKeysLastWins verifies the key index keeps the last
// occurrence when the source has duplicates.
func TestDuplicateKeysLastWins(t *testing.T) {
	f, err := Parse("GRUB_TIMEOUT=5\nGRUB_TIMEOUT=8\n")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if got := f.KeyValues()["GRUB_TIMEOUT"].Value; got != "8" {
		t.Errorf("indexed value = %q, want %q", got, "8")
	}
}

// TestFromLinesRebuild verifies rebuilding from a typed line sequence
// preserves order and reindexes keys.
func TestFromLinesRebuild(t *testing.T) {
	orig, err := Parse(sampleConfig)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	rebuilt := FromLines(orig.Lines())
	if got := rebuilt.Render(); got != sampleConfig {
		t.Errorf("rebuilt Render mismatch:\ngot:  %q\nwant: %q", got, sampleConfig)
	}
	if len(rebuilt.KeyValues()) != len(orig.KeyValues()) {
		t.Errorf("rebuilt index has %d keys, want %d", len(rebuilt.KeyValues()), len(orig.KeyValues()))
	}

	// Mutating the rebuilt file must not touch the source lines
	rebuilt.Set("GRUB_TIMEOUT", "99")
	if orig.KeyValues()["GRUB_TIMEOUT"].Value == "99" {
		t.Error("FromLines should deep-copy KeyValue lines")
	}
}

// TestLineJSONTagging verifies the tagged wire form of both line kinds.
func TestLineJSONTagging(t *testing.T) {
	f, err := Parse("# comment\nGRUB_TIMEOUT=8\n")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	data, err := json.Marshal(f.Lines())
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var decoded []Line
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if len(decoded) != 3 {
		t.Fatalf("decoded %d lines, want 3", len(decoded))
	}
	if decoded[0].KV != nil || decoded[0].Raw != "# comment" {
		t.Errorf("line 0 should be the raw comment, got %+v", decoded[0])
	}
	if decoded[1].KV == nil || decoded[1].KV.Key != "GRUB_TIMEOUT" || decoded[1].KV.Value != "8" {
		t.Errorf("line 1 should be the GRUB_TIMEOUT entry, got %+v", decoded[1])
	}

	if !strings.Contains(string(data), `"t":"KeyValue"`) || !strings.Contains(string(data), `"t":"String"`) {
		t.Errorf("wire form missing type tags: %s", data)
	}
}

// TestUnmarshalUnknownTag verifies unknown line tags are rejected.
func TestUnmarshalUnknownTag(t *testing.T) {
	var line Line
	if err := json.Unmarshal([]byte(`{"t":"Widget"}`), &line); err == nil {
		t.Error("expected error for unknown tag")
	}
}
