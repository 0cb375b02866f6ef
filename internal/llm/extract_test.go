package llm

import (
	"errors"
	"testing"
)

func TestDecodeJSONDirect(t *testing.T) {
	var out map[string]any
	if err := DecodeJSON(`{"sentiment": "positive", "score": 0.8}`, &out); err != nil {
		t.Fatalf("DecodeJSON: %v", err)
	}
	if out["sentiment"] != "positive" {
		t.Fatalf("sentiment = %v", out["sentiment"])
	}
}

func TestDecodeJSONFenced(t *testing.T) {
	raw := "```json\n{\"sentiment\": \"negative\"}\n```"
	var out map[string]any
	if err := DecodeJSON(raw, &out); err != nil {
		t.Fatalf("DecodeJSON: %v", err)
	}
	if out["sentiment"] != "negative" {
		t.Fatalf("sentiment = %v", out["sentiment"])
	}
}

func TestDecodeJSONEmbeddedInProse(t *testing.T) {
	raw := `Here is the analysis you asked for: {"topic": "fees", "nested": {"ok": true}} Let me know if you need more.`
	var out map[string]any
	if err := DecodeJSON(raw, &out); err != nil {
		t.Fatalf("DecodeJSON: %v", err)
	}
	if out["topic"] != "fees" {
		t.Fatalf("topic = %v", out["topic"])
	}
}

func TestDecodeJSONArray(t *testing.T) {
	raw := "The insights are:\n[{\"type\": \"trend\"}, {\"type\": \"alert\"}]"
	var out []map[string]any
	if err := DecodeJSON(raw, &out); err != nil {
		t.Fatalf("DecodeJSON: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("len = %d", len(out))
	}
}

func TestDecodeJSONBracesInsideStrings(t *testing.T) {
	raw := `prefix {"note": "uses { and } inside", "n": 1} suffix`
	var out map[string]any
	if err := DecodeJSON(raw, &out); err != nil {
		t.Fatalf("DecodeJSON: %v", err)
	}
	if out["note"] != "uses { and } inside" {
		t.Fatalf("note = %v", out["note"])
	}
}

func TestDecodeJSONGarbageReturnsParseError(t *testing.T) {
	var out map[string]any
	err := DecodeJSON("I could not produce a structured answer.", &out)
	if err == nil {
		t.Fatal("expected error")
	}
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *ParseError, got %T", err)
	}
	if pe.Raw != "I could not produce a structured answer." {
		t.Fatalf("Raw = %q", pe.Raw)
	}
}

func TestStripCodeFences(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"```\n[1,2]\n```", "[1,2]"},
		{`{"a":1}`, `{"a":1}`},
	}
	for _, c := range cases {
		if got := stripCodeFences(c.in); got != c.want {
			t.Errorf("stripCodeFences(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
