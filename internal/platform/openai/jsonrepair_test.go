package openai

import (
	"testing"
)

func TestDecodeLooseDirect(t *testing.T) {
	m := DecodeLoose(`{"a": 1, "b": "two"}`)
	if m["b"] != "two" {
		t.Fatalf("expected b=two, got %v", m)
	}
}

func TestDecodeLooseFenced(t *testing.T) {
	raw := "```json\n{\"topic\": \"fractions\"}\n```"
	m := DecodeLoose(raw)
	if m["topic"] != "fractions" {
		t.Fatalf("expected topic=fractions, got %v", m)
	}
}

func TestDecodeLooseEmbeddedObject(t *testing.T) {
	raw := `Here is the plan you asked for: {"modes": ["learn_by_reading"], "priority": 1} hope it helps`
	m := DecodeLoose(raw)
	if m["priority"] != float64(1) {
		t.Fatalf("expected priority=1, got %v", m)
	}
}

func TestDecodeLooseTrailingCommas(t *testing.T) {
	raw := `{"items": ["a", "b",], "count": 2,}`
	m := DecodeLoose(raw)
	if m["count"] != float64(2) {
		t.Fatalf("expected count=2, got %v", m)
	}
	items, ok := m["items"].([]any)
	if !ok || len(items) != 2 {
		t.Fatalf("expected 2 items, got %v", m["items"])
	}
}

func TestDecodeLooseBracesInsideStrings(t *testing.T) {
	raw := `noise {"text": "use {curly} braces", "n": 3} trailing`
	m := DecodeLoose(raw)
	if m["n"] != float64(3) {
		t.Fatalf("expected n=3, got %v", m)
	}
}

func TestDecodeLooseUnrepairable(t *testing.T) {
	raw := "I could not produce JSON today, sorry."
	m := DecodeLoose(raw)
	if m["error"] != "invalid_json" {
		t.Fatalf("expected error sentinel, got %v", m)
	}
	if m["raw_output"] != raw {
		t.Fatalf("expected raw output preserved, got %v", m["raw_output"])
	}
}
