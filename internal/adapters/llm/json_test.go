package llm

import "testing"

func TestFirstObject(t *testing.T) {
	cases := map[string]string{
		`{"a":1}`:                       `{"a":1}`,
		`Here you go: {"a":{"b":2}} ok`: `{"a":{"b":2}}`,
		`{"s":"has } brace"} {"x":1}`:   `{"s":"has } brace"}`,
		`{"s":"esc \" quote {"}`:        `{"s":"esc \" quote {"}`,
		`no json`:                       ``,
		`{"open": 1`:                    ``,
	}
	for in, want := range cases {
		if got := firstObject(in); got != want {
			t.Errorf("firstObject(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDecodeJSON(t *testing.T) {
	var v struct {
		Min  *int   `json:"min"`
		Type string `json:"type"`
	}
	if err := decodeJSON("```json\n{min: 1, type\": \"price\"}\n```", &v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if v.Min == nil || *v.Min != 1 || v.Type != "price" {
		t.Fatalf("unexpected value: %+v", v)
	}
	var term struct {
		Term string `json:"term"`
		Type string `json:"type"`
	}
	if err := decodeJSON(`{"term":"x", type": "price"}`, &term); err != nil {
		t.Fatalf("decode half-quoted key: %v", err)
	}
	if term.Term != "x" || term.Type != "price" {
		t.Fatalf("unexpected value: %+v", term)
	}
	if err := decodeJSON("I could not understand that.", &v); err == nil {
		t.Fatalf("expected error for prose")
	}
}
