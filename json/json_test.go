package json

import (
	"testing"
)

type renderDefaults struct {
	Quality  int    `json:"quality" default:"80"`
	Format   string `json:"format" default:"png"`
	Lifetime int    `json:"lifetime,omitempty" default:"600"`
}

func TestMarshalAppliesDefaults(t *testing.T) {
	d := &renderDefaults{Format: "jpg"}

	data, err := Marshal(d)
	if err != nil {
		t.Fatalf("Marshal returned error: %v", err)
	}

	if d.Quality != 80 {
		t.Fatalf("expected default Quality=80, got %d", d.Quality)
	}
	if d.Format != "jpg" {
		t.Fatalf("expected explicit Format to survive, got %s", d.Format)
	}
	if got, want := string(data), `{"quality":80,"format":"jpg","lifetime":600}`; got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestUnmarshalAppliesDefaultsForMissingFields(t *testing.T) {
	var d renderDefaults
	if err := Unmarshal([]byte(`{"format":"gif"}`), &d); err != nil {
		t.Fatalf("Unmarshal returned error: %v", err)
	}

	if d.Quality != 80 {
		t.Fatalf("expected default Quality=80, got %d", d.Quality)
	}
	if d.Format != "gif" {
		t.Fatalf("expected Format from JSON to be gif, got %s", d.Format)
	}
}

func TestMarshalSortsMapKeys(t *testing.T) {
	payload := map[string]any{
		"src_url":  "http://example.com/a.jpg",
		"pipeline": []any{[]any{"geom", map[string]any{"z": 1, "a": "2"}}},
	}

	first, err := Marshal(payload)
	if err != nil {
		t.Fatalf("Marshal returned error: %v", err)
	}
	for i := 0; i < 20; i++ {
		again, err := Marshal(payload)
		if err != nil {
			t.Fatalf("Marshal returned error: %v", err)
		}
		if string(again) != string(first) {
			t.Fatalf("expected stable output, got %s and %s", first, again)
		}
	}

	want := `{"pipeline":[["geom",{"a":"2","z":1}]],"src_url":"http://example.com/a.jpg"}`
	if string(first) != want {
		t.Fatalf("expected %s, got %s", want, first)
	}
}

func TestMarshalLeavesHTMLCharacters(t *testing.T) {
	out, err := MarshalToString(map[string]string{"src_url": "http://x/a.jpg?a=1&b=<2>"})
	if err != nil {
		t.Fatalf("MarshalToString returned error: %v", err)
	}
	if want := `{"src_url":"http://x/a.jpg?a=1&b=<2>"}`; out != want {
		t.Fatalf("expected %s, got %s", want, out)
	}
}

func TestNonStructValuesSkipDefaults(t *testing.T) {
	var steps []any
	if err := Unmarshal([]byte(`[["crop",{"width":10}]]`), &steps); err != nil {
		t.Fatalf("Unmarshal into slice returned error: %v", err)
	}
	if len(steps) != 1 {
		t.Fatalf("expected one step, got %d", len(steps))
	}

	if _, err := Marshal("plain"); err != nil {
		t.Fatalf("Marshal of a string returned error: %v", err)
	}
}

func TestMarshalIndent(t *testing.T) {
	out, err := MarshalIndent(map[string][]string{"errors": {"boom"}}, "", "  ")
	if err != nil {
		t.Fatalf("MarshalIndent returned error: %v", err)
	}
	want := "{\n  \"errors\": [\n    \"boom\"\n  ]\n}"
	if string(out) != want {
		t.Fatalf("expected %q, got %q", want, out)
	}
}

func TestValid(t *testing.T) {
	if !Valid([]byte(`{"a":1}`)) {
		t.Fatalf("expected valid JSON")
	}
	if Valid([]byte(`{"a":`)) {
		t.Fatalf("expected invalid JSON")
	}
}
