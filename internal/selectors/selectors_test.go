// internal/selectors/selectors_test.go
package selectors

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestParseObject_Formats(t *testing.T) {
	const obj = `{"product_container": ".card", "name": "h3", "price": ".price", "requires_javascript": false, "notes": "grid"}`

	tests := []struct {
		name string
		text string
	}{
		{"bare", obj},
		{"fenced json", "Here you go:\n```json\n" + obj + "\n```\nGood luck."},
		{"fenced plain", "```\n" + obj + "\n```"},
		{"embedded", "The selectors are " + obj + " as requested."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set, err := ParseObject(tt.text)
			if err != nil {
				t.Fatalf("ParseObject() error = %v", err)
			}
			if set.Mode != ModeSelectors {
				t.Fatalf("Mode = %s, want selectors", set.Mode)
			}
			if set.Rules.Container != ".card" || set.Rules.Name != "h3" || set.Rules.Price != ".price" {
				t.Errorf("unexpected rules: %+v", set.Rules)
			}
			if set.Notes != "grid" {
				t.Errorf("Notes = %q", set.Notes)
			}
		})
	}
}

func TestParseObject_NoJSON(t *testing.T) {
	for _, text := range []string{"", "I could not find any products.", "null", "[1,2]"} {
		if _, err := ParseObject(text); !errors.Is(err, ErrNoJSON) {
			t.Errorf("ParseObject(%q) error = %v, want ErrNoJSON", text, err)
		}
	}
}

func TestParseObject_MissingContainerDegradesToDirect(t *testing.T) {
	set, err := ParseObject(`{"product_container": null, "name": "h3", "requires_javascript": true}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !set.IsDirect() {
		t.Fatalf("expected direct mode, got %s", set.Mode)
	}
	if !set.RequiresJavaScript {
		t.Error("requires_javascript should survive")
	}
	if err := set.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestSet_JSONRoundTripKeepsVariant(t *testing.T) {
	direct := Direct(false, "CSS selectors could not be determined.")
	data, err := json.Marshal(direct)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"use_llm_extraction":true`) {
		t.Errorf("direct marker missing: %s", data)
	}
	if strings.Contains(string(data), `"name"`) {
		t.Errorf("direct set must not carry rules: %s", data)
	}

	var back Set
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatal(err)
	}
	if back != direct {
		t.Errorf("got %+v, want %+v", back, direct)
	}

	rules := FromRules(Rules{Container: "li.product", Link: "a"}, true, "")
	data, _ = json.Marshal(rules)
	if !strings.Contains(string(data), `"product_container":"li.product"`) {
		t.Errorf("unexpected encoding: %s", data)
	}
}

func TestSet_Validate(t *testing.T) {
	bad := Set{Mode: ModeDirect, Rules: Rules{Container: ".x"}}
	if bad.Validate() == nil {
		t.Error("direct set with rules should be invalid")
	}
	if (Set{Mode: ModeSelectors}).Validate() == nil {
		t.Error("selectors set without container should be invalid")
	}
	if (Set{}).Validate() == nil {
		t.Error("zero set should be invalid")
	}
}

func TestParseArray(t *testing.T) {
	type item struct {
		Name string `json:"name"`
	}

	got, err := ParseArray[item]("```json\n[{\"name\": \"A\"}, {\"name\": \"B\"}]\n```")
	if err != nil {
		t.Fatalf("ParseArray() error = %v", err)
	}
	if len(got) != 2 || got[1].Name != "B" {
		t.Errorf("got %+v", got)
	}

	got, err = ParseArray[item](`Found: [{"name": "C"}] done`)
	if err != nil || len(got) != 1 {
		t.Errorf("embedded array: %v %+v", err, got)
	}

	if _, err := ParseArray[item]("no products here"); !errors.Is(err, ErrNoJSON) {
		t.Errorf("expected ErrNoJSON, got %v", err)
	}
}
