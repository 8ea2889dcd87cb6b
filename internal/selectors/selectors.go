// Package selectors defines the per-source extraction recipe inferred by
// the LLM, and the tolerant parsing of model replies into it.
package selectors

import (
	"encoding/json"
	"fmt"
)

// Mode tags how products are extracted for a source.
type Mode string

const (
	// ModeSelectors applies CSS rules deterministically.
	ModeSelectors Mode = "selectors"
	// ModeDirect hands the page to the LLM on every extraction.
	ModeDirect Mode = "direct"
)

// Rules are CSS selectors resolved relative to each product container.
// Only Container is mandatory.
type Rules struct {
	Container     string
	Name          string
	Price         string
	OriginalPrice string
	Image         string
	Link          string
	Description   string
}

// Set is the extraction recipe stored on a source. A direct-mode set never
// carries rules and a selectors-mode set always has a container.
type Set struct {
	Mode               Mode
	Rules              Rules
	RequiresJavaScript bool
	Notes              string
}

// FromRules builds a selectors-mode set. A rule set without a container
// cannot locate anything, so it degrades to direct mode.
func FromRules(rules Rules, requiresJS bool, notes string) Set {
	if rules.Container == "" {
		return Direct(requiresJS, notes)
	}
	return Set{Mode: ModeSelectors, Rules: rules, RequiresJavaScript: requiresJS, Notes: notes}
}

// Direct builds a direct-extraction set.
func Direct(requiresJS bool, notes string) Set {
	return Set{Mode: ModeDirect, RequiresJavaScript: requiresJS, Notes: notes}
}

// IsDirect reports whether products are extracted by the LLM directly.
func (s Set) IsDirect() bool {
	return s.Mode == ModeDirect
}

// Validate checks the tagged-variant invariant.
func (s Set) Validate() error {
	switch s.Mode {
	case ModeSelectors:
		if s.Rules.Container == "" {
			return fmt.Errorf("selectors mode requires a product container")
		}
	case ModeDirect:
		if s.Rules != (Rules{}) {
			return fmt.Errorf("direct mode must not carry selector rules")
		}
	default:
		return fmt.Errorf("unknown selector mode %q", s.Mode)
	}
	return nil
}

// wireSet is the persisted and LLM-facing JSON shape.
type wireSet struct {
	ProductContainer   *string `json:"product_container"`
	Name               *string `json:"name,omitempty"`
	Price              *string `json:"price,omitempty"`
	OriginalPrice      *string `json:"original_price,omitempty"`
	Image              *string `json:"image,omitempty"`
	Link               *string `json:"link,omitempty"`
	Description        *string `json:"description,omitempty"`
	RequiresJavaScript bool    `json:"requires_javascript"`
	UseLLMExtraction   bool    `json:"use_llm_extraction,omitempty"`
	Notes              string  `json:"notes,omitempty"`
}

func ptr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// MarshalJSON encodes the set in its stored shape.
func (s Set) MarshalJSON() ([]byte, error) {
	w := wireSet{
		RequiresJavaScript: s.RequiresJavaScript,
		Notes:              s.Notes,
	}
	if s.IsDirect() {
		w.UseLLMExtraction = true
	} else {
		w.ProductContainer = ptr(s.Rules.Container)
		w.Name = ptr(s.Rules.Name)
		w.Price = ptr(s.Rules.Price)
		w.OriginalPrice = ptr(s.Rules.OriginalPrice)
		w.Image = ptr(s.Rules.Image)
		w.Link = ptr(s.Rules.Link)
		w.Description = ptr(s.Rules.Description)
	}
	return json.Marshal(w)
}

// UnmarshalJSON accepts the stored shape as well as raw model output.
func (s *Set) UnmarshalJSON(data []byte) error {
	var w wireSet
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*s = fromWire(w)
	return nil
}

func fromWire(w wireSet) Set {
	if w.UseLLMExtraction {
		return Direct(w.RequiresJavaScript, w.Notes)
	}
	return FromRules(Rules{
		Container:     deref(w.ProductContainer),
		Name:          deref(w.Name),
		Price:         deref(w.Price),
		OriginalPrice: deref(w.OriginalPrice),
		Image:         deref(w.Image),
		Link:          deref(w.Link),
		Description:   deref(w.Description),
	}, w.RequiresJavaScript, w.Notes)
}
