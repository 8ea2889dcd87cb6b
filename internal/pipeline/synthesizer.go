// internal/pipeline/synthesizer.go
package pipeline

import (
	"context"

	"github.com/valpere/PriceScrapexter/internal/llm"
	"github.com/valpere/PriceScrapexter/internal/scraper"
	"github.com/valpere/PriceScrapexter/internal/selectors"
	"github.com/valpere/PriceScrapexter/internal/utils"
)

// SynthesisMaxTokens bounds the selector-synthesis reply.
const SynthesisMaxTokens = 2000

// directNote is attached to sets that fall back to direct extraction.
const directNote = "CSS selectors could not be determined. Will use LLM-based extraction."

// Synthesizer asks the model for a Selector Set describing a listing page.
type Synthesizer struct {
	provider llm.Provider
	model    string
	logger   utils.Logger
}

// NewSynthesizer creates a synthesizer bound to one model.
func NewSynthesizer(provider llm.Provider, model string, logger utils.Logger) *Synthesizer {
	if model == "" {
		model = llm.DefaultModel
	}
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	return &Synthesizer{provider: provider, model: model, logger: logger.WithField("component", "synthesizer")}
}

// Synthesize sends compacted markup to the model and parses the reply.
// Provider failures are LLM_FAILED; an unparseable reply is PARSE_FAILED.
func (s *Synthesizer) Synthesize(ctx context.Context, url, compactedHTML string, usage *llm.Usage) (selectors.Set, error) {
	resp, err := s.provider.Complete(ctx, llm.UserText(s.model, SynthesisMaxTokens, renderPrompt(selectorPrompt, url, compactedHTML)))
	if err != nil {
		return selectors.Set{}, utils.NewError(utils.ErrCodeLLMFailed, "selector synthesis request failed").
			WithCause(err).
			WithContext("url", url).
			Build()
	}
	usage.Add(resp)

	set, err := selectors.ParseObject(resp.Text)
	if err != nil {
		return selectors.Set{}, utils.NewError(utils.ErrCodeParseFailed, "selector synthesis reply is not valid JSON").
			WithCause(err).
			WithContext("url", url).
			WithContext("reply", utils.TruncateRunes(resp.Text, 200)).
			Build()
	}
	return set, nil
}

// SynthesizeValidated synthesizes a set and checks it against the raw
// page. Selectors that extract nothing are replaced by a direct-mode set.
func (s *Synthesizer) SynthesizeValidated(ctx context.Context, url, rawHTML, compactedHTML string, usage *llm.Usage) (selectors.Set, error) {
	set, err := s.Synthesize(ctx, url, compactedHTML, usage)
	if err != nil {
		return selectors.Set{}, err
	}
	if set.IsDirect() {
		return set, nil
	}

	sample := scraper.ExtractProducts(rawHTML, set, url)
	if len(sample) == 0 {
		s.logger.WithFields(map[string]interface{}{
			"url":       url,
			"container": set.Rules.Container,
		}).Warn("generated selectors didn't extract any products, falling back to direct extraction")
		return selectors.Direct(set.RequiresJavaScript, directNote), nil
	}
	s.logger.Debugf("generated selectors matched %d products on %s", len(sample), url)
	return set, nil
}
