// internal/pipeline/events.go
package pipeline

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/valpere/PriceScrapexter/internal/compactor"
	"github.com/valpere/PriceScrapexter/internal/domain"
	"github.com/valpere/PriceScrapexter/internal/llm"
	"github.com/valpere/PriceScrapexter/internal/scraper"
	"github.com/valpere/PriceScrapexter/internal/selectors"
	"github.com/valpere/PriceScrapexter/internal/utils"
)

// EventType tags a progress event.
type EventType string

const (
	EventProgress EventType = "progress"
	EventSuccess  EventType = "success"
	EventError    EventType = "error"
	EventComplete EventType = "complete"
)

// Event is one step of an instrumented analysis. A terminal error carries
// Error; a non-terminal error step carries only Message.
type Event struct {
	Type       EventType              `json:"type"`
	Message    string                 `json:"message,omitempty"`
	Error      string                 `json:"error,omitempty"`
	Selectors  *selectors.Set         `json:"selectors,omitempty"`
	Products   []domain.ProductRecord `json:"products,omitempty"`
	TokensUsed int                    `json:"tokens_used,omitempty"`
}

// IsTerminal reports whether e ends the stream.
func (e Event) IsTerminal() bool {
	return e.Type == EventComplete || (e.Type == EventError && e.Error != "")
}

// EventSink receives events in order.
type EventSink interface {
	Emit(Event)
}

// SinkFunc adapts a function to EventSink.
type SinkFunc func(Event)

// Emit calls f.
func (f SinkFunc) Emit(e Event) { f(e) }

// ChannelSink delivers events on a channel until its context ends.
type ChannelSink struct {
	ctx    context.Context
	ch     chan Event
	once   sync.Once
	closed chan struct{}
}

// NewChannelSink creates a sink with the given buffer.
func NewChannelSink(ctx context.Context, buffer int) *ChannelSink {
	return &ChannelSink{ctx: ctx, ch: make(chan Event, buffer), closed: make(chan struct{})}
}

// Events is the receive side.
func (s *ChannelSink) Events() <-chan Event {
	return s.ch
}

// Emit blocks until the event is delivered or the context is done.
// Events emitted after Close are dropped.
func (s *ChannelSink) Emit(e Event) {
	select {
	case <-s.closed:
		return
	default:
	}
	select {
	case s.ch <- e:
	case <-s.ctx.Done():
	}
}

// Close ends the stream. Only the producer may call it.
func (s *ChannelSink) Close() {
	s.once.Do(func() {
		close(s.closed)
		close(s.ch)
	})
}

var printer = message.NewPrinter(language.English)

// emitter enforces a single terminal event.
type emitter struct {
	sink EventSink
	done bool
}

func (em *emitter) progress(format string, args ...interface{}) {
	em.step(EventProgress, printer.Sprintf(format, args...))
}

func (em *emitter) step(t EventType, msg string) {
	if em.done {
		return
	}
	em.sink.Emit(Event{Type: t, Message: msg})
}

func (em *emitter) fail(err error) Event {
	ev := Event{Type: EventError, Error: err.Error()}
	if !em.done {
		em.done = true
		em.sink.Emit(ev)
	}
	return ev
}

func (em *emitter) complete(ev Event) Event {
	ev.Type = EventComplete
	if !em.done {
		em.done = true
		em.sink.Emit(ev)
	}
	return ev
}

// Analyze is the instrumented form of Preview. It emits a progress event
// at each major step and exactly one terminal event, which it also
// returns.
func (p *Pipeline) Analyze(ctx context.Context, url string, sink EventSink) Event {
	em := &emitter{sink: sink}
	usage := llm.NewUsage()

	em.progress("Starting analysis for %s", url)
	em.progress("Fetching page content...")
	res := p.fetcher.Fetch(ctx, url, false)
	if res.Err != nil {
		em.step(EventError, fmt.Sprintf("Fetch failed: %v", res.Err))
		return em.fail(res.Err)
	}
	switch {
	case res.Strategy == scraper.StrategyBrowser:
		em.progress("Static fetch was blocked or incomplete, used headless browser")
		em.progress("Browser fetch successful! Got %d bytes", len(res.HTML))
	case res.Escalated:
		em.progress("Page content seems thin, browser did not return more")
		em.progress("Static fetch successful! Got %d bytes", len(res.HTML))
	default:
		em.progress("Static fetch successful! Got %d bytes", len(res.HTML))
	}

	em.progress("Cleaning HTML (removing scripts, styles, navigation)...")
	compacted, stats := compactor.CompactWithStats(res.HTML, p.config.SynthesisMaxLength)
	em.progress("Cleaned HTML: %d chars (%s)", stats.OutputLength, stats.Pass)

	em.progress("Sending to Claude (%s) for analysis...", p.model)
	em.progress("AI is analyzing page structure and generating selectors...")
	set, err := p.synthesizer.Synthesize(ctx, url, compacted, usage)
	if err != nil {
		if !utils.IsCode(err, utils.ErrCodeParseFailed) {
			em.step(EventError, fmt.Sprintf("Selector generation failed: %v", err))
			return em.fail(err)
		}
		em.step(EventError, "Selector generation failed: reply could not be parsed")
		em.progress("Falling back to direct LLM extraction...")
		set = selectors.Direct(false, directNote)
	}
	if res.Strategy == scraper.StrategyBrowser {
		set.RequiresJavaScript = true
	}
	if err := ctx.Err(); err != nil {
		return em.fail(err)
	}

	em.progress("Extracting products using detected patterns...")
	var products []domain.ProductRecord
	if !set.IsDirect() {
		products = scraper.ExtractProducts(res.HTML, set, url)
		em.progress("Selector-based extraction found %d products", len(products))
		if len(products) == 0 {
			em.progress("No products with selectors, trying direct LLM extraction...")
			set = selectors.Direct(set.RequiresJavaScript, directNote)
		}
	} else {
		em.progress("Using direct LLM extraction...")
	}
	if set.IsDirect() {
		products, err = p.direct.Extract(ctx, res.HTML, url, usage)
		if err != nil {
			em.step(EventError, fmt.Sprintf("Direct extraction failed: %v", err))
			return em.fail(err)
		}
	}

	em.step(EventSuccess, printer.Sprintf("Found %d products!", len(products)))
	em.progress("Used %d API tokens", usage.Total())

	return em.complete(Event{
		Selectors:  &set,
		Products:   limit(products, p.config.PreviewLimit),
		TokensUsed: usage.Total(),
	})
}
