package observability

import (
	"math"
	"sort"
	"strings"
	"sync"
	"time"
)

// Pipeline stage names shared by the histogram and the rolling window.
const (
	StageASR     = "asr"
	StageContext = "context"
	StageDomain  = "domain"
	StageLLM     = "llm"
	StageTTS     = "tts"
	StageTotal   = "total"
)

type StageStats struct {
	Stage       string  `json:"stage"`
	Samples     int     `json:"samples"`
	LastMS      float64 `json:"last_ms"`
	AvgMS       float64 `json:"avg_ms"`
	P50MS       float64 `json:"p50_ms"`
	P95MS       float64 `json:"p95_ms"`
	P99MS       float64 `json:"p99_ms"`
	TargetP95MS float64 `json:"target_p95_ms,omitempty"`
}

type Indicator struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

type StageSnapshot struct {
	GeneratedAt time.Time    `json:"generated_at"`
	WindowSize  int          `json:"window_size"`
	Stages      []StageStats `json:"stages"`
	Indicators  []Indicator  `json:"indicators,omitempty"`
	ErrorRate   float64      `json:"error_rate"`
	Outcomes    int          `json:"outcomes"`
}

type stageWindow struct {
	mu         sync.RWMutex
	maxSamples int
	stages     map[string]*sampleRing
	indicators map[string]int
	outcomes   outcomeRing
}

type sampleRing struct {
	values []float64
	next   int
	filled bool
	last   float64
}

// outcomeRing remembers whether each of the last N requests failed.
type outcomeRing struct {
	failed []bool
	next   int
	filled bool
	count  int
}

func newStageWindow(maxSamples int) *stageWindow {
	if maxSamples <= 0 {
		maxSamples = 256
	}
	return &stageWindow{
		maxSamples: maxSamples,
		stages:     make(map[string]*sampleRing),
		indicators: make(map[string]int),
		outcomes:   outcomeRing{failed: make([]bool, maxSamples)},
	}
}

func (w *stageWindow) Observe(stage string, ms float64) {
	if w == nil || stage == "" || ms < 0 {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	buf, ok := w.stages[stage]
	if !ok {
		buf = &sampleRing{values: make([]float64, w.maxSamples)}
		w.stages[stage] = buf
	}
	buf.values[buf.next] = ms
	buf.last = ms
	buf.next++
	if buf.next >= len(buf.values) {
		buf.next = 0
		buf.filled = true
	}
}

// ObserveOutcome records one finished request and returns the rolling error rate.
func (w *stageWindow) ObserveOutcome(failed bool) float64 {
	if w == nil {
		return 0
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	r := &w.outcomes
	if r.filled && r.failed[r.next] {
		r.count--
	}
	r.failed[r.next] = failed
	if failed {
		r.count++
	}
	r.next++
	if r.next >= len(r.failed) {
		r.next = 0
		r.filled = true
	}
	return r.rate()
}

func (r *outcomeRing) size() int {
	if r.filled {
		return len(r.failed)
	}
	return r.next
}

func (r *outcomeRing) rate() float64 {
	n := r.size()
	if n == 0 {
		return 0
	}
	return float64(r.count) / float64(n)
}

func (w *stageWindow) ObserveIndicator(name string) {
	if w == nil {
		return
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.indicators[name]++
}

func (w *stageWindow) Snapshot() StageSnapshot {
	w.mu.RLock()
	defer w.mu.RUnlock()

	keys := make([]string, 0, len(w.stages))
	for stage := range w.stages {
		keys = append(keys, stage)
	}
	sort.Strings(keys)

	stages := make([]StageStats, 0, len(keys))
	for _, stage := range keys {
		buf := w.stages[stage]
		n := buf.next
		if buf.filled {
			n = len(buf.values)
		}
		if n <= 0 {
			continue
		}
		samples := make([]float64, n)
		copy(samples, buf.values[:n])
		sort.Float64s(samples)

		sum := 0.0
		for _, v := range samples {
			sum += v
		}
		stages = append(stages, StageStats{
			Stage:       stage,
			Samples:     n,
			LastMS:      round2(buf.last),
			AvgMS:       round2(sum / float64(n)),
			P50MS:       round2(quantile(samples, 0.50)),
			P95MS:       round2(quantile(samples, 0.95)),
			P99MS:       round2(quantile(samples, 0.99)),
			TargetP95MS: stageTargetP95MS(stage),
		})
	}

	names := make([]string, 0, len(w.indicators))
	for name := range w.indicators {
		names = append(names, name)
	}
	sort.Strings(names)
	indicators := make([]Indicator, 0, len(names))
	for _, name := range names {
		if count := w.indicators[name]; count > 0 {
			indicators = append(indicators, Indicator{Name: name, Count: count})
		}
	}

	return StageSnapshot{
		GeneratedAt: time.Now().UTC(),
		WindowSize:  w.maxSamples,
		Stages:      stages,
		Indicators:  indicators,
		ErrorRate:   round2(w.outcomes.rate()),
		Outcomes:    w.outcomes.size(),
	}
}

func (w *stageWindow) Reset() {
	if w == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stages = make(map[string]*sampleRing)
	w.indicators = make(map[string]int)
	w.outcomes = outcomeRing{failed: make([]bool, w.maxSamples)}
}

func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	idx := q * float64(len(sorted)-1)
	lo := int(math.Floor(idx))
	hi := int(math.Ceil(idx))
	if lo == hi {
		return sorted[lo]
	}
	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func stageTargetP95MS(stage string) float64 {
	switch stage {
	case StageASR:
		return 2500
	case StageContext:
		return 50
	case StageDomain:
		return 800
	case StageLLM:
		return 3000
	case StageTTS:
		return 1500
	case StageTotal:
		return 7000
	default:
		return 0
	}
}
