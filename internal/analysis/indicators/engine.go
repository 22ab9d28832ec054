// Package indicators computes the technical indicators reported for a single
// stock: moving averages, RSI, support and resistance, volume trend and
// momentum.
package indicators

import (
	"context"
	"sort"
	"sync"

	"marketminds/internal/models"
)

// Indicator is a series-valued indicator over a price window.
type Indicator interface {
	Name() string
	Calculate(candles []models.Candle) ([]float64, error)
	Period() int
}

// Engine evaluates registered indicators on a bounded set of goroutines.
type Engine struct {
	workers int

	mu         sync.RWMutex
	indicators []Indicator
}

// NewEngine returns an engine that runs at most workers indicators at once.
func NewEngine(workers int) *Engine {
	if workers <= 0 {
		workers = 4
	}
	return &Engine{workers: workers}
}

// RegisterIndicator adds ind, replacing any indicator with the same name.
func (e *Engine) RegisterIndicator(ind Indicator) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, existing := range e.indicators {
		if existing.Name() == ind.Name() {
			e.indicators[i] = ind
			return
		}
	}
	e.indicators = append(e.indicators, ind)
}

type outcome struct {
	values []float64
	err    error
}

// CalculateAll evaluates every registered indicator over candles. An
// indicator that fails, typically because the window is shorter than its
// period, is absent from the result.
func (e *Engine) CalculateAll(ctx context.Context, candles []models.Candle) (map[string][]float64, error) {
	e.mu.RLock()
	inds := append([]Indicator(nil), e.indicators...)
	e.mu.RUnlock()

	outcomes := make([]outcome, len(inds))
	next := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < min(e.workers, len(inds)); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range next {
				outcomes[i].values, outcomes[i].err = inds[i].Calculate(candles)
			}
		}()
	}

feed:
	for i := range inds {
		select {
		case next <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(next)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	results := make(map[string][]float64, len(inds))
	for i, o := range outcomes {
		if o.err == nil {
			results[inds[i].Name()] = o.values
		}
	}
	return results, nil
}

// ListIndicators returns the registered names in sorted order.
func (e *Engine) ListIndicators() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	names := make([]string, len(e.indicators))
	for i, ind := range e.indicators {
		names[i] = ind.Name()
	}
	sort.Strings(names)
	return names
}
