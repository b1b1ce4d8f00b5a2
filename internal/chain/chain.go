package chain

import "sort"

// Next hands an exchange to the rest of the chain.
type Next func(*Exchange) error

// Stage is a single filter in the chain.
type Stage interface {
	// Name returns the unique identifier for this stage.
	Name() string
	// Order positions the stage; lower values run first.
	Order() int
	// Filter processes the exchange and calls next to continue. Returning
	// without calling next ends the chain.
	Filter(ex *Exchange, next Next) error
}

// Chain runs stages in order and finishes with a terminal handler.
type Chain struct {
	stages   []Stage
	terminal Next
}

// New builds a chain. Stages are sorted by Order; stages sharing an order keep
// the order they were passed in.
func New(terminal Next, stages ...Stage) *Chain {
	sorted := make([]Stage, 0, len(stages))
	for _, s := range stages {
		if s != nil {
			sorted = append(sorted, s)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Order() < sorted[j].Order()
	})

	return &Chain{
		stages:   sorted,
		terminal: terminal,
	}
}

// Run executes the chain for ex and returns the first error that propagates
// back out of it.
func (c *Chain) Run(ex *Exchange) error {
	return c.next(0)(ex)
}

func (c *Chain) next(i int) Next {
	if i >= len(c.stages) {
		if c.terminal == nil {
			return func(*Exchange) error { return nil }
		}
		return c.terminal
	}
	stage := c.stages[i]
	return func(ex *Exchange) error {
		return stage.Filter(ex, c.next(i+1))
	}
}

// Stages returns the stage names in execution order.
func (c *Chain) Stages() []string {
	names := make([]string, len(c.stages))
	for i, s := range c.stages {
		names[i] = s.Name()
	}
	return names
}
