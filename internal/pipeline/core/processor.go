package core

// EmitFunc forwards a single item to the next stage in the chain. A stage
// calls it zero or more times per input item (zero to drop, more than one to
// fan out, e.g. GopSort flushing a buffered GOP).
type EmitFunc[T any] func(item T) error

// Processor is the contract every repair-pipeline stage implements. It is
// intentionally minimal: a stage receives one item at a time and an emit
// callback that forwards into the next stage's Process. Composition happens
// by nesting emit closures, never by a stage knowing about its neighbours.
type Processor[T any] interface {
	// Process handles a single input item, calling emit for each output item
	// it produces. Returning a non-nil error aborts the whole pipeline.
	Process(item T, emit EmitFunc[T]) error

	// Finish is called once after the final input item has been processed.
	// Stages with internal buffers (GopSort, Defragment) flush them here.
	Finish(emit EmitFunc[T]) error

	// Name identifies the stage for logging and StageError wrapping.
	Name() string
}

// Chain links stages into a single Processor whose Process/Finish calls
// cascade emit callbacks through every stage in order. The resulting
// Processor can itself be wrapped in another Chain, so pipelines compose.
type Chain[T any] struct {
	stages []Processor[T]
}

// NewChain builds a Chain from stages in processing order.
func NewChain[T any](stages ...Processor[T]) *Chain[T] {
	return &Chain[T]{stages: stages}
}

// Run drains a sequence of inputs through every stage and calls out for each
// final output item. It is the synchronous, single-goroutine driver required
// by the concurrency model: no stage here ever spawns a goroutine of its own.
func (c *Chain[T]) Run(inputs []T, out EmitFunc[T]) error {
	chained := c.cascade(out)
	for _, item := range inputs {
		if err := chained[0](item); err != nil {
			return err
		}
	}
	return c.finish(chained)
}

// Feed processes a single item through the chain; callers that source items
// from a channel rather than a slice use this directly per iteration.
func (c *Chain[T]) Feed(item T, out EmitFunc[T]) error {
	chained := c.cascade(out)
	return chained[0](item)
}

// FinishAll runs Finish on every stage in order, in the same cascading
// fashion as Process, so a stage's flushed items still pass through every
// downstream stage.
func (c *Chain[T]) FinishAll(out EmitFunc[T]) error {
	chained := c.cascade(out)
	return c.finish(chained)
}

func (c *Chain[T]) cascade(out EmitFunc[T]) []EmitFunc[T] {
	chained := make([]EmitFunc[T], len(c.stages)+1)
	chained[len(c.stages)] = out
	for i := len(c.stages) - 1; i >= 0; i-- {
		stage := c.stages[i]
		next := chained[i+1]
		chained[i] = func(item T) error {
			return wrapStageErr(stage, stage.Process(item, next))
		}
	}
	return chained
}

func (c *Chain[T]) finish(chained []EmitFunc[T]) error {
	for i, stage := range c.stages {
		if err := wrapStageErr(stage, stage.Finish(chained[i+1])); err != nil {
			return err
		}
	}
	return nil
}

func wrapStageErr[T any](stage Processor[T], err error) error {
	if err == nil {
		return nil
	}
	return NewStageError(stage.Name(), err)
}
