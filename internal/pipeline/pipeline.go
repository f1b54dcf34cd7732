// Package pipeline chains concurrently running stages over buffered
// channels. Each stage owns a goroutine, reads until its input closes or the
// context is cancelled, and closes its output on the way out, so cancelling
// the context unwinds the whole chain.
package pipeline

import (
	"context"
	"log"
)

// stage channel depth; deep enough to ride out scheduling jitter between
// stages without building up unbounded latency
const chanDepth = 20

// TypedStage transforms a stream of T into a stream of U. Process must
// return promptly, doing its work in a goroutine that closes the returned
// channel when in closes or ctx is cancelled.
type TypedStage[T any, U any] interface {
	Process(ctx context.Context, in <-chan T) (<-chan U, error)
}

// Stage is the erased form the pipeline composes.
type Stage interface {
	Run(ctx context.Context, in <-chan any) <-chan any
}

type adapter[T any, U any] struct {
	stage TypedStage[T, U]
}

// Adapt erases a TypedStage so stages of different types can be chained.
// Items of the wrong dynamic type are dropped.
func Adapt[T any, U any](stage TypedStage[T, U]) Stage {
	return &adapter[T, U]{stage: stage}
}

func (a *adapter[T, U]) Run(ctx context.Context, in <-chan any) <-chan any {
	typedIn := make(chan T, chanDepth)
	go func() {
		defer close(typedIn)
		for item := range in {
			if v, ok := item.(T); ok {
				typedIn <- v
			}
		}
	}()

	out := make(chan any, chanDepth)
	typedOut, err := a.stage.Process(ctx, typedIn)
	if err != nil {
		log.Printf("Stage failed to start: %v", err)
		close(out)
		return out
	}
	if typedOut == nil {
		// terminal stage: nothing flows further
		close(out)
		return out
	}

	go func() {
		defer close(out)
		for v := range typedOut {
			select {
			case <-ctx.Done():
				return
			case out <- v:
			}
		}
	}()
	return out
}

// Pipeline is an ordered stage chain.
type Pipeline struct {
	ctx    context.Context
	stages []Stage
}

func New(ctx context.Context) *Pipeline {
	return &Pipeline{ctx: ctx}
}

func (p *Pipeline) AddStage(s Stage) *Pipeline {
	p.stages = append(p.stages, s)
	return p
}

// Run wires the stages together and returns. The first stage receives a
// closed channel; source stages ignore their input entirely.
func (p *Pipeline) Run() {
	if len(p.stages) == 0 {
		return
	}
	seed := make(chan any)
	close(seed)

	var ch <-chan any = seed
	for _, s := range p.stages {
		ch = s.Run(p.ctx, ch)
	}
}
