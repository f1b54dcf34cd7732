package pipeline

import (
	"context"
	"testing"
	"time"
)

type emitStage struct {
	values []int
}

func (s *emitStage) Process(ctx context.Context, in <-chan any) (<-chan int, error) {
	out := make(chan int, chanDepth)
	go func() {
		defer close(out)
		for _, v := range s.values {
			select {
			case <-ctx.Done():
				return
			case out <- v:
			}
		}
	}()
	return out, nil
}

type doubleStage struct{}

func (s *doubleStage) Process(ctx context.Context, in <-chan int) (<-chan int, error) {
	out := make(chan int, chanDepth)
	go func() {
		defer close(out)
		for v := range in {
			select {
			case <-ctx.Done():
				return
			case out <- v * 2:
			}
		}
	}()
	return out, nil
}

type collectStage struct {
	got  []int
	done chan struct{}
}

func (s *collectStage) Process(ctx context.Context, in <-chan int) (<-chan any, error) {
	go func() {
		defer close(s.done)
		for v := range in {
			s.got = append(s.got, v)
		}
	}()
	return nil, nil
}

func TestPipelineChainsStages(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sink := &collectStage{done: make(chan struct{})}
	New(ctx).
		AddStage(Adapt[any, int](&emitStage{values: []int{1, 2, 3}})).
		AddStage(Adapt[int, int](&doubleStage{})).
		AddStage(Adapt[int, any](sink)).
		Run()

	select {
	case <-sink.done:
	case <-time.After(2 * time.Second):
		t.Fatal("pipeline did not drain")
	}

	want := []int{2, 4, 6}
	if len(sink.got) != len(want) {
		t.Fatalf("got %v, want %v", sink.got, want)
	}
	for i := range want {
		if sink.got[i] != want[i] {
			t.Fatalf("got %v, want %v", sink.got, want)
		}
	}
}

func TestAdapterDropsWrongType(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	in := make(chan any, 4)
	in <- 1
	in <- "not an int"
	in <- 2
	close(in)

	out := Adapt[int, int](&doubleStage{}).Run(ctx, in)

	var got []int
	for v := range out {
		got = append(got, v.(int))
	}
	if len(got) != 2 || got[0] != 2 || got[1] != 4 {
		t.Fatalf("got %v, want [2 4]", got)
	}
}
