package demo

import (
	"fmt"

	"github.com/roach88/flowtree/internal/flow"
)

// CounterEvent is an event of the counter flow.
type CounterEvent string

const (
	Increment CounterEvent = "increment"
	Decrement CounterEvent = "decrement"
	Back      CounterEvent = "back"
)

// Counter counts up and down (never below zero) and completes on Back.
// Input is the starting count.
var Counter = flow.Must(flow.New(flow.Definition[int, int, CounterEvent, struct{}, Screen]{
	Name:         "counter",
	InitialState: func(start int) int { return max(0, start) },
	Stepper:      stepCounter,
	Render:       renderCounter,
}))

func stepCounter(n int, e CounterEvent) flow.Step[int, struct{}] {
	switch e {
	case Increment:
		return flow.Advance[int, struct{}](n + 1)
	case Decrement:
		return flow.Advance[int, struct{}](max(0, n-1))
	case Back:
		return flow.Complete[int](struct{}{})
	}
	return flow.Advance[int, struct{}](n)
}

func renderCounter(n int, ctx *flow.RenderContext[CounterEvent, struct{}]) Screen {
	return Screen{
		Path:  ctx.Path(),
		Title: "Counter",
		Body:  fmt.Sprintf("count: %d", n),
		Actions: map[string]func(){
			string(Increment): ctx.Action(Increment),
			string(Decrement): ctx.Action(Decrement),
			string(Back):      ctx.Action(Back),
		},
	}
}

func parseCounterEvent(s string) (CounterEvent, error) {
	switch e := CounterEvent(s); e {
	case Increment, Decrement, Back:
		return e, nil
	}
	return "", fmt.Errorf("unknown counter event %q (want increment, decrement or back)", s)
}
