package flow

// Step is the result of reducing one event: either the machine advances to
// a new state, or it completes with an output.
type Step[S, O any] struct {
	state    S
	output   O
	complete bool
}

// Advance continues the machine with state.
func Advance[S, O any](state S) Step[S, O] {
	return Step[S, O]{state: state}
}

// Complete ends the machine with output.
func Complete[S, O any](output O) Step[S, O] {
	return Step[S, O]{output: output, complete: true}
}

// IsComplete reports whether the step is terminal.
func (s Step[S, O]) IsComplete() bool {
	return s.complete
}

// State returns the advanced state; zero for a Complete step.
func (s Step[S, O]) State() S {
	return s.state
}

// Output returns the terminal output; zero for an Advance step.
func (s Step[S, O]) Output() O {
	return s.output
}

// Stepper is the pure transition function of a flow.
//
// It must be total and side-effect free: domain failures are modelled as
// events and handled by returning Advance or Complete, never by panicking.
type Stepper[S, E, O any] func(state S, event E) Step[S, O]

// Chain composes steppers left to right. Each stepper receives the event
// and the state advanced by the previous one. The first Complete
// short-circuits: later steppers are skipped and that Complete is the
// result.
func Chain[S, E, O any](steppers ...Stepper[S, E, O]) Stepper[S, E, O] {
	return func(state S, event E) Step[S, O] {
		step := Advance[S, O](state)
		for _, next := range steppers {
			step = next(step.state, event)
			if step.complete {
				return step
			}
		}
		return step
	}
}
