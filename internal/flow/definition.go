package flow

// Definition describes a flow. Pass it to New.
//
// Type parameters:
//   - I: input given when a node starts
//   - S: state, owned exclusively by the running node
//   - E: events reduced by the stepper
//   - O: terminal output, emitted at most once
//   - R: rendering handed to the presentation layer
type Definition[I, S, E, O, R any] struct {
	// Name identifies the flow in traces, and is the default child id when
	// Mount is called with an empty id. Required.
	Name string

	// InitialState computes the first state from the input. Required.
	InitialState func(input I) S

	// Stepper reduces events. Required.
	Stepper Stepper[S, E, O]

	// Feedbacks manage the effects driven by the state.
	Feedbacks []Feedback[S, E]

	// Render produces the rendering for a state. A nil Render yields the
	// zero rendering.
	Render func(state S, ctx *RenderContext[E, O]) R
}

// Flow is an immutable, validated flow definition shared by every node that
// runs it. The pointer is the flow's identity when children are reconciled.
type Flow[I, S, E, O, R any] struct {
	name      string
	initial   func(I) S
	stepper   Stepper[S, E, O]
	feedbacks []Feedback[S, E]
	render    func(S, *RenderContext[E, O]) R
}

// New validates d and returns the flow it describes.
//
// The feedbacks slice is copied so that later mutation by the caller cannot
// change a flow that is already running.
func New[I, S, E, O, R any](d Definition[I, S, E, O, R]) (*Flow[I, S, E, O, R], error) {
	if d.Name == "" {
		return nil, newRuntimeError(ErrCodeInvalidFlow, "", "flow name is required")
	}
	if d.InitialState == nil {
		return nil, newRuntimeError(ErrCodeInvalidFlow, d.Name, "initial state function is required")
	}
	if d.Stepper == nil {
		return nil, newRuntimeError(ErrCodeInvalidFlow, d.Name, "stepper is required")
	}
	for i, fb := range d.Feedbacks {
		if fb == nil {
			return nil, newRuntimeError(ErrCodeInvalidFlow, d.Name, "feedback %d is nil", i)
		}
	}

	var feedbacks []Feedback[S, E]
	if len(d.Feedbacks) > 0 {
		feedbacks = make([]Feedback[S, E], len(d.Feedbacks))
		copy(feedbacks, d.Feedbacks)
	}

	return &Flow[I, S, E, O, R]{
		name:      d.Name,
		initial:   d.InitialState,
		stepper:   d.Stepper,
		feedbacks: feedbacks,
		render:    d.Render,
	}, nil
}

// Must panics if err is non-nil. Intended for package-level definitions:
//
//	var Counter = flow.Must(flow.New(flow.Definition[...]{...}))
func Must[I, S, E, O, R any](f *Flow[I, S, E, O, R], err error) *Flow[I, S, E, O, R] {
	if err != nil {
		panic(err)
	}
	return f
}

// Name returns the flow's name.
func (f *Flow[I, S, E, O, R]) Name() string {
	return f.name
}
