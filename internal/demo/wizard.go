package demo

import (
	"fmt"

	"github.com/roach88/flowtree/internal/flow"
)

// WizardEvent is an event of the wizard flow.
type WizardEvent string

const (
	// CounterDone is forwarded from the counter child's output.
	CounterDone WizardEvent = "counter-done"
	// Restart starts another counter round from the summary.
	Restart WizardEvent = "restart"
	// Finish completes the wizard with the number of rounds.
	Finish WizardEvent = "finish"
)

// WizardState is the wizard's state.
type WizardState struct {
	Counting bool
	Rounds   int
	Start    int
}

// Wizard runs counter rounds. While counting it mounts Counter under the id
// "counter"; when the counter completes, the wizard moves to a summary that
// offers another round or finishing. Output is the number of rounds.
var Wizard = flow.Must(flow.New(flow.Definition[int, WizardState, WizardEvent, int, Screen]{
	Name: "wizard",
	InitialState: func(start int) WizardState {
		return WizardState{Counting: true, Start: start}
	},
	Stepper: stepWizard,
	Render:  renderWizard,
}))

func stepWizard(s WizardState, e WizardEvent) flow.Step[WizardState, int] {
	switch {
	case e == CounterDone && s.Counting:
		s.Counting = false
		s.Rounds++
	case e == Restart && !s.Counting:
		s.Counting = true
	case e == Finish && !s.Counting:
		return flow.Complete[WizardState](s.Rounds)
	}
	return flow.Advance[WizardState, int](s)
}

func renderWizard(s WizardState, ctx *flow.RenderContext[WizardEvent, int]) Screen {
	if s.Counting {
		counter := flow.Mount(ctx, "counter", Counter, s.Start, func(struct{}) WizardEvent {
			return CounterDone
		})
		return Screen{
			Path:     ctx.Path(),
			Title:    "Wizard",
			Body:     fmt.Sprintf("round %d", s.Rounds+1),
			Children: []Screen{counter},
		}
	}
	return Screen{
		Path:  ctx.Path(),
		Title: "Wizard",
		Body:  fmt.Sprintf("rounds completed: %d", s.Rounds),
		Actions: map[string]func(){
			string(Restart): ctx.Action(Restart),
			string(Finish):  ctx.Action(Finish),
		},
	}
}

func parseWizardEvent(s string) (WizardEvent, error) {
	switch e := WizardEvent(s); e {
	case CounterDone, Restart, Finish:
		return e, nil
	}
	return "", fmt.Errorf("unknown wizard event %q (want restart or finish)", s)
}
