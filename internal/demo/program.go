package demo

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/flowtree/internal/flow"
)

// Program drives one flow tree through plain strings: textual input and
// events, and taps on the actions of the rendered screens.
type Program interface {
	// Name returns the flow name.
	Name() string

	// RunID returns the tree's run id.
	RunID() string

	// Start parses input and starts the tree.
	Start(ctx context.Context, input string) error

	// Send parses event and sends it to the root node.
	Send(event string) error

	// Render runs a render pass.
	Render() (Screen, error)

	// Tap renders, finds the screen at path and invokes its action.
	Tap(path, action string) error

	// Output returns the root's printable output once it completed.
	Output() (string, bool)

	// Done is closed when the root completes or the tree is disposed.
	Done() <-chan struct{}

	// Dispose tears the tree down.
	Dispose()
}

type program[I, S, E, O any] struct {
	name       string
	tree       *flow.Tree[I, S, E, O, Screen]
	parseInput func(string) (I, error)
	parseEvent func(string) (E, error)

	mu     sync.Mutex
	output *string
}

func newProgram[I, S, E, O any](
	f *flow.Flow[I, S, E, O, Screen],
	parseInput func(string) (I, error),
	parseEvent func(string) (E, error),
	opts []flow.Option,
) *program[I, S, E, O] {
	return &program[I, S, E, O]{
		name:       f.Name(),
		tree:       flow.NewTree(f, opts...),
		parseInput: parseInput,
		parseEvent: parseEvent,
	}
}

func (p *program[I, S, E, O]) Name() string { return p.name }

func (p *program[I, S, E, O]) RunID() string { return p.tree.RunID() }

func (p *program[I, S, E, O]) Start(ctx context.Context, input string) error {
	in, err := p.parseInput(input)
	if err != nil {
		return fmt.Errorf("%s input: %w", p.name, err)
	}
	return p.tree.Start(ctx, in)
}

func (p *program[I, S, E, O]) Send(event string) error {
	e, err := p.parseEvent(event)
	if err != nil {
		return err
	}
	p.tree.Send(e)
	return nil
}

func (p *program[I, S, E, O]) Render() (Screen, error) {
	return p.tree.Render()
}

func (p *program[I, S, E, O]) Tap(path, action string) error {
	screen, err := p.Render()
	if err != nil {
		return err
	}
	path = norm.NFC.String(path)
	target, ok := screen.Find(path)
	if !ok {
		return fmt.Errorf("no screen rendered at %q", path)
	}
	act, ok := target.Actions[action]
	if !ok {
		return fmt.Errorf("screen %q has no action %q (have: %s)", path, action, strings.Join(target.ActionNames(), ", "))
	}
	act()
	return nil
}

func (p *program[I, S, E, O]) Output() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.output == nil {
		select {
		case o := <-p.tree.Output():
			s := fmt.Sprint(o)
			p.output = &s
		default:
			return "", false
		}
	}
	return *p.output, true
}

func (p *program[I, S, E, O]) Done() <-chan struct{} { return p.tree.Done() }

func (p *program[I, S, E, O]) Dispose() { p.tree.Dispose() }

// Entry describes a registered flow.
type Entry struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Input       string `json:"input"`
	Events      string `json:"events"`
}

type registration struct {
	Entry
	build func(opts []flow.Option) Program
}

var registry = map[string]registration{
	"counter": {
		Entry: Entry{
			Name:        "counter",
			Description: "counts up and down, completes on back",
			Input:       "starting count (default 0)",
			Events:      "increment, decrement, back",
		},
		build: func(opts []flow.Option) Program {
			return newProgram(Counter, parseCount, parseCounterEvent, opts)
		},
	},
	"wizard": {
		Entry: Entry{
			Name:        "wizard",
			Description: "runs counter rounds as a child flow, outputs the number of rounds",
			Input:       "starting count of each round (default 0)",
			Events:      "restart, finish (the counter child is driven with taps)",
		},
		build: func(opts []flow.Option) Program {
			return newProgram(Wizard, parseCount, parseWizardEvent, opts)
		},
	},
	"downloads": {
		Entry: Entry{
			Name:        "downloads",
			Description: "fetches files concurrently, one effect per file",
			Input:       "comma-separated file names to request at start",
			Events:      "request <name>, cancel <name>, close",
		},
		build: func(opts []flow.Option) Program {
			return newProgram(NewDownloads(FakeFetcher, false), parseNames, parseDownloadEvent, opts)
		},
	},
}

// Lookup builds a program for the named flow. opts configure its tree.
func Lookup(name string, opts ...flow.Option) (Program, error) {
	reg, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown flow %q (available: %s)", name, strings.Join(Names(), ", "))
	}
	return reg.build(opts), nil
}

// Names returns the registered flow names, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Catalog describes every registered flow, sorted by name.
func Catalog() []Entry {
	entries := make([]Entry, 0, len(registry))
	for _, name := range Names() {
		entries = append(entries, registry[name].Entry)
	}
	return entries
}

func parseCount(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid count %q: %w", s, err)
	}
	return n, nil
}

func parseNames(s string) ([]string, error) {
	var names []string
	for _, n := range strings.Split(s, ",") {
		if n = strings.TrimSpace(n); n != "" {
			names = append(names, n)
		}
	}
	return names, nil
}
