package demo

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Screen is the rendering of every demo flow.
type Screen struct {
	Path     string
	Title    string
	Body     string
	Actions  map[string]func()
	Children []Screen
}

// ActionNames returns the screen's action names, sorted.
func (s Screen) ActionNames() []string {
	return slices.Sorted(maps.Keys(s.Actions))
}

// Find returns the screen rendered at path, searching depth-first.
func (s *Screen) Find(path string) (*Screen, bool) {
	if s.Path == path {
		return s, true
	}
	for i := range s.Children {
		if found, ok := s.Children[i].Find(path); ok {
			return found, true
		}
	}
	return nil, false
}

// String renders the screen tree as indented text, one screen per line.
func (s Screen) String() string {
	var b strings.Builder
	s.write(&b, 0)
	return b.String()
}

func (s Screen) write(b *strings.Builder, depth int) {
	indent := strings.Repeat("  ", depth)
	fmt.Fprintf(b, "%s[%s] %s", indent, s.Path, s.Title)
	if s.Body != "" {
		fmt.Fprintf(b, ": %s", s.Body)
	}
	if len(s.Actions) > 0 {
		fmt.Fprintf(b, " (%s)", strings.Join(s.ActionNames(), ", "))
	}
	b.WriteByte('\n')
	for _, c := range s.Children {
		c.write(b, depth+1)
	}
}

// Contains reports whether text appears anywhere in the screen tree.
func (s Screen) Contains(text string) bool {
	return strings.Contains(s.String(), text)
}

type screenJSON struct {
	Path     string   `json:"path"`
	Title    string   `json:"title"`
	Body     string   `json:"body,omitempty"`
	Actions  []string `json:"actions,omitempty"`
	Children []Screen `json:"children,omitempty"`
}

// MarshalJSON encodes the screen with action names instead of callbacks.
func (s Screen) MarshalJSON() ([]byte, error) {
	return json.Marshal(screenJSON{
		Path:     s.Path,
		Title:    s.Title,
		Body:     s.Body,
		Actions:  s.ActionNames(),
		Children: s.Children,
	})
}
