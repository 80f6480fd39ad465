package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/roach88/stash/internal/engine"
)

// record is the output form of an entity.
type record struct {
	Key   string         `json:"key"`
	Props map[string]any `json:"props"`
}

func newRecord(e *engine.Entity) record {
	return record{Key: e.Key(), Props: e.Props()}
}

// RenderText writes the key and the props as one JSON object, tab separated.
func (r record) RenderText(w io.Writer) error {
	props, err := json.Marshal(r.Props)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s\t%s\n", r.Key, props)
	return err
}

type records []record

func newRecords(es []*engine.Entity) records {
	out := make(records, len(es))
	for i, e := range es {
		out[i] = newRecord(e)
	}
	return out
}

func (rs records) RenderText(w io.Writer) error {
	for _, r := range rs {
		if err := r.RenderText(w); err != nil {
			return err
		}
	}
	return nil
}

// lines renders a string list one item per line.
type lines []string

func (ls lines) RenderText(w io.Writer) error {
	for _, l := range ls {
		if _, err := fmt.Fprintln(w, l); err != nil {
			return err
		}
	}
	return nil
}

// parseAssignments parses field=value arguments. Values that are valid JSON
// (numbers, booleans, null, quoted strings, objects, arrays) are decoded;
// anything else is kept as a plain string.
func parseAssignments(args []string) (map[string]any, error) {
	props := make(map[string]any, len(args))
	for _, arg := range args {
		field, raw, ok := strings.Cut(arg, "=")
		if !ok || field == "" {
			return nil, NewExitError(ExitCommandError, fmt.Sprintf("invalid assignment %q: expected field=value", arg))
		}
		props[field] = parseValue(raw)
	}
	return props, nil
}

func parseValue(raw string) any {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return raw
	}
	return v
}

// matchesAll reports whether every field of want equals the entity's value.
// Values are compared by their JSON encoding, so 1 matches a stored 1.0.
func matchesAll(e *engine.Entity, want map[string]any) bool {
	for field, value := range want {
		got, ok := e.Lookup(field)
		if !ok || !jsonEqual(got, value) {
			return false
		}
	}
	return true
}

func jsonEqual(a, b any) bool {
	ja, err := json.Marshal(a)
	if err != nil {
		return false
	}
	jb, err := json.Marshal(b)
	if err != nil {
		return false
	}
	return string(ja) == string(jb)
}
