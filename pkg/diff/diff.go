// Package diff compares the batch of a new run with the one a previous run
// saved for the same work.
package diff

import (
	"cmp"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/aryann/difflib"

	"bunseki/pkg/schema"
	"bunseki/pkg/utils"
)

type ChangeType int

const (
	Unchanged ChangeType = iota
	Added
	Removed
	Modified
)

type Op int

const (
	Equal Op = iota
	Insert
	Delete
)

type WordDelta struct {
	Op   Op
	Text string
}

type StringDiff struct {
	Old    string
	New    string
	Deltas []WordDelta
}

type FieldDiff struct {
	Path string
	Str  StringDiff
}

type CharacterDiff struct {
	Name       string
	State      ChangeType
	FieldDiffs []FieldDiff
}

type RelationshipDiff struct {
	Key        string
	State      ChangeType
	FieldDiffs []FieldDiff
}

// EmotionCount is the change in how often an emotion type was extracted.
type EmotionCount struct {
	Type     string
	Old, New int
}

type BatchDiff struct {
	Characters    []CharacterDiff
	Relationships []RelationshipDiff
	Emotions      []EmotionCount
}

func Batches(oldB, newB schema.Batch) BatchDiff {
	return BatchDiff{
		Characters:    Characters(oldB.Characters, newB.Characters),
		Relationships: Relationships(oldB.Relationships, newB.Relationships),
		Emotions:      Emotions(oldB.Emotions, newB.Emotions),
	}
}

// Changed reports whether anything differs between the two runs.
func (d BatchDiff) Changed() bool {
	for _, c := range d.Characters {
		if c.State != Unchanged {
			return true
		}
	}
	for _, r := range d.Relationships {
		if r.State != Unchanged {
			return true
		}
	}
	return len(d.Emotions) > 0
}

// Characters pairs characters by normalized name.
func Characters(oldC, newC []schema.Character) []CharacterDiff {
	omap := map[string]schema.Character{}
	nmap := map[string]schema.Character{}
	keys := map[string]struct{}{}

	for _, c := range oldC {
		k := schema.NormalizeName(c.Name)
		if _, ok := omap[k]; !ok {
			omap[k] = c
		}
		keys[k] = struct{}{}
	}
	for _, c := range newC {
		k := schema.NormalizeName(c.Name)
		if _, ok := nmap[k]; !ok {
			nmap[k] = c
		}
		keys[k] = struct{}{}
	}

	out := make([]CharacterDiff, 0, len(keys))
	for k := range keys {
		o, okO := omap[k]
		n, okN := nmap[k]
		switch {
		case okO && !okN:
			out = append(out, CharacterDiff{Name: o.Name, State: Removed})
		case !okO && okN:
			out = append(out, CharacterDiff{Name: n.Name, State: Added, FieldDiffs: characterFields(schema.Character{}, n, true)})
		default:
			fd := characterFields(o, n, false)
			state := Unchanged
			if len(fd) > 0 {
				state = Modified
			}
			out = append(out, CharacterDiff{Name: n.Name, State: state, FieldDiffs: fd})
		}
	}
	slices.SortFunc(out, func(a, b CharacterDiff) int { return cmp.Compare(a.Name, b.Name) })
	return out
}

func characterFields(o, n schema.Character, added bool) []FieldDiff {
	var fd []FieldDiff
	add := func(path, a, b string) {
		switch {
		case added && b != "":
			fd = append(fd, FieldDiff{Path: path, Str: strEq("", b)})
		case !added && a != b:
			fd = append(fd, FieldDiff{Path: path, Str: strDiff(a, b)})
		}
	}
	add("gender", string(o.Gender), string(n.Gender))
	add("age", o.Age, n.Age)
	add("occupation", o.Occupation, n.Occupation)
	add("appearance", o.Appearance, n.Appearance)
	add("personality", o.Personality, n.Personality)
	return fd
}

// Relationships pairs relationships by person pair. Pairs are unordered so
// a relationship re-extracted from the other side counts as the same one.
func Relationships(oldR, newR []schema.Relationship) []RelationshipDiff {
	omap := map[string]schema.Relationship{}
	nmap := map[string]schema.Relationship{}
	keys := map[string]struct{}{}

	for _, r := range oldR {
		k := pairKey(r)
		if _, ok := omap[k]; !ok {
			omap[k] = r
		}
		keys[k] = struct{}{}
	}
	for _, r := range newR {
		k := pairKey(r)
		if _, ok := nmap[k]; !ok {
			nmap[k] = r
		}
		keys[k] = struct{}{}
	}

	out := make([]RelationshipDiff, 0, len(keys))
	for k := range keys {
		o, okO := omap[k]
		n, okN := nmap[k]
		switch {
		case okO && !okN:
			out = append(out, RelationshipDiff{Key: label(o), State: Removed})
		case !okO && okN:
			out = append(out, RelationshipDiff{Key: label(n), State: Added})
		default:
			var fd []FieldDiff
			if o.RelationType != n.RelationType {
				fd = append(fd, FieldDiff{Path: "relation_type", Str: strDiff(o.RelationType, n.RelationType)})
			}
			if o.Direction != n.Direction {
				fd = append(fd, FieldDiff{Path: "direction", Str: strDiff(string(o.Direction), string(n.Direction))})
			}
			state := Unchanged
			if len(fd) > 0 {
				state = Modified
			}
			out = append(out, RelationshipDiff{Key: label(n), State: state, FieldDiffs: fd})
		}
	}
	slices.SortFunc(out, func(a, b RelationshipDiff) int { return cmp.Compare(a.Key, b.Key) })
	return out
}

func pairKey(r schema.Relationship) string {
	a, b := schema.NormalizeName(r.Person1), schema.NormalizeName(r.Person2)
	if b < a {
		a, b = b, a
	}
	return a + "|" + b
}

func label(r schema.Relationship) string {
	arrow := "→"
	if r.Direction == schema.Mutual {
		arrow = "↔"
	}
	return fmt.Sprintf("%s %s %s", r.Person1, arrow, r.Person2)
}

// Emotions lists the emotion types whose count changed.
func Emotions(oldE, newE []schema.Emotion) []EmotionCount {
	counts := map[string]*EmotionCount{}
	get := func(t string) *EmotionCount {
		c, ok := counts[t]
		if !ok {
			c = &EmotionCount{Type: t}
			counts[t] = c
		}
		return c
	}
	for _, e := range oldE {
		get(e.EmotionType).Old++
	}
	for _, e := range newE {
		get(e.EmotionType).New++
	}

	var out []EmotionCount
	for _, c := range counts {
		if c.Old != c.New {
			out = append(out, *c)
		}
	}
	slices.SortFunc(out, func(a, b EmotionCount) int { return cmp.Compare(a.Type, b.Type) })
	return out
}

func strEq(a, b string) StringDiff {
	return StringDiff{Old: a, New: b, Deltas: []WordDelta{{Op: Insert, Text: b}}}
}

func strDiff(a, b string) StringDiff {
	if a == b {
		return StringDiff{Old: a, New: b, Deltas: []WordDelta{{Op: Equal, Text: a}}}
	}
	recs := difflib.Diff(utils.TokenizeWords(a), utils.TokenizeWords(b))
	deltas := make([]WordDelta, 0, len(recs))
	for _, r := range recs {
		switch r.Delta {
		case difflib.Common:
			deltas = append(deltas, WordDelta{Op: Equal, Text: r.Payload})
		case difflib.LeftOnly:
			deltas = append(deltas, WordDelta{Op: Delete, Text: r.Payload})
		case difflib.RightOnly:
			deltas = append(deltas, WordDelta{Op: Insert, Text: r.Payload})
		}
	}
	return StringDiff{Old: a, New: b, Deltas: coalesce(deltas)}
}

// coalesce merges neighbouring deltas of the same op. Whitespace-only common
// runs join whatever surrounds them.
func coalesce(in []WordDelta) []WordDelta {
	out := make([]WordDelta, 0, len(in))
	flush := func(op Op, buf *strings.Builder) {
		if buf.Len() == 0 {
			return
		}
		out = append(out, WordDelta{Op: op, Text: buf.String()})
		buf.Reset()
	}
	var curOp Op = -1
	var buf strings.Builder
	for _, d := range in {
		if strings.TrimSpace(d.Text) == "" && d.Op == Equal {
			buf.WriteString(d.Text)
			continue
		}
		if curOp != d.Op && curOp != -1 {
			flush(curOp, &buf)
		}
		curOp = d.Op
		buf.WriteString(d.Text)
	}
	flush(curOp, &buf)
	return out
}

const (
	ansiReset = "\x1b[0m"
	fgGreen   = "\x1b[32m"
	fgRed     = "\x1b[31m"
	fgYellow  = "\x1b[33m"
	fgCyan    = "\x1b[36m"
	uline     = "\x1b[4m"
	strike    = "\x1b[9m"
)

var tags = map[ChangeType]string{
	Added:    fgGreen + "[+]" + ansiReset,
	Removed:  fgRed + "[-]" + ansiReset,
	Modified: fgYellow + "[~]" + ansiReset,
}

func renderStringDiff(sd StringDiff) string {
	var b strings.Builder
	for _, d := range sd.Deltas {
		switch d.Op {
		case Equal:
			b.WriteString(d.Text)
		case Insert:
			fmt.Fprintf(&b, "%s%s%s%s", fgGreen, uline, d.Text, ansiReset)
		case Delete:
			fmt.Fprintf(&b, "%s%s%s%s", fgRed, strike, d.Text, ansiReset)
		}
	}
	return b.String()
}

// Print writes the changes to w. Unchanged records are left out.
func (d BatchDiff) Print(w io.Writer) {
	if !d.Changed() {
		fmt.Fprintln(w, "前回の結果から変更はありません")
		return
	}
	if hasChanges(d.Characters, func(c CharacterDiff) ChangeType { return c.State }) {
		fmt.Fprintln(w, fgCyan+"登場人物"+ansiReset)
		for _, c := range d.Characters {
			if c.State == Unchanged {
				continue
			}
			fmt.Fprintf(w, "  %s %s\n", tags[c.State], c.Name)
			for _, f := range c.FieldDiffs {
				fmt.Fprintf(w, "    %s: %s\n", f.Path, renderStringDiff(f.Str))
			}
		}
	}
	if hasChanges(d.Relationships, func(r RelationshipDiff) ChangeType { return r.State }) {
		fmt.Fprintln(w, fgCyan+"人物関係"+ansiReset)
		for _, r := range d.Relationships {
			if r.State == Unchanged {
				continue
			}
			fmt.Fprintf(w, "  %s %s\n", tags[r.State], r.Key)
			for _, f := range r.FieldDiffs {
				fmt.Fprintf(w, "    %s: %s\n", f.Path, renderStringDiff(f.Str))
			}
		}
	}
	if len(d.Emotions) > 0 {
		fmt.Fprintln(w, fgCyan+"感情"+ansiReset)
		for _, e := range d.Emotions {
			fmt.Fprintf(w, "  %s: %d → %d\n", e.Type, e.Old, e.New)
		}
	}
}

func hasChanges[T any](items []T, state func(T) ChangeType) bool {
	return slices.ContainsFunc(items, func(t T) bool { return state(t) != Unchanged })
}
