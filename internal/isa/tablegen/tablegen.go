// Package tablegen builds the bit-packed encoding tables read by
// isa.LookupEncList from a declarative description of the encodings of a
// target. Targets run it once at initialization.
package tablegen

import (
	"fmt"
	"math"
	"slices"
	"sort"

	"github.com/tetratelabs/encsel/internal/constanthash"
	"github.com/tetratelabs/encsel/internal/ir"
	"github.com/tetratelabs/encsel/internal/isa"
)

// PredKind is the kind of a Pred.
type PredKind byte

const (
	// PredKindInst is an instruction predicate.
	PredKindInst PredKind = iota
	// PredKindISA is an ISA predicate, i.e. a settings bit.
	PredKindISA
)

// Pred refers to a predicate guarding an encoding.
type Pred struct {
	Kind  PredKind
	Index int
}

// InstPred returns a Pred referring to the i-th instruction predicate.
func InstPred(i int) Pred { return Pred{Kind: PredKindInst, Index: i} }

// ISAPred returns a Pred referring to the i-th ISA predicate.
func ISAPred(i int) Pred { return Pred{Kind: PredKindISA, Index: i} }

// Enc is an encoding guarded by predicates which must all hold.
type Enc struct {
	Recipe int
	Bits   uint16
	Preds  []Pred
}

// List is the encoding list of an opcode with a controlling type, in priority order.
type List struct {
	Type   ir.Type
	Opcode ir.Opcode
	Encs   []Enc
	// HasLegalize is true when Legalize replaces the default of the type
	// once no encoding applies.
	HasLegalize bool
	Legalize    isa.LegalizeCode
}

// Mode is a CPU mode with its own level 1 table.
type Mode struct {
	Name string
	// Default is the legalize code of types without a level 1 entry.
	Default isa.LegalizeCode
	// TypeLegalize holds the legalize code of types which differ from Default.
	TypeLegalize map[ir.Type]isa.LegalizeCode
	Lists        []List
}

// Input describes the encodings of a target.
type Input struct {
	Modes        []Mode
	NumRecipes   int
	NumInstPreds int
	NumLegalize  int
}

// Output holds the generated tables. Level1 has one table per mode.
type Output struct {
	Level1   []isa.Level1Table
	Level2   isa.Level2Table
	EncLists []isa.EncListEntry
}

const (
	// maxSkip is the largest skip distance of a predicate word.
	maxSkip = (math.MaxUint16 - isa.PredStart) >> isa.PredBits
	// maxPreds is the number of predicates a predicate word can refer to.
	maxPreds = isa.PredMask + 1
)

// Generate builds the tables described by in.
func Generate(in *Input) (*Output, error) {
	if n := in.NumInstPreds; n > maxPreds {
		return nil, fmt.Errorf("%d instruction predicates exceed the limit of %d", n, maxPreds)
	}
	if n := 2*in.NumRecipes + in.NumLegalize; n > isa.PredStart {
		return nil, fmt.Errorf("%d recipes and %d legalize codes don't fit before predicate words", in.NumRecipes, in.NumLegalize)
	}

	g := &generator{in: in, lists: map[string]uint32{}}
	out := &Output{}
	for i := range in.Modes {
		l1, err := g.mode(&in.Modes[i])
		if err != nil {
			return nil, fmt.Errorf("mode %s: %w", in.Modes[i].Name, err)
		}
		out.Level1 = append(out.Level1, l1)
	}
	out.Level2 = g.level2
	out.EncLists = g.encLists
	return out, nil
}

type generator struct {
	in       *Input
	level2   isa.Level2Table
	encLists []isa.EncListEntry
	// lists maps the words of emitted lists to their offset.
	lists map[string]uint32
}

func (g *generator) mode(m *Mode) (isa.Level1Table, error) {
	if int(m.Default) >= g.in.NumLegalize {
		return nil, fmt.Errorf("default legalize code %d out of range", m.Default)
	}
	byType := map[ir.Type][]*List{}
	seen := map[[2]int]bool{}
	for i := range m.Lists {
		l := &m.Lists[i]
		key := [2]int{int(l.Type), int(l.Opcode)}
		if seen[key] {
			return nil, fmt.Errorf("duplicate encoding list for %s.%s", l.Opcode, l.Type)
		}
		seen[key] = true
		byType[l.Type] = append(byType[l.Type], l)
	}

	types := make([]ir.Type, 0, len(byType)+len(m.TypeLegalize))
	for t := range byType {
		types = append(types, t)
	}
	for t := range m.TypeLegalize {
		if _, ok := byType[t]; !ok {
			types = append(types, t)
		}
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

	entries := make([]isa.Level1Entry, 0, len(types))
	for _, t := range types {
		legalize := m.Default
		if c, ok := m.TypeLegalize[t]; ok {
			legalize = c
		}
		if int(legalize) >= g.in.NumLegalize {
			return nil, fmt.Errorf("%s: legalize code %d out of range", t, legalize)
		}

		l2, err := g.level2Table(byType[t])
		if err != nil {
			return nil, err
		}
		if len(l2) == 0 {
			// Legalize only: the window is out of bounds.
			entries = append(entries, isa.Level1Entry{Type: t, Log2Len: 0, Legalize: legalize, Offset: math.MaxUint32})
			continue
		}
		offset := uint32(len(g.level2))
		g.level2 = append(g.level2, l2...)
		entries = append(entries, isa.Level1Entry{
			Type:     t,
			Log2Len:  uint8(log2(len(l2))),
			Legalize: legalize,
			Offset:   offset,
		})
	}

	slots := constanthash.Generate(len(entries), func(i int) uint32 { return uint32(entries[i].Type.Index()) })
	ret := make(isa.Level1Table, len(slots))
	for s, i := range slots {
		if i < 0 {
			ret[s] = isa.Level1Entry{Log2Len: isa.Level1Empty, Legalize: m.Default}
		} else {
			ret[s] = entries[i]
		}
	}
	return ret, nil
}

// level2Table emits the lists and returns the level 2 table of one type,
// which is empty if no list has a word.
func (g *generator) level2Table(lists []*List) (isa.Level2Table, error) {
	entries := make([]isa.Level2Entry, 0, len(lists))
	for _, l := range lists {
		words, err := g.encode(l)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", l.Opcode, l.Type, err)
		}
		if len(words) == 0 {
			continue
		}
		entries = append(entries, isa.Level2Entry{Opcode: l.Opcode, Offset: g.emit(words)})
	}
	if len(entries) == 0 {
		return nil, nil
	}
	slots := constanthash.Generate(len(entries), func(i int) uint32 { return uint32(entries[i].Opcode) })
	ret := make(isa.Level2Table, len(slots))
	for s, i := range slots {
		if i >= 0 {
			ret[s] = entries[i]
		}
	}
	return ret, nil
}

// emit appends words unless an identical list exists, and returns its offset.
func (g *generator) emit(words []isa.EncListEntry) uint32 {
	key := fmt.Sprint(words)
	if off, ok := g.lists[key]; ok {
		return off
	}
	off := uint32(len(g.encLists))
	g.encLists = append(g.encLists, words...)
	g.lists[key] = off
	return off
}

type group struct {
	preds []Pred
	encs  []Enc
}

// encode returns the words of l.
//
// Consecutive encodings with the same predicates share one group. Each
// predicate of a group skips the rest of the group when it fails, unless the
// group ends the list, in which case failing stops the iteration.
func (g *generator) encode(l *List) ([]isa.EncListEntry, error) {
	var groups []group
	for _, e := range l.Encs {
		if e.Recipe < 0 || e.Recipe >= g.in.NumRecipes {
			return nil, fmt.Errorf("recipe %d out of range", e.Recipe)
		}
		if n := len(groups); n > 0 && slices.Equal(groups[n-1].preds, e.Preds) {
			groups[n-1].encs = append(groups[n-1].encs, e)
		} else {
			groups = append(groups, group{preds: e.Preds, encs: []Enc{e}})
		}
	}

	// Split groups whose skip distance doesn't fit a predicate word.
	var split []group
	for _, gr := range groups {
		k := len(gr.preds)
		if k > 0 && k-1+2 > maxSkip {
			return nil, fmt.Errorf("%d predicates on one encoding exceed the skip limit", k)
		}
		per := len(gr.encs)
		if k > 0 {
			per = (maxSkip - (k - 1)) / 2
		}
		for len(gr.encs) > per {
			split = append(split, group{preds: gr.preds, encs: gr.encs[:per]})
			gr.encs = gr.encs[per:]
		}
		split = append(split, gr)
	}

	var words []isa.EncListEntry
	for gi, gr := range split {
		lastGroup := gi == len(split)-1
		k, n := len(gr.preds), len(gr.encs)
		for j, p := range gr.preds {
			pred, err := g.predNumber(p)
			if err != nil {
				return nil, err
			}
			skip := (k - 1 - j) + 2*n
			if lastGroup && !l.HasLegalize {
				skip = 0
			}
			words = append(words, isa.EncListEntry(isa.PredStart+skip<<isa.PredBits+pred))
		}
		for ei, e := range gr.encs {
			w := isa.EncListEntry(e.Recipe << 1)
			if lastGroup && ei == n-1 && !l.HasLegalize {
				w |= 1
			}
			words = append(words, w, e.Bits)
		}
	}
	if l.HasLegalize {
		if int(l.Legalize) >= g.in.NumLegalize {
			return nil, fmt.Errorf("legalize code %d out of range", l.Legalize)
		}
		words = append(words, isa.EncListEntry(2*g.in.NumRecipes+int(l.Legalize)))
	}
	return words, nil
}

// predNumber returns the number of p in predicate words. ISA predicates
// are numbered after instruction predicates.
func (g *generator) predNumber(p Pred) (int, error) {
	var n int
	switch p.Kind {
	case PredKindInst:
		if p.Index < 0 || p.Index >= g.in.NumInstPreds {
			return 0, fmt.Errorf("instruction predicate %d out of range", p.Index)
		}
		n = p.Index
	case PredKindISA:
		if p.Index < 0 {
			return 0, fmt.Errorf("ISA predicate %d out of range", p.Index)
		}
		n = g.in.NumInstPreds + p.Index
	default:
		return 0, fmt.Errorf("invalid predicate kind %d", p.Kind)
	}
	if n >= maxPreds {
		return 0, fmt.Errorf("predicate number %d exceeds the limit of %d", n, maxPreds)
	}
	return n, nil
}

func log2(n int) int {
	ret := 0
	for 1<<ret < n {
		ret++
	}
	return ret
}
