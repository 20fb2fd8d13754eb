// Package constants evaluates manifest-declared constants into cty values:
// scalars, point and color records, nested collections, deferred external
// data, and alias references resolved lazily on every access.
package constants

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
)

// Tag discriminates a constant declaration.
type Tag string

// The declaration tags accepted in a manifest's constants table.
const (
	TagNumber    Tag = "number"
	TagBool      Tag = "bool"
	TagString    Tag = "string"
	TagPoint2    Tag = "point2"
	TagPoint3    Tag = "point3"
	TagColorRGB  Tag = "color_rgb"
	TagColorRGBA Tag = "color_rgba"
	TagColorHSV  Tag = "color_hsv"
	TagColorHSVA Tag = "color_hsva"
	TagObject    Tag = "object"
	TagArray     Tag = "array"
	TagRaw       Tag = "raw"
	TagTable     Tag = "table"
	TagAlias     Tag = "alias"
)

// Decl is one constant declaration from the manifest.
type Decl struct {
	Name      string
	Tag       Tag
	Value     cty.Value
	Transpose bool
}

// External describes a fetch a declaration needs before it is resolved.
type External struct {
	URL       string
	Table     bool
	Transpose bool
}

// CycleError is a fatal alias cycle, reporting the full chain.
type CycleError struct {
	Chain []string
}

// Error implements the error interface.
func (e *CycleError) Error() string {
	return fmt.Sprintf("constant reference cycle: %s", strings.Join(e.Chain, " -> "))
}

type entry struct {
	val     cty.Value
	ref     string // target name when the entry is an alias reference marker
	pending bool   // external data not yet fetched
}

// Set holds the declared constants of one load session.
type Set struct {
	entries map[string]*entry
}

// NewSet creates an empty constant set.
func NewSet() *Set {
	return &Set{entries: map[string]*entry{}}
}

// Declare evaluates one declaration. Raw and table declarations return a
// non-nil External the caller must fetch and hand back through
// ResolveExternal; alias declarations are stored as reference markers and
// re-read their target on every Get.
func (s *Set) Declare(d Decl) (*External, error) {
	if _, ok := s.entries[d.Name]; ok {
		return nil, fmt.Errorf("constant %q declared twice", d.Name)
	}

	switch d.Tag {
	case TagAlias:
		target, err := asString(d.Value)
		if err != nil {
			return nil, fmt.Errorf("constant %q: alias target: %w", d.Name, err)
		}
		s.entries[d.Name] = &entry{ref: target}
		return nil, nil

	case TagRaw, TagTable:
		url, err := asString(d.Value)
		if err != nil {
			return nil, fmt.Errorf("constant %q: external source: %w", d.Name, err)
		}
		s.entries[d.Name] = &entry{pending: true}
		return &External{URL: url, Table: d.Tag == TagTable, Transpose: d.Transpose}, nil
	}

	val, err := evaluate(d.Tag, d.Value)
	if err != nil {
		return nil, fmt.Errorf("constant %q: %w", d.Name, err)
	}
	s.entries[d.Name] = &entry{val: val}
	return nil, nil
}

// ResolveExternal materializes a pending external constant.
func (s *Set) ResolveExternal(name string, v cty.Value) {
	if e, ok := s.entries[name]; ok && e.pending {
		e.val = v
		e.pending = false
	}
}

// Get resolves a constant by name, walking alias chains. The chain is
// re-traversed on every access rather than memoized, so a target updated
// during a debug session is observed consistently.
func (s *Set) Get(name string) (cty.Value, error) {
	visited := map[string]bool{}
	chain := []string{name}
	for {
		e, ok := s.entries[name]
		if !ok {
			return cty.NilVal, fmt.Errorf("constant %q is not declared", name)
		}
		if e.ref == "" {
			if e.pending {
				return cty.NilVal, fmt.Errorf("constant %q is still loading", name)
			}
			return e.val, nil
		}
		if visited[name] {
			return cty.NilVal, &CycleError{Chain: chain}
		}
		visited[name] = true
		name = e.ref
		chain = append(chain, name)
	}
}

// Names returns the declared constant names in no particular order.
func (s *Set) Names() []string {
	names := make([]string, 0, len(s.entries))
	for n := range s.entries {
		names = append(names, n)
	}
	return names
}

// CheckCycles walks every alias chain eagerly so a cyclic manifest fails
// the load instead of the first debug read.
func (s *Set) CheckCycles() error {
	for name, e := range s.entries {
		if e.ref == "" {
			continue
		}
		if _, err := s.Get(name); err != nil {
			var cycle *CycleError
			if errors.As(err, &cycle) {
				return err
			}
		}
	}
	return nil
}

func evaluate(tag Tag, v cty.Value) (cty.Value, error) {
	switch tag {
	case TagNumber:
		return convertTo(v, cty.Number)
	case TagBool:
		return convertTo(v, cty.Bool)
	case TagString:
		return convertTo(v, cty.String)
	case TagPoint2:
		ns, err := numbers(v, 2)
		if err != nil {
			return cty.NilVal, err
		}
		return cty.ObjectVal(map[string]cty.Value{
			"x": cty.NumberFloatVal(ns[0]),
			"y": cty.NumberFloatVal(ns[1]),
		}), nil
	case TagPoint3:
		ns, err := numbers(v, 3)
		if err != nil {
			return cty.NilVal, err
		}
		return cty.ObjectVal(map[string]cty.Value{
			"x": cty.NumberFloatVal(ns[0]),
			"y": cty.NumberFloatVal(ns[1]),
			"z": cty.NumberFloatVal(ns[2]),
		}), nil
	case TagColorRGB:
		ns, err := numbers(v, 3)
		if err != nil {
			return cty.NilVal, err
		}
		return colorVal(ns[0], ns[1], ns[2], 1), nil
	case TagColorRGBA:
		ns, err := numbers(v, 4)
		if err != nil {
			return cty.NilVal, err
		}
		return colorVal(ns[0], ns[1], ns[2], ns[3]), nil
	case TagColorHSV:
		ns, err := numbers(v, 3)
		if err != nil {
			return cty.NilVal, err
		}
		r, g, b := hsvToRGB(ns[0], ns[1], ns[2])
		return colorVal(r, g, b, 1), nil
	case TagColorHSVA:
		ns, err := numbers(v, 4)
		if err != nil {
			return cty.NilVal, err
		}
		r, g, b := hsvToRGB(ns[0], ns[1], ns[2])
		return colorVal(r, g, b, ns[3]), nil
	case TagObject, TagArray:
		return v, nil
	}
	return cty.NilVal, fmt.Errorf("unknown constant tag %q", tag)
}

func convertTo(v cty.Value, t cty.Type) (cty.Value, error) {
	out, err := convert.Convert(v, t)
	if err != nil {
		return cty.NilVal, fmt.Errorf("cannot read value as %s: %w", t.FriendlyName(), err)
	}
	return out, nil
}

func asString(v cty.Value) (string, error) {
	out, err := convertTo(v, cty.String)
	if err != nil {
		return "", err
	}
	return out.AsString(), nil
}

// numbers reads a tuple/list value as exactly n floats.
func numbers(v cty.Value, n int) ([]float64, error) {
	if !v.Type().IsTupleType() && !v.Type().IsListType() {
		return nil, fmt.Errorf("expected a list of %d numbers", n)
	}
	if v.LengthInt() != n {
		return nil, fmt.Errorf("expected %d components, got %d", n, v.LengthInt())
	}
	out := make([]float64, 0, n)
	for it := v.ElementIterator(); it.Next(); {
		_, ev := it.Element()
		num, err := convertTo(ev, cty.Number)
		if err != nil {
			return nil, err
		}
		f, _ := num.AsBigFloat().Float64()
		out = append(out, f)
	}
	return out, nil
}

// colorVal builds the canonical color record: 0-255 channels, 0-1 alpha.
func colorVal(r, g, b, a float64) cty.Value {
	return cty.ObjectVal(map[string]cty.Value{
		"r": cty.NumberFloatVal(r),
		"g": cty.NumberFloatVal(g),
		"b": cty.NumberFloatVal(b),
		"a": cty.NumberFloatVal(a),
	})
}

// hsvToRGB converts hue in degrees and s/v in [0,1] to 0-255 channels.
func hsvToRGB(h, s, v float64) (r, g, b float64) {
	h = math.Mod(math.Mod(h, 360)+360, 360)
	c := v * s
	x := c * (1 - math.Abs(math.Mod(h/60, 2)-1))
	m := v - c
	var rf, gf, bf float64
	switch {
	case h < 60:
		rf, gf, bf = c, x, 0
	case h < 120:
		rf, gf, bf = x, c, 0
	case h < 180:
		rf, gf, bf = 0, c, x
	case h < 240:
		rf, gf, bf = 0, x, c
	case h < 300:
		rf, gf, bf = x, 0, c
	default:
		rf, gf, bf = c, 0, x
	}
	return math.Round((rf + m) * 255), math.Round((gf + m) * 255), math.Round((bf + m) * 255)
}
