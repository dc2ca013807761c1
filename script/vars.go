package script

import (
	"fmt"
	"strings"
)

// Variable is one named script value. Get may itself consume a
// parenthesized index (bitsets and lists are functions of their index).
type Variable interface {
	Name() string
	Type() string
	Desc() string
	Get(p *parser) (uint32, error)
	Set(p *parser) error
}

// intVar accesses a single integer through get/set closures, which is
// how configuration fields are exposed without copying them.
type intVar struct {
	name string
	desc string
	get  func() uint32
	set  func(uint32)
}

func (v *intVar) Name() string { return v.name }
func (v *intVar) Type() string { return "int" }
func (v *intVar) Desc() string { return v.desc }

func (v *intVar) Get(*parser) (uint32, error) { return v.get(), nil }

func (v *intVar) Set(p *parser) error {
	val, err := p.expression(0, 0)
	if err != nil {
		return p.errorf("expected numeric <value>")
	}
	v.set(val)
	return nil
}

// newUserVar makes a plain integer variable with its own storage, the
// kind SET creates on first assignment.
func newUserVar(name string) *intVar {
	var storage uint32
	return &intVar{
		name: strings.ToUpper(name),
		desc: "user variable",
		get:  func() uint32 { return storage },
		set:  func(v uint32) { storage = v },
	}
}

// bitsetVar is an indexed bit array: NAME(i) in expressions, SET NAME
// <index> <value> for assignment.
type bitsetVar struct {
	name   string
	desc   string
	max    uint32
	test   func(idx uint32) bool
	assign func(idx uint32, val bool)
}

func (v *bitsetVar) Name() string { return v.name }
func (v *bitsetVar) Type() string { return "bitset" }
func (v *bitsetVar) Desc() string { return v.desc }

func (v *bitsetVar) Get(p *parser) (uint32, error) {
	args, err := p.args(v.name, 1)
	if err != nil {
		return 0, err
	}
	if args[0] >= v.max {
		return 0, p.errorf("index out of range (0..%d)", v.max-1)
	}
	if v.test(args[0]) {
		return 1, nil
	}
	return 0, nil
}

func (v *bitsetVar) Set(p *parser) error {
	idx, err := p.expression(0, 0)
	if err != nil {
		return p.errorf("expected <index> <value>")
	}
	val, err := p.expression(0, 0)
	if err != nil {
		return p.errorf("expected <index> <value>")
	}
	if idx >= v.max {
		return p.errorf("index out of range (0..%d)", v.max-1)
	}
	v.assign(idx, val != 0)
	return nil
}

// intListVar is a variable-length uint32 list: NAME(i) reads one
// element, SET NAME <v1> <v2> ... replaces the whole list.
type intListVar struct {
	name string
	desc string
	max  int
	get  func() []uint32
	set  func([]uint32)
}

func (v *intListVar) Name() string { return v.name }
func (v *intListVar) Type() string { return "int list" }
func (v *intListVar) Desc() string { return v.desc }

func (v *intListVar) Get(p *parser) (uint32, error) {
	args, err := p.args(v.name, 1)
	if err != nil {
		return 0, err
	}
	list := v.get()
	if int(args[0]) >= len(list) {
		return 0, p.errorf("index out of range (0..%d)", len(list))
	}
	return list[args[0]], nil
}

func (v *intListVar) Set(p *parser) error {
	var list []uint32
	for len(list) < v.max {
		if p.peek() == 0 {
			break
		}
		val, err := p.expression(0, 0)
		if err != nil {
			return err
		}
		list = append(list, val)
	}
	v.set(list)
	return nil
}

func boolToUint32(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

func fmtVarList(vars []Variable) []string {
	out := []string{
		"Name\tType\tDescription",
		"-----------------------------------------------------------",
	}
	for _, v := range vars {
		out = append(out, fmt.Sprintf("%s\t%s\t%s", v.Name(), v.Type(), v.Desc()))
	}
	return out
}
