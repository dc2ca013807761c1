package script

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// parser walks one command line. Commands receive it positioned right
// after their keyword.
type parser struct {
	env *Env
	s   string
	pos int
}

func (p *parser) errorf(format string, args ...any) error {
	return fmt.Errorf("line %d: %s", p.env.line, fmt.Sprintf(format, args...))
}

func (p *parser) skipSpace() {
	for p.pos < len(p.s) && unicode.IsSpace(rune(p.s[p.pos])) {
		p.pos++
	}
}

// peek returns the next non-space character without consuming it, or 0
// at end of line.
func (p *parser) peek() byte {
	p.skipSpace()
	if p.pos >= len(p.s) {
		return 0
	}
	return p.s[p.pos]
}

// token extracts the next argument. In expression mode a token is a run
// of alphanumerics, otherwise everything up to the next space; either
// way quotes group.
func (p *parser) token(forExpr bool) string {
	p.skipSpace()
	if p.pos >= len(p.s) {
		return ""
	}

	if c := p.s[p.pos]; c == '"' || c == '\'' {
		p.pos++
		start := p.pos
		for p.pos < len(p.s) && p.s[p.pos] != c {
			p.pos++
		}
		tok := p.s[start:p.pos]
		if p.pos < len(p.s) {
			p.pos++
		}
		return tok
	}

	start := p.pos
	for p.pos < len(p.s) {
		c := rune(p.s[p.pos])
		if forExpr {
			if !unicode.IsLetter(c) && !unicode.IsDigit(c) && c != '_' {
				break
			}
		} else if unicode.IsSpace(c) {
			break
		}
		p.pos++
	}
	return p.s[start:p.pos]
}

// rest returns everything left on the line.
func (p *parser) rest() string {
	p.skipSpace()
	return p.s[p.pos:]
}

// Operator priorities, matching a conventional C-less calculator:
//
//	1: + - | ^
//	2: * / % &
//	3: unary + - ! ~
const (
	parenExpect = 1 << iota
	parenEat
)

// expression evaluates one expression at the given priority floor.
func (p *parser) expression(priority, flags int) (uint32, error) {
	var v uint32

	tok := p.token(true)
	if tok == "" {
		switch c := p.peek(); c {
		case '(':
			p.pos++
			inner, err := p.expression(0, parenExpect|parenEat)
			if err != nil {
				return 0, err
			}
			v = inner
		case '+', '-', '!', '~':
			p.pos++
			inner, err := p.expression(3, flags&^parenEat)
			if err != nil {
				return 0, err
			}
			switch c {
			case '+':
				v = inner
			case '-':
				v = -inner
			case '!':
				if inner == 0 {
					v = 1
				}
			case '~':
				v = ^inner
			}
		case 0, ',':
			return 0, p.errorf("expected expression")
		default:
			return 0, p.errorf("unexpected input %q", p.rest())
		}
	} else if tok[0] >= '0' && tok[0] <= '9' {
		n, err := strconv.ParseUint(tok, 0, 64)
		if err != nil || n > 0xffffffff {
			return 0, p.errorf("expected a number, got %q", tok)
		}
		v = uint32(n)
	} else {
		val, err := p.env.getVar(tok, p)
		if err != nil {
			return 0, err
		}
		v = val
	}

	for {
		op := p.peek()
		switch op {
		case '+', '-', '|', '^':
			if priority > 1 {
				return v, nil
			}
			p.pos++
			b, err := p.expression(1, flags&^parenEat)
			if err != nil {
				return 0, err
			}
			switch op {
			case '+':
				v += b
			case '-':
				v -= b
			case '|':
				v |= b
			case '^':
				v ^= b
			}

		case '*', '/', '%', '&':
			if priority > 2 {
				return v, nil
			}
			p.pos++
			b, err := p.expression(2, flags&^parenEat)
			if err != nil {
				return 0, err
			}
			switch op {
			case '*':
				v *= b
			case '/':
				if b == 0 {
					return 0, p.errorf("division by zero")
				}
				v /= b
			case '%':
				if b == 0 {
					return 0, p.errorf("division by zero")
				}
				v %= b
			case '&':
				v &= b
			}

		case ')':
			if flags&parenExpect == 0 {
				return 0, p.errorf("unexpected ')'")
			}
			if flags&parenEat != 0 {
				p.pos++
			}
			return v, nil

		default:
			if flags&parenExpect != 0 {
				return 0, p.errorf("no closing ')'")
			}
			return v, nil
		}
	}
}

// args parses a parenthesized, comma-separated argument list.
func (p *parser) args(keyword string, count int) ([]uint32, error) {
	if count == 0 {
		return nil, nil
	}
	if p.peek() != '(' {
		return nil, p.errorf("%s(%d args) expected", keyword, count)
	}
	p.pos++

	out := make([]uint32, 0, count)
	for i := 0; i < count; i++ {
		flags := 0
		if i == count-1 {
			flags = parenExpect | parenEat
		}
		v, err := p.expression(0, flags)
		if err != nil {
			return nil, p.errorf("not enough arguments to %s", keyword)
		}
		out = append(out, v)
		if i < count-1 {
			if p.peek() != ',' {
				return nil, p.errorf("not enough arguments to %s", keyword)
			}
			p.pos++
		}
	}
	return out, nil
}

// matchKeyword compares a token against a name mask where a '|'
// separates the mandatory prefix from the optional suffix, so "WI|RQ"
// accepts WI, WIR and WIRQ in any case.
func matchKeyword(tok, mask string) bool {
	tok = strings.ToUpper(tok)
	mandatory, optional, _ := strings.Cut(mask, "|")
	if !strings.HasPrefix(tok, mandatory) {
		return false
	}
	return strings.HasPrefix(optional, tok[len(mandatory):])
}
