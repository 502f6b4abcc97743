package grid

import (
	"unicode/utf8"

	"github.com/mattn/go-runewidth"
)

type state int

const (
	stateGround state = iota
	stateEscape
	stateCsiParam
	stateOscString
	stateOscEscape
)

// Parser is a byte-fed VT state machine following the ECMA-48/VT500
// parser tables, restricted to the action set in the terminal-emulator
// contract: printable UTF-8, the four C0 motions, a CUP/CUU/CUD/CUF/CUB/
// ED/EL/IL/DL/SGR CSI subset, RIS, and OSC/DCS/unknown-sequence
// consumption. Malformed input can never produce an error — only a no-op
// transition.
type Parser struct {
	grid *Grid

	state state

	params    []int
	curNum    int
	curNumSet bool

	utf8buf []byte
}

// NewParser returns a parser that mutates g on every Feed call.
func NewParser(g *Grid) *Parser {
	return &Parser{grid: g, state: stateGround}
}

// Feed processes data and reports whether any byte produced a visible
// change (used by Session.update to distinguish Damaged from NoChange).
func (p *Parser) Feed(data []byte) bool {
	damaged := false
	for _, b := range data {
		if p.step(b) {
			damaged = true
		}
	}
	return damaged
}

func (p *Parser) step(b byte) bool {
	switch p.state {
	case stateGround:
		return p.groundByte(b)
	case stateEscape:
		return p.escapeByte(b)
	case stateCsiParam:
		return p.csiByte(b)
	case stateOscString:
		return p.oscByte(b)
	case stateOscEscape:
		return p.oscEscapeByte(b)
	}
	return false
}

func (p *Parser) groundByte(b byte) bool {
	if b == 0x1B {
		p.state = stateEscape
		return false
	}
	if b < 0x20 {
		return p.c0(b)
	}
	if b < 0x80 {
		p.printRune(rune(b))
		return true
	}

	// Multi-byte UTF-8: accumulate until a full rune decodes or the
	// sequence is irrecoverably invalid.
	p.utf8buf = append(p.utf8buf, b)
	r, size := utf8.DecodeRune(p.utf8buf)
	if r == utf8.RuneError && size <= 1 {
		if len(p.utf8buf) >= utf8.UTFMax {
			p.utf8buf = p.utf8buf[:0]
		}
		return false
	}
	p.printRune(r)
	p.utf8buf = p.utf8buf[:0]
	return true
}

func (p *Parser) c0(b byte) bool {
	g := p.grid
	switch b {
	case 0x08: // BS
		g.Cursor.Col = clamp(g.Cursor.Col-1, 0, g.Cols-1)
		return true
	case 0x09: // HT
		g.Cursor.Col = clamp(((g.Cursor.Col/8)+1)*8, 0, g.Cols-1)
		return true
	case 0x0A: // LF
		g.Cursor.Row = clamp(g.Cursor.Row+1, 0, g.Rows-1)
		g.Cursor.Col = 0
		return true
	case 0x0D: // CR
		g.Cursor.Col = 0
		return true
	default:
		return false
	}
}

func (p *Parser) printRune(r rune) {
	g := p.grid
	w := runewidth.RuneWidth(r)
	if w <= 0 {
		w = 1
	}
	cell := Cell{Ch: r, Fg: g.CurrentFg, Bg: g.CurrentBg}
	g.set(g.Cursor.Col, g.Cursor.Row, cell)
	g.Cursor.Col++
	if w == 2 && g.Cursor.Col < g.Cols {
		g.set(g.Cursor.Col, g.Cursor.Row, Cell{Ch: ' ', Fg: g.CurrentFg, Bg: g.CurrentBg})
		g.Cursor.Col++
	}
	if g.Cursor.Col >= g.Cols {
		g.Cursor.Col = 0
		g.Cursor.Row = clamp(g.Cursor.Row+1, 0, g.Rows-1)
	}
}

func (p *Parser) escapeByte(b byte) bool {
	switch b {
	case '[':
		p.resetParams()
		p.state = stateCsiParam
		return false
	case ']', 'P': // OSC, DCS — body consumed up to BEL or ST
		p.state = stateOscString
		return false
	case 'c': // RIS
		p.grid.EraseAll()
		p.grid.ResetPen()
		p.state = stateGround
		return true
	case '7', '8': // DECSC/DECRC — stubbed, core conformance doesn't require them
		p.state = stateGround
		return false
	default:
		if b >= 0x20 && b <= 0x2F {
			// Intermediate byte (e.g. ESC ( B): wait for the final byte.
			return false
		}
		p.state = stateGround
		return false
	}
}

func (p *Parser) resetParams() {
	p.params = p.params[:0]
	p.curNum = 0
	p.curNumSet = false
}

func (p *Parser) pushParam() {
	if p.curNumSet {
		p.params = append(p.params, p.curNum)
	} else {
		p.params = append(p.params, -1) // -1 marks "default"
	}
	p.curNum = 0
	p.curNumSet = false
}

func (p *Parser) csiByte(b byte) bool {
	switch {
	case b >= '0' && b <= '9':
		p.curNum = p.curNum*10 + int(b-'0')
		p.curNumSet = true
		return false
	case b == ';':
		p.pushParam()
		return false
	case b >= 0x20 && b <= 0x2F: // intermediate bytes — not in our action set
		return false
	case b >= 0x3C && b <= 0x3F: // private-mode markers (?, <, =, >) — ignored
		return false
	case b >= 0x40 && b <= 0x7E: // final byte
		p.pushParam()
		p.state = stateGround
		return p.dispatchCSI(b)
	default:
		return false
	}
}

// param returns the i-th parameter, or def if absent/defaulted.
func (p *Parser) param(i, def int) int {
	if i < len(p.params) && p.params[i] >= 0 {
		return p.params[i]
	}
	return def
}

// dispatchCSI applies the action for final and reports whether it actually
// changed grid state — a cursor move clamped to its starting position, or
// an unrecognized final byte, is not damage.
func (p *Parser) dispatchCSI(final byte) bool {
	g := p.grid
	switch final {
	case 'H', 'f':
		row := p.param(0, 1)
		col := p.param(1, 1)
		before := g.Cursor
		g.Cursor.Row = clamp(row-1, 0, g.Rows-1)
		g.Cursor.Col = clamp(col-1, 0, g.Cols-1)
		return g.Cursor != before
	case 'A':
		before := g.Cursor.Row
		g.Cursor.Row = clamp(g.Cursor.Row-p.param(0, 1), 0, g.Rows-1)
		return g.Cursor.Row != before
	case 'B':
		before := g.Cursor.Row
		g.Cursor.Row = clamp(g.Cursor.Row+p.param(0, 1), 0, g.Rows-1)
		return g.Cursor.Row != before
	case 'C':
		before := g.Cursor.Col
		g.Cursor.Col = clamp(g.Cursor.Col+p.param(0, 1), 0, g.Cols-1)
		return g.Cursor.Col != before
	case 'D':
		before := g.Cursor.Col
		g.Cursor.Col = clamp(g.Cursor.Col-p.param(0, 1), 0, g.Cols-1)
		return g.Cursor.Col != before
	case 'J':
		g.EraseDisplay(p.param(0, 0))
		return true
	case 'K':
		g.EraseLine(p.param(0, 0))
		return true
	case 'L':
		g.InsertLines(p.param(0, 1))
		return true
	case 'M':
		g.DeleteLines(p.param(0, 1))
		return true
	case 'm':
		before := [2]Color{g.CurrentFg, g.CurrentBg}
		p.applySGR()
		return [2]Color{g.CurrentFg, g.CurrentBg} != before
	default:
		// Unknown final byte: silently ignored, per the failure model.
		return false
	}
}

func (p *Parser) applySGR() {
	g := p.grid
	if len(p.params) == 0 {
		g.ResetPen()
		return
	}
	for _, raw := range p.params {
		n := raw
		if n < 0 {
			n = 0
		}
		switch {
		case n == 0:
			g.ResetPen()
		case n >= 30 && n <= 37:
			g.CurrentFg = Color(n - 30)
		case n == 39:
			g.CurrentFg = Default
		case n >= 90 && n <= 97:
			g.CurrentFg = Color(n - 90 + 8)
		case n >= 40 && n <= 47:
			g.CurrentBg = Color(n - 40)
		case n == 49:
			g.CurrentBg = Default
		case n >= 100 && n <= 107:
			g.CurrentBg = Color(n - 100 + 8)
		default:
			// Unknown SGR code: silently ignored.
		}
	}
}

// oscByte consumes an OSC (or DCS) string body until BEL or ESC \ (ST).
// Content is discarded; nothing in the grid acts on it.
func (p *Parser) oscByte(b byte) bool {
	switch b {
	case 0x07:
		p.state = stateGround
	case 0x1B:
		p.state = stateOscEscape
	}
	return false
}

func (p *Parser) oscEscapeByte(b byte) bool {
	switch b {
	case '\\':
		p.state = stateGround
	case 0x1B:
		// stay in oscEscape
	default:
		p.state = stateOscString
	}
	return false
}
