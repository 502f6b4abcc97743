// Package keys encodes terminal key events into the byte sequences a
// child process expects on its PTY stdin, per the fixed table the event
// loop is built against.
package keys

// Mod is a bitmask of modifier keys held alongside a key press.
type Mod int

const (
	ModNone  Mod = 0
	ModCtrl  Mod = 1 << 0
	ModAlt   Mod = 1 << 1
	ModShift Mod = 1 << 2
)

// Code identifies a key independent of the rune it produces, if any.
type Code int

const (
	CodeChar Code = iota
	CodeEnter
	CodeBackspace
	CodeTab
	CodeEsc
	CodeUp
	CodeDown
	CodeLeft
	CodeRight
	CodeHome
	CodeEnd
	CodePageUp
	CodePageDown
	CodeInsert
	CodeDelete
	CodeF1
	CodeF2
	CodeF3
	CodeF4
	CodeF5
	CodeF6
	CodeF7
	CodeF8
	CodeF9
	CodeF10
	CodeF11
	CodeF12
)

// Event is a single key press as delivered by the terminal event source.
type Event struct {
	Code Code
	// Rune is only meaningful when Code == CodeChar.
	Rune rune
	Mod  Mod
}

var arrowFinal = map[Code]byte{
	CodeUp:    'A',
	CodeDown:  'B',
	CodeRight: 'C',
	CodeLeft:  'D',
}

var fnTilde = map[Code]int{
	CodePageUp:   5,
	CodePageDown: 6,
	CodeInsert:   2,
	CodeDelete:   3,
	CodeF5:       15,
	CodeF6:       17,
	CodeF7:       18,
	CodeF8:       19,
	CodeF9:       20,
	CodeF10:      21,
	CodeF11:      23,
	CodeF12:      24,
}

var fnSS3 = map[Code]byte{
	CodeF1: 'P',
	CodeF2: 'Q',
	CodeF3: 'R',
	CodeF4: 'S',
}

// Encode returns the byte sequence for ev, or nil for unknown
// combinations — a no-op send, per the contract.
func Encode(ev Event) []byte {
	if final, ok := arrowFinal[ev.Code]; ok {
		if ev.Mod&ModAlt != 0 {
			return []byte{0x1B, 0x1B, '[', final}
		}
		return []byte{0x1B, '[', final}
	}
	if n, ok := fnTilde[ev.Code]; ok {
		return []byte("\x1b[" + itoa(n) + "~")
	}
	if final, ok := fnSS3[ev.Code]; ok {
		return []byte{0x1B, 'O', final}
	}

	switch ev.Code {
	case CodeEnter:
		return []byte{0x0D}
	case CodeBackspace:
		return []byte{0x7F}
	case CodeTab:
		if ev.Mod&ModShift != 0 {
			return []byte{0x1B, '[', 'Z'}
		}
		return []byte{0x09}
	case CodeEsc:
		return []byte{0x1B}
	case CodeHome:
		return []byte{0x1B, '[', 'H'}
	case CodeEnd:
		return []byte{0x1B, '[', 'F'}
	case CodeChar:
		return encodeChar(ev.Rune, ev.Mod)
	default:
		return nil
	}
}

func encodeChar(r rune, mod Mod) []byte {
	if mod&ModCtrl != 0 {
		b, ok := ctrlByte(r)
		if !ok {
			return nil
		}
		if mod&ModAlt != 0 {
			return append([]byte{0x1B}, b)
		}
		return []byte{b}
	}

	buf := make([]byte, 0, 5)
	if mod&ModAlt != 0 {
		buf = append(buf, 0x1B)
	}
	return append(buf, []byte(string(r))...)
}

func ctrlByte(r rune) (byte, bool) {
	switch {
	case r >= 'a' && r <= 'z':
		return byte(r-'a') + 1, true
	case r >= 'A' && r <= 'Z':
		return byte(r-'A') + 1, true
	case r == ' ':
		return 0x00, true
	case r == '\\':
		return 0x1C, true
	case r == ']':
		return 0x1D, true
	case r == '^':
		return 0x1E, true
	case r == '_':
		return 0x1F, true
	default:
		return 0, false
	}
}

// EncodeAll encodes a sequence of events and concatenates the results, in
// order — used to verify send_key's order-preservation property.
func EncodeAll(evs []Event) []byte {
	out := make([]byte, 0, len(evs)*2)
	for _, ev := range evs {
		out = append(out, Encode(ev)...)
	}
	return out
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [4]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}
