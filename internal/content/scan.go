// Package content scans decoded page content streams for text and font usage.
package content

import (
	"strconv"
	"strings"
	"unicode"
)

// wordGap is the TJ displacement, in thousandths of an em, read as a word break.
const wordGap = -200

type operandKind int

const (
	operandOther operandKind = iota
	operandString
	operandNumber
	operandName
)

type operand struct {
	kind operandKind
	text string
	num  float64
}

// ExtractText returns the text shown by Tj, TJ, ' and " operators, whitespace-normalised.
func ExtractText(data []byte) string {
	var sb strings.Builder

	walk(data, func(op string, args []operand) {
		switch op {
		case "Tj":
			writeStrings(&sb, args)
		case "TJ":
			for _, a := range args {
				switch {
				case a.kind == operandString:
					sb.WriteString(a.text)
				case a.kind == operandNumber && a.num <= wordGap:
					sb.WriteByte(' ')
				}
			}
		case "'", `"`:
			sb.WriteByte('\n')
			writeStrings(&sb, args)
		case "Td", "TD", "Tm", "ET":
			sb.WriteByte(' ')
		case "T*":
			sb.WriteByte('\n')
		}
	})
	return normalize(sb.String())
}

// FontsUsed returns the font resource names selected with Tf.
func FontsUsed(data []byte) map[string]bool {
	used := map[string]bool{}
	walk(data, func(op string, args []operand) {
		if op != "Tf" {
			return
		}
		for _, a := range args {
			if a.kind == operandName {
				used[a.text] = true
				return
			}
		}
	})
	return used
}

func writeStrings(sb *strings.Builder, args []operand) {
	for _, a := range args {
		if a.kind == operandString {
			sb.WriteString(a.text)
		}
	}
}

// walk tokenizes a content stream and calls fn for every operator with the operands before it.
// Array brackets are flattened, so TJ sees its strings and displacements in order.
func walk(data []byte, fn func(op string, args []operand)) {
	s := &scanner{data: data}
	var args []operand

	for {
		s.skipSpace()
		if s.pos >= len(s.data) {
			return
		}

		c := s.data[s.pos]
		switch {
		case c == '(':
			args = append(args, operand{kind: operandString, text: s.literal()})
		case c == '<' && s.peek(1) == '<':
			s.pos += 2
		case c == '>' && s.peek(1) == '>':
			s.pos += 2
		case c == '<':
			args = append(args, operand{kind: operandString, text: s.hex()})
		case c == '/':
			s.pos++
			args = append(args, operand{kind: operandName, text: s.regular()})
		case c == '[' || c == ']' || c == '{' || c == '}' || c == ')' || c == '>':
			s.pos++
		default:
			tok := s.regular()
			if tok == "" {
				s.pos++
				continue
			}
			if n, err := strconv.ParseFloat(tok, 64); err == nil {
				args = append(args, operand{kind: operandNumber, num: n})
				continue
			}
			if tok == "true" || tok == "false" || tok == "null" {
				args = append(args, operand{kind: operandOther, text: tok})
				continue
			}
			fn(tok, args)
			args = args[:0]
			if tok == "ID" {
				s.skipInlineImage()
			}
		}
	}
}

type scanner struct {
	data []byte
	pos  int
}

func isSpace(c byte) bool {
	switch c {
	case 0, '\t', '\n', '\f', '\r', ' ':
		return true
	}
	return false
}

func isDelimiter(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

func (s *scanner) peek(n int) byte {
	if s.pos+n < len(s.data) {
		return s.data[s.pos+n]
	}
	return 0
}

// skipSpace also skips % comments.
func (s *scanner) skipSpace() {
	for s.pos < len(s.data) {
		c := s.data[s.pos]
		if isSpace(c) {
			s.pos++
			continue
		}
		if c != '%' {
			return
		}
		for s.pos < len(s.data) && s.data[s.pos] != '\n' && s.data[s.pos] != '\r' {
			s.pos++
		}
	}
}

func (s *scanner) regular() string {
	start := s.pos
	for s.pos < len(s.data) && !isSpace(s.data[s.pos]) && !isDelimiter(s.data[s.pos]) {
		s.pos++
	}
	return string(s.data[start:s.pos])
}

// literal reads a (string) with balanced parentheses and returns it unescaped.
func (s *scanner) literal() string {
	s.pos++
	start := s.pos
	depth := 1
	for s.pos < len(s.data) {
		switch s.data[s.pos] {
		case '\\':
			s.pos++
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				raw := s.data[start:s.pos]
				s.pos++
				return unescape(raw)
			}
		}
		s.pos++
	}
	return unescape(s.data[start:min(s.pos, len(s.data))])
}

// hex reads a <hex string>. An odd final digit is padded with 0.
func (s *scanner) hex() string {
	s.pos++
	var out []byte
	hi, half := byte(0), false
	for s.pos < len(s.data) {
		c := s.data[s.pos]
		s.pos++
		if c == '>' {
			break
		}
		v, ok := hexValue(c)
		if !ok {
			continue
		}
		if half {
			out = append(out, hi<<4|v)
		} else {
			hi = v
		}
		half = !half
	}
	if half {
		out = append(out, hi<<4)
	}
	return string(out)
}

func hexValue(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

// skipInlineImage moves past the binary samples of a BI ... ID ... EI image.
func (s *scanner) skipInlineImage() {
	if s.pos < len(s.data) && isSpace(s.data[s.pos]) {
		s.pos++
	}
	for s.pos+1 < len(s.data) {
		if s.data[s.pos] == 'E' && s.data[s.pos+1] == 'I' &&
			(s.pos == 0 || isSpace(s.data[s.pos-1])) &&
			(s.pos+2 == len(s.data) || isSpace(s.data[s.pos+2])) {
			s.pos += 2
			return
		}
		s.pos++
	}
	s.pos = len(s.data)
}

func unescape(raw []byte) string {
	var sb strings.Builder
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if c != '\\' || i+1 >= len(raw) {
			sb.WriteByte(c)
			continue
		}
		i++
		switch raw[i] {
		case 'n':
			sb.WriteByte('\n')
		case 'r':
			sb.WriteByte('\r')
		case 't':
			sb.WriteByte('\t')
		case 'b', 'f':
		case '\r':
			if i+1 < len(raw) && raw[i+1] == '\n' {
				i++
			}
		case '\n':
		case '0', '1', '2', '3', '4', '5', '6', '7':
			val := 0
			for n := 0; n < 3 && i < len(raw) && raw[i] >= '0' && raw[i] <= '7'; n++ {
				val = val*8 + int(raw[i]-'0')
				i++
			}
			i--
			sb.WriteByte(byte(val))
		default:
			sb.WriteByte(raw[i])
		}
	}
	return sb.String()
}

func normalize(text string) string {
	var sb strings.Builder
	space := false
	for _, r := range text {
		switch {
		case unicode.IsSpace(r):
			if !space && sb.Len() > 0 {
				sb.WriteByte(' ')
				space = true
			}
		case unicode.IsPrint(r):
			sb.WriteRune(r)
			space = false
		}
	}
	return strings.TrimSpace(sb.String())
}
