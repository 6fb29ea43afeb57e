package syntax

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokName
	tokNumber
	tokString
	tokOp
	tokNewline
	tokIndent
	tokDedent
)

// maxBracketDepth mirrors the tokenizer limit on nested parentheses
const maxBracketDepth = 200

const maxIndentDepth = 100

type token struct {
	kind tokenKind
	text string // identifier, operator or number text; decoded contents for strings
	line int

	// string flags
	bytes  bool
	format bool
}

// SyntaxError reports input that is not valid in the grammar
type SyntaxError struct {
	Line int
	Msg  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}

var threeCharOps = []string{"**=", "//=", ">>=", "<<=", "..."}

var twoCharOps = []string{
	"->", ":=", "**", "//", ">>", "<<", "<=", ">=", "==", "!=",
	"+=", "-=", "*=", "/=", "%=", "&=", "|=", "^=", "@=",
}

const oneCharOps = "+-*/%@&|^~<>()[]{},:;.="

type lexer struct {
	src      string
	pos      int
	line     int
	indents  []int
	brackets []byte
	tokens   []token
}

func tokenize(src string) ([]token, error) {
	lx := &lexer{
		src:     strings.ReplaceAll(strings.ReplaceAll(src, "\r\n", "\n"), "\r", "\n"),
		line:    1,
		indents: []int{0},
	}
	if err := lx.run(); err != nil {
		return nil, err
	}
	return lx.tokens, nil
}

func (lx *lexer) errorf(format string, args ...any) error {
	return &SyntaxError{Line: lx.line, Msg: fmt.Sprintf(format, args...)}
}

func (lx *lexer) emit(kind tokenKind, text string) {
	lx.tokens = append(lx.tokens, token{kind: kind, text: text, line: lx.line})
}

func (lx *lexer) run() error {
	atLineStart := true

	for {
		if atLineStart && len(lx.brackets) == 0 {
			blank, err := lx.indentation()
			if err != nil {
				return err
			}
			if blank {
				if lx.pos >= len(lx.src) {
					break
				}
				continue
			}
			atLineStart = false
		}

		if lx.pos >= len(lx.src) {
			break
		}

		c := lx.src[lx.pos]
		switch {
		case c == ' ' || c == '\t' || c == '\f':
			lx.pos++
		case c == '#':
			for lx.pos < len(lx.src) && lx.src[lx.pos] != '\n' {
				lx.pos++
			}
		case c == '\\':
			if lx.pos+1 < len(lx.src) && lx.src[lx.pos+1] == '\n' {
				lx.pos += 2
				lx.line++
				continue
			}
			if lx.pos+1 >= len(lx.src) {
				return lx.errorf("unexpected EOF after line continuation")
			}
			return lx.errorf("unexpected character after line continuation")
		case c == '\n':
			lx.pos++
			if len(lx.brackets) == 0 {
				lx.emit(tokNewline, "")
				atLineStart = true
			}
			lx.line++
		case c == '"' || c == '\'':
			if err := lx.lexString("", c); err != nil {
				return err
			}
		case isDigit(c) || (c == '.' && lx.pos+1 < len(lx.src) && isDigit(lx.src[lx.pos+1])):
			if err := lx.lexNumber(); err != nil {
				return err
			}
		default:
			r, size := utf8.DecodeRuneInString(lx.src[lx.pos:])
			if isIdentStart(r) {
				start := lx.pos
				lx.pos += size
				for lx.pos < len(lx.src) {
					r, size = utf8.DecodeRuneInString(lx.src[lx.pos:])
					if !isIdentPart(r) {
						break
					}
					lx.pos += size
				}
				word := lx.src[start:lx.pos]
				if lx.pos < len(lx.src) && (lx.src[lx.pos] == '"' || lx.src[lx.pos] == '\'') && isStringPrefix(word) {
					if err := lx.lexString(word, lx.src[lx.pos]); err != nil {
						return err
					}
					continue
				}
				lx.emit(tokName, word)
				continue
			}
			if err := lx.lexOperator(); err != nil {
				return err
			}
		}
	}

	if len(lx.brackets) > 0 {
		return lx.errorf("'%c' was never closed", lx.brackets[len(lx.brackets)-1])
	}

	if n := len(lx.tokens); n > 0 && lx.tokens[n-1].kind != tokNewline && lx.tokens[n-1].kind != tokDedent {
		lx.emit(tokNewline, "")
	}
	for len(lx.indents) > 1 {
		lx.indents = lx.indents[:len(lx.indents)-1]
		lx.emit(tokDedent, "")
	}
	lx.emit(tokEOF, "")

	return nil
}

// indentation measures the indentation of the line at pos and emits INDENT or
// DEDENT tokens. Blank and comment-only lines are consumed and reported.
func (lx *lexer) indentation() (bool, error) {
	col := 0
scan:
	for lx.pos < len(lx.src) {
		switch lx.src[lx.pos] {
		case ' ':
			col++
		case '\t':
			col = (col/8 + 1) * 8
		case '\f':
			col = 0
		default:
			break scan
		}
		lx.pos++
	}

	if lx.pos >= len(lx.src) {
		return true, nil
	}
	switch lx.src[lx.pos] {
	case '\n':
		lx.pos++
		lx.line++
		return true, nil
	case '#':
		for lx.pos < len(lx.src) && lx.src[lx.pos] != '\n' {
			lx.pos++
		}
		return true, nil
	case '\\':
		// a continuation line joined to a blank logical line start
		if lx.pos+1 < len(lx.src) && lx.src[lx.pos+1] == '\n' {
			lx.pos += 2
			lx.line++
			return true, nil
		}
	}

	top := lx.indents[len(lx.indents)-1]
	switch {
	case col > top:
		if len(lx.tokens) == 0 {
			return false, lx.errorf("unexpected indent")
		}
		if len(lx.indents) > maxIndentDepth {
			return false, lx.errorf("too many levels of indentation")
		}
		lx.indents = append(lx.indents, col)
		lx.emit(tokIndent, "")
	case col < top:
		for col < lx.indents[len(lx.indents)-1] {
			lx.indents = lx.indents[:len(lx.indents)-1]
			lx.emit(tokDedent, "")
		}
		if col != lx.indents[len(lx.indents)-1] {
			return false, lx.errorf("unindent does not match any outer indentation level")
		}
	}

	return false, nil
}

func (lx *lexer) lexOperator() error {
	rest := lx.src[lx.pos:]
	for _, op := range threeCharOps {
		if strings.HasPrefix(rest, op) {
			lx.pos += 3
			lx.emit(tokOp, op)
			return nil
		}
	}
	for _, op := range twoCharOps {
		if strings.HasPrefix(rest, op) {
			lx.pos += 2
			lx.emit(tokOp, op)
			return nil
		}
	}

	c := rest[0]
	if strings.IndexByte(oneCharOps, c) < 0 {
		r, _ := utf8.DecodeRuneInString(rest)
		return lx.errorf("invalid character %q", r)
	}

	switch c {
	case '(', '[', '{':
		if len(lx.brackets) >= maxBracketDepth {
			return lx.errorf("too many nested parentheses")
		}
		lx.brackets = append(lx.brackets, c)
	case ')', ']', '}':
		if len(lx.brackets) == 0 {
			return lx.errorf("unmatched '%c'", c)
		}
		open := lx.brackets[len(lx.brackets)-1]
		if (open == '(' && c != ')') || (open == '[' && c != ']') || (open == '{' && c != '}') {
			return lx.errorf("closing parenthesis '%c' does not match opening parenthesis '%c'", c, open)
		}
		lx.brackets = lx.brackets[:len(lx.brackets)-1]
	}

	lx.pos++
	lx.emit(tokOp, string(c))
	return nil
}

func (lx *lexer) lexNumber() error {
	start := lx.pos
	src := lx.src

	if src[lx.pos] == '0' && lx.pos+1 < len(src) && strings.IndexByte("xXoObB", src[lx.pos+1]) >= 0 {
		var valid func(byte) bool
		switch src[lx.pos+1] {
		case 'x', 'X':
			valid = isHexDigit
		case 'o', 'O':
			valid = func(c byte) bool { return c >= '0' && c <= '7' }
		default:
			valid = func(c byte) bool { return c == '0' || c == '1' }
		}
		lx.pos += 2
		digits := 0
		for lx.pos < len(src) && (valid(src[lx.pos]) || src[lx.pos] == '_') {
			if src[lx.pos] != '_' {
				digits++
			}
			lx.pos++
		}
		if digits == 0 {
			return lx.errorf("invalid number literal")
		}
		lx.emit(tokNumber, src[start:lx.pos])
		return nil
	}

	scanDigits := func() int {
		n := 0
		for lx.pos < len(src) && (isDigit(src[lx.pos]) || (src[lx.pos] == '_' && lx.pos+1 < len(src) && isDigit(src[lx.pos+1]))) {
			lx.pos++
			n++
		}
		return n
	}

	intDigits := scanDigits()
	isFloat := false
	if lx.pos < len(src) && src[lx.pos] == '.' {
		isFloat = true
		lx.pos++
		scanDigits()
	}
	if lx.pos < len(src) && (src[lx.pos] == 'e' || src[lx.pos] == 'E') {
		save := lx.pos
		lx.pos++
		if lx.pos < len(src) && (src[lx.pos] == '+' || src[lx.pos] == '-') {
			lx.pos++
		}
		if scanDigits() == 0 {
			lx.pos = save
		} else {
			isFloat = true
		}
	}
	if lx.pos < len(src) && (src[lx.pos] == 'j' || src[lx.pos] == 'J') {
		lx.pos++
		lx.emit(tokNumber, src[start:lx.pos])
		return nil
	}

	text := src[start:lx.pos]
	if !isFloat && intDigits > 1 && text[0] == '0' && strings.Trim(text, "0_") != "" {
		return lx.errorf("leading zeros in decimal integer literals are not permitted")
	}

	lx.emit(tokNumber, text)
	return nil
}

func (lx *lexer) lexString(prefix string, quote byte) error {
	lower := strings.ToLower(prefix)
	raw := strings.Contains(lower, "r")
	isBytes := strings.Contains(lower, "b")
	format := strings.Contains(lower, "f")

	startLine := lx.line
	triple := strings.HasPrefix(lx.src[lx.pos:], strings.Repeat(string(quote), 3))
	if triple {
		lx.pos += 3
	} else {
		lx.pos++
	}

	var body strings.Builder
	for {
		if lx.pos >= len(lx.src) {
			lx.line = startLine
			if triple {
				return lx.errorf("unterminated triple-quoted string literal")
			}
			return lx.errorf("unterminated string literal")
		}

		c := lx.src[lx.pos]
		if c == quote {
			if !triple {
				lx.pos++
				break
			}
			if strings.HasPrefix(lx.src[lx.pos:], strings.Repeat(string(quote), 3)) {
				lx.pos += 3
				break
			}
		}
		if c == '\n' {
			if !triple {
				lx.line = startLine
				return lx.errorf("unterminated string literal")
			}
			lx.line++
		}
		if c == '\\' && lx.pos+1 < len(lx.src) {
			if lx.src[lx.pos+1] == '\n' {
				lx.line++
			}
			body.WriteByte(c)
			body.WriteByte(lx.src[lx.pos+1])
			lx.pos += 2
			continue
		}
		body.WriteByte(c)
		lx.pos++
	}

	text := body.String()
	if isBytes {
		for i := 0; i < len(text); i++ {
			if text[i] >= utf8.RuneSelf {
				return &SyntaxError{Line: startLine, Msg: "bytes can only contain ASCII literal characters"}
			}
		}
	}
	if !raw && !format {
		decoded, err := decodeEscapes(text, isBytes)
		if err != nil {
			return &SyntaxError{Line: startLine, Msg: err.Error()}
		}
		text = decoded
	}

	lx.tokens = append(lx.tokens, token{kind: tokString, text: text, line: startLine, bytes: isBytes, format: format})
	return nil
}

// decodeEscapes resolves backslash escapes of a non-raw string or bytes body
func decodeEscapes(s string, isBytes bool) (string, error) {
	if !strings.Contains(s, `\`) {
		return s, nil
	}

	var out strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 >= len(s) {
			out.WriteByte(c)
			continue
		}

		i++
		switch e := s[i]; e {
		case '\n':
		case '\\', '\'', '"':
			out.WriteByte(e)
		case 'a':
			out.WriteByte('\a')
		case 'b':
			out.WriteByte('\b')
		case 'f':
			out.WriteByte('\f')
		case 'n':
			out.WriteByte('\n')
		case 'r':
			out.WriteByte('\r')
		case 't':
			out.WriteByte('\t')
		case 'v':
			out.WriteByte('\v')
		case '0', '1', '2', '3', '4', '5', '6', '7':
			v := 0
			n := 0
			for n < 3 && i < len(s) && s[i] >= '0' && s[i] <= '7' {
				v = v*8 + int(s[i]-'0')
				i++
				n++
			}
			i--
			writeCode(&out, v, isBytes)
		case 'x':
			v, ok := parseHex(s, i+1, 2)
			if !ok {
				return "", fmt.Errorf("truncated \\xXX escape")
			}
			i += 2
			writeCode(&out, v, isBytes)
		case 'u', 'U':
			if isBytes {
				out.WriteByte('\\')
				out.WriteByte(e)
				continue
			}
			width := 4
			if e == 'U' {
				width = 8
			}
			v, ok := parseHex(s, i+1, width)
			if !ok || v > unicode.MaxRune {
				return "", fmt.Errorf("truncated \\%cXXXX escape", e)
			}
			i += width
			out.WriteRune(rune(v))
		case 'N':
			if isBytes {
				out.WriteByte('\\')
				out.WriteByte(e)
				continue
			}
			end := strings.IndexByte(s[i:], '}')
			if i+1 >= len(s) || s[i+1] != '{' || end < 0 {
				return "", fmt.Errorf("malformed \\N character escape")
			}
			r, ok := lookupRuneName(s[i+2 : i+end])
			if !ok {
				return "", fmt.Errorf("unknown Unicode character name")
			}
			i += end
			out.WriteRune(r)
		default:
			out.WriteByte('\\')
			out.WriteByte(e)
		}
	}
	return out.String(), nil
}

func writeCode(out *strings.Builder, v int, isBytes bool) {
	if isBytes {
		out.WriteByte(byte(v & 0xff))
		return
	}
	out.WriteRune(rune(v))
}

func parseHex(s string, start, width int) (int, bool) {
	if start+width > len(s) {
		return 0, false
	}
	v := 0
	for i := start; i < start+width; i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9':
			v = v*16 + int(c-'0')
		case c >= 'a' && c <= 'f':
			v = v*16 + int(c-'a'+10)
		case c >= 'A' && c <= 'F':
			v = v*16 + int(c-'A'+10)
		default:
			return 0, false
		}
	}
	return v, true
}

func isStringPrefix(word string) bool {
	switch strings.ToLower(word) {
	case "r", "u", "b", "f", "br", "rb", "fr", "rf":
		return true
	}
	return false
}

func isDigit(c byte) bool    { return c >= '0' && c <= '9' }
func isHexDigit(c byte) bool { return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F') }

func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.Is(unicode.Mn, r) || unicode.Is(unicode.Mc, r)
}
