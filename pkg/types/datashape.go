package types

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"dynd/pkg/dyerrors"
)

// quoteShape single-quotes a datashape string literal, the convention
// fixedstring/datetime annotations use (e.g. fixedstring[16,'utf8']).
func quoteShape(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `\'`) + "'"
}

var builtinNames = map[string]TypeID{
	"bool": Bool, "int8": Int8, "int16": Int16, "int32": Int32, "int64": Int64,
	"uint8": Uint8, "uint16": Uint16, "uint32": Uint32, "uint64": Uint64,
	"float32": Float32, "float64": Float64,
	"complex64": Complex64, "complex128": Complex128,
	"void": Void,
}

var encodingNames = map[string]StringEncoding{
	"ascii": EncodingASCII, "utf8": EncodingUTF8, "utf16": EncodingUTF16, "utf32": EncodingUTF32,
}

// Print renders t in its canonical datashape form.
func Print(t TypeRef) string { return t.String() }

// datashapeParser is a small hand-rolled recursive-descent parser over
// the datashape grammar's type expressions: an input string plus a
// byte cursor, the same shape as a Lisp reader's char-by-char scanner.
type datashapeParser struct {
	input string
	pos   int
}

// Parse parses a single datashape type expression, e.g. "int32",
// "{x : int32, y : string}", "3 * float64", or "fixedstring[16,'utf8']".
func Parse(s string) (TypeRef, error) {
	p := &datashapeParser{input: s}
	t, err := p.parseType()
	if err != nil {
		return TypeRef{}, err
	}
	p.skipSpace()
	if p.pos != len(p.input) {
		return TypeRef{}, dyerrors.New(dyerrors.ValueErr, fmt.Sprintf("unexpected trailing input %q", p.input[p.pos:]))
	}
	return t, nil
}

func (p *datashapeParser) skipSpace() {
	for p.pos < len(p.input) && unicode.IsSpace(rune(p.input[p.pos])) {
		p.pos++
	}
}

func (p *datashapeParser) peek() byte {
	if p.pos >= len(p.input) {
		return 0
	}
	return p.input[p.pos]
}

func (p *datashapeParser) errf(format string, args ...any) error {
	return dyerrors.New(dyerrors.ValueErr, fmt.Sprintf(format, args...))
}

func (p *datashapeParser) expect(c byte) error {
	p.skipSpace()
	if p.peek() != c {
		return p.errf("expected %q at position %d in %q", c, p.pos, p.input)
	}
	p.pos++
	return nil
}

func (p *datashapeParser) parseIdent() string {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.input) {
		c := p.input[p.pos]
		if unicode.IsLetter(rune(c)) || unicode.IsDigit(rune(c)) || c == '_' {
			p.pos++
			continue
		}
		break
	}
	return p.input[start:p.pos]
}

func (p *datashapeParser) parseNumber() (int, error) {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.input) && unicode.IsDigit(rune(p.input[p.pos])) {
		p.pos++
	}
	if start == p.pos {
		return 0, p.errf("expected a number at position %d in %q", p.pos, p.input)
	}
	return strconv.Atoi(p.input[start:p.pos])
}

// parseQuoted parses a single-quoted string literal, unescaping \'.
func (p *datashapeParser) parseQuoted() (string, error) {
	if err := p.expect('\''); err != nil {
		return "", err
	}
	var b strings.Builder
	for {
		if p.pos >= len(p.input) {
			return "", p.errf("unterminated string literal in %q", p.input)
		}
		c := p.input[p.pos]
		if c == '\\' && p.pos+1 < len(p.input) && p.input[p.pos+1] == '\'' {
			b.WriteByte('\'')
			p.pos += 2
			continue
		}
		if c == '\'' {
			p.pos++
			return b.String(), nil
		}
		b.WriteByte(c)
		p.pos++
	}
}

// parseType parses one type expression, including any "N * " dimension
// prefixes chained to its left.
func (p *datashapeParser) parseType() (TypeRef, error) {
	p.skipSpace()
	if unicode.IsDigit(rune(p.peek())) {
		save := p.pos
		count, err := p.parseNumber()
		if err == nil {
			p.skipSpace()
			if p.peek() == '*' {
				p.pos++
				elem, err := p.parseType()
				if err != nil {
					return TypeRef{}, err
				}
				fd, err := NewFixedDim(count, elem)
				if err != nil {
					return TypeRef{}, err
				}
				return Extended(fd), nil
			}
		}
		p.pos = save
	}
	return p.parseAtom()
}

func (p *datashapeParser) parseAtom() (TypeRef, error) {
	p.skipSpace()
	switch p.peek() {
	case '{':
		return p.parseStruct(false)
	}

	name := p.parseIdent()
	if name == "" {
		return TypeRef{}, p.errf("expected a type at position %d in %q", p.pos, p.input)
	}

	switch name {
	case "struct":
		return p.parseStruct(true)
	case "string":
		return Extended(NewVarString(EncodingUTF8)), nil
	case "date":
		return Extended(NewDateTime()), nil
	case "datetime":
		return p.parseDateTime()
	case "fixedstring":
		return p.parseFixedString()
	case "fixedbytes":
		return p.parseFixedBytes()
	}

	if id, ok := builtinNames[name]; ok {
		return Builtin(id), nil
	}
	return TypeRef{}, p.errf("unknown type name %q", name)
}

func (p *datashapeParser) parseStruct(standard bool) (TypeRef, error) {
	if err := p.expect('{'); err != nil {
		return TypeRef{}, err
	}
	var fields []StructField
	p.skipSpace()
	if p.peek() != '}' {
		for {
			p.skipSpace()
			name := p.parseIdent()
			if name == "" {
				return TypeRef{}, p.errf("expected a field name at position %d in %q", p.pos, p.input)
			}
			if err := p.expect(':'); err != nil {
				return TypeRef{}, err
			}
			fieldType, err := p.parseType()
			if err != nil {
				return TypeRef{}, err
			}
			fields = append(fields, StructField{Name: name, Type: fieldType})
			p.skipSpace()
			if p.peek() == ',' {
				p.pos++
				continue
			}
			break
		}
	}
	if err := p.expect('}'); err != nil {
		return TypeRef{}, err
	}
	if standard {
		return Extended(NewStandardStruct(fields)), nil
	}
	cs, err := NewCStruct(fields)
	if err != nil {
		return TypeRef{}, err
	}
	return Extended(cs), nil
}

func (p *datashapeParser) parseFixedString() (TypeRef, error) {
	if err := p.expect('['); err != nil {
		return TypeRef{}, err
	}
	n, err := p.parseNumber()
	if err != nil {
		return TypeRef{}, err
	}
	if err := p.expect(','); err != nil {
		return TypeRef{}, err
	}
	encName, err := p.parseQuoted()
	if err != nil {
		return TypeRef{}, err
	}
	if err := p.expect(']'); err != nil {
		return TypeRef{}, err
	}
	enc, ok := encodingNames[encName]
	if !ok {
		return TypeRef{}, p.errf("unknown fixedstring encoding %q", encName)
	}
	fs, err := NewFixedString(n, enc)
	if err != nil {
		return TypeRef{}, err
	}
	return Extended(fs), nil
}

func (p *datashapeParser) parseFixedBytes() (TypeRef, error) {
	if err := p.expect('<'); err != nil {
		return TypeRef{}, err
	}
	size, err := p.parseNumber()
	if err != nil {
		return TypeRef{}, err
	}
	if err := p.expect(','); err != nil {
		return TypeRef{}, err
	}
	alignment, err := p.parseNumber()
	if err != nil {
		return TypeRef{}, err
	}
	if err := p.expect('>'); err != nil {
		return TypeRef{}, err
	}
	fb, err := NewFixedBytes(size, alignment)
	if err != nil {
		return TypeRef{}, err
	}
	return Extended(fb), nil
}

func (p *datashapeParser) parseDateTime() (TypeRef, error) {
	if err := p.expect('['); err != nil {
		return TypeRef{}, err
	}
	unit, err := p.parseQuoted()
	if err != nil {
		return TypeRef{}, err
	}
	var tz string
	p.skipSpace()
	if p.peek() == ',' {
		p.pos++
		p.skipSpace()
		if got := p.parseIdent(); got != "tz" {
			return TypeRef{}, p.errf("expected \"tz\" at position %d in %q, got %q", p.pos, p.input, got)
		}
		if err := p.expect('='); err != nil {
			return TypeRef{}, err
		}
		tz, err = p.parseQuoted()
		if err != nil {
			return TypeRef{}, err
		}
	}
	if err := p.expect(']'); err != nil {
		return TypeRef{}, err
	}
	return Extended(NewDateTimeWithUnit(unit, tz)), nil
}
