// Package jsonreader implements the simple flat JSON reader of spec.md
// §4.9: it parses one JSON object into an ordered string->string mapping,
// keeping nested objects/arrays as their canonicalized source text rather
// than recursively decoding them. Unlike the original (see spec.md §9's
// Open Questions), \uXXXX escapes are fully assembled into runes, including
// surrogate pairs, instead of merely being skipped.
package jsonreader

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf16"
	"unicode/utf8"
)

// Entry is one key/value pair of the parsed object, in source order.
type Entry struct {
	Key   string
	Value string
}

// Object is the ordered result of ParseFlatObject.
type Object struct {
	entries []Entry
	index   map[string]int
}

// Get returns the string value for key and whether it was present.
func (o *Object) Get(key string) (string, bool) {
	if o == nil {
		return "", false
	}
	i, ok := o.index[key]
	if !ok {
		return "", false
	}
	return o.entries[i].Value, true
}

// Keys returns the keys in the order they appeared in the source document.
func (o *Object) Keys() []string {
	keys := make([]string, len(o.entries))
	for i, e := range o.entries {
		keys[i] = e.Key
	}
	return keys
}

// Map flattens the object into a plain map, per spec.md's
// "string -> string" property-surface contract.
func (o *Object) Map() map[string]string {
	m := make(map[string]string, len(o.entries))
	for _, e := range o.entries {
		m[e.Key] = e.Value
	}
	return m
}

// ParseFlatObject parses a single JSON object into an ordered
// string->string mapping. String values are unescaped; numbers, booleans
// and null are carried as their literal text; nested objects and arrays
// are re-serialized into canonical form and stored as the value's raw
// text. Any malformed input fails the whole parse with a structural error.
func ParseFlatObject(data []byte) (*Object, error) {
	p := &parser{src: string(data)}
	p.skipWS()
	if !p.consume('{') {
		return nil, fmt.Errorf("jsonreader: expected '{' at start of object")
	}
	obj := &Object{index: map[string]int{}}

	p.skipWS()
	if p.consume('}') {
		return obj, p.finish()
	}

	for {
		p.skipWS()
		key, err := p.parseString()
		if err != nil {
			return nil, fmt.Errorf("jsonreader: parsing key: %w", err)
		}
		p.skipWS()
		if !p.consume(':') {
			return nil, fmt.Errorf("jsonreader: expected ':' after key %q", key)
		}
		p.skipWS()
		value, err := p.parseValue()
		if err != nil {
			return nil, fmt.Errorf("jsonreader: parsing value for %q: %w", key, err)
		}

		if i, exists := obj.index[key]; exists {
			obj.entries[i].Value = value
		} else {
			obj.index[key] = len(obj.entries)
			obj.entries = append(obj.entries, Entry{Key: key, Value: value})
		}

		p.skipWS()
		if p.consume(',') {
			continue
		}
		if p.consume('}') {
			break
		}
		return nil, fmt.Errorf("jsonreader: expected ',' or '}' in object")
	}
	return obj, p.finish()
}

// Serialize renders a mapping back into a flat JSON object whose values are
// either re-embedded verbatim (when they already parse as a flat JSON
// object, per spec.md §4.6) or JSON-escaped strings otherwise. Key order
// follows the order keys are given in.
func Serialize(keys []string, values map[string]string) []byte {
	var b strings.Builder
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		writeJSONString(&b, k)
		b.WriteByte(':')
		v := values[k]
		if looksLikeFlatObject(v) {
			b.WriteString(v)
		} else {
			writeJSONString(&b, v)
		}
	}
	b.WriteByte('}')
	return []byte(b.String())
}

// looksLikeFlatObject reports whether v opens '{', closes '}' and parses as
// a flat JSON object, per spec.md §4.6's "emitted verbatim" rule.
func looksLikeFlatObject(v string) bool {
	trimmed := strings.TrimSpace(v)
	if !strings.HasPrefix(trimmed, "{") || !strings.HasSuffix(trimmed, "}") {
		return false
	}
	_, err := ParseFlatObject([]byte(trimmed))
	return err == nil
}

// writeJSONString appends s to b as a double-quoted, escaped JSON string.
func writeJSONString(b *strings.Builder, s string) {
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if r < 0x20 {
				fmt.Fprintf(b, `\u%04x`, r)
			} else {
				b.WriteRune(r)
			}
		}
	}
	b.WriteByte('"')
}

type parser struct {
	src string
	pos int
}

func (p *parser) finish() error {
	p.skipWS()
	if p.pos != len(p.src) {
		return fmt.Errorf("jsonreader: trailing data after object")
	}
	return nil
}

func (p *parser) skipWS() {
	for p.pos < len(p.src) {
		switch p.src[p.pos] {
		case ' ', '\t', '\n', '\r':
			p.pos++
		default:
			return
		}
	}
}

func (p *parser) consume(b byte) bool {
	if p.pos < len(p.src) && p.src[p.pos] == b {
		p.pos++
		return true
	}
	return false
}

func (p *parser) peek() (byte, bool) {
	if p.pos >= len(p.src) {
		return 0, false
	}
	return p.src[p.pos], true
}

// parseValue parses and returns the canonical text representation of the
// value starting at p.pos: the unescaped text for a string, the literal
// source for numbers/true/false/null, and the canonicalized source for
// nested objects/arrays.
func (p *parser) parseValue() (string, error) {
	c, ok := p.peek()
	if !ok {
		return "", fmt.Errorf("unexpected end of input")
	}
	switch {
	case c == '"':
		return p.parseString()
	case c == '{':
		return p.parseRawObject()
	case c == '[':
		return p.parseRawArray()
	case c == 't':
		return p.parseLiteral("true")
	case c == 'f':
		return p.parseLiteral("false")
	case c == 'n':
		return p.parseLiteral("null")
	case c == '-' || (c >= '0' && c <= '9'):
		return p.parseNumber()
	default:
		return "", fmt.Errorf("unexpected character %q", c)
	}
}

func (p *parser) parseLiteral(lit string) (string, error) {
	if p.pos+len(lit) > len(p.src) || p.src[p.pos:p.pos+len(lit)] != lit {
		return "", fmt.Errorf("expected literal %q", lit)
	}
	p.pos += len(lit)
	return lit, nil
}

func (p *parser) parseNumber() (string, error) {
	start := p.pos
	p.consume('-')
	for p.pos < len(p.src) && isDigit(p.src[p.pos]) {
		p.pos++
	}
	if p.consume('.') {
		for p.pos < len(p.src) && isDigit(p.src[p.pos]) {
			p.pos++
		}
	}
	if p.pos < len(p.src) && (p.src[p.pos] == 'e' || p.src[p.pos] == 'E') {
		p.pos++
		if p.pos < len(p.src) && (p.src[p.pos] == '+' || p.src[p.pos] == '-') {
			p.pos++
		}
		for p.pos < len(p.src) && isDigit(p.src[p.pos]) {
			p.pos++
		}
	}
	if p.pos == start {
		return "", fmt.Errorf("invalid number")
	}
	return p.src[start:p.pos], nil
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

// parseString consumes a quoted JSON string and returns its decoded value.
func (p *parser) parseString() (string, error) {
	if !p.consume('"') {
		return "", fmt.Errorf("expected '\"'")
	}
	var b strings.Builder
	for {
		if p.pos >= len(p.src) {
			return "", fmt.Errorf("unterminated string")
		}
		c := p.src[p.pos]
		if c == '"' {
			p.pos++
			return b.String(), nil
		}
		if c == '\\' {
			p.pos++
			if p.pos >= len(p.src) {
				return "", fmt.Errorf("unterminated escape")
			}
			esc := p.src[p.pos]
			switch esc {
			case '"':
				b.WriteByte('"')
				p.pos++
			case '\\':
				b.WriteByte('\\')
				p.pos++
			case '/':
				b.WriteByte('/')
				p.pos++
			case 'b':
				b.WriteByte('\b')
				p.pos++
			case 'f':
				b.WriteByte('\f')
				p.pos++
			case 'n':
				b.WriteByte('\n')
				p.pos++
			case 'r':
				b.WriteByte('\r')
				p.pos++
			case 't':
				b.WriteByte('\t')
				p.pos++
			case 'u':
				p.pos++
				r, err := p.parseUnicodeEscape()
				if err != nil {
					return "", err
				}
				b.WriteRune(r)
			default:
				return "", fmt.Errorf("invalid escape \\%c", esc)
			}
			continue
		}
		b.WriteByte(c)
		p.pos++
	}
}

// parseUnicodeEscape reads the 4 hex digits of a \uXXXX escape (p.pos must
// already be just past the 'u') and assembles the code point, including
// surrogate pairs for astral characters.
func (p *parser) parseUnicodeEscape() (rune, error) {
	hi, err := p.hex4()
	if err != nil {
		return 0, err
	}
	if utf16.IsSurrogate(rune(hi)) {
		if p.pos+1 < len(p.src) && p.src[p.pos] == '\\' && p.src[p.pos+1] == 'u' {
			save := p.pos
			p.pos += 2
			lo, err := p.hex4()
			if err == nil {
				if r := utf16.DecodeRune(rune(hi), rune(lo)); r != utf8.RuneError {
					return r, nil
				}
			}
			p.pos = save
		}
		return utf8.RuneError, nil
	}
	return rune(hi), nil
}

func (p *parser) hex4() (uint64, error) {
	if p.pos+4 > len(p.src) {
		return 0, fmt.Errorf("truncated \\u escape")
	}
	v, err := strconv.ParseUint(p.src[p.pos:p.pos+4], 16, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid \\u escape: %w", err)
	}
	p.pos += 4
	return v, nil
}

// parseRawObject consumes a nested object and returns its canonical
// re-serialization (all keys re-emitted via ParseFlatObject + Serialize).
func (p *parser) parseRawObject() (string, error) {
	raw, err := p.consumeBalanced('{', '}')
	if err != nil {
		return "", err
	}
	nested, err := ParseFlatObject([]byte(raw))
	if err != nil {
		return "", err
	}
	return string(Serialize(nested.Keys(), nested.Map())), nil
}

// parseRawArray consumes a nested array and returns its raw source text,
// per spec.md §4.9: arrays are returned as their original JSON source.
func (p *parser) parseRawArray() (string, error) {
	return p.consumeBalanced('[', ']')
}

// consumeBalanced returns the exact source slice of a balanced open/close
// bracketed structure starting at p.pos (which must be at open), correctly
// skipping over brackets embedded inside string literals.
func (p *parser) consumeBalanced(open, close byte) (string, error) {
	if !p.consume(open) {
		return "", fmt.Errorf("expected %q", open)
	}
	start := p.pos - 1
	depth := 1
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		switch {
		case c == '"':
			if _, err := p.parseString(); err != nil {
				return "", err
			}
			continue
		case c == open:
			depth++
		case c == close:
			depth--
		}
		p.pos++
		if depth == 0 {
			return p.src[start:p.pos], nil
		}
	}
	return "", fmt.Errorf("unbalanced %q/%q", open, close)
}
