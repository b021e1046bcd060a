package quality

import (
	"fmt"
	"strings"
	"unicode"
)

// ICU MessageFormat validation and argument extraction. The parser covers the
// subset translators actually hit: simple arguments, typed arguments with a
// style, and plural/select/selectordinal sub-messages with nesting. Apostrophe
// quoting follows the lenient ICU rules: '' is a literal apostrophe, a single
// apostrophe quotes only when it precedes a syntax character, and an
// unterminated quoted section runs as literal text to the end of the message.
// A bare '#' is rejected outside plural/selectordinal sub-messages; quote it
// as '#' to use it as text.

type icuParser struct {
	input []rune
	pos   int
	args  []string
	seen  map[string]struct{}
}

// ValidateICU checks msg for ICU MessageFormat syntax errors.
func ValidateICU(msg string) error {
	_, err := ParseICUArguments(msg)
	return err
}

// ParseICUArguments returns the argument names referenced anywhere in msg, in
// first-appearance order, or a syntax error.
func ParseICUArguments(msg string) ([]string, error) {
	p := &icuParser{input: []rune(msg), seen: make(map[string]struct{})}
	if err := p.parseMessage(0, false); err != nil {
		return nil, err
	}
	if p.pos < len(p.input) {
		return nil, fmt.Errorf("unmatched '}' at position %d", p.pos)
	}
	return p.args, nil
}

// parseMessage consumes text and arguments until an unbalanced '}' (inside a
// sub-message) or end of input.
func (p *icuParser) parseMessage(depth int, inPlural bool) error {
	for p.pos < len(p.input) {
		switch p.input[p.pos] {
		case '\'':
			p.consumeQuoted()
		case '{':
			if err := p.parseArgument(depth, inPlural); err != nil {
				return err
			}
		case '}':
			if depth == 0 {
				return nil // caller decides whether this is an error
			}
			return nil
		case '#':
			if !inPlural {
				return fmt.Errorf("'#' at position %d is only valid inside a plural sub-message", p.pos)
			}
			p.pos++
		default:
			p.pos++
		}
	}
	return nil
}

func (p *icuParser) consumeQuoted() {
	p.pos++ // opening apostrophe
	if p.pos < len(p.input) && p.input[p.pos] == '\'' {
		p.pos++ // '' literal apostrophe
		return
	}
	if p.pos >= len(p.input) || !isICUSyntaxChar(p.input[p.pos]) {
		return // lone apostrophe is literal text
	}
	for p.pos < len(p.input) {
		if p.input[p.pos] == '\'' {
			p.pos++
			if p.pos < len(p.input) && p.input[p.pos] == '\'' {
				p.pos++ // escaped apostrophe inside quoted text
				continue
			}
			return
		}
		p.pos++
	}
	// Unterminated quote: remainder is literal text under lenient rules.
}

func isICUSyntaxChar(r rune) bool {
	return r == '{' || r == '}' || r == '#' || r == '|'
}

func (p *icuParser) parseArgument(depth int, inPlural bool) error {
	open := p.pos
	p.pos++ // '{'
	p.skipSpace()

	name := p.readName()
	if name == "" {
		return fmt.Errorf("empty or invalid argument name at position %d", open)
	}
	p.recordArg(name)
	p.skipSpace()

	if p.pos < len(p.input) && p.input[p.pos] == '}' {
		p.pos++
		return nil
	}
	if p.pos >= len(p.input) || p.input[p.pos] != ',' {
		return fmt.Errorf("unclosed argument brace at position %d", open)
	}
	p.pos++ // ','
	p.skipSpace()

	argType := p.readName()
	if argType == "" {
		return fmt.Errorf("missing argument type at position %d", p.pos)
	}
	p.skipSpace()

	switch argType {
	case "plural", "selectordinal":
		return p.parseSelectStyle(open, depth, true, true)
	case "select":
		// '#' stays usable inside a select nested in a plural branch.
		return p.parseSelectStyle(open, depth, false, inPlural)
	default:
		// number/date/time/... with an optional free-form style.
		if p.pos < len(p.input) && p.input[p.pos] == ',' {
			p.pos++
			if err := p.skipBalancedStyle(open); err != nil {
				return err
			}
		}
		if p.pos >= len(p.input) || p.input[p.pos] != '}' {
			return fmt.Errorf("unclosed argument brace at position %d", open)
		}
		p.pos++
		return nil
	}
}

func (p *icuParser) parseSelectStyle(open, depth int, plural, inPlural bool) error {
	if p.pos >= len(p.input) || p.input[p.pos] != ',' {
		return fmt.Errorf("plural/select argument at position %d requires selectors", open)
	}
	p.pos++ // ','
	p.skipSpace()

	if plural && strings.HasPrefix(string(p.input[p.pos:]), "offset:") {
		p.pos += len("offset:")
		start := p.pos
		for p.pos < len(p.input) && unicode.IsDigit(p.input[p.pos]) {
			p.pos++
		}
		if p.pos == start {
			return fmt.Errorf("malformed plural offset at position %d", start)
		}
		p.skipSpace()
	}

	selectors := 0
	hasOther := false
	for {
		p.skipSpace()
		if p.pos >= len(p.input) {
			return fmt.Errorf("unclosed argument brace at position %d", open)
		}
		if p.input[p.pos] == '}' {
			p.pos++
			break
		}

		selector := p.readSelector(plural)
		if selector == "" {
			return fmt.Errorf("invalid selector at position %d", p.pos)
		}
		if selector == "other" {
			hasOther = true
		}
		p.skipSpace()
		if p.pos >= len(p.input) || p.input[p.pos] != '{' {
			return fmt.Errorf("selector %q at position %d requires a sub-message", selector, p.pos)
		}
		p.pos++ // '{'
		if err := p.parseMessage(depth+1, plural || inPlural); err != nil {
			return err
		}
		if p.pos >= len(p.input) || p.input[p.pos] != '}' {
			return fmt.Errorf("unclosed sub-message for selector %q", selector)
		}
		p.pos++ // '}'
		selectors++
	}

	if selectors == 0 {
		return fmt.Errorf("plural/select argument at position %d has no selectors", open)
	}
	if !hasOther {
		return fmt.Errorf("plural/select argument at position %d is missing the required 'other' selector", open)
	}
	return nil
}

func (p *icuParser) readSelector(plural bool) string {
	if plural && p.pos < len(p.input) && p.input[p.pos] == '=' {
		start := p.pos
		p.pos++
		for p.pos < len(p.input) && unicode.IsDigit(p.input[p.pos]) {
			p.pos++
		}
		if p.pos == start+1 {
			return ""
		}
		return string(p.input[start:p.pos])
	}
	return p.readName()
}

// skipBalancedStyle scans an argument style, tolerating nested braces.
func (p *icuParser) skipBalancedStyle(open int) error {
	level := 0
	for p.pos < len(p.input) {
		switch p.input[p.pos] {
		case '\'':
			p.consumeQuoted()
			continue
		case '{':
			level++
		case '}':
			if level == 0 {
				return nil
			}
			level--
		}
		p.pos++
	}
	return fmt.Errorf("unclosed argument brace at position %d", open)
}

func (p *icuParser) readName() string {
	start := p.pos
	for p.pos < len(p.input) {
		r := p.input[p.pos]
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '-' || r == '.' {
			p.pos++
			continue
		}
		break
	}
	return string(p.input[start:p.pos])
}

func (p *icuParser) skipSpace() {
	for p.pos < len(p.input) && unicode.IsSpace(p.input[p.pos]) {
		p.pos++
	}
}

func (p *icuParser) recordArg(name string) {
	if _, ok := p.seen[name]; ok {
		return
	}
	p.seen[name] = struct{}{}
	p.args = append(p.args, name)
}
