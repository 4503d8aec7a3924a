package htmldoc

import (
	"errors"
	"fmt"
	"strings"
)

var errUnsupportedSelector = errors.New("unsupported selector")

// SplitSelectorList splits a comma separated selector list, ignoring commas
// inside quotes or brackets. Empty parts are dropped.
func SplitSelectorList(selector string) []string {
	var (
		parts []string
		depth int
		quote rune
		start int
	)
	for i, r := range selector {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '"' || r == '\'':
			quote = r
		case r == '[' || r == '(':
			depth++
		case r == ']' || r == ')':
			if depth > 0 {
				depth--
			}
		case r == ',' && depth == 0:
			if part := strings.TrimSpace(selector[start:i]); part != "" {
				parts = append(parts, part)
			}
			start = i + 1
		}
	}
	if part := strings.TrimSpace(selector[start:]); part != "" {
		parts = append(parts, part)
	}
	return parts
}

// Translate converts a single CSS selector (no commas) into a descendant
// scoped XPath expression. Supported forms are tag names, .class, #id,
// [attr], [attr="v"], [attr*="v"], [attr^="v"], [attr~="v"], compounds of
// those, and descendant combinators.
func Translate(selector string) (string, error) {
	selector = strings.TrimSpace(selector)
	if selector == "" {
		return "", fmt.Errorf("%w: empty", errUnsupportedSelector)
	}
	compounds, err := splitCompounds(selector)
	if err != nil {
		return "", err
	}
	steps := make([]string, 0, len(compounds))
	for _, compound := range compounds {
		step, err := translateCompound(compound)
		if err != nil {
			return "", err
		}
		steps = append(steps, step)
	}
	return ".//" + strings.Join(steps, "//"), nil
}

// queryFor returns the XPath for one selector, degrading to a tag query built
// from the leading identifier. An empty result matches nothing.
func queryFor(selector string) (string, bool) {
	expr, err := Translate(selector)
	if err == nil {
		return expr, false
	}
	if tag := leadingTag(selector); tag != "" {
		return ".//" + tag, true
	}
	return "", true
}

// leadingTag returns the identifier at the start of selector, lowercased.
func leadingTag(selector string) string {
	s := strings.TrimSpace(selector)
	end := 0
	for end < len(s) {
		c := s[end]
		if isAlpha(c) || (end > 0 && (isDigit(c) || c == '-')) {
			end++
			continue
		}
		break
	}
	return strings.ToLower(s[:end])
}

func splitCompounds(selector string) ([]string, error) {
	var (
		out   []string
		depth int
		quote byte
		start = -1
	)
	for i := 0; i < len(selector); i++ {
		c := selector[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == '[':
			depth++
		case c == ']':
			depth--
		case depth == 0 && (c == '>' || c == '+' || c == '~' || c == ':' || c == '(' || c == ')'):
			return nil, fmt.Errorf("%w: combinator or pseudo %q", errUnsupportedSelector, c)
		case depth == 0 && (c == ' ' || c == '\t' || c == '\n'):
			if start >= 0 {
				out = append(out, selector[start:i])
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if quote != 0 || depth != 0 {
		return nil, fmt.Errorf("%w: unbalanced %q", errUnsupportedSelector, selector)
	}
	if start >= 0 {
		out = append(out, selector[start:])
	}
	return out, nil
}

func translateCompound(compound string) (string, error) {
	pos := 0
	tag := "*"
	if pos < len(compound) && compound[pos] == '*' {
		pos++
	} else if pos < len(compound) && isAlpha(compound[pos]) {
		name, next := readIdent(compound, pos)
		tag = strings.ToLower(name)
		pos = next
	}

	var preds []string
	for pos < len(compound) {
		switch compound[pos] {
		case '.':
			name, next := readIdent(compound, pos+1)
			if name == "" {
				return "", fmt.Errorf("%w: empty class in %q", errUnsupportedSelector, compound)
			}
			preds = append(preds, classToken("class", name))
			pos = next
		case '#':
			name, next := readIdent(compound, pos+1)
			if name == "" {
				return "", fmt.Errorf("%w: empty id in %q", errUnsupportedSelector, compound)
			}
			preds = append(preds, "@id="+xpathLiteral(name))
			pos = next
		case '[':
			pred, next, err := readAttribute(compound, pos+1)
			if err != nil {
				return "", err
			}
			preds = append(preds, pred)
			pos = next
		default:
			return "", fmt.Errorf("%w: unexpected %q in %q", errUnsupportedSelector, compound[pos], compound)
		}
	}

	var sb strings.Builder
	sb.WriteString(tag)
	for _, pred := range preds {
		sb.WriteString("[")
		sb.WriteString(pred)
		sb.WriteString("]")
	}
	return sb.String(), nil
}

func readAttribute(s string, pos int) (string, int, error) {
	pos = skipSpace(s, pos)
	name, pos := readIdent(s, pos)
	if name == "" {
		return "", 0, fmt.Errorf("%w: missing attribute name in %q", errUnsupportedSelector, s)
	}
	name = strings.ToLower(name)
	pos = skipSpace(s, pos)
	if pos >= len(s) {
		return "", 0, fmt.Errorf("%w: unterminated attribute in %q", errUnsupportedSelector, s)
	}
	if s[pos] == ']' {
		return "@" + name, pos + 1, nil
	}

	var op string
	switch {
	case s[pos] == '=':
		op = "="
		pos++
	case pos+1 < len(s) && s[pos+1] == '=' && strings.IndexByte("*^~", s[pos]) >= 0:
		op = s[pos : pos+2]
		pos += 2
	default:
		return "", 0, fmt.Errorf("%w: operator in %q", errUnsupportedSelector, s)
	}

	pos = skipSpace(s, pos)
	value, pos, err := readValue(s, pos)
	if err != nil {
		return "", 0, err
	}
	pos = skipSpace(s, pos)
	if pos >= len(s) || s[pos] != ']' {
		return "", 0, fmt.Errorf("%w: unterminated attribute in %q", errUnsupportedSelector, s)
	}
	pos++

	switch op {
	case "=":
		if name == "class" {
			return classToken(name, value), pos, nil
		}
		return "@" + name + "=" + xpathLiteral(value), pos, nil
	case "~=":
		return classToken(name, value), pos, nil
	case "*=":
		return "contains(@" + name + ", " + xpathLiteral(value) + ")", pos, nil
	default:
		return "starts-with(@" + name + ", " + xpathLiteral(value) + ")", pos, nil
	}
}

func readValue(s string, pos int) (string, int, error) {
	if pos >= len(s) {
		return "", 0, fmt.Errorf("%w: missing value in %q", errUnsupportedSelector, s)
	}
	if q := s[pos]; q == '"' || q == '\'' {
		end := strings.IndexByte(s[pos+1:], q)
		if end < 0 {
			return "", 0, fmt.Errorf("%w: unterminated string in %q", errUnsupportedSelector, s)
		}
		return s[pos+1 : pos+1+end], pos + end + 2, nil
	}
	value, next := readIdent(s, pos)
	if value == "" {
		return "", 0, fmt.Errorf("%w: missing value in %q", errUnsupportedSelector, s)
	}
	return value, next, nil
}

func classToken(attr, token string) string {
	return "contains(concat(' ', normalize-space(@" + attr + "), ' '), " + xpathLiteral(" "+token+" ") + ")"
}

// xpathLiteral quotes s for XPath 1.0, which has no escape sequences.
func xpathLiteral(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	parts := strings.Split(s, "'")
	quoted := make([]string, 0, len(parts)*2)
	for i, part := range parts {
		if i > 0 {
			quoted = append(quoted, `"'"`)
		}
		if part != "" {
			quoted = append(quoted, "'"+part+"'")
		}
	}
	if len(quoted) < 2 {
		quoted = append(quoted, "''")
	}
	return "concat(" + strings.Join(quoted, ", ") + ")"
}

func readIdent(s string, pos int) (string, int) {
	start := pos
	for pos < len(s) && isIdentChar(s[pos]) {
		pos++
	}
	return s[start:pos], pos
}

func skipSpace(s string, pos int) int {
	for pos < len(s) && (s[pos] == ' ' || s[pos] == '\t') {
		pos++
	}
	return pos
}

func isAlpha(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isIdentChar(c byte) bool {
	return isAlpha(c) || isDigit(c) || c == '-' || c == '_' || c == ':' || c >= 0x80
}
