// internal/notifications/render/strict.go
package render

import (
	"fmt"
	"strconv"
	"strings"
)

// Words that appear in expressions without being variable lookups.
var exprKeywords = map[string]struct{}{
	"and": {}, "or": {}, "not": {}, "in": {}, "is": {}, "as": {},
	"true": {}, "false": {}, "True": {}, "False": {}, "none": {}, "None": {}, "nil": {},
	"reversed": {}, "sorted": {}, "only": {},
}

// Tags whose arguments are expressions. Any other tag is not inspected.
var exprTags = map[string]struct{}{
	"if": {}, "elif": {}, "firstof": {}, "cycle": {}, "ifequal": {}, "ifnotequal": {},
	"widthratio": {},
}

type segment struct {
	tag  string // empty for {{ }} output
	body string
}

// checkReferences rejects lookups the engine would otherwise resolve to nothing: an
// attribute of an undefined value or a call on anything. A bare undefined name, or an
// undefined last attribute, renders empty and is allowed.
func checkReferences(text string, ctx map[string]interface{}) error {
	locals := map[string]struct{}{"forloop": {}, "pongo2": {}}
	skipUntil := ""

	for _, seg := range segments(text) {
		if skipUntil != "" {
			if seg.tag == skipUntil {
				skipUntil = ""
			}
			continue
		}

		expr := seg.body
		switch seg.tag {
		case "":
		case "comment", "verbatim":
			skipUntil = "end" + seg.tag
			continue
		case "for":
			idx := strings.Index(seg.body, " in ")
			if idx < 0 {
				continue
			}
			for _, name := range strings.Split(seg.body[:idx], ",") {
				locals[strings.TrimSpace(name)] = struct{}{}
			}
			expr = seg.body[idx+len(" in "):]
		case "with":
			if idx := strings.Index(seg.body, " as "); idx >= 0 {
				locals[strings.TrimSpace(seg.body[idx+len(" as "):])] = struct{}{}
				expr = seg.body[:idx]
			}
		default:
			if _, ok := exprTags[seg.tag]; !ok {
				continue
			}
		}

		if err := checkExpression(expr, ctx, locals); err != nil {
			return err
		}
	}
	return nil
}

// segments splits text into output expressions and tags. Comments are dropped.
func segments(text string) []segment {
	var out []segment
	for {
		i := strings.IndexByte(text, '{')
		if i < 0 || i+1 >= len(text) {
			return out
		}

		var end string
		switch text[i+1] {
		case '{':
			end = "}}"
		case '%':
			end = "%}"
		case '#':
			end = "#}"
		default:
			text = text[i+1:]
			continue
		}

		j := strings.Index(text[i+2:], end)
		if j < 0 {
			return out
		}
		inner := strings.TrimSpace(strings.Trim(strings.TrimSpace(text[i+2:i+2+j]), "-"))
		text = text[i+2+j+len(end):]

		switch end {
		case "}}":
			out = append(out, segment{body: inner})
		case "%}":
			name, rest, _ := strings.Cut(inner, " ")
			out = append(out, segment{tag: name, body: strings.TrimSpace(rest)})
		}
	}
}

func checkExpression(expr string, ctx map[string]interface{}, locals map[string]struct{}) error {
	var prev byte
	for i := 0; i < len(expr); {
		c := expr[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '"' || c == '\'':
			j := i + 1
			for j < len(expr) && expr[j] != c {
				if expr[j] == '\\' {
					j++
				}
				j++
			}
			i = j + 1
			prev = c
		case isDigit(c):
			for i < len(expr) && (isIdentChar(expr[i]) || expr[i] == '.') {
				i++
			}
			prev = '0'
		case isIdentStart(c):
			parts, next := readChain(expr, i)
			i = next
			filterName := prev == '|'
			prev = 'a'
			if filterName {
				continue
			}
			if _, ok := exprKeywords[parts[0]]; ok && len(parts) == 1 {
				continue
			}

			rest := skipSpace(expr, i)
			if len(parts) == 1 && rest < len(expr) && expr[rest] == '=' &&
				(rest+1 >= len(expr) || expr[rest+1] != '=') {
				// with name=value
				locals[parts[0]] = struct{}{}
				continue
			}
			call := rest < len(expr) && expr[rest] == '('
			if err := resolveChain(parts, call, ctx, locals); err != nil {
				return err
			}
		default:
			prev = c
			i++
		}
	}
	return nil
}

func resolveChain(parts []string, call bool, ctx map[string]interface{}, locals map[string]struct{}) error {
	if _, ok := locals[parts[0]]; ok {
		return nil
	}

	var current interface{} = ctx
	for i, part := range parts {
		next, ok := lookup(current, part)
		if !ok {
			if i < len(parts)-1 || call {
				return fmt.Errorf("'%s' is undefined", strings.Join(parts[:i+1], "."))
			}
			return nil
		}
		current = next
	}
	if call {
		return fmt.Errorf("'%s' is not callable", strings.Join(parts, "."))
	}
	return nil
}

func lookup(v interface{}, key string) (interface{}, bool) {
	switch val := v.(type) {
	case map[string]interface{}:
		child, ok := val[key]
		return child, ok
	case []interface{}:
		idx, err := strconv.Atoi(key)
		if err != nil || idx < 0 || idx >= len(val) {
			return nil, false
		}
		return val[idx], true
	}
	return nil, false
}

func readChain(expr string, i int) ([]string, int) {
	var parts []string
	for {
		j := i
		for j < len(expr) && isIdentChar(expr[j]) {
			j++
		}
		parts = append(parts, expr[i:j])
		if j+1 < len(expr) && expr[j] == '.' && isIdentChar(expr[j+1]) {
			i = j + 1
			continue
		}
		return parts, j
	}
}

func skipSpace(s string, i int) int {
	for i < len(s) && (s[i] == ' ' || s[i] == '\t' || s[i] == '\n' || s[i] == '\r') {
		i++
	}
	return i
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentChar(c byte) bool { return isIdentStart(c) || isDigit(c) }
