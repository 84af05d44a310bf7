package parser

import (
	"fmt"
	"strings"
	"unicode"
)

// All helpers here work on "top level" text: characters outside single-quoted
// strings and outside parentheses. A doubled quote ('') inside a string is an
// escaped quote and toggles the quote state twice, so it needs no special case.

// normalizeSpace collapses whitespace runs outside quotes into one space.
func normalizeSpace(s string) string {
	var b strings.Builder
	inQuote := false
	pendingSpace := false
	for _, r := range strings.TrimSpace(s) {
		if r == '\'' {
			inQuote = !inQuote
		}
		if !inQuote && unicode.IsSpace(r) {
			pendingSpace = true
			continue
		}
		if pendingSpace {
			b.WriteByte(' ')
			pendingSpace = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

func isIdentByte(c byte) bool {
	return c == '_' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= 0x80
}

// indexKeyword returns the byte offset of the first top-level occurrence of kw
// (case-insensitive, on word boundaries) at or after from, or -1.
func indexKeyword(s, kw string, from int) int {
	inQuote := false
	depth := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '\'':
			inQuote = !inQuote
			continue
		case inQuote:
			continue
		case c == '(':
			depth++
			continue
		case c == ')':
			depth--
			continue
		}
		if i < from || depth != 0 {
			continue
		}
		end := i + len(kw)
		if end > len(s) || !strings.EqualFold(s[i:end], kw) {
			continue
		}
		if i > 0 && isIdentByte(s[i-1]) {
			continue
		}
		if end < len(s) && isIdentByte(s[end]) {
			continue
		}
		return i
	}
	return -1
}

// hasKeywordPrefix reports whether s starts with kw followed by a word boundary.
func hasKeywordPrefix(s, kw string) bool {
	return indexKeyword(s, kw, 0) == 0
}

// splitTopLevel splits s on sep outside quotes and parentheses.
func splitTopLevel(s string, sep byte) []string {
	var parts []string
	inQuote := false
	depth := 0
	start := 0
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c == '\'':
			inQuote = !inQuote
		case inQuote:
		case c == '(':
			depth++
		case c == ')':
			depth--
		case c == sep && depth == 0:
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	return append(parts, s[start:])
}

// checkBalanced rejects unterminated strings and unbalanced parentheses.
func checkBalanced(s string) error {
	inQuote := false
	depth := 0
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c == '\'':
			inQuote = !inQuote
		case inQuote:
		case c == '(':
			depth++
		case c == ')':
			depth--
			if depth < 0 {
				return fmt.Errorf("unbalanced ')' at offset %d", i)
			}
		}
	}
	if inQuote {
		return fmt.Errorf("unterminated string literal")
	}
	if depth != 0 {
		return fmt.Errorf("unbalanced parentheses")
	}
	return nil
}

// SplitStatements splits a script on top-level ';' and drops empty statements
// and `--` line comments.
func SplitStatements(script string) []string {
	var out []string
	var cur strings.Builder
	inQuote := false
	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			out = append(out, s)
		}
		cur.Reset()
	}
	for i := 0; i < len(script); i++ {
		c := script[i]
		switch {
		case c == '\'':
			inQuote = !inQuote
		case inQuote:
		case c == '-' && i+1 < len(script) && script[i+1] == '-':
			for i < len(script) && script[i] != '\n' {
				i++
			}
			cur.WriteByte('\n')
			continue
		case c == ';':
			flush()
			continue
		}
		cur.WriteByte(c)
	}
	flush()
	return out
}

// parseIdent validates an identifier (table/column name).
// Rules:
//   - must be exactly one token (no spaces)
//   - first char: letter or '_'
//   - rest: letter/digit/'_'
func parseIdent(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("missing identifier")
	}
	parts := strings.Fields(s)
	if len(parts) != 1 {
		return "", fmt.Errorf("invalid identifier %q", s)
	}
	id := parts[0]
	for i, r := range id {
		if i == 0 {
			if !unicode.IsLetter(r) && r != '_' {
				return "", fmt.Errorf("invalid identifier %q", id)
			}
			continue
		}
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			return "", fmt.Errorf("invalid identifier %q", id)
		}
	}
	return id, nil
}

// parseColumnRef accepts `col` or `qualifier.col`.
func parseColumnRef(s string) (ColumnRef, error) {
	s = strings.TrimSpace(s)
	if q, c, ok := strings.Cut(s, "."); ok {
		tbl, err := parseIdent(q)
		if err != nil {
			return ColumnRef{}, err
		}
		col, err := parseIdent(c)
		if err != nil {
			return ColumnRef{}, err
		}
		return ColumnRef{Table: tbl, Column: col}, nil
	}
	col, err := parseIdent(s)
	if err != nil {
		return ColumnRef{}, err
	}
	return ColumnRef{Column: col}, nil
}
