// Package vcard converts between vCard text and domain.ContactRecord.
//
// The codec is deliberately partial: it models only the fields the
// application stores. Decoding is built on emersion/go-vcard; encoding is
// hand-written so the output has a fixed property order, which makes the
// serialized form usable as input to the content hash.
package vcard

import (
	"fmt"
	"strings"
)

// DecodeError reports a malformed vCard record. It is an item-level
// error: one bad record never invalidates its siblings in a batch.
type DecodeError struct {
	Reason string
}

func (e *DecodeError) Error() string {
	return "vcard: " + e.Reason
}

func decodeErrorf(format string, args ...any) *DecodeError {
	return &DecodeError{Reason: fmt.Sprintf(format, args...)}
}

// SplitBatch splits a batch of concatenated vCards on the
// BEGIN:VCARD/END:VCARD envelope. Text outside an envelope is dropped.
// A record whose END is missing before the next BEGIN is kept as-is and
// left for Decode to reject individually.
func SplitBatch(text string) []string {
	var (
		records []string
		current []string
		inside  bool
	)

	flush := func() {
		if len(current) > 0 {
			records = append(records, strings.Join(current, "\r\n")+"\r\n")
			current = nil
		}
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		upper := strings.ToUpper(strings.TrimSpace(line))

		switch {
		case upper == "BEGIN:VCARD":
			flush()
			inside = true
			current = append(current, line)
		case upper == "END:VCARD":
			if inside {
				current = append(current, line)
				flush()
				inside = false
			}
		case inside:
			current = append(current, line)
		}
	}
	flush()

	return records
}

// escapeValue escapes a property value per RFC 6350 §3.4.
func escapeValue(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case ',':
			b.WriteString(`\,`)
		case ';':
			b.WriteString(`\;`)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// unescapeValue reverses escapeValue. It is a no-op on already-unescaped
// text, so it is safe to apply after the underlying decoder.
func unescapeValue(s string) string {
	if !strings.ContainsRune(s, '\\') {
		return s
	}
	var b strings.Builder
	escaped := false
	for _, r := range s {
		if escaped {
			switch r {
			case 'n', 'N':
				b.WriteRune('\n')
			default:
				b.WriteRune(r)
			}
			escaped = false
			continue
		}
		if r == '\\' {
			escaped = true
			continue
		}
		b.WriteRune(r)
	}
	if escaped {
		b.WriteRune('\\')
	}
	return b.String()
}

// splitComponents splits a structured value (N, ADR) on unescaped
// semicolons and unescapes each component.
func splitComponents(s string) []string {
	var (
		parts   []string
		current strings.Builder
		escaped bool
	)
	for _, r := range s {
		if escaped {
			current.WriteRune('\\')
			current.WriteRune(r)
			escaped = false
			continue
		}
		switch r {
		case '\\':
			escaped = true
		case ';':
			parts = append(parts, unescapeValue(current.String()))
			current.Reset()
		default:
			current.WriteRune(r)
		}
	}
	if escaped {
		current.WriteRune('\\')
	}
	parts = append(parts, unescapeValue(current.String()))
	return parts
}

// component returns parts[i] or "" when the slice is too short.
func component(parts []string, i int) string {
	if i < len(parts) {
		return parts[i]
	}
	return ""
}
