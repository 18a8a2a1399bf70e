// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package format

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// DateLayout is how timestamps in result cells are displayed.
const DateLayout = "2006-01-02 15:04"

// printer formats numbers with locale separators.
var printer = message.NewPrinter(language.English)

// FormatCell renders one result value for display.
func FormatCell(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case bool:
		return strconv.FormatBool(val)
	case json.Number:
		return formatNumberString(string(val))
	case float64:
		return FormatFloat(val)
	case int:
		return FormatCount(int64(val))
	case int64:
		return FormatCount(val)
	case string:
		return formatString(val)
	default:
		return fmt.Sprint(val)
	}
}

// FormatCount renders an integer with thousands separators.
func FormatCount(n int64) string {
	return printer.Sprintf("%d", n)
}

// FormatFloat renders a number with thousands separators and at most two
// decimals, dropping trailing zeros. Integral values print without decimals.
func FormatFloat(f float64) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return FormatCount(int64(f))
	}
	s := printer.Sprintf("%.2f", f)
	if strings.Contains(s, ".") {
		s = strings.TrimRight(s, "0")
		s = strings.TrimSuffix(s, ".")
	}
	if s == "-0" {
		return "0"
	}
	return s
}

// formatNumberString formats a JSON number literal. Integer literals too
// large for int64 keep every digit.
func formatNumberString(s string) string {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return FormatCount(n)
	}
	if IsIntegerLiteral(s) {
		return groupDigits(s)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return FormatFloat(f)
	}
	return s
}

// IsIntegerLiteral reports whether s is an optionally signed run of digits.
func IsIntegerLiteral(s string) bool {
	digits := strings.TrimPrefix(s, "-")
	if digits == "" {
		return false
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// groupDigits inserts thousands separators into an integer literal.
func groupDigits(s string) string {
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	var sb strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			sb.WriteByte(',')
		}
		sb.WriteRune(r)
	}
	return sign + sb.String()
}

// timestampLayouts are the layouts recognised as dates in string cells.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// formatString reformats ISO timestamps and leaves other strings alone.
func formatString(s string) string {
	if len(s) >= 19 && len(s) <= 35 && s[4] == '-' && s[7] == '-' {
		for _, layout := range timestampLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t.Format(DateLayout)
			}
		}
	}
	return s
}

// HumanizeHeader turns snake_case or camelCase keys into Title Case.
func HumanizeHeader(key string) string {
	if key == "" {
		return key
	}

	var words []string
	var cur []rune
	flush := func() {
		if len(cur) > 0 {
			words = append(words, string(cur))
			cur = cur[:0]
		}
	}

	runes := []rune(key)
	for i, r := range runes {
		switch {
		case r == '_' || r == '-' || r == ' ' || r == '.':
			flush()
		case unicode.IsUpper(r) && i > 0 && (unicode.IsLower(runes[i-1]) ||
			(i+1 < len(runes) && unicode.IsLower(runes[i+1]) && unicode.IsUpper(runes[i-1]))):
			flush()
			cur = append(cur, r)
		default:
			cur = append(cur, r)
		}
	}
	flush()

	for i, w := range words {
		if isAcronym(w) {
			continue
		}
		if initialisms[strings.ToLower(w)] {
			words[i] = strings.ToUpper(w)
			continue
		}
		r := []rune(strings.ToLower(w))
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}

// initialisms are displayed upper case.
var initialisms = map[string]bool{
	"id": true, "url": true, "uuid": true, "sku": true, "api": true, "ip": true,
}

// isAcronym reports whether a word is already all upper case (e.g. "ID").
func isAcronym(w string) bool {
	hasLetter := false
	for _, r := range w {
		if unicode.IsLetter(r) {
			hasLetter = true
			if !unicode.IsUpper(r) {
				return false
			}
		}
	}
	return hasLetter && len([]rune(w)) > 1
}
