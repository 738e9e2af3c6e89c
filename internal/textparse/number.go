// Package textparse holds the German number normalizer and the
// euro-per-square-meter range parser shared by the rent and benchmark code.
package textparse

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	nonNumericRe = regexp.MustCompile(`[^\d,.]`)
	whitespaceRe = regexp.MustCompile(`\s+`)
	hasDigitRe   = regexp.MustCompile(`\d`)
)

// ParseGermanNumber parses "1.234,56 €" style text: '.' groups thousands,
// ',' separates decimals. Returns nil when no number can be read.
func ParseGermanNumber(s string) *float64 {
	if !hasDigitRe.MatchString(s) {
		return nil
	}
	cleaned := nonNumericRe.ReplaceAllString(s, "")
	cleaned = strings.ReplaceAll(cleaned, ".", "")
	cleaned = strings.Replace(cleaned, ",", ".", 1)
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// ParseEuroAmount is ParseGermanNumber for captured rent amounts, which may
// carry spaces between digit groups ("9 600,00"). Zero counts as absent.
func ParseEuroAmount(s string) *float64 {
	v := ParseGermanNumber(whitespaceRe.ReplaceAllString(s, ""))
	if v == nil || *v == 0 {
		return nil
	}
	return v
}

// ParseDecimal reads short per-area figures like "7,50" or "7.50" where
// either separator is a decimal point.
func ParseDecimal(s string) *float64 {
	s = strings.TrimSpace(strings.Replace(s, ",", ".", 1))
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &f
}

// NormalizeWhitespace maps NBSP to a plain space and collapses runs of whitespace
func NormalizeWhitespace(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

// Round2 rounds to two decimals
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Truncate cuts s to at most n runes
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
