package query

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
)

var (
	forNamePattern      = regexp.MustCompile(`(?i)\bfor\s+([A-Za-z][a-z]+(?: [A-Za-z][a-z]+)?)`)
	capitalizedPattern  = regexp.MustCompile(`\b[A-Z][a-z]+\b`)
	forLowerNamePattern = regexp.MustCompile(`\bfor\s+([a-z]{3,})\b`)
	beforeExpensePat    = regexp.MustCompile(`(.+?)\s+expenses?\b`)
	afterExpensePat     = regexp.MustCompile(`\bexpenses?\s+(\w+(?: \w+)*)`)
	quotedPattern       = regexp.MustCompile(`"([^"]+)"`)
	yearPattern         = regexp.MustCompile(`\b(20\d{2})\b`)
)

// extractPersonNames scans the original-case query for name candidates:
// "for <Name>" spans, standalone capitalized words, and a lowercase
// "for <word>" fallback for names typed without capitalization.
func extractPersonNames(raw string) []string {
	var names []string
	seen := make(map[string]struct{})
	add := func(name string) {
		key := strings.ToLower(name)
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		names = append(names, name)
	}

	for _, m := range forNamePattern.FindAllStringSubmatch(raw, -1) {
		if len(m) > 1 && len(m[1]) > 2 {
			add(m[1])
		}
	}

	for _, word := range capitalizedPattern.FindAllString(raw, -1) {
		lower := strings.ToLower(word)
		if len(word) > 2 && !isDateWord(lower) && !isStopword(lower) && lower != "for" {
			add(word)
		}
	}

	for _, m := range forLowerNamePattern.FindAllStringSubmatch(strings.ToLower(raw), -1) {
		if len(m) > 1 && !isDateWord(m[1]) && !isStopword(m[1]) {
			add(capitalize(m[1]))
		}
	}

	return names
}

func capitalize(w string) string {
	runes := []rune(w)
	if len(runes) == 0 {
		return w
	}
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

// extractPhrases detects "<words> expense" / "expense <words>" spans in the
// normalized query and quoted substrings in the raw query. Each multi-word
// span, stripped of stopwords and date words, becomes a phrase candidate.
func extractPhrases(normalized, rawLower string) []string {
	var phrases []string
	seen := make(map[string]struct{})
	add := func(p string) {
		if p == "" {
			return
		}
		if _, ok := seen[p]; ok {
			return
		}
		seen[p] = struct{}{}
		phrases = append(phrases, p)
	}

	for _, pat := range []*regexp.Regexp{beforeExpensePat, afterExpensePat} {
		for _, m := range pat.FindAllStringSubmatch(normalized, -1) {
			if len(m) < 2 {
				continue
			}
			words := make([]string, 0, 4)
			for _, w := range wordPattern.FindAllString(m[1], -1) {
				if isStopword(w) || isDateWord(w) {
					continue
				}
				words = append(words, w)
			}
			if len(words) >= 2 {
				add(strings.Join(words, " "))
			}
		}
	}

	for _, m := range quotedPattern.FindAllStringSubmatch(rawLower, -1) {
		if len(m) > 1 {
			add(strings.TrimSpace(m[1]))
		}
	}

	return phrases
}

// extractMonth maps month-name tokens to 1-12, falling back to a bare 1-12
// numeric token. Returns 0 when the query carries no month hint.
func extractMonth(tokens []string) int {
	for _, tok := range tokens {
		if m, ok := monthNames[tok]; ok {
			return m
		}
	}
	for _, tok := range tokens {
		if n, err := strconv.Atoi(tok); err == nil && n >= 1 && n <= 12 {
			return n
		}
	}
	return 0
}

// extractYear returns the explicit 4-digit year (2000-2099) in the query, or
// the current year when absent.
func extractYear(raw string) int {
	if m := yearPattern.FindStringSubmatch(raw); len(m) > 1 {
		if y, err := strconv.Atoi(m[1]); err == nil {
			return y
		}
	}
	return time.Now().Year()
}
