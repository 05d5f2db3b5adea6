package compliance

import (
	"regexp"
	"strings"
	"time"

	"leasepack/internal/facts/casefacts"
)

var (
	datePattern = regexp.MustCompile(`(?i)\b(\d{4}-\d{2}-\d{2}|\d{1,2}/\d{1,2}/\d{4}|\d{1,2} (?:january|february|march|april|may|june|july|august|september|october|november|december) \d{4})\b`)
	// "Ground 8", "Grounds 8, 10 and 11", "ground 14A"
	groundsPattern = regexp.MustCompile(`(?i)\bgrounds?\s+((?:\d{1,2}[a-z]?)(?:\s*(?:,|and|&)\s*\d{1,2}[a-z]?)*)`)
	groundNumber   = regexp.MustCompile(`(?i)\d{1,2}[a-z]?`)
)

// firstDate returns the first date in s.
func firstDate(s string) (time.Time, bool) {
	for _, m := range datePattern.FindAllString(s, -1) {
		if t, ok := casefacts.ParseDate(titleMonth(m)); ok {
			return t, true
		}
	}
	return time.Time{}, false
}

// titleMonth turns "1 JANUARY 2026" into "1 January 2026" for time.Parse.
func titleMonth(s string) string {
	parts := strings.Fields(s)
	if len(parts) == 3 {
		m := strings.ToLower(parts[1])
		parts[1] = strings.ToUpper(m[:1]) + m[1:]
		return strings.Join(parts, " ")
	}
	return s
}

// labelledDate tries each label in priority order and returns a date from the
// text after the first line carrying it, or from the next two lines.
func labelledDate(lines []string, labels ...string) (time.Time, bool) {
	for _, label := range labels {
		for i, line := range lines {
			// Lowercasing can change byte lengths, so slice the lowered
			// line the index was taken from.
			lower := strings.ToLower(line)
			idx := strings.Index(lower, label)
			if idx < 0 {
				continue
			}
			if t, ok := firstDate(lower[idx+len(label):]); ok {
				return t, true
			}
			for j := i + 1; j < len(lines) && j <= i+2; j++ {
				if t, ok := firstDate(lines[j]); ok {
					return t, true
				}
			}
		}
	}
	return time.Time{}, false
}

var signaturePlaceholders = strings.NewReplacer("_", "", ".", "", ":", "", "-", "", " ", "")

// hasSignature looks for a completed "Signed" line. A bare label or a line of
// underscores is not a signature.
func hasSignature(lines []string) bool {
	for i, line := range lines {
		lower := strings.ToLower(strings.TrimSpace(line))
		if strings.Contains(lower, "[signed]") || strings.Contains(lower, "/s/") {
			return true
		}
		for _, label := range []string{"signed", "signature"} {
			if !strings.HasPrefix(lower, label) {
				continue
			}
			rest := signaturePlaceholders.Replace(lower[len(label):])
			if rest != "" {
				return true
			}
			if i+1 < len(lines) {
				next := strings.ToLower(strings.TrimSpace(lines[i+1]))
				if strings.HasPrefix(next, "[signed]") {
					return true
				}
			}
		}
	}
	return false
}

// groundsIn extracts ground numbers in the order they first appear.
func groundsIn(text string) []string {
	seen := map[string]bool{}
	var out []string
	for _, m := range groundsPattern.FindAllStringSubmatch(text, -1) {
		for _, g := range groundNumber.FindAllString(m[1], -1) {
			g = strings.ToUpper(g)
			if !seen[g] {
				seen[g] = true
				out = append(out, g)
			}
		}
	}
	return out
}

func containsAny(text string, needles ...string) bool {
	lower := strings.ToLower(text)
	for _, n := range needles {
		if strings.Contains(lower, n) {
			return true
		}
	}
	return false
}

func daysBetween(from, to time.Time) int {
	return int(to.Sub(from).Hours() / 24)
}
