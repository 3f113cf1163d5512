package docs

import (
	"regexp"
	"strconv"
	"strings"
)

// Badge statuses.
const (
	StatusPassing = "passing"
	StatusWarning = "warning"
	StatusFailing = "failing"
)

// Badge is a test-result marker such as "Backend Tests | 7/7 PASSING" found in a document.
type Badge struct {
	Label      string `json:"label"`
	Value      string `json:"value"`
	Status     string `json:"status"`
	SourceFile string `json:"source_file"`
	LineNumber int    `json:"line_number"`
}

var (
	// | Backend Tests | **7/7 PASSING** |
	tableBadgeRe = regexp.MustCompile(`(?i)\|\s*([^|]+)\s*\|\s*\*?\*?(\d+/\d+\s+(?:PASS(?:ING|ED)?|FAIL(?:ING|ED)?|WARNING))\*?\*?\s*\|`)
	// **Playwright Tests: 31/36 PASSING**
	statusBadgeRe = regexp.MustCompile(`(?i)\*?\*?([^*|:]+?)(?:\s*[|:])?\s*\*?\*?(\d+/\d+\s+(?:PASS(?:ING|ED)?|FAIL(?:ING|ED)?))\*?\*?`)
	ratioRe       = regexp.MustCompile(`(\d+)/(\d+)`)
)

// extractBadges scans content line by line. A table row wins over the looser status pattern on the same line.
func extractBadges(content, filename string) []Badge {
	var out []Badge
	for i, line := range strings.Split(content, "\n") {
		if m := tableBadgeRe.FindStringSubmatch(line); m != nil {
			value := strings.ToUpper(strings.TrimSpace(m[2]))
			out = append(out, Badge{
				Label:      strings.TrimSpace(m[1]),
				Value:      value,
				Status:     badgeStatus(value),
				SourceFile: filename,
				LineNumber: i + 1,
			})
			continue
		}

		m := statusBadgeRe.FindStringSubmatch(line)
		if m == nil || !strings.Contains(m[2], "/") {
			continue
		}
		label := strings.TrimSpace(m[1])
		if len([]rune(label)) <= 2 || allDigits(label) {
			continue
		}
		value := strings.ToUpper(strings.TrimSpace(m[2]))
		out = append(out, Badge{
			Label:      label,
			Value:      value,
			Status:     badgeStatus(value),
			SourceFile: filename,
			LineNumber: i + 1,
		})
	}
	return out
}

// badgeStatus maps a badge value to passing, warning or failing. A PASS value with failures is a warning.
func badgeStatus(value string) string {
	v := strings.ToUpper(value)
	switch {
	case strings.Contains(v, "FAIL"):
		return StatusFailing
	case strings.Contains(v, "WARN"):
		return StatusWarning
	case strings.Contains(v, "PASS"):
		if m := ratioRe.FindStringSubmatch(v); m != nil {
			passed, _ := strconv.Atoi(m[1])
			total, _ := strconv.Atoi(m[2])
			if passed < total {
				return StatusWarning
			}
		}
		return StatusPassing
	default:
		return StatusWarning
	}
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
