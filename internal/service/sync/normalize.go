package sync

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"actions-service/internal/model"
)

// dueKeywords maps free-text hints to day offsets from now. Scan order is
// significant: the first match wins.
var dueKeywords = []struct {
	keyword string
	days    int
}{
	{"today", 0},
	{"tomorrow", 1},
	{"asap", 0},
	{"urgent", 0},
	{"this week", 7},
	{"next week", 14},
	{"eod", 0},
	{"eow", 7},
}

var datePattern = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})\b`)

var titlePrefixes = []string{
	"task:", "todo:", "action item:",
	"follow up:", "followup:", "reply to",
}

// ExtractDueDate derives a due date from free-form task text. Keyword hits
// come first; failing that, an M/D numeric date rolls forward to next year if
// it already passed. No match yields nil.
func ExtractDueDate(text string, now time.Time) *time.Time {
	lower := strings.ToLower(text)
	for _, kw := range dueKeywords {
		if strings.Contains(lower, kw.keyword) {
			due := now.AddDate(0, 0, kw.days)
			return &due
		}
	}

	m := datePattern.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	month, _ := strconv.Atoi(m[1])
	day, _ := strconv.Atoi(m[2])

	due := time.Date(now.Year(), time.Month(month), day, 0, 0, 0, 0, now.Location())
	// reject impossible dates instead of letting time.Date normalize them
	if due.Month() != time.Month(month) || due.Day() != day {
		return nil
	}
	if due.Before(now) {
		due = time.Date(now.Year()+1, time.Month(month), day, 0, 0, 0, 0, now.Location())
		// Feb 29 can be valid this year and absent next year
		if due.Month() != time.Month(month) || due.Day() != day {
			return nil
		}
	}
	return &due
}

// CleanTitle strips noise prefixes, capitalizes the first rune, prepends
// "Reply: " for followups not already phrased as a reply, and truncates to
// the storage limit. Applying it twice yields the same string.
func CleanTitle(text string, label model.Label) string {
	clean := strings.TrimSpace(text)
	for _, prefix := range titlePrefixes {
		if strings.HasPrefix(strings.ToLower(clean), prefix) {
			clean = strings.TrimSpace(clean[len(prefix):])
		}
	}

	if label == model.LabelFollowup && !strings.HasPrefix(strings.ToLower(clean), "reply") {
		clean = "Reply: " + clean
	}

	if clean != "" {
		runes := []rune(clean)
		runes[0] = unicode.ToUpper(runes[0])
		clean = string(runes)
	}

	return model.TruncateTitle(clean)
}
