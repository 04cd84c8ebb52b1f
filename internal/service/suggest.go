package service

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"taskboard/internal/model"
)

// Suggestion is a keyword-based guess at how a new task should be filed.
type Suggestion struct {
	Title    string         `json:"suggestedTitle"`
	Priority model.Priority `json:"suggestedPriority"`
	Category string         `json:"suggestedCategory"`
}

type suggestRule struct {
	keywords []string
	category string
	priority model.Priority
}

// First match wins.
var suggestRules = []suggestRule{
	{[]string{"doctor", "hospital", "dentist", "clinic", "checkup", "appointment"}, "Health", model.PriorityHigh},
	{[]string{"gym", "workout", "exercise", "yoga", "fitness"}, "Health", model.PriorityMedium},
	{[]string{"project", "assignment", "study", "homework", "exam", "presentation"}, "Study", model.PriorityHigh},
	{[]string{"buy", "shopping", "grocery", "vegetables", "fruits"}, "Personal", model.PriorityLow},
	{[]string{"meeting", "office", "email", "submit", "review", "call"}, "Work", model.PriorityHigh},
}

// SuggestTask classifies title by keyword and returns it in title case.
func SuggestTask(title string) (Suggestion, error) {
	if strings.TrimSpace(title) == "" {
		return Suggestion{}, invalidf("title is required")
	}

	s := Suggestion{
		Title:    titleCase(title),
		Priority: model.PriorityMedium,
		Category: DefaultCategory,
	}
	lower := strings.ToLower(strings.TrimSpace(title))
	for _, rule := range suggestRules {
		if containsAny(lower, rule.keywords) {
			s.Category = rule.category
			s.Priority = rule.priority
			break
		}
	}
	return s, nil
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}

// titleCase upper-cases the first letter of every space separated word and
// leaves the rest untouched.
func titleCase(s string) string {
	words := strings.Split(s, " ")
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		if size == 0 {
			continue
		}
		words[i] = string(unicode.ToUpper(r)) + w[size:]
	}
	return strings.Join(words, " ")
}
