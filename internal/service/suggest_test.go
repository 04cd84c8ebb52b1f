package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskboard/internal/model"
)

func TestSuggestTask(t *testing.T) {
	tests := []struct {
		title    string
		want     string
		category string
		priority model.Priority
	}{
		{"book dentist appointment", "Book Dentist Appointment", "Health", model.PriorityHigh},
		{"morning yoga", "Morning Yoga", "Health", model.PriorityMedium},
		{"finish homework", "Finish Homework", "Study", model.PriorityHigh},
		{"buy vegetables", "Buy Vegetables", "Personal", model.PriorityLow},
		{"Team MEETING notes", "Team MEETING Notes", "Work", model.PriorityHigh},
		{"walk the dog", "Walk The Dog", DefaultCategory, model.PriorityMedium},
		{"gym then doctor", "Gym Then Doctor", "Health", model.PriorityHigh},
		{"study for the meeting", "Study For The Meeting", "Study", model.PriorityHigh},
	}
	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			got, err := SuggestTask(tt.title)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Title)
			assert.Equal(t, tt.category, got.Category)
			assert.Equal(t, tt.priority, got.Priority)
		})
	}
}

func TestSuggestTaskRequiresTitle(t *testing.T) {
	for _, title := range []string{"", "   "} {
		_, err := SuggestTask(title)
		assert.ErrorIs(t, err, ErrValidation)
	}
}

func TestTitleCaseKeepsSpacing(t *testing.T) {
	assert.Equal(t, "Éclair  Run", titleCase("éclair  run"))
}
