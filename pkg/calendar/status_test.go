package calendar

import (
	"testing"

	"github.com/hekate/calendar-sync/internal/models"
)

func TestMapStatusToProviders(t *testing.T) {
	tests := []struct {
		input   string
		google  string
		outlook string
	}{
		{"CONFIRMED", "confirmed", "busy"},
		{"PUBLISHED", "confirmed", "busy"},
		{"TENTATIVE", "tentative", "tentative"},
		{"DRAFT", "tentative", "tentative"},
		{"CANCELLED", "cancelled", "free"},
		{"CANCELED", "cancelled", "free"},
		{"UNKNOWN", "confirmed", "busy"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			status, _ := models.ParseStatus(tt.input)
			if got := MapStatusToGoogle(status); got != tt.google {
				t.Errorf("MapStatusToGoogle(%s) = %s, want %s", tt.input, got, tt.google)
			}
			if got := MapStatusToOutlook(status); got != tt.outlook {
				t.Errorf("MapStatusToOutlook(%s) = %s, want %s", tt.input, got, tt.outlook)
			}
		})
	}
}

func TestMapStatusFromProviders(t *testing.T) {
	if MapStatusFromGoogle("unknown") != models.StatusConfirmed {
		t.Error("Expected unknown Google status to default to confirmed")
	}
	if MapStatusFromOutlook("oof") != models.StatusConfirmed {
		t.Error("Expected unknown Outlook showAs to default to confirmed")
	}
	if MapStatusFromOutlook("workingElsewhere") != models.StatusConfirmed {
		t.Error("Expected workingElsewhere to default to confirmed")
	}
}

func TestStatusRoundTrip_Google(t *testing.T) {
	for _, status := range []models.Status{models.StatusConfirmed, models.StatusTentative, models.StatusCancelled} {
		if got := MapStatusFromGoogle(MapStatusToGoogle(status)); got != status {
			t.Errorf("Google round trip of %v returned %v", status, got)
		}
	}
}

func TestStatusRoundTrip_Outlook(t *testing.T) {
	for _, status := range []models.Status{models.StatusConfirmed, models.StatusTentative, models.StatusCancelled} {
		if got := MapStatusFromOutlook(MapStatusToOutlook(status)); got != status {
			t.Errorf("Outlook round trip of %v returned %v", status, got)
		}
	}

	// A free slot created in Outlook is not a cancelled event, but it reads back as one.
	if MapStatusFromOutlook("free") != models.StatusCancelled {
		t.Error("Expected free to collapse into cancelled")
	}
}

func TestGuard(t *testing.T) {
	result := Guard(func() Result[string] {
		var event *models.CalendarEvent
		return OK(event.Title)
	})
	if result.Success {
		t.Fatal("Expected panic to become a failed result")
	}
	if result.Error == "" {
		t.Error("Expected an error message")
	}

	ok := Guard(func() Result[int] { return OK(42, "careful") })
	if !ok.Success || ok.Data != 42 || len(ok.Warnings) != 1 {
		t.Errorf("Unexpected result %+v", ok)
	}

	filtered := Fail[int]("%s", ErrFilteredOut)
	if !filtered.Filtered() {
		t.Error("Expected Filtered() for privacy rejection")
	}
}
