package calendar

import (
	"strings"

	"github.com/hekate/calendar-sync/internal/models"
)

// Google Calendar event status values
const (
	GoogleStatusConfirmed = "confirmed"
	GoogleStatusTentative = "tentative"
	GoogleStatusCancelled = "cancelled"
)

// Outlook showAs values
const (
	OutlookShowAsBusy      = "busy"
	OutlookShowAsTentative = "tentative"
	OutlookShowAsFree      = "free"
)

// MapStatusToGoogle maps an event status to Google's status vocabulary
func MapStatusToGoogle(status models.Status) string {
	switch status {
	case models.StatusTentative:
		return GoogleStatusTentative
	case models.StatusCancelled:
		return GoogleStatusCancelled
	default:
		return GoogleStatusConfirmed
	}
}

// MapStatusToOutlook maps an event status to Outlook's showAs vocabulary.
// Cancelled events show as free.
func MapStatusToOutlook(status models.Status) string {
	switch status {
	case models.StatusTentative:
		return OutlookShowAsTentative
	case models.StatusCancelled:
		return OutlookShowAsFree
	default:
		return OutlookShowAsBusy
	}
}

// MapStatusFromGoogle maps a Google status back, defaulting to confirmed
func MapStatusFromGoogle(status string) models.Status {
	switch strings.ToLower(status) {
	case GoogleStatusTentative:
		return models.StatusTentative
	case GoogleStatusCancelled:
		return models.StatusCancelled
	default:
		return models.StatusConfirmed
	}
}

// MapStatusFromOutlook maps an Outlook showAs value back, defaulting to confirmed.
// "free" comes back as cancelled even for events that were never cancelled.
func MapStatusFromOutlook(showAs string) models.Status {
	switch strings.ToLower(showAs) {
	case OutlookShowAsTentative:
		return models.StatusTentative
	case OutlookShowAsFree:
		return models.StatusCancelled
	default:
		return models.StatusConfirmed
	}
}
