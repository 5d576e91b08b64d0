package gcal

import (
	"context"
	"fmt"
	"os"
	"time"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// Calendar records application events.
type Calendar interface {
	CreateApplicationEvents(ctx context.Context, company, role string, appliedAt time.Time, followUpAfter time.Duration) (appliedID, followUpID string, err error)
}

// GoogleCalendar writes all-day events to the primary calendar.
type GoogleCalendar struct {
	svc *calendar.Service
}

// NewGoogleCalendar builds a Calendar client from a credentials file.
func NewGoogleCalendar(ctx context.Context, credentialsPath string) (*GoogleCalendar, error) {
	if _, err := os.Stat(credentialsPath); err != nil {
		return nil, fmt.Errorf("google credentials not found at %s: %w", credentialsPath, err)
	}
	svc, err := calendar.NewService(ctx, option.WithCredentialsFile(credentialsPath), option.WithScopes(calendar.CalendarEventsScope))
	if err != nil {
		return nil, fmt.Errorf("failed to build calendar service: %w", err)
	}
	return &GoogleCalendar{svc: svc}, nil
}

// CreateApplicationEvents writes an "Applied" event on the application date
// and a "Follow-up" event followUpAfter later, with a popup reminder.
func (c *GoogleCalendar) CreateApplicationEvents(ctx context.Context, company, role string, appliedAt time.Time, followUpAfter time.Duration) (string, string, error) {
	appliedDate := appliedAt.UTC().Format("2006-01-02")
	applied := &calendar.Event{
		Summary:     fmt.Sprintf("Applied: %s - %s", company, role),
		Description: fmt.Sprintf("Job application submitted for %s at %s.", role, company),
		Start:       &calendar.EventDateTime{Date: appliedDate},
		End:         &calendar.EventDateTime{Date: appliedDate},
		Reminders:   &calendar.EventReminders{UseDefault: false, ForceSendFields: []string{"UseDefault"}},
	}
	appliedEvent, err := c.svc.Events.Insert("primary", applied).Context(ctx).Do()
	if err != nil {
		return "", "", fmt.Errorf("failed to create applied event: %w", err)
	}

	followUpDate := appliedAt.Add(followUpAfter).UTC().Format("2006-01-02")
	followUp := &calendar.Event{
		Summary:     fmt.Sprintf("Follow-up: %s - %s", company, role),
		Description: fmt.Sprintf("Follow up on job application for %s at %s.\nApplied on %s.", role, company, appliedDate),
		Start:       &calendar.EventDateTime{Date: followUpDate},
		End:         &calendar.EventDateTime{Date: followUpDate},
		Reminders: &calendar.EventReminders{
			UseDefault:      false,
			Overrides:       []*calendar.EventReminder{{Method: "popup", Minutes: 60}},
			ForceSendFields: []string{"UseDefault"},
		},
	}
	followUpEvent, err := c.svc.Events.Insert("primary", followUp).Context(ctx).Do()
	if err != nil {
		return appliedEvent.Id, "", fmt.Errorf("failed to create follow-up event: %w", err)
	}
	return appliedEvent.Id, followUpEvent.Id, nil
}
