package provider

import (
	"context"
	"encoding/json"
	"fmt"
)

// googleCalendarAdapter backs the "google_calendar" provider type
// (spec.md §4.4): poll-based only, no webhook. Reconcile registers a
// recurring task that the dispatcher fires on an interval; there is no
// Match API surface to override since no webhook path routes to it.
type googleCalendarAdapter struct {
	DefaultMatcher
}

func newGoogleCalendarAdapter() Adapter { return &googleCalendarAdapter{} }

func (a *googleCalendarAdapter) Kind() Kind { return KindGoogleCalendar }

func (a *googleCalendarAdapter) Create(
	ctx context.Context,
	_ Config,
	_ string,
	input json.RawMessage,
	utils Utils,
) ([]byte, error) {
	var in struct {
		PollIntervalSeconds int `json:"pollIntervalSeconds"`
	}
	_ = json.Unmarshal(input, &in)
	interval := in.PollIntervalSeconds
	if interval <= 0 {
		interval = 300
	}
	ref, err := utils.RegisterRecurringTask(ctx, RegisterRecurringTaskOptions{IntervalSeconds: interval})
	if err != nil {
		return nil, fmt.Errorf("google_calendar: register recurring task: %w", err)
	}
	return json.Marshal(map[string]string{"recurring_task_id": ref.ID})
}

func (a *googleCalendarAdapter) Refresh(
	_ context.Context,
	_ Config,
	_ string,
	_ json.RawMessage,
	state []byte,
) ([]byte, error) {
	return state, nil
}

func (a *googleCalendarAdapter) Destroy(
	ctx context.Context,
	_ Config,
	_ string,
	_ json.RawMessage,
	_ []byte,
	utils Utils,
) error {
	return utils.UnregisterRecurringTask(ctx)
}

var _ Adapter = (*googleCalendarAdapter)(nil)
