package application

import "time"

// Recalculation triggers.
const (
	TriggerMeteredUsage = "metered_usage"
	TriggerSubscription = "subscription"
	TriggerManual       = "manual"
)

// PaymentsRecalculated is published after a recalculation batch.
type PaymentsRecalculated struct {
	Trigger    string
	CompanyID  string
	SourceID   string
	Updated    []string
	Failed     []string
	OccurredAt time.Time
}
