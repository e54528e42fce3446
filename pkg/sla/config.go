package sla

import "time"

// Config holds sweep thresholds and cadence. Defaults mirror the platform's
// service-level targets.
type Config struct {
	ChatReminderAfter      time.Duration `env:"SLA_CHAT_REMINDER_AFTER" envDefault:"4h"`
	DisputeEscalationAfter time.Duration `env:"SLA_DISPUTE_ESCALATION_AFTER" envDefault:"12h"`
	AutoReleaseAfter       time.Duration `env:"SLA_AUTO_RELEASE_AFTER" envDefault:"120h"`

	// Chat reminders are held outside this local-time window.
	WorkingHoursStart int `env:"SLA_WORKING_HOURS_START" envDefault:"9"`
	WorkingHoursEnd   int `env:"SLA_WORKING_HOURS_END" envDefault:"18"`

	SweepInterval time.Duration `env:"SLA_SWEEP_INTERVAL" envDefault:"5m"`
}
