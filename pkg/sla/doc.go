// Package sla runs the periodic deadline sweep over the marketplace's
// conversational and contractual state. Each pass applies three rules:
//
//   - chat reminder: a message unanswered for 4 hours produces a reminder
//     notification, but only during working hours so the reminder itself
//     does not land at night;
//   - dispute escalation: a dispute open for 12 hours is raised to high
//     priority and the contract's client is notified;
//   - auto-release: a delivered contract unaccepted for 5 days is completed
//     and both parties are notified about the payout.
//
// Every action is recorded in an action log keyed by rule and target, which
// makes the sweep idempotent: re-running a pass, or running two sweepers
// against the same database, acts on each target at most once.
//
// The sweep also drains the notification engine: due digest buckets are
// flushed and pending deliveries dispatched at the end of each pass.
package sla
