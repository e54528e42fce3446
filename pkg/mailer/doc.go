// Package mailer delivers rendered notification emails. Two transports are
// provided: PostmarkSender for production and DevSender, which only logs, for
// local development. Both satisfy the hub's EmailSender interface.
package mailer
