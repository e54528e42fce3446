// Package render produces the final channel payloads for notification
// deliveries: a transactional email (subject, body, delivery headers) or a
// web-push message (title, body, click URL).
//
// Rendering combines the copydeck template for the event type with a
// l10n-enriched context. A missing template falls back to the generic
// "{title}\n\n{body}" form so no notification is ever dropped for lack of
// copy. Unresolved placeholders are logged and left in place rather than
// failing the render.
//
// The package only builds payloads; putting them on the wire is the
// transport collaborator's job.
package render
