// Package copydeck holds the static notification copy: per-locale email and
// web-push templates keyed by event type, embedded as YAML.
//
// Several event types share one template family through an alias table (all
// escrow-related contract and payment events render with the escrow copy).
// Lookup order is alias resolution, then the requested locale, then each
// fallback locale, then the first locale present. A miss returns nil and the
// renderer substitutes its generic default.
//
// Template bodies are plain format strings with {placeholder} fields that the
// renderers interpolate against an enriched event context.
package copydeck
