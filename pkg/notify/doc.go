// Package notify implements the notification hub: the single write entry
// point through which domain code produces user-facing notifications.
//
// Emit records one semantic event and routes one delivery per requested
// channel. The routing decision is made synchronously and is cheap by
// design — a delivery is either sent (in-app), queued as pending, deferred
// past the recipient's quiet hours, folded into a digest bucket, suppressed
// by preferences, or throttled as a near-duplicate. Slow work (rendering,
// transport) happens later in DispatchPending and FlushDigests, which a
// periodic sweep invokes.
//
// # Architecture
//
//   - Storage: transactional persistence for events, deliveries,
//     preferences and digests (memory and Postgres implementations)
//   - ThrottleIndex: optional fast-path duplicate detection (Redis)
//   - Hub: emission, routing, digest flush, pending dispatch
//
// # Basic usage
//
//	hub, err := notify.NewHub(notify.NewMemoryStorage())
//	if err != nil {
//	    return err
//	}
//
//	event, deliveries, err := hub.Emit(ctx, notify.EmitParams{
//	    RecipientID: "u-123",
//	    Title:       "Контракт подписан",
//	    Body:        "Контракт №42 подписан обеими сторонами.",
//	    Category:    notify.CategoryContract,
//	    Type:        notify.EventContractSigned,
//	    Data:        map[string]any{"contract_id": 42, "amount": 1500000},
//	})
//
// Two emissions of the same event type for the same recipient and subject
// within the throttle window collapse into one event; the duplicate only
// produces a throttled in-app delivery referencing the original.
package notify
