package l10n

// EnrichContext returns a copy of the data bag extended with derived,
// locale-formatted fields the copy templates interpolate:
//
//   - amount_formatted from amount or budget (+ optional currency)
//   - deadline_formatted and deadline_relative from deadline or due_at
//   - payout_eta_formatted from payout_eta
//
// Fields already present in the input are never overwritten, so callers can
// pre-format values themselves when needed.
func EnrichContext(data map[string]any, locale Locale) map[string]any {
	ctx := make(map[string]any, len(data)+4)
	for k, v := range data {
		ctx[k] = v
	}

	currency := "UZS"
	if c, ok := ctx["currency"].(string); ok && c != "" {
		currency = c
	}

	amount := ctx["amount"]
	if amount == nil {
		amount = ctx["budget"]
	}
	if amount != nil {
		if _, exists := ctx["amount_formatted"]; !exists {
			ctx["amount_formatted"] = FormatCurrency(amount, currency, locale)
		}
	}

	deadline := ctx["deadline"]
	if deadline == nil {
		deadline = ctx["due_at"]
	}
	if deadline != nil {
		if _, exists := ctx["deadline_formatted"]; !exists {
			ctx["deadline_formatted"] = FormatDateTime(deadline, locale)
			ctx["deadline_relative"] = FormatRelativeDate(deadline, locale)
		}
	}

	if eta := ctx["payout_eta"]; eta != nil {
		if _, exists := ctx["payout_eta_formatted"]; !exists {
			ctx["payout_eta_formatted"] = FormatRelativeDate(eta, locale)
		}
	}

	return ctx
}
