package logger

import "log/slog"

// Error creates an attribute for a single error under the key "error".
// If err is nil, it returns an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// UserID records the recipient identifier under the key "user_id".
func UserID(id any) slog.Attr {
	if id == nil {
		return slog.Attr{}
	}
	return slog.Any("user_id", id)
}

// EventID records a notification event identifier under the key "event_id".
func EventID(id any) slog.Attr {
	if id == nil {
		return slog.Attr{}
	}
	return slog.Any("event_id", id)
}

// Channel records a delivery channel under the key "channel".
func Channel(channel any) slog.Attr {
	if channel == nil {
		return slog.Attr{}
	}
	return slog.Any("channel", channel)
}

// Rule records an SLA rule code under the key "rule".
func Rule(code string) slog.Attr {
	if code == "" {
		return slog.Attr{}
	}
	return slog.String("rule", code)
}
