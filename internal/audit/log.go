// Package audit records the security-sensitive actions of the identity
// lifecycle as structured events tied to the request and acting user.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"taskhub.org/internal/auth"
	"taskhub.org/internal/obs"
)

// Event names for the identity lifecycle.
const (
	EventRegister        = "auth.register"
	EventLogin           = "auth.login"
	EventLoginDenied     = "auth.login_denied"
	EventRefresh         = "auth.refresh"
	EventLogout          = "auth.logout"
	EventPasswordChanged = "auth.password_changed"
	EventProfileUpdated  = "auth.profile_updated"
)

type requestIDKey struct{}

// WithRequestID attaches the request identifier to the context so every
// audit event of that request can be correlated with its access log line.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// RequestIDFromContext extracts the request id, or "" when absent.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey{}).(string); ok {
		return v
	}
	return ""
}

// record is the wire shape of one audit line.
type record struct {
	TS        string         `json:"ts"`
	Type      string         `json:"type"`
	Event     string         `json:"event"`
	RequestID string         `json:"request_id,omitempty"`
	UserID    string         `json:"user_id,omitempty"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// LogEvent writes one audit line for the named lifecycle event. Request
// id and acting user are taken from the context when present.
func LogEvent(ctx context.Context, event string, fields map[string]any) error {
	event = strings.TrimSpace(event)
	if event == "" {
		return errors.New("audit: event name is required")
	}
	rec := record{
		TS:        time.Now().UTC().Format(time.RFC3339Nano),
		Type:      "audit",
		Event:     event,
		RequestID: RequestIDFromContext(ctx),
	}
	if userID, ok := auth.UserIDFromContext(ctx); ok {
		rec.UserID = userID
	}
	if len(fields) > 0 {
		rec.Fields = make(map[string]any, len(fields))
		for k, v := range fields {
			rec.Fields[k] = v
		}
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	obs.Logger().Println(string(data))
	return nil
}
