package audit

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"timeclock.org/internal/auth"
	"timeclock.org/internal/obs"
)

type ctxKey string

const requestIDKey ctxKey = "audit_request_id"

// WithRequestID attaches the request identifier to the context for audit logging.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext extracts the request id from context if present.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// LogEvent emits an audit event for a lifecycle transition or policy update.
// Attribution (actor, organization, request id) is read from context; the
// audit component downstream owns persistence.
func LogEvent(ctx context.Context, action, entityType, entityID string, metadata map[string]string) error {
	action = strings.TrimSpace(action)
	if action == "" {
		return errors.New("action is required")
	}
	entry := map[string]any{
		"ts":          time.Now().UTC().Format(time.RFC3339Nano),
		"type":        "audit",
		"action":      action,
		"entity_type": entityType,
		"entity_id":   entityID,
	}
	if rid := RequestIDFromContext(ctx); rid != "" {
		entry["request_id"] = rid
	}
	if id, ok := auth.IdentityFromContext(ctx); ok {
		entry["actor_user_id"] = id.UserID
		entry["actor_org_id"] = id.OrganizationID
	}
	if len(metadata) > 0 {
		copyFields := make(map[string]string, len(metadata))
		for k, v := range metadata {
			copyFields[k] = v
		}
		entry["metadata"] = copyFields
	} else {
		entry["metadata"] = map[string]string{}
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	obs.Logger().Println(string(data))
	return nil
}
