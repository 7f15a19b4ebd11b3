package api

import (
	"log/slog"
	"net/http"

	"github.com/alecgard/studyhub/internal/auth"
	"github.com/alecgard/studyhub/internal/ratelimit"
)

// auditLog emits a structured audit log entry for an account or group change.
func auditLog(r *http.Request, action string, resourceType string, resourceID string, detail ...any) {
	attrs := []any{
		"action", action,
		"resource_type", resourceType,
		"resource_id", resourceID,
		"ip", ratelimit.ClientIP(r),
		"request_id", RequestIDFromContext(r.Context()),
	}

	if uid := auth.UserIDFromContext(r.Context()); uid != "" {
		attrs = append(attrs, "user_id", uid)
	}

	attrs = append(attrs, detail...)
	slog.Info("audit", attrs...)
}
