package shared

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strings"
)

// Auditor stores a record of a completed mutation.
type Auditor interface {
	Record(ctx context.Context, action, entityType, entityID, ip string, before, after any) error
}

// Audit records an event after a successful write. A failure is logged and
// never fails the request. A nil auditor disables the trail.
func Audit(r *http.Request, a Auditor, action, entityType, entityID string, before, after any) {
	if a == nil {
		return
	}
	if err := a.Record(r.Context(), action, entityType, entityID, ClientIP(r), before, after); err != nil {
		slog.Warn("audit record failed", "action", action, "entity", entityType, "id", entityID, "err", err)
	}
}

// ClientIP is the host of the socket peer. Forwarding headers are ignored
// here; behind a trusted proxy the router rewrites RemoteAddr first.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil && host != "" {
		return host
	}
	return strings.TrimSpace(r.RemoteAddr)
}
