package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"energy-billing/internal/auth"
)

// Entry is one audited billing correction, recalculation failure, or tariff import.
type Entry struct {
	ID           string
	TenantID     string
	Actor        string
	Role         string
	Action       string
	ResourceType string
	ResourceID   string
	CompanyID    string

	// Trigger names the recalculation cause (subscription.cancel, usage_fact.update, ...).
	Trigger string
	// UpdatedCount is the number of payments recalculated or tariff profiles imported.
	UpdatedCount int
	// FailedPaymentIDs lists payments left at their previous amounts.
	FailedPaymentIDs []string
	// ImportDigest is the SHA256 of an uploaded tariff file.
	ImportDigest string

	IP        string
	UserAgent string
	CreatedAt time.Time
}

// Logger writes audit entries.
type Logger interface {
	Log(ctx context.Context, entry Entry) error
}

// NewID generates a random audit id.
func NewID() string {
	return "audit-" + uuid.NewString()
}

// Digest returns the SHA256 hex digest of an uploaded payload.
func Digest(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// FromRequest starts an entry for an action taken by the authenticated caller.
// The recalculation or import fields are filled by the caller.
func FromRequest(r *http.Request, action, resourceType, resourceID, companyID string) Entry {
	id := auth.IdentityFromContext(r.Context())
	return Entry{
		TenantID:     id.TenantID,
		Actor:        id.Subject,
		Role:         string(id.Role),
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		CompanyID:    companyID,
		IP:           remoteIP(r),
		UserAgent:    r.UserAgent(),
	}
}

// remoteIP prefers the first proxy hop over the socket peer.
func remoteIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// ZapLogger writes audit entries to a structured log. Used when no database is configured.
type ZapLogger struct {
	logger *zap.Logger
}

// NewZapLogger constructs a log-backed audit logger.
func NewZapLogger(logger *zap.Logger) *ZapLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ZapLogger{logger: logger.Named("audit")}
}

// Log writes the entry as one log line.
func (l *ZapLogger) Log(_ context.Context, entry Entry) error {
	if entry.ID == "" {
		entry.ID = NewID()
	}
	fields := []zap.Field{
		zap.String("id", entry.ID),
		zap.String("tenant_id", entry.TenantID),
		zap.String("actor", entry.Actor),
		zap.String("role", entry.Role),
		zap.String("resource_type", entry.ResourceType),
		zap.String("resource_id", entry.ResourceID),
		zap.String("company_id", entry.CompanyID),
		zap.Int("updated", entry.UpdatedCount),
	}
	if entry.Trigger != "" {
		fields = append(fields, zap.String("trigger", entry.Trigger))
	}
	if len(entry.FailedPaymentIDs) > 0 {
		fields = append(fields, zap.Strings("failed", entry.FailedPaymentIDs))
	}
	if entry.ImportDigest != "" {
		fields = append(fields, zap.String("digest", entry.ImportDigest))
	}
	l.logger.Info(entry.Action, append(fields, zap.String("ip", entry.IP))...)
	return nil
}
