package telemetry

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// Audit actions. Only changes to existing content are audited; plain sends
// are already visible as chat events.
const (
	ActionMessageEdited  = "message.edited"
	ActionMessageDeleted = "message.deleted"
	ActionChatStarted    = "chat.started"
)

type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any, headers map[string]string) error
}

// AuditRecord describes one moderation relevant action.
type AuditRecord struct {
	Action    string
	ActorID   int
	ChatID    int
	MessageID int
	RequestID string
}

// AuditEntry is the message body sent to the audit exchange.
type AuditEntry struct {
	Version    int       `json:"version"`
	Action     string    `json:"action"`
	ActorID    int       `json:"actor_id"`
	ChatID     int       `json:"chat_id"`
	MessageID  int       `json:"message_id,omitempty"`
	RequestID  string    `json:"request_id,omitempty"`
	TraceID    string    `json:"trace_id,omitempty"`
	Service    string    `json:"service"`
	Env        string    `json:"env"`
	RecordedAt time.Time `json:"recorded_at"`
}

// AuditLog publishes AuditEntry messages. A nil *AuditLog drops everything.
type AuditLog struct {
	publisher  Publisher
	routingKey string
	service    string
	env        string
	now        func() time.Time
	log        zerolog.Logger
}

func NewAuditLog(publisher Publisher, routingKey, service, env string, logger zerolog.Logger) *AuditLog {
	return &AuditLog{
		publisher:  publisher,
		routingKey: routingKey,
		service:    service,
		env:        env,
		now:        time.Now,
		log:        logger.With().Str("component", "audit").Logger(),
	}
}

// Record publishes rec. Failures are logged, never returned: an audit
// outage must not fail the user's request.
func (a *AuditLog) Record(ctx context.Context, rec AuditRecord) {
	if a == nil || a.publisher == nil {
		return
	}

	entry := AuditEntry{
		Version:    2,
		Action:     rec.Action,
		ActorID:    rec.ActorID,
		ChatID:     rec.ChatID,
		MessageID:  rec.MessageID,
		RequestID:  rec.RequestID,
		Service:    a.service,
		Env:        a.env,
		RecordedAt: a.now().UTC(),
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		entry.TraceID = sc.TraceID().String()
	}

	headers := map[string]string{"x-audit-action": rec.Action}
	if rec.RequestID != "" {
		headers["x-request-id"] = rec.RequestID
	}
	if err := a.publisher.Publish(ctx, a.routingKey, entry, headers); err != nil {
		a.log.Warn().Err(err).Str("action", rec.Action).Int("chat_id", rec.ChatID).Msg("audit publish failed")
		return
	}
	a.log.Debug().Str("action", rec.Action).Int("actor_id", rec.ActorID).Int("chat_id", rec.ChatID).Msg("audit recorded")
}
