package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

type publisherMock struct {
	mock.Mock
}

func (m *publisherMock) Publish(ctx context.Context, routingKey string, event any, headers map[string]string) error {
	return m.Called(ctx, routingKey, event, headers).Error(0)
}

func TestAuditLogPublishesEntry(t *testing.T) {
	publisher := new(publisherMock)
	recorded := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	publisher.On("Publish", mock.Anything, "audit.chat", AuditEntry{
		Version:    2,
		Action:     ActionMessageDeleted,
		ActorID:    4,
		ChatID:     9,
		MessageID:  31,
		RequestID:  "r1",
		Service:    "partner-chat",
		Env:        "test",
		RecordedAt: recorded,
	}, map[string]string{"x-request-id": "r1", "x-audit-action": ActionMessageDeleted}).Return(nil).Once()

	audit := NewAuditLog(publisher, "audit.chat", "partner-chat", "test", zerolog.Nop())
	audit.now = func() time.Time { return recorded }
	audit.Record(context.Background(), AuditRecord{
		Action: ActionMessageDeleted, ActorID: 4, ChatID: 9, MessageID: 31, RequestID: "r1",
	})

	publisher.AssertExpectations(t)
}

func TestAuditLogCarriesTraceID(t *testing.T) {
	traceID, err := trace.TraceIDFromHex("0102030405060708090a0b0c0d0e0f10")
	require.NoError(t, err)
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: traceID,
		SpanID:  trace.SpanID{1},
	}))

	publisher := new(publisherMock)
	publisher.On("Publish", mock.Anything, "audit.chat", mock.MatchedBy(func(e AuditEntry) bool {
		return e.TraceID == traceID.String() && e.Action == ActionChatStarted
	}), map[string]string{"x-audit-action": ActionChatStarted}).Return(assert.AnError).Once()

	NewAuditLog(publisher, "audit.chat", "partner-chat", "test", zerolog.Nop()).
		Record(ctx, AuditRecord{Action: ActionChatStarted, ActorID: 1, ChatID: 2})

	publisher.AssertExpectations(t)
}

func TestNilAuditLogIsNoop(t *testing.T) {
	var audit *AuditLog
	audit.Record(context.Background(), AuditRecord{Action: ActionMessageEdited})
}

func TestSetupTracingWithoutEndpoint(t *testing.T) {
	shutdown, err := SetupTracing(context.Background(), "", "partner-chat", "test")

	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}
