package errors

import (
	"context"
	"errors"
	"log/slog"

	"github.com/getsentry/sentry-go"

	"github.com/arkade-labs/guildxp/pkg/logger"
)

// Handler is the single sink for engine errors. Activity tracking is silent
// toward end users, so handling means logging, counting and optionally
// escalating to Sentry; nothing is rendered back to the event source.
type Handler struct {
	log           *slog.Logger
	sentryEnabled bool
}

func NewHandler(log *slog.Logger, sentryEnabled bool) *Handler {
	return &Handler{
		log:           log,
		sentryEnabled: sentryEnabled,
	}
}

// Handle logs the error with its taxonomy metadata and reports whether the
// failed operation may be retried. A nil error is a no-op.
func (h *Handler) Handle(ctx context.Context, err error) bool {
	if err == nil {
		return false
	}

	if ctx == nil {
		ctx = context.Background()
	}

	log := h.log
	if log == nil {
		log = slog.Default()
	}

	var appErr *AppError
	if errors.As(err, &appErr) && appErr != nil {
		attrs := []any{
			slog.String("kind", string(appErr.Kind)),
			slog.String("severity", string(appErr.Severity)),
			slog.Bool("retryable", appErr.Retryable),
		}
		if correlationID := logger.CorrelationIDFromContext(ctx); correlationID != "" {
			attrs = append(attrs, slog.String("correlation_id", correlationID))
		}

		// Duplicate grants and cooldowns are defined outcomes; keep them out
		// of the error stream.
		if appErr.Kind == KindDuplicateGrant || appErr.Kind == KindCooldownActive {
			log.Debug(appErr.Message, attrs...)
			return false
		}

		log.Error(appErr.Message, attrs...)

		if h.sentryEnabled && (appErr.Severity == SeverityCritical || appErr.Severity == SeverityHigh) {
			h.sendToSentry(err)
		}

		return appErr.Retryable
	}

	log.Error("unclassified error", slog.String("message", err.Error()))

	if h.sentryEnabled {
		h.sendToSentry(err)
	}

	return false
}

func (h *Handler) sendToSentry(err error) {
	sentry.WithScope(func(scope *sentry.Scope) {
		var appErr *AppError
		if errors.As(err, &appErr) && appErr != nil {
			scope.SetTag("kind", string(appErr.Kind))
			scope.SetTag("severity", string(appErr.Severity))
		}

		sentry.CaptureException(err)
	})
}
