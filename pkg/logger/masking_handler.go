package logger

import (
	"context"
	"log/slog"
	"strings"
)

const maskedValue = "***"

// Keys matched case-insensitively; suffix matching catches prefixed variants
// like discord_token and sentry_dsn.
var maskedSuffixes = []string{
	"token",
	"password",
	"secret",
	"api_key",
	"dsn",
	"authorization",
}

// MaskingHandler rewrites credential-bearing attributes before the record
// reaches the terminal handler. Bot tokens show up easily in config-dump and
// startup logs otherwise.
type MaskingHandler struct {
	next slog.Handler
}

// NewMaskingHandler wraps next with attribute masking.
func NewMaskingHandler(next slog.Handler) *MaskingHandler {
	return &MaskingHandler{next: next}
}

func (h *MaskingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *MaskingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &MaskingHandler{next: h.next.WithAttrs(maskAttrs(attrs))}
}

func (h *MaskingHandler) WithGroup(name string) slog.Handler {
	return &MaskingHandler{next: h.next.WithGroup(name)}
}

func (h *MaskingHandler) Handle(ctx context.Context, record slog.Record) error {
	clean := slog.NewRecord(record.Time, record.Level, record.Message, record.PC)
	record.Attrs(func(attr slog.Attr) bool {
		clean.AddAttrs(maskAttr(attr))
		return true
	})

	return h.next.Handle(ctx, clean)
}

func maskAttrs(attrs []slog.Attr) []slog.Attr {
	out := make([]slog.Attr, len(attrs))
	for i, attr := range attrs {
		out[i] = maskAttr(attr)
	}
	return out
}

func maskAttr(attr slog.Attr) slog.Attr {
	key := strings.ToLower(attr.Key)
	for _, suffix := range maskedSuffixes {
		if strings.HasSuffix(key, suffix) {
			attr.Value = slog.StringValue(maskedValue)
			return attr
		}
	}
	return attr
}
