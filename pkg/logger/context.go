package logger

import (
	"context"
	"log/slog"
)

type ctxKey int

const (
	userIDKey ctxKey = iota
	keywordIDKey
	jobIDKey
)

// WithUserID returns a context carrying the user id for log enrichment.
func WithUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, userIDKey, id)
}

// WithKeywordID returns a context carrying the keyword id for log enrichment.
func WithKeywordID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, keywordIDKey, id)
}

// WithJobID returns a context carrying the job id for log enrichment.
func WithJobID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, jobIDKey, id)
}

// UserIDExtractor adds "user_id" to records logged with a context from WithUserID.
func UserIDExtractor() ContextExtractor {
	return stringExtractor(userIDKey, "user_id")
}

// KeywordIDExtractor adds "keyword_id" to records logged with a context from WithKeywordID.
func KeywordIDExtractor() ContextExtractor {
	return stringExtractor(keywordIDKey, "keyword_id")
}

// JobIDExtractor adds "job_id" to records logged with a context from WithJobID.
func JobIDExtractor() ContextExtractor {
	return stringExtractor(jobIDKey, "job_id")
}

// DefaultExtractors returns every extractor of this package.
func DefaultExtractors() []ContextExtractor {
	return []ContextExtractor{UserIDExtractor(), KeywordIDExtractor(), JobIDExtractor()}
}

func stringExtractor(key ctxKey, attr string) ContextExtractor {
	return func(ctx context.Context) (slog.Attr, bool) {
		if v, ok := ctx.Value(key).(string); ok && v != "" {
			return slog.String(attr, v), true
		}
		return slog.Attr{}, false
	}
}
