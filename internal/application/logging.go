package application

import (
	"context"
	"log/slog"
)

const serviceName = "trading-signals"

func logWarn(ctx context.Context, msg, operation string, attrs ...any) {
	slog.Default().WarnContext(ctx, msg, append([]any{
		"service", serviceName,
		"module", "application",
		"layer", "application",
		"operation", operation,
		"outcome", "warning",
	}, attrs...)...)
}

func logInfo(ctx context.Context, msg, operation string, attrs ...any) {
	slog.Default().InfoContext(ctx, msg, append([]any{
		"service", serviceName,
		"module", "application",
		"layer", "application",
		"operation", operation,
		"outcome", "success",
	}, attrs...)...)
}

func logError(ctx context.Context, msg, operation string, attrs ...any) {
	slog.Default().ErrorContext(ctx, msg, append([]any{
		"service", serviceName,
		"module", "application",
		"layer", "application",
		"operation", operation,
		"outcome", "failure",
	}, attrs...)...)
}
