// Package logger builds the process-wide slog.Logger: JSON for production
// log shipping or text for local development, with static service
// attributes applied to every record.
package logger
