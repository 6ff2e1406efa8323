package logger

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// LogRequest logs a completed API request. Non-2xx responses are raised to warn or error.
func LogRequest(log Logger, method, url string, statusCode int, duration time.Duration) {
	fields := map[string]interface{}{
		"method":      method,
		"url":         url,
		"status_code": statusCode,
		"duration":    duration,
	}

	switch {
	case statusCode >= 500:
		log.ErrorWithFields("API request server error", fields)
	case statusCode >= 400:
		log.WarnWithFields("API request client error", fields)
	default:
		log.DebugWithFields("API request completed", fields)
	}
}

// LogMaterialized logs the outcome of writing one item to disk
func LogMaterialized(log Logger, itemID, name string, size int64, err error) {
	l := log.WithFields(map[string]interface{}{
		"item_id": itemID,
		"file":    name,
	})

	if err != nil {
		l.WithError(err).Error("Download failed")
		return
	}
	l.WithField("bytes", size).Info("Downloaded")
}

// LogSkipped logs an item that was older than the checkpoint
func LogSkipped(log Logger, itemID string, createdAt, checkpoint time.Time) {
	log.DebugWithFields("Skipping item older than checkpoint", map[string]interface{}{
		"item_id":    itemID,
		"created_at": createdAt,
		"checkpoint": checkpoint,
	})
}

// LogComponentStart logs when a component starts
func LogComponentStart(log Logger, component string, config map[string]interface{}) {
	l := log.WithField("component", component)
	if len(config) > 0 {
		l = l.WithFields(config)
	}
	l.Info("Component started")
}

// LogComponentStop logs when a component stops
func LogComponentStop(log Logger, component string, reason string) {
	log.WithFields(map[string]interface{}{
		"component": component,
		"reason":    reason,
	}).Info("Component stopped")
}

// NewNopLogger creates a no-operation logger for testing
func NewNopLogger() Logger {
	return &nopLogger{}
}

// nopLogger is a logger that does nothing
type nopLogger struct{}

func (n *nopLogger) Debug(msg string)                                          {}
func (n *nopLogger) Info(msg string)                                           {}
func (n *nopLogger) Warn(msg string)                                           {}
func (n *nopLogger) Error(msg string)                                          {}
func (n *nopLogger) Fatal(msg string)                                          {}
func (n *nopLogger) WithField(key string, value interface{}) Logger            { return n }
func (n *nopLogger) WithFields(fields map[string]interface{}) Logger           { return n }
func (n *nopLogger) WithError(err error) Logger                                { return n }
func (n *nopLogger) WithContext(ctx context.Context) Logger                    { return n }
func (n *nopLogger) DebugWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) InfoWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) WarnWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) ErrorWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) FatalWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) GetZerolog() *zerolog.Logger {
	nop := zerolog.Nop()
	return &nop
}
