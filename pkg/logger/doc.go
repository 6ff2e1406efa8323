// Package logger provides the structured logging interface used across photosync.
//
// It wraps zerolog. Console output is a colored single-line format on stderr;
// when a log file is configured, JSON lines are appended to it as well.
//
//	if err := logger.Initialize(&cfg.Logging); err != nil {
//		return err
//	}
//	log := logger.GetLogger().WithField("album", album)
//	log.Info("Sync started")
//
// Components take a Logger explicitly. Tests pass NewNopLogger or a
// TestLogger, which records every message for assertions.
package logger
