// Package logger provides the structured logging interface used across gpbackup.
//
// It wraps zerolog behind a small Logger interface so components can attach
// fields (media ids, filenames, run ids) without depending on zerolog directly.
// Console output is colored when no log file is configured; with a file,
// events are written to both the console and the file.
//
// Basic Usage:
//
//	if err := logger.Initialize(&cfg.Logging); err != nil {
//	    return err
//	}
//	log := logger.GetLogger().WithField("run_id", runID)
//	log.InfoWithFields("Enumeration complete", map[string]interface{}{
//	    "photos": len(photos),
//	    "videos": len(videos),
//	})
//
// Tests use NewTestLogger to capture messages, or NewNopLogger to discard them.
package logger
