// Package backup runs one incremental Google Photos backup.
//
// A run goes through these stages in order:
//   - obtain a credential (stored, or authorized interactively)
//   - list the media items created within the configured window
//   - drop the items whose ids are already in the acquired list
//   - download the remaining photos, then videos, into the staging directory
//   - move the staged files into the destination directory
//   - write the acquired list back with the new ids first
//
// Credential and listing failures end the run before anything is written.
// A failed download is skipped and picked up again on the next run, since
// its id never enters the acquired list.
//
// Usage:
//
//	runner := backup.New(cfg, authManager, store, log)
//	summary, err := runner.Run(ctx)
//	if err != nil {
//	    return err
//	}
//	fmt.Printf("downloaded %d, skipped %d\n", summary.Downloaded, summary.Skipped)
package backup
