// Package storage manages the staging directory media is downloaded into
// and the move of staged files into the backup directory.
//
// SaveFile writes through a per-call temporary file and renames it into
// place, so a staged file is either complete or absent. Two items sharing a
// filename are both kept; the later one gets the media id in its name.
// Relocate moves the regular files
// found directly in the staging directory; a file that cannot be moved is
// logged and left where it is for the next run to pick up.
//
// Usage:
//
//	m := storage.NewManager(cfg.Storage.StagingDir, log)
//	if err := m.EnsureStagingDir(); err != nil {
//	    return err
//	}
//	if _, err := m.SaveFile(body, item.Filename, item.ID); err != nil {
//	    return err
//	}
//	result, err := m.Relocate(ctx, cfg.Storage.DestinationDir)
package storage
