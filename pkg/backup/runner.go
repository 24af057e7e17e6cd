package backup

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"gpbackup/internal/downloader"
	"gpbackup/pkg/acquired"
	"gpbackup/pkg/auth"
	"gpbackup/pkg/config"
	errs "gpbackup/pkg/errors"
	"gpbackup/pkg/logger"
	"gpbackup/pkg/photos"
	"gpbackup/pkg/ratelimit"
	"gpbackup/pkg/storage"
)

// CredentialProvider yields an authorized HTTP client for the Photos library
type CredentialProvider interface {
	Obtain(ctx context.Context) (*auth.Credential, error)
	HTTPClient(ctx context.Context, cred *auth.Credential) *http.Client
}

// Summary describes one backup run
type Summary struct {
	RunID     string
	StartedAt time.Time
	Duration  time.Duration
	DryRun    bool

	// Window is empty when the date filter is off
	Window string

	Photos     int
	Videos     int
	Skipped    int
	Downloaded int
	Failed     int
	Relocated  int
	// Unrelocated counts files still in the staging directory after the
	// move, including ones left there by earlier runs
	Unrelocated int
	Bytes       int64
	Persisted   int

	// Pending lists what would be downloaded; set on dry runs only
	Pending  []photos.MediaDescriptor
	Failures []downloader.Failure
}

// Enumerated returns the number of items the search returned
func (s *Summary) Enumerated() int {
	return s.Photos + s.Videos
}

// Runner performs a backup run: obtain a credential, list the recent media,
// download what has not been acquired yet, move it to the backup directory
// and record the new ids.
type Runner struct {
	cfg         *config.Config
	credentials CredentialProvider
	store       acquired.Store
	staging     *storage.Manager
	logger      logger.Logger

	apiBasePath    string
	downloadClient *http.Client
	now            func() time.Time
}

// New creates a Runner
func New(cfg *config.Config, credentials CredentialProvider, store acquired.Store, log logger.Logger) *Runner {
	if log == nil {
		log = logger.GetLogger()
	}
	// Media URLs are pre-signed, so downloads carry no OAuth token.
	return &Runner{
		cfg:            cfg,
		credentials:    credentials,
		store:          store,
		staging:        storage.NewManager(cfg.Storage.StagingDir, log),
		logger:         log,
		downloadClient: &http.Client{},
		now:            time.Now,
	}
}

// SetAPIBasePath points the search client at another endpoint
func (r *Runner) SetAPIBasePath(basePath string) {
	r.apiBasePath = basePath
}

// SetClock replaces the clock the query window is computed from
func (r *Runner) SetClock(now func() time.Time) {
	r.now = now
}

// Run executes one backup. Credential, enumeration and acquired-list errors
// abort the run before the acquired list is written; download and relocation
// failures are reported in the summary.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	summary := &Summary{
		RunID:     uuid.NewString(),
		StartedAt: r.now(),
		DryRun:    r.cfg.Run.DryRun,
	}
	log := r.logger.WithField("run_id", summary.RunID)
	started := time.Now()
	defer func() {
		summary.Duration = time.Since(started)
	}()

	if r.cfg.Run.Deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.Run.Deadline)
		defer cancel()
	}

	logger.LogComponentStart(log, "backup", map[string]interface{}{
		"staging":     r.cfg.Storage.StagingDir,
		"destination": r.cfg.Storage.DestinationDir,
		"acquired":    r.store.Location(),
		"dry_run":     r.cfg.Run.DryRun,
	})

	log.Info("Obtaining credential")
	cred, err := r.credentials.Obtain(ctx)
	if err != nil {
		logger.LogComponentStop(log, "backup", "authentication failed")
		return summary, err
	}
	client := r.credentials.HTTPClient(ctx, cred)

	searcher, err := photos.NewLibraryClient(client, r.apiBasePath)
	if err != nil {
		return summary, errs.Wrap(errs.ErrorTypeEnumeration, "create client", err)
	}

	window := photos.NewQueryWindow(r.now(), r.cfg.Query.PastYears, r.cfg.Query.PastMonths, r.cfg.Query.PastDays)
	if r.cfg.Query.FilterEnabled {
		summary.Window = window.String()
	}

	log.Info("Listing media items")
	photoItems, videoItems, err := photos.NewEnumerator(searcher, log).Enumerate(ctx, window, r.cfg.Query.FilterEnabled)
	if err != nil {
		logger.LogComponentStop(log, "backup", "enumeration failed")
		return summary, err
	}
	summary.Photos = len(photoItems)
	summary.Videos = len(videoItems)

	if summary.Enumerated() == 0 {
		log.Info("No media items in range, nothing to download")
		if !r.cfg.Run.DryRun {
			r.relocate(context.WithoutCancel(ctx), log, summary)
		}
		r.finish(log, summary, started)
		return summary, nil
	}

	previous, err := r.store.Load(ctx)
	if err != nil {
		logger.LogComponentStop(log, "backup", "acquired list unreadable")
		return summary, errs.Wrap(errs.ErrorTypeStorage, "load acquired", err)
	}

	pendingPhotos := acquired.FilterUnacquired(photoItems, previous)
	pendingVideos := acquired.FilterUnacquired(videoItems, previous)
	summary.Skipped = summary.Enumerated() - len(pendingPhotos) - len(pendingVideos)

	log.InfoWithFields("Removed already acquired media", map[string]interface{}{
		"acquired":       previous.Len(),
		"pending_photos": len(pendingPhotos),
		"pending_videos": len(pendingVideos),
	})

	if r.cfg.Run.DryRun {
		summary.Pending = append(append([]photos.MediaDescriptor{}, pendingPhotos...), pendingVideos...)
		r.finish(log, summary, started)
		return summary, nil
	}

	if len(pendingPhotos)+len(pendingVideos) == 0 {
		r.relocate(context.WithoutCancel(ctx), log, summary)
		r.finish(log, summary, started)
		return summary, nil
	}

	dl := downloader.New(r.downloadClient, r.staging, downloader.Options{
		Concurrent: r.cfg.Download.Concurrent,
		Timeout:    r.cfg.Download.Timeout,
		Limiter:    ratelimit.NewPerMinute(r.cfg.Download.RequestsPerMinute),
	}, log)

	photoResult := dl.Download(ctx, pendingPhotos, photos.KindPhoto)
	videoResult := dl.Download(ctx, pendingVideos, photos.KindVideo)

	newIDs := append(append([]string{}, photoResult.Succeeded...), videoResult.Succeeded...)
	summary.Downloaded = len(newIDs)
	summary.Failures = append(append([]downloader.Failure{}, photoResult.Failed...), videoResult.Failed...)
	summary.Failed = len(summary.Failures)
	summary.Bytes = photoResult.Bytes + videoResult.Bytes

	// Relocation and persistence run to completion past the run deadline.
	persistCtx := context.WithoutCancel(ctx)

	r.relocate(persistCtx, log, summary)

	if len(newIDs) > 0 {
		merged := acquired.Merge(newIDs, previous)
		if err := r.store.Persist(persistCtx, merged); err != nil {
			logger.LogComponentStop(log, "backup", "acquired list not written")
			return summary, errs.Wrap(errs.ErrorTypeStorage, "persist acquired", err)
		}
		summary.Persisted = len(merged)
		log.InfoWithFields("Acquired list updated", map[string]interface{}{
			"location": r.store.Location(),
			"new":      len(newIDs),
			"total":    len(merged),
		})
	}

	r.finish(log, summary, started)
	return summary, nil
}

// relocate moves everything in staging, so files left behind by an earlier
// run are retried even when nothing new was downloaded.
func (r *Runner) relocate(ctx context.Context, log logger.Logger, summary *Summary) {
	log.Info("Moving files to the backup directory")
	relocated, err := r.staging.Relocate(ctx, r.cfg.Storage.DestinationDir)
	if err != nil {
		log.WithError(err).Error("Relocation aborted")
	}
	summary.Relocated = len(relocated.Moved)
	summary.Unrelocated = relocated.Remaining()
}

func (r *Runner) finish(log logger.Logger, summary *Summary, started time.Time) {
	logger.LogMetrics(log, "backup", map[string]interface{}{
		"photos":      summary.Photos,
		"videos":      summary.Videos,
		"skipped":     summary.Skipped,
		"downloaded":  summary.Downloaded,
		"failed":      summary.Failed,
		"relocated":   summary.Relocated,
		"unrelocated": summary.Unrelocated,
		"bytes":       summary.Bytes,
		"dry_run":     summary.DryRun,
	})
	logger.LogComponentStop(log, "backup", fmt.Sprintf("completed in %s", time.Since(started).Round(time.Millisecond)))
}
