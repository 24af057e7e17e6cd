package downloader

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
	errs "gpbackup/pkg/errors"
	"gpbackup/pkg/logger"
	"gpbackup/pkg/photos"
	"gpbackup/pkg/ratelimit"
)

// Stager receives downloaded bytes
type Stager interface {
	EnsureStagingDir() error
	SaveFile(r io.Reader, filename, id string) (int64, error)
}

// Options tunes a Downloader
type Options struct {
	// Concurrent is the number of parallel downloads; values below 1 mean 1
	Concurrent int
	// Timeout bounds each request including the body transfer; zero disables it
	Timeout time.Duration
	// Limiter paces requests; nil means no limit
	Limiter ratelimit.Limiter
}

// Failure records one media item that was not downloaded
type Failure struct {
	Item photos.MediaDescriptor
	Err  error
}

// Result is the outcome of a download batch
type Result struct {
	// Succeeded holds the ids of staged items, in input order
	Succeeded []string
	Failed    []Failure
	Bytes     int64
}

// Downloader fetches media bytes into the staging directory
type Downloader struct {
	client     *http.Client
	stager     Stager
	concurrent int
	timeout    time.Duration
	limiter    ratelimit.Limiter
	logger     logger.Logger
}

// New creates a Downloader. client may be nil to use http.DefaultClient.
func New(client *http.Client, stager Stager, opts Options, log logger.Logger) *Downloader {
	if client == nil {
		client = http.DefaultClient
	}
	if log == nil {
		log = logger.GetLogger()
	}
	if opts.Concurrent < 1 {
		opts.Concurrent = 1
	}
	if opts.Limiter == nil {
		opts.Limiter = ratelimit.Unlimited{}
	}

	return &Downloader{
		client:     client,
		stager:     stager,
		concurrent: opts.Concurrent,
		timeout:    opts.Timeout,
		limiter:    opts.Limiter,
		logger:     log.WithField("component", "downloader"),
	}
}

type outcome struct {
	ok    bool
	bytes int64
	err   error
}

// Download stages every item of the given kind. A failed item is logged and
// reported in Result.Failed; the rest of the batch carries on.
func (d *Downloader) Download(ctx context.Context, items []photos.MediaDescriptor, kind photos.Kind) Result {
	var result Result
	if len(items) == 0 {
		return result
	}

	d.logger.InfoWithFields("Downloading media", map[string]interface{}{
		"kind":       string(kind),
		"count":      len(items),
		"concurrent": d.concurrent,
	})

	if err := d.stager.EnsureStagingDir(); err != nil {
		d.logger.WithError(err).Error("Staging directory unavailable")
		for _, item := range items {
			result.Failed = append(result.Failed, Failure{Item: item, Err: err})
		}
		return result
	}

	outcomes := make([]outcome, len(items))

	var g errgroup.Group
	g.SetLimit(d.concurrent)

	for i, item := range items {
		i, item := i, item
		g.Go(func() error {
			n, err := d.fetch(ctx, item, kind)
			logger.LogDownload(d.logger, item.ID, item.Filename, string(kind), err)
			outcomes[i] = outcome{ok: err == nil, bytes: n, err: err}
			return nil
		})
	}
	g.Wait()

	for i, o := range outcomes {
		if o.ok {
			result.Succeeded = append(result.Succeeded, items[i].ID)
			result.Bytes += o.bytes
			continue
		}
		result.Failed = append(result.Failed, Failure{Item: items[i], Err: o.err})
	}

	d.logger.InfoWithFields(fmt.Sprintf("%d media downloads completed", len(result.Succeeded)), map[string]interface{}{
		"kind":   string(kind),
		"failed": len(result.Failed),
		"bytes":  result.Bytes,
	})
	return result
}

func (d *Downloader) fetch(ctx context.Context, item photos.MediaDescriptor, kind photos.Kind) (int64, error) {
	if err := d.limiter.Wait(ctx); err != nil {
		return 0, errs.Wrap(errs.ErrorTypeDownload, "rate limit", err)
	}

	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, photos.DownloadURL(item, kind), nil)
	if err != nil {
		return 0, errs.Wrap(errs.ErrorTypeDownload, "build request", err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, errs.Wrap(errs.ErrorTypeDownload, "fetch", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return 0, errs.New(errs.ErrorTypeDownload, "fetch",
			fmt.Sprintf("unexpected status %s", resp.Status)).WithCode(resp.StatusCode)
	}

	n, err := d.stager.SaveFile(resp.Body, item.Filename, item.ID)
	if err != nil {
		return n, errs.Wrap(errs.ErrorTypeDownload, "save", err)
	}
	return n, nil
}
