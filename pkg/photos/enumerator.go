package photos

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/api/googleapi"
	errs "gpbackup/pkg/errors"
	"gpbackup/pkg/logger"
)

// PageSize is the number of items requested per search page
const PageSize = 50

// Enumerator lists the media items of a library, split into photos and videos
type Enumerator struct {
	searcher Searcher
	logger   logger.Logger
}

// NewEnumerator creates an enumerator over searcher
func NewEnumerator(searcher Searcher, log logger.Logger) *Enumerator {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Enumerator{
		searcher: searcher,
		logger:   log.WithField("component", "enumerator"),
	}
}

// Enumerate pages through the library until a page comes back empty or
// without a continuation token. With filterEnabled, only items created
// within window are requested. Any search failure aborts the listing.
func (e *Enumerator) Enumerate(ctx context.Context, window QueryWindow, filterEnabled bool) (photos, videos []MediaDescriptor, err error) {
	req := SearchRequest{PageSize: PageSize}
	if filterEnabled {
		req.Window = &window
	}

	for page := 1; ; page++ {
		if err := ctx.Err(); err != nil {
			return nil, nil, errs.Wrap(errs.ErrorTypeEnumeration, "search", err)
		}

		resp, err := e.searcher.Search(ctx, req)
		if err != nil {
			return nil, nil, classifySearchError(err)
		}

		e.logger.DebugWithFields("Fetched search page", map[string]interface{}{
			"page":  page,
			"items": len(resp.Items),
			"more":  resp.NextPageToken != "",
		})

		if len(resp.Items) == 0 {
			break
		}

		for _, item := range resp.Items {
			d := MediaDescriptor{ID: item.ID, Filename: item.Filename, SourceURL: item.BaseURL}
			if item.IsPhoto {
				photos = append(photos, d)
			} else {
				videos = append(videos, d)
			}
		}

		if resp.NextPageToken == "" {
			break
		}
		req.PageToken = resp.NextPageToken
	}

	e.logger.InfoWithFields("Enumeration complete", map[string]interface{}{
		"photos":   len(photos),
		"videos":   len(videos),
		"filtered": filterEnabled,
		"window":   window.String(),
	})
	return photos, videos, nil
}

// classifySearchError maps rejected credentials to an auth error and
// everything else to an enumeration error
func classifySearchError(err error) error {
	if errs.IsType(err, errs.ErrorTypeAuth) {
		return err
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		typed := &errs.Error{
			Type: errs.ErrorTypeEnumeration,
			Op:   "search",
			Code: apiErr.Code,
			Err:  err,
		}
		if errs.IsAuthStatusCode(apiErr.Code) {
			typed.Type = errs.ErrorTypeAuth
		}
		return typed
	}

	return errs.Wrap(errs.ErrorTypeEnumeration, "search", fmt.Errorf("media search failed: %w", err))
}
