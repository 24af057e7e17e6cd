package photos

import (
	"context"
	"fmt"
	"net/http"

	photoslibrary "github.com/nekr0z/gphotoslibrary"
)

// SearchRequest is one page request against mediaItems:search
type SearchRequest struct {
	PageSize  int
	PageToken string
	// Window restricts results by creation date when non-nil
	Window *QueryWindow
}

// SearchItem is a media item as returned by the search endpoint
type SearchItem struct {
	ID           string
	Filename     string
	BaseURL      string
	IsPhoto      bool
	CreationTime string
}

// SearchPage is one page of search results
type SearchPage struct {
	Items         []SearchItem
	NextPageToken string
}

// Searcher runs media item searches against the Photos library
type Searcher interface {
	Search(ctx context.Context, req SearchRequest) (*SearchPage, error)
}

// LibraryClient is the Searcher backed by the Photos Library API client
type LibraryClient struct {
	items *photoslibrary.MediaItemsService
}

// NewLibraryClient creates a client that authorizes requests through httpClient.
// An empty basePath keeps the public API endpoint.
func NewLibraryClient(httpClient *http.Client, basePath string) (*LibraryClient, error) {
	svc, err := photoslibrary.New(httpClient)
	if err != nil {
		return nil, fmt.Errorf("unable to create photoslibrary service: %w", err)
	}
	if basePath != "" {
		svc.BasePath = basePath
	}
	return &LibraryClient{items: photoslibrary.NewMediaItemsService(svc)}, nil
}

// Search requests one page of media items
func (c *LibraryClient) Search(ctx context.Context, req SearchRequest) (*SearchPage, error) {
	body := &photoslibrary.SearchMediaItemsRequest{
		PageSize:  int64(req.PageSize),
		PageToken: req.PageToken,
	}
	if req.Window != nil {
		body.Filters = &photoslibrary.Filters{
			DateFilter: &photoslibrary.DateFilter{
				Ranges: []*photoslibrary.DateRange{{
					StartDate: toAPIDate(req.Window.Start),
					EndDate:   toAPIDate(req.Window.End),
				}},
			},
		}
	}

	resp, err := c.items.Search(body).Context(ctx).Do()
	if err != nil {
		return nil, err
	}

	page := &SearchPage{NextPageToken: resp.NextPageToken}
	for _, item := range resp.MediaItems {
		if item == nil {
			continue
		}
		si := SearchItem{
			ID:       item.Id,
			Filename: item.Filename,
			BaseURL:  item.BaseUrl,
		}
		if item.MediaMetadata != nil {
			si.IsPhoto = item.MediaMetadata.Photo != nil
			si.CreationTime = item.MediaMetadata.CreationTime
		}
		page.Items = append(page.Items, si)
	}
	return page, nil
}

func toAPIDate(d Date) *photoslibrary.Date {
	return &photoslibrary.Date{
		Year:  int64(d.Year),
		Month: int64(d.Month),
		Day:   int64(d.Day),
	}
}
