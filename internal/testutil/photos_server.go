// Package testutil provides an in-process stand-in for the Google Photos
// Library API and its media CDN.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// MediaItem is a library entry served by the mock server
type MediaItem struct {
	ID       string
	Filename string
	Video    bool
	// Content is served for downloads; defaults to "content-of-<id>"
	Content []byte
}

// SearchRecord captures one decoded mediaItems:search request body
type SearchRecord struct {
	PageSize  int
	PageToken string
	Filters   *SearchFilters
}

// SearchFilters mirrors the date filter part of a search request
type SearchFilters struct {
	DateFilter *struct {
		Ranges []struct {
			StartDate APIDate `json:"startDate"`
			EndDate   APIDate `json:"endDate"`
		} `json:"ranges"`
	} `json:"dateFilter"`
}

// APIDate is the wire form of a calendar date
type APIDate struct {
	Year  int `json:"year"`
	Month int `json:"month"`
	Day   int `json:"day"`
}

// PhotosServer simulates mediaItems:search and the media CDN
type PhotosServer struct {
	server *httptest.Server

	mu             sync.RWMutex
	pages          [][]MediaItem
	searches       []SearchRecord
	downloads      []string
	downloadAuth   []string
	searchStatus   int
	downloadErrors map[string]int
	downloadDelay  time.Duration
	requestCount   int32
}

// NewPhotosServer starts a server whose search endpoint returns pages in order.
// With no pages the search endpoint answers with an empty object.
func NewPhotosServer(pages ...[]MediaItem) *PhotosServer {
	m := &PhotosServer{
		pages:          pages,
		downloadErrors: make(map[string]int),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/mediaItems:search", m.handleSearch)
	mux.HandleFunc("/media/", m.handleDownload)

	m.server = httptest.NewServer(mux)
	return m
}

// URL returns the server root
func (m *PhotosServer) URL() string {
	return m.server.URL
}

// BasePath returns the value for the API client's base path
func (m *PhotosServer) BasePath() string {
	return m.server.URL + "/"
}

// Client returns an HTTP client for the server
func (m *PhotosServer) Client() *http.Client {
	return m.server.Client()
}

// Close shuts the server down
func (m *PhotosServer) Close() {
	m.server.Close()
}

// FailSearch makes every search answer with the given HTTP status
func (m *PhotosServer) FailSearch(status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.searchStatus = status
}

// FailDownload makes downloads of id answer with the given HTTP status
func (m *PhotosServer) FailDownload(id string, status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.downloadErrors[id] = status
}

// SetDownloadDelay delays every download response
func (m *PhotosServer) SetDownloadDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.downloadDelay = d
}

// Searches returns the recorded search requests
func (m *PhotosServer) Searches() []SearchRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]SearchRecord(nil), m.searches...)
}

// Downloads returns the requested download paths, e.g. "id1=d"
func (m *PhotosServer) Downloads() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.downloads...)
}

// DownloadAuthorizations returns the Authorization header of every download request
func (m *PhotosServer) DownloadAuthorizations() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.downloadAuth...)
}

// RequestCount returns the total number of requests served
func (m *PhotosServer) RequestCount() int {
	return int(atomic.LoadInt32(&m.requestCount))
}

// ContentOf returns the bytes served for item
func ContentOf(item MediaItem) []byte {
	if item.Content != nil {
		return item.Content
	}
	return []byte("content-of-" + item.ID)
}

func (m *PhotosServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	atomic.AddInt32(&m.requestCount, 1)

	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var body struct {
		PageSize  int            `json:"pageSize"`
		PageToken string         `json:"pageToken"`
		Filters   *SearchFilters `json:"filters"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		m.sendError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	m.mu.Lock()
	m.searches = append(m.searches, SearchRecord{PageSize: body.PageSize, PageToken: body.PageToken, Filters: body.Filters})
	status := m.searchStatus
	m.mu.Unlock()

	if status != 0 {
		m.sendError(w, status, http.StatusText(status))
		return
	}

	index := 0
	if body.PageToken != "" {
		n, err := strconv.Atoi(strings.TrimPrefix(body.PageToken, "page-"))
		if err != nil {
			m.sendError(w, http.StatusBadRequest, "invalid page token")
			return
		}
		index = n
	}

	w.Header().Set("Content-Type", "application/json")
	if index >= len(m.pages) {
		w.Write([]byte("{}"))
		return
	}

	resp := map[string]interface{}{}
	var items []map[string]interface{}
	for _, item := range m.pages[index] {
		metadata := map[string]interface{}{
			"creationTime": "2024-03-01T12:00:00Z",
		}
		if item.Video {
			metadata["video"] = map[string]interface{}{"status": "READY"}
		} else {
			metadata["photo"] = map[string]interface{}{}
		}
		items = append(items, map[string]interface{}{
			"id":            item.ID,
			"filename":      item.Filename,
			"baseUrl":       fmt.Sprintf("%s/media/%s", m.server.URL, item.ID),
			"mediaMetadata": metadata,
		})
	}
	if len(items) > 0 {
		resp["mediaItems"] = items
	}
	if index+1 < len(m.pages) {
		resp["nextPageToken"] = fmt.Sprintf("page-%d", index+1)
	}
	json.NewEncoder(w).Encode(resp)
}

func (m *PhotosServer) handleDownload(w http.ResponseWriter, r *http.Request) {
	atomic.AddInt32(&m.requestCount, 1)

	ref := strings.TrimPrefix(r.URL.Path, "/media/")
	id, suffix, found := strings.Cut(ref, "=")
	if !found {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	m.mu.Lock()
	m.downloads = append(m.downloads, ref)
	m.downloadAuth = append(m.downloadAuth, r.Header.Get("Authorization"))
	status := m.downloadErrors[id]
	delay := m.downloadDelay
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}

	if status != 0 {
		w.WriteHeader(status)
		return
	}

	item, ok := m.find(id)
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	want := "d"
	if item.Video {
		want = "dv"
	}
	if suffix != want {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Write(ContentOf(item))
}

func (m *PhotosServer) find(id string) (MediaItem, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, page := range m.pages {
		for _, item := range page {
			if item.ID == id {
				return item, true
			}
		}
	}
	return MediaItem{}, false
}

// sendError writes a Google API style error body
func (m *PhotosServer) sendError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]interface{}{
			"code":    code,
			"message": message,
			"status":  strings.ToUpper(strings.ReplaceAll(http.StatusText(code), " ", "_")),
		},
	})
}
