package photos

// Kind distinguishes photos from videos; it decides the download URL suffix
type Kind string

const (
	KindPhoto Kind = "photo"
	KindVideo Kind = "video"
)

// DownloadSuffix returns the base URL suffix that requests the original bytes
func (k Kind) DownloadSuffix() string {
	if k == KindVideo {
		return "=dv"
	}
	return "=d"
}

// MediaDescriptor identifies one remote media item
type MediaDescriptor struct {
	ID        string
	Filename  string
	SourceURL string
}

// DownloadURL returns the URL serving the original bytes of d
func DownloadURL(d MediaDescriptor, kind Kind) string {
	return d.SourceURL + kind.DownloadSuffix()
}

// IDs returns the ids of items, in order
func IDs(items []MediaDescriptor) []string {
	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
	}
	return ids
}
