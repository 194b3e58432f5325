package catalog

import (
	"strings"

	"github.com/goccy/go-json"
)

// Identifier is an opaque key into the remote catalog (a video ID).
type Identifier string

// Group is a contiguous, ordered slice of the input identifiers that is sent
// to the API as one paginated request series.
type Group struct {
	// Index is the zero-based position of the group in the run.
	Index int

	// IDs are the identifiers of the group in input order.
	IDs []Identifier
}

// Len returns the number of identifiers in the group.
func (g Group) Len() int {
	return len(g.IDs)
}

// Joined returns the identifiers joined with commas, the form the API expects
// in its id parameter.
func (g Group) Joined() string {
	parts := make([]string, len(g.IDs))
	for i, id := range g.IDs {
		parts[i] = string(id)
	}
	return strings.Join(parts, ",")
}

// RawPage is one undecoded response unit for a group.
type RawPage struct {
	// Items are the undecoded result items.
	Items []json.RawMessage `json:"items"`

	// NextPageToken continues the listing. Empty means no further pages.
	NextPageToken string `json:"nextPageToken"`
}

// HasNext reports whether the page carries a continuation cursor.
func (p *RawPage) HasNext() bool {
	return p != nil && p.NextPageToken != ""
}

// Record is a decoded result item.
type Record struct {
	VideoID       string   `json:"video_id"`
	Title         string   `json:"title"`
	Description   string   `json:"description"`
	PublishedAt   string   `json:"published_at"`
	Tags          []string `json:"tags"`
	ChannelID     string   `json:"channel_id"`
	ChannelTitle  string   `json:"channel_title"`
	CategoryID    string   `json:"category_id"`
	PrivacyStatus string   `json:"privacy_status"`
	ViewCount     int64    `json:"view_count"`
	LikeCount     int64    `json:"like_count"`
	CommentCount  int64    `json:"comment_count"`
}
