package catalog

import (
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

// fields is one level of a JSON object with its values left undecoded, so a
// bad value only costs the field it belongs to.
type fields map[string]json.RawMessage

// DecodeItems converts raw result items into Records in page order.
// Items that are not JSON objects are skipped and reported in the second
// return value; every other problem is absorbed by field defaults.
func DecodeItems(items []json.RawMessage, logger zerolog.Logger) ([]Record, int) {
	records := make([]Record, 0, len(items))
	skipped := 0

	for index, raw := range items {
		record, err := DecodeItem(raw)
		if err != nil {
			skipped++
			DecodeFailures.Inc()
			logger.Warn().
				Err(err).
				Int("item_index", index).
				Msg("Skipping malformed result item")
			continue
		}

		logger.Debug().
			Int("item_index", index).
			Str("video_id", record.VideoID).
			Msg("Decoded result item")
		records = append(records, record)
	}

	DecodedRecords.Add(float64(len(records)))
	return records, skipped
}

// DecodeItem decodes a single result item. It only fails when the item is not
// a JSON object.
func DecodeItem(raw json.RawMessage) (Record, error) {
	var item fields
	if err := json.Unmarshal(raw, &item); err != nil {
		return Record{}, err
	}
	if item == nil {
		return Record{}, errNotAnObject
	}

	snippet := item.section("snippet")
	status := item.section("status")
	statistics := item.section("statistics")

	id := item.str("id")
	if id == "" {
		id = snippet.str("videoId")
	}

	return Record{
		VideoID:       id,
		Title:         snippet.str("title"),
		Description:   snippet.str("description"),
		PublishedAt:   snippet.str("publishedAt"),
		Tags:          snippet.strs("tags"),
		ChannelID:     snippet.str("channelId"),
		ChannelTitle:  snippet.str("channelTitle"),
		CategoryID:    snippet.str("categoryId"),
		PrivacyStatus: status.str("privacyStatus"),
		ViewCount:     statistics.count("viewCount"),
		LikeCount:     statistics.count("likeCount"),
		CommentCount:  statistics.count("commentCount"),
	}, nil
}

// section returns a nested object, or nil when it is absent or not an object.
func (f fields) section(key string) fields {
	raw, ok := f[key]
	if !ok {
		return nil
	}
	var out fields
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

func (f fields) str(key string) string {
	raw, ok := f[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

// strs never returns nil so that an absent list serializes as [].
func (f fields) strs(key string) []string {
	raw, ok := f[key]
	if !ok {
		return []string{}
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil || out == nil {
		return []string{}
	}
	return out
}

// count accepts both the API's string-encoded integers ("1234") and plain
// JSON numbers.
func (f fields) count(key string) int64 {
	raw, ok := f[key]
	if !ok {
		return 0
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		if err != nil {
			return 0
		}
		return n
	}

	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0
	}
	if v, err := n.Int64(); err == nil {
		return v
	}
	if v, err := n.Float64(); err == nil {
		return int64(v)
	}
	return 0
}
