// Package catalog defines the data model shared by the harvester: identifiers,
// groups of identifiers, raw API pages and the decoded Record.
//
// # Records
//
// A Record is the flattened view of one videos.list item:
//
//	{
//	  "video_id": "dQw4w9WgXcQ",
//	  "title": "...",
//	  "description": "...",
//	  "published_at": "2009-10-25T06:57:33Z",
//	  "tags": ["..."],
//	  "channel_id": "UCuAXFkgsw1L7xaCfnd5JJOw",
//	  "channel_title": "...",
//	  "category_id": "10",
//	  "privacy_status": "public",
//	  "view_count": 1500000000,
//	  "like_count": 17000000,
//	  "comment_count": 2300000
//	}
//
// Decoding never fails on a missing or mistyped field. Strings default to "",
// lists to [] and counters to 0. An item that is not a JSON object at all is
// skipped and counted in harvester_record_decode_failures_total, and the rest
// of the page is still decoded.
package catalog
