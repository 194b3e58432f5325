// Package checkpoint buffers decoded records and flushes them to a durable
// sink at the checkpoints chosen by the run controller.
//
// Every record handed to Append is, at any point between calls, either still
// in the buffer or part of a dump that was written successfully. A flush only
// clears the buffer after the sink accepted the blob; a failed flush leaves
// the buffer untouched and returns ErrFlushFailed.
//
// Each flush produces one self-contained, indent-formatted JSON array named
// <prefix>_<unix-seconds>.<microseconds>.json, for example
// all_video_info_1700000000.123456.json. Names are strictly increasing within
// a process, so two flushes never collide.
package checkpoint
