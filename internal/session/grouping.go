// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session owns the conversation state.
package session

import "time"

// =============================================================================
// DATE GROUPING
// =============================================================================

// Bucket is a date bucket in the session list.
type Bucket string

const (
	BucketToday      Bucket = "Today"
	BucketYesterday  Bucket = "Yesterday"
	BucketPrevious7  Bucket = "Previous 7 Days"
	BucketPrevious30 Bucket = "Previous 30 Days"
	BucketOlder      Bucket = "Older"
)

// bucketOrder fixes the display order of groups.
var bucketOrder = []Bucket{
	BucketToday,
	BucketYesterday,
	BucketPrevious7,
	BucketPrevious30,
	BucketOlder,
}

// Group is one date bucket and the sessions that fall into it.
type Group struct {
	Bucket   Bucket
	Sessions []*Session
}

// GroupByDate buckets sessions by UpdatedAt using midnight-aligned day
// boundaries relative to now. Input ordering is preserved within each
// bucket, so most-recently-updated-first ordering is inherited from the
// Store. Empty buckets are omitted. Pure function; pass a fixed now for
// deterministic tests.
func GroupByDate(sessions []*Session, now time.Time) []Group {
	startToday := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	startYesterday := startToday.AddDate(0, 0, -1)
	start7 := startToday.AddDate(0, 0, -7)
	start30 := startToday.AddDate(0, 0, -30)

	buckets := make(map[Bucket][]*Session, len(bucketOrder))
	for _, sess := range sessions {
		b := bucketFor(sess.UpdatedAt, startToday, startYesterday, start7, start30)
		buckets[b] = append(buckets[b], sess)
	}

	out := make([]Group, 0, len(bucketOrder))
	for _, b := range bucketOrder {
		if len(buckets[b]) > 0 {
			out = append(out, Group{Bucket: b, Sessions: buckets[b]})
		}
	}
	return out
}

func bucketFor(t, startToday, startYesterday, start7, start30 time.Time) Bucket {
	switch {
	case !t.Before(startToday):
		return BucketToday
	case !t.Before(startYesterday):
		return BucketYesterday
	case !t.Before(start7):
		return BucketPrevious7
	case !t.Before(start30):
		return BucketPrevious30
	default:
		return BucketOlder
	}
}
