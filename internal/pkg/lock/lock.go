// Package lock provides named mutual exclusion for admission paths. Keys are
// always taken in sorted order so two callers asking for overlapping key sets
// cannot deadlock.
package lock

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

var ErrNotAcquired = errors.New("lock not acquired")

// Locker acquires every key or none. The returned func releases them.
type Locker interface {
	Lock(ctx context.Context, keys ...string) (release func(), err error)
}

func ZoneKey(zoneID int64) string { return fmt.Sprintf("zone:%d", zoneID) }

func UserKey(userID int64) string { return fmt.Sprintf("user:%d", userID) }

func normalize(keys []string) []string {
	out := make([]string, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
