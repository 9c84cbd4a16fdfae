package moderation

import (
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/rvchat/rvserver/internal/core"
)

// TimedList holds names that are restricted until a point in time, such as
// timed bans and timed mutes. Names are matched ignoring case.
type TimedList struct {
	cacheInstance *gocache.Cache
}

func NewTimedList() *TimedList {
	return &TimedList{cacheInstance: gocache.New(gocache.NoExpiration, time.Minute)}
}

// Add restricts name until the given time, replacing any earlier entry.
func (l *TimedList) Add(name string, until time.Time) {
	// The cache evicts the entry on its own once it is stale in wall clock
	// time; Has compares against the caller's clock regardless.
	ttl := gocache.NoExpiration
	if d := time.Until(until); d > 0 {
		ttl = d + time.Minute
	}
	l.cacheInstance.Set(core.Fold(name), until, ttl)
}

// Has reports whether name is still restricted at now. Expired entries are
// removed.
func (l *TimedList) Has(name string, now time.Time) bool {
	return l.Remaining(name, now) > 0
}

// Remaining returns how much longer name is restricted, or zero.
func (l *TimedList) Remaining(name string, now time.Time) time.Duration {
	key := core.Fold(name)
	v, ok := l.cacheInstance.Get(key)
	if !ok {
		return 0
	}
	remaining := v.(time.Time).Sub(now)
	if remaining <= 0 {
		l.cacheInstance.Delete(key)
		return 0
	}
	return remaining
}

// Remove lifts the restriction on name.
func (l *TimedList) Remove(name string) {
	l.cacheInstance.Delete(core.Fold(name))
}
