package dataperm

import (
	"sync"
	"sync/atomic"
	"time"
)

// Statistics is a point-in-time snapshot of the collector. Counters are
// approximate under concurrent writers and are for observability only; they
// never feed back into access decisions.
type Statistics struct {
	TotalChecks     uint64        `json:"total_checks"`
	Allowed         uint64        `json:"allowed"`
	Denied          uint64        `json:"denied"`
	CacheHits       uint64        `json:"cache_hits"`
	CacheMisses     uint64        `json:"cache_misses"`
	ActiveRules     int64         `json:"active_rules"`
	ActiveTemporary int64         `json:"active_temporary"`
	MinLatency      time.Duration `json:"min_latency"`
	MaxLatency      time.Duration `json:"max_latency"`
	AvgLatency      time.Duration `json:"avg_latency"`
}

// statsCollector accumulates running counters. Plain counts use atomics;
// the latency triple (min/max/avg) shares one small mutex so the incremental
// average avg' = (avg*(n-1)+x)/n never loses updates.
type statsCollector struct {
	totalChecks atomic.Uint64
	allowed     atomic.Uint64
	denied      atomic.Uint64
	cacheHits   atomic.Uint64
	cacheMisses atomic.Uint64

	latMu   sync.Mutex
	latN    uint64
	latMin  time.Duration
	latMax  time.Duration
	latAvg  float64
}

func newStatsCollector() *statsCollector {
	return &statsCollector{}
}

func (s *statsCollector) recordCheck(allowed bool, elapsed time.Duration) {
	s.totalChecks.Add(1)
	if allowed {
		s.allowed.Add(1)
	} else {
		s.denied.Add(1)
	}
	s.latMu.Lock()
	s.latN++
	if s.latN == 1 || elapsed < s.latMin {
		s.latMin = elapsed
	}
	if elapsed > s.latMax {
		s.latMax = elapsed
	}
	s.latAvg += (float64(elapsed) - s.latAvg) / float64(s.latN)
	s.latMu.Unlock()
}

func (s *statsCollector) recordCacheHit()  { s.cacheHits.Add(1) }
func (s *statsCollector) recordCacheMiss() { s.cacheMisses.Add(1) }

func (s *statsCollector) snapshot() Statistics {
	s.latMu.Lock()
	min, max, avg := s.latMin, s.latMax, time.Duration(s.latAvg)
	s.latMu.Unlock()
	return Statistics{
		TotalChecks: s.totalChecks.Load(),
		Allowed:     s.allowed.Load(),
		Denied:      s.denied.Load(),
		CacheHits:   s.cacheHits.Load(),
		CacheMisses: s.cacheMisses.Load(),
		MinLatency:  min,
		MaxLatency:  max,
		AvgLatency:  avg,
	}
}
