package engine

import (
	"sync"
	"sync/atomic"
	"time"
)

// statsWindow is the number of recent timing samples kept per series.
const statsWindow = 100

// Stats is a point-in-time snapshot of engine counters. Counters are
// cumulative since construction or the last ResetStats; averages cover the
// most recent statsWindow samples only.
type Stats struct {
	Hits    uint64
	Misses  uint64
	Writes  uint64
	Deletes uint64
	Errors  uint64

	// HitRate is Hits / (Hits + Misses), 0 when no lookups happened.
	HitRate float64

	// AvgLoadTime is the mean duration of recent fetch executions.
	AvgLoadTime time.Duration

	// AvgWriteTime is the mean duration of recent write-through persists.
	AvgWriteTime time.Duration
}

// rolling is a fixed-size ring of duration samples.
type rolling struct {
	samples [statsWindow]time.Duration
	n       int
	idx     int
}

func (r *rolling) add(d time.Duration) {
	r.samples[r.idx] = d
	r.idx = (r.idx + 1) % statsWindow
	if r.n < statsWindow {
		r.n++
	}
}

func (r *rolling) avg() time.Duration {
	if r.n == 0 {
		return 0
	}
	var sum time.Duration
	for i := 0; i < r.n; i++ {
		sum += r.samples[i]
	}
	return sum / time.Duration(r.n)
}

func (r *rolling) reset() {
	r.n = 0
	r.idx = 0
}

// statistics holds live counters. Counters are atomics so the hot path never
// blocks; the timing rings take a mutex but are touched only on fetch and
// persist, not on plain gets.
type statistics struct {
	hits    atomic.Uint64
	misses  atomic.Uint64
	writes  atomic.Uint64
	deletes atomic.Uint64
	errors  atomic.Uint64

	mu    sync.Mutex
	load  rolling
	write rolling
}

func (s *statistics) hit()  { s.hits.Add(1) }
func (s *statistics) miss() { s.misses.Add(1) }

func (s *statistics) wrote(n uint64) { s.writes.Add(n) }
func (s *statistics) deleted()       { s.deletes.Add(1) }
func (s *statistics) failed()        { s.errors.Add(1) }

func (s *statistics) recordLoad(d time.Duration) {
	s.mu.Lock()
	s.load.add(d)
	s.mu.Unlock()
}

func (s *statistics) recordWrite(d time.Duration) {
	s.mu.Lock()
	s.write.add(d)
	s.mu.Unlock()
}

func (s *statistics) snapshot() Stats {
	st := Stats{
		Hits:    s.hits.Load(),
		Misses:  s.misses.Load(),
		Writes:  s.writes.Load(),
		Deletes: s.deletes.Load(),
		Errors:  s.errors.Load(),
	}
	if total := st.Hits + st.Misses; total > 0 {
		st.HitRate = float64(st.Hits) / float64(total)
	}

	s.mu.Lock()
	st.AvgLoadTime = s.load.avg()
	st.AvgWriteTime = s.write.avg()
	s.mu.Unlock()
	return st
}

func (s *statistics) reset() {
	s.hits.Store(0)
	s.misses.Store(0)
	s.writes.Store(0)
	s.deletes.Store(0)
	s.errors.Store(0)

	s.mu.Lock()
	s.load.reset()
	s.write.reset()
	s.mu.Unlock()
}
