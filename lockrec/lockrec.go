// Package lockrec keeps the tokens of the fill locks one balancer instance holds.
//
// It is bookkeeping, not a lock: mutual exclusion between callers comes from the
// marker stored in the backends. A record lives from a successful acquire until
// release or until the ttl of its own marker has run out, whichever comes first.
package lockrec

import (
	"sort"
	"sync"
	"time"
)

type Record struct {
	Token      string
	AcquiredAt time.Time
	Expires    time.Time // zero => never swept
}

// Table maps key -> Record. Safe for concurrent use.
type Table struct {
	mu   sync.RWMutex
	recs map[string]Record

	ticker    *time.Ticker
	stopCh    chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once

	now func() time.Time
}

// New returns a table. When sweepInterval is positive a background loop drops
// records whose marker has expired.
func New(sweepInterval time.Duration) *Table {
	t := &Table{
		recs: make(map[string]Record),
		now:  time.Now,
	}
	if sweepInterval > 0 {
		t.ticker = time.NewTicker(sweepInterval)
		t.stopCh = make(chan struct{})
		t.wg.Add(1)
		go func() {
			defer t.wg.Done()
			for {
				select {
				case <-t.ticker.C:
					t.Sweep()
				case <-t.stopCh:
					return
				}
			}
		}()
	}
	return t
}

// Put records token for key. The record expires with the marker, ttl after now.
func (t *Table) Put(key, token string, ttl time.Duration) {
	now := t.now()
	r := Record{Token: token, AcquiredAt: now}
	if ttl > 0 {
		r.Expires = now.Add(ttl)
	}
	t.mu.Lock()
	t.recs[key] = r
	t.mu.Unlock()
}

func (t *Table) Get(key string) (Record, bool) {
	t.mu.RLock()
	r, ok := t.recs[key]
	t.mu.RUnlock()
	return r, ok
}

// Token returns the token recorded for key, if any.
func (t *Table) Token(key string) (string, bool) {
	r, ok := t.Get(key)
	return r.Token, ok
}

func (t *Table) Delete(key string) {
	t.mu.Lock()
	delete(t.recs, key)
	t.mu.Unlock()
}

// DeleteIf removes the record only if it still carries token.
func (t *Table) DeleteIf(key, token string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if r, ok := t.recs[key]; ok && r.Token == token {
		delete(t.recs, key)
		return true
	}
	return false
}

// Keys returns the recorded keys in sorted order.
func (t *Table) Keys() []string {
	t.mu.RLock()
	out := make([]string, 0, len(t.recs))
	for k := range t.recs {
		out = append(out, k)
	}
	t.mu.RUnlock()
	sort.Strings(out)
	return out
}

func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.recs)
}

func (t *Table) Clear() {
	t.mu.Lock()
	t.recs = make(map[string]Record)
	t.mu.Unlock()
}

// Sweep drops records whose marker ttl has passed and returns how many.
func (t *Table) Sweep() int {
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()
	removed := 0
	for k, r := range t.recs {
		if !r.Expires.IsZero() && r.Expires.Before(now) {
			delete(t.recs, k)
			removed++
		}
	}
	return removed
}

// Close stops the sweeper. Records are kept so the owner can still release them.
func (t *Table) Close() {
	t.closeOnce.Do(func() {
		if t.stopCh != nil {
			close(t.stopCh)
			t.ticker.Stop()
			t.wg.Wait()
		}
	})
}
