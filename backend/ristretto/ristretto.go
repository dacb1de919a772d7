// Package ristretto is a local.Store on dgraph-io/ristretto.
//
// Ristretto expires entries natively but cannot enumerate them: KEYS and DBSIZE
// fail on a ristretto-backed Conn, so such a backend reports a command failure
// to key-set diagnostics. Writes may be refused by the admission policy; a
// refused write surfaces as ErrRejected.
package ristretto

import (
	"errors"
	"time"

	rc "github.com/dgraph-io/ristretto"

	"github.com/unkn0wn-root/balancer/backend/local"
)

var ErrRejected = errors.New("ristretto: write rejected by admission policy")

type Store struct {
	c   *rc.Cache
	now func() time.Time
}

var _ local.Store = (*Store)(nil)

type Config struct {
	NumCounters int64 // 0 => 1e6
	MaxCost     int64 // bytes; 0 => 64 MiB
	BufferItems int64 // 0 => 64
	Metrics     bool
}

func New(cfg Config) (*Store, error) {
	if cfg.NumCounters < 0 || cfg.MaxCost < 0 || cfg.BufferItems < 0 {
		return nil, errors.New("ristretto: invalid config")
	}
	if cfg.NumCounters == 0 {
		cfg.NumCounters = 1_000_000
	}
	if cfg.MaxCost == 0 {
		cfg.MaxCost = 64 << 20
	}
	if cfg.BufferItems == 0 {
		cfg.BufferItems = 64
	}
	c, err := rc.NewCache(&rc.Config{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxCost,
		BufferItems: cfg.BufferItems,
		Metrics:     cfg.Metrics,
	})
	if err != nil {
		return nil, err
	}
	return &Store{c: c, now: time.Now}, nil
}

func NewConn(name string, cfg Config, opts ...local.Option) (*local.Conn, error) {
	s, err := New(cfg)
	if err != nil {
		return nil, err
	}
	return local.New(name, s, opts...), nil
}

func (s *Store) Load(key string) (local.Entry, bool, error) {
	v, ok := s.c.Get(key)
	if !ok {
		return local.Entry{}, false, nil
	}
	e, ok := v.(local.Entry)
	if !ok {
		s.c.Del(key)
		return local.Entry{}, false, nil
	}
	return e, true, nil
}

func (s *Store) Save(key string, e local.Entry) error {
	var ttl time.Duration
	if !e.Deadline.IsZero() {
		ttl = e.Deadline.Sub(s.now())
		if ttl <= 0 {
			s.c.Del(key)
			s.c.Wait()
			return nil
		}
	}
	if !s.c.SetWithTTL(key, e, int64(len(e.Value))+1, ttl) {
		return ErrRejected
	}
	// Set is buffered; wait so the next command observes the write.
	s.c.Wait()
	return nil
}

func (s *Store) Remove(key string) (bool, error) {
	_, ok := s.c.Get(key)
	s.c.Del(key)
	s.c.Wait()
	return ok, nil
}

func (s *Store) Keys() ([]string, error) { return nil, local.ErrUnsupported }

func (s *Store) Reset() error {
	s.c.Clear()
	return nil
}

func (s *Store) Close() error {
	s.c.Close()
	return nil
}

// Metrics exposes ristretto counters when Config.Metrics is set.
func (s *Store) Metrics() *rc.Metrics { return s.c.Metrics }
