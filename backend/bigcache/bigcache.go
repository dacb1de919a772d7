// Package bigcache is a local.Store on allegro/bigcache.
//
// BigCache has no per-entry TTL, so each value is framed with its deadline
// (internal/wire entry format) and expiry is enforced by local.Conn on read.
// LifeWindow still bounds how long bigcache keeps any entry.
package bigcache

import (
	"context"
	"errors"
	"time"

	bc "github.com/allegro/bigcache/v3"

	"github.com/unkn0wn-root/balancer/backend/local"
	"github.com/unkn0wn-root/balancer/internal/wire"
)

type Store struct {
	c *bc.BigCache
}

var _ local.Store = (*Store)(nil)

type Config struct {
	LifeWindow         time.Duration // 0 => 24h
	CleanWindow        time.Duration
	MaxEntriesInWindow int
	MaxEntrySize       int
	HardMaxCacheSizeMB int // ~ memory limit; 0 = unlimited
	Shards             int // power of two; 0 => bigcache default
}

func New(cfg Config) (*Store, error) {
	life := cfg.LifeWindow
	if life <= 0 {
		life = 24 * time.Hour
	}
	conf := bc.DefaultConfig(life)
	conf.Verbose = false
	if cfg.CleanWindow > 0 {
		conf.CleanWindow = cfg.CleanWindow
	}
	if cfg.MaxEntriesInWindow > 0 {
		conf.MaxEntriesInWindow = cfg.MaxEntriesInWindow
	}
	if cfg.MaxEntrySize > 0 {
		conf.MaxEntrySize = cfg.MaxEntrySize
	}
	if cfg.HardMaxCacheSizeMB > 0 {
		conf.HardMaxCacheSize = cfg.HardMaxCacheSizeMB
	}
	if cfg.Shards > 0 {
		conf.Shards = cfg.Shards
	}
	c, err := bc.New(context.Background(), conf)
	if err != nil {
		return nil, err
	}
	return &Store{c: c}, nil
}

// NewConn is a shortcut for local.New(name, store).
func NewConn(name string, cfg Config, opts ...local.Option) (*local.Conn, error) {
	s, err := New(cfg)
	if err != nil {
		return nil, err
	}
	return local.New(name, s, opts...), nil
}

func (s *Store) Load(key string) (local.Entry, bool, error) {
	b, err := s.c.Get(key)
	if errors.Is(err, bc.ErrEntryNotFound) {
		return local.Entry{}, false, nil
	}
	if err != nil {
		return local.Entry{}, false, err
	}
	deadline, value, err := wire.DecodeEntry(b)
	if err != nil {
		// foreign bytes under our key; drop them
		_ = s.c.Delete(key)
		return local.Entry{}, false, nil
	}
	return local.Entry{Value: value, Deadline: deadline}, true, nil
}

func (s *Store) Save(key string, e local.Entry) error {
	return s.c.Set(key, wire.EncodeEntry(e.Deadline, e.Value))
}

func (s *Store) Remove(key string) (bool, error) {
	err := s.c.Delete(key)
	if errors.Is(err, bc.ErrEntryNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (s *Store) Keys() ([]string, error) {
	keys := make([]string, 0, s.c.Len())
	it := s.c.Iterator()
	for it.SetNext() {
		info, err := it.Value()
		if err != nil {
			continue
		}
		keys = append(keys, info.Key())
	}
	return keys, nil
}

func (s *Store) Reset() error { return s.c.Reset() }
func (s *Store) Close() error { return s.c.Close() }
