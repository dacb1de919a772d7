// Package config loads a balancer setup from YAML and builds it.
//
//	balancer:
//	  mutex: false
//	  lock_time: 30s # 0 disables locking
//	  poll_interval: 500ms
//	backends:
//	  - name: primary
//	    kind: redis
//	    addr: 10.0.0.1:6379
//	  - name: near
//	    kind: bigcache
//	    life_window: 1h
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v2"

	"github.com/unkn0wn-root/balancer"
	"github.com/unkn0wn-root/balancer/backend"
	"github.com/unkn0wn-root/balancer/backend/bigcache"
	"github.com/unkn0wn-root/balancer/backend/redis"
	"github.com/unkn0wn-root/balancer/backend/ristretto"
)

const (
	KindRedis     = "redis"
	KindBigCache  = "bigcache"
	KindRistretto = "ristretto"
)

// File is the on-disk configuration.
type File struct {
	Balancer BalancerConfig  `yaml:"balancer"`
	Backends []BackendConfig `yaml:"backends"`
	Log      LogConfig       `yaml:"log"`
}

type BalancerConfig struct {
	DisableQueue      bool           `yaml:"disable_queue"`
	Mutex             bool           `yaml:"mutex"`
	LockTime          *time.Duration `yaml:"lock_time"` // unset => balancer.DefaultLockTime, 0 disables locking
	PollInterval      time.Duration  `yaml:"poll_interval"`
	LockSweepInterval time.Duration  `yaml:"lock_sweep_interval"`
}

// BackendConfig describes one backend. Fields not used by Kind are ignored.
type BackendConfig struct {
	Name string `yaml:"name"`
	Kind string `yaml:"kind"`

	// redis
	Addr         string        `yaml:"addr"`
	Username     string        `yaml:"username"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	PoolSize     int           `yaml:"pool_size"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// bigcache
	LifeWindow  time.Duration `yaml:"life_window"`
	Shards      int           `yaml:"shards"`
	MaxMemoryMB int           `yaml:"max_memory_mb"`

	// ristretto
	NumCounters int64 `yaml:"num_counters"`
	MaxCost     int64 `yaml:"max_cost"`
}

type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// NewDefault is a single in-process bigcache backend.
func NewDefault() *File {
	return &File{
		Backends: []BackendConfig{{Name: "local", Kind: KindBigCache}},
		Log:      LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads path, applies BALANCER_* environment overrides and validates.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	f := &File{Log: LogConfig{Level: "info", Format: "text"}}
	if err := yaml.UnmarshalStrict(data, f); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := f.LoadFromEnv(); err != nil {
		return nil, err
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

// LoadFromEnv overrides balancer and log settings from the environment.
func (f *File) LoadFromEnv() error {
	if val := os.Getenv("BALANCER_LOCK_TIME"); val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			return fmt.Errorf("BALANCER_LOCK_TIME: %w", err)
		}
		f.Balancer.LockTime = &d
	}
	if val := os.Getenv("BALANCER_POLL_INTERVAL"); val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			return fmt.Errorf("BALANCER_POLL_INTERVAL: %w", err)
		}
		f.Balancer.PollInterval = d
	}
	if val := os.Getenv("BALANCER_MUTEX"); val != "" {
		b, err := strconv.ParseBool(val)
		if err != nil {
			return fmt.Errorf("BALANCER_MUTEX: %w", err)
		}
		f.Balancer.Mutex = b
	}
	if val := os.Getenv("BALANCER_LOG_LEVEL"); val != "" {
		f.Log.Level = strings.ToLower(val)
	}
	return nil
}

func (f *File) Validate() error {
	if lt := f.Balancer.LockTime; lt != nil && *lt < 0 {
		return errors.New("lock_time must not be negative (0 disables locking)")
	}
	if f.Balancer.PollInterval < 0 {
		return errors.New("poll_interval must not be negative")
	}
	seen := make(map[string]struct{}, len(f.Backends))
	for i, b := range f.Backends {
		if b.Name == "" {
			return fmt.Errorf("backends[%d]: name is required", i)
		}
		if _, dup := seen[b.Name]; dup {
			return fmt.Errorf("backends[%d]: duplicate name %q", i, b.Name)
		}
		seen[b.Name] = struct{}{}
		switch b.Kind {
		case KindRedis:
			if b.Addr == "" {
				return fmt.Errorf("backend %q: addr is required", b.Name)
			}
		case KindBigCache, KindRistretto:
		default:
			return fmt.Errorf("backend %q: unknown kind %q (must be one of: %s)",
				b.Name, b.Kind, strings.Join([]string{KindRedis, KindBigCache, KindRistretto}, ", "))
		}
	}
	switch f.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", f.Log.Level)
	}
	return nil
}

// Conns opens every backend. On error the ones already opened are closed.
func (f *File) Conns() ([]backend.Conn, error) {
	out := make([]backend.Conn, 0, len(f.Backends))
	for _, bc := range f.Backends {
		c, err := bc.open()
		if err != nil {
			for _, o := range out {
				_ = o.Close(context.Background())
			}
			return nil, fmt.Errorf("backend %q: %w", bc.Name, err)
		}
		out = append(out, c)
	}
	return out, nil
}

func (bc BackendConfig) open() (backend.Conn, error) {
	switch bc.Kind {
	case KindRedis:
		return redis.Dial(bc.Name, &goredis.Options{
			Addr:         bc.Addr,
			Username:     bc.Username,
			Password:     bc.Password,
			DB:           bc.DB,
			PoolSize:     bc.PoolSize,
			DialTimeout:  bc.DialTimeout,
			ReadTimeout:  bc.ReadTimeout,
			WriteTimeout: bc.WriteTimeout,
		}), nil
	case KindBigCache:
		return bigcache.NewConn(bc.Name, bigcache.Config{
			LifeWindow:         bc.LifeWindow,
			Shards:             bc.Shards,
			HardMaxCacheSizeMB: bc.MaxMemoryMB,
		})
	case KindRistretto:
		return ristretto.NewConn(bc.Name, ristretto.Config{
			NumCounters: bc.NumCounters,
			MaxCost:     bc.MaxCost,
		})
	default:
		return nil, fmt.Errorf("unknown kind %q", bc.Kind)
	}
}

// lockTime is the configured fill lock TTL, balancer.DefaultLockTime when unset.
func (c BalancerConfig) lockTime() time.Duration {
	if c.LockTime == nil {
		return balancer.DefaultLockTime
	}
	return *c.LockTime
}

// Options maps the balancer section onto balancer.Options with conns attached.
func (f *File) Options(conns []backend.Conn, log balancer.Logger, hooks balancer.Hooks) balancer.Options {
	return balancer.Options{
		Backends:          conns,
		DisableQueue:      f.Balancer.DisableQueue,
		MutexMode:         f.Balancer.Mutex,
		LockTime:          f.Balancer.lockTime(),
		PollInterval:      f.Balancer.PollInterval,
		LockSweepInterval: f.Balancer.LockSweepInterval,
		Logger:            log,
		Hooks:             hooks,
	}
}

// Build opens the backends and constructs the balancer.
func Build(f *File, log balancer.Logger, hooks balancer.Hooks) (*balancer.Balancer, error) {
	conns, err := f.Conns()
	if err != nil {
		return nil, err
	}
	b, err := balancer.New(f.Options(conns, log, hooks))
	if err != nil {
		for _, c := range conns {
			_ = c.Close(context.Background())
		}
		return nil, err
	}
	return b, nil
}
