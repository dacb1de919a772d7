package redis

import (
	"context"
	"errors"

	goredis "github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/balancer/backend"
)

var ErrNilClient = errors.New("redis backend: nil client")

// Conn issues balancer commands through a go-redis client.
type Conn struct {
	rdb         goredis.UniversalClient
	name        string
	closeClient bool
}

var _ backend.Conn = (*Conn)(nil)

type Config struct {
	Client      goredis.UniversalClient
	Name        string // defaults to the client's address
	CloseClient bool   // set true only if this backend exclusively owns the client
}

func New(cfg Config) (*Conn, error) {
	if cfg.Client == nil {
		return nil, ErrNilClient
	}
	name := cfg.Name
	if name == "" {
		name = addrOf(cfg.Client)
	}
	return &Conn{rdb: cfg.Client, name: name, closeClient: cfg.CloseClient}, nil
}

// Dial builds a single-node client from opts and owns it.
func Dial(name string, opts *goredis.Options) *Conn {
	c, _ := New(Config{Client: goredis.NewClient(opts), Name: name, CloseClient: true})
	return c
}

func addrOf(c goredis.UniversalClient) string {
	if cl, ok := c.(*goredis.Client); ok {
		return cl.Options().Addr
	}
	return "redis"
}

func (c *Conn) Name() string { return c.name }

func (c *Conn) Do(ctx context.Context, args ...any) (any, error) {
	v, err := c.rdb.Do(ctx, args...).Result()
	if err == goredis.Nil {
		return nil, backend.ErrNil
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}

// Tx wraps cmds in MULTI/EXEC on one pooled connection.
func (c *Conn) Tx(ctx context.Context, cmds ...[]any) ([]backend.Reply, error) {
	queued := make([]*goredis.Cmd, len(cmds))
	_, err := c.rdb.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		for i, args := range cmds {
			queued[i] = p.Do(ctx, args...)
		}
		return nil
	})
	var rerr goredis.Error
	if err != nil && err != goredis.Nil && !errors.As(err, &rerr) {
		// the transaction itself did not reach the server
		return nil, err
	}
	out := make([]backend.Reply, len(cmds))
	for i, cmd := range queued {
		v, cerr := cmd.Result()
		if cerr == goredis.Nil {
			cerr = backend.ErrNil
		}
		out[i] = backend.Result(v, cerr)
	}
	return out, nil
}

// Close releases the underlying client only when this backend owns it.
// Safe to call multiple times.
func (c *Conn) Close(context.Context) error {
	if c.closeClient {
		if err := c.rdb.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
			return err
		}
	}
	return nil
}
