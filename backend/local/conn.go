package local

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/unkn0wn-root/balancer/backend"
)

// Conn executes commands against a Store. All commands run under one mutex, so
// SET NX and transactions are atomic with respect to other callers of this Conn.
type Conn struct {
	name  string
	store Store

	mu      sync.Mutex
	closed  bool
	now     func() time.Time
	started time.Time

	processed int64
	hits      int64
	misses    int64
	calls     map[string]int64
}

var _ backend.Conn = (*Conn)(nil)

type Option func(*Conn)

// WithClock replaces time.Now (expiry checks and INFO uptime).
func WithClock(now func() time.Time) Option {
	return func(c *Conn) { c.now = now }
}

func New(name string, s Store, opts ...Option) *Conn {
	c := &Conn{
		name:  name,
		store: s,
		now:   time.Now,
		calls: make(map[string]int64),
	}
	for _, o := range opts {
		o(c)
	}
	c.started = c.now()
	return c
}

func (c *Conn) Name() string { return c.name }

func (c *Conn) Do(ctx context.Context, args ...any) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}
	return c.exec(args)
}

// Tx runs cmds back to back under the connection lock. As with EXEC, a command
// that fails does not stop the others; its error is reported in its own Reply.
func (c *Conn) Tx(ctx context.Context, cmds ...[]any) ([]backend.Reply, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}
	out := make([]backend.Reply, len(cmds))
	for i, cmd := range cmds {
		out[i] = backend.Result(c.exec(cmd))
	}
	return out, nil
}

func (c *Conn) Close(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.store.Close()
}

func (c *Conn) exec(args []any) (any, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("ERR empty command")
	}
	name := backend.Command(args)
	rest := args[1:]
	c.processed++
	c.calls[strings.ToLower(name)]++

	switch name {
	case "PING":
		return "PONG", nil
	case "GET":
		return c.get(rest)
	case "SET":
		return c.set(rest)
	case "MGET":
		return c.mget(rest)
	case "MSET":
		return c.mset(rest)
	case "DEL":
		return c.del(rest)
	case "EXISTS":
		return c.exists(rest)
	case "GETRANGE":
		return c.getrange(rest)
	case "EXPIRE":
		return c.expire(rest, time.Second)
	case "PEXPIRE":
		return c.expire(rest, time.Millisecond)
	case "PTTL":
		return c.pttl(rest)
	case "FLUSHDB":
		if err := c.store.Reset(); err != nil {
			return nil, err
		}
		return "OK", nil
	case "KEYS":
		return c.keys(rest)
	case "DBSIZE":
		keys, err := c.liveKeys()
		if err != nil {
			return nil, err
		}
		return int64(len(keys)), nil
	case "INFO":
		return c.info(rest)
	default:
		return nil, fmt.Errorf("ERR unknown command '%s'", strings.ToLower(name))
	}
}

// load returns a live entry, dropping it when its deadline has passed.
func (c *Conn) load(key string) (Entry, bool, error) {
	e, ok, err := c.store.Load(key)
	if err != nil || !ok {
		return Entry{}, false, err
	}
	if e.expired(c.now()) {
		_, _ = c.store.Remove(key)
		return Entry{}, false, nil
	}
	return e, true, nil
}

func (c *Conn) get(args []any) (any, error) {
	if len(args) != 1 {
		return nil, arity("get")
	}
	e, ok, err := c.load(str(args[0]))
	if err != nil {
		return nil, err
	}
	if !ok {
		c.misses++
		return nil, backend.ErrNil
	}
	c.hits++
	return string(e.Value), nil
}

func (c *Conn) set(args []any) (any, error) {
	if len(args) < 2 {
		return nil, arity("set")
	}
	key := str(args[0])
	e := Entry{Value: []byte(str(args[1]))}
	var nx, xx bool
	for i := 2; i < len(args); i++ {
		switch strings.ToUpper(str(args[i])) {
		case "NX":
			nx = true
		case "XX":
			xx = true
		case "EX", "PX":
			if i+1 >= len(args) || !e.Deadline.IsZero() {
				return nil, ErrSyntax
			}
			n, err := integer(args[i+1])
			if err != nil || n <= 0 {
				return nil, fmt.Errorf("ERR invalid expire time in 'set' command")
			}
			unit := time.Second
			if strings.EqualFold(str(args[i]), "PX") {
				unit = time.Millisecond
			}
			e.Deadline = c.now().Add(time.Duration(n) * unit)
			i++
		default:
			return nil, ErrSyntax
		}
	}
	if nx && xx {
		return nil, ErrSyntax
	}
	if nx || xx {
		_, exists, err := c.load(key)
		if err != nil {
			return nil, err
		}
		if (nx && exists) || (xx && !exists) {
			return nil, backend.ErrNil
		}
	}
	if err := c.store.Save(key, e); err != nil {
		return nil, err
	}
	return "OK", nil
}

func (c *Conn) mget(args []any) (any, error) {
	if len(args) == 0 {
		return nil, arity("mget")
	}
	out := make([]any, len(args))
	for i, k := range args {
		e, ok, err := c.load(str(k))
		if err != nil {
			return nil, err
		}
		if ok {
			c.hits++
			out[i] = string(e.Value)
		} else {
			c.misses++
		}
	}
	return out, nil
}

func (c *Conn) mset(args []any) (any, error) {
	if len(args) == 0 || len(args)%2 != 0 {
		return nil, arity("mset")
	}
	for i := 0; i < len(args); i += 2 {
		if err := c.store.Save(str(args[i]), Entry{Value: []byte(str(args[i+1]))}); err != nil {
			return nil, err
		}
	}
	return "OK", nil
}

func (c *Conn) del(args []any) (any, error) {
	if len(args) == 0 {
		return nil, arity("del")
	}
	var n int64
	for _, k := range args {
		_, live, err := c.load(str(k))
		if err != nil {
			return nil, err
		}
		if !live {
			continue
		}
		if ok, err := c.store.Remove(str(k)); err != nil {
			return nil, err
		} else if ok {
			n++
		}
	}
	return n, nil
}

func (c *Conn) exists(args []any) (any, error) {
	if len(args) == 0 {
		return nil, arity("exists")
	}
	var n int64
	for _, k := range args {
		_, ok, err := c.load(str(k))
		if err != nil {
			return nil, err
		}
		if ok {
			n++
		}
	}
	return n, nil
}

func (c *Conn) getrange(args []any) (any, error) {
	if len(args) != 3 {
		return nil, arity("getrange")
	}
	start, err := integer(args[1])
	if err != nil {
		return nil, ErrNotInteger
	}
	end, err := integer(args[2])
	if err != nil {
		return nil, ErrNotInteger
	}
	e, ok, err := c.load(str(args[0]))
	if err != nil {
		return nil, err
	}
	if !ok {
		return "", nil
	}
	return substr(e.Value, start, end), nil
}

// substr follows GETRANGE index rules: negative offsets count from the end,
// the end offset is inclusive and clamped.
func substr(b []byte, start, end int64) string {
	n := int64(len(b))
	if n == 0 {
		return ""
	}
	if start < 0 {
		start += n
	}
	if end < 0 {
		end += n
	}
	if start < 0 {
		start = 0
	}
	if end >= n {
		end = n - 1
	}
	if start > end || start >= n {
		return ""
	}
	return string(b[start : end+1])
}

func (c *Conn) expire(args []any, unit time.Duration) (any, error) {
	if len(args) != 2 {
		return nil, arity("expire")
	}
	n, err := integer(args[1])
	if err != nil {
		return nil, ErrNotInteger
	}
	key := str(args[0])
	e, ok, err := c.load(key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return int64(0), nil
	}
	if n <= 0 {
		if _, err := c.store.Remove(key); err != nil {
			return nil, err
		}
		return int64(1), nil
	}
	e.Deadline = c.now().Add(time.Duration(n) * unit)
	if err := c.store.Save(key, e); err != nil {
		return nil, err
	}
	return int64(1), nil
}

func (c *Conn) pttl(args []any) (any, error) {
	if len(args) != 1 {
		return nil, arity("pttl")
	}
	e, ok, err := c.load(str(args[0]))
	if err != nil {
		return nil, err
	}
	switch {
	case !ok:
		return int64(-2), nil
	case e.Deadline.IsZero():
		return int64(-1), nil
	default:
		return e.Deadline.Sub(c.now()).Milliseconds(), nil
	}
}

func (c *Conn) keys(args []any) (any, error) {
	if len(args) != 1 {
		return nil, arity("keys")
	}
	pattern := str(args[0])
	live, err := c.liveKeys()
	if err != nil {
		return nil, err
	}
	out := make([]any, 0, len(live))
	for _, k := range live {
		if ok, _ := path.Match(pattern, k); ok {
			out = append(out, k)
		}
	}
	return out, nil
}

func (c *Conn) liveKeys() ([]string, error) {
	all, err := c.store.Keys()
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, k := range all {
		if _, ok, err := c.load(k); err == nil && ok {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (c *Conn) info(args []any) (any, error) {
	section := "default"
	if len(args) > 0 {
		section = strings.ToLower(str(args[0]))
	}
	var b strings.Builder
	write := func(title string, lines ...string) {
		fmt.Fprintf(&b, "# %s\r\n", title)
		for _, l := range lines {
			b.WriteString(l)
			b.WriteString("\r\n")
		}
	}
	all := section == "default" || section == "all" || section == "everything"
	if all || section == "server" {
		write("Server",
			"server_name:"+c.name,
			"mode:local",
			fmt.Sprintf("uptime_in_seconds:%d", int64(c.now().Sub(c.started).Seconds())))
	}
	if all || section == "clients" {
		write("Clients", "connected_clients:1")
	}
	if all || section == "stats" {
		write("Stats",
			fmt.Sprintf("total_commands_processed:%d", c.processed),
			fmt.Sprintf("keyspace_hits:%d", c.hits),
			fmt.Sprintf("keyspace_misses:%d", c.misses))
	}
	if section == "commandstats" || section == "all" || section == "everything" {
		names := make([]string, 0, len(c.calls))
		for n := range c.calls {
			names = append(names, n)
		}
		sort.Strings(names)
		lines := make([]string, len(names))
		for i, n := range names {
			lines[i] = fmt.Sprintf("cmdstat_%s:calls=%d", n, c.calls[n])
		}
		write("Commandstats", lines...)
	}
	if all || section == "keyspace" {
		if keys, err := c.liveKeys(); err == nil {
			write("Keyspace", fmt.Sprintf("db0:keys=%d", len(keys)))
		} else {
			write("Keyspace")
		}
	}
	return b.String(), nil
}

func arity(cmd string) error {
	return fmt.Errorf("ERR wrong number of arguments for '%s' command", cmd)
}

func str(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	case int:
		return strconv.Itoa(s)
	case int64:
		return strconv.FormatInt(s, 10)
	case time.Duration:
		return strconv.FormatInt(int64(s), 10)
	default:
		return fmt.Sprint(v)
	}
}

func integer(v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int64:
		return n, nil
	case int32:
		return int64(n), nil
	default:
		return strconv.ParseInt(str(v), 10, 64)
	}
}
