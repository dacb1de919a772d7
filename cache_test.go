package balancer

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	c "github.com/unkn0wn-root/balancer/codec"
)

type user struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func newTestCache(t *testing.T, b *Balancer, optsOpt func(*CacheOptions[user])) Cache[user] {
	t.Helper()
	opts := CacheOptions[user]{
		Namespace: "user",
		Codec:     c.JSON[user]{},
	}
	if optsOpt != nil {
		optsOpt(&opts)
	}
	cc, err := NewCache[user](b, opts)
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}
	return cc
}

func TestNewCacheValidates(t *testing.T) {
	b := newTestBalancer(t, newFleet(1), nil)
	if _, err := NewCache[user](nil, CacheOptions[user]{Namespace: "u", Codec: c.JSON[user]{}}); !errors.Is(err, ErrNilBalancer) {
		t.Fatalf("nil balancer: %v", err)
	}
	if _, err := NewCache[user](b, CacheOptions[user]{Codec: c.JSON[user]{}}); err == nil {
		t.Fatalf("empty namespace accepted")
	}
	if _, err := NewCache[user](b, CacheOptions[user]{Namespace: "u"}); err == nil {
		t.Fatalf("nil codec accepted")
	}
}

func TestCacheSetGetDelete(t *testing.T) {
	ctx := context.Background()
	fs := newFleet(2)
	b := newTestBalancer(t, fs, nil)
	cc := newTestCache(t, b, nil)

	v := user{ID: "1", Name: "Ada"}
	if ok, err := cc.Set(ctx, "u:1", v, 0); err != nil || !ok {
		t.Fatalf("Set: ok=%v err=%v", ok, err)
	}
	if raw := fs[1].raw(t, "GET", "user:u:1"); !strings.Contains(raw.(string), `"Ada"`) {
		t.Fatalf("stored under namespaced key: %v", raw)
	}
	if got, ok, err := cc.Get(ctx, "u:1"); err != nil || !ok || got != v {
		t.Fatalf("Get: got=%v ok=%v err=%v", got, ok, err)
	}
	if !cc.Delete(ctx, "u:1") {
		t.Fatalf("Delete")
	}
	if _, ok, _ := cc.Get(ctx, "u:1"); ok {
		t.Fatalf("Get after delete should miss")
	}
}

func TestCacheGetMissReleasesLock(t *testing.T) {
	ctx := context.Background()
	b := newTestBalancer(t, newFleet(2), nil)
	cc := newTestCache(t, b, nil)

	if _, ok, err := cc.Get(ctx, "u:1"); ok || err != nil {
		t.Fatalf("miss expected: ok=%v err=%v", ok, err)
	}
	if len(b.HeldLocks()) != 0 {
		t.Fatalf("plain Get must not keep a fill lock: %v", b.HeldLocks())
	}
	if b.IsLocked(ctx, "user:u:1").Kind != Absent {
		t.Fatalf("marker left behind")
	}
}

func TestCacheGetOrLoad(t *testing.T) {
	ctx := context.Background()
	fs := newFleet(2)
	b := newTestBalancer(t, fs, nil)
	cc := newTestCache(t, b, func(o *CacheOptions[user]) { o.DefaultTTL = time.Minute })

	var loads atomic.Int32
	load := func(context.Context) (user, error) {
		loads.Add(1)
		return user{ID: "7", Name: "Grace"}, nil
	}
	for i := 0; i < 3; i++ {
		got, err := cc.GetOrLoad(ctx, "u:7", 0, load)
		if err != nil || got.Name != "Grace" {
			t.Fatalf("GetOrLoad: %v %v", got, err)
		}
	}
	if n := loads.Load(); n != 1 {
		t.Fatalf("loaded %d times", n)
	}
	if len(b.HeldLocks()) != 0 {
		t.Fatalf("fill lock left: %v", b.HeldLocks())
	}
	if ms, _ := fs[0].raw(t, "PTTL", "user:u:7").(int64); ms <= 0 || ms > 60000 {
		t.Fatalf("default ttl not applied: %d", ms)
	}
}

func TestCacheGetOrLoadErrorReleasesLock(t *testing.T) {
	ctx := context.Background()
	b := newTestBalancer(t, newFleet(1), nil)
	cc := newTestCache(t, b, nil)

	boom := errors.New("db down")
	_, err := cc.GetOrLoad(ctx, "u:1", 0, func(context.Context) (user, error) { return user{}, boom })
	if !errors.Is(err, boom) {
		t.Fatalf("want load error, got %v", err)
	}
	if len(b.HeldLocks()) != 0 || b.IsLocked(ctx, "user:u:1").Kind == Locked {
		t.Fatalf("lock not released after failed load")
	}
}

func TestCacheSelfHealsUndecodableValue(t *testing.T) {
	ctx := context.Background()
	fs := newFleet(2)
	hooks := newRecHooks()
	b := newTestBalancer(t, fs, func(o *Options) { o.Hooks = hooks })
	cc := newTestCache(t, b, nil)

	setAll(t, fs, "user:bad", "{not json")
	if _, ok, err := cc.Get(ctx, "bad"); ok || err != nil {
		t.Fatalf("corrupt value should read as miss: ok=%v err=%v", ok, err)
	}
	for _, f := range fs {
		if v := f.raw(t, "GET", "user:bad"); v != nil {
			t.Fatalf("%s still holds %v", f.Name(), v)
		}
	}
	if hooks.get("heal:value_decode") != 1 {
		t.Fatalf("self-heal hook: %v", hooks.events)
	}
}

func TestCacheEncodeError(t *testing.T) {
	b := newTestBalancer(t, newFleet(1), nil)
	cc, err := NewCache[[]byte](b, CacheOptions[[]byte]{
		Namespace: "blob",
		Codec:     c.Limit[[]byte]{Inner: c.Bytes{}, Max: 3},
	})
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}
	_, err = cc.Set(context.Background(), "k", []byte("too long"), 0)
	var ce *CodecError
	if !errors.As(err, &ce) || ce.Op != "encode" || ce.Key != "blob:k" || !errors.Is(err, c.ErrTooLarge) {
		t.Fatalf("want encode CodecError, got %v", err)
	}
}

func TestCacheManyRoundTrip(t *testing.T) {
	ctx := context.Background()
	fs := newFleet(2)
	b := newTestBalancer(t, fs, nil)
	cc := newTestCache(t, b, nil)

	items := map[string]user{
		"a": {ID: "a", Name: "A"},
		"b": {ID: "b", Name: "B"},
	}
	failed, err := cc.SetMany(ctx, items, time.Minute)
	if err != nil || len(failed) != 0 {
		t.Fatalf("SetMany: failed=%v err=%v", failed, err)
	}

	got, missing, err := cc.GetMany(ctx, []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("GetMany: %v", err)
	}
	if got["a"] != items["a"] || got["b"] != items["b"] || len(got) != 2 {
		t.Fatalf("got %v", got)
	}
	if strings.Join(missing, ",") != "c" {
		t.Fatalf("missing %v", missing)
	}

	fs[0].failExpire["user:b"] = true
	failed, _ = cc.SetMany(ctx, items, time.Minute)
	sort.Strings(failed)
	if strings.Join(failed, ",") != "b" {
		t.Fatalf("failed keys should be caller keys: %v", failed)
	}

	fs[0].setDown(true)
	fs[1].setDown(true)
	_, missing, err = cc.GetMany(ctx, []string{"a", "b"})
	if err != nil || len(missing) != 2 {
		t.Fatalf("all down: missing=%v err=%v", missing, err)
	}
}

func TestCacheAdd(t *testing.T) {
	ctx := context.Background()
	b := newTestBalancer(t, newFleet(2), nil)
	cc := newTestCache(t, b, nil)

	if ok, err := cc.Add(ctx, "u", user{ID: "1"}, 0); err != nil || !ok {
		t.Fatalf("first Add: ok=%v err=%v", ok, err)
	}
	if ok, _ := cc.Add(ctx, "u", user{ID: "2"}, 0); ok {
		t.Fatalf("second Add should not overwrite")
	}
	if got, _, _ := cc.Get(ctx, "u"); got.ID != "1" {
		t.Fatalf("got %v", got)
	}
}

func TestCacheLockExists(t *testing.T) {
	ctx := context.Background()
	b := newTestBalancer(t, newFleet(2), nil)
	cc := newTestCache(t, b, nil)

	if cc.Exists(ctx, "u") {
		t.Fatalf("empty cache reports key")
	}
	if !cc.Lock(ctx, "u", time.Minute) {
		t.Fatalf("Lock")
	}
	if st := b.IsLocked(ctx, "user:u"); st.Kind != Locked {
		t.Fatalf("lock not namespaced: %v", st.Kind)
	}
	if cc.Exists(ctx, "u") {
		t.Fatalf("locked key must not count as present")
	}
	if !cc.Unlock(ctx, "u") {
		t.Fatalf("Unlock")
	}
	if ok, _ := cc.Set(ctx, "u", user{ID: "1"}, 0); !ok || !cc.Exists(ctx, "u") {
		t.Fatalf("Exists after Set")
	}
}
