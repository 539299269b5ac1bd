package cache

import (
	"context"
	"errors"
	"path"
	"sync"
	"testing"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/moiledger/internal/observability/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingInvalidator struct {
	mu       sync.Mutex
	patterns []string
	err      error
}

func (r *recordingInvalidator) Invalidate(_ context.Context, patterns ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.patterns = append(r.patterns, patterns...)
	return r.err
}

func TestNewInvalidatorWithoutClientIsNoop(t *testing.T) {
	inv := NewInvalidator(nil)
	assert.NoError(t, inv.Invalidate(context.Background(), "anything:*"))
}

func TestQuietSwallowsFailures(t *testing.T) {
	rec := &recordingInvalidator{err: errors.New("redis down")}
	q := NewQuiet(rec, zap.NewNop(), metrics.NewNop())

	q.Invalidate(context.Background(), FunctionKeys("acme")...)

	assert.Equal(t, FunctionKeys("acme"), rec.patterns)
}

func TestQuietIgnoresCancelledCaller(t *testing.T) {
	rec := &recordingInvalidator{}
	q := NewQuiet(rec, zap.NewNop(), metrics.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	q.Invalidate(ctx, "moiledger:acme:*")

	assert.Equal(t, []string{"moiledger:acme:*"}, rec.patterns)
}

func TestRedisInvalidatorReportsUnreachableServer(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	err := NewInvalidator(client).Invalidate(context.Background(), TenantKeys("acme")...)
	require.Error(t, err)
}

func TestKeyPatternsAreTenantScoped(t *testing.T) {
	for _, key := range PayerKeys("acme", "wedding-x") {
		assert.Contains(t, key, "moiledger:acme:")
	}
	assert.Contains(t, PayerKeys("acme", "wedding-x"), "moiledger:acme:payers:wedding-x:*")
	assert.Equal(t, []string{"moiledger:acme:edit_logs:42:*"}, EditLogKeys("acme", "42"))
}

func TestKeyPatternsEscapeGlobCharacters(t *testing.T) {
	pattern := PayerKeys("acme", "wed*[1]?")[0]
	assert.Equal(t, `moiledger:acme:payers:wed\*\[1\]\?:*`, pattern)

	matched, err := path.Match(pattern, "moiledger:acme:payers:wed*[1]?:page-1")
	require.NoError(t, err)
	assert.True(t, matched)

	matched, err = path.Match(pattern, "moiledger:acme:payers:wedding-x1z:page-1")
	require.NoError(t, err)
	assert.False(t, matched)

	assert.Equal(t, []string{`moiledger:acme:edit_logs:a\\b:*`}, EditLogKeys("acme", `a\b`))
}

func TestLockerRequiresClient(t *testing.T) {
	var l *Locker
	assert.False(t, l.Enabled())

	_, ok, err := l.TryLock(context.Background(), "k", time.Second)
	assert.False(t, ok)
	assert.Error(t, err)
	assert.NoError(t, l.Release(context.Background(), "k", "t"))
}
