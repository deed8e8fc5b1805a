package uid

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceyewan/pkseq/clog"
	"github.com/ceyewan/pkseq/uid/counter"
)

func memoryConfig(name string, seeds ...counter.Row) *Config {
	return &Config{
		ServiceName: "test-service",
		Driver:      DriverMemory,
		Name:        name,
		Policy:      "async",
		Workers:     2,
		Seeds:       seeds,
	}
}

// TestProviderSingleName 单序列模式：初始化即预加载，Next 连续发号
func TestProviderSingleName(t *testing.T) {
	ctx := context.Background()
	store := counter.NewMemoryStore(counter.Row{Key: "order", Value: 100, Step: 10})

	provider, err := New(ctx, memoryConfig("order"), WithStore(store), WithLogger(clog.Namespace("uid-test")))
	require.NoError(t, err)
	defer provider.Close()

	// 初始化阶段已抢占第一段
	row, _ := store.Row("order")
	assert.Equal(t, int64(110), row.Value)

	for want := int64(101); want <= 125; want++ {
		id, err := provider.Next(ctx)
		require.NoError(t, err)
		require.Equal(t, want, id)
	}

	stats, ok := provider.Stats("order")
	require.True(t, ok)
	assert.Equal(t, "order", stats.Name)
	assert.Equal(t, int64(121), stats.Start)
}

// TestProviderMultiName 多序列模式：序列按名称惰性创建，互不影响
func TestProviderMultiName(t *testing.T) {
	ctx := context.Background()
	cfg := memoryConfig("",
		counter.Row{Key: "order", Value: 0, Step: 100},
		counter.Row{Key: "user", Value: 1000, Step: 100},
	)
	cfg.Policy = "sync"

	provider, err := New(ctx, cfg)
	require.NoError(t, err)
	defer provider.Close()

	_, ok := provider.Stats("order")
	assert.False(t, ok)

	id, err := provider.Get(ctx, "order")
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	id, err = provider.Get(ctx, "user")
	require.NoError(t, err)
	assert.Equal(t, int64(1001), id)

	_, err = provider.Next(ctx)
	assert.True(t, HasCode(err, ErrCodeValidation))

	_, err = provider.Get(ctx, "")
	assert.True(t, HasCode(err, ErrCodeValidation))

	_, err = provider.Get(ctx, "unknown")
	assert.True(t, IsFatalConfig(err))

	assert.NoError(t, provider.Health(ctx))
}

// TestProviderConcurrent 多个 Provider 共享同一计数器，模拟多进程并发取号
func TestProviderConcurrent(t *testing.T) {
	ctx := context.Background()
	store := counter.NewMemoryStore(counter.Row{Key: "order", Value: 0, Step: 20})

	const (
		instances = 4
		callers   = 8
		perCaller = 200
	)

	var (
		mu   sync.Mutex
		seen = make(map[int64]struct{})
		wg   sync.WaitGroup
	)
	for i := 0; i < instances; i++ {
		provider, err := New(ctx, memoryConfig("order"), WithStore(store))
		require.NoError(t, err)
		defer provider.Close()

		for c := 0; c < callers; c++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				ids := make([]int64, 0, perCaller)
				for n := 0; n < perCaller; n++ {
					id, err := provider.Next(ctx)
					if !assert.NoError(t, err) {
						return
					}
					ids = append(ids, id)
				}
				mu.Lock()
				defer mu.Unlock()
				for _, id := range ids {
					_, dup := seen[id]
					assert.False(t, dup, "duplicate id %d", id)
					seen[id] = struct{}{}
				}
			}()
		}
	}
	wg.Wait()

	assert.Len(t, seen, instances*callers*perCaller)
}

func TestProviderInitFailsOnMissingRow(t *testing.T) {
	_, err := New(context.Background(), memoryConfig("order"))
	assert.True(t, IsFatalConfig(err), "%v", err)

	cfg := memoryConfig("order", counter.Row{Key: "order", Value: 0, Step: 0})
	cfg.Policy = "sync"
	_, err = New(context.Background(), cfg)
	assert.True(t, IsFatalConfig(err), "%v", err)
}

func TestProviderClose(t *testing.T) {
	ctx := context.Background()
	store := counter.NewMemoryStore(counter.Row{Key: "order", Value: 0, Step: 10})

	provider, err := New(ctx, memoryConfig("order"), WithStore(store))
	require.NoError(t, err)
	require.NoError(t, provider.Close())
	require.NoError(t, provider.Close())

	_, err = provider.Next(ctx)
	assert.True(t, IsClosed(err))
	assert.True(t, IsClosed(provider.Health(ctx)))

	// 外部注入的计数器不随 Provider 关闭
	_, err = store.Load(ctx, "order")
	assert.NoError(t, err)
}

func TestProviderBoltDriver(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ids.db")

	seed, err := counter.OpenBolt(path, "")
	require.NoError(t, err)
	require.NoError(t, seed.Provision(ctx, counter.Row{Key: "order", Value: 500, Step: 5}))
	require.NoError(t, seed.Close())

	cfg := GetDefaultConfig("test").SetServiceName("bolt-test").SetDriver(DriverBolt, path).SetName("order")
	provider, err := New(ctx, cfg)
	require.NoError(t, err)

	for want := int64(501); want <= 512; want++ {
		id, err := provider.Next(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, id)
	}
	require.NoError(t, provider.Close())

	// Provider 关闭后文件锁释放，可以再次打开
	reopened, err := counter.OpenBolt(path, "")
	require.NoError(t, err)
	defer reopened.Close()
	row, err := reopened.Load(ctx, "order")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, row.Value, int64(515))
}

func TestProviderRegistersMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	cfg := memoryConfig("order", counter.Row{Key: "order", Value: 0, Step: 10})

	provider, err := New(context.Background(), cfg, WithRegisterer(reg))
	require.NoError(t, err)
	defer provider.Close()

	// 重复注册视为成功
	second, err := New(context.Background(), cfg, WithRegisterer(reg))
	require.NoError(t, err)
	defer second.Close()

	_, err = provider.Next(context.Background())
	require.NoError(t, err)

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "uid_segment_claims_total")
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, memoryConfig("").Validate())

	cases := map[string]func(c *Config){
		"service name": func(c *Config) { c.ServiceName = "" },
		"driver":       func(c *Config) { c.Driver = "" },
		"unknown":      func(c *Config) { c.Driver = "redis" },
		"url":          func(c *Config) { c.Driver = DriverPostgres },
		"table":        func(c *Config) { c.Table = "pk_sequence;--" },
		"column":       func(c *Config) { c.ValueColumn = "1v" },
		"policy":       func(c *Config) { c.Policy = "lazy" },
		"timeout":      func(c *Config) { c.PreloadWaitTimeout = -time.Second },
		"workers":      func(c *Config) { c.Workers = -1 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := memoryConfig("")
			mutate(cfg)
			err := cfg.Validate()
			assert.True(t, HasCode(err, ErrCodeValidation), "%v", err)

			_, err = New(context.Background(), cfg)
			assert.Error(t, err)
		})
	}

	_, err := New(context.Background(), nil)
	assert.True(t, HasCode(err, ErrCodeValidation))
}

func TestGetDefaultConfig(t *testing.T) {
	for _, key := range []string{"UID_DRIVER", "UID_URL", "UID_NAME", "UID_POLICY", "UID_WORKERS", "UID_TABLE"} {
		t.Setenv(key, "")
	}
	t.Setenv("SERVICE_NAME", "order-service")

	cfg := GetDefaultConfig("development")
	assert.Equal(t, "order-service", cfg.ServiceName)
	assert.Equal(t, DriverMemory, cfg.Driver)
	assert.Equal(t, counter.DefaultTable, cfg.Table)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, 3*time.Second, cfg.PreloadWaitTimeout)

	assert.Equal(t, DriverPostgres, GetDefaultConfig("production").Driver)

	t.Setenv("UID_DRIVER", DriverMySQL)
	t.Setenv("UID_URL", "root@tcp(db:3306)/app")
	t.Setenv("UID_NAME", "order")
	t.Setenv("UID_POLICY", "sync")
	t.Setenv("UID_WORKERS", "8")
	cfg = GetDefaultConfig("production")
	assert.Equal(t, DriverMySQL, cfg.Driver)
	assert.Equal(t, "root@tcp(db:3306)/app", cfg.URL)
	assert.Equal(t, "order", cfg.Name)
	assert.Equal(t, "sync", cfg.Policy)
	assert.Equal(t, 8, cfg.Workers)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("UID_DRIVER", "")
	t.Setenv("UID_URL", "")
	path := filepath.Join(t.TempDir(), "uid.yaml")
	content := `
serviceName: id-service
driver: memory
name: order
policy: sync
preloadWaitTimeout: 500ms
seeds:
  - key: order
    value: 100
    step: 10
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadConfig(path, "production")
	require.NoError(t, err)
	assert.Equal(t, "id-service", cfg.ServiceName)
	assert.Equal(t, DriverMemory, cfg.Driver)
	assert.Equal(t, 500*time.Millisecond, cfg.PreloadWaitTimeout)
	assert.Equal(t, 4, cfg.Workers)
	require.Len(t, cfg.Seeds, 1)
	assert.Equal(t, counter.Row{Key: "order", Value: 100, Step: 10}, cfg.Seeds[0])

	provider, err := New(context.Background(), cfg)
	require.NoError(t, err)
	defer provider.Close()
	id, err := provider.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(101), id)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"), "production")
	assert.Error(t, err)
}

func TestSplitEndpoints(t *testing.T) {
	assert.Equal(t, []string{"10.0.0.1:2379", "10.0.0.2:2379"},
		splitEndpoints("etcd://10.0.0.1:2379, 10.0.0.2:2379,"))
	assert.Empty(t, splitEndpoints(" , "))
}
