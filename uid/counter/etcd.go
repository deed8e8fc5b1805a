package counter

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"

	"go.etcd.io/etcd/api/v3/v3rpc/rpctypes"
	clientv3 "go.etcd.io/etcd/client/v3"
)

// DefaultEtcdPrefix etcd 中计数器的根路径
const DefaultEtcdPrefix = "/pk-sequence"

// EtcdConfig etcd 计数器配置
type EtcdConfig struct {
	Endpoints   []string
	Username    string
	Password    string
	DialTimeout time.Duration
	Prefix      string
}

// EtcdStore 基于 etcd 事务的计数器
// 每个序列占用 <prefix>/<key>/value 与 <prefix>/<key>/step 两个键，
// 条件更新通过 Txn If(Value == old) Then(Put new) 实现
type EtcdStore struct {
	client     *clientv3.Client
	prefix     string
	ownsClient bool
}

var _ Store = (*EtcdStore)(nil)
var _ Provisioner = (*EtcdStore)(nil)

// OpenEtcd 创建 etcd 客户端并检查连通性
func OpenEtcd(ctx context.Context, cfg EtcdConfig) (*EtcdStore, error) {
	if len(cfg.Endpoints) == 0 {
		return nil, errors.New("etcd endpoints cannot be empty")
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 5 * time.Second
	}

	client, err := clientv3.New(clientv3.Config{
		Endpoints:   cfg.Endpoints,
		DialTimeout: cfg.DialTimeout,
		Username:    cfg.Username,
		Password:    cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create etcd client: %w", err)
	}

	statusCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()
	if _, err := client.Status(statusCtx, cfg.Endpoints[0]); err != nil {
		client.Close()
		if errors.Is(err, rpctypes.ErrAuthFailed) || errors.Is(err, rpctypes.ErrPermissionDenied) {
			return nil, fmt.Errorf("etcd rejected credentials for %q: %w", cfg.Username, err)
		}
		return nil, fmt.Errorf("failed to connect to etcd: %w", err)
	}

	store := NewEtcdStore(client, cfg.Prefix)
	store.ownsClient = true
	return store, nil
}

// NewEtcdStore 基于已有客户端创建计数器，调用方负责关闭 client
func NewEtcdStore(client *clientv3.Client, prefix string) *EtcdStore {
	if prefix == "" {
		prefix = DefaultEtcdPrefix
	}
	return &EtcdStore{client: client, prefix: strings.TrimSuffix(prefix, "/")}
}

func (s *EtcdStore) valueKey(key string) string { return path.Join(s.prefix, key, "value") }
func (s *EtcdStore) stepKey(key string) string  { return path.Join(s.prefix, key, "step") }

// checkKey 序列名直接作为路径的一段，不允许跨段或跳出 prefix
func checkKey(key string) error {
	if key == "" || key == "." || key == ".." || strings.Contains(key, "/") {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}

// Load 实现 Store
func (s *EtcdStore) Load(ctx context.Context, key string) (Row, error) {
	if err := checkKey(key); err != nil {
		return Row{}, err
	}
	resp, err := s.client.Get(ctx, path.Join(s.prefix, key)+"/", clientv3.WithPrefix())
	if err != nil {
		return Row{}, err
	}

	row := Row{Key: key}
	var haveValue, haveStep bool
	for _, kv := range resp.Kvs {
		k := string(kv.Key)
		if k != s.valueKey(key) && k != s.stepKey(key) {
			continue
		}
		n, err := strconv.ParseInt(string(kv.Value), 10, 64)
		if err != nil {
			return Row{}, fmt.Errorf("malformed counter %q: %w", k, err)
		}
		if k == s.valueKey(key) {
			row.Value, haveValue = n, true
		} else {
			row.Step, haveStep = n, true
		}
	}
	if !haveValue || !haveStep {
		return Row{}, ErrNotFound
	}
	return row, nil
}

// CompareAndSwap 实现 Store
func (s *EtcdStore) CompareAndSwap(ctx context.Context, key string, oldValue, newValue int64) (bool, error) {
	if err := checkKey(key); err != nil {
		return false, err
	}
	vk := s.valueKey(key)
	resp, err := s.client.Txn(ctx).
		If(clientv3.Compare(clientv3.Value(vk), "=", strconv.FormatInt(oldValue, 10))).
		Then(clientv3.OpPut(vk, strconv.FormatInt(newValue, 10))).
		Commit()
	if err != nil {
		return false, err
	}
	return resp.Succeeded, nil
}

// Provision 写入一行初始记录
func (s *EtcdStore) Provision(ctx context.Context, row Row) error {
	if err := checkKey(row.Key); err != nil {
		return err
	}
	_, err := s.client.Txn(ctx).
		Then(
			clientv3.OpPut(s.valueKey(row.Key), strconv.FormatInt(row.Value, 10)),
			clientv3.OpPut(s.stepKey(row.Key), strconv.FormatInt(row.Step, 10)),
		).
		Commit()
	if err != nil {
		return fmt.Errorf("failed to provision %q: %w", row.Key, err)
	}
	return nil
}

// Close 实现 Store，仅关闭由 OpenEtcd 创建的客户端
func (s *EtcdStore) Close() error {
	if !s.ownsClient {
		return nil
	}
	return s.client.Close()
}
