package uid

import (
	"context"
	"strings"

	"github.com/ceyewan/pkseq/uid/counter"
	"github.com/ceyewan/pkseq/uid/internal"
)

// OpenStore 按配置中的驱动建立计数器连接
func OpenStore(ctx context.Context, config *Config) (counter.Store, error) {
	var (
		store counter.Store
		err   error
	)

	switch config.Driver {
	case DriverPostgres, DriverMySQL:
		store, err = counter.OpenSQL(ctx, counter.SQLConfig{
			Driver:   config.Driver,
			URL:      config.URL,
			Username: config.Username,
			Password: config.Password,
			Schema:   config.schema(),
		})
	case DriverEtcd:
		store, err = counter.OpenEtcd(ctx, counter.EtcdConfig{
			Endpoints: splitEndpoints(config.URL),
			Username:  config.Username,
			Password:  config.Password,
			Prefix:    "/" + config.tableName(),
		})
	case DriverBolt:
		store, err = counter.OpenBolt(config.URL, config.tableName())
	case DriverMemory:
		store = counter.NewMemoryStore(config.Seeds...)
	default:
		return nil, internal.NewError(internal.ErrCodeValidation, "不支持的计数器驱动: "+config.Driver, nil)
	}

	if err != nil {
		return nil, internal.NewError(internal.ErrCodeStoreAccess, "连接计数器失败", err)
	}
	return store, nil
}

// splitEndpoints 解析逗号分隔的 etcd 地址，允许带 etcd:// 前缀
func splitEndpoints(url string) []string {
	var endpoints []string
	for _, ep := range strings.Split(url, ",") {
		ep = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(ep), "etcd://"))
		if ep != "" {
			endpoints = append(endpoints, ep)
		}
	}
	return endpoints
}
