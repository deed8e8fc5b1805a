package counter

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"slices"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// 默认表结构，与存量 pk_sequence 表保持一致
const (
	DefaultTable       = "pk_sequence"
	DefaultKeyColumn   = "k"
	DefaultValueColumn = "v"
	DefaultStepColumn  = "step"
)

// 表名与列名无法参数化绑定，只允许普通标识符（可带一级 schema 前缀）
var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// Schema 计数表结构
type Schema struct {
	Table       string `json:"table" yaml:"table"`
	KeyColumn   string `json:"keyColumn" yaml:"keyColumn"`
	ValueColumn string `json:"valueColumn" yaml:"valueColumn"`
	StepColumn  string `json:"stepColumn" yaml:"stepColumn"`
}

// DefaultSchema 返回默认表结构
func DefaultSchema() Schema {
	return Schema{
		Table:       DefaultTable,
		KeyColumn:   DefaultKeyColumn,
		ValueColumn: DefaultValueColumn,
		StepColumn:  DefaultStepColumn,
	}
}

// withDefaults 为空字段填充默认值
func (s Schema) withDefaults() Schema {
	d := DefaultSchema()
	if s.Table == "" {
		s.Table = d.Table
	}
	if s.KeyColumn == "" {
		s.KeyColumn = d.KeyColumn
	}
	if s.ValueColumn == "" {
		s.ValueColumn = d.ValueColumn
	}
	if s.StepColumn == "" {
		s.StepColumn = d.StepColumn
	}
	return s
}

// Validate 校验表名与列名
func (s Schema) Validate() error {
	s = s.withDefaults()
	for _, ident := range []string{s.Table, s.KeyColumn, s.ValueColumn, s.StepColumn} {
		if !identifierPattern.MatchString(ident) {
			return fmt.Errorf("invalid sql identifier %q", ident)
		}
	}
	return nil
}

// SQLConfig 关系型数据库计数器配置
type SQLConfig struct {
	Driver   string
	URL      string
	Username string
	Password string
	Schema   Schema
}

// SQLStore 基于关系型数据库的计数器
// 条件更新的受影响行数是抢占成功的唯一信号
type SQLStore struct {
	db         *sqlx.DB
	loadQuery  string
	swapQuery  string
	ownsHandle bool
}

var _ Store = (*SQLStore)(nil)

type counterRow struct {
	Value int64 `db:"value"`
	Step  int64 `db:"step"`
}

// SupportedSQLDrivers 返回当前已注册的 database/sql 驱动
func SupportedSQLDrivers() []string {
	return sql.Drivers()
}

// OpenSQL 建立连接并创建计数器
func OpenSQL(ctx context.Context, cfg SQLConfig) (*SQLStore, error) {
	if cfg.Driver == "" {
		return nil, errors.New("sql driver cannot be empty")
	}
	if !slices.Contains(sql.Drivers(), cfg.Driver) {
		return nil, fmt.Errorf("sql driver %q is not registered", cfg.Driver)
	}
	if err := cfg.Schema.Validate(); err != nil {
		return nil, err
	}

	dsn, err := withCredentials(cfg.Driver, cfg.URL, cfg.Username, cfg.Password)
	if err != nil {
		return nil, err
	}

	db, err := sqlx.ConnectContext(ctx, cfg.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", cfg.Driver, err)
	}

	store, err := NewSQLStore(db, cfg.Schema)
	if err != nil {
		db.Close()
		return nil, err
	}
	store.ownsHandle = true
	return store, nil
}

// NewSQLStore 基于已有连接创建计数器，调用方负责关闭 db
func NewSQLStore(db *sqlx.DB, schema Schema) (*SQLStore, error) {
	if db == nil {
		return nil, errors.New("database handle cannot be nil")
	}
	if err := schema.Validate(); err != nil {
		return nil, err
	}
	schema = schema.withDefaults()

	load := fmt.Sprintf("SELECT %s AS value, %s AS step FROM %s WHERE %s = ?",
		schema.ValueColumn, schema.StepColumn, schema.Table, schema.KeyColumn)
	swap := fmt.Sprintf("UPDATE %s SET %s = ? WHERE %s = ? AND %s = ?",
		schema.Table, schema.ValueColumn, schema.KeyColumn, schema.ValueColumn)

	return &SQLStore{
		db:        db,
		loadQuery: db.Rebind(load),
		swapQuery: db.Rebind(swap),
	}, nil
}

// Load 实现 Store
func (s *SQLStore) Load(ctx context.Context, key string) (Row, error) {
	var r counterRow
	if err := s.db.GetContext(ctx, &r, s.loadQuery, key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Row{}, ErrNotFound
		}
		return Row{}, err
	}
	return Row{Key: key, Value: r.Value, Step: r.Step}, nil
}

// CompareAndSwap 实现 Store
func (s *SQLStore) CompareAndSwap(ctx context.Context, key string, oldValue, newValue int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, s.swapQuery, newValue, key, oldValue)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n != 0, nil
}

// Ping 检查数据库连通性
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close 实现 Store，仅关闭由 OpenSQL 创建的连接
func (s *SQLStore) Close() error {
	if !s.ownsHandle {
		return nil
	}
	return s.db.Close()
}

// withCredentials 将独立配置的用户名密码合并进连接串
func withCredentials(driver, dsn, username, password string) (string, error) {
	if username == "" && password == "" {
		return dsn, nil
	}

	switch driver {
	case "mysql":
		cfg, err := mysql.ParseDSN(dsn)
		if err != nil {
			return "", fmt.Errorf("parse mysql dsn: %w", err)
		}
		cfg.User = username
		cfg.Passwd = password
		return cfg.FormatDSN(), nil
	case "postgres":
		if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
			u, err := url.Parse(dsn)
			if err != nil {
				return "", fmt.Errorf("parse postgres url: %w", err)
			}
			u.User = url.UserPassword(username, password)
			return u.String(), nil
		}
		// key=value 形式，后出现的参数覆盖前者
		return fmt.Sprintf("%s user=%s password=%s", dsn, quotePQ(username), quotePQ(password)), nil
	default:
		return dsn, nil
	}
}

func quotePQ(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}
