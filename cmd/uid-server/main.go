// Command uid-server 以 HTTP 方式提供号段式主键
//
//	uid-server --config uid.yaml serve --addr :8080
//	uid-server --config uid.yaml provision --key order --value 0 --step 1000
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/urfave/cli/v2"

	"github.com/ceyewan/pkseq/clog"
	"github.com/ceyewan/pkseq/uid"
	"github.com/ceyewan/pkseq/uid/counter"
)

func main() {
	app := &cli.App{
		Name:  "uid-server",
		Usage: "segment allocated primary key service",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "YAML config file, environment variables are used when empty",
				EnvVars: []string{"UID_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "env",
				Value:   "development",
				Usage:   "development or production",
				EnvVars: []string{"APP_ENV"},
			},
			&cli.StringFlag{
				Name:  "env-file",
				Value: ".env",
				Usage: "dotenv file loaded before reading the environment",
			},
		},
		Before: func(c *cli.Context) error {
			// .env 不存在时继续使用系统环境变量
			if err := godotenv.Load(c.String("env-file")); err != nil && !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("load %s: %w", c.String("env-file"), err)
			}
			return clog.Init(c.Context, clog.GetDefaultConfig(c.String("env")), clog.WithNamespace("uid-server"))
		},
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "start the HTTP server",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "addr", Value: ":8080", EnvVars: []string{"UID_ADDR"}},
					&cli.DurationFlag{Name: "shutdown-timeout", Value: 10 * time.Second},
				},
				Action: serve,
			},
			{
				Name:  "provision",
				Usage: "write an initial counter row (bolt and etcd drivers)",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "key", Required: true},
					&cli.Int64Flag{Name: "value"},
					&cli.Int64Flag{Name: "step", Value: 1000},
				},
				Action: provision,
			},
		},
		DefaultCommand: "serve",
	}

	if err := app.Run(os.Args); err != nil {
		clog.Error("uid-server 退出", clog.Err(err))
		_ = clog.Sync()
		os.Exit(1)
	}
}

// loadConfig 读取配置文件或环境变量
func loadConfig(c *cli.Context) (*uid.Config, error) {
	env := c.String("env")
	var (
		cfg *uid.Config
		err error
	)
	if path := c.String("config"); path != "" {
		cfg, err = uid.LoadConfig(path, env)
		if err != nil {
			return nil, err
		}
	} else {
		cfg = uid.GetDefaultConfig(env)
	}
	if cfg.ServiceName == "unknown-service" {
		cfg.ServiceName = "uid-server"
	}
	return cfg, nil
}

func serve(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	provider, err := uid.New(ctx, cfg, uid.WithRegisterer(reg))
	if err != nil {
		return err
	}
	defer provider.Close()

	if c.String("env") == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := &http.Server{
		Addr:              c.String("addr"),
		Handler:           newRouter(provider, reg),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		clog.Info("HTTP 服务启动", clog.String("addr", srv.Addr), clog.String("driver", cfg.Driver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	clog.Info("收到退出信号，开始关闭")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), c.Duration("shutdown-timeout"))
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return nil
}

func provision(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	row := counter.Row{Key: c.String("key"), Value: c.Int64("value"), Step: c.Int64("step")}
	if err := provisionRow(c.Context, cfg, row); err != nil {
		return err
	}
	clog.Info("计数行已写入",
		clog.String("driver", cfg.Driver),
		clog.String("key", row.Key),
		clog.Int64("value", row.Value),
		clog.Int64("step", row.Step))
	return nil
}

// provisionRow 向持久化计数器写入一行
// memory 驱动的数据随进程退出丢失，写入没有意义
func provisionRow(ctx context.Context, cfg *uid.Config, row counter.Row) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.Driver == uid.DriverMemory {
		return fmt.Errorf("driver %s keeps rows in process memory, use seeds instead", cfg.Driver)
	}
	if row.Step <= 0 {
		return fmt.Errorf("step must be positive, got %d", row.Step)
	}

	store, err := uid.OpenStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	p, ok := store.(counter.Provisioner)
	if !ok {
		return fmt.Errorf("driver %s does not support provisioning, insert the row with SQL", cfg.Driver)
	}
	return p.Provision(ctx, row)
}
