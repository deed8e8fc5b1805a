package main

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ceyewan/pkseq/clog"
	"github.com/ceyewan/pkseq/uid"
)

// maxBatch 单次批量取号上限
const maxBatch = 1000

// server 将 uid.Provider 暴露为 HTTP 接口
type server struct {
	provider uid.Provider
}

// newRouter 注册路由，gatherer 为 nil 时不暴露 /metrics
func newRouter(provider uid.Provider, gatherer prometheus.Gatherer) *gin.Engine {
	s := &server{provider: provider}

	r := gin.New()
	r.Use(traceMiddleware(), loggingMiddleware(), recoveryMiddleware())

	v1 := r.Group("/v1")
	v1.GET("/ids/:name", s.nextID)
	v1.GET("/ids/:name/batch", s.batchIDs)
	v1.GET("/sequences/:name", s.sequenceStats)

	r.GET("/healthz", s.health)
	if gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}
	return r
}

func (s *server) nextID(c *gin.Context) {
	name := c.Param("name")
	id, err := s.provider.Get(c.Request.Context(), name)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"name": name, "id": id})
}

func (s *server) batchIDs(c *gin.Context) {
	name := c.Param("name")
	count, err := strconv.Atoi(c.DefaultQuery("count", "1"))
	if err != nil || count <= 0 || count > maxBatch {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":  uid.ErrCodeValidation,
			"error": "count must be between 1 and " + strconv.Itoa(maxBatch),
		})
		return
	}

	ids := make([]int64, 0, count)
	for i := 0; i < count; i++ {
		id, err := s.provider.Get(c.Request.Context(), name)
		if err != nil {
			s.fail(c, err)
			return
		}
		ids = append(ids, id)
	}
	c.JSON(http.StatusOK, gin.H{"name": name, "ids": ids})
}

func (s *server) sequenceStats(c *gin.Context) {
	stats, ok := s.provider.Stats(c.Param("name"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "sequence not loaded"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (s *server) health(c *gin.Context) {
	if err := s.provider.Health(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// fail 将 uid 错误码映射为 HTTP 状态码
func (s *server) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	var code uid.ErrorCode

	var uerr *uid.Error
	if errors.As(err, &uerr) {
		code = uerr.Code
		switch code {
		case uid.ErrCodeValidation:
			status = http.StatusBadRequest
		case uid.ErrCodeFatalConfig:
			status = http.StatusNotFound
		case uid.ErrCodeOverflow:
			status = http.StatusConflict
		case uid.ErrCodeStoreAccess, uid.ErrCodeClosed:
			status = http.StatusServiceUnavailable
		}
	}

	_ = c.Error(err)
	c.JSON(status, gin.H{"code": code, "error": err.Error()})
}

// traceMiddleware 读取或生成 X-Trace-ID 并注入请求 context
func traceMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := c.GetHeader("X-Trace-ID")
		if traceID == "" {
			traceID = uuid.NewString()
		}
		c.Request = c.Request.WithContext(clog.WithTraceID(c.Request.Context(), traceID))
		c.Header("X-Trace-ID", traceID)
		c.Next()
	}
}

// loggingMiddleware 记录请求完成日志，失败请求额外记录错误
func loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger := clog.WithContext(c.Request.Context()).Namespace("http")
		status := c.Writer.Status()
		fields := []clog.Field{
			clog.String("method", c.Request.Method),
			clog.String("path", c.FullPath()),
			clog.Int("status", status),
			clog.Duration("latency", time.Since(start)),
		}
		if status >= http.StatusInternalServerError {
			logger.Error("请求失败", append(fields, clog.String("error", c.Errors.String()))...)
			return
		}
		if status >= http.StatusBadRequest {
			logger.Warn("请求异常", append(fields, clog.String("error", c.Errors.String()))...)
			return
		}
		logger.Debug("请求完成", fields...)
	}
}

func recoveryMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				clog.WithContext(c.Request.Context()).Namespace("recovery").Error("请求处理 panic",
					clog.Any("panic", r),
					clog.String("path", c.Request.URL.Path))
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
			}
		}()
		c.Next()
	}
}
