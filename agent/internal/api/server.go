// Package api 代理的本地管理接口
package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/han-fei/perfagent/agent/internal/config"
	"github.com/han-fei/perfagent/agent/internal/queue"
	"github.com/han-fei/perfagent/internal/utils"
)

const (
	routePrefix   = "/_opendistro/_performanceanalyzer"
	maxBodyBytes  = 1 << 20
	shutdownGrace = 5 * time.Second
)

// QueueStats 队列统计来源
type QueueStats interface {
	Stats() queue.Stats
}

// ErrorSource 错误记录来源
type ErrorSource interface {
	GetErrors() []utils.ErrorDetail
}

// Server 管理接口服务
type Server struct {
	addr       string
	overrides  *config.OverridesHolder
	queue      QueueStats
	errors     ErrorSource
	router     *mux.Router
	httpServer *http.Server
}

// NewServer 创建管理接口服务，errors 可以为空
func NewServer(addr string, overrides *config.OverridesHolder, q QueueStats, errs ErrorSource) *Server {
	s := &Server{
		addr:      addr,
		overrides: overrides,
		queue:     q,
		errors:    errs,
		router:    mux.NewRouter(),
	}
	s.registerRoutes()
	return s
}

// registerRoutes 注册路由
func (s *Server) registerRoutes() {
	r := s.router
	r.HandleFunc(routePrefix+"/whoami", s.handleWhoAmI).Methods(http.MethodGet)
	r.HandleFunc(routePrefix+"/override", s.handleGetOverrides).Methods(http.MethodGet)
	r.HandleFunc(routePrefix+"/override", s.handleSetOverrides).Methods(http.MethodPost)
	r.HandleFunc(routePrefix+"/queue", s.handleQueue).Methods(http.MethodGet)
	r.HandleFunc(routePrefix+"/errors", s.handleErrors).Methods(http.MethodGet)

	// Prometheus 指标
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
}

// Handler 路由，测试中直接使用
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run 启动服务直到 ctx 结束
func (s *Server) Run(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zap.S().Infof("管理接口启动，监听地址: %s", s.addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("管理接口启动失败: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("管理接口关闭失败: %w", err)
	}
	return nil
}

func (s *Server) handleWhoAmI(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"whoami": "whoami"})
}

func (s *Server) handleGetOverrides(w http.ResponseWriter, _ *http.Request) {
	current := s.overrides.Load()
	if current == nil {
		current = &config.Overrides{}
	}
	writeJSON(w, http.StatusOK, current)
}

// handleSetOverrides 整体替换开关快照
func (s *Server) handleSetOverrides(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	var next config.Overrides
	if err := json.Unmarshal(body, &next); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid overrides: %w", err))
		return
	}

	s.overrides.Store(&next)
	zap.S().Infof("通过管理接口更新采集器开关: 启用=%v 禁用=%v", next.Enable.Collectors, next.Disable.Collectors)
	writeJSON(w, http.StatusOK, &next)
}

func (s *Server) handleQueue(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.queue.Stats())
}

func (s *Server) handleErrors(w http.ResponseWriter, _ *http.Request) {
	details := []utils.ErrorDetail{}
	if s.errors != nil {
		details = s.errors.GetErrors()
	}
	writeJSON(w, http.StatusOK, details)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.S().Warnf("写出响应失败: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
