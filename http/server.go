// Package http 提供HTTP服务器功能
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Server HTTP服务器
type Server struct {
	server *http.Server
	config ServerConfig
	logger *zap.Logger
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Port           int
	Timeout        time.Duration
	AllowedOrigins []string
	MaxBodyBytes   int64
	RateLimitRPS   float64
	RateLimitBurst int
}

// DefaultServerConfig 默认服务器配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Port:           8080,
		Timeout:        30 * time.Second,
		AllowedOrigins: []string{"*"},
		MaxBodyBytes:   1 << 20,
		RateLimitRPS:   50,
		RateLimitBurst: 100,
	}
}

// NewHandler 构建带中间件链的路由
func NewHandler(config ServerConfig, handlers *Handlers, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if handlers.Logger == nil {
		handlers.Logger = logger
	}

	mux := http.NewServeMux()
	handlers.Register(mux)

	// 创建中间件链
	chain := Chain(
		// 1. 恢复中间件（最先执行，捕获panic）
		RecoveryMiddleware(logger),
		// 2. 日志中间件
		LoggerMiddleware(logger),
		// 3. 指标中间件
		MetricsMiddleware(handlers.Metrics),
		// 4. 安全头中间件
		SecurityHeadersMiddleware,
		// 5. CORS中间件
		CORSMiddleware(config.AllowedOrigins),
		// 6. 请求大小限制
		RequestSizeMiddleware(config.MaxBodyBytes),
		// 7. 限流
		RateLimitMiddleware(config.RateLimitRPS, config.RateLimitBurst),
		// 8. 超时中间件
		TimeoutMiddleware(config.Timeout),
	)

	return chain(mux)
}

// NewServer 创建HTTP服务器
func NewServer(config ServerConfig, handlers *Handlers, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", config.Port),
			Handler:           NewHandler(config, handlers, logger),
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		config: config,
		logger: logger,
	}
}

// Start 启动服务器，阻塞直到关闭
func (s *Server) Start() error {
	s.logger.Info("starting http server",
		zap.String("addr", s.server.Addr),
		zap.String("websocket", "/api/ws/model"))

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Stop 停止服务器
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("shutting down http server")

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}

// Addr 返回服务器地址
func (s *Server) Addr() string {
	return s.server.Addr
}
