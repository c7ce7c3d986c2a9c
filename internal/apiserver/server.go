// Package apiserver 提供本地调试 HTTP 服务:
// 状态快照、线程行、事件尾巴与 Prometheus 抓取端点。
// 只监听回环地址, 不做鉴权。
package apiserver

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/codex-monitor/go-monitor/internal/engine"
	"github.com/codex-monitor/go-monitor/internal/events"
	"github.com/codex-monitor/go-monitor/pkg/logger"
	"github.com/codex-monitor/go-monitor/pkg/util"
)

// Server 调试 HTTP 服务。
type Server struct {
	router  *gin.Engine
	eng     *engine.Engine
	metrics *Metrics
	tail    *Tail
	srv     *http.Server
}

// NewServer 创建调试服务。
func NewServer(eng *engine.Engine, metrics *Metrics, tailSize int) *Server {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	s := &Server{router: r, eng: eng, metrics: metrics, tail: NewTail(tailSize)}
	s.registerRoutes()
	return s
}

// Engine 返回 Gin 引擎, 测试直接打它。
func (s *Server) Engine() *gin.Engine { return s.router }

// RecordEvent 接到事件路由器的原始钩子上, 喂事件尾巴。
func (s *Server) RecordEvent(msg events.Message) {
	s.tail.Append("event", msg.WorkspaceID, msg.Method, map[string]any(msg.Params))
}

// RecordDebug 接到引擎的调试通道上。
func (s *Server) RecordDebug(entry engine.DebugEntry) {
	s.tail.Append(entry.Source, "", entry.Label, entry.Payload)
}

func (s *Server) registerRoutes() {
	api := s.router.Group("/api")

	api.GET("/workspaces", s.listWorkspaces)
	api.GET("/threads", s.listThreadRows)
	api.GET("/threads/:id/items", s.listThreadItems)
	api.GET("/threads/:id/queue", s.listThreadQueue)
	api.GET("/threads/:id/plan", s.getThreadPlan)
	api.POST("/threads/:id/collapse", s.setThreadCollapsed)
	api.GET("/state", s.stateSnapshot)
	api.GET("/events", s.listTail)
	api.POST("/refresh", s.refreshAll)

	if s.metrics != nil {
		s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}
	s.router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"healthy": true})
	})
}

// Run 启动监听, 阻塞到 ctx 取消或监听失败。
func (s *Server) Run(ctx context.Context, addr string) error {
	s.srv = &http.Server{Addr: addr, Handler: s.router}
	errCh := make(chan error, 1)
	util.SafeGo(func() {
		errCh <- s.srv.ListenAndServe()
	})
	logger.Info("调试服务已启动", logger.FieldAddr, addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		return s.srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

// ========================================
// Handlers
// ========================================

func (s *Server) listWorkspaces(c *gin.Context) {
	success(c, s.eng.Workspaces())
}

func (s *Server) listThreadRows(c *gin.Context) {
	workspaceID := c.Query("workspace_id")
	if workspaceID == "" {
		badRequest(c, "invalid_request", "workspace_id is required")
		return
	}
	success(c, s.eng.ThreadRows(workspaceID))
}

func (s *Server) listThreadItems(c *gin.Context) {
	success(c, s.eng.State().Items(c.Param("id")))
}

func (s *Server) listThreadQueue(c *gin.Context) {
	success(c, s.eng.State().Queue(c.Param("id")))
}

func (s *Server) getThreadPlan(c *gin.Context) {
	success(c, s.eng.State().Plan(c.Param("id")))
}

func (s *Server) setThreadCollapsed(c *gin.Context) {
	var req struct {
		Collapsed bool `json:"collapsed"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid_request", err.Error())
		return
	}
	s.eng.SetThreadCollapsed(c.Param("id"), req.Collapsed)
	success(c, gin.H{"collapsed": req.Collapsed})
}

func (s *Server) stateSnapshot(c *gin.Context) {
	success(c, s.eng.State().Snapshot())
}

func (s *Server) listTail(c *gin.Context) {
	success(c, s.tail.List())
}

func (s *Server) refreshAll(c *gin.Context) {
	if err := s.eng.RefreshAllWorkspaces(c.Request.Context(), engine.ListOptions{}); err != nil {
		serverError(c, err)
		return
	}
	success(c, gin.H{"refreshed": true})
}
