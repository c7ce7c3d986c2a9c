// cmd/monitor — 线程同步引擎主入口。
//
// 连接 app-server 的 WebSocket 通道, 把推送事件路由进引擎,
// 本地起一个调试 HTTP 服务暴露状态快照与指标。
package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/codex-monitor/go-monitor/internal/apiserver"
	"github.com/codex-monitor/go-monitor/internal/appserver"
	"github.com/codex-monitor/go-monitor/internal/config"
	"github.com/codex-monitor/go-monitor/internal/engine"
	"github.com/codex-monitor/go-monitor/internal/events"
	"github.com/codex-monitor/go-monitor/internal/store"
	"github.com/codex-monitor/go-monitor/internal/threadstate"
	"github.com/codex-monitor/go-monitor/pkg/logger"
	"github.com/codex-monitor/go-monitor/pkg/util"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	_ = godotenv.Load()
	cfg := config.Load()

	if cfg.LogDir != "" {
		if err := logger.InitWithFile(cfg.LogDir, cfg.LogLevel); err != nil {
			logger.Fatal("日志初始化失败", logger.FieldError, err)
		}
		defer logger.ShutdownFileHandler()
	} else {
		logger.Init(cfg.AppEnv, cfg.LogLevel)
	}

	entries, err := config.LoadWorkspaces(cfg.WorkspacesFile)
	if err != nil {
		logger.Fatal("工作区清单加载失败", logger.FieldError, err)
	}
	workspaces := make([]engine.Workspace, len(entries))
	for i, w := range entries {
		workspaces[i] = engine.Workspace{ID: w.ID, Name: w.Name, Path: w.Path}
	}

	// Postgres 可选, 连不上或未配置时退内存存储。
	var pool *pgxpool.Pool
	if cfg.PostgresConnStr != "" {
		pool, err = pgxpool.New(ctx, cfg.PostgresConnStr)
		if err != nil {
			logger.Fatal("数据库连接失败", logger.FieldError, err)
		}
		defer pool.Close()
	}
	persist := store.New(pool, cfg.PostgresSchema)
	if err := persist.Init(ctx); err != nil {
		logger.Fatal("存储初始化失败", logger.FieldError, err)
	}

	client := appserver.NewClient(cfg.AppServerURL,
		time.Duration(cfg.AppServerCallSecs)*time.Second, cfg.AppServerMaxRetries)
	eng := engine.New(cfg, client, threadstate.NewStore(), persist, workspaces)

	metrics := apiserver.NewMetrics()
	api := apiserver.NewServer(eng, metrics, cfg.DebugAPITail)
	eng.OnDebug = api.RecordDebug

	router := events.NewRouter(metrics)
	router.SetHandlers(eng.Handlers(ctx))
	router.SetRawHook(api.RecordEvent)
	client.SetHandler(router.Dispatch)
	client.SetOnReconnect(func() {
		if err := eng.RefreshAllWorkspaces(ctx, engine.ListOptions{PreserveState: true}); err != nil {
			logger.Warn("重连后刷新失败", logger.FieldError, err)
		}
	})

	if err := eng.Restore(ctx); err != nil {
		logger.Warn("持久化状态恢复失败", logger.FieldError, err)
	}

	if err := client.Connect(ctx); err != nil {
		logger.Fatal("app-server 连接失败", logger.FieldError, err)
	}
	defer client.Close()

	util.SafeGo(func() {
		if err := eng.RefreshAllWorkspaces(ctx, engine.ListOptions{}); err != nil {
			logger.Warn("首次刷新失败", logger.FieldError, err)
		}
	})
	util.SafeGo(func() {
		if err := api.Run(ctx, cfg.DebugAPIAddr); err != nil {
			logger.Error("调试服务退出", logger.FieldError, err)
		}
	})

	logger.Info("monitor 已启动",
		logger.FieldAddr, cfg.DebugAPIAddr,
		logger.FieldCount, len(workspaces),
	)

	<-ctx.Done()
	logger.Info("shutting down")
}
