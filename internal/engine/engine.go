// engine.go — 同步引擎装配。
// 引擎把事件路由、线程状态、层级追踪、持久化和 app-server 调用拼在一起,
// 所有业务决策 (恢复、翻页、排队、归档传播、审查链接) 都在本包。
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/codex-monitor/go-monitor/internal/appserver"
	"github.com/codex-monitor/go-monitor/internal/config"
	"github.com/codex-monitor/go-monitor/internal/events"
	"github.com/codex-monitor/go-monitor/internal/hierarchy"
	"github.com/codex-monitor/go-monitor/internal/store"
	"github.com/codex-monitor/go-monitor/internal/threadstate"
	"github.com/codex-monitor/go-monitor/pkg/logger"
)

// pendingTurnID 打断时还不知道真实 turn id 的占位值。
// turn/started 到达后会用真实 id 重发打断。
const pendingTurnID = "pending"

// Workspace 受监控的工作区。
type Workspace struct {
	ID   string
	Name string
	Path string
}

// RPC 引擎依赖的 app-server 调用面, 由 appserver.Client 实现。
type RPC interface {
	StartThread(ctx context.Context, workspaceID, cwd string) (string, error)
	ForkThread(ctx context.Context, workspaceID, threadID string) (string, error)
	ResumeThread(ctx context.Context, workspaceID, threadID string) (events.Params, error)
	ListThreads(ctx context.Context, workspaceID string, cursor *string, limit int, sortKey string) (appserver.ListThreadsPage, error)
	ArchiveThread(ctx context.Context, workspaceID, threadID string) error
	UnarchiveThread(ctx context.Context, workspaceID, threadID string) error
	SetThreadName(ctx context.Context, workspaceID, threadID, name string) error
	SendUserMessage(ctx context.Context, workspaceID, threadID, text string, images []string) (string, error)
	SteerTurn(ctx context.Context, workspaceID, threadID, turnID, text string, images []string) error
	InterruptTurn(ctx context.Context, workspaceID, threadID, turnID string) error
	StartReview(ctx context.Context, workspaceID, threadID string, opts appserver.ReviewOptions) (string, error)
}

// ThreadMetadata 从快照/列表行里探测到的模型配置。
type ThreadMetadata struct {
	ModelID         string
	ReasoningEffort string
}

// DebugEntry 引擎调试通道的一条记录。
type DebugEntry struct {
	Source  string
	Label   string
	Payload any
}

// Engine 线程/turn 同步引擎。
type Engine struct {
	cfg     *config.Config
	rpc     RPC
	state   *threadstate.Store
	hier    *hierarchy.Tracker
	persist *store.Store

	workspacesMu sync.RWMutex
	workspaces   []Workspace

	mu                sync.Mutex
	loadedThreads     map[string]bool
	resumeRefs        map[string]int
	pendingInterrupts map[string]bool
	reviewNotified    map[string]bool // 审查线程 id -> 完成通知已发
	archiveRequested  map[string]bool // 归档传播去重
	collapsed         map[string]bool // 展示行折叠状态
	activity          map[string]map[string]int64

	// 可选回调, 不设置时静默。
	OnMetadata func(workspaceID, threadID string, meta ThreadMetadata)
	OnSubagent func(workspaceID, threadID string)
	OnDebug    func(entry DebugEntry)

	now func() int64 // Unix 毫秒, 测试可替换
}

// New 创建引擎。workspaces 是监控的全部工作区。
func New(cfg *config.Config, rpc RPC, state *threadstate.Store, persist *store.Store, workspaces []Workspace) *Engine {
	return &Engine{
		cfg:               cfg,
		rpc:               rpc,
		state:             state,
		hier:              hierarchy.NewTracker(),
		persist:           persist,
		workspaces:        workspaces,
		loadedThreads:     map[string]bool{},
		resumeRefs:        map[string]int{},
		pendingInterrupts: map[string]bool{},
		reviewNotified:    map[string]bool{},
		archiveRequested:  map[string]bool{},
		collapsed:         map[string]bool{},
		activity:          map[string]map[string]int64{},
		now:               func() int64 { return time.Now().UnixMilli() },
	}
}

// State 只读访问状态容器。
func (e *Engine) State() *threadstate.Store { return e.state }

// Hierarchy 只读访问层级表。
func (e *Engine) Hierarchy() *hierarchy.Tracker { return e.hier }

// Workspaces 当前工作区集合副本。
func (e *Engine) Workspaces() []Workspace {
	e.workspacesMu.RLock()
	defer e.workspacesMu.RUnlock()
	return append([]Workspace(nil), e.workspaces...)
}

// SetWorkspaces 替换工作区集合 (配置热更新)。
func (e *Engine) SetWorkspaces(ws []Workspace) {
	e.workspacesMu.Lock()
	e.workspaces = append([]Workspace(nil), ws...)
	e.workspacesMu.Unlock()
}

func (e *Engine) workspaceByID(id string) (Workspace, bool) {
	e.workspacesMu.RLock()
	defer e.workspacesMu.RUnlock()
	for _, ws := range e.workspaces {
		if ws.ID == id {
			return ws, true
		}
	}
	return Workspace{}, false
}

// Restore 进程启动时从持久化恢复链接、自定义名、置顶与活动表。
func (e *Engine) Restore(ctx context.Context) error {
	links, err := e.persist.LoadReviewLinks(ctx)
	if err != nil {
		return err
	}
	for _, l := range links {
		e.hier.Register(l.ReviewThreadID, l.ParentThreadID, hierarchy.KindDetachedReview)
	}

	names, err := e.persist.LoadCustomNames(ctx)
	if err != nil {
		return err
	}
	for key, name := range names {
		ws, thread, ok := splitScopedKey(key)
		if !ok {
			continue
		}
		e.state.Dispatch(threadstate.SetCustomThreadName{WorkspaceID: ws, ThreadID: thread, Name: name})
	}

	pins, err := e.persist.LoadThreadPins(ctx)
	if err != nil {
		return err
	}
	for key, ts := range pins {
		ws, thread, ok := splitScopedKey(key)
		if !ok {
			continue
		}
		e.state.Dispatch(threadstate.SetThreadPinned{WorkspaceID: ws, ThreadID: thread, Timestamp: ts})
	}

	activity, err := e.persist.LoadThreadActivity(ctx)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.activity = activity
	e.mu.Unlock()

	logger.Info("引擎状态已恢复",
		logger.FieldComponent, "engine",
		"links", len(links),
		"names", len(names),
		"pins", len(pins),
	)
	return nil
}

// debug 往调试通道发一条记录。
func (e *Engine) debug(source, label string, payload any) {
	if e.OnDebug != nil {
		e.OnDebug(DebugEntry{Source: source, Label: label, Payload: payload})
	}
	logger.Debug(label, logger.FieldComponent, "engine", "source", source)
}

// markLoaded 线程快照已拉取。
func (e *Engine) markLoaded(threadID string) {
	e.mu.Lock()
	e.loadedThreads[threadID] = true
	e.mu.Unlock()
}

func (e *Engine) isLoaded(threadID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loadedThreads[threadID]
}

func splitScopedKey(key string) (workspaceID, threadID string, ok bool) {
	for i := 0; i < len(key); i++ {
		if key[i] == '|' {
			return key[:i], key[i+1:], key[:i] != "" && key[i+1:] != ""
		}
	}
	return "", "", false
}
