// store.go — 串行化的状态容器。唯一的写入口是 Dispatch。
package threadstate

import (
	"sync"

	"github.com/codex-monitor/go-monitor/pkg/logger"
)

// Store 持有引擎状态并串行应用动作。
// 读取返回副本, 调用方不得修改返回值以外的共享数据。
type Store struct {
	mu    sync.Mutex
	state *State

	// observer 在每次动作应用后被调用 (持锁), 用于调试与测试。
	observer func(Action)
}

// NewStore 创建空 Store。
func NewStore() *Store {
	return &Store{state: NewState()}
}

// SetObserver 注册动作观察者。必须在并发使用前设置。
func (s *Store) SetObserver(fn func(Action)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observer = fn
}

// Dispatch 应用一个动作。
func (s *Store) Dispatch(action Action) {
	s.mu.Lock()
	defer s.mu.Unlock()
	reduce(s.state, action)
	logger.Debug("state action", logger.FieldAction, action.actionName())
	if s.observer != nil {
		s.observer(action)
	}
}

// DispatchAll 按序应用多个动作, 整体持锁, 外部观察不到中间态。
func (s *Store) DispatchAll(actions ...Action) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, action := range actions {
		reduce(s.state, action)
		if s.observer != nil {
			s.observer(action)
		}
	}
}

// Snapshot 返回状态深拷贝。
func (s *Store) Snapshot() *State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneState(s.state)
}

// Threads 工作区线程列表副本。
func (s *Store) Threads(workspaceID string) []ThreadSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ThreadSummary(nil), s.state.ThreadsByWorkspace[workspaceID]...)
}

// Items 线程条目副本。
func (s *Store) Items(threadID string) []ConversationItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ConversationItem(nil), s.state.ItemsByThread[threadID]...)
}

// Status 线程运行状态。
func (s *Store) Status(threadID string) ThreadStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.StatusByThread[threadID]
}

// ActiveTurn 当前 turn id, 无则 ""。
func (s *Store) ActiveTurn(threadID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.ActiveTurnByThread[threadID]
}

// ActiveThread 工作区激活线程 id, 无则 ""。
func (s *Store) ActiveThread(workspaceID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.ActiveThreadByWorkspace[workspaceID]
}

// Cursor 工作区分页游标。
func (s *Store) Cursor(workspaceID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.CursorByWorkspace[workspaceID]
}

// Queue 线程队列副本。
func (s *Store) Queue(threadID string) []QueueEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]QueueEntry(nil), s.state.QueueByThread[threadID]...)
}

// Plan 线程计划副本, 无则 nil。
func (s *Store) Plan(threadID string) *PlanState {
	s.mu.Lock()
	defer s.mu.Unlock()
	plan := s.state.PlanByThread[threadID]
	if plan == nil {
		return nil
	}
	clone := *plan
	clone.Steps = append([]PlanStep(nil), plan.Steps...)
	return &clone
}

func cloneState(src *State) *State {
	dst := NewState()
	for k, v := range src.ThreadsByWorkspace {
		dst.ThreadsByWorkspace[k] = append([]ThreadSummary(nil), v...)
	}
	for k, v := range src.ActiveThreadByWorkspace {
		dst.ActiveThreadByWorkspace[k] = v
	}
	for k, v := range src.ItemsByThread {
		dst.ItemsByThread[k] = append([]ConversationItem(nil), v...)
	}
	for k, v := range src.StatusByThread {
		dst.StatusByThread[k] = v
	}
	for k, v := range src.ActiveTurnByThread {
		dst.ActiveTurnByThread[k] = v
	}
	for k, v := range src.PlanByThread {
		clone := *v
		clone.Steps = append([]PlanStep(nil), v.Steps...)
		dst.PlanByThread[k] = &clone
	}
	for k, v := range src.DiffByThread {
		dst.DiffByThread[k] = v
	}
	for k, v := range src.TokenUsageByThread {
		usage := make(map[string]any, len(v))
		for uk, uv := range v {
			usage[uk] = uv
		}
		dst.TokenUsageByThread[k] = usage
	}
	for k, v := range src.RateLimitsByWorkspace {
		limits := make(map[string]any, len(v))
		for lk, lv := range v {
			limits[lk] = lv
		}
		dst.RateLimitsByWorkspace[k] = limits
	}
	for k, v := range src.LastAgentMessageByThread {
		dst.LastAgentMessageByThread[k] = v
	}
	for k, v := range src.CursorByWorkspace {
		dst.CursorByWorkspace[k] = v
	}
	for k, v := range src.ListLoadingByWorkspace {
		dst.ListLoadingByWorkspace[k] = v
	}
	for k, v := range src.ListPagingByWorkspace {
		dst.ListPagingByWorkspace[k] = v
	}
	for k, v := range src.ResumeLoadingByThread {
		dst.ResumeLoadingByThread[k] = v
	}
	for k, v := range src.QueueByThread {
		dst.QueueByThread[k] = append([]QueueEntry(nil), v...)
	}
	for k := range src.HiddenThreads {
		dst.HiddenThreads[k] = true
	}
	for k, v := range src.PinnedAtByThread {
		dst.PinnedAtByThread[k] = v
	}
	for k, v := range src.CustomNameByThread {
		dst.CustomNameByThread[k] = v
	}
	return dst
}
