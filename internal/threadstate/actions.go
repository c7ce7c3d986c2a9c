// actions.go — 状态变更动作定义。所有写入都经由这些动作进入 reducer。
package threadstate

// Action 状态变更动作。每种动作是一个带标签的结构体变体。
type Action interface {
	actionName() string
}

// ========================================
// 线程列表
// ========================================

// EnsureThread 确保线程出现在工作区列表中 (幂等)。
type EnsureThread struct {
	WorkspaceID string
	ThreadID    string
	Name        string
	Timestamp   int64
}

// SetThreads 整体替换工作区线程列表。
// PreserveAnchors: 新列表中缺失的激活线程从旧列表重新插入, 保证其行不消失。
type SetThreads struct {
	WorkspaceID     string
	Threads         []ThreadSummary
	SortKey         SortKey
	PreserveAnchors bool
}

// SetThreadListCursor 记录工作区分页游标。"" 表示没有更多数据。
type SetThreadListCursor struct {
	WorkspaceID string
	Cursor      string
}

// SetThreadListLoading 列表刷新加载标志。
type SetThreadListLoading struct {
	WorkspaceID string
	IsLoading   bool
}

// SetThreadListPaging 向后翻页加载标志。
type SetThreadListPaging struct {
	WorkspaceID string
	IsLoading   bool
}

// SetActiveThreadID 设置工作区当前激活线程, "" 表示清除。
type SetActiveThreadID struct {
	WorkspaceID string
	ThreadID    string
}

// RemoveThread 从工作区列表移除线程 (归档)。
type RemoveThread struct {
	WorkspaceID string
	ThreadID    string
}

// SetThreadName 更新线程显示名。"" 回退为线程 id。
type SetThreadName struct {
	WorkspaceID string
	ThreadID    string
	Name        string
}

// SetCustomThreadName 记录用户自定义名, 覆盖服务端 preview。
type SetCustomThreadName struct {
	WorkspaceID string
	ThreadID    string
	Name        string
}

// SetThreadPinned 置顶/取消置顶。Timestamp==0 表示取消。
type SetThreadPinned struct {
	WorkspaceID string
	ThreadID    string
	Timestamp   int64
}

// SetThreadHidden 隐藏后台线程。
type SetThreadHidden struct {
	ThreadID string
	Hidden   bool
}

// ========================================
// 会话条目
// ========================================

// SetThreadItems 整体替换线程条目。
type SetThreadItems struct {
	ThreadID string
	Items    []ConversationItem
}

// UpsertThreadItem 按 id 插入或替换单条条目。
type UpsertThreadItem struct {
	ThreadID string
	Item     ConversationItem
}

// AppendItemText 流式 delta 追加到条目文本, 条目缺失时创建。
type AppendItemText struct {
	ThreadID string
	ItemID   string
	Kind     ItemKind
	Role     string
	Delta    string
}

// AppendItemOutput 命令/文件变更输出 delta 追加。
type AppendItemOutput struct {
	ThreadID string
	ItemID   string
	Delta    string
}

// ========================================
// 运行状态
// ========================================

// MarkProcessing 标记 turn 进行中/结束。结束时由 reducer 记录耗时。
type MarkProcessing struct {
	ThreadID     string
	IsProcessing bool
	Timestamp    int64
}

// SetActiveTurnID 当前 turn id, "" 表示无。
type SetActiveTurnID struct {
	ThreadID string
	TurnID   string
}

// MarkReviewing 审查模式标记。
type MarkReviewing struct {
	ThreadID    string
	IsReviewing bool
}

// MarkUnread 未读标记。
type MarkUnread struct {
	ThreadID  string
	HasUnread bool
}

// SetThreadResumeLoading 恢复加载标志。
type SetThreadResumeLoading struct {
	ThreadID  string
	IsLoading bool
}

// SetLastAgentMessage 最近 assistant 消息。
type SetLastAgentMessage struct {
	ThreadID  string
	Text      string
	Timestamp int64
}

// ========================================
// 计划 / diff / 用量
// ========================================

// SetPlan 整体替换线程计划, nil 表示清除。
type SetPlan struct {
	ThreadID string
	Plan     *PlanState
}

// SetTurnDiff 最新 turn diff。
type SetTurnDiff struct {
	ThreadID string
	Diff     string
}

// SetTokenUsage token 用量快照。
type SetTokenUsage struct {
	ThreadID string
	Usage    map[string]any
}

// SetRateLimits 账号限额快照。
type SetRateLimits struct {
	WorkspaceID string
	Limits      map[string]any
}

// ========================================
// 发送队列
// ========================================

// EnqueueMessage 排队一条待发送消息。
type EnqueueMessage struct {
	ThreadID string
	Entry    QueueEntry
}

// DequeueMessage 按 id 摘除队首消息。
type DequeueMessage struct {
	ThreadID string
	EntryID  string
}

// ClearQueue 清空线程队列。
type ClearQueue struct {
	ThreadID string
}

func (EnsureThread) actionName() string           { return "ensureThread" }
func (SetThreads) actionName() string             { return "setThreads" }
func (SetThreadListCursor) actionName() string    { return "setThreadListCursor" }
func (SetThreadListLoading) actionName() string   { return "setThreadListLoading" }
func (SetThreadListPaging) actionName() string    { return "setThreadListPaging" }
func (SetActiveThreadID) actionName() string      { return "setActiveThreadId" }
func (RemoveThread) actionName() string           { return "removeThread" }
func (SetThreadName) actionName() string          { return "setThreadName" }
func (SetCustomThreadName) actionName() string    { return "setCustomThreadName" }
func (SetThreadPinned) actionName() string        { return "setThreadPinned" }
func (SetThreadHidden) actionName() string        { return "setThreadHidden" }
func (SetThreadItems) actionName() string         { return "setThreadItems" }
func (UpsertThreadItem) actionName() string       { return "upsertThreadItem" }
func (AppendItemText) actionName() string         { return "appendItemText" }
func (AppendItemOutput) actionName() string       { return "appendItemOutput" }
func (MarkProcessing) actionName() string         { return "markProcessing" }
func (SetActiveTurnID) actionName() string        { return "setActiveTurnId" }
func (MarkReviewing) actionName() string          { return "markReviewing" }
func (MarkUnread) actionName() string             { return "markUnread" }
func (SetThreadResumeLoading) actionName() string { return "setThreadResumeLoading" }
func (SetLastAgentMessage) actionName() string    { return "setLastAgentMessage" }
func (SetPlan) actionName() string                { return "setPlan" }
func (SetTurnDiff) actionName() string            { return "setTurnDiff" }
func (SetTokenUsage) actionName() string          { return "setTokenUsage" }
func (SetRateLimits) actionName() string          { return "setRateLimits" }
func (EnqueueMessage) actionName() string         { return "enqueueMessage" }
func (DequeueMessage) actionName() string         { return "dequeueMessage" }
func (ClearQueue) actionName() string             { return "clearQueue" }
