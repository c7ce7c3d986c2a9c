// types.go — 会话/线程状态类型定义。
package threadstate

// SortKey 线程列表排序键。
type SortKey string

const (
	SortByUpdatedAt SortKey = "updated_at"
	SortByCreatedAt SortKey = "created_at"
)

// PageStartCursor 分页游标哨兵: 表示"尚未翻页", 请求下一页时按 null 处理。
// 与 "" (没有更多数据) 区分开。
const PageStartCursor = "__page_start__"

// ThreadSummary 线程列表行。时间戳为 Unix 毫秒。
type ThreadSummary struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	UpdatedAt int64  `json:"updatedAt"`
	CreatedAt int64  `json:"createdAt,omitempty"`
}

// ThreadStatus 每线程运行状态, 独立于所属工作区是否激活。
type ThreadStatus struct {
	IsProcessing        bool  `json:"isProcessing"`
	HasUnread           bool  `json:"hasUnread"`
	IsReviewing         bool  `json:"isReviewing"`
	ProcessingStartedAt int64 `json:"processingStartedAt,omitempty"`
	LastDurationMS      int64 `json:"lastDurationMs,omitempty"`
}

// ItemKind 会话条目类型 (tagged variant)。
type ItemKind string

const (
	ItemMessage    ItemKind = "message"
	ItemReasoning  ItemKind = "reasoning"
	ItemToolCall   ItemKind = "toolCall"
	ItemFileChange ItemKind = "fileChange"
	ItemDiff       ItemKind = "diff"
	ItemReview     ItemKind = "review"
	ItemExplore    ItemKind = "explore"
)

// ConversationItem 单条会话条目, 以流式 delta 累积或由快照批量替换。
type ConversationItem struct {
	ID       string   `json:"id"`
	Kind     ItemKind `json:"kind"`
	Role     string   `json:"role,omitempty"` // user | assistant
	Text     string   `json:"text,omitempty"`
	Command  string   `json:"command,omitempty"`
	Output   string   `json:"output,omitempty"`
	Status   string   `json:"status,omitempty"`
	Files    []string `json:"files,omitempty"`
	ExitCode *int     `json:"exitCode,omitempty"`
}

// PlanStepStatus 计划步骤状态。
type PlanStepStatus string

const (
	PlanStepPending    PlanStepStatus = "pending"
	PlanStepInProgress PlanStepStatus = "inProgress"
	PlanStepCompleted  PlanStepStatus = "completed"
)

// PlanStep 计划单步。
type PlanStep struct {
	Step   string         `json:"step"`
	Status PlanStepStatus `json:"status"`
}

// PlanState 每线程计划, 同 turn 或更新的 turn 整体替换。
type PlanState struct {
	TurnID      string     `json:"turnId"`
	Explanation string     `json:"explanation,omitempty"`
	Steps       []PlanStep `json:"steps"`
}

// LastAgentMessage 最近一条 assistant 消息摘要。
type LastAgentMessage struct {
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
}

// SubmitIntent 发送意图。
type SubmitIntent string

const (
	IntentDefault SubmitIntent = "default"
	IntentQueue   SubmitIntent = "queue"
	IntentSteer   SubmitIntent = "steer"
)

// QueueEntry 待发送的排队消息。
type QueueEntry struct {
	ID     string       `json:"id"`
	Text   string       `json:"text"`
	Images []string     `json:"images,omitempty"`
	Intent SubmitIntent `json:"intent,omitempty"`
}

// State 引擎全部可变状态。只能通过 Store.Dispatch 变更。
type State struct {
	ThreadsByWorkspace       map[string][]ThreadSummary
	ActiveThreadByWorkspace  map[string]string
	ItemsByThread            map[string][]ConversationItem
	StatusByThread           map[string]ThreadStatus
	ActiveTurnByThread       map[string]string
	PlanByThread             map[string]*PlanState
	DiffByThread             map[string]string
	TokenUsageByThread       map[string]map[string]any
	RateLimitsByWorkspace    map[string]map[string]any
	LastAgentMessageByThread map[string]LastAgentMessage
	CursorByWorkspace        map[string]string
	ListLoadingByWorkspace   map[string]bool
	ListPagingByWorkspace    map[string]bool
	ResumeLoadingByThread    map[string]bool
	QueueByThread            map[string][]QueueEntry
	HiddenThreads            map[string]bool
	PinnedAtByThread         map[string]int64  // key: workspaceID+"|"+threadID
	CustomNameByThread       map[string]string // key: workspaceID+"|"+threadID
}

// NewState 返回空状态。
func NewState() *State {
	return &State{
		ThreadsByWorkspace:       map[string][]ThreadSummary{},
		ActiveThreadByWorkspace:  map[string]string{},
		ItemsByThread:            map[string][]ConversationItem{},
		StatusByThread:           map[string]ThreadStatus{},
		ActiveTurnByThread:       map[string]string{},
		PlanByThread:             map[string]*PlanState{},
		DiffByThread:             map[string]string{},
		TokenUsageByThread:       map[string]map[string]any{},
		RateLimitsByWorkspace:    map[string]map[string]any{},
		LastAgentMessageByThread: map[string]LastAgentMessage{},
		CursorByWorkspace:        map[string]string{},
		ListLoadingByWorkspace:   map[string]bool{},
		ListPagingByWorkspace:    map[string]bool{},
		ResumeLoadingByThread:    map[string]bool{},
		QueueByThread:            map[string][]QueueEntry{},
		HiddenThreads:            map[string]bool{},
		PinnedAtByThread:         map[string]int64{},
		CustomNameByThread:       map[string]string{},
	}
}

// ScopedKey 组合 workspace+thread 作为 map 键。
func ScopedKey(workspaceID, threadID string) string {
	return workspaceID + "|" + threadID
}
