// router.go — 事件路由器。按方法表把通知分发给各处理器。
// 处理器通过 SetHandlers 显式注入, 路由器自身不持有业务状态。
package events

import (
	"sync"

	"github.com/codex-monitor/go-monitor/pkg/logger"
	"github.com/codex-monitor/go-monitor/pkg/util"
)

// Handlers 路由目标。未设置的字段对应的事件被静默跳过。
type Handlers struct {
	OnAppListUpdated            func(workspaceID string, params Params)
	OnLoginCompleted            func(workspaceID string)
	OnRateLimitsUpdated         func(workspaceID string, limits Params)
	OnAccountUpdated            func(workspaceID string, params Params)
	OnBackgroundThread          func(workspaceID, threadID, action string)
	OnConnected                 func(workspaceID string)
	OnSkillsUpdateAvailable     func(workspaceID string, params Params)
	OnTurnError                 func(workspaceID, threadID, turnID, message string, willRetry bool)
	OnAgentMessageDelta         func(workspaceID, threadID, itemID, delta string)
	OnCommandOutputDelta        func(workspaceID, threadID, itemID, delta string)
	OnTerminalInteraction       func(workspaceID, threadID, itemID string, params Params)
	OnItemStarted               func(workspaceID, threadID string, item Params)
	OnItemCompleted             func(workspaceID, threadID string, item Params)
	OnFileChangeOutputDelta     func(workspaceID, threadID, itemID, delta string)
	OnPlanDelta                 func(workspaceID, threadID, itemID, delta string)
	OnReasoningSummaryPartAdded func(workspaceID, threadID, itemID string)
	OnReasoningSummaryTextDelta func(workspaceID, threadID, itemID, delta string)
	OnReasoningTextDelta        func(workspaceID, threadID, itemID, delta string)
	OnRequestUserInput          func(workspaceID, threadID string, request Params, requestID any)
	OnThreadArchived            func(workspaceID, threadID string)
	OnThreadNameUpdated         func(workspaceID, threadID, name string)
	OnThreadStatusChanged       func(workspaceID, threadID string, status Params)
	OnThreadStarted             func(workspaceID string, thread Params)
	OnTokenUsageUpdated         func(workspaceID, threadID string, usage Params)
	OnThreadUnarchived          func(workspaceID, threadID string)
	OnTurnCompleted             func(workspaceID, threadID string, turn Params)
	OnTurnDiffUpdated           func(workspaceID, threadID, diff string)
	OnTurnPlanUpdated           func(workspaceID, threadID string, params Params)
	OnTurnStarted               func(workspaceID, threadID, turnID string, turn Params)
	OnApprovalRequest           func(req ApprovalRequest)
}

// Metrics 路由计数, 由上层提供实现。
type Metrics interface {
	EventRouted(method string)
	EventDropped(method string)
	ApprovalRouted(method string)
}

type nopMetrics struct{}

func (nopMetrics) EventRouted(string)    {}
func (nopMetrics) EventDropped(string)   {}
func (nopMetrics) ApprovalRouted(string) {}

// Router 把解码后的通知分发到处理器。Dispatch 可在读循环协程上直接调用,
// 处理器内部负责自身的串行化。
type Router struct {
	mu       sync.RWMutex
	handlers *Handlers
	rawHook  func(Message)
	metrics  Metrics
}

// NewRouter 创建路由器。metrics 传 nil 表示不计数。
func NewRouter(metrics Metrics) *Router {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &Router{handlers: &Handlers{}, metrics: metrics}
}

// SetHandlers 整体替换处理器集合。
func (r *Router) SetHandlers(h *Handlers) {
	if h == nil {
		h = &Handlers{}
	}
	r.mu.Lock()
	r.handlers = h
	r.mu.Unlock()
}

// SetRawHook 注册原始事件监听, 在任何具体处理器之前被调用。
func (r *Router) SetRawHook(fn func(Message)) {
	r.mu.Lock()
	r.rawHook = fn
	r.mu.Unlock()
}

// Dispatch 路由一条通知。不支持的方法记 debug 日志后丢弃。
// 处理器 panic 不会炸掉读循环。
func (r *Router) Dispatch(msg Message) {
	r.mu.RLock()
	h := r.handlers
	raw := r.rawHook
	r.mu.RUnlock()

	if raw != nil {
		util.SafeCall("events.rawHook", func() { raw(msg) })
	}

	if IsApprovalMethod(msg.Method) {
		if msg.RequestID == nil {
			r.metrics.EventDropped(msg.Method)
			return
		}
		r.metrics.ApprovalRouted(msg.Method)
		if h.OnApprovalRequest != nil {
			h.OnApprovalRequest(ApprovalRequest{
				WorkspaceID: msg.WorkspaceID,
				RequestID:   msg.RequestID,
				Method:      msg.Method,
				Params:      msg.Params,
			})
		}
		return
	}

	if !IsSupported(msg.Method) {
		r.metrics.EventDropped(msg.Method)
		logger.Debug("未支持的通知方法", logger.FieldMethod, msg.Method, logger.FieldWorkspaceID, msg.WorkspaceID)
		return
	}
	r.metrics.EventRouted(msg.Method)
	r.route(h, msg)
}

func (r *Router) route(h *Handlers, msg Message) {
	ws := msg.WorkspaceID
	p := msg.Params
	threadID := p.TrimmedStr("threadId")
	itemID := p.TrimmedStr("itemId")
	delta := p.Str("delta")

	// turn/* 事件的 threadId 可能嵌在 turn 记录里
	if threadID == "" && (msg.Method == MethodTurnStarted || msg.Method == MethodTurnCompleted) {
		threadID = p.Record("turn").TrimmedStr("threadId")
	}
	// 线程级事件缺少 threadId 时无处安放, 丢弃
	if threadID == "" && threadScoped(msg.Method) {
		r.metrics.EventDropped(msg.Method)
		logger.Debug("缺少 threadId 的通知被丢弃", logger.FieldMethod, msg.Method, logger.FieldWorkspaceID, ws)
		return
	}

	switch msg.Method {
	case MethodAppListUpdated:
		if h.OnAppListUpdated != nil {
			h.OnAppListUpdated(ws, p)
		}
	case MethodLoginCompleted:
		if h.OnLoginCompleted != nil {
			h.OnLoginCompleted(ws)
		}
	case MethodRateLimitsUpdated:
		if h.OnRateLimitsUpdated != nil {
			limits := p.Record("rateLimits")
			if limits == nil {
				limits = p
			}
			h.OnRateLimitsUpdated(ws, limits)
		}
	case MethodAccountUpdated:
		if h.OnAccountUpdated != nil {
			h.OnAccountUpdated(ws, p)
		}
	case MethodBackgroundThread:
		if h.OnBackgroundThread != nil {
			action := p.TrimmedStr("action")
			if action == "" {
				action = "hide"
			}
			h.OnBackgroundThread(ws, threadID, action)
		}
	case MethodConnected:
		if h.OnConnected != nil {
			h.OnConnected(ws)
		}
	case MethodSkillsUpdateAvailable:
		if h.OnSkillsUpdateAvailable != nil {
			h.OnSkillsUpdateAvailable(ws, p)
		}
	case MethodError:
		if h.OnTurnError != nil {
			message := p.Record("error").Str("message")
			if message == "" {
				message = p.Str("message")
			}
			h.OnTurnError(ws, threadID, p.Str("turnId"), message, p.Bool("willRetry"))
		}
	case MethodAgentMessageDelta:
		if h.OnAgentMessageDelta != nil {
			h.OnAgentMessageDelta(ws, threadID, itemID, delta)
		}
	case MethodCommandOutputDelta:
		if h.OnCommandOutputDelta != nil {
			if delta == "" {
				delta = p.Str("chunk")
			}
			h.OnCommandOutputDelta(ws, threadID, itemID, delta)
		}
	case MethodTerminalInteraction:
		if h.OnTerminalInteraction != nil {
			h.OnTerminalInteraction(ws, threadID, itemID, p)
		}
	case MethodItemStarted:
		if h.OnItemStarted != nil {
			h.OnItemStarted(ws, threadID, p.Record("item"))
		}
	case MethodItemCompleted:
		if h.OnItemCompleted != nil {
			h.OnItemCompleted(ws, threadID, p.Record("item"))
		}
	case MethodFileChangeOutputDelta:
		if h.OnFileChangeOutputDelta != nil {
			h.OnFileChangeOutputDelta(ws, threadID, itemID, delta)
		}
	case MethodPlanDelta:
		if h.OnPlanDelta != nil {
			h.OnPlanDelta(ws, threadID, itemID, delta)
		}
	case MethodReasoningSummaryPartAdded:
		if h.OnReasoningSummaryPartAdded != nil {
			h.OnReasoningSummaryPartAdded(ws, threadID, itemID)
		}
	case MethodReasoningSummaryTextDelta:
		if h.OnReasoningSummaryTextDelta != nil {
			h.OnReasoningSummaryTextDelta(ws, threadID, itemID, delta)
		}
	case MethodReasoningTextDelta:
		if h.OnReasoningTextDelta != nil {
			h.OnReasoningTextDelta(ws, threadID, itemID, delta)
		}
	case MethodRequestUserInput:
		if h.OnRequestUserInput != nil {
			h.OnRequestUserInput(ws, threadID, p, msg.RequestID)
		}
	case MethodThreadArchived:
		if h.OnThreadArchived != nil {
			h.OnThreadArchived(ws, threadID)
		}
	case MethodThreadNameUpdated:
		if h.OnThreadNameUpdated != nil {
			h.OnThreadNameUpdated(ws, threadID, p.TrimmedStr("threadName"))
		}
	case MethodThreadStatusChanged:
		if h.OnThreadStatusChanged != nil {
			status := p.Record("status")
			if status == nil {
				status = p
			}
			h.OnThreadStatusChanged(ws, threadID, status)
		}
	case MethodThreadStarted:
		if h.OnThreadStarted != nil {
			thread := p.Record("thread")
			if thread == nil {
				thread = p
			}
			h.OnThreadStarted(ws, thread)
		}
	case MethodTokenUsageUpdated:
		if h.OnTokenUsageUpdated != nil {
			usage := p.Record("tokenUsage")
			if usage == nil {
				usage = p
			}
			h.OnTokenUsageUpdated(ws, threadID, usage)
		}
	case MethodThreadUnarchived:
		if h.OnThreadUnarchived != nil {
			h.OnThreadUnarchived(ws, threadID)
		}
	case MethodTurnCompleted:
		if h.OnTurnCompleted != nil {
			turn := p.Record("turn")
			if turn == nil {
				turn = p
			}
			h.OnTurnCompleted(ws, threadID, turn)
		}
	case MethodTurnDiffUpdated:
		if h.OnTurnDiffUpdated != nil {
			h.OnTurnDiffUpdated(ws, threadID, p.Str("diff"))
		}
	case MethodTurnPlanUpdated:
		if h.OnTurnPlanUpdated != nil {
			h.OnTurnPlanUpdated(ws, threadID, p)
		}
	case MethodTurnStarted:
		if h.OnTurnStarted != nil {
			turn := p.Record("turn")
			turnID := turn.TrimmedStr("id")
			if turnID == "" {
				turnID = p.TrimmedStr("turnId")
			}
			h.OnTurnStarted(ws, threadID, turnID, turn)
		}
	}
}
