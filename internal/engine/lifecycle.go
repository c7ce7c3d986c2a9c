// lifecycle.go — 事件处理器装配与 turn 生命周期。
package engine

import (
	"context"
	"fmt"

	"github.com/codex-monitor/go-monitor/internal/events"
	"github.com/codex-monitor/go-monitor/internal/threaditems"
	"github.com/codex-monitor/go-monitor/internal/threadstate"
	"github.com/codex-monitor/go-monitor/pkg/logger"
	"github.com/codex-monitor/go-monitor/pkg/util"
)

// Handlers 构建接到事件路由器上的处理器集合。
// ctx 贯穿处理器触发的后续 RPC (归档传播、队列放行等)。
func (e *Engine) Handlers(ctx context.Context) *events.Handlers {
	return &events.Handlers{
		OnConnected: func(workspaceID string) {
			util.SafeGo(func() {
				if err := e.RefreshThreads(ctx, workspaceID, ListOptions{PreserveState: true}); err != nil {
					logger.Warn("连接后刷新失败",
						logger.FieldWorkspaceID, workspaceID,
						logger.FieldError, err,
					)
				}
			})
		},
		OnAppListUpdated: func(workspaceID string, params events.Params) {
			e.debug("event", "app/list/updated", workspaceID)
		},
		OnLoginCompleted: func(workspaceID string) {
			e.debug("event", "account/login/completed", workspaceID)
		},
		OnAccountUpdated: func(workspaceID string, params events.Params) {
			e.debug("event", "account/updated", workspaceID)
		},
		OnSkillsUpdateAvailable: func(workspaceID string, params events.Params) {
			e.debug("event", "skills update available", workspaceID)
		},
		OnRateLimitsUpdated: func(workspaceID string, limits events.Params) {
			e.state.Dispatch(threadstate.SetRateLimits{WorkspaceID: workspaceID, Limits: limits})
		},
		OnBackgroundThread: func(workspaceID, threadID, action string) {
			e.state.Dispatch(threadstate.SetThreadHidden{ThreadID: threadID, Hidden: action != "show"})
		},
		OnTurnError: func(workspaceID, threadID, turnID, message string, willRetry bool) {
			e.handleTurnError(threadID, turnID, message, willRetry)
		},

		OnAgentMessageDelta: func(workspaceID, threadID, itemID, delta string) {
			e.state.Dispatch(threadstate.AppendItemText{
				ThreadID: threadID, ItemID: itemID,
				Kind: threadstate.ItemMessage, Role: "assistant", Delta: delta,
			})
		},
		OnReasoningTextDelta: func(workspaceID, threadID, itemID, delta string) {
			e.state.Dispatch(threadstate.AppendItemText{
				ThreadID: threadID, ItemID: itemID,
				Kind: threadstate.ItemReasoning, Delta: delta,
			})
		},
		OnReasoningSummaryTextDelta: func(workspaceID, threadID, itemID, delta string) {
			e.state.Dispatch(threadstate.AppendItemText{
				ThreadID: threadID, ItemID: itemID,
				Kind: threadstate.ItemReasoning, Delta: delta,
			})
		},
		OnReasoningSummaryPartAdded: func(workspaceID, threadID, itemID string) {
			// 新的摘要段落, 用空行隔开。
			e.state.Dispatch(threadstate.AppendItemText{
				ThreadID: threadID, ItemID: itemID,
				Kind: threadstate.ItemReasoning, Delta: "\n\n",
			})
		},
		OnPlanDelta: func(workspaceID, threadID, itemID, delta string) {
			e.state.Dispatch(threadstate.AppendItemText{
				ThreadID: threadID, ItemID: itemID,
				Kind: threadstate.ItemReasoning, Delta: delta,
			})
		},
		OnCommandOutputDelta: func(workspaceID, threadID, itemID, delta string) {
			e.state.Dispatch(threadstate.AppendItemOutput{ThreadID: threadID, ItemID: itemID, Delta: delta})
		},
		OnFileChangeOutputDelta: func(workspaceID, threadID, itemID, delta string) {
			e.state.Dispatch(threadstate.AppendItemOutput{ThreadID: threadID, ItemID: itemID, Delta: delta})
		},
		OnTerminalInteraction: func(workspaceID, threadID, itemID string, params events.Params) {
			e.debug("event", "terminal interaction", itemID)
		},

		OnItemStarted: func(workspaceID, threadID string, item events.Params) {
			e.upsertRawItem(threadID, item)
		},
		OnItemCompleted: func(workspaceID, threadID string, item events.Params) {
			e.handleItemCompleted(workspaceID, threadID, item)
		},
		OnRequestUserInput: func(workspaceID, threadID string, request events.Params, requestID any) {
			// 等待用户输入不结束 turn: 不清激活 turn id, 不放行队列。
			e.debug("event", "tool requestUserInput", threadID)
		},
		OnApprovalRequest: func(req events.ApprovalRequest) {
			e.debug("approval", req.Method, req.WorkspaceID)
		},

		OnThreadStarted: func(workspaceID string, thread events.Params) {
			threadID := thread.TrimmedStr("id")
			if threadID == "" {
				return
			}
			e.registerSourceLinks(workspaceID, threadID, thread.Record("source"))
			if e.hier.IsSubagent(threadID) || thread.Bool("background") {
				// 后台/子代线程不进列表。
				e.state.Dispatch(threadstate.SetThreadHidden{ThreadID: threadID, Hidden: true})
			}
			e.state.Dispatch(threadstate.EnsureThread{
				WorkspaceID: workspaceID,
				ThreadID:    threadID,
				Name:        threaditems.PreviewName(thread),
				Timestamp:   e.now(),
			})
			e.reissuePendingInterruptOnThreadStart(ctx, workspaceID, threadID)
		},
		OnThreadNameUpdated: func(workspaceID, threadID, name string) {
			e.state.Dispatch(threadstate.SetThreadName{WorkspaceID: workspaceID, ThreadID: threadID, Name: name})
		},
		OnThreadStatusChanged: func(workspaceID, threadID string, status events.Params) {
			e.debug("event", "thread/status/changed", status.TrimmedStr("type"))
		},
		OnThreadArchived: func(workspaceID, threadID string) {
			e.handleThreadArchived(ctx, workspaceID, threadID)
		},
		OnThreadUnarchived: func(workspaceID, threadID string) {
			e.state.Dispatch(threadstate.EnsureThread{WorkspaceID: workspaceID, ThreadID: threadID, Timestamp: e.now()})
		},
		OnTokenUsageUpdated: func(workspaceID, threadID string, usage events.Params) {
			e.state.Dispatch(threadstate.SetTokenUsage{ThreadID: threadID, Usage: usage})
		},

		OnTurnStarted: func(workspaceID, threadID, turnID string, turn events.Params) {
			e.handleTurnStarted(ctx, workspaceID, threadID, turnID)
		},
		OnTurnCompleted: func(workspaceID, threadID string, turn events.Params) {
			e.handleTurnCompleted(ctx, workspaceID, threadID)
		},
		OnTurnDiffUpdated: func(workspaceID, threadID, diff string) {
			e.state.Dispatch(threadstate.SetTurnDiff{ThreadID: threadID, Diff: diff})
		},
		OnTurnPlanUpdated: func(workspaceID, threadID string, params events.Params) {
			e.handlePlanUpdated(threadID, params)
		},
	}
}

// ========================================
// turn 生命周期
// ========================================

func (e *Engine) handleTurnStarted(ctx context.Context, workspaceID, threadID, turnID string) {
	e.state.DispatchAll(
		threadstate.MarkProcessing{ThreadID: threadID, IsProcessing: true, Timestamp: e.now()},
		threadstate.SetActiveTurnID{ThreadID: threadID, TurnID: turnID},
	)
	e.recordActivity(workspaceID, threadID, e.now())
	e.reissuePendingInterrupt(ctx, workspaceID, threadID, turnID)
}

// handleTurnError 服务端会自动重试时只记日志; 否则 turn 已死,
// 清处理中标记并在时间线里落一条错误条目。
func (e *Engine) handleTurnError(threadID, turnID, message string, willRetry bool) {
	e.debug("error", "turn error", message)
	if willRetry {
		logger.Warn("turn 出错, 服务端将重试",
			logger.FieldThreadID, threadID,
			logger.FieldError, message,
		)
		return
	}
	itemID := "turn-error-" + turnID
	if turnID == "" {
		itemID = fmt.Sprintf("turn-error-%d", e.now())
	}
	e.state.DispatchAll(
		threadstate.MarkProcessing{ThreadID: threadID, IsProcessing: false, Timestamp: e.now()},
		threadstate.SetActiveTurnID{ThreadID: threadID, TurnID: ""},
		threadstate.UpsertThreadItem{
			ThreadID: threadID,
			Item: threadstate.ConversationItem{
				ID:     itemID,
				Kind:   threadstate.ItemMessage,
				Role:   "assistant",
				Text:   message,
				Status: "error",
			},
		},
	)
}

func (e *Engine) handleTurnCompleted(ctx context.Context, workspaceID, threadID string) {
	e.state.DispatchAll(
		threadstate.MarkProcessing{ThreadID: threadID, IsProcessing: false, Timestamp: e.now()},
		threadstate.SetActiveTurnID{ThreadID: threadID, TurnID: ""},
	)
	e.clearPlanIfDone(threadID)
	e.recordActivity(workspaceID, threadID, e.now())
	e.flushQueue(ctx, workspaceID, threadID)
}

// reissuePendingInterruptOnThreadStart thread/started 也可能先于 turn/started
// 到达; 真正的重发在 handleTurnStarted 里, 这里只记日志。
func (e *Engine) reissuePendingInterruptOnThreadStart(ctx context.Context, workspaceID, threadID string) {
	e.mu.Lock()
	pending := e.pendingInterrupts[threadID]
	e.mu.Unlock()
	if pending {
		logger.Debug("等待 turn/started 以重发打断", logger.FieldThreadID, threadID)
	}
}

// ========================================
// 条目与计划
// ========================================

func (e *Engine) upsertRawItem(threadID string, raw events.Params) {
	if item, ok := threaditems.FromRaw(raw); ok {
		e.state.Dispatch(threadstate.UpsertThreadItem{ThreadID: threadID, Item: item})
	}
}

func (e *Engine) handleItemCompleted(workspaceID, threadID string, raw events.Params) {
	e.registerCollabFromItem(workspaceID, raw)
	e.handleReviewItem(threadID, raw)

	item, ok := threaditems.FromRaw(raw)
	if !ok {
		return
	}
	e.state.Dispatch(threadstate.UpsertThreadItem{ThreadID: threadID, Item: item})

	if item.Kind == threadstate.ItemMessage && item.Role == "assistant" {
		e.state.Dispatch(threadstate.SetLastAgentMessage{ThreadID: threadID, Text: item.Text, Timestamp: e.now()})
		if e.state.ActiveThread(workspaceID) != threadID {
			e.state.Dispatch(threadstate.MarkUnread{ThreadID: threadID, HasUnread: true})
		}
	}
	e.recordActivity(workspaceID, threadID, e.now())
}

// handlePlanUpdated 计划整体替换。空步骤列表等于清除计划。
func (e *Engine) handlePlanUpdated(threadID string, params events.Params) {
	steps := params.Records("plan")
	if len(steps) == 0 {
		e.state.Dispatch(threadstate.SetPlan{ThreadID: threadID, Plan: nil})
		return
	}
	plan := &threadstate.PlanState{
		TurnID:      params.TrimmedStr("turnId"),
		Explanation: params.TrimmedStr("explanation"),
	}
	for _, s := range steps {
		plan.Steps = append(plan.Steps, threadstate.PlanStep{
			Step:   s.Str("step"),
			Status: normalizePlanStatus(s.TrimmedStr("status")),
		})
	}
	e.state.Dispatch(threadstate.SetPlan{ThreadID: threadID, Plan: plan})
}

// clearPlanIfDone turn 完成时只在所有步骤都完成的情况下清计划,
// 未完成的计划跨 turn 保留。
func (e *Engine) clearPlanIfDone(threadID string) {
	plan := e.state.Plan(threadID)
	if plan == nil || len(plan.Steps) == 0 {
		return
	}
	for _, s := range plan.Steps {
		if s.Status != threadstate.PlanStepCompleted {
			return
		}
	}
	e.state.Dispatch(threadstate.SetPlan{ThreadID: threadID, Plan: nil})
}

func normalizePlanStatus(s string) threadstate.PlanStepStatus {
	switch s {
	case "inProgress", "in_progress", "in-progress", "in progress":
		return threadstate.PlanStepInProgress
	case "completed":
		return threadstate.PlanStepCompleted
	}
	return threadstate.PlanStepPending
}

// ========================================
// 归档传播
// ========================================

// handleThreadArchived 线程归档事件: 本地摘除 + 向全部传递子代传播归档。
// 分离式审查线程本身跳过, 但传播继续穿过它。
// 归档调用尽力而为, 单个失败只记调试日志。
func (e *Engine) handleThreadArchived(ctx context.Context, workspaceID, threadID string) {
	e.state.Dispatch(threadstate.RemoveThread{WorkspaceID: workspaceID, ThreadID: threadID})

	targets := e.hier.CascadeArchiveTargets(threadID)
	for _, target := range targets {
		e.mu.Lock()
		requested := e.archiveRequested[target]
		e.archiveRequested[target] = true
		e.mu.Unlock()
		if requested {
			continue
		}
		if err := e.rpc.ArchiveThread(ctx, workspaceID, target); err != nil {
			e.debug("error", "thread/archive error", err.Error())
		}
	}
	if len(targets) > 0 {
		logger.Info("归档已传播",
			logger.FieldThreadID, threadID,
			logger.FieldCount, len(targets),
		)
	}
}
