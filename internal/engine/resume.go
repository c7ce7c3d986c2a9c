// resume.go — 线程快照恢复对账。
//
// 恢复是异步的: RPC 返回后必须重读当时的本地状态再决定怎么落地,
// 不能用发起恢复时捕获的旧状态。本地已有流式条目时只做合并,
// 不用快照回写运行状态 (快照可能已经过期)。
package engine

import (
	"context"

	"github.com/codex-monitor/go-monitor/internal/events"
	"github.com/codex-monitor/go-monitor/internal/hierarchy"
	"github.com/codex-monitor/go-monitor/internal/threaditems"
	"github.com/codex-monitor/go-monitor/internal/threadstate"
	apperrors "github.com/codex-monitor/go-monitor/pkg/errors"
	"github.com/codex-monitor/go-monitor/pkg/logger"
)

// ResumeThread 拉取线程快照并对账到本地状态。
//
//   - force == false 时, 已加载或正在处理的线程直接跳过;
//     本地已有流式条目的线程仍然取快照, 走合并路径补回历史
//   - replace == true 时即使本地有条目也用快照整体重建 (含运行状态)
//
// 并发恢复同一线程时 loading 标志按引用计数维护, 只在最后一个
// 在途恢复结束后才派发 loading=false。
func (e *Engine) ResumeThread(ctx context.Context, workspaceID, threadID string, force, replace bool) error {
	if threadID == "" {
		return apperrors.Wrap(apperrors.ErrNoThread, "Engine.ResumeThread", "empty thread id")
	}
	if !force {
		if e.isLoaded(threadID) {
			return nil
		}
		if e.state.Status(threadID).IsProcessing {
			return nil
		}
	}

	e.beginResume(threadID)
	defer e.endResume(threadID)

	thread, err := e.rpc.ResumeThread(ctx, workspaceID, threadID)
	if err != nil {
		e.debug("error", "thread/resume error", err.Error())
		return apperrors.Wrapf(err, "Engine.ResumeThread", "thread %s", threadID)
	}

	e.registerSourceLinks(workspaceID, threadID, thread.Record("source"))
	e.detectSnapshotMetadata(workspaceID, threadID, thread)
	for _, turn := range thread.Records("turns") {
		for _, item := range turn.Records("items") {
			e.registerCollabFromItem(workspaceID, item)
		}
	}

	items := threaditems.BuildItems(thread)

	// RPC 完成时重读本地状态。
	local := e.state.Items(threadID)
	if len(local) > 0 && !replace {
		merged := threaditems.MergeItems(local, items)
		e.state.Dispatch(threadstate.SetThreadItems{ThreadID: threadID, Items: merged})
		e.markLoaded(threadID)
		logger.Debug("快照合并完成",
			logger.FieldThreadID, threadID,
			logger.FieldCount, len(merged),
		)
		return nil
	}

	e.hydrateFromSnapshot(workspaceID, threadID, thread, items)
	e.markLoaded(threadID)
	return nil
}

// hydrateFromSnapshot 快照整体重建: 条目、审查标记、名字、
// 最近 assistant 消息与 turn 运行状态。
func (e *Engine) hydrateFromSnapshot(workspaceID, threadID string, thread events.Params, items []threadstate.ConversationItem) {
	name := threaditems.PreviewName(thread)
	ts := threaditems.Timestamp(thread)

	actions := []threadstate.Action{
		threadstate.EnsureThread{WorkspaceID: workspaceID, ThreadID: threadID, Name: name, Timestamp: ts},
		threadstate.SetThreadItems{ThreadID: threadID, Items: items},
		threadstate.MarkReviewing{ThreadID: threadID, IsReviewing: threaditems.IsReviewing(thread)},
	}
	if name != "" {
		actions = append(actions, threadstate.SetThreadName{WorkspaceID: workspaceID, ThreadID: threadID, Name: name})
	}
	if text := threaditems.LastAgentText(items); text != "" {
		actions = append(actions, threadstate.SetLastAgentMessage{ThreadID: threadID, Text: text, Timestamp: ts})
	}
	actions = append(actions, e.statusActionsFromTurns(threadID, thread.Records("turns"))...)
	e.state.DispatchAll(actions...)
}

// statusActionsFromTurns 从快照 turn 列表推导运行状态:
//
//   - 末 turn inProgress → 处理中, 激活该 turn
//   - 全部 completed → 空闲
//   - 状态混杂无法判定 → 重新派发此刻的本地状态, 快照不越权
func (e *Engine) statusActionsFromTurns(threadID string, turns []events.Params) []threadstate.Action {
	if len(turns) == 0 {
		return []threadstate.Action{
			threadstate.MarkProcessing{ThreadID: threadID, IsProcessing: false, Timestamp: e.now()},
			threadstate.SetActiveTurnID{ThreadID: threadID, TurnID: ""},
		}
	}

	last := turns[len(turns)-1]
	switch last.TrimmedStr("status") {
	case "inProgress", "in_progress", "in-progress":
		startedAt := last.Int64("startedAt")
		if startedAt == 0 {
			startedAt = e.now()
		}
		return []threadstate.Action{
			threadstate.MarkProcessing{ThreadID: threadID, IsProcessing: true, Timestamp: startedAt},
			threadstate.SetActiveTurnID{ThreadID: threadID, TurnID: last.TrimmedStr("id")},
		}
	}

	allCompleted := true
	for _, turn := range turns {
		if turn.TrimmedStr("status") != "completed" {
			allCompleted = false
			break
		}
	}
	if allCompleted {
		return []threadstate.Action{
			threadstate.MarkProcessing{ThreadID: threadID, IsProcessing: false, Timestamp: e.now()},
			threadstate.SetActiveTurnID{ThreadID: threadID, TurnID: ""},
		}
	}

	// 判定不了就把当前本地状态原样派发回去。
	status := e.state.Status(threadID)
	ts := status.ProcessingStartedAt
	if ts == 0 {
		ts = e.now()
	}
	return []threadstate.Action{
		threadstate.MarkProcessing{ThreadID: threadID, IsProcessing: status.IsProcessing, Timestamp: ts},
		threadstate.SetActiveTurnID{ThreadID: threadID, TurnID: e.state.ActiveTurn(threadID)},
	}
}

func (e *Engine) beginResume(threadID string) {
	e.mu.Lock()
	e.resumeRefs[threadID]++
	first := e.resumeRefs[threadID] == 1
	e.mu.Unlock()
	if first {
		e.state.Dispatch(threadstate.SetThreadResumeLoading{ThreadID: threadID, IsLoading: true})
	}
}

func (e *Engine) endResume(threadID string) {
	e.mu.Lock()
	e.resumeRefs[threadID]--
	last := e.resumeRefs[threadID] <= 0
	if last {
		delete(e.resumeRefs, threadID)
	}
	e.mu.Unlock()
	if last {
		e.state.Dispatch(threadstate.SetThreadResumeLoading{ThreadID: threadID, IsLoading: false})
	}
}

// registerSourceLinks 吸收线程 source 元数据里的层级链接。
func (e *Engine) registerSourceLinks(workspaceID, threadID string, source events.Params) {
	if source == nil || threadID == "" {
		return
	}
	spawn := source.Record("subAgent").Record("threadSpawn")
	if parent := spawn.TrimmedStr("parentThreadId"); parent != "" {
		if e.hier.Register(threadID, parent, hierarchy.KindSubagent) && e.OnSubagent != nil {
			e.OnSubagent(workspaceID, threadID)
		}
	}
	if parent := source.Record("detachedReview").TrimmedStr("parentThreadId"); parent != "" {
		e.hier.Register(threadID, parent, hierarchy.KindDetachedReview)
	}
}

// registerCollabFromItem 协作工具调用条目携带的派生线程链接。
func (e *Engine) registerCollabFromItem(workspaceID string, item events.Params) {
	if item.TrimmedStr("type") != "collabToolCall" {
		return
	}
	sender := item.TrimmedStr("senderThreadId")
	if sender == "" {
		return
	}
	if child := item.TrimmedStr("newThreadId"); child != "" {
		if e.hier.Register(child, sender, hierarchy.KindCollab) && e.OnSubagent != nil {
			e.OnSubagent(workspaceID, child)
		}
	}
	for _, agent := range item.Records("receiverAgents") {
		if child := agent.TrimmedStr("threadId"); child != "" {
			if e.hier.Register(child, sender, hierarchy.KindCollab) && e.OnSubagent != nil {
				e.OnSubagent(workspaceID, child)
			}
		}
	}
}

// detectSnapshotMetadata 快照 turnContext 条目里的模型配置回调。
func (e *Engine) detectSnapshotMetadata(workspaceID, threadID string, thread events.Params) {
	if e.OnMetadata == nil {
		return
	}
	for _, turn := range thread.Records("turns") {
		for _, item := range turn.Records("items") {
			if item.TrimmedStr("type") != "turnContext" {
				continue
			}
			info := item.Record("payload").Record("info")
			if info == nil {
				info = item.Record("payload")
			}
			model := info.TrimmedStr("model")
			effort := info.TrimmedStr("reasoningEffort")
			if model == "" && effort == "" {
				continue
			}
			e.OnMetadata(workspaceID, threadID, ThreadMetadata{ModelID: model, ReasoningEffort: effort})
		}
	}
}
