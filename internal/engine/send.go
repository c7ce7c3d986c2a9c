// send.go — 发送、排队、steer 与打断。
//
// 线程空闲时直接开 turn; 处理中时按配置 steer 或入队,
// 队列只在 turn 完成事件上按提交顺序放行。
// 打断在还不知道真实 turn id 时先用占位值发一次,
// turn/started 到达后再用真实 id 重发。
package engine

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/codex-monitor/go-monitor/internal/threadstate"
	apperrors "github.com/codex-monitor/go-monitor/pkg/errors"
	"github.com/codex-monitor/go-monitor/pkg/logger"
)

// SendUserMessage 发送用户消息。处理中的线程按跟进策略处理。
func (e *Engine) SendUserMessage(ctx context.Context, workspaceID, threadID, text string, images []string) error {
	text = strings.TrimSpace(text)
	if text == "" && len(images) == 0 {
		return apperrors.Wrap(apperrors.ErrInvalidInput, "Engine.SendUserMessage", "empty message")
	}

	if e.state.Status(threadID).IsProcessing {
		turnID := e.state.ActiveTurn(threadID)
		if e.cfg.SteerEnabled && e.cfg.FollowUpBehavior == "steer" && turnID != "" && turnID != pendingTurnID {
			if err := e.rpc.SteerTurn(ctx, workspaceID, threadID, turnID, text, images); err != nil {
				e.debug("error", "turn/steer error", err.Error())
				return apperrors.Wrap(err, "Engine.SendUserMessage", "steer")
			}
			return nil
		}
		e.state.Dispatch(threadstate.EnqueueMessage{
			ThreadID: threadID,
			Entry: threadstate.QueueEntry{
				ID:     uuid.NewString(),
				Text:   text,
				Images: images,
				Intent: threadstate.IntentQueue,
			},
		})
		logger.Debug("消息已排队",
			logger.FieldThreadID, threadID,
			logger.FieldCount, len(e.state.Queue(threadID)),
		)
		return nil
	}

	return e.sendNow(ctx, workspaceID, threadID, text, images)
}

// sendNow 直接开 turn, 乐观落一条本地用户条目。
func (e *Engine) sendNow(ctx context.Context, workspaceID, threadID, text string, images []string) error {
	e.state.DispatchAll(
		threadstate.UpsertThreadItem{
			ThreadID: threadID,
			Item: threadstate.ConversationItem{
				ID:   "local-" + uuid.NewString(),
				Kind: threadstate.ItemMessage,
				Role: "user",
				Text: text,
			},
		},
		threadstate.MarkProcessing{ThreadID: threadID, IsProcessing: true, Timestamp: e.now()},
	)

	turnID, err := e.rpc.SendUserMessage(ctx, workspaceID, threadID, text, images)
	if err != nil {
		e.state.Dispatch(threadstate.MarkProcessing{ThreadID: threadID, IsProcessing: false, Timestamp: e.now()})
		e.debug("error", "turn/start error", err.Error())
		return apperrors.Wrap(err, "Engine.sendNow", "send")
	}
	if turnID != "" {
		e.state.Dispatch(threadstate.SetActiveTurnID{ThreadID: threadID, TurnID: turnID})
	}
	e.recordActivity(workspaceID, threadID, e.now())
	return nil
}

// flushQueue turn 完成后放行队首消息。后续条目等各自的完成事件,
// 提交顺序因此保持不变。
func (e *Engine) flushQueue(ctx context.Context, workspaceID, threadID string) {
	queue := e.state.Queue(threadID)
	if len(queue) == 0 {
		return
	}
	entry := queue[0]
	e.state.Dispatch(threadstate.DequeueMessage{ThreadID: threadID, EntryID: entry.ID})
	if err := e.sendNow(ctx, workspaceID, threadID, entry.Text, entry.Images); err != nil {
		e.debug("error", "queue flush error", err.Error())
	}
}

// InterruptTurn 打断线程当前 turn。
// 还没有激活 turn id 时用占位值先发, 并记下待重发标记。
func (e *Engine) InterruptTurn(ctx context.Context, workspaceID, threadID string) error {
	turnID := e.state.ActiveTurn(threadID)
	if turnID == "" {
		turnID = pendingTurnID
		e.mu.Lock()
		e.pendingInterrupts[threadID] = true
		e.mu.Unlock()
	}
	if err := e.rpc.InterruptTurn(ctx, workspaceID, threadID, turnID); err != nil {
		e.debug("error", "turn/interrupt error", err.Error())
		return apperrors.Wrap(err, "Engine.InterruptTurn", "interrupt")
	}
	return nil
}

// reissuePendingInterrupt turn/started 带来真实 turn id 后补发打断。
func (e *Engine) reissuePendingInterrupt(ctx context.Context, workspaceID, threadID, turnID string) {
	e.mu.Lock()
	pending := e.pendingInterrupts[threadID]
	if pending {
		delete(e.pendingInterrupts, threadID)
	}
	e.mu.Unlock()
	if !pending || turnID == "" {
		return
	}
	if err := e.rpc.InterruptTurn(ctx, workspaceID, threadID, turnID); err != nil {
		e.debug("error", "turn/interrupt error", err.Error())
	}
}
