// review.go — 审查模式与分离式审查链接。
//
// inline 审查在原线程里进行, 只翻转 reviewing 标志。
// detached 审查生成独立审查线程: 链接挂到层级表并持久化,
// 父线程里落一条可跳转的 assistant 通知; 审查线程上的
// exitedReviewMode 事件翻译成父线程的完成通知, 重复事件只通知一次。
package engine

import (
	"context"

	"github.com/codex-monitor/go-monitor/internal/appserver"
	"github.com/codex-monitor/go-monitor/internal/events"
	"github.com/codex-monitor/go-monitor/internal/hierarchy"
	"github.com/codex-monitor/go-monitor/internal/store"
	"github.com/codex-monitor/go-monitor/internal/threadstate"
	apperrors "github.com/codex-monitor/go-monitor/pkg/errors"
	"github.com/codex-monitor/go-monitor/pkg/logger"
)

const (
	reviewStartedNotice   = "Detached review started."
	reviewCompletedNotice = "Detached review completed."
)

// StartReview 在线程上启动审查, 交付模式取自配置。
// detached 模式返回审查线程 id, inline 模式返回 ""。
func (e *Engine) StartReview(ctx context.Context, workspaceID, threadID, prompt string) (string, error) {
	delivery := e.cfg.ReviewDelivery
	reviewID, err := e.rpc.StartReview(ctx, workspaceID, threadID, appserver.ReviewOptions{
		Prompt:   prompt,
		Delivery: delivery,
	})
	if err != nil {
		e.debug("error", "review/start error", err.Error())
		return "", apperrors.Wrap(err, "Engine.StartReview", "rpc")
	}

	if delivery != "detached" || reviewID == "" {
		return "", nil
	}

	e.hier.Register(reviewID, threadID, hierarchy.KindDetachedReview)
	if err := e.persist.SaveReviewLink(ctx, store.ReviewLink{
		WorkspaceID:    workspaceID,
		ReviewThreadID: reviewID,
		ParentThreadID: threadID,
	}); err != nil {
		e.debug("error", "review link persist error", err.Error())
	}

	e.state.Dispatch(threadstate.UpsertThreadItem{
		ThreadID: threadID,
		Item: threadstate.ConversationItem{
			ID:   "review-started-" + reviewID,
			Kind: threadstate.ItemMessage,
			Role: "assistant",
			Text: reviewStartedNotice + "\n\n[Open review thread](/thread/" + reviewID + ")",
		},
	})
	logger.Info("分离式审查已启动",
		logger.FieldWorkspaceID, workspaceID,
		logger.FieldThreadID, threadID,
		"review_thread_id", reviewID,
	)
	return reviewID, nil
}

// handleReviewItem 处理 entered/exitedReviewMode 条目。
// 审查线程上的事件不碰父线程的 processing/reviewing 标志。
func (e *Engine) handleReviewItem(threadID string, item events.Params) {
	switch item.TrimmedStr("type") {
	case "enteredReviewMode":
		if !e.hier.IsDetachedReview(threadID) {
			e.state.Dispatch(threadstate.MarkReviewing{ThreadID: threadID, IsReviewing: true})
		}

	case "exitedReviewMode":
		parent, kind, ok := e.hier.Parent(threadID)
		if !ok || kind != hierarchy.KindDetachedReview {
			e.state.Dispatch(threadstate.MarkReviewing{ThreadID: threadID, IsReviewing: false})
			return
		}
		// 重复的 exited 事件只通知一次。
		e.mu.Lock()
		notified := e.reviewNotified[threadID]
		e.reviewNotified[threadID] = true
		e.mu.Unlock()
		if notified {
			return
		}
		e.state.Dispatch(threadstate.UpsertThreadItem{
			ThreadID: parent,
			Item: threadstate.ConversationItem{
				ID:   "review-completed-" + threadID,
				Kind: threadstate.ItemMessage,
				Role: "assistant",
				Text: reviewCompletedNotice + "\n\n[Open review thread](/thread/" + threadID + ")",
			},
		})
		logger.Info("分离式审查完成",
			logger.FieldThreadID, parent,
			"review_thread_id", threadID,
		)
	}
}
