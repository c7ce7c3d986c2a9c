// commands.go — 面向调用方的线程命令。
package engine

import (
	"context"
	"strings"

	"github.com/codex-monitor/go-monitor/internal/threadstate"
	apperrors "github.com/codex-monitor/go-monitor/pkg/errors"
)

// StartThread 新建线程并设为工作区激活线程。
func (e *Engine) StartThread(ctx context.Context, workspaceID string) (string, error) {
	ws, ok := e.workspaceByID(workspaceID)
	if !ok {
		return "", apperrors.Wrapf(apperrors.ErrNotFound, "Engine.StartThread", "workspace %s", workspaceID)
	}
	threadID, err := e.rpc.StartThread(ctx, ws.ID, ws.Path)
	if err != nil {
		e.debug("error", "thread/start error", err.Error())
		return "", apperrors.Wrap(err, "Engine.StartThread", "start")
	}
	e.state.DispatchAll(
		threadstate.EnsureThread{WorkspaceID: ws.ID, ThreadID: threadID, Timestamp: e.now()},
		threadstate.SetActiveThreadID{WorkspaceID: ws.ID, ThreadID: threadID},
	)
	e.markLoaded(threadID)
	return threadID, nil
}

// ForkThread 分叉线程, 新线程挂在原线程之下。
func (e *Engine) ForkThread(ctx context.Context, workspaceID, threadID string) (string, error) {
	newID, err := e.rpc.ForkThread(ctx, workspaceID, threadID)
	if err != nil {
		e.debug("error", "thread/fork error", err.Error())
		return "", apperrors.Wrap(err, "Engine.ForkThread", "fork")
	}
	if newID != "" {
		e.state.Dispatch(threadstate.EnsureThread{WorkspaceID: workspaceID, ThreadID: newID, Timestamp: e.now()})
	}
	return newID, nil
}

// SelectThread 切换工作区激活线程并按需拉快照。
func (e *Engine) SelectThread(ctx context.Context, workspaceID, threadID string) error {
	e.state.DispatchAll(
		threadstate.SetActiveThreadID{WorkspaceID: workspaceID, ThreadID: threadID},
		threadstate.MarkUnread{ThreadID: threadID, HasUnread: false},
	)
	return e.ResumeThread(ctx, workspaceID, threadID, false, false)
}

// RenameThread 设置自定义线程名并同步到服务端。name 为空时恢复缺省名。
func (e *Engine) RenameThread(ctx context.Context, workspaceID, threadID, name string) error {
	name = strings.TrimSpace(name)
	if err := e.rpc.SetThreadName(ctx, workspaceID, threadID, name); err != nil {
		e.debug("error", "thread/setName error", err.Error())
		return apperrors.Wrap(err, "Engine.RenameThread", "rpc")
	}
	e.state.Dispatch(threadstate.SetCustomThreadName{WorkspaceID: workspaceID, ThreadID: threadID, Name: name})
	if err := e.persist.SaveCustomName(ctx, workspaceID, threadID, name); err != nil {
		e.debug("error", "name persist error", err.Error())
	}
	return nil
}

// PinThread 置顶。ts 用当前时间, 供列表排序。
func (e *Engine) PinThread(ctx context.Context, workspaceID, threadID string) error {
	ts := e.now()
	e.state.Dispatch(threadstate.SetThreadPinned{WorkspaceID: workspaceID, ThreadID: threadID, Timestamp: ts})
	return e.persist.SaveThreadPin(ctx, workspaceID, threadID, ts)
}

// UnpinThread 取消置顶。
func (e *Engine) UnpinThread(ctx context.Context, workspaceID, threadID string) error {
	e.state.Dispatch(threadstate.SetThreadPinned{WorkspaceID: workspaceID, ThreadID: threadID, Timestamp: 0})
	return e.persist.SaveThreadPin(ctx, workspaceID, threadID, 0)
}

// ArchiveThread 归档线程。子代的归档传播在 thread/archived 事件上做,
// 这里只发起对目标线程自身的归档。
func (e *Engine) ArchiveThread(ctx context.Context, workspaceID, threadID string) error {
	if err := e.rpc.ArchiveThread(ctx, workspaceID, threadID); err != nil {
		e.debug("error", "thread/archive error", err.Error())
		return apperrors.Wrap(err, "Engine.ArchiveThread", "archive")
	}
	return nil
}

// UnarchiveThread 取消归档。
func (e *Engine) UnarchiveThread(ctx context.Context, workspaceID, threadID string) error {
	if err := e.rpc.UnarchiveThread(ctx, workspaceID, threadID); err != nil {
		e.debug("error", "thread/unarchive error", err.Error())
		return apperrors.Wrap(err, "Engine.UnarchiveThread", "unarchive")
	}
	e.state.Dispatch(threadstate.EnsureThread{WorkspaceID: workspaceID, ThreadID: threadID, Timestamp: e.now()})
	return nil
}

// MarkThreadRead 清未读标记。
func (e *Engine) MarkThreadRead(threadID string) {
	e.state.Dispatch(threadstate.MarkUnread{ThreadID: threadID, HasUnread: false})
}
