// rpc.go — app-server 调用的类型化封装。
// 结果统一经 events.Params 宽松读取, 字段命名差异 (nextCursor/next_cursor 等)
// 在这里吸收掉。
package appserver

import (
	"context"
	"encoding/json"

	"github.com/codex-monitor/go-monitor/internal/events"
	apperrors "github.com/codex-monitor/go-monitor/pkg/errors"
)

// ListThreadsPage 一页线程列表。NextCursor == "" 表示没有更多数据。
type ListThreadsPage struct {
	Threads    []events.Params
	NextCursor string
}

// ReviewOptions 审查启动参数。
type ReviewOptions struct {
	Prompt   string `json:"prompt,omitempty"`
	Scope    string `json:"scope,omitempty"`
	Delivery string `json:"delivery"` // inline | detached
}

func (c *Client) callRecord(ctx context.Context, method string, params any) (events.Params, error) {
	raw, err := c.Call(ctx, method, params)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return events.Params{}, nil
	}
	var rec map[string]any
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, apperrors.Wrapf(err, "Client.callRecord", "%s result decode", method)
	}
	return events.Params(rec), nil
}

// StartThread 创建线程, 返回线程 id。
func (c *Client) StartThread(ctx context.Context, workspaceID, cwd string) (string, error) {
	rec, err := c.callRecord(ctx, "thread/start", map[string]any{
		"workspaceId": workspaceID,
		"cwd":         cwd,
	})
	if err != nil {
		return "", err
	}
	id := rec.Record("thread").TrimmedStr("id")
	if id == "" {
		id = rec.TrimmedStr("threadId")
	}
	if id == "" {
		return "", apperrors.Wrap(apperrors.ErrNoThread, "Client.StartThread", "empty thread id in result")
	}
	return id, nil
}

// ForkThread 从既有线程分叉, 返回新线程 id。
func (c *Client) ForkThread(ctx context.Context, workspaceID, threadID string) (string, error) {
	rec, err := c.callRecord(ctx, "thread/fork", map[string]any{
		"workspaceId": workspaceID,
		"threadId":    threadID,
	})
	if err != nil {
		return "", err
	}
	id := rec.Record("thread").TrimmedStr("id")
	if id == "" {
		id = rec.TrimmedStr("threadId")
	}
	return id, nil
}

// ResumeThread 拉取线程完整快照。
func (c *Client) ResumeThread(ctx context.Context, workspaceID, threadID string) (events.Params, error) {
	rec, err := c.callRecord(ctx, "thread/resume", map[string]any{
		"workspaceId": workspaceID,
		"threadId":    threadID,
	})
	if err != nil {
		return nil, err
	}
	if thread := rec.Record("thread"); thread != nil {
		return thread, nil
	}
	return rec, nil
}

// ListThreads 拉取一页线程列表。cursor 为 nil 时从头开始。
func (c *Client) ListThreads(ctx context.Context, workspaceID string, cursor *string, limit int, sortKey string) (ListThreadsPage, error) {
	params := map[string]any{
		"workspaceId": workspaceID,
		"limit":       limit,
		"sortKey":     sortKey,
		"cursor":      nil,
	}
	if cursor != nil {
		params["cursor"] = *cursor
	}
	rec, err := c.callRecord(ctx, "thread/list", params)
	if err != nil {
		return ListThreadsPage{}, err
	}
	page := ListThreadsPage{NextCursor: rec.TrimmedStr("nextCursor")}
	page.Threads = rec.Records("data")
	return page, nil
}

// ArchiveThread 归档线程。
func (c *Client) ArchiveThread(ctx context.Context, workspaceID, threadID string) error {
	_, err := c.Call(ctx, "thread/archive", map[string]any{
		"workspaceId": workspaceID,
		"threadId":    threadID,
	})
	return err
}

// UnarchiveThread 取消归档。
func (c *Client) UnarchiveThread(ctx context.Context, workspaceID, threadID string) error {
	_, err := c.Call(ctx, "thread/unarchive", map[string]any{
		"workspaceId": workspaceID,
		"threadId":    threadID,
	})
	return err
}

// SetThreadName 设置线程名。
func (c *Client) SetThreadName(ctx context.Context, workspaceID, threadID, name string) error {
	_, err := c.Call(ctx, "thread/setName", map[string]any{
		"workspaceId": workspaceID,
		"threadId":    threadID,
		"name":        name,
	})
	return err
}

// SendUserMessage 发送用户消息开启新 turn, 返回 turn id (可能为空)。
func (c *Client) SendUserMessage(ctx context.Context, workspaceID, threadID, text string, images []string) (string, error) {
	rec, err := c.callRecord(ctx, "turn/start", map[string]any{
		"workspaceId": workspaceID,
		"threadId":    threadID,
		"text":        text,
		"images":      images,
	})
	if err != nil {
		return "", err
	}
	turnID := rec.Record("turn").TrimmedStr("id")
	if turnID == "" {
		turnID = rec.TrimmedStr("turnId")
	}
	return turnID, nil
}

// SteerTurn 向进行中的 turn 注入补充指令。
func (c *Client) SteerTurn(ctx context.Context, workspaceID, threadID, turnID, text string, images []string) error {
	_, err := c.Call(ctx, "turn/steer", map[string]any{
		"workspaceId": workspaceID,
		"threadId":    threadID,
		"turnId":      turnID,
		"text":        text,
		"images":      images,
	})
	return err
}

// InterruptTurn 打断 turn。turnID 可以是占位值, 服务端按线程当前 turn 处理。
func (c *Client) InterruptTurn(ctx context.Context, workspaceID, threadID, turnID string) error {
	_, err := c.Call(ctx, "turn/interrupt", map[string]any{
		"workspaceId": workspaceID,
		"threadId":    threadID,
		"turnId":      turnID,
	})
	return err
}

// StartReview 启动审查, detached 模式返回审查线程 id。
func (c *Client) StartReview(ctx context.Context, workspaceID, threadID string, opts ReviewOptions) (string, error) {
	rec, err := c.callRecord(ctx, "review/start", map[string]any{
		"workspaceId": workspaceID,
		"threadId":    threadID,
		"options":     opts,
	})
	if err != nil {
		return "", err
	}
	id := rec.TrimmedStr("reviewThreadId")
	if id == "" {
		id = rec.Record("thread").TrimmedStr("id")
	}
	return id, nil
}
