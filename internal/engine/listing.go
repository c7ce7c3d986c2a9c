// listing.go — 线程列表刷新与翻页。
//
// 刷新拿第一页、归属过滤、截窗后整体替换 (带锚点保护);
// 翻页从存储的游标继续, 把老条目续在列表尾部。
// 多工作区刷新只跑一条分页序列, 按 cwd 归属分摊给各工作区。
package engine

import (
	"context"
	"sort"

	"github.com/codex-monitor/go-monitor/internal/events"
	"github.com/codex-monitor/go-monitor/internal/threaditems"
	"github.com/codex-monitor/go-monitor/internal/threadstate"
	apperrors "github.com/codex-monitor/go-monitor/pkg/errors"
	"github.com/codex-monitor/go-monitor/pkg/logger"
)

// 多工作区刷新的分页保险丝, 防止服务端游标不收敛。
const maxListPages = 50

// ListOptions 刷新选项。
type ListOptions struct {
	// PreserveState 为真时不闪列表 loading (静默后台刷新)。
	PreserveState bool
}

// RefreshThreads 刷新单个工作区的线程列表第一页。
func (e *Engine) RefreshThreads(ctx context.Context, workspaceID string, opts ListOptions) error {
	ws, ok := e.workspaceByID(workspaceID)
	if !ok {
		return apperrors.Wrapf(apperrors.ErrNotFound, "Engine.RefreshThreads", "workspace %s", workspaceID)
	}
	if !opts.PreserveState {
		e.state.Dispatch(threadstate.SetThreadListLoading{WorkspaceID: ws.ID, IsLoading: true})
		defer e.state.Dispatch(threadstate.SetThreadListLoading{WorkspaceID: ws.ID, IsLoading: false})
	}

	page, err := e.rpc.ListThreads(ctx, ws.ID, nil, e.cfg.ThreadPageLimit, e.cfg.ThreadSortKey)
	if err != nil {
		e.debug("error", "thread/list error", err.Error())
		return apperrors.Wrap(err, "Engine.RefreshThreads", "list")
	}

	all := e.Workspaces()
	summaries := make([]threadstate.ThreadSummary, 0, len(page.Threads))
	for _, row := range page.Threads {
		if !matchWorkspace(row, ws, all) {
			continue
		}
		summaries = append(summaries, e.ingestRow(ws.ID, row))
	}
	e.flushActivity(ctx)

	summaries = e.windowWithAnchor(ws.ID, summaries)
	e.state.DispatchAll(
		threadstate.SetThreads{
			WorkspaceID:     ws.ID,
			Threads:         summaries,
			SortKey:         threadstate.SortKey(e.cfg.ThreadSortKey),
			PreserveAnchors: true,
		},
		threadstate.SetThreadListCursor{WorkspaceID: ws.ID, Cursor: page.NextCursor},
	)
	logger.Debug("线程列表已刷新",
		logger.FieldWorkspaceID, ws.ID,
		logger.FieldCount, len(summaries),
		logger.FieldCursor, page.NextCursor,
	)
	return nil
}

// LoadOlderThreads 从存储的游标往后翻一页, 续在现有列表尾部。
func (e *Engine) LoadOlderThreads(ctx context.Context, workspaceID string) error {
	ws, ok := e.workspaceByID(workspaceID)
	if !ok {
		return apperrors.Wrapf(apperrors.ErrNotFound, "Engine.LoadOlderThreads", "workspace %s", workspaceID)
	}
	e.state.Dispatch(threadstate.SetThreadListPaging{WorkspaceID: ws.ID, IsLoading: true})
	defer e.state.Dispatch(threadstate.SetThreadListPaging{WorkspaceID: ws.ID, IsLoading: false})

	// 哨兵与空游标都表示从头开始。
	var cursor *string
	if stored := e.state.Cursor(ws.ID); stored != "" && stored != threadstate.PageStartCursor {
		cursor = &stored
	}

	page, err := e.rpc.ListThreads(ctx, ws.ID, cursor, e.cfg.ThreadPageLimit, e.cfg.ThreadSortKey)
	if err != nil {
		e.debug("error", "thread/list error", err.Error())
		return apperrors.Wrap(err, "Engine.LoadOlderThreads", "list")
	}

	all := e.Workspaces()
	existing := e.state.Threads(ws.ID)
	present := make(map[string]bool, len(existing))
	for _, t := range existing {
		present[t.ID] = true
	}

	appended := append([]threadstate.ThreadSummary(nil), existing...)
	added := 0
	for _, row := range page.Threads {
		if !matchWorkspace(row, ws, all) {
			continue
		}
		s := e.ingestRow(ws.ID, row)
		if present[s.ID] {
			continue
		}
		present[s.ID] = true
		appended = append(appended, s)
		added++
	}
	e.flushActivity(ctx)

	if added > 0 {
		e.state.Dispatch(threadstate.SetThreads{
			WorkspaceID: ws.ID,
			Threads:     appended,
			SortKey:     threadstate.SortKey(e.cfg.ThreadSortKey),
		})
	}
	e.state.Dispatch(threadstate.SetThreadListCursor{WorkspaceID: ws.ID, Cursor: page.NextCursor})
	return nil
}

// RefreshAllWorkspaces 用一条分页序列刷新全部工作区,
// 逐页按 cwd 归属把行分摊到各工作区。
func (e *Engine) RefreshAllWorkspaces(ctx context.Context, opts ListOptions) error {
	all := e.Workspaces()
	if len(all) == 0 {
		return nil
	}
	if !opts.PreserveState {
		for _, ws := range all {
			e.state.Dispatch(threadstate.SetThreadListLoading{WorkspaceID: ws.ID, IsLoading: true})
		}
		defer func() {
			for _, ws := range all {
				e.state.Dispatch(threadstate.SetThreadListLoading{WorkspaceID: ws.ID, IsLoading: false})
			}
		}()
	}

	byWorkspace := map[string][]threadstate.ThreadSummary{}
	var cursor *string
	for pageNo := 0; pageNo < maxListPages; pageNo++ {
		page, err := e.rpc.ListThreads(ctx, all[0].ID, cursor, e.cfg.ThreadPageLimit, e.cfg.ThreadSortKey)
		if err != nil {
			e.debug("error", "thread/list error", err.Error())
			return apperrors.Wrap(err, "Engine.RefreshAllWorkspaces", "list")
		}
		for _, row := range page.Threads {
			ws, ok := attributeWorkspace(row, all)
			if !ok {
				continue
			}
			byWorkspace[ws.ID] = append(byWorkspace[ws.ID], e.ingestRow(ws.ID, row))
		}
		if page.NextCursor == "" {
			break
		}
		next := page.NextCursor
		cursor = &next
	}
	e.flushActivity(ctx)

	for _, ws := range all {
		summaries := e.windowWithAnchor(ws.ID, byWorkspace[ws.ID])
		e.state.DispatchAll(
			threadstate.SetThreads{
				WorkspaceID:     ws.ID,
				Threads:         summaries,
				SortKey:         threadstate.SortKey(e.cfg.ThreadSortKey),
				PreserveAnchors: true,
			},
			threadstate.SetThreadListCursor{WorkspaceID: ws.ID, Cursor: ""},
		)
	}
	return nil
}

// ingestRow 把一条列表行转成摘要, 顺带吸收行上的元数据与层级信息。
func (e *Engine) ingestRow(workspaceID string, row events.Params) threadstate.ThreadSummary {
	threadID := row.TrimmedStr("id")
	summary := threadstate.ThreadSummary{
		ID:        threadID,
		Name:      threaditems.PreviewName(row),
		UpdatedAt: threaditems.Timestamp(row),
		CreatedAt: threaditems.CreatedTimestamp(row),
	}

	e.detectRowMetadata(workspaceID, threadID, row)
	e.registerSourceLinks(workspaceID, threadID, row.Record("source"))
	e.recordActivity(workspaceID, threadID, summary.UpdatedAt)
	return summary
}

// detectRowMetadata 列表行上的模型配置回调。
func (e *Engine) detectRowMetadata(workspaceID, threadID string, row events.Params) {
	model := row.TrimmedStr("model")
	effort := row.TrimmedStr("reasoningEffort")
	if model == "" && effort == "" {
		return
	}
	if e.OnMetadata != nil {
		e.OnMetadata(workspaceID, threadID, ThreadMetadata{ModelID: model, ReasoningEffort: effort})
	}
}

// recordActivity 更新内存活动表, flushActivity 统一落盘。
func (e *Engine) recordActivity(workspaceID, threadID string, ts int64) {
	if workspaceID == "" || threadID == "" || ts == 0 {
		return
	}
	e.mu.Lock()
	byThread := e.activity[workspaceID]
	if byThread == nil {
		byThread = map[string]int64{}
		e.activity[workspaceID] = byThread
	}
	if ts > byThread[threadID] {
		byThread[threadID] = ts
	}
	e.mu.Unlock()
}

func (e *Engine) flushActivity(ctx context.Context) {
	e.mu.Lock()
	snapshot := make(map[string]map[string]int64, len(e.activity))
	for ws, byThread := range e.activity {
		cp := make(map[string]int64, len(byThread))
		for id, ts := range byThread {
			cp[id] = ts
		}
		snapshot[ws] = cp
	}
	e.mu.Unlock()

	for ws, byThread := range snapshot {
		for id, ts := range byThread {
			if err := e.persist.SaveThreadActivity(ctx, ws, id, ts); err != nil {
				e.debug("error", "activity persist error", err.Error())
				return
			}
		}
	}
}

// windowWithAnchor 截到列表窗口大小; 激活线程掉出窗口时,
// 用本次拉取到的最新数据把它补回末尾。
func (e *Engine) windowWithAnchor(workspaceID string, summaries []threadstate.ThreadSummary) []threadstate.ThreadSummary {
	sort.SliceStable(summaries, func(i, j int) bool {
		if threadstate.SortKey(e.cfg.ThreadSortKey) == threadstate.SortByCreatedAt {
			return summaries[i].CreatedAt > summaries[j].CreatedAt
		}
		return summaries[i].UpdatedAt > summaries[j].UpdatedAt
	})
	top := e.cfg.ThreadListTopSize
	if top <= 0 || len(summaries) <= top {
		return summaries
	}
	window := summaries[:top]
	active := e.state.ActiveThread(workspaceID)
	if active == "" {
		return append([]threadstate.ThreadSummary(nil), window...)
	}
	for _, s := range window {
		if s.ID == active {
			return append([]threadstate.ThreadSummary(nil), window...)
		}
	}
	out := append([]threadstate.ThreadSummary(nil), window...)
	for _, s := range summaries[top:] {
		if s.ID == active {
			out = append(out, s)
			break
		}
	}
	return out
}
