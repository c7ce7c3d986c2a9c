// rows.go — 线程列表的展示行。
// 把扁平的线程列表组装成带层级缩进的行序列: 置顶在前,
// 子代紧跟父行, 隐藏的后台线程不出现。
package engine

import (
	"sort"

	"github.com/codex-monitor/go-monitor/internal/threadstate"
)

// ThreadRow 一行展示数据。
type ThreadRow struct {
	Thread       threadstate.ThreadSummary `json:"thread"`
	Depth        int                       `json:"depth"`
	Pinned       bool                      `json:"pinned"`
	PinnedAt     int64                     `json:"pinnedAt,omitempty"`
	IsSubagent   bool                      `json:"isSubagent"`
	IsProcessing bool                      `json:"isProcessing"`
	HasUnread    bool                      `json:"hasUnread"`
	Collapsed    bool                      `json:"collapsed"`
	HasChildren  bool                      `json:"hasChildren"`
}

// SetThreadCollapsed 折叠/展开一个父行。折叠行自身保留, 子树不出行。
func (e *Engine) SetThreadCollapsed(threadID string, collapsed bool) {
	e.mu.Lock()
	if collapsed {
		e.collapsed[threadID] = true
	} else {
		delete(e.collapsed, threadID)
	}
	e.mu.Unlock()
}

func (e *Engine) isCollapsed(threadID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.collapsed[threadID]
}

// ThreadRows 组装工作区的展示行。
func (e *Engine) ThreadRows(workspaceID string) []ThreadRow {
	snap := e.state.Snapshot()
	threads := snap.ThreadsByWorkspace[workspaceID]

	visible := make([]threadstate.ThreadSummary, 0, len(threads))
	inSet := map[string]bool{}
	for _, t := range threads {
		if snap.HiddenThreads[t.ID] {
			continue
		}
		visible = append(visible, t)
		inSet[t.ID] = true
	}

	// 子代按出现顺序挂到父行下。
	childOrder := map[string][]threadstate.ThreadSummary{}
	var roots []threadstate.ThreadSummary
	for _, t := range visible {
		parent, _, ok := e.hier.Parent(t.ID)
		if ok && inSet[parent] {
			childOrder[parent] = append(childOrder[parent], t)
			continue
		}
		roots = append(roots, t)
	}

	// 置顶的根提前, 按置顶时间降序。
	sort.SliceStable(roots, func(i, j int) bool {
		pi := snap.PinnedAtByThread[threadstate.ScopedKey(workspaceID, roots[i].ID)]
		pj := snap.PinnedAtByThread[threadstate.ScopedKey(workspaceID, roots[j].ID)]
		if (pi > 0) != (pj > 0) {
			return pi > 0
		}
		return pi > pj
	})

	var rows []ThreadRow
	var walk func(t threadstate.ThreadSummary, depth int)
	walk = func(t threadstate.ThreadSummary, depth int) {
		pinnedAt := snap.PinnedAtByThread[threadstate.ScopedKey(workspaceID, t.ID)]
		status := snap.StatusByThread[t.ID]
		collapsed := e.isCollapsed(t.ID)
		rows = append(rows, ThreadRow{
			Thread:       t,
			Depth:        depth,
			Pinned:       pinnedAt > 0,
			PinnedAt:     pinnedAt,
			IsSubagent:   e.hier.IsSubagent(t.ID),
			IsProcessing: status.IsProcessing,
			HasUnread:    status.HasUnread,
			Collapsed:    collapsed,
			HasChildren:  len(childOrder[t.ID]) > 0,
		})
		if collapsed {
			return
		}
		for _, child := range childOrder[t.ID] {
			walk(child, depth+1)
		}
	}
	for _, root := range roots {
		walk(root, 0)
	}
	return rows
}
