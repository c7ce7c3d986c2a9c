// reducer.go — 动作归约。所有状态变更集中在 reduce, 由 Store 串行调用。
package threadstate

import (
	"sort"
)

// reduce 把单个动作应用到状态上。同一动作重复应用结果不变 (幂等)。
func reduce(st *State, action Action) {
	switch a := action.(type) {

	// ---------- 线程列表 ----------

	case EnsureThread:
		list := st.ThreadsByWorkspace[a.WorkspaceID]
		for _, t := range list {
			if t.ID == a.ThreadID {
				return
			}
		}
		name := a.Name
		if custom := st.CustomNameByThread[ScopedKey(a.WorkspaceID, a.ThreadID)]; custom != "" {
			name = custom
		}
		if name == "" {
			name = a.ThreadID
		}
		entry := ThreadSummary{ID: a.ThreadID, Name: name, UpdatedAt: a.Timestamp}
		st.ThreadsByWorkspace[a.WorkspaceID] = append([]ThreadSummary{entry}, list...)

	case SetThreads:
		next := make([]ThreadSummary, 0, len(a.Threads))
		seen := make(map[string]bool, len(a.Threads))
		for _, t := range a.Threads {
			if t.ID == "" || seen[t.ID] {
				continue
			}
			seen[t.ID] = true
			if custom := st.CustomNameByThread[ScopedKey(a.WorkspaceID, t.ID)]; custom != "" {
				t.Name = custom
			}
			if t.Name == "" {
				t.Name = t.ID
			}
			next = append(next, t)
		}
		if a.PreserveAnchors {
			// 激活线程被新窗口挤掉时, 用旧列表数据把它留在原位。
			if active := st.ActiveThreadByWorkspace[a.WorkspaceID]; active != "" && !seen[active] {
				for _, old := range st.ThreadsByWorkspace[a.WorkspaceID] {
					if old.ID == active {
						next = append(next, old)
						seen[active] = true
						break
					}
				}
			}
		}
		sortThreads(next, a.SortKey)
		st.ThreadsByWorkspace[a.WorkspaceID] = next

	case SetThreadListCursor:
		st.CursorByWorkspace[a.WorkspaceID] = a.Cursor

	case SetThreadListLoading:
		st.ListLoadingByWorkspace[a.WorkspaceID] = a.IsLoading

	case SetThreadListPaging:
		st.ListPagingByWorkspace[a.WorkspaceID] = a.IsLoading

	case SetActiveThreadID:
		if a.ThreadID == "" {
			delete(st.ActiveThreadByWorkspace, a.WorkspaceID)
		} else {
			st.ActiveThreadByWorkspace[a.WorkspaceID] = a.ThreadID
		}

	case RemoveThread:
		list := st.ThreadsByWorkspace[a.WorkspaceID]
		next := list[:0:0]
		for _, t := range list {
			if t.ID != a.ThreadID {
				next = append(next, t)
			}
		}
		st.ThreadsByWorkspace[a.WorkspaceID] = next
		if st.ActiveThreadByWorkspace[a.WorkspaceID] == a.ThreadID {
			delete(st.ActiveThreadByWorkspace, a.WorkspaceID)
		}

	case SetThreadName:
		name := a.Name
		if custom := st.CustomNameByThread[ScopedKey(a.WorkspaceID, a.ThreadID)]; custom != "" {
			name = custom
		}
		if name == "" {
			name = a.ThreadID
		}
		renameThread(st, a.WorkspaceID, a.ThreadID, name)

	case SetCustomThreadName:
		key := ScopedKey(a.WorkspaceID, a.ThreadID)
		if a.Name == "" {
			delete(st.CustomNameByThread, key)
		} else {
			st.CustomNameByThread[key] = a.Name
			renameThread(st, a.WorkspaceID, a.ThreadID, a.Name)
		}

	case SetThreadPinned:
		key := ScopedKey(a.WorkspaceID, a.ThreadID)
		if a.Timestamp == 0 {
			delete(st.PinnedAtByThread, key)
		} else {
			st.PinnedAtByThread[key] = a.Timestamp
		}

	case SetThreadHidden:
		if a.Hidden {
			st.HiddenThreads[a.ThreadID] = true
		} else {
			delete(st.HiddenThreads, a.ThreadID)
		}

	// ---------- 会话条目 ----------

	case SetThreadItems:
		st.ItemsByThread[a.ThreadID] = append([]ConversationItem(nil), a.Items...)

	case UpsertThreadItem:
		items := st.ItemsByThread[a.ThreadID]
		for i, it := range items {
			if it.ID == a.Item.ID {
				items[i] = a.Item
				return
			}
		}
		st.ItemsByThread[a.ThreadID] = append(items, a.Item)

	case AppendItemText:
		items := st.ItemsByThread[a.ThreadID]
		for i, it := range items {
			if it.ID == a.ItemID {
				items[i].Text = it.Text + a.Delta
				return
			}
		}
		st.ItemsByThread[a.ThreadID] = append(items, ConversationItem{
			ID: a.ItemID, Kind: a.Kind, Role: a.Role, Text: a.Delta,
		})

	case AppendItemOutput:
		items := st.ItemsByThread[a.ThreadID]
		for i, it := range items {
			if it.ID == a.ItemID {
				items[i].Output = it.Output + a.Delta
				return
			}
		}
		st.ItemsByThread[a.ThreadID] = append(items, ConversationItem{
			ID: a.ItemID, Kind: ItemToolCall, Output: a.Delta,
		})

	// ---------- 运行状态 ----------

	case MarkProcessing:
		status := st.StatusByThread[a.ThreadID]
		if a.IsProcessing {
			status.IsProcessing = true
			status.ProcessingStartedAt = a.Timestamp
		} else {
			if status.IsProcessing && status.ProcessingStartedAt > 0 && a.Timestamp > status.ProcessingStartedAt {
				status.LastDurationMS = a.Timestamp - status.ProcessingStartedAt
			}
			status.IsProcessing = false
			status.ProcessingStartedAt = 0
		}
		st.StatusByThread[a.ThreadID] = status

	case SetActiveTurnID:
		if a.TurnID == "" {
			delete(st.ActiveTurnByThread, a.ThreadID)
		} else {
			st.ActiveTurnByThread[a.ThreadID] = a.TurnID
		}

	case MarkReviewing:
		status := st.StatusByThread[a.ThreadID]
		status.IsReviewing = a.IsReviewing
		st.StatusByThread[a.ThreadID] = status

	case MarkUnread:
		status := st.StatusByThread[a.ThreadID]
		status.HasUnread = a.HasUnread
		st.StatusByThread[a.ThreadID] = status

	case SetThreadResumeLoading:
		st.ResumeLoadingByThread[a.ThreadID] = a.IsLoading

	case SetLastAgentMessage:
		st.LastAgentMessageByThread[a.ThreadID] = LastAgentMessage{Text: a.Text, Timestamp: a.Timestamp}

	// ---------- 计划 / diff / 用量 ----------

	case SetPlan:
		if a.Plan == nil {
			delete(st.PlanByThread, a.ThreadID)
		} else {
			plan := *a.Plan
			plan.Steps = append([]PlanStep(nil), a.Plan.Steps...)
			st.PlanByThread[a.ThreadID] = &plan
		}

	case SetTurnDiff:
		st.DiffByThread[a.ThreadID] = a.Diff

	case SetTokenUsage:
		st.TokenUsageByThread[a.ThreadID] = a.Usage

	case SetRateLimits:
		st.RateLimitsByWorkspace[a.WorkspaceID] = a.Limits

	// ---------- 发送队列 ----------

	case EnqueueMessage:
		for _, e := range st.QueueByThread[a.ThreadID] {
			if e.ID == a.Entry.ID {
				return
			}
		}
		st.QueueByThread[a.ThreadID] = append(st.QueueByThread[a.ThreadID], a.Entry)

	case DequeueMessage:
		queue := st.QueueByThread[a.ThreadID]
		next := queue[:0:0]
		for _, e := range queue {
			if e.ID != a.EntryID {
				next = append(next, e)
			}
		}
		st.QueueByThread[a.ThreadID] = next

	case ClearQueue:
		delete(st.QueueByThread, a.ThreadID)
	}
}

// sortThreads 按排序键降序稳定排序。
func sortThreads(list []ThreadSummary, key SortKey) {
	sort.SliceStable(list, func(i, j int) bool {
		if key == SortByCreatedAt {
			return list[i].CreatedAt > list[j].CreatedAt
		}
		return list[i].UpdatedAt > list[j].UpdatedAt
	})
}

func renameThread(st *State, workspaceID, threadID, name string) {
	list := st.ThreadsByWorkspace[workspaceID]
	for i, t := range list {
		if t.ID == threadID {
			list[i].Name = name
			return
		}
	}
}
