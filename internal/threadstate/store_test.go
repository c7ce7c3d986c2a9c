package threadstate

import (
	"testing"
)

func TestEnsureThreadIdempotent(t *testing.T) {
	s := NewStore()
	s.Dispatch(EnsureThread{WorkspaceID: "ws-1", ThreadID: "thread-1", Timestamp: 100})
	s.Dispatch(EnsureThread{WorkspaceID: "ws-1", ThreadID: "thread-1", Timestamp: 200})

	threads := s.Threads("ws-1")
	if len(threads) != 1 {
		t.Fatalf("期望 1 条线程, 实际 %d", len(threads))
	}
	if threads[0].Name != "thread-1" {
		t.Fatalf("缺省名应回退为线程 id, 实际 %q", threads[0].Name)
	}
	if threads[0].UpdatedAt != 100 {
		t.Fatalf("重复 ensure 不应覆盖已有数据, 实际 updatedAt=%d", threads[0].UpdatedAt)
	}
}

func TestSetThreadsSortsByUpdatedAt(t *testing.T) {
	s := NewStore()
	s.Dispatch(SetThreads{
		WorkspaceID: "ws-1",
		SortKey:     SortByUpdatedAt,
		Threads: []ThreadSummary{
			{ID: "thread-a", Name: "a", UpdatedAt: 100},
			{ID: "thread-b", Name: "b", UpdatedAt: 300},
			{ID: "thread-c", Name: "c", UpdatedAt: 200},
		},
	})

	threads := s.Threads("ws-1")
	want := []string{"thread-b", "thread-c", "thread-a"}
	for i, id := range want {
		if threads[i].ID != id {
			t.Fatalf("位置 %d 期望 %s, 实际 %s", i, id, threads[i].ID)
		}
	}
}

func TestSetThreadsPreservesActiveAnchor(t *testing.T) {
	s := NewStore()
	s.Dispatch(SetThreads{
		WorkspaceID: "ws-1",
		SortKey:     SortByUpdatedAt,
		Threads: []ThreadSummary{
			{ID: "thread-old", Name: "old", UpdatedAt: 50},
		},
	})
	s.Dispatch(SetActiveThreadID{WorkspaceID: "ws-1", ThreadID: "thread-old"})

	// 新窗口不含激活线程, preserveAnchors 应把它留下来。
	s.Dispatch(SetThreads{
		WorkspaceID:     "ws-1",
		SortKey:         SortByUpdatedAt,
		PreserveAnchors: true,
		Threads: []ThreadSummary{
			{ID: "thread-new", Name: "new", UpdatedAt: 500},
		},
	})

	threads := s.Threads("ws-1")
	if len(threads) != 2 {
		t.Fatalf("期望锚点被保留, 实际线程数 %d", len(threads))
	}
	found := false
	for _, th := range threads {
		if th.ID == "thread-old" {
			found = true
		}
	}
	if !found {
		t.Fatal("激活线程被 setThreads 丢弃")
	}

	// 不带 preserveAnchors 的整体替换允许丢弃。
	s.Dispatch(SetThreads{
		WorkspaceID: "ws-1",
		SortKey:     SortByUpdatedAt,
		Threads: []ThreadSummary{
			{ID: "thread-new", Name: "new", UpdatedAt: 500},
		},
	})
	if len(s.Threads("ws-1")) != 1 {
		t.Fatal("无锚点保护时应整体替换")
	}
}

func TestSetThreadsDeduplicates(t *testing.T) {
	s := NewStore()
	s.Dispatch(SetThreads{
		WorkspaceID: "ws-1",
		SortKey:     SortByUpdatedAt,
		Threads: []ThreadSummary{
			{ID: "thread-1", Name: "first", UpdatedAt: 100},
			{ID: "thread-1", Name: "dup", UpdatedAt: 90},
		},
	})
	if got := len(s.Threads("ws-1")); got != 1 {
		t.Fatalf("重复 id 应去重, 实际 %d", got)
	}
}

func TestMarkProcessingRecordsDuration(t *testing.T) {
	s := NewStore()
	s.Dispatch(MarkProcessing{ThreadID: "thread-1", IsProcessing: true, Timestamp: 1000})

	status := s.Status("thread-1")
	if !status.IsProcessing || status.ProcessingStartedAt != 1000 {
		t.Fatalf("开始状态错误: %+v", status)
	}

	s.Dispatch(MarkProcessing{ThreadID: "thread-1", IsProcessing: false, Timestamp: 4500})
	status = s.Status("thread-1")
	if status.IsProcessing {
		t.Fatal("结束后仍标记处理中")
	}
	if status.LastDurationMS != 3500 {
		t.Fatalf("期望耗时 3500ms, 实际 %d", status.LastDurationMS)
	}
	if status.ProcessingStartedAt != 0 {
		t.Fatal("结束后应清除开始时间")
	}
}

func TestActiveTurnLifecycle(t *testing.T) {
	s := NewStore()
	s.Dispatch(SetActiveTurnID{ThreadID: "thread-1", TurnID: "turn-1"})
	if got := s.ActiveTurn("thread-1"); got != "turn-1" {
		t.Fatalf("期望 turn-1, 实际 %q", got)
	}
	s.Dispatch(SetActiveTurnID{ThreadID: "thread-1", TurnID: ""})
	if got := s.ActiveTurn("thread-1"); got != "" {
		t.Fatalf("清除后仍有 turn id: %q", got)
	}
}

func TestAppendItemTextAccumulates(t *testing.T) {
	s := NewStore()
	s.Dispatch(AppendItemText{ThreadID: "thread-1", ItemID: "item-1", Kind: ItemMessage, Role: "assistant", Delta: "Hello"})
	s.Dispatch(AppendItemText{ThreadID: "thread-1", ItemID: "item-1", Kind: ItemMessage, Role: "assistant", Delta: ", world"})

	items := s.Items("thread-1")
	if len(items) != 1 {
		t.Fatalf("delta 应落在同一条目, 实际 %d 条", len(items))
	}
	if items[0].Text != "Hello, world" {
		t.Fatalf("文本累积错误: %q", items[0].Text)
	}
}

func TestUpsertThreadItemReplacesByID(t *testing.T) {
	s := NewStore()
	s.Dispatch(UpsertThreadItem{ThreadID: "thread-1", Item: ConversationItem{ID: "item-1", Kind: ItemToolCall, Status: "inProgress"}})
	s.Dispatch(UpsertThreadItem{ThreadID: "thread-1", Item: ConversationItem{ID: "item-1", Kind: ItemToolCall, Status: "completed"}})

	items := s.Items("thread-1")
	if len(items) != 1 || items[0].Status != "completed" {
		t.Fatalf("upsert 未按 id 替换: %+v", items)
	}
}

func TestPlanReplaceAndClear(t *testing.T) {
	s := NewStore()
	s.Dispatch(SetPlan{ThreadID: "thread-1", Plan: &PlanState{
		TurnID: "turn-1",
		Steps:  []PlanStep{{Step: "first", Status: PlanStepInProgress}},
	}})
	s.Dispatch(SetPlan{ThreadID: "thread-1", Plan: &PlanState{
		TurnID: "turn-2",
		Steps:  []PlanStep{{Step: "second", Status: PlanStepPending}},
	}})

	plan := s.Plan("thread-1")
	if plan == nil || plan.TurnID != "turn-2" || plan.Steps[0].Step != "second" {
		t.Fatalf("计划应整体替换: %+v", plan)
	}

	s.Dispatch(SetPlan{ThreadID: "thread-1", Plan: nil})
	if s.Plan("thread-1") != nil {
		t.Fatal("计划未清除")
	}
}

func TestQueueKeepsSubmissionOrder(t *testing.T) {
	s := NewStore()
	s.Dispatch(EnqueueMessage{ThreadID: "thread-1", Entry: QueueEntry{ID: "q-1", Text: "first"}})
	s.Dispatch(EnqueueMessage{ThreadID: "thread-1", Entry: QueueEntry{ID: "q-2", Text: "second"}})
	s.Dispatch(EnqueueMessage{ThreadID: "thread-1", Entry: QueueEntry{ID: "q-1", Text: "first"}})

	queue := s.Queue("thread-1")
	if len(queue) != 2 {
		t.Fatalf("重复入队应被忽略, 实际 %d", len(queue))
	}
	if queue[0].Text != "first" || queue[1].Text != "second" {
		t.Fatalf("队列顺序错误: %+v", queue)
	}

	s.Dispatch(DequeueMessage{ThreadID: "thread-1", EntryID: "q-1"})
	queue = s.Queue("thread-1")
	if len(queue) != 1 || queue[0].ID != "q-2" {
		t.Fatalf("出队错误: %+v", queue)
	}
}

func TestRemoveThreadClearsActive(t *testing.T) {
	s := NewStore()
	s.Dispatch(EnsureThread{WorkspaceID: "ws-1", ThreadID: "thread-1"})
	s.Dispatch(SetActiveThreadID{WorkspaceID: "ws-1", ThreadID: "thread-1"})
	s.Dispatch(RemoveThread{WorkspaceID: "ws-1", ThreadID: "thread-1"})

	if len(s.Threads("ws-1")) != 0 {
		t.Fatal("线程未被移除")
	}
	if s.ActiveThread("ws-1") != "" {
		t.Fatal("移除激活线程后应清除激活 id")
	}
}

func TestCustomNameOverridesServerName(t *testing.T) {
	s := NewStore()
	s.Dispatch(SetThreads{
		WorkspaceID: "ws-1",
		SortKey:     SortByUpdatedAt,
		Threads:     []ThreadSummary{{ID: "thread-1", Name: "preview", UpdatedAt: 100}},
	})
	s.Dispatch(SetCustomThreadName{WorkspaceID: "ws-1", ThreadID: "thread-1", Name: "My Task"})

	// 服务端推送的名字不覆盖自定义名。
	s.Dispatch(SetThreadName{WorkspaceID: "ws-1", ThreadID: "thread-1", Name: "server preview"})
	if got := s.Threads("ws-1")[0].Name; got != "My Task" {
		t.Fatalf("自定义名被覆盖: %q", got)
	}

	// 后续列表刷新同样保留自定义名。
	s.Dispatch(SetThreads{
		WorkspaceID: "ws-1",
		SortKey:     SortByUpdatedAt,
		Threads:     []ThreadSummary{{ID: "thread-1", Name: "fresh preview", UpdatedAt: 200}},
	})
	if got := s.Threads("ws-1")[0].Name; got != "My Task" {
		t.Fatalf("刷新后自定义名丢失: %q", got)
	}
}

func TestSnapshotIsIsolatedCopy(t *testing.T) {
	s := NewStore()
	s.Dispatch(EnsureThread{WorkspaceID: "ws-1", ThreadID: "thread-1"})

	snap := s.Snapshot()
	snap.ThreadsByWorkspace["ws-1"][0].Name = "mutated"

	if s.Threads("ws-1")[0].Name == "mutated" {
		t.Fatal("快照修改泄漏回 Store")
	}
}
