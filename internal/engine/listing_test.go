package engine

import (
	"context"
	"fmt"
	"testing"

	"github.com/codex-monitor/go-monitor/internal/appserver"
	"github.com/codex-monitor/go-monitor/internal/events"
	"github.com/codex-monitor/go-monitor/internal/threadstate"
)

func listRow(id, cwd string, updatedAt int64) events.Params {
	return events.Params{
		"id":        id,
		"preview":   "preview " + id,
		"cwd":       cwd,
		"updatedAt": float64(updatedAt),
	}
}

func TestRefreshThreadsSortsAndStoresCursor(t *testing.T) {
	rpc := newFakeRPC()
	rpc.listPages = []appserver.ListThreadsPage{{
		Threads: []events.Params{
			listRow("thread-a", "/repo", 100),
			listRow("thread-b", "/repo/sub", 300),
			listRow("thread-c", "/repo", 200),
			listRow("thread-x", "/elsewhere", 999),
		},
		NextCursor: "cursor-1",
	}}
	e := newTestEngine(t, nil, rpc)
	actions := recordActions(e)

	if err := e.RefreshThreads(context.Background(), "ws-1", ListOptions{}); err != nil {
		t.Fatalf("刷新失败: %v", err)
	}

	threads := e.State().Threads("ws-1")
	want := []string{"thread-b", "thread-c", "thread-a"}
	if len(threads) != len(want) {
		t.Fatalf("归属过滤错误: %+v", threads)
	}
	for i, id := range want {
		if threads[i].ID != id {
			t.Fatalf("位置 %d 期望 %s, 实际 %s", i, id, threads[i].ID)
		}
	}
	if got := e.State().Cursor("ws-1"); got != "cursor-1" {
		t.Fatalf("游标未存储: %q", got)
	}

	var sawLoadingTrue, sawLoadingFalse bool
	for _, a := range *actions {
		if l, ok := a.(threadstate.SetThreadListLoading); ok {
			if l.IsLoading {
				sawLoadingTrue = true
			} else {
				sawLoadingFalse = true
			}
		}
	}
	if !sawLoadingTrue || !sawLoadingFalse {
		t.Fatal("刷新应翻转列表 loading")
	}

	// 静默刷新不碰 loading。
	*actions = nil
	rpc.listPages = []appserver.ListThreadsPage{{}}
	if err := e.RefreshThreads(context.Background(), "ws-1", ListOptions{PreserveState: true}); err != nil {
		t.Fatalf("静默刷新失败: %v", err)
	}
	for _, a := range *actions {
		if _, ok := a.(threadstate.SetThreadListLoading); ok {
			t.Fatal("PreserveState 不应派发 loading")
		}
	}
}

func TestRefreshPersistsActivity(t *testing.T) {
	rpc := newFakeRPC()
	rpc.listPages = []appserver.ListThreadsPage{{
		Threads: []events.Params{listRow("thread-1", "/repo", 5000)},
	}}
	e := newTestEngine(t, nil, rpc)

	if err := e.RefreshThreads(context.Background(), "ws-1", ListOptions{}); err != nil {
		t.Fatalf("刷新失败: %v", err)
	}
	activity, err := e.persist.LoadThreadActivity(context.Background())
	if err != nil {
		t.Fatalf("读活动表失败: %v", err)
	}
	if activity["ws-1"]["thread-1"] != 5000 {
		t.Fatalf("活动表未落盘: %v", activity)
	}
}

func TestRefreshKeepsActiveAnchorWithFreshData(t *testing.T) {
	// 21 行, 窗口 20, 激活线程是最旧的一行: 应以本次拉取的新数据补回。
	var rows []events.Params
	for i := 1; i <= 21; i++ {
		rows = append(rows, listRow(fmt.Sprintf("thread-%d", i), "/repo", int64(100000-i)))
	}
	rows[20]["preview"] = "fresh name for 21"

	rpc := newFakeRPC()
	rpc.listPages = []appserver.ListThreadsPage{{Threads: rows}}
	e := newTestEngine(t, nil, rpc)
	e.State().Dispatch(threadstate.SetActiveThreadID{WorkspaceID: "ws-1", ThreadID: "thread-21"})

	if err := e.RefreshThreads(context.Background(), "ws-1", ListOptions{}); err != nil {
		t.Fatalf("刷新失败: %v", err)
	}

	threads := e.State().Threads("ws-1")
	if len(threads) != 21 {
		t.Fatalf("窗口 20 + 锚点 1, 实际 %d", len(threads))
	}
	var anchor *threadstate.ThreadSummary
	for i := range threads {
		if threads[i].ID == "thread-21" {
			anchor = &threads[i]
		}
	}
	if anchor == nil {
		t.Fatal("激活线程被窗口挤掉")
	}
	if anchor.Name != "fresh name for 21" {
		t.Fatalf("锚点应使用本次拉取的新数据: %q", anchor.Name)
	}
}

func TestLoadOlderFromSentinelCursor(t *testing.T) {
	rpc := newFakeRPC()
	rpc.listPages = []appserver.ListThreadsPage{{
		Threads: []events.Params{listRow("thread-2", "/repo", 4000)},
	}}
	e := newTestEngine(t, nil, rpc)
	e.State().DispatchAll(
		threadstate.SetThreads{
			WorkspaceID: "ws-1",
			SortKey:     threadstate.SortByUpdatedAt,
			Threads:     []threadstate.ThreadSummary{{ID: "thread-1", Name: "one", UpdatedAt: 6000}},
		},
		threadstate.SetThreadListCursor{WorkspaceID: "ws-1", Cursor: threadstate.PageStartCursor},
	)

	if err := e.LoadOlderThreads(context.Background(), "ws-1"); err != nil {
		t.Fatalf("翻页失败: %v", err)
	}
	if rpc.listCalls[0].cursor != nil {
		t.Fatalf("哨兵游标应按 nil 发送, 实际 %v", *rpc.listCalls[0].cursor)
	}

	threads := e.State().Threads("ws-1")
	if len(threads) != 2 || threads[0].ID != "thread-1" || threads[1].ID != "thread-2" {
		t.Fatalf("老条目应续在尾部: %+v", threads)
	}
	if e.State().Cursor("ws-1") != "" {
		t.Fatal("翻到底后游标应清空")
	}
}

func TestLoadOlderUsesStoredCursor(t *testing.T) {
	rpc := newFakeRPC()
	rpc.listPages = []appserver.ListThreadsPage{{NextCursor: "cursor-2"}}
	e := newTestEngine(t, nil, rpc)
	e.State().Dispatch(threadstate.SetThreadListCursor{WorkspaceID: "ws-1", Cursor: "cursor-1"})

	if err := e.LoadOlderThreads(context.Background(), "ws-1"); err != nil {
		t.Fatalf("翻页失败: %v", err)
	}
	if rpc.listCalls[0].cursor == nil || *rpc.listCalls[0].cursor != "cursor-1" {
		t.Fatal("应携带存储的游标")
	}
	if e.State().Cursor("ws-1") != "cursor-2" {
		t.Fatal("新游标未存储")
	}
}

func TestNestedWorkspaceAbsorption(t *testing.T) {
	parent := Workspace{ID: "ws-parent", Path: "/repo"}
	child := Workspace{ID: "ws-child", Path: "/repo/child"}

	rpc := newFakeRPC()
	rpc.listPages = []appserver.ListThreadsPage{{
		Threads: []events.Params{
			listRow("thread-direct", "/repo/cmd", 200),
			listRow("thread-nested", "/repo/child/pkg", 100),
		},
	}}
	e := newTestEngine(t, nil, rpc, parent, child)

	if err := e.RefreshThreads(context.Background(), "ws-parent", ListOptions{}); err != nil {
		t.Fatalf("刷新失败: %v", err)
	}
	threads := e.State().Threads("ws-parent")
	if len(threads) != 1 || threads[0].ID != "thread-direct" {
		t.Fatalf("更深的工作区根应吸收嵌套行: %+v", threads)
	}
}

func TestRefreshAllWorkspacesSinglePagedSequence(t *testing.T) {
	wsA := Workspace{ID: "ws-a", Path: "/alpha"}
	wsB := Workspace{ID: "ws-b", Path: "/beta"}

	rpc := newFakeRPC()
	rpc.listPages = []appserver.ListThreadsPage{
		{
			Threads: []events.Params{
				listRow("thread-a1", "/alpha", 300),
				listRow("thread-b1", "/beta", 200),
			},
			NextCursor: "cursor-1",
		},
		{
			Threads: []events.Params{listRow("thread-a2", "/alpha/sub", 100)},
		},
	}
	e := newTestEngine(t, nil, rpc, wsA, wsB)

	if err := e.RefreshAllWorkspaces(context.Background(), ListOptions{}); err != nil {
		t.Fatalf("批量刷新失败: %v", err)
	}

	if len(rpc.listCalls) != 2 {
		t.Fatalf("应跑一条分页序列, 实际 %d 次调用", len(rpc.listCalls))
	}
	for _, c := range rpc.listCalls {
		if c.workspaceID != "ws-a" {
			t.Fatalf("分页序列应固定用第一个工作区发起, 实际 %s", c.workspaceID)
		}
	}
	if rpc.listCalls[1].cursor == nil || *rpc.listCalls[1].cursor != "cursor-1" {
		t.Fatal("第二页应携带上一页游标")
	}

	threadsA := e.State().Threads("ws-a")
	if len(threadsA) != 2 {
		t.Fatalf("ws-a 应分到 2 行: %+v", threadsA)
	}
	threadsB := e.State().Threads("ws-b")
	if len(threadsB) != 1 || threadsB[0].ID != "thread-b1" {
		t.Fatalf("ws-b 分摊错误: %+v", threadsB)
	}
}

func TestListRowMetadataCallback(t *testing.T) {
	rpc := newFakeRPC()
	row := listRow("thread-1", "/repo", 100)
	row["model"] = "gpt-5-codex"
	row["reasoning_effort"] = "medium"
	rpc.listPages = []appserver.ListThreadsPage{{Threads: []events.Params{row}}}

	e := newTestEngine(t, nil, rpc)
	var got ThreadMetadata
	e.OnMetadata = func(_, threadID string, meta ThreadMetadata) {
		if threadID == "thread-1" {
			got = meta
		}
	}
	if err := e.RefreshThreads(context.Background(), "ws-1", ListOptions{}); err != nil {
		t.Fatalf("刷新失败: %v", err)
	}
	if got.ModelID != "gpt-5-codex" || got.ReasoningEffort != "medium" {
		t.Fatalf("列表行元数据回调错误: %+v", got)
	}
}
