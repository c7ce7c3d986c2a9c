package store

import (
	"context"
	"testing"
)

// 内存模式 (pool == nil) 下的行为测试。库模式走同一套调用面。

func TestThreadActivityRoundTrip(t *testing.T) {
	s := New(nil, "")
	ctx := context.Background()
	if err := s.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	if err := s.SaveThreadActivity(ctx, "ws-1", "thread-1", 1000); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.SaveThreadActivity(ctx, "ws-1", "thread-1", 2000); err != nil {
		t.Fatalf("save overwrite: %v", err)
	}
	if err := s.SaveThreadActivity(ctx, "ws-2", "thread-9", 500); err != nil {
		t.Fatalf("save ws-2: %v", err)
	}
	// 空 id 静默忽略。
	if err := s.SaveThreadActivity(ctx, "", "thread-1", 1); err != nil {
		t.Fatalf("empty ws: %v", err)
	}

	activity, err := s.LoadThreadActivity(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if activity["ws-1"]["thread-1"] != 2000 {
		t.Fatalf("活动时间应为最后一次写入: %v", activity)
	}
	if activity["ws-2"]["thread-9"] != 500 {
		t.Fatalf("跨工作区记录丢失: %v", activity)
	}
	if _, ok := activity[""]; ok {
		t.Fatal("空工作区不应入表")
	}
}

func TestReviewLinkRoundTrip(t *testing.T) {
	s := New(nil, "")
	ctx := context.Background()

	link := ReviewLink{WorkspaceID: "ws-1", ReviewThreadID: "review-1", ParentThreadID: "thread-1"}
	if err := s.SaveReviewLink(ctx, link); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.SaveReviewLink(ctx, ReviewLink{WorkspaceID: "ws-1", ReviewThreadID: "review-1"}); err == nil {
		t.Fatal("缺 parent 的链接应被拒绝")
	}

	links, err := s.LoadReviewLinks(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(links) != 1 || links[0] != link {
		t.Fatalf("链接读回不一致: %+v", links)
	}

	if err := s.DeleteReviewLink(ctx, "review-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	links, _ = s.LoadReviewLinks(ctx)
	if len(links) != 0 {
		t.Fatal("删除后仍有链接")
	}
}

func TestCustomNameClear(t *testing.T) {
	s := New(nil, "")
	ctx := context.Background()

	if err := s.SaveCustomName(ctx, "ws-1", "thread-1", "My Task"); err != nil {
		t.Fatalf("save: %v", err)
	}
	names, _ := s.LoadCustomNames(ctx)
	if names["ws-1|thread-1"] != "My Task" {
		t.Fatalf("名字读回失败: %v", names)
	}

	if err := s.SaveCustomName(ctx, "ws-1", "thread-1", ""); err != nil {
		t.Fatalf("clear: %v", err)
	}
	names, _ = s.LoadCustomNames(ctx)
	if len(names) != 0 {
		t.Fatal("空名应清除记录")
	}
}

func TestThreadPins(t *testing.T) {
	s := New(nil, "")
	ctx := context.Background()

	if err := s.SaveThreadPin(ctx, "ws-1", "thread-1", 3000); err != nil {
		t.Fatalf("pin: %v", err)
	}
	pins, _ := s.LoadThreadPins(ctx)
	if pins["ws-1|thread-1"] != 3000 {
		t.Fatalf("置顶读回失败: %v", pins)
	}

	if err := s.SaveThreadPin(ctx, "ws-1", "thread-1", 0); err != nil {
		t.Fatalf("unpin: %v", err)
	}
	pins, _ = s.LoadThreadPins(ctx)
	if len(pins) != 0 {
		t.Fatal("取消置顶后仍有记录")
	}
}
