package engine

import (
	"context"
	"sync"
	"testing"

	"github.com/codex-monitor/go-monitor/internal/appserver"
	"github.com/codex-monitor/go-monitor/internal/config"
	"github.com/codex-monitor/go-monitor/internal/events"
	"github.com/codex-monitor/go-monitor/internal/store"
	"github.com/codex-monitor/go-monitor/internal/threadstate"
)

// ========================================
// 假 RPC
// ========================================

type listCall struct {
	workspaceID string
	cursor      *string
}

type interruptCall struct {
	threadID string
	turnID   string
}

type fakeRPC struct {
	mu sync.Mutex

	listPages []appserver.ListThreadsPage
	listCalls []listCall

	resumes     map[string]events.Params
	resumeCalls []string
	resumeGate  chan struct{} // 非 nil 时 Resume 阻塞等待

	sendTurnID string
	sendErr    error
	sendCalls  []string
	steerCalls []string
	interrupts []interruptCall

	archives   []string
	archiveErr map[string]error

	reviewID    string
	reviewCalls []appserver.ReviewOptions

	nameCalls [][2]string
}

func newFakeRPC() *fakeRPC {
	return &fakeRPC{
		resumes:    map[string]events.Params{},
		archiveErr: map[string]error{},
	}
}

func (f *fakeRPC) StartThread(ctx context.Context, workspaceID, cwd string) (string, error) {
	return "thread-new", nil
}

func (f *fakeRPC) ForkThread(ctx context.Context, workspaceID, threadID string) (string, error) {
	return threadID + "-fork", nil
}

func (f *fakeRPC) ResumeThread(ctx context.Context, workspaceID, threadID string) (events.Params, error) {
	f.mu.Lock()
	f.resumeCalls = append(f.resumeCalls, threadID)
	gate := f.resumeGate
	thread := f.resumes[threadID]
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	if thread == nil {
		thread = events.Params{"id": threadID}
	}
	return thread, nil
}

func (f *fakeRPC) ListThreads(ctx context.Context, workspaceID string, cursor *string, limit int, sortKey string) (appserver.ListThreadsPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls = append(f.listCalls, listCall{workspaceID: workspaceID, cursor: cursor})
	if len(f.listPages) == 0 {
		return appserver.ListThreadsPage{}, nil
	}
	page := f.listPages[0]
	f.listPages = f.listPages[1:]
	return page, nil
}

func (f *fakeRPC) ArchiveThread(ctx context.Context, workspaceID, threadID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.archiveErr[threadID]; err != nil {
		return err
	}
	f.archives = append(f.archives, threadID)
	return nil
}

func (f *fakeRPC) UnarchiveThread(ctx context.Context, workspaceID, threadID string) error {
	return nil
}

func (f *fakeRPC) SetThreadName(ctx context.Context, workspaceID, threadID, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nameCalls = append(f.nameCalls, [2]string{threadID, name})
	return nil
}

func (f *fakeRPC) SendUserMessage(ctx context.Context, workspaceID, threadID, text string, images []string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sendCalls = append(f.sendCalls, text)
	return f.sendTurnID, f.sendErr
}

func (f *fakeRPC) SteerTurn(ctx context.Context, workspaceID, threadID, turnID, text string, images []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.steerCalls = append(f.steerCalls, turnID+":"+text)
	return nil
}

func (f *fakeRPC) InterruptTurn(ctx context.Context, workspaceID, threadID, turnID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.interrupts = append(f.interrupts, interruptCall{threadID: threadID, turnID: turnID})
	return nil
}

func (f *fakeRPC) StartReview(ctx context.Context, workspaceID, threadID string, opts appserver.ReviewOptions) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reviewCalls = append(f.reviewCalls, opts)
	return f.reviewID, nil
}

func (f *fakeRPC) archived() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.archives...)
}

// ========================================
// 公共脚手架
// ========================================

func testConfig() *config.Config {
	return &config.Config{
		FollowUpBehavior:  "queue",
		ReviewDelivery:    "inline",
		ThreadSortKey:     "updated_at",
		ThreadPageLimit:   100,
		ThreadListTopSize: 20,
	}
}

var testWorkspace = Workspace{ID: "ws-1", Name: "repo", Path: "/repo"}

func newTestEngine(t *testing.T, cfg *config.Config, rpc *fakeRPC, workspaces ...Workspace) *Engine {
	t.Helper()
	if cfg == nil {
		cfg = testConfig()
	}
	if len(workspaces) == 0 {
		workspaces = []Workspace{testWorkspace}
	}
	e := New(cfg, rpc, threadstate.NewStore(), store.New(nil, ""), workspaces)
	clock := int64(1_000_000)
	e.now = func() int64 {
		clock += 1000
		return clock
	}
	return e
}

// recordActions 挂动作观察者, 返回已派发动作的追加切片指针。
func recordActions(e *Engine) *[]threadstate.Action {
	var actions []threadstate.Action
	var mu sync.Mutex
	e.State().SetObserver(func(a threadstate.Action) {
		mu.Lock()
		actions = append(actions, a)
		mu.Unlock()
	})
	return &actions
}
