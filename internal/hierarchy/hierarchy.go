// hierarchy.go — 线程父子关系追踪。
// 子代通过 subagent 派生、协作工具调用或分离式审查挂到父线程下,
// 单亲多子, 不允许环。
package hierarchy

import (
	"sort"
	"sync"

	"github.com/codex-monitor/go-monitor/pkg/logger"
)

// LinkKind 父子链接来源。
type LinkKind string

const (
	KindSubagent       LinkKind = "subagent"
	KindCollab         LinkKind = "collab"
	KindDetachedReview LinkKind = "detached-review"
)

type link struct {
	parent string
	kind   LinkKind
}

// Tracker 并发安全的层级表。
type Tracker struct {
	mu    sync.RWMutex
	links map[string]link // child -> parent
}

// NewTracker 创建空层级表。
func NewTracker() *Tracker {
	return &Tracker{links: map[string]link{}}
}

// Register 登记 child -> parent 链接。自指与成环的登记被拒绝,
// 重复登记同一子代以最新一次为准。
func (t *Tracker) Register(childID, parentID string, kind LinkKind) bool {
	if childID == "" || parentID == "" || childID == parentID {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	// parent 的祖先链里不能出现 child。
	for cur := parentID; cur != ""; {
		l, ok := t.links[cur]
		if !ok {
			break
		}
		if l.parent == childID {
			logger.Warn("拒绝成环的线程链接",
				logger.FieldThreadID, childID, "parent", parentID)
			return false
		}
		cur = l.parent
	}
	t.links[childID] = link{parent: parentID, kind: kind}
	return true
}

// Parent 返回父线程 id 与链接来源, 无父返回 ("", "", false)。
func (t *Tracker) Parent(childID string) (string, LinkKind, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	l, ok := t.links[childID]
	if !ok {
		return "", "", false
	}
	return l.parent, l.kind, true
}

// IsSubagent 子代是否为 subagent/协作派生 (分离式审查不算)。
func (t *Tracker) IsSubagent(threadID string) bool {
	_, kind, ok := t.Parent(threadID)
	return ok && (kind == KindSubagent || kind == KindCollab)
}

// IsDetachedReview 线程是否是分离式审查线程。
func (t *Tracker) IsDetachedReview(threadID string) bool {
	_, kind, ok := t.Parent(threadID)
	return ok && kind == KindDetachedReview
}

// Children 直接子代, 按 id 排序。
func (t *Tracker) Children(parentID string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []string
	for child, l := range t.links {
		if l.parent == parentID {
			out = append(out, child)
		}
	}
	sort.Strings(out)
	return out
}

// Descendants 全部传递子代 (不含自身), 广度优先。
func (t *Tracker) Descendants(rootID string) []string {
	var out []string
	queue := []string{rootID}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, child := range t.Children(cur) {
			out = append(out, child)
			queue = append(queue, child)
		}
	}
	return out
}

// CascadeArchiveTargets 归档传播目标: rootID 的传递子代中跳过
// 分离式审查线程本身, 但继续向其子代传播 (审查线程派生的 subagent
// 仍随祖先一起归档)。
func (t *Tracker) CascadeArchiveTargets(rootID string) []string {
	var out []string
	queue := []string{rootID}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, child := range t.Children(cur) {
			queue = append(queue, child)
			if t.IsDetachedReview(child) {
				continue
			}
			out = append(out, child)
		}
	}
	return out
}

// ParentMap 整表快照 child -> parent。
func (t *Tracker) ParentMap() map[string]string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]string, len(t.links))
	for child, l := range t.links {
		out[child] = l.parent
	}
	return out
}

// Forget 移除子代链接。
func (t *Tracker) Forget(childID string) {
	t.mu.Lock()
	delete(t.links, childID)
	t.mu.Unlock()
}
