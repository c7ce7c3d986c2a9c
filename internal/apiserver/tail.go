// tail.go — 调试用的环形事件尾巴。
package apiserver

import (
	"sync"
	"time"
)

// TailEntry 尾巴里的一条记录。
type TailEntry struct {
	At          string `json:"at"`
	Source      string `json:"source"`
	WorkspaceID string `json:"workspaceId,omitempty"`
	Label       string `json:"label"`
	Payload     any    `json:"payload,omitempty"`
}

// Tail 固定容量的环形缓冲, 新记录覆盖最老的。
type Tail struct {
	mu      sync.Mutex
	entries []TailEntry
	next    int
	full    bool
}

// NewTail 创建尾巴。size 不合法时退到 200。
func NewTail(size int) *Tail {
	if size <= 0 {
		size = 200
	}
	return &Tail{entries: make([]TailEntry, size)}
}

// Append 追加一条记录, 时间戳这里统一打。
func (t *Tail) Append(source, workspaceID, label string, payload any) {
	t.mu.Lock()
	t.entries[t.next] = TailEntry{
		At:          time.Now().Format(time.RFC3339),
		Source:      source,
		WorkspaceID: workspaceID,
		Label:       label,
		Payload:     payload,
	}
	t.next = (t.next + 1) % len(t.entries)
	if t.next == 0 {
		t.full = true
	}
	t.mu.Unlock()
}

// List 按到达顺序返回当前全部记录。
func (t *Tail) List() []TailEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.full {
		return append([]TailEntry(nil), t.entries[:t.next]...)
	}
	out := make([]TailEntry, 0, len(t.entries))
	out = append(out, t.entries[t.next:]...)
	out = append(out, t.entries[:t.next]...)
	return out
}
