// match.go — 线程行到工作区的归属判定。
// 快照里的 cwd 可能来自 Windows (反斜杠、\\?\ 前缀) 或大小写不一的路径,
// 归一后做精确或前缀匹配; 嵌套工作区由更深的根吸收。
package engine

import (
	"strings"

	"github.com/codex-monitor/go-monitor/internal/events"
)

// normalizePath 路径归一: 去空白、剥 \\?\ 前缀、反斜杠转斜杠、
// 小写化、去尾部斜杠。
func normalizePath(p string) string {
	p = strings.TrimSpace(p)
	p = strings.TrimPrefix(p, `\\?\`)
	p = strings.ReplaceAll(p, `\`, "/")
	p = strings.ToLower(p)
	for len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimSuffix(p, "/")
	}
	return p
}

// pathWithinRoot cwd 是否等于 root 或位于 root 之下。
func pathWithinRoot(cwd, root string) bool {
	if cwd == "" || root == "" {
		return false
	}
	if cwd == root {
		return true
	}
	return strings.HasPrefix(cwd, root+"/")
}

// threadCwd 从线程行提取 cwd。
func threadCwd(thread events.Params) string {
	if cwd := thread.TrimmedStr("cwd"); cwd != "" {
		return cwd
	}
	return thread.Record("source").TrimmedStr("cwd")
}

// matchWorkspace 判定线程行是否归属 target。
// 必须拿全部工作区比对: cwd 同时落在嵌套的两个根下时,
// 归更深的那个, 浅根不得认领。
func matchWorkspace(thread events.Params, target Workspace, all []Workspace) bool {
	cwd := normalizePath(threadCwd(thread))
	if cwd == "" {
		return false
	}
	targetRoot := normalizePath(target.Path)
	if !pathWithinRoot(cwd, targetRoot) {
		return false
	}
	for _, ws := range all {
		if ws.ID == target.ID {
			continue
		}
		root := normalizePath(ws.Path)
		if len(root) > len(targetRoot) && pathWithinRoot(cwd, root) && pathWithinRoot(root, targetRoot) {
			return false
		}
	}
	return true
}

// attributeWorkspace 返回线程行归属的工作区, 无归属返回 ok=false。
func attributeWorkspace(thread events.Params, all []Workspace) (Workspace, bool) {
	cwd := normalizePath(threadCwd(thread))
	if cwd == "" {
		return Workspace{}, false
	}
	var best Workspace
	bestLen := -1
	for _, ws := range all {
		root := normalizePath(ws.Path)
		if pathWithinRoot(cwd, root) && len(root) > bestLen {
			best = ws
			bestLen = len(root)
		}
	}
	return best, bestLen >= 0
}
