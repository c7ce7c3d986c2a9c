// threaditems.go — 线程快照到会话条目的转换与合并。
// 服务端快照 thread.turns[].items[] 的条目种类繁多, 这里归一成引擎内部的
// ConversationItem 变体; 不认识的类型丢弃, 缺字段给默认值, 不报错。
package threaditems

import (
	"strings"

	"github.com/codex-monitor/go-monitor/internal/events"
	"github.com/codex-monitor/go-monitor/internal/threadstate"
)

const previewNameLimit = 64

// BuildItems 把线程快照铺平成条目序列, 保持 turn 内与 turn 间顺序。
func BuildItems(thread events.Params) []threadstate.ConversationItem {
	var out []threadstate.ConversationItem
	for _, turn := range thread.Records("turns") {
		for _, raw := range turn.Records("items") {
			if item, ok := FromRaw(raw); ok {
				out = append(out, item)
			}
		}
	}
	return out
}

// FromRaw 归一单条服务端条目。turnContext 等非会话条目返回 ok=false。
func FromRaw(raw events.Params) (threadstate.ConversationItem, bool) {
	id := raw.TrimmedStr("id")
	itemType := raw.TrimmedStr("type")
	if itemType == "" {
		itemType = raw.Record("details").TrimmedStr("type")
	}

	switch itemType {
	case "userMessage":
		return threadstate.ConversationItem{
			ID:   id,
			Kind: threadstate.ItemMessage,
			Role: "user",
			Text: messageText(raw),
		}, true
	case "agentMessage":
		return threadstate.ConversationItem{
			ID:   id,
			Kind: threadstate.ItemMessage,
			Role: "assistant",
			Text: messageText(raw),
		}, true
	case "reasoning":
		text := raw.Str("text")
		if text == "" {
			text = raw.Str("summary")
		}
		return threadstate.ConversationItem{
			ID:   id,
			Kind: threadstate.ItemReasoning,
			Text: text,
		}, true
	case "commandExecution":
		item := threadstate.ConversationItem{
			ID:      id,
			Kind:    threadstate.ItemToolCall,
			Command: raw.Str("command"),
			Status:  raw.TrimmedStr("status"),
		}
		item.Output = raw.Str("aggregatedOutput")
		if item.Output == "" {
			item.Output = raw.Str("output")
		}
		if v, ok := raw.Value("exitCode"); ok {
			if f, isNum := v.(float64); isNum {
				code := int(f)
				item.ExitCode = &code
			}
		}
		return item, true
	case "fileChange":
		item := threadstate.ConversationItem{
			ID:     id,
			Kind:   threadstate.ItemFileChange,
			Status: raw.TrimmedStr("status"),
		}
		for _, change := range raw.Records("changes") {
			if path := change.TrimmedStr("path"); path != "" {
				item.Files = append(item.Files, path)
			}
		}
		return item, true
	case "mcpToolCall", "toolCall", "collabToolCall", "webSearch":
		text := raw.TrimmedStr("title")
		if text == "" {
			text = raw.TrimmedStr("tool")
		}
		if text == "" {
			text = raw.TrimmedStr("query")
		}
		return threadstate.ConversationItem{
			ID:     id,
			Kind:   threadstate.ItemToolCall,
			Text:   text,
			Status: raw.TrimmedStr("status"),
		}, true
	case "enteredReviewMode", "exitedReviewMode":
		return threadstate.ConversationItem{
			ID:     id,
			Kind:   threadstate.ItemReview,
			Status: itemType,
			Text:   raw.Str("review"),
		}, true
	case "explore":
		return threadstate.ConversationItem{
			ID:   id,
			Kind: threadstate.ItemExplore,
			Text: raw.Str("summary"),
		}, true
	}
	return threadstate.ConversationItem{}, false
}

// MergeItems 合并远端快照与本地累积条目: 以远端为基底, 本地独有的条目
// (通常是快照之后新到的流式内容) 按原顺序补在末尾。
func MergeItems(local, remote []threadstate.ConversationItem) []threadstate.ConversationItem {
	merged := append([]threadstate.ConversationItem(nil), remote...)
	seen := make(map[string]bool, len(remote))
	for _, it := range remote {
		seen[it.ID] = true
	}
	for _, it := range local {
		if !seen[it.ID] {
			merged = append(merged, it)
		}
	}
	return merged
}

// IsReviewing 快照中存在未配对的 enteredReviewMode 时为真。
func IsReviewing(thread events.Params) bool {
	reviewing := false
	for _, turn := range thread.Records("turns") {
		for _, raw := range turn.Records("items") {
			switch raw.TrimmedStr("type") {
			case "enteredReviewMode":
				reviewing = true
			case "exitedReviewMode":
				reviewing = false
			}
		}
	}
	return reviewing
}

// PreviewName 线程显示名: preview 优先, 否则取第一条用户消息截断。
func PreviewName(thread events.Params) string {
	if preview := thread.TrimmedStr("preview"); preview != "" {
		return truncateName(preview)
	}
	for _, turn := range thread.Records("turns") {
		for _, raw := range turn.Records("items") {
			if raw.TrimmedStr("type") == "userMessage" {
				if text := strings.TrimSpace(messageText(raw)); text != "" {
					return truncateName(text)
				}
			}
		}
	}
	return ""
}

// Timestamp 线程更新时间 (Unix 毫秒), 取不到返回 0。
func Timestamp(thread events.Params) int64 {
	return thread.Int64("updatedAt")
}

// CreatedTimestamp 线程创建时间 (Unix 毫秒), 取不到返回 0。
func CreatedTimestamp(thread events.Params) int64 {
	return thread.Int64("createdAt")
}

// LastAgentText 快照中最后一条 assistant 消息文本, 没有返回 ""。
func LastAgentText(items []threadstate.ConversationItem) string {
	for i := len(items) - 1; i >= 0; i-- {
		if items[i].Kind == threadstate.ItemMessage && items[i].Role == "assistant" {
			return items[i].Text
		}
	}
	return ""
}

func messageText(raw events.Params) string {
	if text := raw.Str("text"); text != "" {
		return text
	}
	var b strings.Builder
	for _, part := range raw.Records("content") {
		if part.TrimmedStr("type") == "text" || part.Str("text") != "" {
			b.WriteString(part.Str("text"))
		}
	}
	return b.String()
}

func truncateName(s string) string {
	if line, _, found := strings.Cut(s, "\n"); found {
		s = strings.TrimSpace(line)
	}
	runes := []rune(s)
	if len(runes) <= previewNameLimit {
		return s
	}
	return strings.TrimSpace(string(runes[:previewNameLimit])) + "…"
}
