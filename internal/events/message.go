// message.go — 推送事件信封。
package events

import (
	"encoding/json"

	"github.com/codex-monitor/go-monitor/pkg/errors"
)

// Message 一条带工作区归属的服务端通知。
// RequestID 非 nil 时这是服务端发起的请求 (审批/用户输入), 需要回应。
type Message struct {
	WorkspaceID string
	Method      string
	Params      Params
	RequestID   any
}

// ApprovalRequest 审批类服务端请求, 按方法后缀识别。
type ApprovalRequest struct {
	WorkspaceID string
	RequestID   any
	Method      string
	Params      Params
}

type envelope struct {
	WorkspaceID string          `json:"workspace_id"`
	Message     json.RawMessage `json:"message"`
}

type wireMessage struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
	ID     any             `json:"id"`
}

// DecodeEnvelope 解码订阅推送帧。参数不是记录时置空, 不报错。
func DecodeEnvelope(raw []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Message{}, errors.Wrap(err, "events.DecodeEnvelope", "bad envelope")
	}
	var wire wireMessage
	if len(env.Message) > 0 {
		if err := json.Unmarshal(env.Message, &wire); err != nil {
			return Message{}, errors.Wrap(err, "events.DecodeEnvelope", "bad message")
		}
	}
	if wire.Method == "" {
		return Message{}, errors.Wrap(errors.ErrInvalidInput, "events.DecodeEnvelope", "missing method")
	}
	msg := Message{WorkspaceID: env.WorkspaceID, Method: wire.Method, RequestID: wire.ID}
	if len(wire.Params) > 0 {
		var params map[string]any
		if err := json.Unmarshal(wire.Params, &params); err == nil {
			msg.Params = Params(params)
		}
	}
	return msg, nil
}
