// client.go — app-server JSON-RPC 传输层。
//
// app-server 使用 JSON-RPC 2.0 (WebSocket):
//   - Client → Server: {jsonrpc,id,method,params} (请求) 或 {jsonrpc,method,params} (通知)
//   - Server → Client: {jsonrpc,id,result} (响应)、带 id 的服务端请求 (审批),
//     或 {workspace_id,message} 信封包裹的推送通知
package appserver

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/codex-monitor/go-monitor/internal/events"
	apperrors "github.com/codex-monitor/go-monitor/pkg/errors"
	"github.com/codex-monitor/go-monitor/pkg/logger"
	"github.com/codex-monitor/go-monitor/pkg/util"
)

// ========================================
// JSON-RPC 2.0 信封
// ========================================

// jsonRPCRequest JSON-RPC 2.0 请求。
type jsonRPCRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// jsonRPCMessage JSON-RPC 通用消息 (用于读取解析)。
type jsonRPCMessage struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *int64          `json:"id,omitempty"` // nil = 通知
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *jsonRPCError   `json:"error,omitempty"`
}

// jsonRPCError JSON-RPC 错误。
type jsonRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// jsonRPCResponse 回复服务端请求 (审批/用户输入)。
type jsonRPCResponse struct {
	JSONRPC string `json:"jsonrpc"`
	ID      any    `json:"id"`
	Result  any    `json:"result,omitempty"`
}

// pendingCall 等待响应的 JSON-RPC 调用。
type pendingCall struct {
	result json.RawMessage
	err    error
	done   chan struct{}
}

// ========================================
// Client
// ========================================

// MessageHandler 推送通知回调, 在读循环 goroutine 上被调用。
type MessageHandler func(events.Message)

// Client app-server JSON-RPC 客户端, 断线后自动重连。
type Client struct {
	url         string
	callTimeout time.Duration
	maxRetries  int

	ws          *websocket.Conn
	wsMu        sync.Mutex
	handler     MessageHandler
	handlerMu   sync.RWMutex
	onReconnect func()
	stopped     atomic.Bool
	ctx         context.Context
	cancel      context.CancelFunc

	nextID  atomic.Int64
	pending sync.Map // id → *pendingCall
}

// NewClient 创建客户端, 不建立连接。
func NewClient(url string, callTimeout time.Duration, maxRetries int) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	if callTimeout <= 0 {
		callTimeout = 30 * time.Second
	}
	if maxRetries <= 0 {
		maxRetries = 5
	}
	return &Client{
		url:         url,
		callTimeout: callTimeout,
		maxRetries:  maxRetries,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// SetHandler 注册推送通知回调。
func (c *Client) SetHandler(h MessageHandler) {
	c.handlerMu.Lock()
	c.handler = h
	c.handlerMu.Unlock()
}

// SetOnReconnect 注册重连成功回调, 由上层补做状态对账。
func (c *Client) SetOnReconnect(fn func()) {
	c.handlerMu.Lock()
	c.onReconnect = fn
	c.handlerMu.Unlock()
}

// Connect 建立 WebSocket 连接并启动读循环。
func (c *Client) Connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	ws, _, err := dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return apperrors.Wrapf(err, "Client.Connect", "dial %s", c.url)
	}
	c.wsMu.Lock()
	c.ws = ws
	c.wsMu.Unlock()
	logger.Info("app-server 已连接", logger.FieldAddr, c.url)
	util.SafeGo(func() { c.readLoop(ws) })
	return nil
}

// Close 停止客户端并关闭连接。
func (c *Client) Close() error {
	c.stopped.Store(true)
	c.cancel()
	c.wsMu.Lock()
	defer c.wsMu.Unlock()
	if c.ws != nil {
		return c.ws.Close()
	}
	return nil
}

// Call 发送 JSON-RPC 请求并等待响应。
func (c *Client) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	id := c.nextID.Add(1)
	req := jsonRPCRequest{JSONRPC: "2.0", ID: id, Method: method, Params: params}

	pc := &pendingCall{done: make(chan struct{})}
	c.pending.Store(id, pc)
	defer c.pending.Delete(id)

	if err := c.writeJSON(req); err != nil {
		return nil, err
	}

	timer := time.NewTimer(c.callTimeout)
	defer timer.Stop()
	select {
	case <-pc.done:
		return pc.result, pc.err
	case <-timer.C:
		return nil, apperrors.Wrapf(apperrors.ErrTimeout, "Client.Call", "%s timeout", method)
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.ctx.Done():
		return nil, c.ctx.Err()
	}
}

// Respond 回复服务端发来的请求 (审批/用户输入)。
func (c *Client) Respond(id any, result any) error {
	return c.writeJSON(jsonRPCResponse{JSONRPC: "2.0", ID: id, Result: result})
}

func (c *Client) writeJSON(v any) error {
	c.wsMu.Lock()
	defer c.wsMu.Unlock()
	if c.ws == nil {
		return apperrors.Wrap(apperrors.ErrClosed, "Client.writeJSON", "not connected")
	}
	if err := c.ws.WriteJSON(v); err != nil {
		return apperrors.Wrap(err, "Client.writeJSON", "write frame")
	}
	return nil
}

// ========================================
// 读循环与重连
// ========================================

func (c *Client) readLoop(ws *websocket.Conn) {
	defer func() {
		_ = ws.Close()
		if !c.stopped.Load() {
			util.SafeGo(c.reconnectLoop)
		}
	}()

	for !c.stopped.Load() {
		_, message, err := ws.ReadMessage()
		if err != nil {
			if !c.stopped.Load() {
				logger.Warn("读循环中断", logger.FieldError, err)
			}
			return
		}
		c.handleFrame(message)
	}
}

func (c *Client) handleFrame(raw []byte) {
	var msg jsonRPCMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		logger.Warn("无法解析的 JSON-RPC 帧",
			logger.FieldError, err,
			logger.FieldLen, len(raw),
		)
		return
	}

	// Response: 交给 pending call。先摘除表项, 服务端重复回包时不会二次 close。
	if msg.ID != nil && msg.Method == "" {
		if v, ok := c.pending.LoadAndDelete(*msg.ID); ok {
			pc := v.(*pendingCall)
			if msg.Error != nil {
				pc.err = apperrors.Newf("Client.call",
					"rpc error %d: %s", msg.Error.Code, msg.Error.Message)
			} else {
				pc.result = msg.Result
			}
			close(pc.done)
		}
		return
	}

	// 直连形式的通知/服务端请求。
	if msg.Method != "" {
		out := events.Message{Method: msg.Method}
		if msg.ID != nil {
			out.RequestID = *msg.ID
		}
		if len(msg.Params) > 0 {
			var params map[string]any
			if json.Unmarshal(msg.Params, &params) == nil {
				out.Params = events.Params(params)
			}
		}
		c.deliver(out)
		return
	}

	// 信封形式的推送。
	if out, err := events.DecodeEnvelope(raw); err == nil {
		c.deliver(out)
		return
	}
	logger.Debug("忽略未知帧", logger.FieldLen, len(raw))
}

func (c *Client) deliver(msg events.Message) {
	c.handlerMu.RLock()
	h := c.handler
	c.handlerMu.RUnlock()
	if h != nil {
		h(msg)
	}
}

func (c *Client) reconnectLoop() {
	backoff := time.Second
	for attempt := 1; attempt <= c.maxRetries && !c.stopped.Load(); attempt++ {
		select {
		case <-time.After(backoff):
		case <-c.ctx.Done():
			return
		}
		if err := c.Connect(c.ctx); err != nil {
			logger.Warn("重连失败",
				logger.FieldError, err,
				logger.FieldCount, attempt,
			)
			backoff *= 2
			if backoff > 30*time.Second {
				backoff = 30 * time.Second
			}
			continue
		}
		c.handlerMu.RLock()
		fn := c.onReconnect
		c.handlerMu.RUnlock()
		if fn != nil {
			util.SafeGo(fn)
		}
		return
	}
	if !c.stopped.Load() {
		logger.Error("重连次数耗尽", logger.FieldAddr, c.url)
	}
}
