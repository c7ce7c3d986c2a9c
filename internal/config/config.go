// Package config 全局配置加载与管理。
//
// 所有字段通过 struct tag 声明环境变量映射:
//
//	`env:"VAR_NAME" default:"value" min:"0"`
//
// Load() 使用反射自动填充，无需手动逐行赋值。
package config

import (
	"github.com/codex-monitor/go-monitor/pkg/util"
)

// Config 应用全局配置，字段名与 .env 变量一一对应。
type Config struct {
	// App-Server
	AppServerURL        string `env:"APP_SERVER_URL" default:"ws://127.0.0.1:4450/ws"`
	AppServerCallSecs   int    `env:"APP_SERVER_CALL_TIMEOUT_SEC" default:"30" min:"1"`
	AppServerMaxRetries int    `env:"APP_SERVER_STREAM_MAX_RETRIES" default:"5" min:"0"`

	// 会话行为
	SteerEnabled      bool   `env:"STEER_ENABLED" default:"false"`
	FollowUpBehavior  string `env:"FOLLOW_UP_BEHAVIOR" default:"queue"`   // queue | steer
	ReviewDelivery    string `env:"REVIEW_DELIVERY" default:"inline"`     // inline | detached
	ThreadSortKey     string `env:"THREAD_SORT_KEY" default:"updated_at"` // updated_at | created_at
	ThreadPageLimit   int    `env:"THREAD_PAGE_LIMIT" default:"100" min:"1"`
	ThreadListTopSize int    `env:"THREAD_LIST_TOP_SIZE" default:"20" min:"1"`

	// PostgreSQL (为空时降级为内存存储)
	PostgresConnStr string `env:"POSTGRES_CONNECTION_STRING"`
	PostgresSchema  string `env:"POSTGRES_SCHEMA" default:"public"`

	// 调试 API
	DebugAPIAddr string `env:"DEBUG_API_ADDR" default:"127.0.0.1:4455"`
	DebugAPITail int    `env:"DEBUG_API_EVENT_TAIL" default:"200" min:"10"`

	// 日志
	LogLevel string `env:"LOG_LEVEL" default:"INFO"`
	LogDir   string `env:"LOG_DIR"`
	AppEnv   string `env:"APP_ENV" default:"production"`

	// 工作区清单文件
	WorkspacesFile string `env:"WORKSPACES_FILE" default:"workspaces.yaml"`
}

// Load 从环境变量加载配置 (通过反射读取 struct tag)。
func Load() *Config {
	var cfg Config
	util.LoadFromEnv(&cfg)
	return &cfg
}
