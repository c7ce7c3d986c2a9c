// safego.go — 安全 goroutine 启动器，捕获 panic 防止进程崩溃。
package util

import (
	"runtime/debug"

	"github.com/codex-monitor/go-monitor/pkg/logger"
)

// SafeGo 在新 goroutine 中安全执行 fn，捕获 panic 并记录日志 + 堆栈。
func SafeGo(fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("goroutine panicked",
					logger.FieldError, r,
					"stack", string(debug.Stack()),
				)
			}
		}()
		fn()
	}()
}

// SafeCall 在当前 goroutine 同步执行 fn，捕获 panic 并记录日志 + 堆栈。
// 用于事件回调等不能打断调用方循环的场景。
func SafeCall(label string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("callback panicked",
				"label", label,
				logger.FieldError, r,
				"stack", string(debug.Stack()),
			)
		}
	}()
	fn()
}
