// errors_test.go — 验证 AppError / Wrap / Wrapf 的行为契约。
package errors

import (
	"errors"
	"io"
	"strings"
	"testing"
)

// TestWrapUnwrap 验证 Wrap 保留原始错误链，errors.Is 和 errors.As 正常工作。
func TestWrapUnwrap(t *testing.T) {
	original := ErrNotFound
	wrapped := Wrap(original, "Store.LoadLinks", "links not found")

	if !errors.Is(wrapped, ErrNotFound) {
		t.Errorf("errors.Is(wrapped, ErrNotFound) = false, want true")
	}
	if errors.Is(wrapped, ErrTimeout) {
		t.Errorf("errors.Is(wrapped, ErrTimeout) = true, want false")
	}

	var appErr *AppError
	if !errors.As(wrapped, &appErr) {
		t.Fatalf("errors.As failed to extract *AppError")
	}
	if appErr.Op != "Store.LoadLinks" {
		t.Errorf("Op = %q, want %q", appErr.Op, "Store.LoadLinks")
	}
	if appErr.Message != "links not found" {
		t.Errorf("Message = %q, want %q", appErr.Message, "links not found")
	}
}

// TestWrapErrorString 验证 Error() 输出包含 op、message 和 cause。
func TestWrapErrorString(t *testing.T) {
	cause := io.ErrUnexpectedEOF
	wrapped := Wrap(cause, "Client.ReadLoop", "read failed")

	s := wrapped.Error()
	for _, want := range []string{"Client.ReadLoop", "read failed", "unexpected EOF"} {
		if !strings.Contains(s, want) {
			t.Errorf("Error() = %q, missing %q", s, want)
		}
	}
}

// TestWrapfFormat 验证 Wrapf 格式化消息。
func TestWrapfFormat(t *testing.T) {
	cause := ErrInvalidInput
	wrapped := Wrapf(cause, "Engine.SendMessage", "thread %s invalid turn %d", "t-1", -1)

	var appErr *AppError
	if !errors.As(wrapped, &appErr) {
		t.Fatal("errors.As failed")
	}
	if !strings.Contains(appErr.Message, "thread t-1 invalid turn -1") {
		t.Errorf("Message = %q, want to contain 'thread t-1 invalid turn -1'", appErr.Message)
	}
}

// TestDoubleWrap 验证二次包装时 errors.Is 仍能找到最深层哨兵。
func TestDoubleWrap(t *testing.T) {
	inner := Wrap(ErrClosed, "Client.Call", "ws closed")
	outer := Wrap(inner, "Engine.ResumeThread", "resume failed")

	if !errors.Is(outer, ErrClosed) {
		t.Error("errors.Is(outer, ErrClosed) = false after double wrap")
	}

	var appErr *AppError
	if !errors.As(outer, &appErr) {
		t.Fatal("errors.As failed on outer")
	}
	if appErr.Op != "Engine.ResumeThread" {
		t.Errorf("Op = %q, want Engine.ResumeThread", appErr.Op)
	}
}
