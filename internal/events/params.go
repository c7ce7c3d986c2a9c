// params.go — 通知参数的宽松读取。
// 服务端字段命名在 camelCase 与 snake_case 之间摇摆, 读取时先按原键取,
// 取不到再按派生的 snake_case 键取。字段缺失或类型不符时给默认值, 不报错。
package events

import (
	"encoding/json"
	"strconv"
	"strings"
	"unicode"
)

// Params 一次通知的参数记录。
type Params map[string]any

// Value 取原始值, camelCase 键缺失时回退 snake_case。
func (p Params) Value(key string) (any, bool) {
	if p == nil {
		return nil, false
	}
	if v, ok := p[key]; ok {
		return v, true
	}
	if snake := toSnakeKey(key); snake != key {
		if v, ok := p[snake]; ok {
			return v, true
		}
	}
	return nil, false
}

// Str 字符串读取。数字与布尔被转成字符串, 记录和列表视为缺失。
func (p Params) Str(key string) string {
	v, ok := p.Value(key)
	if !ok {
		return ""
	}
	return coerceString(v)
}

// TrimmedStr 去除首尾空白的字符串读取。
func (p Params) TrimmedStr(key string) string {
	return strings.TrimSpace(p.Str(key))
}

// Int64 数值读取, 接受数字或十进制数字字符串, 否则 0。
func (p Params) Int64(key string) int64 {
	v, ok := p.Value(key)
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case float64:
		return int64(n)
	case int64:
		return n
	case int:
		return int64(n)
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i
		}
		if f, err := n.Float64(); err == nil {
			return int64(f)
		}
	case string:
		if i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64); err == nil {
			return i
		}
		if f, err := strconv.ParseFloat(strings.TrimSpace(n), 64); err == nil {
			return int64(f)
		}
	}
	return 0
}

// Bool 布尔读取, 非布尔视为 false。
func (p Params) Bool(key string) bool {
	v, ok := p.Value(key)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// Record 嵌套记录读取, 非记录返回 nil。
func (p Params) Record(key string) Params {
	v, ok := p.Value(key)
	if !ok {
		return nil
	}
	return AsRecord(v)
}

// List 列表读取, 非列表返回 nil。
func (p Params) List(key string) []any {
	v, ok := p.Value(key)
	if !ok {
		return nil
	}
	list, _ := v.([]any)
	return list
}

// Records 记录列表读取, 跳过非记录元素。
func (p Params) Records(key string) []Params {
	list := p.List(key)
	if len(list) == 0 {
		return nil
	}
	out := make([]Params, 0, len(list))
	for _, v := range list {
		if rec := AsRecord(v); rec != nil {
			out = append(out, rec)
		}
	}
	return out
}

// AsRecord 把任意值转为 Params, 失败返回 nil。
func AsRecord(v any) Params {
	switch m := v.(type) {
	case map[string]any:
		return Params(m)
	case Params:
		return m
	}
	return nil
}

func coerceString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(s, 10)
	case int:
		return strconv.Itoa(s)
	case json.Number:
		return s.String()
	case bool:
		return strconv.FormatBool(s)
	}
	return ""
}

// toSnakeKey camelCase → snake_case。已经是 snake_case 的键原样返回。
func toSnakeKey(key string) string {
	var b strings.Builder
	for i, r := range key {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
