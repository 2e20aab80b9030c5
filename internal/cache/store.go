// Package cache 提供工具响应缓存：相同工具、相同参数在 TTL 内命中同一结果。
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"time"

	"github.com/bytedance/sonic"
)

// DefaultTTL 缓存条目默认生存时间。
const DefaultTTL = 15 * time.Minute

// Entry 一条缓存记录。
type Entry struct {
	Content   string    `json:"content"`
	StoredAt  time.Time `json:"stored_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Store 响应缓存后端。Get 未命中时返回 (nil, false, nil)。
type Store interface {
	Get(ctx context.Context, key string) (*Entry, bool, error)
	Set(ctx context.Context, key string, entry *Entry) error
	// Purge 移除全部条目。
	Purge(ctx context.Context) error
	Close() error
}

// Key 由工具名和规范化后的参数生成缓存键。
// 参数按键名排序、字符串值去除首尾空白后序列化，
// 保证语义相同的调用落在同一个键上。
func Key(tool string, params map[string]any) string {
	digest := sha256.Sum256([]byte(canonicalize(params)))
	return "crew:cache:" + tool + ":" + hex.EncodeToString(digest[:])
}

func canonicalize(params map[string]any) string {
	if len(params) == 0 {
		return "{}"
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(k)
		b.WriteByte('=')
		v := params[k]
		if s, ok := v.(string); ok {
			b.WriteString(strings.TrimSpace(s))
			continue
		}
		raw, err := sonic.MarshalString(v)
		if err != nil {
			b.WriteString("?")
			continue
		}
		b.WriteString(raw)
	}
	b.WriteByte('}')
	return b.String()
}
