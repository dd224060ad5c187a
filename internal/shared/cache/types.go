// Package cache 缓存层键空间与默认 TTL
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// ============================================================================
// 键前缀
// ============================================================================

const (
	// KeyEmbedding 嵌入向量缓存键前缀: cache:embedding:<provider>:<hash>
	KeyEmbedding = "cache:embedding:"

	// KeySessionSnapshot 会话快照键前缀: cache:session:<session_id>
	KeySessionSnapshot = "cache:session:"
)

// ============================================================================
// 默认 TTL
// ============================================================================

const (
	// DefaultEmbeddingTTL 嵌入向量默认缓存时长
	DefaultEmbeddingTTL = 24 * time.Hour

	// DefaultSessionSnapshotTTL 会话快照默认缓存时长
	DefaultSessionSnapshotTTL = time.Hour
)

// TextHash 计算文本的缓存键哈希
//
// 嵌入文本可能很长，键里只放 SHA-256 摘要。
func TextHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
