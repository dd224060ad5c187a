// Package repository 数据库无关的存储层
//
// 通过 dbutil.Dialect 接口屏蔽不同数据库的 SQL 差异，
// 所有 SQL 以 PostgreSQL 风格编写，运行时由 Dialect.Rebind() 转换。
package repository

import (
	"context"
	"database/sql"
	"encoding/json"

	"advisors-admin/internal/shared/storage"
	"advisors-admin/internal/shared/storage/dbutil"
)

// Store 通用存储实现
// 实现了 storage.Store 接口
type Store struct {
	db      *sql.DB
	dialect dbutil.Dialect
}

var _ storage.Store = (*Store)(nil)

// NewStore 创建通用存储
func NewStore(db *sql.DB, dialect dbutil.Dialect) *Store {
	return &Store{db: db, dialect: dialect}
}

// Close 关闭数据库连接
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping 检查数据库连通性
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// DB 返回底层数据库连接（仅用于测试）
func (s *Store) DB() *sql.DB {
	return s.db
}

// Dialect 返回当前方言
func (s *Store) Dialect() dbutil.Dialect {
	return s.dialect
}

// rebind 快捷方法：将 PG 风格 SQL 转换为当前方言
func (s *Store) rebind(query string) string {
	return s.dialect.Rebind(query)
}

// now 返回当前时间戳 SQL 表达式
func (s *Store) now() string {
	return s.dialect.CurrentTimestamp()
}

// upsertByID 生成按 id 冲突的整行覆盖子句
func (s *Store) upsertByID(updateExprs []string) string {
	return s.dialect.UpsertConflict("id", updateExprs)
}

// unmarshalStrings 反序列化 JSON 字符串数组字段（NULL / 空按空切片处理）
func unmarshalStrings(data []byte) []string {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	var out []string
	json.Unmarshal(data, &out)
	return out
}
