// Package sqlite SQLite 数据库驱动
//
// 提供 SQLite 连接管理、方言实现和自动 Schema 迁移。
// 适用于开发、测试和轻量级部署场景。
package sqlite

import (
	"database/sql"
	"fmt"

	"advisors-admin/internal/shared/storage/dbutil"

	_ "modernc.org/sqlite"
)

// Dialect SQLite 方言实现
type Dialect struct{}

var _ dbutil.Dialect = (*Dialect)(nil)

func (d *Dialect) DriverType() dbutil.DriverType {
	return dbutil.DriverSQLite
}

func (d *Dialect) Rebind(query string) string {
	return dbutil.StripPgCasts(dbutil.RebindToQuestion(query))
}

func (d *Dialect) CurrentTimestamp() string {
	return "datetime('now')"
}

func (d *Dialect) BooleanLiteral(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func (d *Dialect) UpsertConflict(conflictColumn string, updateExprs []string) string {
	result := fmt.Sprintf("ON CONFLICT (%s) DO UPDATE SET ", conflictColumn)
	for i, expr := range updateExprs {
		if i > 0 {
			result += ", "
		}
		result += expr
	}
	return result
}

func (d *Dialect) SupportsNullsLast() bool {
	return false
}

func (d *Dialect) NullsLastClause() string {
	return ""
}

func (d *Dialect) SupportsRecursiveCTE() bool {
	return true
}

func (d *Dialect) AutoMigrate(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}

// Open 创建 SQLite 数据库连接
// dsn 示例: "file:advisors.db?cache=shared&mode=rwc" 或 ":memory:"
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	// SQLite 优化设置
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return nil, fmt.Errorf("failed to set pragma %s: %w", p, err)
		}
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping sqlite: %w", err)
	}

	return db, nil
}

// NewDialect 创建 SQLite 方言
func NewDialect() *Dialect {
	return &Dialect{}
}

// schema SQLite 完整建表语句（等价于 PostgreSQL 初始化脚本）
//
// 角色与触发模式/记忆之间不建外键：内置角色只存在于内存，
// 挂在其下的自定义触发模式落库时 roles 表中没有对应行。
const schema = `
-- roles
CREATE TABLE IF NOT EXISTS roles (
    id VARCHAR(64) PRIMARY KEY,
    name VARCHAR(200),
    description TEXT,
    instructions TEXT,
    domains TEXT DEFAULT '[]',
    tone VARCHAR(64) DEFAULT 'strategic',
    system_prompt TEXT,
    is_default INTEGER DEFAULT 0,
    parent_role_id VARCHAR(64),
    inherit_memories INTEGER DEFAULT 0,
    memory_access_level VARCHAR(32) DEFAULT 'standard',
    memory_categories TEXT DEFAULT '[]',
    created_at DATETIME DEFAULT (datetime('now')),
    updated_at DATETIME DEFAULT (datetime('now'))
);

-- trigger_patterns
CREATE TABLE IF NOT EXISTS trigger_patterns (
    id VARCHAR(64) PRIMARY KEY,
    role_id VARCHAR(64) NOT NULL,
    pattern TEXT NOT NULL,
    priority INTEGER DEFAULT 3,
    description TEXT,
    is_regex INTEGER DEFAULT 0,
    enabled INTEGER DEFAULT 1,
    source VARCHAR(32) DEFAULT 'custom',
    created_at DATETIME DEFAULT (datetime('now'))
);
CREATE INDEX IF NOT EXISTS idx_trigger_patterns_role ON trigger_patterns(role_id);

-- memories
CREATE TABLE IF NOT EXISTS memories (
    id VARCHAR(64) PRIMARY KEY,
    role_id VARCHAR(64) NOT NULL,
    content TEXT NOT NULL,
    type VARCHAR(32) DEFAULT 'session',
    importance VARCHAR(32) DEFAULT 'medium',
    embedding TEXT,
    tags TEXT DEFAULT '[]',
    category VARCHAR(64),
    shared_with TEXT DEFAULT '[]',
    parent_memory_id VARCHAR(64),
    created_at DATETIME NOT NULL,
    expires_at DATETIME
);
CREATE INDEX IF NOT EXISTS idx_memories_role ON memories(role_id);
CREATE INDEX IF NOT EXISTS idx_memories_expires ON memories(expires_at);
`
