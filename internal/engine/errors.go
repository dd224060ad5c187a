// Package engine 定义路由引擎领域错误
//
// 这些错误用于隔离 HTTP 层与引擎内部实现：
// 校验类错误在引发调用处同步返回，且不会留下部分修改的状态。
package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownRole 角色不存在
	ErrUnknownRole = errors.New("unknown role")

	// ErrSessionNotFound 会话不存在或已关闭
	ErrSessionNotFound = errors.New("session not found")

	// ErrMemoryNotFound 记忆不存在或已过期
	ErrMemoryNotFound = errors.New("memory not found")

	// ErrNoRoleMatched 没有角色命中且会话无当前角色
	ErrNoRoleMatched = errors.New("no role matched query")

	// ErrAccessDenied 请求方与记忆没有任何授权关系
	// 检索路径中该错误只作为过滤规则（静默跳过），
	// 仅当整个请求指向无权限目标时才对外返回。
	ErrAccessDenied = errors.New("access denied")

	// ErrCyclicInheritance 父角色设置会形成继承环
	ErrCyclicInheritance = errors.New("cyclic role inheritance")

	// ErrRoleExists 角色 ID 已存在
	ErrRoleExists = errors.New("role already exists")

	// ErrDefaultRoleImmutable 内置角色禁止修改和删除
	ErrDefaultRoleImmutable = errors.New("default roles cannot be modified")
)

// InvalidPatternError 触发模式非法（正则编译失败）
//
// 在注册时返回，打分路径不会遇到未编译的模式。
type InvalidPatternError struct {
	Pattern string
	Err     error
}

func (e *InvalidPatternError) Error() string {
	return fmt.Sprintf("invalid trigger pattern %q: %v", e.Pattern, e.Err)
}

func (e *InvalidPatternError) Unwrap() error {
	return e.Err
}
