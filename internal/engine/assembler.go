// Package engine 上下文组装
//
// assembler.go 把角色配置、语气档案、检索到的记忆和切换信息
// 组装成最终的系统提示词。
package engine

import (
	"fmt"
	"strings"

	"advisors-admin/internal/shared/model"
)

// ToneProfile 语气档案
type ToneProfile struct {
	// Description 语气定位
	Description string `json:"description"`

	// Modifiers 语气指导（附加到系统提示词）
	Modifiers string `json:"modifiers"`
}

// toneProfiles 内置语气档案表
var toneProfiles = map[string]ToneProfile{
	"strategic": {
		Description: "Strategic and forward-thinking",
		Modifiers:   "Use clear, confident language focused on long-term vision and business growth",
	},
	"analytical": {
		Description: "Data-driven and precise",
		Modifiers:   "Use specific metrics, logical reasoning, and evidence-based recommendations",
	},
	"creative": {
		Description: "Innovative and expressive",
		Modifiers:   "Use fresh perspectives, engaging language, and innovative approaches",
	},
	"supportive": {
		Description: "Empathetic and encouraging",
		Modifiers:   "Use empathetic language, positive reinforcement, and constructive guidance",
	},
	"methodical": {
		Description: "Systematic and process-oriented",
		Modifiers:   "Use step-by-step explanations, clear processes, and structured approaches",
	},
	"persuasive": {
		Description: "Confident and compelling",
		Modifiers:   "Use persuasive language, compelling examples, and clear value propositions",
	},
	"consultative": {
		Description: "Advisory and collaborative",
		Modifiers:   "Use questioning techniques, collaborative language, and tailored recommendations",
	},
}

// defaultTone 角色未指定或指定未知语气时的回退档案
const defaultTone = "strategic"

// ToneProfiles 返回全部内置语气档案
func ToneProfiles() map[string]ToneProfile {
	out := make(map[string]ToneProfile, len(toneProfiles))
	for name, p := range toneProfiles {
		out[name] = p
	}
	return out
}

// ValidTone 判断语气名是否为内置档案
func ValidTone(tone string) bool {
	_, ok := toneProfiles[tone]
	return ok
}

// SwitchContext 切换信息（组装进提示词，让模型知道角色变更）
type SwitchContext struct {
	FromRole *model.Role
	ToRole   *model.Role
	Reason   string
}

// Assembler 系统提示词组装器
type Assembler struct {
	// memoryLimit 注入提示词的记忆条数上限
	memoryLimit int
}

// NewAssembler 创建组装器
func NewAssembler(memoryLimit int) *Assembler {
	if memoryLimit <= 0 {
		memoryLimit = 10
	}
	return &Assembler{memoryLimit: memoryLimit}
}

// Assemble 组装完整系统提示词
//
// 结构顺序：基础提示词 → 语气 → 领域 → 指令 → 附加指令 →
// 切换说明 → 相关记忆。memories 已按相关性排序，超限截断。
func (a *Assembler) Assemble(role *model.Role, memories []SearchResult, sw *SwitchContext, customInstructions string) string {
	tone := role.Tone
	profile, ok := toneProfiles[tone]
	if !ok {
		tone = defaultTone
		profile = toneProfiles[defaultTone]
	}

	var b strings.Builder
	b.WriteString(role.SystemPrompt)

	fmt.Fprintf(&b, "\n\nTone: %s - %s\nTone Guidance: %s", tone, profile.Description, profile.Modifiers)

	if len(role.Domains) > 0 {
		fmt.Fprintf(&b, "\n\nDomains of expertise: %s", strings.Join(role.Domains, ", "))
	}
	if role.Instructions != "" {
		fmt.Fprintf(&b, "\n\nInstructions: %s", role.Instructions)
	}
	if customInstructions != "" {
		fmt.Fprintf(&b, "\n\nAdditional Instructions: %s", customInstructions)
	}

	if sw != nil && sw.FromRole != nil && sw.ToRole != nil {
		fmt.Fprintf(&b, "\n\nYou are switching from the role of %s to %s.", sw.FromRole.Name, sw.ToRole.Name)
		fmt.Fprintf(&b, "\nThe user's query appears to be more relevant to your expertise as %s.", sw.ToRole.Name)
		fmt.Fprintf(&b, "\nPrevious role description: %s", sw.FromRole.Description)
		fmt.Fprintf(&b, "\nYour new role description: %s", sw.ToRole.Description)
		if sw.Reason != "" {
			fmt.Fprintf(&b, "\nSwitch reason: %s", sw.Reason)
		}
	}

	if len(memories) > 0 {
		limit := a.memoryLimit
		if len(memories) < limit {
			limit = len(memories)
		}
		b.WriteString("\n\nRelevant context from previous interactions:")
		for _, res := range memories[:limit] {
			fmt.Fprintf(&b, "\nMemory: %s", res.Memory.Content)
		}
	}

	return b.String()
}
