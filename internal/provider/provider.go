package provider

import (
	"context"
	"net/http"

	"github.com/John-Robertt/FMUX/internal/domain"
)

// Query 标识要找的那一集。
//
// Show 的形态由各 provider 自己解释：
// - mal：MyAnimeList 的 anime 路径（"52991/Sousou_no_Frieren"）
// - wikipedia：词条名（"List of Frieren episodes" 或剧名）
type Query struct {
	Show    string
	Episode string // 集号原文（"12"、"12.5"）
}

// Provider 把“站点变化”限制在 provider 包内部；
// 核心流程只依赖统一接口与稳定的 EpisodeMeta。
//
// 约束：
// - Fetch 不做缓存、不做重试、不做限速（这些由核心 http/cache 层统一实现）
// - Parse 必须是纯函数：相同输入 => 相同输出
// - pageURL 必须是集数列表页（用于 report 追溯）
type Provider interface {
	Name() string
	Fetch(ctx context.Context, q Query, c *http.Client) (html []byte, pageURL string, err error)
	Parse(q Query, html []byte, pageURL string) (domain.EpisodeMeta, error)
}
