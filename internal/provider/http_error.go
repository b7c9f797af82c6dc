package provider

import (
	"fmt"
	"strings"
)

// HTTPStatusError 表示站点返回了非 2xx 的 HTTP 状态码。
// provider.Fetch 可以返回该错误，让上层生成更可操作的 error_msg。
type HTTPStatusError struct {
	URL        string
	StatusCode int
	Location   string
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "HTTP status error"
	}
	loc := strings.TrimSpace(e.Location)
	if loc == "" {
		return fmt.Sprintf("HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("HTTP %d location=%s", e.StatusCode, loc)
}

// RateLimitedError 表示请求被站点限流/拦截（MAL 的 CDN 常见 403/429）。
// 产品约束：不尝试绕过，直接视为 fetch_failed，让上层走 provider 降级。
type RateLimitedError struct {
	URL        string
	StatusCode int
}

func (e *RateLimitedError) Error() string {
	if e == nil {
		return "rate limited"
	}
	return fmt.Sprintf("rate limited: HTTP %d", e.StatusCode)
}
