package main

import (
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/John-Robertt/FMUX/internal/app/run"
	"github.com/John-Robertt/FMUX/internal/config"
)

var _ run.Observer = (*progressUI)(nil)

// 进度输出的配色：只点缀状态词，不做整行着色（复制粘贴日志时仍可读）。
var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#00FFFF"))

	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#00FF00"))

	failStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF0000"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

// progressUI 是交互终端的进度输出。
//
// 设计目标：
// - 所有过程信息写到 stderr（或 fallback 到 stdout），不污染 stdout 的 JSON 输出契约
// - 事件驱动：run 层只发事件，CLI 决定如何展示
type progressUI struct {
	w io.Writer

	mu        sync.Mutex
	startedAt time.Time
}

func newProgressUI(w io.Writer) *progressUI {
	return &progressUI{w: w}
}

func (p *progressUI) OnStart(eff config.EffectiveConfig) {
	now := time.Now()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.startedAt.IsZero() {
		p.startedAt = now
	}

	mode := "dry-run"
	modeHint := " (只校验并计算 plan，不调用 mkvmerge)"
	if eff.Apply {
		mode = "apply"
		modeHint = ""
	}

	fmt.Fprintln(p.w, headerStyle.Render(fmt.Sprintf("[%s] fmux run (%s)", now.Format("15:04:05"), mode)))
	fmt.Fprintln(p.w, "配置（生效）:")
	fmt.Fprintf(p.w, "  config: %s\n", eff.ConfigPath)
	fmt.Fprintf(p.w, "  workdir: %s\n", eff.Workdir)
	fmt.Fprintf(p.w, "  mode: %s%s\n", mode, modeHint)
	fmt.Fprintf(p.w, "  inputs: %d\n", len(eff.Inputs))
	fmt.Fprintf(p.w, "  provider: %s\n", providerChain(eff.Provider))
	fmt.Fprintf(p.w, "  mkvmerge: %s\n", eff.Mkvmerge)
	fmt.Fprintf(p.w, "  concurrency: %d\n", eff.Concurrency)
	fmt.Fprintf(p.w, "  proxy: %s\n", formatProxy(eff.ProxyURL))
	fmt.Fprintln(p.w)
}

func (p *progressUI) OnPhaseDone(name string, fields map[string]any, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch name {
	case "probe":
		fmt.Fprintf(p.w, "探测: tracks=%d failed=%d %s\n",
			intField(fields, "tracks"), intField(fields, "failed"), durNote(dur),
		)
	case "fonts":
		fmt.Fprintf(p.w, "字体: scanned=%d attachments=%d warnings=%d %s\n",
			intField(fields, "scanned"),
			intField(fields, "attachments"),
			intField(fields, "warnings"),
			durNote(dur),
		)
	case "title":
		title := strField(fields, "title")
		if title == "" {
			title = "<未取得>"
		}
		fmt.Fprintf(p.w, "标题: provider=%s title=%s %s\n",
			strField(fields, "provider"), truncate(title, 80), durNote(dur),
		)
	case "plan":
		fmt.Fprintf(p.w, "规划: tracks=%d attachments=%d chapters=%d warnings=%d %s\n",
			intField(fields, "tracks"),
			intField(fields, "attachments"),
			intField(fields, "chapters"),
			intField(fields, "warnings"),
			durNote(dur),
		)
	default:
		// 兜底：未知阶段也不要静默（便于调试/演进）。
		fmt.Fprintf(p.w, "%s %s\n", name, durNote(dur))
	}
}

func (p *progressUI) OnTrackDone(idx, total int, id string, failed bool, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	status := okStyle.Render("OK")
	if failed {
		status = failStyle.Render("FAIL")
	}
	fmt.Fprintf(p.w, "[%d/%d] %s %s %s\n", idx, total, id, status, durNote(dur))
}

func (p *progressUI) OnMuxDone(output string, exitCode int, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	status := okStyle.Render(fmt.Sprintf("exit=%d", exitCode))
	if exitCode >= 2 {
		status = failStyle.Render(fmt.Sprintf("exit=%d", exitCode))
	}
	fmt.Fprintf(p.w, "mux: %s -> %s %s\n", status, output, durNote(dur))
}

func providerChain(requested string) string {
	switch strings.ToLower(strings.TrimSpace(requested)) {
	case "mal":
		return "mal -> wikipedia"
	case "wikipedia":
		return "wikipedia -> mal"
	default:
		return "off"
	}
}

func formatProxy(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "off"
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "on (" + truncate(raw, 120) + ")"
	}
	auth := "off"
	if u.User != nil {
		auth = "on"
	}
	return fmt.Sprintf("on (%s://%s, auth=%s)", u.Scheme, u.Host, auth)
}

func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if max <= 0 || len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}

func durNote(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return dimStyle.Render(fmt.Sprintf("(%.1fs)", d.Seconds()))
}

func intField(fields map[string]any, key string) int {
	if fields == nil {
		return 0
	}
	v, ok := fields[key]
	if !ok {
		return 0
	}
	switch x := v.(type) {
	case int:
		return x
	case int32:
		return int(x)
	case int64:
		return int(x)
	case uint:
		return int(x)
	case uint32:
		return int(x)
	case uint64:
		return int(x)
	default:
		return 0
	}
}

func strField(fields map[string]any, key string) string {
	if fields == nil {
		return ""
	}
	if s, ok := fields[key].(string); ok {
		return s
	}
	return ""
}
