package domain

import (
	"encoding/json"
	"sort"
	"time"
)

const (
	StatusResolved = "resolved"
	StatusMuxed    = "muxed"
	StatusFailed   = "failed"
	StatusSkipped  = "skipped"
)

const (
	ErrCodeProbeFailed         = "probe_failed"
	ErrCodeInvalidTrim         = "invalid_trim"
	ErrCodeRateMismatch        = "rate_mismatch"
	ErrCodeTimelineMismatch    = "timeline_mismatch"
	ErrCodeDuplicateTrack      = "duplicate_track"
	ErrCodeParseFailed         = "parse_failed"
	ErrCodeFetchFailed         = "fetch_failed"
	ErrCodeMuxFailed           = "mux_failed"
	ErrCodeIOFailed            = "io_failed"
	ErrCodeConfigNotFound      = "config_not_found"
	ErrCodeConfigInvalid       = "config_invalid"
	ErrCodeConfigMissingInputs = "config_missing_inputs"
)

// 告警码（非致命）。
const (
	WarnFontMissing   = "font_missing"
	WarnFontAmbiguous = "font_ambiguous"
	WarnTitleMissing  = "title_unavailable"
	WarnCoverSkipped  = "cover_skipped"
)

// RunReport 是对外稳定输出（stdout JSON / report.json）的结构。
type RunReport struct {
	Config string `json:"config"`
	DryRun bool   `json:"dry_run"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Output string `json:"output"`
	Title  string `json:"title"`

	Summary ReportSummary `json:"summary"`
	Tracks  []TrackResult `json:"tracks"`

	Attachments []string  `json:"attachments"`
	Chapters    int       `json:"chapters"`
	Warnings    []Warning `json:"warnings"`

	// Mux 仅 apply 且走到了外部 muxer 时非空；exit code 与诊断输出原样透传。
	Mux *MuxResult `json:"mux,omitempty"`

	// 运行级致命错误（配置/全局校验）；track 级错误写在 Tracks 里。
	ErrorCode string `json:"error_code,omitempty"`
	ErrorMsg  string `json:"error_msg,omitempty"`
}

type ReportSummary struct {
	Tracks      int `json:"tracks"`
	Failed      int `json:"failed"`
	Attachments int `json:"attachments"`
	Warnings    int `json:"warnings"`
}

// TrackResult 是单条轨的解析/合成结果。
type TrackResult struct {
	ID   string `json:"id"`
	Kind string `json:"kind"`
	Lang string `json:"lang"`
	Name string `json:"name"`

	Default bool `json:"default"`
	Forced  bool `json:"forced"`

	Status    string `json:"status"`
	ErrorCode string `json:"error_code,omitempty"`
	ErrorMsg  string `json:"error_msg,omitempty"`

	Order    int      `json:"order"`
	DelayMs  int64    `json:"delay_ms"`
	OutputMs int64    `json:"output_ms"`
	Keep     []string `json:"keep,omitempty"` // "start..end" 的可读形式
}

// MuxResult 原样保留外部 muxer 的退出信息（绝不吞掉）。
type MuxResult struct {
	ExitCode int    `json:"exit_code"`
	Output   string `json:"output"`
}

// Finalize 做三件事：
// 1) 时间统一为 UTC（确保 JSON 为 RFC3339 且后缀 Z）
// 2) tracks 稳定排序：按 Order；失败轨（Order<0）排最后，按 ID 字典序
// 3) summary 由 tracks/warnings 计算得出
// 另外保证切片字段非 nil（JSON 输出 [] 而非 null）。
func (r *RunReport) Finalize() {
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()

	if r.Tracks == nil {
		r.Tracks = []TrackResult{}
	}
	if r.Attachments == nil {
		r.Attachments = []string{}
	}
	if r.Warnings == nil {
		r.Warnings = []Warning{}
	}

	sort.SliceStable(r.Tracks, func(i, j int) bool {
		a, b := r.Tracks[i], r.Tracks[j]
		if (a.Order < 0) != (b.Order < 0) {
			return b.Order < 0
		}
		if a.Order < 0 {
			return a.ID < b.ID
		}
		return a.Order < b.Order
	})

	var s ReportSummary
	s.Tracks = len(r.Tracks)
	for _, t := range r.Tracks {
		if t.Status == StatusFailed {
			s.Failed++
		}
	}
	s.Attachments = len(r.Attachments)
	s.Warnings = len(r.Warnings)
	r.Summary = s
}

// MarshalJSON 仅用于集中约束输出的稳定性（避免未来不小心引入非确定字段）。
// 当前只是透传 encoding/json 的默认行为。
func (r RunReport) MarshalJSON() ([]byte, error) {
	type Alias RunReport
	return json.Marshal(Alias(r))
}
