package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/John-Robertt/FMUX/internal/domain"
	"github.com/John-Robertt/FMUX/internal/fontdep"
)

const (
	// ErrCodeNotFound 表示无参运行但 cwd 下没有 fmux.json。
	ErrCodeNotFound = "config_not_found"
	// ErrCodeInvalid 表示配置文件无法读取/解析，或字段不合法。
	ErrCodeInvalid = "config_invalid"
	// ErrCodeMissingInputs 表示配置文件缺少 inputs（一次 mux 至少要有一条输入）。
	ErrCodeMissingInputs = "config_missing_inputs"
)

const (
	// DefaultConcurrency 是并发的内置默认值（当配置未指定时）。
	DefaultConcurrency = 4
	// DefaultMkvmerge 是 muxer 可执行文件的默认名（依赖 PATH 查找）。
	DefaultMkvmerge = "mkvmerge"
	// DefaultOutput 是输出名模板的默认值。
	DefaultOutput = "$show$ - $ep$ [$crc32$].mkv"
)

// CLIArgs 只包含 CLI 暴露的三项入口（config/provider/apply），并保留
// “是否显式指定”的信息。这能保证覆盖优先级可实现：
// 例如 --apply=false 必须能覆盖 config.apply=true。
type CLIArgs struct {
	Config string // 配置文件路径（空 = <cwd>/fmux.json）

	Provider    string
	ProviderSet bool

	Apply    bool
	ApplySet bool
}

// FileConfig 对应 fmux.json 的解析结构。
type FileConfig struct {
	Workdir string `json:"workdir"`
	Output  string `json:"output"`
	Title   string `json:"title"`

	// Show 是 provider 的查询标识（mal 的 anime 路径 / wikipedia 的词条名）；
	// ShowName 是 $show$ 在文件名里的展开值，缺省取 Show。
	Show     string `json:"show"`
	ShowName string `json:"show_name"`
	Episode  string `json:"episode"`
	Provider string `json:"provider"`

	Apply       *bool `json:"apply"`
	Concurrency int   `json:"concurrency"`

	Inputs   []FileInput  `json:"inputs"`
	Chapters *FileChapter `json:"chapters"`

	FontDirs   []string `json:"font_dirs"`
	FontPolicy string   `json:"font_policy"`

	AudioLangs []string `json:"audio_langs"`
	SubLangs   []string `json:"sub_langs"`

	Order           []string `json:"order"`
	AllowDuplicates bool     `json:"allow_duplicates"`
	ToleranceMs     int64    `json:"tolerance_ms"`
	GlobalOffsetMs  int64    `json:"global_offset_ms"`

	Mkvmerge    string       `json:"mkvmerge"`
	Proxy       *ProxyConfig `json:"proxy"`
	AttachCover bool         `json:"attach_cover"`
}

// FileInput 是一条输入轨的配置。
type FileInput struct {
	Path     string     `json:"path"`
	Kind     string     `json:"kind"`
	Stream   int        `json:"stream"`
	Lang     string     `json:"lang"`
	Name     string     `json:"name"`
	Default  bool       `json:"default"`
	Forced   bool       `json:"forced"`
	OffsetMs int64      `json:"offset_ms"`
	Trims    []FileTrim `json:"trims"`
	Args     []string   `json:"args"`
}

// FileTrim 是一条 keep/cut 请求。Start/End 用指针表达 None 语义：
// null 的 start 取轨道开头，null 的 end 取轨道末尾。
type FileTrim struct {
	Keep  *bool  `json:"keep"` // 缺省 keep
	Unit  string `json:"unit"` // "frames"（缺省）| "ms"
	Start *int64 `json:"start"`
	End   *int64 `json:"end"`
}

// FileChapter 是章节来源：外部文件或帧号列表，二选一。
type FileChapter struct {
	Path   string   `json:"path"`
	Frames []int64  `json:"frames"`
	Names  []string `json:"names"`
	Lang   string   `json:"lang"`
}

type ProxyConfig struct {
	URL string `json:"url"`
}

// EffectiveConfig 是合并并做最小规范化后的最终配置
// （实现层直接消费，不再做二次默认/优先级判断）。
type EffectiveConfig struct {
	ConfigPath string // 配置文件绝对路径（report 追溯用）
	Workdir    string // 绝对路径；输出、缓存与临时产物落在这里
	Output  string // 输出名模板（$show$/$ep$/$title$/$crc32$）
	Title   string // mkv --title 模板（空 = 不带 title）

	Show     string // provider 查询标识
	ShowName string // $show$ 展开值（缺省同 Show）
	Episode  string
	Provider string // "mal" | "wikipedia" | ""（不取标题）

	Apply       bool
	Concurrency int

	Inputs   []FileInput
	Chapters *FileChapter

	FontDirs   []string
	FontPolicy fontdep.Policy

	AudioLangs []string
	SubLangs   []string

	Order           []string
	AllowDuplicates bool
	ToleranceMs     int64 // 0 = 参考轨一帧时长
	GlobalOffsetMs  int64

	Mkvmerge    string
	ProxyURL    string
	AttachCover bool
}

// Error 是配置阶段的结构化错误（带 error_code）。
type Error struct {
	Code string
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch e.Code {
	case ErrCodeNotFound:
		return fmt.Sprintf("%s：未找到配置文件 %q", e.Code, e.Path)
	case ErrCodeMissingInputs:
		return fmt.Sprintf("%s：配置文件 %q 缺少 inputs", e.Code, e.Path)
	case ErrCodeInvalid:
		if e.Err != nil {
			return fmt.Sprintf("%s：配置文件 %q 无效：%v", e.Code, e.Path, e.Err)
		}
		return fmt.Sprintf("%s：配置文件 %q 无效", e.Code, e.Path)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		return e.Code
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Code 从 error 中提取 error_code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// LoadEffective 发现并读取配置文件，然后与 CLI 参数合并为最终配置。
//
// 发现规则（固定）：
// 1) CLI 提供 config：读取该文件（必须存在）
// 2) CLI 未提供：必须读取 <cwd>/fmux.json
//
// 覆盖优先级（固定）：
// - provider：CLI > config > 无（不取标题）
// - apply：CLI --apply/--apply=false > config > 默认 false
// - 其他字段：仅由 config 控制（CLI 不暴露）
func LoadEffective(cwd string, cli CLIArgs) (EffectiveConfig, error) {
	cwdAbs, err := filepath.Abs(cwd)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cwd, Err: err}
	}

	cfgPath := filepath.Join(cwdAbs, "fmux.json")
	if strings.TrimSpace(cli.Config) != "" {
		cfgPath = absCleanFrom(cwdAbs, cli.Config)
	}

	fc, exists, err := readFileConfig(cfgPath)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}
	if !exists {
		return EffectiveConfig{}, &Error{Code: ErrCodeNotFound, Path: cfgPath, Err: os.ErrNotExist}
	}
	if len(fc.Inputs) == 0 {
		return EffectiveConfig{}, &Error{Code: ErrCodeMissingInputs, Path: cfgPath}
	}

	return merge(filepath.Dir(cfgPath), cli, fc, cfgPath)
}

func merge(baseDir string, cli CLIArgs, fc FileConfig, cfgPath string) (EffectiveConfig, error) {
	invalid := func(format string, a ...any) (EffectiveConfig, error) {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: fmt.Errorf(format, a...)}
	}

	// workdir：相对路径以配置文件所在目录为基准。
	workdir := baseDir
	if strings.TrimSpace(fc.Workdir) != "" {
		workdir = absCleanFrom(baseDir, fc.Workdir)
	}

	// provider：CLI > config > 无
	provider := strings.ToLower(strings.TrimSpace(fc.Provider))
	if cli.ProviderSet {
		provider = strings.ToLower(strings.TrimSpace(cli.Provider))
	}
	switch provider {
	case "", "mal", "wikipedia":
	default:
		return invalid("provider 只能是 mal 或 wikipedia，实际是 %q", provider)
	}

	// apply：CLI > config > 默认 false
	apply := false
	if cli.ApplySet {
		apply = cli.Apply
	} else if fc.Apply != nil {
		apply = *fc.Apply
	}

	concurrency := fc.Concurrency
	if concurrency == 0 {
		concurrency = DefaultConcurrency
	}
	// 范围约定 [1, 32]；超出截断。
	if concurrency < 1 {
		concurrency = 1
	}
	if concurrency > 32 {
		concurrency = 32
	}

	inputs := make([]FileInput, len(fc.Inputs))
	for i, in := range fc.Inputs {
		if strings.TrimSpace(in.Path) == "" {
			return invalid("inputs[%d].path 不能为空", i)
		}
		// 章节不走 inputs（见 chapters 字段），这里只接受流类轨。
		switch domain.TrackKind(in.Kind) {
		case domain.KindVideo, domain.KindAudio, domain.KindSubtitle:
		default:
			return invalid("inputs[%d].kind 非法：%q", i, in.Kind)
		}
		if in.Stream < 0 {
			return invalid("inputs[%d].stream 不能为负", i)
		}
		if in.Lang != "" {
			lang, ok := domain.ParseLang(in.Lang)
			if !ok {
				return invalid("inputs[%d].lang 非法：%q", i, in.Lang)
			}
			in.Lang = lang
		}
		for j, tr := range in.Trims {
			switch tr.Unit {
			case "", string(domain.UnitFrames):
				in.Trims[j].Unit = string(domain.UnitFrames)
			case string(domain.UnitMilli):
			default:
				return invalid("inputs[%d].trims[%d].unit 非法：%q", i, j, tr.Unit)
			}
			// 与帧号 end 的倒数语义冲突，end=0 直接拒绝（写 null 表示到末尾）。
			if tr.End != nil && *tr.End == 0 {
				return invalid("inputs[%d].trims[%d].end 不能为 0（到末尾请写 null）", i, j)
			}
		}
		in.Path = absCleanFrom(baseDir, in.Path)
		inputs[i] = in
	}

	var ch *FileChapter
	if fc.Chapters != nil {
		c := *fc.Chapters
		hasPath := strings.TrimSpace(c.Path) != ""
		if hasPath == (len(c.Frames) > 0) {
			return invalid("chapters 必须二选一：path 或 frames")
		}
		if hasPath {
			c.Path = absCleanFrom(baseDir, c.Path)
		}
		if c.Lang != "" {
			lang, ok := domain.ParseLang(c.Lang)
			if !ok {
				return invalid("chapters.lang 非法：%q", c.Lang)
			}
			c.Lang = lang
		}
		ch = &c
	}

	policy := fontdep.PolicyExactStyle
	if strings.TrimSpace(fc.FontPolicy) != "" {
		policy = fontdep.Policy(fc.FontPolicy)
		if !fontdep.ValidPolicy(policy) {
			return invalid("font_policy 非法：%q", fc.FontPolicy)
		}
	}

	audioLangs, badLang := normLangs(fc.AudioLangs)
	if badLang != "" {
		return invalid("audio_langs 非法：%q", badLang)
	}
	subLangs, badLang := normLangs(fc.SubLangs)
	if badLang != "" {
		return invalid("sub_langs 非法：%q", badLang)
	}

	if fc.ToleranceMs < 0 {
		return invalid("tolerance_ms 不能为负")
	}

	proxyURL := ""
	if fc.Proxy != nil {
		proxyURL = strings.TrimSpace(fc.Proxy.URL)
	}
	if proxyURL != "" {
		u, err := url.Parse(proxyURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return invalid("proxy.url 无效：%q", proxyURL)
		}
	}
	if fc.AttachCover && provider == "" {
		return invalid("attach_cover=true 需要 provider")
	}
	if provider != "" {
		if strings.TrimSpace(fc.Show) == "" {
			return invalid("provider=%q 需要 show", provider)
		}
		if strings.TrimSpace(fc.Episode) == "" {
			return invalid("provider=%q 需要 episode", provider)
		}
	}

	output := strings.TrimSpace(fc.Output)
	if output == "" {
		output = DefaultOutput
	}

	showName := strings.TrimSpace(fc.ShowName)
	if showName == "" {
		showName = strings.TrimSpace(fc.Show)
	}

	mkvmerge := strings.TrimSpace(fc.Mkvmerge)
	if mkvmerge == "" {
		mkvmerge = DefaultMkvmerge
	}

	fontDirs := make([]string, 0, len(fc.FontDirs))
	for _, d := range fc.FontDirs {
		if strings.TrimSpace(d) == "" {
			continue
		}
		fontDirs = append(fontDirs, absCleanFrom(baseDir, d))
	}

	return EffectiveConfig{
		ConfigPath:      cfgPath,
		Workdir:         workdir,
		Output:          output,
		Title:           strings.TrimSpace(fc.Title),
		Show:            strings.TrimSpace(fc.Show),
		ShowName:        showName,
		Episode:         strings.TrimSpace(fc.Episode),
		Provider:        provider,
		Apply:           apply,
		Concurrency:     concurrency,
		Inputs:          inputs,
		Chapters:        ch,
		FontDirs:        fontDirs,
		FontPolicy:      policy,
		AudioLangs:      audioLangs,
		SubLangs:        subLangs,
		Order:           append([]string(nil), fc.Order...),
		AllowDuplicates: fc.AllowDuplicates,
		ToleranceMs:     fc.ToleranceMs,
		GlobalOffsetMs:  fc.GlobalOffsetMs,
		Mkvmerge:        mkvmerge,
		ProxyURL:        proxyURL,
		AttachCover:     fc.AttachCover,
	}, nil
}

// normLangs 规范化语言优先级列表；bad 返回第一个非法标签（空 = 全部合法）。
func normLangs(in []string) (out []string, bad string) {
	for _, s := range in {
		lang, ok := domain.ParseLang(s)
		if !ok {
			return nil, s
		}
		out = append(out, lang)
	}
	return out, ""
}

// absCleanFrom 以 base 为基准，把 p 变为 clean + absolute。
// - p 若已是绝对路径：直接 Clean
// - p 若是相对路径：Join(base, p) 后 Clean
func absCleanFrom(base, p string) string {
	p = filepath.Clean(strings.TrimSpace(p))
	if p == "" {
		return ""
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Clean(filepath.Join(base, p))
}

// readFileConfig 读取并解析 JSON 配置文件。
// 返回值 exists 表示该文件是否存在（不存在不算错误）。
func readFileConfig(path string) (fc FileConfig, exists bool, err error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, false, nil
		}
		return FileConfig{}, false, err
	}
	if err := json.Unmarshal(b, &fc); err != nil {
		return FileConfig{}, true, err
	}
	return fc, true, nil
}
