package domain

// TrackKind 标记一条输入流的种类。
type TrackKind string

const (
	KindVideo    TrackKind = "video"
	KindAudio    TrackKind = "audio"
	KindSubtitle TrackKind = "subtitle"
	KindChapter  TrackKind = "chapter"
)

// ValidKind 校验 kind 是否为已知种类。
func ValidKind(k TrackKind) bool {
	switch k {
	case KindVideo, KindAudio, KindSubtitle, KindChapter:
		return true
	default:
		return false
	}
}

// TrimUnit 标记 trim 请求的计量单位。
type TrimUnit string

const (
	UnitFrames TrimUnit = "frames"
	UnitMilli  TrimUnit = "ms"
)

// TrimRequest 是一条用户写下的 keep/cut 请求（tagged variant）。
//
// 规则（与归一化层的契约）：
// - 帧号允许负值（从末尾倒数）；毫秒不允许负值
// - OpenStart/OpenEnd 表示开区间端点（None 语义）：start 取 0，end 取轨道末尾
// - 进入归一化后统一成绝对时间 Segment，后续算法不再分辨请求形态
type TrimRequest struct {
	Keep      bool
	Unit      TrimUnit
	Start     int64
	End       int64
	OpenStart bool
	OpenEnd   bool
}

// Track 是一条输入流的规范化、与具体工具无关的描述。
//
// 生命周期：由调用方输入构造一次，trim 解析恰好一次得到 ResolvedTrack，
// 之后只被 planner 消费；解析之后不允许再修改。
type Track struct {
	ID     string // 稳定标识（report 与错误信息用；通常是 "kind:N"）
	Kind   TrackKind
	Source string // 源文件绝对路径（外部 prober 的输入；只引用不复制内容）
	Stream int    // 源容器内的流序号

	Duration Timecode // 原生总时长（绝对时间）
	Rate     Rate     // 视频/音频的帧率描述；字幕轨为零值
	Frames   int64    // 原生总帧数（0 表示未知，由 Duration × Rate 推导）
	// StartOffset 是该轨第一帧/样本在其源时间轴上的原生偏移
	// （例如带 pre-roll 的音频）。参与 delay 计算。
	StartOffset Timecode

	Trims []TrimRequest // 空表示整轨保留

	Lang    string
	Name    string
	Default bool
	Forced  bool
	Codec   string   // codec 提示（probe 回填；plan 校验用）
	Args    []string // 透传给 muxer 的额外参数（逃生通道，谨慎使用）

	// Events 是字幕轨解析出的样式/事件数据（供 fontdep 使用）；其他轨为空。
	Events []SubEvent
	// FontRefs 是字幕轨引用的字体（带使用计数）。
	FontRefs []FontUse
}

// SubEvent 是一条字幕事件（结构化输入；解析细节在 subs 包）。
type SubEvent struct {
	Start Timecode
	End   Timecode
	Style string
}

// FontRef 是从字幕样式中提取的字体引用：(族名, 字重, 斜体)。
type FontRef struct {
	Family string
	Weight int
	Italic bool
}

// FontUse 是 FontRef 加使用计数（计数只用于告警排序/展示，去重不看它）。
type FontUse struct {
	Ref   FontRef
	Count int
}

// ResolvedTrack 是 trim 解析后的不可变结果。
//
// 不变量：
// - Keep 非空、互不重叠、按 Start 递增
// - OutputDuration == Keep 各段时长之和
// - 同一 MuxPlan 内所有轨的 OutputDuration 在容差内一致（planner 校验）
type ResolvedTrack struct {
	Track Track

	Keep           []Segment // 原生时间轴上的保留段
	Delay          Timecode  // 首个保留样本对齐到全局参考轨所需的偏移
	OutputDuration Timecode
}
