package domain

// Attachment 是一条将写入容器的附件（字体/封面）。
//
// 不变量：同一 MuxPlan 内 Path 唯一（按文件身份去重，不是按文件名）。
type Attachment struct {
	Path string
	MIME string
}

// ChapterEntry 是一条章节：时间点 + 可选名字。
type ChapterEntry struct {
	Start Timecode
	Name  string
}

// Warning 是非致命问题（例如字体查不到候选文件）。
// 收敛到 plan/report 上对外呈现，合成流程本身继续。
type Warning struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}

// MuxPlan 是完全解析、校验过的合成计划（只描述，不执行）。
//
// 不变量：
// - Tracks 顺序稳定且确定（给定输入与显式排序覆盖）
// - 附件已按文件身份去重
// - 任何轨都不共享 track-ID 槽位（顺序即槽位）
type MuxPlan struct {
	Tracks      []ResolvedTrack
	Attachments []Attachment
	Chapters    []ChapterEntry

	Title    string
	Warnings []Warning
}
