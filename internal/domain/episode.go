package domain

// EpisodeMeta 是标题 provider 解析得到的结构化元数据（最小可用集）。
//
// 约束：
// - Website 必须写入最终成功 provider 的页面 URL（也是来源标记）
// - 字段缺失允许为空；标题查询失败从不阻断 mux（降级为无 $title$ 命名）
type EpisodeMeta struct {
	Show    string
	Episode string

	Title    string
	ThumbURL string

	Website string
}
