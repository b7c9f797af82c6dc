package run

import (
	"time"

	"github.com/John-Robertt/FMUX/internal/config"
)

// Observer 用于把“运行进度/阶段/轨结果”从核心执行流程中解耦出来。
//
// 约束：
// - run 包只负责发事件，不做任何输出（避免污染 stdout 的 JSON 契约）。
// - Observer 的实现必须并发安全：事件可能来自多个 goroutine。
type Observer interface {
	// OnStart 在 Execute 开始时调用（应尽量早，保证用户 1 秒内看到输出）。
	OnStart(eff config.EffectiveConfig)
	// OnPhaseDone 在阶段结束/就绪时调用（用于打印阶段统计与耗时）。
	OnPhaseDone(name string, fields map[string]any, dur time.Duration)
	// OnTrackDone 在某条输入轨探测+解析完成时调用（用于每轨一行输出）。
	OnTrackDone(idx, total int, id string, failed bool, dur time.Duration)
	// OnMuxDone 在外部 muxer 退出后调用（仅 apply 会触发）。
	OnMuxDone(output string, exitCode int, dur time.Duration)
}
