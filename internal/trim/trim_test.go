package trim

import (
	"testing"

	"github.com/John-Robertt/FMUX/internal/domain"
)

func video(t *testing.T, durMs int64, rate domain.Rate, trims ...domain.TrimRequest) domain.Track {
	t.Helper()
	return domain.Track{
		ID:       "video:0",
		Kind:     domain.KindVideo,
		Duration: domain.TimecodeFromMilli(durMs),
		Rate:     rate,
		Trims:    trims,
	}
}

func keepMs(start, end int64) domain.TrimRequest {
	return domain.TrimRequest{Keep: true, Unit: domain.UnitMilli, Start: start, End: end}
}

func cutMs(start, end int64) domain.TrimRequest {
	return domain.TrimRequest{Keep: false, Unit: domain.UnitMilli, Start: start, End: end}
}

func TestResolve_EmptySpecIsIdentity(t *testing.T) {
	tr := video(t, 60_000, domain.RateNTSCFilm)
	rt, err := Resolve(tr)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if len(rt.Keep) != 1 {
		t.Fatalf("期望整轨单段，实际 %d 段", len(rt.Keep))
	}
	if !rt.Keep[0].Start.IsZero() || rt.Keep[0].End.Cmp(tr.Duration.Abs()) != 0 {
		t.Fatalf("保留段不是整轨：%v..%v", rt.Keep[0].Start, rt.Keep[0].End)
	}
	if rt.OutputDuration.Milli() != 60_000 {
		t.Fatalf("输出时长不正确：%d", rt.OutputDuration.Milli())
	}
}

func TestResolve_CutKeepRoundTrip(t *testing.T) {
	// 先用 keep 列表解析，再用它的补集（cut 列表）解析，两者必须完全一致。
	keeps := []domain.TrimRequest{keepMs(1000, 5000), keepMs(10_000, 20_000)}
	cuts := []domain.TrimRequest{cutMs(0, 1000), cutMs(5000, 10_000), cutMs(20_000, 60_000)}

	a, err := Resolve(video(t, 60_000, domain.RatePAL, keeps...))
	if err != nil {
		t.Fatalf("keep 解析失败：%v", err)
	}
	b, err := Resolve(video(t, 60_000, domain.RatePAL, cuts...))
	if err != nil {
		t.Fatalf("cut 解析失败：%v", err)
	}

	if len(a.Keep) != len(b.Keep) {
		t.Fatalf("段数不一致：%d vs %d", len(a.Keep), len(b.Keep))
	}
	for i := range a.Keep {
		if a.Keep[i].Start.Cmp(b.Keep[i].Start) != 0 || a.Keep[i].End.Cmp(b.Keep[i].End) != 0 {
			t.Fatalf("第 %d 段不一致：%v..%v vs %v..%v", i,
				a.Keep[i].Start, a.Keep[i].End, b.Keep[i].Start, b.Keep[i].End)
		}
	}
	if a.OutputDuration.Cmp(b.OutputDuration) != 0 {
		t.Fatalf("输出时长不一致：%v vs %v", a.OutputDuration, b.OutputDuration)
	}
}

func TestResolve_OverlapMerge(t *testing.T) {
	// [a,b) 与 [c,d)，c <= b：合并为恰好一段 [min(a,c), max(b,d))。
	rt, err := Resolve(video(t, 60_000, domain.RatePAL, keepMs(1000, 8000), keepMs(4000, 12_000)))
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if len(rt.Keep) != 1 {
		t.Fatalf("期望合并为一段，实际 %d 段", len(rt.Keep))
	}
	if rt.Keep[0].Start.Milli() != 1000 || rt.Keep[0].End.Milli() != 12_000 {
		t.Fatalf("合并结果不正确：%v..%v", rt.Keep[0].Start, rt.Keep[0].End)
	}

	// 相邻段也要并（end exclusive，不允许留缝隙假象）。
	rt, err = Resolve(video(t, 60_000, domain.RatePAL, keepMs(0, 1000), keepMs(1000, 2000)))
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if len(rt.Keep) != 1 || rt.Keep[0].End.Milli() != 2000 {
		t.Fatalf("相邻段未合并：%+v", rt.Keep)
	}

	// 起点相同：合并到更大的终点。
	rt, err = Resolve(video(t, 60_000, domain.RatePAL, keepMs(1000, 3000), keepMs(1000, 9000)))
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if len(rt.Keep) != 1 || rt.Keep[0].End.Milli() != 9000 {
		t.Fatalf("等起点合并不正确：%+v", rt.Keep)
	}
}

func TestResolve_FrameTrims(t *testing.T) {
	// 25fps 下帧号换算必须精确：[25, 50) 帧即 [1000ms, 2000ms)。
	tr := video(t, 10_000, domain.RatePAL,
		domain.TrimRequest{Keep: true, Unit: domain.UnitFrames, Start: 25, End: 50})
	rt, err := Resolve(tr)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if rt.Keep[0].Start.Milli() != 1000 || rt.Keep[0].End.Milli() != 2000 {
		t.Fatalf("帧号换算不正确：%v..%v", rt.Keep[0].Start, rt.Keep[0].End)
	}
}

func TestResolve_NegativeFrameFromEnd(t *testing.T) {
	// 10 秒 @25fps = 250 帧；[0, -25) 即去掉最后一秒。
	tr := video(t, 10_000, domain.RatePAL,
		domain.TrimRequest{Keep: true, Unit: domain.UnitFrames, Start: 0, End: -25})
	rt, err := Resolve(tr)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if rt.OutputDuration.Milli() != 9000 {
		t.Fatalf("倒数帧号解析不正确：%d", rt.OutputDuration.Milli())
	}
}

func TestResolve_OpenEnds(t *testing.T) {
	tr := video(t, 10_000, domain.RatePAL,
		domain.TrimRequest{Keep: true, Unit: domain.UnitMilli, Start: 2000, OpenEnd: true})
	rt, err := Resolve(tr)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if rt.Keep[0].End.Milli() != 10_000 {
		t.Fatalf("开区间终点应取整轨末尾：%v", rt.Keep[0].End)
	}
}

func TestResolve_RejectsOutOfBounds(t *testing.T) {
	// cut 超出原生时长必须失败，而不是静默截断。
	_, err := Resolve(video(t, 10_000, domain.RatePAL, cutMs(9000, 11_000)))
	if !IsInvalidTrim(err) {
		t.Fatalf("期望 InvalidTrimError，实际 %v", err)
	}

	_, err = Resolve(video(t, 10_000, domain.RatePAL,
		domain.TrimRequest{Keep: false, Unit: domain.UnitFrames, Start: 0, End: 251}))
	if !IsInvalidTrim(err) {
		t.Fatalf("期望帧号越界失败，实际 %v", err)
	}
}

func TestResolve_RejectsDegenerate(t *testing.T) {
	if _, err := Resolve(video(t, 10_000, domain.RatePAL, keepMs(5000, 5000))); !IsInvalidTrim(err) {
		t.Fatalf("期望零长区间失败")
	}
	if _, err := Resolve(video(t, 10_000, domain.RatePAL, keepMs(6000, 5000))); !IsInvalidTrim(err) {
		t.Fatalf("期望负长区间失败")
	}
	// 全轨 cut 掉 => 保留段为空。
	if _, err := Resolve(video(t, 10_000, domain.RatePAL, cutMs(0, 10_000))); !IsInvalidTrim(err) {
		t.Fatalf("期望空保留列表失败")
	}
	// 毫秒不允许负值。
	if _, err := Resolve(video(t, 10_000, domain.RatePAL, keepMs(-1000, 5000))); !IsInvalidTrim(err) {
		t.Fatalf("期望负毫秒失败")
	}
}

func TestResolve_MixedKeepCut(t *testing.T) {
	// keep [0,10s) 再 cut [2s,3s)：得到两段，总时长 9s。
	rt, err := Resolve(video(t, 10_000, domain.RatePAL, keepMs(0, 10_000), cutMs(2000, 3000)))
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if len(rt.Keep) != 2 {
		t.Fatalf("期望两段，实际 %d", len(rt.Keep))
	}
	if rt.OutputDuration.Milli() != 9000 {
		t.Fatalf("输出时长不正确：%d", rt.OutputDuration.Milli())
	}
}

func TestAlignDelays(t *testing.T) {
	v, err := Resolve(video(t, 60_000, domain.RateNTSCFilm, keepMs(1000, 31_000)))
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	audio := domain.Track{
		ID:          "audio:0",
		Kind:        domain.KindAudio,
		Duration:    domain.TimecodeFromMilli(61_000),
		StartOffset: domain.TimecodeFromMilli(-24), // pre-roll
		Trims:       []domain.TrimRequest{keepMs(1000, 31_000)},
	}
	a, err := Resolve(audio)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}

	tracks := []domain.ResolvedTrack{v, a}
	if err := AlignDelays(tracks, 0, domain.Timecode{}); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if tracks[0].Delay.Milli() != 0 {
		t.Fatalf("参考轨 delay 必须为 0：%d", tracks[0].Delay.Milli())
	}
	if tracks[1].Delay.Milli() != -24 {
		t.Fatalf("音频 delay 应等于 pre-roll 偏移：%d", tracks[1].Delay.Milli())
	}

	// 全局偏移平移所有轨。
	if err := AlignDelays(tracks, 0, domain.TimecodeFromMilli(500)); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if tracks[0].Delay.Milli() != 500 || tracks[1].Delay.Milli() != 476 {
		t.Fatalf("全局偏移不正确：%d / %d", tracks[0].Delay.Milli(), tracks[1].Delay.Milli())
	}
}
