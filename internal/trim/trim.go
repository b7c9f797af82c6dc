// Package trim 把用户写下的 keep/cut 请求解析成规范的保留段列表。
//
// 这是整个流程里最容易出错的一段：trim spec 是用户手写的，经常重叠、
// 冗余、混用帧号/毫秒/倒数帧，还必须在不同帧率的轨之间保持零漂移。
// 策略：一切请求在入口处立刻归一化为绝对时间 Segment（tagged variant
// 只活到这一步），后续合并/求补算法不再分辨请求形态。
package trim

import (
	"errors"
	"fmt"
	"sort"

	"github.com/John-Robertt/FMUX/internal/domain"
)

// InvalidTrimError 表示 trim spec 越界或归一化后退化。
// 携带轨标识：上层必须能告诉用户是哪条轨的哪条请求出了问题。
type InvalidTrimError struct {
	TrackID string
	Index   int // 请求下标；-1 表示整体问题（例如保留段为空）
	Reason  string
}

func (e *InvalidTrimError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("轨 %s 的 trim spec 无效：%s", e.TrackID, e.Reason)
	}
	return fmt.Sprintf("轨 %s 的第 %d 条 trim 请求无效：%s", e.TrackID, e.Index+1, e.Reason)
}

// IsInvalidTrim 判断 err 是否为 trim 校验错误。
func IsInvalidTrim(err error) bool {
	var e *InvalidTrimError
	return errors.As(err, &e)
}

// Resolve 把一条 Track 的 trim spec 解析为不可变的 ResolvedTrack。
//
// 算法（顺序固定）：
// 1. 每条请求归一化为绝对时间的非负 Segment（倒数帧号对全长求余，
//    帧号按轨帧率精确换算）
// 2. 只有 cut 请求时，对整轨区间求补得到 keep 列表
// 3. 合并相邻/重叠的 keep（起点早者优先；起点相同合并到更大的终点）
// 4. 从 keep 中减去所有 cut
// 5. 校验：越界、空保留列表、零长/负长段 => InvalidTrimError
//
// Delay 不在这里计算（需要全局参考轨），见 AlignDelays。
func Resolve(t domain.Track) (domain.ResolvedTrack, error) {
	if t.Duration.Cmp(domain.Timecode{}) <= 0 {
		return domain.ResolvedTrack{}, &InvalidTrimError{TrackID: t.ID, Index: -1, Reason: "原生时长必须为正"}
	}

	var keeps, cuts []domain.Segment
	for i, req := range t.Trims {
		seg, err := normalize(t, i, req)
		if err != nil {
			return domain.ResolvedTrack{}, err
		}
		if req.Keep {
			keeps = append(keeps, seg)
		} else {
			cuts = append(cuts, seg)
		}
	}

	full := domain.Segment{Start: domain.Timecode{}, End: t.Duration.Abs()}
	if len(keeps) == 0 {
		keeps = []domain.Segment{full}
	}
	keeps = merge(keeps)
	if len(cuts) > 0 {
		keeps = subtract(keeps, merge(cuts))
	}
	if len(keeps) == 0 {
		return domain.ResolvedTrack{}, &InvalidTrimError{TrackID: t.ID, Index: -1, Reason: "保留段为空（全部被 cut 掉了）"}
	}

	var total domain.Timecode
	for _, s := range keeps {
		sum, err := total.Add(s.Duration())
		if err != nil {
			return domain.ResolvedTrack{}, err
		}
		total = sum
	}

	return domain.ResolvedTrack{
		Track:          t,
		Keep:           keeps,
		OutputDuration: total,
	}, nil
}

// AlignDelays 计算每条轨的容器 delay，使各轨首个保留样本在
// 参考轨（tracks[ref]）的时间轴上正确对齐。
//
// delay_i = (StartOffset_i + firstKeep_i) - (StartOffset_ref + firstKeep_ref) + globalOffset
//
// 参考轨自身的 delay 恒等于 globalOffset。
func AlignDelays(tracks []domain.ResolvedTrack, ref int, globalOffset domain.Timecode) error {
	if len(tracks) == 0 {
		return nil
	}
	if ref < 0 || ref >= len(tracks) {
		return fmt.Errorf("参考轨下标非法：%d", ref)
	}

	anchor, err := firstSample(tracks[ref])
	if err != nil {
		return err
	}

	for i := range tracks {
		first, err := firstSample(tracks[i])
		if err != nil {
			return err
		}
		d, err := first.Sub(anchor)
		if err != nil {
			return err
		}
		d, err = d.Add(globalOffset.Abs())
		if err != nil {
			return err
		}
		tracks[i].Delay = d
	}
	return nil
}

// firstSample 返回该轨首个保留样本在其源时间轴上的绝对位置。
func firstSample(rt domain.ResolvedTrack) (domain.Timecode, error) {
	if len(rt.Keep) == 0 {
		return domain.Timecode{}, fmt.Errorf("轨 %s 没有保留段", rt.Track.ID)
	}
	return rt.Track.StartOffset.Abs().Add(rt.Keep[0].Start.Abs())
}

// normalize 把一条请求归一化为绝对时间 Segment。
func normalize(t domain.Track, idx int, req domain.TrimRequest) (domain.Segment, error) {
	fail := func(reason string) (domain.Segment, error) {
		return domain.Segment{}, &InvalidTrimError{TrackID: t.ID, Index: idx, Reason: reason}
	}

	var start, end domain.Timecode
	switch req.Unit {
	case domain.UnitFrames:
		if !t.Rate.Valid() {
			return fail("该轨没有帧率描述，不能用帧号 trim（请用毫秒）")
		}
		total := t.Frames
		if total == 0 {
			n, err := t.Duration.Frames(t.Rate)
			if err != nil {
				return fail(err.Error())
			}
			total = n
		}

		sf := req.Start
		ef := req.End
		if req.OpenStart {
			sf = 0
		} else if sf < 0 {
			if total == 0 {
				return fail("倒数帧号需要已知总帧数")
			}
			sf += total
		}
		if !req.OpenEnd && ef < 0 {
			if total == 0 {
				return fail("倒数帧号需要已知总帧数")
			}
			ef += total
		}
		if sf < 0 || (!req.OpenEnd && ef < 0) {
			return fail("倒数帧号超出了轨道开头")
		}
		if !req.OpenEnd && ef > total {
			return fail(fmt.Sprintf("帧号 %d 超出原生总帧数 %d", ef, total))
		}

		s, err := domain.TimecodeFromFrame(sf, t.Rate)
		if err != nil {
			return fail(err.Error())
		}
		start = s
		if req.OpenEnd {
			end = t.Duration.Abs()
		} else {
			e, err := domain.TimecodeFromFrame(ef, t.Rate)
			if err != nil {
				return fail(err.Error())
			}
			// 末帧的帧格终点可能因取整略越过原生时长；收口到时长本身。
			if ef == total && e.Cmp(t.Duration.Abs()) > 0 {
				e = t.Duration.Abs()
			}
			end = e
		}

	case domain.UnitMilli:
		if (!req.OpenStart && req.Start < 0) || (!req.OpenEnd && req.End < 0) {
			return fail("毫秒 trim 不允许负值（倒数只支持帧号）")
		}
		if req.OpenStart {
			start = domain.Timecode{}
		} else {
			start = domain.TimecodeFromMilli(req.Start)
		}
		if req.OpenEnd {
			end = t.Duration.Abs()
		} else {
			end = domain.TimecodeFromMilli(req.End)
		}

	default:
		return fail(fmt.Sprintf("未知 trim 单位：%q", req.Unit))
	}

	// 统一进入绝对时间空间；之后的合并/求补不再关心帧率。
	seg := domain.Segment{Start: start.Abs(), End: end.Abs()}
	if !seg.Valid() {
		return fail("归一化后得到零长或负长区间")
	}
	if seg.End.Cmp(t.Duration.Abs()) > 0 {
		return fail("区间终点超出原生时长")
	}
	return seg, nil
}

// merge 合并重叠或相邻的区间，输出按 Start 递增且互不重叠。
func merge(segs []domain.Segment) []domain.Segment {
	if len(segs) <= 1 {
		return append([]domain.Segment(nil), segs...)
	}
	sorted := append([]domain.Segment(nil), segs...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if c := sorted[i].Start.Cmp(sorted[j].Start); c != 0 {
			return c < 0
		}
		// 起点相同：终点大的在前，保证一次扫描就能吃掉子区间。
		return sorted[i].End.Cmp(sorted[j].End) > 0
	})

	out := make([]domain.Segment, 0, len(sorted))
	cur := sorted[0]
	for _, s := range sorted[1:] {
		// s.Start <= cur.End 即重叠或相邻，并段。
		if s.Start.Cmp(cur.End) <= 0 {
			if s.End.Cmp(cur.End) > 0 {
				cur.End = s.End
			}
			continue
		}
		out = append(out, cur)
		cur = s
	}
	return append(out, cur)
}

// subtract 从 keeps（已合并）中减去 cuts（已合并），丢弃退化为空的碎片。
func subtract(keeps, cuts []domain.Segment) []domain.Segment {
	out := make([]domain.Segment, 0, len(keeps))
	for _, k := range keeps {
		rest := []domain.Segment{k}
		for _, c := range cuts {
			next := rest[:0:0]
			for _, r := range rest {
				// 不相交：整段保留。
				if c.End.Cmp(r.Start) <= 0 || c.Start.Cmp(r.End) >= 0 {
					next = append(next, r)
					continue
				}
				left := domain.Segment{Start: r.Start, End: c.Start}
				if left.Valid() {
					next = append(next, left)
				}
				right := domain.Segment{Start: c.End, End: r.End}
				if right.Valid() {
					next = append(next, right)
				}
			}
			rest = next
		}
		out = append(out, rest...)
	}
	return out
}
