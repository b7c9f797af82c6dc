// Package planner 把解析完的轨、附件、章节合成为最终 MuxPlan。
//
// 纯函数：不做任何 I/O；给定同样输入永远产出同样的 plan。
package planner

import (
	"errors"
	"fmt"
	"sort"

	"github.com/John-Robertt/FMUX/internal/domain"
)

// TimelineMismatchError 表示同一时间轴组内有轨的输出时长超出容差。
// 致命：不产出部分 plan。
type TimelineMismatchError struct {
	TrackID     string
	TrackMs     int64
	LongestID   string
	LongestMs   int64
	ToleranceMs int64
}

func (e *TimelineMismatchError) Error() string {
	return fmt.Sprintf("时间轴不一致：%s=%dms 与最长轨 %s=%dms 相差超过容差 %dms",
		e.TrackID, e.TrackMs, e.LongestID, e.LongestMs, e.ToleranceMs)
}

// IsTimelineMismatch 判定 err 是否为时间轴不一致。
func IsTimelineMismatch(err error) bool {
	var e *TimelineMismatchError
	return errors.As(err, &e)
}

// DuplicateTrackError 表示两条轨的 (kind, lang, name) 完全相同。
type DuplicateTrackError struct {
	A, B string // 轨 ID
}

func (e *DuplicateTrackError) Error() string {
	return fmt.Sprintf("轨重复：%s 与 %s 的 kind+lang+name 完全相同（allow_duplicates 可放行）", e.A, e.B)
}

// IsDuplicateTrack 判定 err 是否为轨重复。
func IsDuplicateTrack(err error) bool {
	var e *DuplicateTrackError
	return errors.As(err, &e)
}

// Options 是合成的全部可调项。
type Options struct {
	Title string

	// 语言优先级（主子标签比较）；不在表内的排在表内之后，同优先级保持输入顺序。
	AudioLangs []string
	SubLangs   []string

	// Order 显式排序覆盖：必须恰好包含每条轨的 ID 一次；空 = 默认排序。
	Order []string

	AllowDuplicates bool

	// ToleranceMs 时间轴容差；0 = 参考轨一帧时长。
	ToleranceMs int64
}

// fallbackToleranceMs 在参考轨没有可用帧率时兜底（约等于 24fps 一帧）。
const fallbackToleranceMs = 42

// Synthesize 校验并合成 MuxPlan。
//
// 顺序规则：显式 Order 完全照搬；否则视频、音频（按语言优先级）、
// 字幕（按语言优先级）。章节不是轨，总在 plan 的 Chapters 字段里。
func Synthesize(tracks []domain.ResolvedTrack, atts []domain.Attachment, chapters []domain.ChapterEntry, warns []domain.Warning, opts Options) (domain.MuxPlan, error) {
	if len(tracks) == 0 {
		return domain.MuxPlan{}, fmt.Errorf("没有任何轨")
	}
	for _, rt := range tracks {
		if rt.Track.Kind == domain.KindChapter {
			return domain.MuxPlan{}, fmt.Errorf("章节不作为轨进入 plan：%s", rt.Track.ID)
		}
		if len(rt.Keep) == 0 {
			return domain.MuxPlan{}, fmt.Errorf("轨 %s 未经 trim 解析", rt.Track.ID)
		}
	}

	if !opts.AllowDuplicates {
		if err := checkDuplicates(tracks); err != nil {
			return domain.MuxPlan{}, err
		}
	}
	if err := checkTimeline(tracks, opts.ToleranceMs); err != nil {
		return domain.MuxPlan{}, err
	}

	ordered, err := order(tracks, opts)
	if err != nil {
		return domain.MuxPlan{}, err
	}

	return domain.MuxPlan{
		Tracks:      ordered,
		Attachments: dedupeAttachments(atts),
		Chapters:    chapters,
		Title:       opts.Title,
		Warnings:    append([]domain.Warning(nil), warns...),
	}, nil
}

func checkDuplicates(tracks []domain.ResolvedTrack) error {
	type key struct {
		kind domain.TrackKind
		lang string
		name string
	}
	seen := map[key]string{}
	for _, rt := range tracks {
		k := key{rt.Track.Kind, rt.Track.Lang, rt.Track.Name}
		if prev, ok := seen[k]; ok {
			return &DuplicateTrackError{A: prev, B: rt.Track.ID}
		}
		seen[k] = rt.Track.ID
	}
	return nil
}

// checkTimeline 校验视频/音频轨的输出时长一致性。
//
// 字幕轨不参与：其“时长”是最后一条事件的结束时间，不代表时间轴长度。
// 参考轨取第一条视频轨（没有视频时取最长的音频轨），容差默认为其一帧时长。
func checkTimeline(tracks []domain.ResolvedTrack, tolMs int64) error {
	var timed []domain.ResolvedTrack
	for _, rt := range tracks {
		if rt.Track.Kind == domain.KindVideo || rt.Track.Kind == domain.KindAudio {
			timed = append(timed, rt)
		}
	}
	if len(timed) < 2 {
		return nil
	}

	longest := timed[0]
	for _, rt := range timed[1:] {
		if rt.OutputDuration.Cmp(longest.OutputDuration) > 0 {
			longest = rt
		}
	}

	if tolMs == 0 {
		ref := longest
		for _, rt := range timed {
			if rt.Track.Kind == domain.KindVideo {
				ref = rt
				break
			}
		}
		if ref.Track.Rate.Valid() {
			tolMs = ref.Track.Rate.FrameDuration().Milli()
		}
		if tolMs == 0 {
			tolMs = fallbackToleranceMs
		}
	}

	longMs := longest.OutputDuration.Milli()
	for _, rt := range timed {
		d := longMs - rt.OutputDuration.Milli()
		if d < 0 {
			d = -d
		}
		if d > tolMs {
			return &TimelineMismatchError{
				TrackID:     rt.Track.ID,
				TrackMs:     rt.OutputDuration.Milli(),
				LongestID:   longest.Track.ID,
				LongestMs:   longMs,
				ToleranceMs: tolMs,
			}
		}
	}
	return nil
}

func order(tracks []domain.ResolvedTrack, opts Options) ([]domain.ResolvedTrack, error) {
	if len(opts.Order) > 0 {
		return explicitOrder(tracks, opts.Order)
	}

	var vids, auds, subs []domain.ResolvedTrack
	for _, rt := range tracks {
		switch rt.Track.Kind {
		case domain.KindVideo:
			vids = append(vids, rt)
		case domain.KindAudio:
			auds = append(auds, rt)
		case domain.KindSubtitle:
			subs = append(subs, rt)
		}
	}
	sortByLang(auds, opts.AudioLangs)
	sortByLang(subs, opts.SubLangs)

	out := make([]domain.ResolvedTrack, 0, len(tracks))
	out = append(out, vids...)
	out = append(out, auds...)
	out = append(out, subs...)
	return out, nil
}

func explicitOrder(tracks []domain.ResolvedTrack, ids []string) ([]domain.ResolvedTrack, error) {
	byID := make(map[string]domain.ResolvedTrack, len(tracks))
	for _, rt := range tracks {
		byID[rt.Track.ID] = rt
	}
	if len(ids) != len(tracks) {
		return nil, fmt.Errorf("order 必须恰好列出全部 %d 条轨，实际 %d 项", len(tracks), len(ids))
	}

	out := make([]domain.ResolvedTrack, 0, len(ids))
	seen := map[string]struct{}{}
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("order 里 %q 出现多次", id)
		}
		seen[id] = struct{}{}
		rt, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("order 里 %q 不是已知轨", id)
		}
		out = append(out, rt)
	}
	return out, nil
}

// sortByLang 按语言优先级稳定排序；主子标签比较，不在表内的排最后。
func sortByLang(tracks []domain.ResolvedTrack, langs []string) {
	if len(langs) == 0 {
		return
	}
	rank := func(lang string) int {
		p := domain.LangPrimary(lang)
		for i, l := range langs {
			if domain.LangPrimary(l) == p {
				return i
			}
		}
		return len(langs)
	}
	sort.SliceStable(tracks, func(i, j int) bool {
		return rank(tracks[i].Track.Lang) < rank(tracks[j].Track.Lang)
	})
}

func dedupeAttachments(atts []domain.Attachment) []domain.Attachment {
	if len(atts) == 0 {
		return nil
	}
	seen := map[string]struct{}{}
	out := make([]domain.Attachment, 0, len(atts))
	for _, a := range atts {
		if _, ok := seen[a.Path]; ok {
			continue
		}
		seen[a.Path] = struct{}{}
		out = append(out, a)
	}
	return out
}
