// Package probe 用 mkvmerge -J 探测源容器，产出与工具无关的轨道清单。
//
// 结果按源文件 path+size+mtime 进缓存（dry-run 只读缓存，不落盘）。
package probe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/John-Robertt/FMUX/internal/domain"
	"github.com/John-Robertt/FMUX/internal/infra/cache"
	"github.com/John-Robertt/FMUX/internal/infra/execx"
)

// Error 标识一次探测失败（源文件定位 + 底层原因）。
type Error struct {
	Source string
	Err    error
}

func (e *Error) Error() string { return fmt.Sprintf("探测失败 %s: %v", e.Source, e.Err) }
func (e *Error) Unwrap() error { return e.Err }

// Stream 是源容器里一条流的描述。
type Stream struct {
	ID      int
	Kind    domain.TrackKind
	Codec   string
	CodecID string
	Lang    string
	Name    string
	Default bool
	Forced  bool

	// Rate 从视频轨的 default_duration 推导（贴靠常见帧率）；
	// 无法推导时为零值。
	Rate domain.Rate
}

// Result 是一次探测的全部产出。
type Result struct {
	ContainerType string
	Duration      domain.Timecode // 容器时长；未知为零值
	Streams       []Stream
}

// mkvmerge -J 输出的最小子集。
type mergeJSON struct {
	Container struct {
		Type       string `json:"type"`
		Properties struct {
			Duration int64 `json:"duration"` // ns
		} `json:"properties"`
	} `json:"container"`
	Tracks []struct {
		ID         int    `json:"id"`
		Type       string `json:"type"`
		Codec      string `json:"codec"`
		Properties struct {
			CodecID         string `json:"codec_id"`
			Language        string `json:"language"`
			TrackName       string `json:"track_name"`
			DefaultTrack    bool   `json:"default_track"`
			ForcedTrack     bool   `json:"forced_track"`
			DefaultDuration int64  `json:"default_duration"` // ns/frame
		} `json:"properties"`
	} `json:"tracks"`
}

// Prober 持有探测所需的外部依赖。
type Prober struct {
	Runner execx.Runner
	Store  cache.Store
	Tool   string // mkvmerge 可执行文件
}

// Probe 探测 src。缓存命中则不触碰外部工具。
func (p Prober) Probe(ctx context.Context, src string) (*Result, error) {
	st, err := os.Stat(src)
	if err != nil {
		return nil, &Error{Source: src, Err: err}
	}
	size, mtime := st.Size(), st.ModTime().Unix()

	if raw, ok, err := p.Store.ReadProbe(src, size, mtime); err == nil && ok {
		if res, perr := Parse(raw); perr == nil {
			return res, nil
		}
		// 缓存损坏：当未命中处理，重新探测。
	}

	res, err := p.Runner.Run(ctx, p.Tool, []string{"-J", src})
	if err != nil {
		return nil, &Error{Source: src, Err: err}
	}
	if res.ExitCode != 0 {
		return nil, &Error{Source: src, Err: fmt.Errorf("mkvmerge -J 退出码 %d: %s", res.ExitCode, res.Output)}
	}

	out, err := Parse(res.Output)
	if err != nil {
		return nil, &Error{Source: src, Err: err}
	}

	if err := p.Store.WriteProbe(src, size, mtime, res.Output); err != nil && !errors.Is(err, cache.ErrReadOnly) {
		return nil, &Error{Source: src, Err: err}
	}
	return out, nil
}

// Parse 解析 mkvmerge -J 的 JSON 输出。
func Parse(raw []byte) (*Result, error) {
	var data mergeJSON
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("无法解析 mkvmerge 输出: %w", err)
	}

	out := &Result{ContainerType: data.Container.Type}
	if ns := data.Container.Properties.Duration; ns > 0 {
		out.Duration = domain.TimecodeFromNanos(ns)
	}

	for _, t := range data.Tracks {
		kind, ok := kindOf(t.Type)
		if !ok {
			continue
		}
		s := Stream{
			ID:      t.ID,
			Kind:    kind,
			Codec:   t.Codec,
			CodecID: t.Properties.CodecID,
			Name:    t.Properties.TrackName,
			Default: t.Properties.DefaultTrack,
			Forced:  t.Properties.ForcedTrack,
		}
		if lang, ok := domain.ParseLang(t.Properties.Language); ok && lang != "und" {
			s.Lang = lang
		}
		if kind == domain.KindVideo && t.Properties.DefaultDuration > 0 {
			s.Rate = rateFromFrameNs(t.Properties.DefaultDuration)
		}
		out.Streams = append(out.Streams, s)
	}
	return out, nil
}

func kindOf(t string) (domain.TrackKind, bool) {
	switch t {
	case "video":
		return domain.KindVideo, true
	case "audio":
		return domain.KindAudio, true
	case "subtitles":
		return domain.KindSubtitle, true
	default:
		return "", false
	}
}

// rateFromFrameNs 从每帧纳秒数推导帧率。
//
// mkvmerge 写出的 default_duration 是取整值（23.976fps → 41708333ns），
// 直接换算会得到 1000000000/41708333 这种谁也不认的分数；因此先对常见
// 帧率做贴靠（偏差 < 0.1%），都贴不上才用原始换算。
func rateFromFrameNs(ns int64) domain.Rate {
	known := []domain.Rate{
		domain.RateNTSCFilm,
		domain.RateFilm,
		domain.RatePAL,
		domain.RateNTSC,
		{Num: 50, Den: 1},
		{Num: 60000, Den: 1001},
		{Num: 60, Den: 1},
	}
	for _, r := range known {
		// |ns·Num − 1e9·Den| / (1e9·Den) < 0.001
		diff := ns*r.Num - 1_000_000_000*r.Den
		if diff < 0 {
			diff = -diff
		}
		if diff*1000 < 1_000_000_000*r.Den {
			return r
		}
	}
	return domain.Rate{Num: 1_000_000_000, Den: ns}
}
