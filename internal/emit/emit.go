// Package emit 把 MuxPlan 序列化成 mkvmerge 的调用参数。
//
// 纯函数：不碰网络、不起进程；唯一的 I/O 是附件存在性检查。
package emit

import (
	"fmt"
	"os"
	"strings"

	"github.com/John-Robertt/FMUX/internal/domain"
)

// Options 是一次序列化的外部事实（plan 之外的路径）。
type Options struct {
	Output       string // -o 输出文件
	ChaptersPath string // 已写好的章节 XML；空 = 不带章节
}

// Args 产出完整的 mkvmerge 参数序列。
//
// 规则：
// - 同一 Source 的轨合并为一个输入文件；文件顺序按首次出现
// - 每个输入文件带显式流选择（-d/-a/-s 与 -D/-A/-S），未选中的流不进容器
// - 轨顺序用 --track-order 固定成 plan 顺序
// - 附件在轨之后，--attachment-mime-type 紧挨对应的 --attach-file
// - 附件路径必须存在（这是 emit 唯一做的 I/O）
func Args(plan domain.MuxPlan, opts Options) ([]string, error) {
	if opts.Output == "" {
		return nil, fmt.Errorf("缺少输出路径")
	}

	args := []string{"-o", opts.Output}
	if plan.Title != "" {
		args = append(args, "--title", plan.Title)
	}

	// 按首次出现归并 Source。
	type fileGroup struct {
		source string
		tracks []domain.ResolvedTrack
	}
	var groups []*fileGroup
	index := map[string]*fileGroup{}
	for _, rt := range plan.Tracks {
		g, ok := index[rt.Track.Source]
		if !ok {
			g = &fileGroup{source: rt.Track.Source}
			index[rt.Track.Source] = g
			groups = append(groups, g)
		}
		g.tracks = append(g.tracks, rt)
	}

	for _, g := range groups {
		var vids, auds, subs []string
		for _, rt := range g.tracks {
			t := rt.Track
			n := t.Stream

			switch t.Kind {
			case domain.KindVideo:
				vids = append(vids, fmt.Sprint(n))
			case domain.KindAudio:
				auds = append(auds, fmt.Sprint(n))
			case domain.KindSubtitle:
				subs = append(subs, fmt.Sprint(n))
			}

			if t.Lang != "" {
				args = append(args, "--language", fmt.Sprintf("%d:%s", n, t.Lang))
			}
			if t.Name != "" {
				args = append(args, "--track-name", fmt.Sprintf("%d:%s", n, t.Name))
			}
			if ms := rt.Delay.Milli(); ms != 0 {
				args = append(args, "--sync", fmt.Sprintf("%d:%d", n, ms))
			}
			args = append(args, "--default-track-flag", fmt.Sprintf("%d:%s", n, yesno(t.Default)))
			if t.Forced {
				args = append(args, "--forced-display-flag", fmt.Sprintf("%d:yes", n))
			}
			args = append(args, t.Args...)
		}

		args = append(args, selection("-d", "-D", vids)...)
		args = append(args, selection("-a", "-A", auds)...)
		args = append(args, selection("-s", "-S", subs)...)
		// 源容器里的附件与章节不透传：字体/章节都由 plan 统一供给。
		args = append(args, "--no-attachments", "--no-chapters")
		args = append(args, g.source)
	}

	for _, a := range plan.Attachments {
		if _, err := os.Stat(a.Path); err != nil {
			return nil, fmt.Errorf("附件不存在 %s: %w", a.Path, err)
		}
		args = append(args, "--attachment-mime-type", a.MIME, "--attach-file", a.Path)
	}

	if opts.ChaptersPath != "" {
		args = append(args, "--chapters", opts.ChaptersPath)
	}

	// plan 顺序 → file:track 对。
	fileIdx := map[string]int{}
	for i, g := range groups {
		fileIdx[g.source] = i
	}
	pairs := make([]string, 0, len(plan.Tracks))
	for _, rt := range plan.Tracks {
		pairs = append(pairs, fmt.Sprintf("%d:%d", fileIdx[rt.Track.Source], rt.Track.Stream))
	}
	if len(pairs) > 0 {
		args = append(args, "--track-order", strings.Join(pairs, ","))
	}
	return args, nil
}

func yesno(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// selection 产出一类流的选择参数：有选中的用白名单，一个没有用排除开关。
func selection(pick, none string, ids []string) []string {
	if len(ids) == 0 {
		return []string{none}
	}
	return []string{pick, strings.Join(ids, ",")}
}
