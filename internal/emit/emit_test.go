package emit

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/John-Robertt/FMUX/internal/domain"
)

func resolved(id string, kind domain.TrackKind, src string, stream int, mod func(*domain.ResolvedTrack)) domain.ResolvedTrack {
	rt := domain.ResolvedTrack{Track: domain.Track{ID: id, Kind: kind, Source: src, Stream: stream}}
	if mod != nil {
		mod(&rt)
	}
	return rt
}

func argstr(t *testing.T, plan domain.MuxPlan, opts Options) string {
	t.Helper()
	args, err := Args(plan, opts)
	if err != nil {
		t.Fatalf("Args: %v", err)
	}
	return strings.Join(args, " ")
}

func TestArgsBasic(t *testing.T) {
	plan := domain.MuxPlan{
		Title: "Frieren - 12",
		Tracks: []domain.ResolvedTrack{
			resolved("video:0", domain.KindVideo, "/v/ep.mkv", 0, func(rt *domain.ResolvedTrack) {
				rt.Track.Default = true
			}),
			resolved("audio:1", domain.KindAudio, "/v/ep.mkv", 1, func(rt *domain.ResolvedTrack) {
				rt.Track.Lang = "jpn"
				rt.Track.Default = true
				rt.Delay = domain.TimecodeFromMilli(-24)
			}),
			resolved("subtitle:0", domain.KindSubtitle, "/s/ep.ass", 0, func(rt *domain.ResolvedTrack) {
				rt.Track.Lang = "eng"
				rt.Track.Name = "Dialogue"
			}),
		},
	}

	s := argstr(t, plan, Options{Output: "/out/ep.mkv"})

	for _, want := range []string{
		"-o /out/ep.mkv",
		"--title Frieren - 12",
		"--language 1:jpn",
		"--sync 1:-24",
		"--default-track-flag 0:yes",
		"--default-track-flag 1:yes",
		"--default-track-flag 0:no", // 字幕轨非默认
		"--track-name 0:Dialogue",
		"-d 0 -a 1 -S",
		"-s 0",
		"--track-order 0:0,0:1,1:0",
	} {
		if !strings.Contains(s, want) {
			t.Fatalf("缺少 %q:\n%s", want, s)
		}
	}
	// 同一源文件只出现一次。
	if strings.Count(s, "/v/ep.mkv") != 1 {
		t.Fatalf("源文件应只出现一次:\n%s", s)
	}
}

func TestArgsAttachmentsAndChapters(t *testing.T) {
	dir := t.TempDir()
	font := filepath.Join(dir, "Lato-Regular.ttf")
	if err := os.WriteFile(font, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	plan := domain.MuxPlan{
		Tracks: []domain.ResolvedTrack{
			resolved("video:0", domain.KindVideo, "/v/ep.mkv", 0, nil),
		},
		Attachments: []domain.Attachment{{Path: font, MIME: "font/ttf"}},
	}

	s := argstr(t, plan, Options{Output: "/out/ep.mkv", ChaptersPath: "/w/chapters.xml"})
	if !strings.Contains(s, "--attachment-mime-type font/ttf --attach-file "+font) {
		t.Fatalf("附件参数错误:\n%s", s)
	}
	if !strings.Contains(s, "--chapters /w/chapters.xml") {
		t.Fatalf("章节参数错误:\n%s", s)
	}
	// 源容器自带的附件/章节不透传。
	if !strings.Contains(s, "--no-attachments --no-chapters") {
		t.Fatalf("缺少源附件/章节排除:\n%s", s)
	}
}

func TestArgsMissingAttachment(t *testing.T) {
	plan := domain.MuxPlan{
		Tracks: []domain.ResolvedTrack{
			resolved("video:0", domain.KindVideo, "/v/ep.mkv", 0, nil),
		},
		Attachments: []domain.Attachment{{Path: "/nope/font.ttf", MIME: "font/ttf"}},
	}
	if _, err := Args(plan, Options{Output: "/out/ep.mkv"}); err == nil {
		t.Fatalf("缺失附件应报错")
	}
}

func TestArgsNoOutput(t *testing.T) {
	if _, err := Args(domain.MuxPlan{}, Options{}); err == nil {
		t.Fatalf("缺输出路径应报错")
	}
}

// 零延迟不产生 --sync；透传 Args 原样进入。
func TestArgsZeroDelayAndPassthrough(t *testing.T) {
	plan := domain.MuxPlan{
		Tracks: []domain.ResolvedTrack{
			resolved("audio:0", domain.KindAudio, "/a/ep.flac", 0, func(rt *domain.ResolvedTrack) {
				rt.Track.Args = []string{"--compression", "0:none"}
			}),
		},
	}
	s := argstr(t, plan, Options{Output: "/out/ep.mkv"})
	if strings.Contains(s, "--sync") {
		t.Fatalf("零延迟不应产生 --sync:\n%s", s)
	}
	if !strings.Contains(s, "--compression 0:none") {
		t.Fatalf("透传参数缺失:\n%s", s)
	}
}
