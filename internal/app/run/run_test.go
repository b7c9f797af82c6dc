package run

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/John-Robertt/FMUX/internal/config"
	"github.com/John-Robertt/FMUX/internal/domain"
	"github.com/John-Robertt/FMUX/internal/infra/execx"
)

const probeJSON = `{
  "container": {"type": "Matroska", "properties": {"duration": 1420000000000}},
  "tracks": [
    {"id": 0, "type": "video", "codec": "HEVC/H.265/MPEG-H",
     "properties": {"codec_id": "V_MPEGH/ISO/HEVC", "language": "und",
                    "default_track": true, "default_duration": 41708333}},
    {"id": 1, "type": "audio", "codec": "AAC",
     "properties": {"codec_id": "A_AAC", "language": "jpn", "default_track": true}}
  ]
}`

const shortProbeJSON = `{
  "container": {"type": "Matroska", "properties": {"duration": 1000000000000}},
  "tracks": [
    {"id": 0, "type": "audio", "codec": "AAC",
     "properties": {"codec_id": "A_AAC", "language": "jpn"}}
  ]
}`

const sampleASS = `[Script Info]
ScriptType: v4.00+

[V4+ Styles]
Format: Name, Fontname, Fontsize, Bold, Italic
Style: Default,Gandhi Sans,48,0,0

[Events]
Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text
Dialogue: 0,0:00:01.00,0:00:03.50,Default,,0,0,0,,Hello
Dialogue: 0,0:10:00.00,0:23:40.00,Default,,0,0,0,,Bye
`

// fakeRunner 按参数分流：-J 走 probe 应答表，其余当作 mux 调用。
type fakeRunner struct {
	mu       sync.Mutex
	probeOut map[string]string // base(src) -> -J 输出
	muxBody  []byte
	muxExit  int
	muxCalls [][]string
}

func (f *fakeRunner) Run(_ context.Context, _ string, args []string) (execx.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(args) >= 2 && args[0] == "-J" {
		out, ok := f.probeOut[filepath.Base(args[1])]
		if !ok {
			return execx.Result{ExitCode: 2, Output: []byte("unsupported file")}, nil
		}
		return execx.Result{ExitCode: 0, Output: []byte(out)}, nil
	}

	f.muxCalls = append(f.muxCalls, append([]string(nil), args...))
	if f.muxExit != 0 {
		return execx.Result{ExitCode: f.muxExit, Output: []byte("Error: something")}, nil
	}
	for i, a := range args {
		if a == "-o" && i+1 < len(args) {
			if err := os.WriteFile(args[i+1], f.muxBody, 0o644); err != nil {
				return execx.Result{ExitCode: -1}, err
			}
		}
	}
	return execx.Result{ExitCode: 0, Output: []byte("Muxing took 0 seconds.")}, nil
}

func touch(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("写文件失败：%v", err)
	}
}

func baseConfig(t *testing.T) config.EffectiveConfig {
	t.Helper()
	dir := t.TempDir()
	return config.EffectiveConfig{
		ConfigPath:  filepath.Join(dir, "fmux.json"),
		Workdir:     dir,
		Output:      "$show$ - $ep$ [$crc32$].mkv",
		Show:        "Frieren",
		ShowName:    "Frieren",
		Episode:     "01",
		Concurrency: 2,
		Mkvmerge:    "mkvmerge",
	}
}

func TestExecute_DryRun(t *testing.T) {
	eff := baseConfig(t)
	video := filepath.Join(eff.Workdir, "ep01.mkv")
	subsPath := filepath.Join(eff.Workdir, "ep01.ass")
	touch(t, video, []byte("mkv"))
	touch(t, subsPath, []byte(sampleASS))

	fontDir := t.TempDir() // 空：所有字体都查不到
	eff.FontDirs = []string{fontDir}
	eff.Inputs = []config.FileInput{
		{Path: video, Kind: "video"},
		{Path: video, Kind: "audio"},
		{Path: subsPath, Kind: "subtitle", Lang: "en"},
	}

	r := &fakeRunner{probeOut: map[string]string{"ep01.mkv": probeJSON}}
	rr := Execute(context.Background(), eff, Deps{Runner: r})

	if rr.ErrorCode != "" {
		t.Fatalf("不期望运行级错误：%s %s", rr.ErrorCode, rr.ErrorMsg)
	}
	if !rr.DryRun {
		t.Fatalf("期望 dry_run=true")
	}
	if len(rr.Tracks) != 3 {
		t.Fatalf("期望 3 条轨，实际 %d", len(rr.Tracks))
	}
	// 默认顺序：视频、音频、字幕。
	if rr.Tracks[0].ID != "video:0" || rr.Tracks[1].ID != "audio:1" || rr.Tracks[2].ID != "subtitle:2" {
		t.Fatalf("顺序不正确：%q %q %q", rr.Tracks[0].ID, rr.Tracks[1].ID, rr.Tracks[2].ID)
	}
	for _, tr := range rr.Tracks {
		if tr.Status != domain.StatusResolved {
			t.Fatalf("轨 %s 期望 resolved，实际 %q", tr.ID, tr.Status)
		}
	}
	// dry-run 保留 $crc32$ 占位。
	if rr.Output != "Frieren - 01 [$crc32$].mkv" {
		t.Fatalf("输出名不正确：%q", rr.Output)
	}
	// 字体查不到 => font_missing 告警；不拦截合成。
	found := false
	for _, w := range rr.Warnings {
		if w.Code == domain.WarnFontMissing {
			found = true
		}
	}
	if !found {
		t.Fatalf("期望 font_missing 告警，实际 %+v", rr.Warnings)
	}
	// dry-run 不触发 mux。
	if len(r.muxCalls) != 0 {
		t.Fatalf("dry-run 不应调用 muxer：%v", r.muxCalls)
	}
	if rr.Mux != nil {
		t.Fatalf("dry-run 不应有 mux 结果")
	}
}

func TestExecute_Apply_CRC32AndChapters(t *testing.T) {
	eff := baseConfig(t)
	video := filepath.Join(eff.Workdir, "ep01.mkv")
	touch(t, video, []byte("mkv"))

	eff.Apply = true
	eff.Output = "out [$crc32$].mkv"
	eff.Inputs = []config.FileInput{{Path: video, Kind: "video"}}
	eff.Chapters = &config.FileChapter{Frames: []int64{0, 2400}, Names: []string{"Intro", "Part A"}}

	r := &fakeRunner{
		probeOut: map[string]string{"ep01.mkv": probeJSON},
		muxBody:  []byte("123456789"), // CRC32 = CBF43926
	}
	rr := Execute(context.Background(), eff, Deps{Runner: r})

	if rr.ErrorCode != "" {
		t.Fatalf("不期望运行级错误：%s %s", rr.ErrorCode, rr.ErrorMsg)
	}
	if rr.Output != "out [CBF43926].mkv" {
		t.Fatalf("期望 CRC32 注入文件名，实际 %q", rr.Output)
	}
	if _, err := os.Stat(filepath.Join(eff.Workdir, rr.Output)); err != nil {
		t.Fatalf("最终输出文件应存在：%v", err)
	}
	if rr.Mux == nil || rr.Mux.ExitCode != 0 {
		t.Fatalf("mux 结果不正确：%+v", rr.Mux)
	}
	if rr.Chapters != 2 {
		t.Fatalf("期望 2 条章节，实际 %d", rr.Chapters)
	}
	if _, err := os.Stat(filepath.Join(eff.Workdir, "chapters.xml")); err != nil {
		t.Fatalf("章节 XML 应已写入：%v", err)
	}
	if len(r.muxCalls) != 1 {
		t.Fatalf("期望调用 muxer 一次，实际 %d", len(r.muxCalls))
	}
	hasChapters := false
	for _, a := range r.muxCalls[0] {
		if a == "--chapters" {
			hasChapters = true
		}
	}
	if !hasChapters {
		t.Fatalf("mux 参数应带 --chapters：%v", r.muxCalls[0])
	}
	for _, tr := range rr.Tracks {
		if tr.Status != domain.StatusMuxed {
			t.Fatalf("apply 后轨状态应为 muxed：%+v", tr)
		}
	}
}

func TestExecute_ProbeFailureIsFatal(t *testing.T) {
	eff := baseConfig(t)
	video := filepath.Join(eff.Workdir, "broken.mkv")
	touch(t, video, []byte("x"))
	eff.Inputs = []config.FileInput{{Path: video, Kind: "video"}}

	r := &fakeRunner{probeOut: map[string]string{}} // 任何 -J 都失败
	rr := Execute(context.Background(), eff, Deps{Runner: r})

	if rr.ErrorCode != domain.ErrCodeProbeFailed {
		t.Fatalf("期望 %s，实际 %q（%s）", domain.ErrCodeProbeFailed, rr.ErrorCode, rr.ErrorMsg)
	}
	if len(rr.Tracks) != 1 || rr.Tracks[0].Status != domain.StatusFailed {
		t.Fatalf("失败轨应进入 report：%+v", rr.Tracks)
	}
	if rr.Tracks[0].ErrorCode != domain.ErrCodeProbeFailed {
		t.Fatalf("轨级 error_code 不正确：%+v", rr.Tracks[0])
	}
}

func TestExecute_InvalidTrim(t *testing.T) {
	eff := baseConfig(t)
	video := filepath.Join(eff.Workdir, "ep01.mkv")
	touch(t, video, []byte("mkv"))

	start, end := int64(100), int64(50) // 倒序区间
	eff.Inputs = []config.FileInput{{
		Path: video, Kind: "video",
		Trims: []config.FileTrim{{Unit: "frames", Start: &start, End: &end}},
	}}

	r := &fakeRunner{probeOut: map[string]string{"ep01.mkv": probeJSON}}
	rr := Execute(context.Background(), eff, Deps{Runner: r})

	if rr.ErrorCode != domain.ErrCodeInvalidTrim {
		t.Fatalf("期望 %s，实际 %q（%s）", domain.ErrCodeInvalidTrim, rr.ErrorCode, rr.ErrorMsg)
	}
}

func TestExecute_TimelineMismatch(t *testing.T) {
	eff := baseConfig(t)
	video := filepath.Join(eff.Workdir, "ep01.mkv")
	audio := filepath.Join(eff.Workdir, "short.mka")
	touch(t, video, []byte("mkv"))
	touch(t, audio, []byte("mka"))

	eff.Inputs = []config.FileInput{
		{Path: video, Kind: "video"},
		{Path: audio, Kind: "audio"}, // 1000s vs 1420s
	}

	r := &fakeRunner{probeOut: map[string]string{
		"ep01.mkv":  probeJSON,
		"short.mka": shortProbeJSON,
	}}
	rr := Execute(context.Background(), eff, Deps{Runner: r})

	if rr.ErrorCode != domain.ErrCodeTimelineMismatch {
		t.Fatalf("期望 %s，实际 %q（%s）", domain.ErrCodeTimelineMismatch, rr.ErrorCode, rr.ErrorMsg)
	}
}

func TestExecute_TitleFailureDegrades(t *testing.T) {
	eff := baseConfig(t)
	video := filepath.Join(eff.Workdir, "ep01.mkv")
	touch(t, video, []byte("mkv"))

	eff.Provider = "mal"
	eff.Show = "52991/Sousou_no_Frieren"
	eff.Inputs = []config.FileInput{{Path: video, Kind: "video"}}

	// 空 Registry：provider 状态等同全部失败；标题必须降级而不是拦住合成。
	r := &fakeRunner{probeOut: map[string]string{"ep01.mkv": probeJSON}}
	rr := Execute(context.Background(), eff, Deps{Runner: r})

	if rr.ErrorCode != "" {
		t.Fatalf("标题失败不应是致命错误：%s %s", rr.ErrorCode, rr.ErrorMsg)
	}
	found := false
	for _, w := range rr.Warnings {
		if w.Code == domain.WarnTitleMissing {
			found = true
		}
	}
	if !found {
		t.Fatalf("期望 %s 告警，实际 %+v", domain.WarnTitleMissing, rr.Warnings)
	}
	// $title$ 未出现在模板里，文件名正常展开。
	if rr.Output != "Frieren - 01 [$crc32$].mkv" {
		t.Fatalf("输出名不正确：%q", rr.Output)
	}
}

func TestExecute_MuxerErrorExitIsFatal(t *testing.T) {
	eff := baseConfig(t)
	video := filepath.Join(eff.Workdir, "ep01.mkv")
	touch(t, video, []byte("mkv"))

	eff.Apply = true
	eff.Output = "out.mkv"
	eff.Inputs = []config.FileInput{{Path: video, Kind: "video"}}

	r := &fakeRunner{
		probeOut: map[string]string{"ep01.mkv": probeJSON},
		muxExit:  2,
	}
	rr := Execute(context.Background(), eff, Deps{Runner: r})

	if rr.ErrorCode != domain.ErrCodeMuxFailed {
		t.Fatalf("期望 %s，实际 %q（%s）", domain.ErrCodeMuxFailed, rr.ErrorCode, rr.ErrorMsg)
	}
	// 退出码与诊断输出原样保留。
	if rr.Mux == nil || rr.Mux.ExitCode != 2 || rr.Mux.Output == "" {
		t.Fatalf("mux 结果应原样保留：%+v", rr.Mux)
	}
}
