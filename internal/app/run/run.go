package run

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/John-Robertt/FMUX/internal/app"
	"github.com/John-Robertt/FMUX/internal/app/planner"
	"github.com/John-Robertt/FMUX/internal/chapters"
	"github.com/John-Robertt/FMUX/internal/config"
	"github.com/John-Robertt/FMUX/internal/domain"
	"github.com/John-Robertt/FMUX/internal/emit"
	"github.com/John-Robertt/FMUX/internal/fontdep"
	"github.com/John-Robertt/FMUX/internal/fontscan"
	"github.com/John-Robertt/FMUX/internal/infra/cache"
	"github.com/John-Robertt/FMUX/internal/infra/execx"
	"github.com/John-Robertt/FMUX/internal/infra/fsx"
	"github.com/John-Robertt/FMUX/internal/infra/httpx"
	"github.com/John-Robertt/FMUX/internal/infra/imgx"
	"github.com/John-Robertt/FMUX/internal/probe"
	"github.com/John-Robertt/FMUX/internal/provider"
	"github.com/John-Robertt/FMUX/internal/subs"
	"github.com/John-Robertt/FMUX/internal/trim"
)

// 工作目录里的固定产物名。
const (
	chaptersFile  = "chapters.xml"
	coverPortrait = "cover.jpg"
	coverLand     = "cover_land.jpg"
	muxTmpName    = ".fmux-out.mkv"
)

// Deps 是一次执行的外部依赖（便于测试替换）。
type Deps struct {
	Registry provider.Registry
	Runner   execx.Runner // nil = execx.System{}
	Observer Observer     // nil = 不输出进度
}

// Execute 执行一次合成（dry-run/apply），并返回对外稳定的 RunReport。
//
// 错误模型：任何轨级失败都是致命的（没有“部分 plan”）；所有轨的
// 失败会一起收敛到 report，方便用户一次修完。唯二的降级路径是
// 集数标题（title_unavailable）与封面下载（cover_skipped）。
func Execute(ctx context.Context, eff config.EffectiveConfig, deps Deps) domain.RunReport {
	started := time.Now().UTC()

	if deps.Observer != nil {
		deps.Observer.OnStart(eff)
	}

	rr := domain.RunReport{
		Config:      eff.ConfigPath,
		DryRun:      !eff.Apply,
		StartedAt:   started,
		Attachments: []string{},
		Warnings:    []domain.Warning{},
		Tracks:      []domain.TrackResult{},
	}
	fail := func(code, msg string) domain.RunReport {
		rr.ErrorCode = code
		rr.ErrorMsg = msg
		rr.FinishedAt = time.Now().UTC()
		rr.Finalize()
		return rr
	}

	runner := deps.Runner
	if runner == nil {
		runner = execx.System{}
	}

	var metaClient *http.Client
	if eff.Provider != "" {
		c, err := httpx.NewPageClient(eff.ProxyURL)
		if err != nil {
			return fail(domain.ErrCodeConfigInvalid, fmt.Sprintf("proxy.url 无效：%v", err))
		}
		metaClient = c
	}

	store := cache.New(eff.Workdir, !eff.Apply)
	prober := probe.Prober{Runner: runner, Store: store, Tool: eff.Mkvmerge}

	// 探测 + trim 解析：按输入轨并发（worker pool），轨内串行。
	probeStarted := time.Now()
	outs := resolveAll(ctx, eff, prober, deps.Observer)
	probeDur := time.Since(probeStarted)

	firstCode, firstMsg := "", ""
	for i := range outs {
		if outs[i].errCode != "" {
			firstCode, firstMsg = outs[i].errCode, outs[i].errMsg
			break
		}
	}
	if deps.Observer != nil {
		failed := 0
		for i := range outs {
			if outs[i].errCode != "" {
				failed++
			}
		}
		deps.Observer.OnPhaseDone("probe", map[string]any{
			"tracks": len(outs),
			"failed": failed,
		}, probeDur)
	}
	if firstCode != "" {
		rr.Tracks = failedTrackResults(eff, outs)
		return fail(firstCode, firstMsg)
	}

	resolved := make([]domain.ResolvedTrack, len(outs))
	for i := range outs {
		resolved[i] = outs[i].rt
	}

	// delay 对齐：参考轨取第一条视频；没有视频就取第一条输入。
	ref := 0
	for i := range resolved {
		if resolved[i].Track.Kind == domain.KindVideo {
			ref = i
			break
		}
	}
	if err := trim.AlignDelays(resolved, ref, domain.TimecodeFromMilli(eff.GlobalOffsetMs)); err != nil {
		return fail(classifyTrackErr(err), err.Error())
	}

	// 字体依赖：只有存在字幕轨才扫描。
	var atts []domain.Attachment
	var warns []domain.Warning
	if hasSubtitle(resolved) {
		fontsStarted := time.Now()
		dirs := eff.FontDirs
		if len(dirs) == 0 {
			dirs = fontscan.DefaultDirs()
		}
		files, err := fontscan.Scan(dirs)
		if err != nil {
			return fail(domain.ErrCodeIOFailed, fmt.Sprintf("扫描字体目录失败：%v", err))
		}
		matcher := fontdep.NewDirMatcher(files, eff.FontPolicy)
		baseTracks := make([]domain.Track, len(resolved))
		for i := range resolved {
			baseTracks[i] = resolved[i].Track
		}
		a, w, err := fontdep.Collect(baseTracks, matcher)
		if err != nil {
			return fail(domain.ErrCodeIOFailed, fmt.Sprintf("收集字体附件失败：%v", err))
		}
		atts = a
		warns = append(warns, w...)
		warns = append(warns, matcher.Warnings()...)
		if deps.Observer != nil {
			deps.Observer.OnPhaseDone("fonts", map[string]any{
				"scanned":     len(files),
				"attachments": len(atts),
				"warnings":    len(w) + len(matcher.Warnings()),
			}, time.Since(fontsStarted))
		}
	}

	// 章节：读取/生成，然后按参考轨的保留段重排到输出时间轴。
	var chapterEntries []domain.ChapterEntry
	chapterLang := ""
	if eff.Chapters != nil {
		chapterLang = eff.Chapters.Lang
		rate := resolved[ref].Track.Rate

		var entries []domain.ChapterEntry
		var err error
		if eff.Chapters.Path != "" {
			entries, err = chapters.Load(eff.Chapters.Path, rate)
		} else {
			entries, err = chapters.FromFrames(eff.Chapters.Frames, eff.Chapters.Names, rate)
		}
		if err != nil {
			return fail(classifyChapterErr(err), err.Error())
		}
		entries, err = chapters.Shift(entries, resolved[ref].Keep)
		if err != nil {
			return fail(classifyTrackErr(err), err.Error())
		}
		chapterEntries = entries
	}

	// 集数标题：失败不拦住合成，降级为不带 $title$ 的文件名。
	vars := app.NameVars{Show: eff.ShowName, Episode: eff.Episode}
	thumbURL := ""
	if eff.Provider != "" {
		titleStarted := time.Now()
		meta, err := fetchEpisodeMeta(ctx, eff, deps.Registry, store, metaClient)
		if err != nil {
			warns = append(warns, domain.Warning{Code: domain.WarnTitleMissing, Msg: providerWarnMsg(err)})
		} else {
			vars.Title = meta.Title
			thumbURL = meta.ThumbURL
		}
		if deps.Observer != nil {
			deps.Observer.OnPhaseDone("title", map[string]any{
				"provider": eff.Provider,
				"title":    vars.Title,
			}, time.Since(titleStarted))
		}
	}

	// 封面：apply 且配置要求时才下载；任何失败都只是告警。
	if eff.Apply && eff.AttachCover {
		cov, w := fetchCover(ctx, eff, thumbURL)
		if w != nil {
			warns = append(warns, *w)
		} else {
			atts = append(atts, cov...)
		}
	}

	planStarted := time.Now()
	planTitle := ""
	if eff.Title != "" {
		planTitle = app.ExpandName(eff.Title, vars)
	}
	plan, err := planner.Synthesize(resolved, atts, chapterEntries, warns, planner.Options{
		Title:           planTitle,
		AudioLangs:      eff.AudioLangs,
		SubLangs:        eff.SubLangs,
		Order:           eff.Order,
		AllowDuplicates: eff.AllowDuplicates,
		ToleranceMs:     eff.ToleranceMs,
	})
	if err != nil {
		switch {
		case planner.IsTimelineMismatch(err):
			return fail(domain.ErrCodeTimelineMismatch, err.Error())
		case planner.IsDuplicateTrack(err):
			return fail(domain.ErrCodeDuplicateTrack, err.Error())
		default:
			return fail(domain.ErrCodeConfigInvalid, err.Error())
		}
	}
	if deps.Observer != nil {
		deps.Observer.OnPhaseDone("plan", map[string]any{
			"tracks":      len(plan.Tracks),
			"attachments": len(plan.Attachments),
			"chapters":    len(plan.Chapters),
			"warnings":    len(plan.Warnings),
		}, time.Since(planStarted))
	}

	outName := app.ExpandName(eff.Output, vars)

	rr.Title = plan.Title
	rr.Output = outName
	rr.Chapters = len(plan.Chapters)
	rr.Warnings = plan.Warnings
	for _, a := range plan.Attachments {
		rr.Attachments = append(rr.Attachments, a.Path)
	}
	rr.Tracks = plannedTrackResults(plan)

	// 章节 XML：plan 确认要带章节才落盘（dry-run 只计算路径）。
	chPath := ""
	if len(plan.Chapters) > 0 {
		chPath = filepath.Join(eff.Workdir, chaptersFile)
		if eff.Apply {
			b, err := chapters.EncodeXML(plan.Chapters, chapterLang)
			if err != nil {
				return fail(domain.ErrCodeIOFailed, fmt.Sprintf("生成章节 XML 失败：%v", err))
			}
			if err := fsx.WriteFileAtomicReplace(eff.Workdir, chaptersFile, b); err != nil {
				return fail(domain.ErrCodeIOFailed, fmt.Sprintf("写入章节 XML 失败：%v", err))
			}
		}
	}

	// $crc32$ 需要先 mux 再命名：先写临时名，算完校验和再换名。
	muxPath := filepath.Join(eff.Workdir, outName)
	if strings.Contains(outName, app.TokenCRC32) {
		muxPath = filepath.Join(eff.Workdir, muxTmpName)
	}

	args, err := emit.Args(plan, emit.Options{Output: muxPath, ChaptersPath: chPath})
	if err != nil {
		return fail(domain.ErrCodeIOFailed, err.Error())
	}

	if !eff.Apply {
		rr.FinishedAt = time.Now().UTC()
		rr.Finalize()
		return rr
	}

	muxStarted := time.Now()
	res, err := execx.RunProducing(ctx, runner, eff.Mkvmerge, args, muxPath)
	if err != nil {
		return fail(domain.ErrCodeMuxFailed, fmt.Sprintf("调用 %s 失败：%v", eff.Mkvmerge, err))
	}
	rr.Mux = &domain.MuxResult{ExitCode: res.ExitCode, Output: string(res.Output)}
	if deps.Observer != nil {
		deps.Observer.OnMuxDone(muxPath, res.ExitCode, time.Since(muxStarted))
	}
	// mkvmerge 约定：0 成功，1 只有告警（照样产出文件），>=2 失败。
	if res.ExitCode >= 2 {
		_ = os.Remove(muxPath)
		return fail(domain.ErrCodeMuxFailed, fmt.Sprintf("%s 退出码 %d", eff.Mkvmerge, res.ExitCode))
	}

	finalName := outName
	if strings.Contains(outName, app.TokenCRC32) {
		sum, err := app.FileCRC32(muxPath)
		if err != nil {
			return fail(domain.ErrCodeIOFailed, fmt.Sprintf("计算 CRC32 失败：%v", err))
		}
		finalName = app.SpliceCRC32(outName, sum)
		if err := fsx.Rename(muxPath, filepath.Join(eff.Workdir, finalName)); err != nil {
			return fail(domain.ErrCodeIOFailed, fmt.Sprintf("输出改名失败：%v", err))
		}
	}
	rr.Output = finalName
	for i := range rr.Tracks {
		rr.Tracks[i].Status = domain.StatusMuxed
	}

	rr.FinishedAt = time.Now().UTC()
	rr.Finalize()
	return rr
}

// trackOut 是单条输入轨“探测 + trim 解析”的结果。
type trackOut struct {
	rt      domain.ResolvedTrack
	errCode string
	errMsg  string
}

func resolveAll(ctx context.Context, eff config.EffectiveConfig, prober probe.Prober, obs Observer) []trackOut {
	outs := make([]trackOut, len(eff.Inputs))

	workers := eff.Concurrency
	if workers < 1 {
		workers = 1
	}
	if workers > len(eff.Inputs) {
		workers = len(eff.Inputs)
	}

	var mu sync.Mutex
	done := 0
	notify := func(id string, failed bool, d time.Duration) {
		if obs == nil {
			return
		}
		mu.Lock()
		done++
		n := done
		mu.Unlock()
		obs.OnTrackDone(n, len(eff.Inputs), id, failed, d)
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				oneStarted := time.Now()
				outs[idx] = resolveOne(ctx, eff, prober, idx)
				notify(trackID(eff.Inputs[idx], idx), outs[idx].errCode != "", time.Since(oneStarted))
			}
		}()
	}
	for idx := range eff.Inputs {
		jobs <- idx
	}
	close(jobs)
	wg.Wait()

	return outs
}

func resolveOne(ctx context.Context, eff config.EffectiveConfig, prober probe.Prober, idx int) trackOut {
	t, code, msg := buildTrack(ctx, eff, prober, idx)
	if code != "" {
		return trackOut{errCode: code, errMsg: msg}
	}
	rt, err := trim.Resolve(t)
	if err != nil {
		return trackOut{errCode: classifyTrackErr(err), errMsg: err.Error()}
	}
	return trackOut{rt: rt}
}

// buildTrack 把一条输入配置变成规范化的 Track：
// .ass/.ssa 走字幕解析（顺带提取字体引用），其余经由外部 prober。
func buildTrack(ctx context.Context, eff config.EffectiveConfig, prober probe.Prober, idx int) (domain.Track, string, string) {
	in := eff.Inputs[idx]
	t := domain.Track{
		ID:          trackID(in, idx),
		Kind:        domain.TrackKind(in.Kind),
		Source:      in.Path,
		Stream:      in.Stream,
		StartOffset: domain.TimecodeFromMilli(in.OffsetMs),
		Lang:        in.Lang,
		Name:        in.Name,
		Default:     in.Default,
		Forced:      in.Forced,
		Args:        append([]string(nil), in.Args...),
		Trims:       toTrimRequests(in.Trims),
	}

	if t.Kind == domain.KindSubtitle && isTextSubs(in.Path) {
		sf, err := subs.Load(in.Path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return t, domain.ErrCodeIOFailed, err.Error()
			}
			return t, domain.ErrCodeParseFailed, err.Error()
		}
		if sf.Duration.Cmp(domain.Timecode{}) <= 0 {
			return t, domain.ErrCodeParseFailed, fmt.Sprintf("字幕 %q 没有任何事件，无法确定时长", in.Path)
		}
		t.Stream = 0
		t.Duration = sf.Duration
		t.Events = sf.Events
		t.FontRefs = sf.Fonts
		return t, "", ""
	}

	res, err := prober.Probe(ctx, in.Path)
	if err != nil {
		return t, domain.ErrCodeProbeFailed, err.Error()
	}
	st, ok := pickStream(res.Streams, t.Kind, in.Stream)
	if !ok {
		return t, domain.ErrCodeProbeFailed,
			fmt.Sprintf("%q 里没有 kind=%s stream=%d 的流", in.Path, in.Kind, in.Stream)
	}
	if res.Duration.Cmp(domain.Timecode{}) <= 0 {
		return t, domain.ErrCodeProbeFailed, fmt.Sprintf("%q 未报告容器时长", in.Path)
	}

	t.Stream = st.ID
	t.Codec = st.Codec
	t.Rate = st.Rate
	t.Duration = res.Duration
	if t.Lang == "" {
		t.Lang = st.Lang
	}
	if t.Name == "" {
		t.Name = st.Name
	}
	// 布尔标志：配置显式置 true 优先，否则沿用源容器里的值。
	if !t.Default {
		t.Default = st.Default
	}
	if !t.Forced {
		t.Forced = st.Forced
	}
	return t, "", ""
}

func trackID(in config.FileInput, idx int) string {
	return fmt.Sprintf("%s:%d", in.Kind, idx)
}

// pickStream 按容器轨号匹配；stream=0 且未命中时退化为该类第一条
// （常见场景：mkv 里音频的全局轨号是 1，但用户按“第一条音频”理解）。
func pickStream(streams []probe.Stream, kind domain.TrackKind, want int) (probe.Stream, bool) {
	var ofKind []probe.Stream
	for _, s := range streams {
		if s.Kind != kind {
			continue
		}
		if s.ID == want {
			return s, true
		}
		ofKind = append(ofKind, s)
	}
	if want == 0 && len(ofKind) > 0 {
		return ofKind[0], true
	}
	return probe.Stream{}, false
}

func isTextSubs(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ass", ".ssa":
		return true
	default:
		return false
	}
}

func toTrimRequests(in []config.FileTrim) []domain.TrimRequest {
	out := make([]domain.TrimRequest, 0, len(in))
	for _, tr := range in {
		req := domain.TrimRequest{Keep: true, Unit: domain.TrimUnit(tr.Unit)}
		if tr.Keep != nil {
			req.Keep = *tr.Keep
		}
		if tr.Start != nil {
			req.Start = *tr.Start
		} else {
			req.OpenStart = true
		}
		if tr.End != nil {
			req.End = *tr.End
		} else {
			req.OpenEnd = true
		}
		out = append(out, req)
	}
	return out
}

func classifyTrackErr(err error) string {
	switch {
	case trim.IsInvalidTrim(err):
		return domain.ErrCodeInvalidTrim
	case domain.IsIncompatibleRate(err):
		return domain.ErrCodeRateMismatch
	default:
		return domain.ErrCodeIOFailed
	}
}

func classifyChapterErr(err error) string {
	var pe *chapters.ParseError
	if errors.As(err, &pe) {
		return domain.ErrCodeParseFailed
	}
	if domain.IsIncompatibleRate(err) {
		return domain.ErrCodeRateMismatch
	}
	return domain.ErrCodeIOFailed
}

func hasSubtitle(tracks []domain.ResolvedTrack) bool {
	for i := range tracks {
		if tracks[i].Track.Kind == domain.KindSubtitle {
			return true
		}
	}
	return false
}

// failedTrackResults 把“探测/解析”阶段的逐轨结果收敛进 report：
// 失败轨带 error_code，成功轨照常列出（Order=-1 表示没有进入 plan）。
func failedTrackResults(eff config.EffectiveConfig, outs []trackOut) []domain.TrackResult {
	results := make([]domain.TrackResult, 0, len(outs))
	for i := range outs {
		in := eff.Inputs[i]
		tr := domain.TrackResult{
			ID:    trackID(in, i),
			Kind:  in.Kind,
			Lang:  in.Lang,
			Name:  in.Name,
			Order: -1,
		}
		if outs[i].errCode != "" {
			tr.Status = domain.StatusFailed
			tr.ErrorCode = outs[i].errCode
			tr.ErrorMsg = outs[i].errMsg
		} else {
			tr.Status = domain.StatusResolved
			tr.Lang = outs[i].rt.Track.Lang
			tr.Name = outs[i].rt.Track.Name
			tr.OutputMs = outs[i].rt.OutputDuration.Milli()
		}
		results = append(results, tr)
	}
	return results
}

func plannedTrackResults(plan domain.MuxPlan) []domain.TrackResult {
	results := make([]domain.TrackResult, 0, len(plan.Tracks))
	for i, rt := range plan.Tracks {
		keep := make([]string, 0, len(rt.Keep))
		for _, s := range rt.Keep {
			keep = append(keep, s.Start.String()+".."+s.End.String())
		}
		results = append(results, domain.TrackResult{
			ID:       rt.Track.ID,
			Kind:     string(rt.Track.Kind),
			Lang:     rt.Track.Lang,
			Name:     rt.Track.Name,
			Default:  rt.Track.Default,
			Forced:   rt.Track.Forced,
			Status:   domain.StatusResolved,
			Order:    i,
			DelayMs:  rt.Delay.Milli(),
			OutputMs: rt.OutputDuration.Milli(),
			Keep:     keep,
		})
	}
	return results
}

// fetchEpisodeMeta 先查 HTML 缓存，未命中才打网络；apply 时写回缓存。
func fetchEpisodeMeta(ctx context.Context, eff config.EffectiveConfig, reg provider.Registry, store cache.Store, c *http.Client) (domain.EpisodeMeta, error) {
	q := provider.Query{Show: eff.Show, Episode: eff.Episode}
	key := eff.Show + "-ep" + eff.Episode

	if b, ok, err := store.ReadProviderHTML(eff.Provider, key); err == nil && ok {
		if p, found := reg.Get(eff.Provider); found {
			if meta, e := p.Parse(q, b, ""); e == nil {
				return meta, nil
			}
			// 坏缓存：忽略，走网络。
		}
	}

	meta, used, html, err := provider.FetchParse(ctx, reg, eff.Provider, q, c)
	if err != nil {
		return domain.EpisodeMeta{}, err
	}
	// 只读（dry-run）时写入返回 ErrReadOnly，直接忽略。
	_ = store.WriteProviderHTML(used, key, html)
	return meta, nil
}

// fetchCover 下载集数缩略图并在工作目录生成 cover.jpg / cover_land.jpg
// （mkv 封面命名约定：竖版 cover，横版 cover_land）。
func fetchCover(ctx context.Context, eff config.EffectiveConfig, thumbURL string) ([]domain.Attachment, *domain.Warning) {
	skip := func(format string, a ...any) ([]domain.Attachment, *domain.Warning) {
		return nil, &domain.Warning{Code: domain.WarnCoverSkipped, Msg: fmt.Sprintf(format, a...)}
	}

	if strings.TrimSpace(thumbURL) == "" {
		return skip("provider 未给出缩略图地址，跳过封面")
	}
	c, err := httpx.NewImageClient(eff.ProxyURL)
	if err != nil {
		return skip("封面下载 client 构造失败：%v", err)
	}
	raw, err := download(ctx, c, thumbURL)
	if err != nil {
		return skip("封面下载失败：%v", err)
	}

	land, err := imgx.CoverLandJPEG(raw)
	if err != nil {
		return skip("封面转码失败：%v", err)
	}
	portrait, err := imgx.CoverPortraitJPEG(raw)
	if err != nil {
		return skip("封面裁切失败：%v", err)
	}

	for _, f := range []struct {
		name string
		data []byte
	}{{coverLand, land}, {coverPortrait, portrait}} {
		if err := fsx.WriteFileAtomicNoOverwrite(eff.Workdir, f.name, f.data); err != nil && !errors.Is(err, os.ErrExist) {
			return skip("写入 %s 失败：%v", f.name, err)
		}
	}

	return []domain.Attachment{
		{Path: filepath.Join(eff.Workdir, coverLand), MIME: "image/jpeg"},
		{Path: filepath.Join(eff.Workdir, coverPortrait), MIME: "image/jpeg"},
	}, nil
}

func download(ctx context.Context, c *http.Client, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// providerWarnMsg 把 provider 链路的失败翻译成可操作的一句话。
func providerWarnMsg(err error) string {
	var pe *provider.Error
	if errors.As(err, &pe) {
		switch pe.Stage {
		case "fetch":
			return humanizeFetchError(pe.Provider, pe.Err)
		case "parse":
			return fmt.Sprintf("%s 解析失败（站点结构可能变化或返回了非集数列表页）：%v", pe.Provider, pe.Err)
		default:
			return fmt.Sprintf("%s 失败：%v", pe.Provider, pe.Err)
		}
	}
	return err.Error()
}

func humanizeFetchError(providerName string, err error) string {
	if err == nil {
		return providerName + " 抓取失败"
	}

	var rl *provider.RateLimitedError
	if errors.As(err, &rl) {
		return fmt.Sprintf("%s 被限流/拦截（HTTP %d）。建议稍后重试或配置 proxy.url。", providerName, rl.StatusCode)
	}

	var hs *provider.HTTPStatusError
	if errors.As(err, &hs) {
		switch hs.StatusCode {
		case 404:
			return fmt.Sprintf("%s 返回 HTTP 404（show 的路径/词条名可能写错）。", providerName)
		default:
			return fmt.Sprintf("%s 返回 HTTP %d。", providerName, hs.StatusCode)
		}
	}

	low := strings.ToLower(err.Error())
	if errors.Is(err, context.DeadlineExceeded) || strings.Contains(low, "timeout") {
		return fmt.Sprintf("%s 抓取超时。建议检查网络/代理后重试。", providerName)
	}
	return fmt.Sprintf("%s 抓取失败：%v", providerName, err)
}
