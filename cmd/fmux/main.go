package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/John-Robertt/FMUX/internal/app/run"
	"github.com/John-Robertt/FMUX/internal/config"
	"github.com/John-Robertt/FMUX/internal/domain"
	"github.com/John-Robertt/FMUX/internal/infra/fsx"
	"github.com/John-Robertt/FMUX/internal/provider"
	"github.com/John-Robertt/FMUX/internal/provider/mal"
	"github.com/John-Robertt/FMUX/internal/provider/wikipedia"
)

func main() {
	args := os.Args[1:]
	if len(args) == 0 || isHelp(args[0]) {
		printUsage()
		return
	}

	switch args[0] {
	case "run":
		if code := runCmd(args[1:]); code != 0 {
			os.Exit(code)
		}
	default:
		fmt.Fprintf(os.Stderr, "未知命令：%q\n\n", args[0])
		printUsage()
		os.Exit(2)
	}
}

func runCmd(args []string) int {
	for _, a := range args {
		if isHelp(a) {
			printRunUsage()
			return 0
		}
	}

	ra, err := parseRunArgs(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "参数错误：%v\n\n", err)
		printRunUsage()
		return 2
	}

	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "读取当前目录失败：%v\n", err)
		return 1
	}

	eff, err := config.LoadEffective(cwd, config.CLIArgs{
		Config:      ra.Config,
		Provider:    ra.Provider,
		ProviderSet: ra.ProviderSet,
		Apply:       ra.Apply,
		ApplySet:    ra.ApplySet,
	})
	if err != nil {
		emitReport(reportForConfigError(cwd, ra, err))
		return 1
	}

	reg, e := provider.NewRegistry(mal.Provider{}, wikipedia.Provider{})
	if e != nil {
		fmt.Fprintf(os.Stderr, "初始化 provider registry 失败：%v\n", e)
		return 1
	}

	progressW, interactive := pickProgressWriter()
	var obs run.Observer
	if interactive {
		obs = newProgressUI(progressW)
	}

	rr := run.Execute(context.Background(), eff, run.Deps{
		Registry: reg,
		Observer: obs,
	})

	// apply：report.json 落到 <workdir>/cache；dry-run 禁止落盘。
	if eff.Apply {
		if err := writeReportFile(eff.Workdir, rr); err != nil {
			fmt.Fprintf(os.Stderr, "写入 report.json 失败：%v\n", err)
			emitReport(rr)
			return 1
		}
	}

	emitReport(rr)
	if interactive {
		emitLocations(progressW, eff, rr)
	}
	if rr.ErrorCode == "" && rr.Summary.Failed == 0 {
		return 0
	}
	return 1
}

type runArgs struct {
	Config      string
	Provider    string
	ProviderSet bool
	Apply       bool
	ApplySet    bool
}

func parseRunArgs(args []string) (runArgs, error) {
	ra := runArgs{}

	for i := 0; i < len(args); i++ {
		a := args[i]
		switch {
		case a == "--config":
			if i+1 >= len(args) {
				return runArgs{}, fmt.Errorf("--config 需要一个值")
			}
			i++
			ra.Config = args[i]
		case strings.HasPrefix(a, "--config="):
			ra.Config = strings.TrimPrefix(a, "--config=")
		case a == "--provider":
			if i+1 >= len(args) {
				return runArgs{}, fmt.Errorf("--provider 需要一个值")
			}
			i++
			ra.Provider = args[i]
			ra.ProviderSet = true
		case strings.HasPrefix(a, "--provider="):
			ra.Provider = strings.TrimPrefix(a, "--provider=")
			ra.ProviderSet = true
		case a == "--apply":
			ra.Apply = true
			ra.ApplySet = true
		case strings.HasPrefix(a, "--apply="):
			v := strings.TrimPrefix(a, "--apply=")
			switch v {
			case "true":
				ra.Apply = true
			case "false":
				ra.Apply = false
			default:
				return runArgs{}, fmt.Errorf("--apply 只能是 true 或 false，实际是 %q", v)
			}
			ra.ApplySet = true
		default:
			return runArgs{}, fmt.Errorf("未知参数 %q", a)
		}
	}

	if ra.ProviderSet {
		switch ra.Provider {
		case "mal", "wikipedia":
			// ok
		case "":
			return runArgs{}, fmt.Errorf("--provider 不能为空")
		default:
			return runArgs{}, fmt.Errorf("--provider 只能是 mal 或 wikipedia，实际是 %q", ra.Provider)
		}
	}

	return ra, nil
}

func isHelp(s string) bool {
	return s == "-h" || s == "--help" || s == "help"
}

func printUsage() {
	fmt.Fprint(os.Stdout, `用法：
  fmux run [--config fmux.json] [--provider mal|wikipedia] [--apply[=true|false]]

命令：
  run    按配置合成 mkv（默认 dry-run，只校验并输出 plan）

使用 "fmux run --help" 查看详细说明。
`)
}

func printRunUsage() {
	fmt.Fprint(os.Stdout, `用法：
  fmux run [--config fmux.json] [--provider mal|wikipedia] [--apply[=true|false]]

参数：
  --config    配置文件路径（默认当前目录下的 fmux.json）
  --provider  集数标题来源：mal|wikipedia（未指定则读配置文件；不配置则不取标题）
  --apply     真正调用 mkvmerge 产出文件（默认 dry-run）；--apply=false 可覆盖配置里的 apply=true
  -h, --help  显示帮助
`)
}

func emitReport(rr domain.RunReport) {
	if isTTY(os.Stdout) {
		fmt.Fprintf(os.Stdout, "完成：tracks=%d failed=%d attachments=%d warnings=%d\n",
			rr.Summary.Tracks, rr.Summary.Failed, rr.Summary.Attachments, rr.Summary.Warnings,
		)
		if rr.ErrorCode != "" {
			fmt.Fprintf(os.Stderr, "%s: %s\n", rr.ErrorCode, rr.ErrorMsg)
		}
		for _, tr := range rr.Tracks {
			if tr.Status != domain.StatusFailed {
				continue
			}
			fmt.Fprintf(os.Stderr, "%s %s: %s\n", tr.ID, tr.ErrorCode, tr.ErrorMsg)
		}
		return
	}

	// stdout 非 TTY：stdout 必须且仅输出一个 RunReport JSON（日志/摘要走 stderr）。
	enc := json.NewEncoder(os.Stdout)
	_ = enc.Encode(rr)
	fmt.Fprintf(os.Stderr, "完成：tracks=%d failed=%d attachments=%d warnings=%d\n",
		rr.Summary.Tracks, rr.Summary.Failed, rr.Summary.Attachments, rr.Summary.Warnings,
	)
}

func reportForConfigError(cwd string, ra runArgs, err error) domain.RunReport {
	now := time.Now().UTC()
	cfgPath := ra.Config
	if cfgPath == "" {
		cfgPath = filepath.Join(cwd, "fmux.json")
	}
	rr := domain.RunReport{
		Config:      cfgPath,
		DryRun:      !(ra.ApplySet && ra.Apply),
		StartedAt:   now,
		FinishedAt:  now,
		Attachments: []string{},
		Warnings:    []domain.Warning{},
		Tracks:      []domain.TrackResult{},
		ErrorCode:   config.Code(err),
		ErrorMsg:    err.Error(),
	}
	rr.Finalize()
	return rr
}

func writeReportFile(workdir string, rr domain.RunReport) error {
	b, err := json.MarshalIndent(rr, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	return fsx.WriteFileAtomicReplace(filepath.Join(workdir, "cache"), "report.json", b)
}

func isTTY(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func pickProgressWriter() (io.Writer, bool) {
	// 进度输出只在交互终端启用；默认走 stderr（不污染 stdout JSON）。
	if isTTY(os.Stderr) {
		return os.Stderr, true
	}
	// 某些环境（例如仅重定向 stderr）下，stdout 仍是 TTY：退化输出到 stdout。
	if isTTY(os.Stdout) {
		return os.Stdout, true
	}
	return nil, false
}

func emitLocations(w io.Writer, eff config.EffectiveConfig, rr domain.RunReport) {
	// 这两行用于降低“完成后不知道产物在哪”的摩擦，且不影响 stdout JSON 契约。
	if w == nil {
		return
	}
	if eff.Apply {
		fmt.Fprintf(w, "report: %s\n", filepath.Join(eff.Workdir, "cache", "report.json"))
	}
	if rr.Output != "" {
		fmt.Fprintf(w, "out: %s\n", filepath.Join(eff.Workdir, rr.Output))
	}
}
