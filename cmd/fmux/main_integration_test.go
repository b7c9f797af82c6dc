package main

import (
	"bytes"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/John-Robertt/FMUX/internal/domain"
)

func TestCLI_NoTTY_StdoutOnlyRunReportJSON(t *testing.T) {
	// 这个测试锁定对外契约：stdout 非 TTY 时只能输出一个 RunReport JSON
	// （进度/配置必须走 stderr 或直接禁用）。用一个缺失输入的配置触发
	// 可预期的失败，避免测试依赖真实的 mkvmerge。
	root := t.TempDir()
	cfg := filepath.Join(root, "fmux.json")
	if err := os.WriteFile(cfg, []byte(`{"inputs":[{"path":"missing.mkv","kind":"video"}]}`), 0o644); err != nil {
		t.Fatalf("写配置失败：%v", err)
	}

	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("读取 cwd 失败：%v", err)
	}
	repoRoot := filepath.Clean(filepath.Join(wd, "..", ".."))

	cmd := exec.Command("go", "run", "./cmd/fmux", "run", "--config", cfg)
	cmd.Dir = repoRoot

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	// 输入文件不存在 => 退出码 1，但 stdout 仍然必须是一个完整 report。
	_ = cmd.Run()

	var rr domain.RunReport
	if err := json.Unmarshal(stdout.Bytes(), &rr); err != nil {
		t.Fatalf("stdout 不是合法的 RunReport JSON：%v\nstdout=%q\nstderr=%q", err, stdout.String(), stderr.String())
	}
	if rr.ErrorCode == "" {
		t.Fatalf("期望运行级错误，实际 report=%+v", rr)
	}
	// 进度/配置不应出现在 stdout。
	if strings.Contains(stdout.String(), "配置（生效）") {
		t.Fatalf("stdout 不应包含进度/配置输出：%q", stdout.String())
	}
	// stderr 至少应包含最终摘要行。
	if !strings.Contains(stderr.String(), "完成：tracks=") {
		t.Fatalf("stderr 缺少完成摘要：%q", stderr.String())
	}
}
