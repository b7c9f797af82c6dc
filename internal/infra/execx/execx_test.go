package execx

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// 测试替身：固定结果/错误，并记录调用。
type fakeRunner struct {
	res  Result
	err  error
	name string
	args []string
}

func (f *fakeRunner) Run(_ context.Context, name string, args []string) (Result, error) {
	f.name, f.args = name, args
	return f.res, f.err
}

// 正常退出：err=nil，退出码 0，输出原样。
func TestSystemRun(t *testing.T) {
	res, err := System{}.Run(context.Background(), "echo", []string{"hello"})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if res.ExitCode != 0 {
		t.Fatalf("期望退出码 0，实际=%d", res.ExitCode)
	}
	if string(res.Output) != "hello\n" {
		t.Fatalf("输出不一致：%q", res.Output)
	}
}

// 非零退出码不算 err，原样带回。
func TestSystemRunNonZeroExit(t *testing.T) {
	res, err := System{}.Run(context.Background(), "sh", []string{"-c", "exit 3"})
	if err != nil {
		t.Fatalf("非零退出码不应是 err：%v", err)
	}
	if res.ExitCode != 3 {
		t.Fatalf("期望退出码 3，实际=%d", res.ExitCode)
	}
}

// 无法启动 → err 非 nil。
func TestSystemRunNotFound(t *testing.T) {
	_, err := System{}.Run(context.Background(), "definitely-not-a-binary-fmux", nil)
	if err == nil {
		t.Fatalf("期望启动失败")
	}
}

// 已取消的 context → err 为 ctx.Err()。
func TestSystemRunCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := System{}.Run(ctx, "sleep", []string{"10"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("期望 context.Canceled，实际=%v", err)
	}
}

// RunProducing：失败时删除半成品。
func TestRunProducingCleanup(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "partial.mkv")
	if err := os.WriteFile(out, []byte("partial"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	f := &fakeRunner{err: context.Canceled}
	_, err := RunProducing(context.Background(), f, "mkvmerge", []string{"-o", out}, out)
	if err == nil {
		t.Fatalf("期望错误透传")
	}
	if _, serr := os.Stat(out); !os.IsNotExist(serr) {
		t.Fatalf("半成品应被删除，Stat err=%v", serr)
	}
}

// RunProducing：成功时保留产物。
func TestRunProducingKeepsOutput(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "done.mkv")
	if err := os.WriteFile(out, []byte("ok"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	f := &fakeRunner{res: Result{ExitCode: 0}}
	if _, err := RunProducing(context.Background(), f, "mkvmerge", nil, out); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if _, err := os.Stat(out); err != nil {
		t.Fatalf("产物应保留：%v", err)
	}
}
