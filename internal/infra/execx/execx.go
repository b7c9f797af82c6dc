// Package execx 封装外部工具调用（mkvmerge 等）。
//
// 约束：
// - 一切调用带 context；取消即杀进程
// - 退出码与合并输出原样带回，不做解释
// - 产物文件在取消/失败后由调用侧决定去留，这里只提供清理助手
package execx

import (
	"context"
	"errors"
	"os"
	"os/exec"
)

// Result 是一次进程调用的原样结果。
type Result struct {
	ExitCode int
	Output   []byte // stdout+stderr 合并
}

// Runner 抽象进程调用，便于测试替身。
type Runner interface {
	Run(ctx context.Context, name string, args []string) (Result, error)
}

// System 是真实实现。
type System struct{}

// Run 执行命令并等待结束。
//
// 返回约定：
// - 进程正常退出（含非零退出码）：err=nil，退出码在 Result 里
// - 无法启动 / 被 context 杀死：err 非 nil
func (System) Run(ctx context.Context, name string, args []string) (Result, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.CombinedOutput()

	if ctx.Err() != nil {
		return Result{ExitCode: -1, Output: out}, ctx.Err()
	}
	if err != nil {
		var ee *exec.ExitError
		if errors.As(err, &ee) {
			return Result{ExitCode: ee.ExitCode(), Output: out}, nil
		}
		return Result{ExitCode: -1, Output: out}, err
	}
	return Result{ExitCode: 0, Output: out}, nil
}

// RunProducing 执行会产出 outPath 的命令；调用被取消或进程无法启动时
// 删除可能写了一半的产物文件，绝不把残缺文件留给下游。
func RunProducing(ctx context.Context, r Runner, name string, args []string, outPath string) (Result, error) {
	res, err := r.Run(ctx, name, args)
	if err != nil && outPath != "" {
		_ = os.Remove(outPath)
	}
	return res, err
}
