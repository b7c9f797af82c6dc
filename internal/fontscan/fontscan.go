package fontscan

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/John-Robertt/FMUX/internal/domain"
)

// Scan 扫描若干字体目录，收集 .ttf/.otf/.ttc 文件。
//
// 规则（硬约束）：
// - 只做 stat（DirEntry.Info），不读文件内容、不解析字体 name 表
// - 目录不存在不算错误（系统字体目录在不同平台上有无皆可能）
// - 输出按 AbsPath 字典序稳定排序
func Scan(dirs []string) ([]domain.FontFile, error) {
	files := make([]domain.FontFile, 0, 128)
	seen := map[string]struct{}{}

	for _, dir := range dirs {
		dir = filepath.Clean(strings.TrimSpace(dir))
		if dir == "" {
			continue
		}
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			continue
		}

		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if d.IsDir() {
				return nil
			}

			name := d.Name()
			ext := strings.ToLower(filepath.Ext(name))
			if !isFontExt(ext) {
				return nil
			}
			if _, ok := seen[path]; ok {
				return nil
			}
			seen[path] = struct{}{}

			info, err := d.Info()
			if err != nil {
				return err
			}

			files = append(files, domain.FontFile{
				AbsPath: path,
				Base:    strings.TrimSuffix(name, filepath.Ext(name)),
				Ext:     ext,
				Size:    info.Size(),
				ModUnix: info.ModTime().Unix(),
			})
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	// 强制稳定输出，避免不同平台/文件系统行为差异带来的不确定性。
	sort.Slice(files, func(i, j int) bool { return files[i].AbsPath < files[j].AbsPath })
	return files, nil
}

// DefaultDirs 返回各平台常见的系统字体目录（存在与否由 Scan 自己处理）。
func DefaultDirs() []string {
	home, _ := os.UserHomeDir()
	return []string{
		"/usr/share/fonts",
		"/usr/local/share/fonts",
		filepath.Join(home, ".fonts"),
		filepath.Join(home, ".local", "share", "fonts"),
		filepath.Join(home, "Library", "Fonts"),
		"/Library/Fonts",
		"/System/Library/Fonts",
		`C:\Windows\Fonts`,
	}
}

func isFontExt(ext string) bool {
	switch ext {
	case ".ttf", ".otf", ".ttc":
		return true
	default:
		return false
	}
}
