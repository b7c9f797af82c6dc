package fontscan

import (
	"os"
	"path/filepath"
	"testing"
)

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

// 扫描：只收字体扩展名，递归子目录，输出有序。
func TestScan(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "B.TTF"))
	touch(t, filepath.Join(root, "a.otf"))
	touch(t, filepath.Join(root, "sub", "c.ttc"))
	touch(t, filepath.Join(root, "readme.txt"))
	touch(t, filepath.Join(root, "sub", "notes.md"))

	got, err := Scan([]string{root})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("应收 3 个字体文件，得到 %d", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i-1].AbsPath >= got[i].AbsPath {
			t.Fatalf("输出未按 AbsPath 排序: %q >= %q", got[i-1].AbsPath, got[i].AbsPath)
		}
	}
	// 扩展名统一小写，Base 去扩展名。
	for _, f := range got {
		if f.Ext != ".ttf" && f.Ext != ".otf" && f.Ext != ".ttc" {
			t.Fatalf("意外扩展名: %q", f.Ext)
		}
		if filepath.Ext(f.Base) != "" {
			t.Fatalf("Base 不应带扩展名: %q", f.Base)
		}
	}
}

// 不存在的目录直接跳过，不报错。
func TestScanMissingDir(t *testing.T) {
	got, err := Scan([]string{filepath.Join(t.TempDir(), "nope")})
	if err != nil {
		t.Fatalf("不存在的目录不应报错: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("应为空结果，得到 %d", len(got))
	}
}

// 同一路径重复列出的目录不产生重复项。
func TestScanDedup(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "a.ttf"))

	got, err := Scan([]string{root, root})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("重复目录应去重，得到 %d 项", len(got))
	}
}
