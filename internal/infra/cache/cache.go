package cache

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/John-Robertt/FMUX/internal/infra/fsx"
)

// Store 提供 <workdir>/cache/ 下的文件缓存读写。
//
// 两类条目：
// - probe：mkvmerge -J 的 JSON 结果，键为源文件 path+size+mtime
// - provider：剧集标题页面的 HTML，键为 provider 名 + 查询键
//
// 约束：
// - dry-run：只允许读（ReadOnly=true）
// - apply：允许写（ReadOnly=false）
type Store struct {
	Root     string // <workdir>
	ReadOnly bool
}

var ErrReadOnly = errors.New("cache: read-only")

func New(root string, readOnly bool) Store {
	return Store{
		Root:     filepath.Clean(strings.TrimSpace(root)),
		ReadOnly: readOnly,
	}
}

// ProbePath 返回 probe JSON 缓存的绝对路径。
// 源文件变化（size/mtime 任一不同）自然落到不同条目，不需要显式失效。
func (s Store) ProbePath(src string, size, mtimeUnix int64) string {
	sum := sha1.Sum([]byte(fmt.Sprintf("%s|%d|%d", filepath.Clean(src), size, mtimeUnix)))
	return filepath.Join(s.Root, "cache", "probe", hex.EncodeToString(sum[:])+".json")
}

func (s Store) ReadProbe(src string, size, mtimeUnix int64) ([]byte, bool, error) {
	b, err := os.ReadFile(s.ProbePath(src, size, mtimeUnix))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return b, true, nil
}

func (s Store) WriteProbe(src string, size, mtimeUnix int64, raw []byte) error {
	if s.ReadOnly {
		return ErrReadOnly
	}
	path := s.ProbePath(src, size, mtimeUnix)
	return fsx.WriteFileAtomicReplace(filepath.Dir(path), filepath.Base(path), raw)
}

// ProviderHTMLPath 返回 provider HTML 缓存的绝对路径。
func (s Store) ProviderHTMLPath(provider, key string) (string, error) {
	p, err := cleanProvider(provider)
	if err != nil {
		return "", err
	}
	k, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.Root, "cache", "providers", p, k+".html"), nil
}

func (s Store) ReadProviderHTML(provider, key string) ([]byte, bool, error) {
	path, err := s.ProviderHTMLPath(provider, key)
	if err != nil {
		return nil, false, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return b, true, nil
}

func (s Store) WriteProviderHTML(provider, key string, html []byte) error {
	if s.ReadOnly {
		return ErrReadOnly
	}
	path, err := s.ProviderHTMLPath(provider, key)
	if err != nil {
		return err
	}
	return fsx.WriteFileAtomicReplace(filepath.Dir(path), filepath.Base(path), html)
}

var providerNameRE = regexp.MustCompile(`^[a-z0-9_]+$`)

func cleanProvider(p string) (string, error) {
	p = strings.ToLower(strings.TrimSpace(p))
	if p == "" {
		return "", fmt.Errorf("provider 不能为空")
	}
	// 最小约束：避免路径穿越；provider 名称本身是枚举（mal/wikipedia），这里不做更多处理。
	if !providerNameRE.MatchString(p) {
		return "", fmt.Errorf("非法 provider：%q", p)
	}
	return p, nil
}

// cleanKey 把任意查询键压成安全文件名：保留 [a-z0-9._-]，其余折成 '-'。
// 折叠可能撞名的场景（不同 show 同名）靠上层把 key 组装得足够区分。
func cleanKey(key string) (string, error) {
	key = strings.ToLower(strings.TrimSpace(key))
	if key == "" {
		return "", fmt.Errorf("key 不能为空")
	}
	var b strings.Builder
	for _, c := range key {
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == '.', c == '_', c == '-':
			b.WriteRune(c)
		default:
			b.WriteRune('-')
		}
	}
	out := strings.Trim(b.String(), "-.")
	if out == "" {
		return "", fmt.Errorf("非法 key：%q", key)
	}
	return out, nil
}
