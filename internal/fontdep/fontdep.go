// Package fontdep 解析字幕轨的字体依赖：把 subs 包提取出的 FontRef
// 交给 Matcher 找到落盘文件，按文件身份去重后产出附件列表。
//
// 失败模型：字体缺失永远只是告警，绝不让一次 mux 因为缺字体而失败。
package fontdep

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/John-Robertt/FMUX/internal/domain"
)

// Policy 决定一个 FontRef 命中多个候选文件时的取舍。
type Policy string

const (
	// PolicyFirst 只取排序后的第一个候选。
	PolicyFirst Policy = "first"
	// PolicyAll 附加全部候选。
	PolicyAll Policy = "all"
	// PolicyExactStyle 优先取样式（字重/斜体）完全匹配的候选；
	// 没有完全匹配时退回全部候选。默认策略。
	PolicyExactStyle Policy = "exact-style-preferred"
)

// ValidPolicy 校验策略字符串。
func ValidPolicy(p Policy) bool {
	switch p {
	case PolicyFirst, PolicyAll, PolicyExactStyle:
		return true
	default:
		return false
	}
}

// Matcher 把一批去重后的 FontRef 解析成候选文件。
// 每个 ref 的候选列表必须有序稳定；未命中的 ref 直接缺席于返回的 map。
type Matcher interface {
	Resolve(refs []domain.FontRef) map[domain.FontRef][]domain.FontFile
}

// Collect 汇总所有字幕轨的字体引用，经 m 解析后产出去重附件与告警。
//
// 去重看文件身份（大小 + 内容哈希），不看文件名：同一字体被装在
// 两个目录下也只附加一次。返回的附件按路径字典序稳定排序。
func Collect(tracks []domain.Track, m Matcher) ([]domain.Attachment, []domain.Warning, error) {
	uses := map[domain.FontRef]int{}
	for _, t := range tracks {
		if t.Kind != domain.KindSubtitle {
			continue
		}
		for _, u := range t.FontRefs {
			uses[u.Ref] += u.Count
		}
	}
	if len(uses) == 0 {
		return nil, nil, nil
	}

	refs := make([]domain.FontRef, 0, len(uses))
	for r := range uses {
		refs = append(refs, r)
	}
	sort.Slice(refs, func(i, j int) bool {
		a, b := refs[i], refs[j]
		if a.Family != b.Family {
			return a.Family < b.Family
		}
		if a.Weight != b.Weight {
			return a.Weight < b.Weight
		}
		return !a.Italic && b.Italic
	})

	matched := m.Resolve(refs)

	var warns []domain.Warning
	seen := map[string]struct{}{}
	var out []domain.Attachment
	for _, r := range refs {
		files := matched[r]
		if len(files) == 0 {
			warns = append(warns, domain.Warning{
				Code: domain.WarnFontMissing,
				Msg:  fmt.Sprintf("未找到字体 %s（%d 处引用）", refString(r), uses[r]),
			})
			continue
		}
		for _, f := range files {
			id, err := fileIdentity(f)
			if err != nil {
				// 文件在匹配与附加之间消失/不可读：降级为缺失告警。
				warns = append(warns, domain.Warning{
					Code: domain.WarnFontMissing,
					Msg:  fmt.Sprintf("字体文件不可读 %s: %v", f.AbsPath, err),
				})
				continue
			}
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, domain.Attachment{Path: f.AbsPath, MIME: f.MIME()})
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, warns, nil
}

// fileIdentity 计算文件身份键：size + 内容 sha256。
func fileIdentity(f domain.FontFile) (string, error) {
	fh, err := os.Open(f.AbsPath)
	if err != nil {
		return "", err
	}
	defer fh.Close()

	h := sha256.New()
	n, err := io.Copy(h, fh)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d:%s", n, hex.EncodeToString(h.Sum(nil))), nil
}

func refString(r domain.FontRef) string {
	s := r.Family
	if r.Weight >= 700 {
		s += " Bold"
	}
	if r.Italic {
		s += " Italic"
	}
	return s
}

// DirMatcher 是基于目录扫描结果的文件名匹配实现。
//
// 只比对文件名（归一化后的前缀 + 样式后缀），不解析字体内部 name 表；
// 更精细的匹配实现可以替换 Matcher 接口而不动调用方。
type DirMatcher struct {
	files  []domain.FontFile
	policy Policy
	warns  []domain.Warning
}

// NewDirMatcher 用扫描结果与策略构造匹配器。非法策略回落到默认。
func NewDirMatcher(files []domain.FontFile, policy Policy) *DirMatcher {
	if !ValidPolicy(policy) {
		policy = PolicyExactStyle
	}
	return &DirMatcher{files: files, policy: policy}
}

// Resolve 实现 Matcher。多候选裁剪产生的歧义告警通过 Warnings 读取。
func (m *DirMatcher) Resolve(refs []domain.FontRef) map[domain.FontRef][]domain.FontFile {
	m.warns = nil
	out := make(map[domain.FontRef][]domain.FontFile, len(refs))
	for _, r := range refs {
		cands := m.candidates(r)
		if len(cands) == 0 {
			continue
		}
		picked := m.pick(r, cands)
		if len(cands) > 1 && len(picked) < len(cands) {
			m.warns = append(m.warns, domain.Warning{
				Code: domain.WarnFontAmbiguous,
				Msg: fmt.Sprintf("字体 %s 命中 %d 个候选，按策略 %s 取 %d 个",
					refString(r), len(cands), m.policy, len(picked)),
			})
		}
		out[r] = picked
	}
	return out
}

// Warnings 返回上一次 Resolve 产生的歧义告警。
func (m *DirMatcher) Warnings() []domain.Warning { return m.warns }

// candidates 返回族名前缀命中的全部文件，按路径排序。
func (m *DirMatcher) candidates(r domain.FontRef) []domain.FontFile {
	fam := normalizeName(r.Family)
	if fam == "" {
		return nil
	}
	var out []domain.FontFile
	for _, f := range m.files {
		base := normalizeName(f.Base)
		if base == fam || (strings.HasPrefix(base, fam) && styleSuffix(base[len(fam):])) {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AbsPath < out[j].AbsPath })
	return out
}

func (m *DirMatcher) pick(r domain.FontRef, cands []domain.FontFile) []domain.FontFile {
	switch m.policy {
	case PolicyAll:
		return cands
	case PolicyFirst:
		return cands[:1]
	default: // exact-style-preferred
		var exact []domain.FontFile
		for _, f := range cands {
			w, it := styleOf(normalizeName(f.Base))
			if (w >= 700) == (r.Weight >= 700) && it == r.Italic {
				exact = append(exact, f)
			}
		}
		if len(exact) > 0 {
			return exact
		}
		return cands
	}
}

// normalizeName 把族名/文件名压成可比较形：小写，去空白与连接符。
// 前导 "@"（纵排族名）在 subs 层已剥掉，这里再兜一次。
func normalizeName(s string) string {
	var b strings.Builder
	for _, c := range strings.TrimPrefix(s, "@") {
		switch {
		case c == ' ' || c == '\t' || c == '-' || c == '_':
		default:
			b.WriteRune(toLowerASCII(c))
		}
	}
	return b.String()
}

func toLowerASCII(c rune) rune {
	if c >= 'A' && c <= 'Z' {
		return c + ('a' - 'A')
	}
	return c
}

// styleSuffix 判定族名之后剩下的尾巴是否为样式修饰（Bold/Italic/...）。
// 剩下别的内容说明命中的是另一个更长的族名（"Lato" vs "LatoExpanded"）。
func styleSuffix(rest string) bool {
	for _, w := range []string{"regular", "book", "normal", "bold", "italic", "oblique", "bolditalic"} {
		rest = strings.ReplaceAll(rest, w, "")
	}
	return rest == ""
}

// styleOf 从归一化文件名猜样式：含 bold → 700，含 italic/oblique → 斜体。
func styleOf(base string) (weight int, italic bool) {
	weight = 400
	if strings.Contains(base, "bold") {
		weight = 700
	}
	if strings.Contains(base, "italic") || strings.Contains(base, "oblique") {
		italic = true
	}
	return weight, italic
}
