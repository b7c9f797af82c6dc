package app

import (
	"hash/crc32"
	"io"
	"os"
	"regexp"
	"strings"
)

// NameVars 是输出名模板的可替换事实。
type NameVars struct {
	Show    string
	Episode string
	Title   string // provider 拿不到时为空，模板做降级
}

// TokenCRC32 在模板里占位；mux 完成后由 SpliceCRC32 回填。
// dry-run 不产出文件，名字里保留该占位原样展示。
const TokenCRC32 = "$crc32$"

var (
	// 文件名里不允许的字符统一折成空格（跨平台取最严格集合）。
	hostileRE = regexp.MustCompile(`[/\\:*?"<>|]`)
	spacesRE  = regexp.MustCompile(`\s{2,}`)
	// $title$ 缺失后残留的空括号/空悬分隔符。
	emptyBracketRE = regexp.MustCompile(`\(\s*\)|\[\s*\]|\{\s*\}`)
	danglingSepRE  = regexp.MustCompile(`\s*[-–—]\s*(\.|$|\[)`)
)

// ExpandName 替换 $show$/$ep$/$title$。
//
// Title 为空时做降级：去掉 token 以及它留下的空括号与空悬分隔符，
// 让 "A - $ep$ - $title$ [x]" 退化成 "A - 12 [x]" 而不是 "A - 12 -  [x]"。
// $crc32$ 原样保留，由调用方在 mux 之后回填。
func ExpandName(tpl string, v NameVars) string {
	s := tpl
	s = strings.ReplaceAll(s, "$show$", clean(v.Show))
	s = strings.ReplaceAll(s, "$ep$", clean(v.Episode))

	if title := clean(v.Title); title != "" {
		s = strings.ReplaceAll(s, "$title$", title)
	} else {
		s = strings.ReplaceAll(s, "$title$", "")
		s = emptyBracketRE.ReplaceAllString(s, "")
		s = danglingSepRE.ReplaceAllString(s, " $1")
		s = strings.ReplaceAll(s, " .", ".")
	}

	s = spacesRE.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// SpliceCRC32 把 $crc32$ 回填为 8 位大写十六进制校验和。
func SpliceCRC32(name string, sum uint32) string {
	const hexDigits = "0123456789ABCDEF"
	var b [8]byte
	for i := 7; i >= 0; i-- {
		b[i] = hexDigits[sum&0xf]
		sum >>= 4
	}
	return strings.ReplaceAll(name, TokenCRC32, string(b[:]))
}

// FileCRC32 计算文件内容的 CRC32（IEEE，多数发布组的命名习惯）。
func FileCRC32(path string) (uint32, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	h := crc32.NewIEEE()
	if _, err := io.Copy(h, f); err != nil {
		return 0, err
	}
	return h.Sum32(), nil
}

func clean(s string) string {
	return strings.TrimSpace(hostileRE.ReplaceAllString(s, " "))
}
