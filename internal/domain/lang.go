package domain

import (
	"regexp"
	"strings"
)

// 语言标签按 mkvmerge 的习惯接受 ISO 639-2（三字母）或 BCP 47 形态，
// 例如 "jpn"、"eng"、"ja"、"zh-Hans"。
//
// 约束：要么得到规范化标签，要么失败；宁可让用户改配置，也不允许写错进容器。
var langRE = regexp.MustCompile(`^[a-zA-Z]{2,3}(-[a-zA-Z0-9]{2,8})*$`)

// ParseLang 校验并规范化语言标签（主子标签小写，其余子标签原样保留）。
func ParseLang(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" || !langRE.MatchString(s) {
		return "", false
	}
	parts := strings.SplitN(s, "-", 2)
	parts[0] = strings.ToLower(parts[0])
	return strings.Join(parts, "-"), true
}

// LangPrimary 返回标签的主子标签（分组排序只看它）。
func LangPrimary(lang string) string {
	if i := strings.IndexByte(lang, '-'); i >= 0 {
		return lang[:i]
	}
	return lang
}
