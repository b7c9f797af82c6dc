// Package subs 读取 ASS 字幕的样式与事件，产出结构化的字体引用列表。
//
// 边界：只提取 fontdep 需要的信息（样式表 + 行内 \fn/\b/\i 覆盖 + 使用
// 计数 + 事件时间）；改样式、平移时间等完整字幕处理不在本工具范围内。
package subs

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/John-Robertt/FMUX/internal/domain"
)

const (
	weightRegular = 400
	weightBold    = 700
)

// File 是一份字幕文件解析后的最小结果。
type File struct {
	Events   []domain.SubEvent
	Fonts    []domain.FontUse
	Duration domain.Timecode // 最后一条事件的结束时间
}

// Load 读取并解析一个 .ass 文件。
func Load(path string) (File, error) {
	f, err := os.Open(path)
	if err != nil {
		return File{}, err
	}
	defer f.Close()
	out, err := Parse(f)
	if err != nil {
		return File{}, fmt.Errorf("解析 %q 失败：%w", path, err)
	}
	return out, nil
}

type style struct {
	ref domain.FontRef
}

// Parse 解析 ASS 文本。
// 容错策略：未知 section/字段跳过；样式缺失的事件按 Default 处理；
// 但 [Events] 的 Format 行必须能定位 Start/End/Style/Text 四列。
func Parse(r io.Reader) (File, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	styles := map[string]style{}
	uses := map[domain.FontRef]int{}
	var events []domain.SubEvent
	var maxEnd domain.Timecode

	section := ""
	var styleFmt, eventFmt []string

	for sc.Scan() {
		line := strings.TrimSpace(strings.TrimPrefix(sc.Text(), "\uFEFF"))
		if line == "" || strings.HasPrefix(line, ";") {
			continue
		}
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			section = strings.ToLower(strings.Trim(line, "[]"))
			continue
		}

		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		switch {
		case strings.Contains(section, "styles"):
			switch key {
			case "Format":
				styleFmt = splitFields(value, -1)
			case "Style":
				if len(styleFmt) == 0 {
					continue
				}
				name, ref, err := parseStyle(styleFmt, splitFields(value, len(styleFmt)))
				if err != nil {
					return File{}, err
				}
				styles[name] = style{ref: ref}
			}

		case section == "events":
			switch key {
			case "Format":
				eventFmt = splitFields(value, -1)
			case "Dialogue":
				if len(eventFmt) == 0 {
					return File{}, fmt.Errorf("[Events] 缺少 Format 行")
				}
				ev, text, err := parseDialogue(eventFmt, splitFields(value, len(eventFmt)))
				if err != nil {
					return File{}, err
				}
				base := styles[ev.Style].ref
				if base.Family == "" {
					base = styles["Default"].ref
				}
				countFonts(uses, base, text)
				events = append(events, ev)
				if ev.End.Cmp(maxEnd) > 0 {
					maxEnd = ev.End
				}
			}
		}
	}
	if err := sc.Err(); err != nil {
		return File{}, err
	}

	fonts := make([]domain.FontUse, 0, len(uses))
	for ref, n := range uses {
		fonts = append(fonts, domain.FontUse{Ref: ref, Count: n})
	}
	// 输出顺序稳定：族名、字重、斜体。
	sort.Slice(fonts, func(i, j int) bool {
		a, b := fonts[i].Ref, fonts[j].Ref
		if a.Family != b.Family {
			return a.Family < b.Family
		}
		if a.Weight != b.Weight {
			return a.Weight < b.Weight
		}
		return !a.Italic && b.Italic
	})

	return File{Events: events, Fonts: fonts, Duration: maxEnd}, nil
}

// splitFields 按逗号切分；n > 0 时最后一列保留剩余全部（Text 里允许逗号）。
func splitFields(s string, n int) []string {
	var parts []string
	if n > 0 {
		parts = strings.SplitN(s, ",", n)
	} else {
		parts = strings.Split(s, ",")
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func parseStyle(format, fields []string) (string, domain.FontRef, error) {
	name := ""
	ref := domain.FontRef{Weight: weightRegular}
	for i, col := range format {
		if i >= len(fields) {
			break
		}
		switch col {
		case "Name":
			name = fields[i]
		case "Fontname":
			ref.Family = normalizeFamily(fields[i])
		case "Bold":
			if assBool(fields[i]) {
				ref.Weight = weightBold
			}
		case "Italic":
			ref.Italic = assBool(fields[i])
		}
	}
	if name == "" || ref.Family == "" {
		return "", domain.FontRef{}, fmt.Errorf("样式行缺少 Name/Fontname：%v", fields)
	}
	return name, ref, nil
}

func parseDialogue(format, fields []string) (domain.SubEvent, string, error) {
	var ev domain.SubEvent
	text := ""
	for i, col := range format {
		if i >= len(fields) {
			break
		}
		switch col {
		case "Start":
			t, err := parseTime(fields[i])
			if err != nil {
				return domain.SubEvent{}, "", err
			}
			ev.Start = t
		case "End":
			t, err := parseTime(fields[i])
			if err != nil {
				return domain.SubEvent{}, "", err
			}
			ev.End = t
		case "Style":
			ev.Style = fields[i]
		case "Text":
			text = fields[i]
		}
	}
	return ev, text, nil
}

// parseTime 解析 ASS 的 H:MM:SS.cc 时间（厘秒精度）。
func parseTime(s string) (domain.Timecode, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 3 {
		return domain.Timecode{}, fmt.Errorf("时间格式无效：%q", s)
	}
	h, err1 := strconv.ParseInt(parts[0], 10, 64)
	m, err2 := strconv.ParseInt(parts[1], 10, 64)
	sec, frac, _ := strings.Cut(parts[2], ".")
	ss, err3 := strconv.ParseInt(sec, 10, 64)
	if err1 != nil || err2 != nil || err3 != nil {
		return domain.Timecode{}, fmt.Errorf("时间格式无效：%q", s)
	}
	cs := int64(0)
	if frac != "" {
		// 统一按厘秒读；更长的小数截断到厘秒（ASS 本身只有两位）。
		if len(frac) > 2 {
			frac = frac[:2]
		}
		v, err := strconv.ParseInt(frac, 10, 64)
		if err != nil {
			return domain.Timecode{}, fmt.Errorf("时间格式无效：%q", s)
		}
		if len(frac) == 1 {
			v *= 10
		}
		cs = v
	}
	return domain.TimecodeFromMilli(((h*60+m)*60+ss)*1000 + cs*10), nil
}

func assBool(s string) bool {
	// ASS 用 -1 表示 true；顺带接受 1。
	return s == "-1" || s == "1"
}

// normalizeFamily 去掉 \fn/样式里的修饰（"@" 前缀表示竖排取向，匹配时不关心）。
func normalizeFamily(s string) string {
	return strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "@"))
}

// countFonts 统计一行文本实际用到的字体：基础样式一次，行内 {\fn...}
// 覆盖各自一次。\b / \i 只在覆盖块内改变后续 \fn 的字重/斜体状态；
// \r 恢复基础样式。
func countFonts(uses map[domain.FontRef]int, base domain.FontRef, text string) {
	if base.Family == "" {
		return
	}
	uses[base]++

	cur := base
	rest := text
	for {
		i := strings.IndexByte(rest, '{')
		if i < 0 {
			break
		}
		j := strings.IndexByte(rest[i:], '}')
		if j < 0 {
			break
		}
		block := rest[i+1 : i+j]
		rest = rest[i+j+1:]

		for _, tag := range splitTags(block) {
			switch {
			case strings.HasPrefix(tag, "fn"):
				fam := normalizeFamily(tag[2:])
				if fam == "" {
					cur.Family = base.Family
				} else {
					cur.Family = fam
				}
				uses[cur]++
			case strings.HasPrefix(tag, "b") && !strings.HasPrefix(tag, "blur") && !strings.HasPrefix(tag, "bord") && !strings.HasPrefix(tag, "be"):
				cur.Weight = parseBoldTag(tag[1:])
			case strings.HasPrefix(tag, "i") && !strings.HasPrefix(tag, "iclip"):
				cur.Italic = strings.TrimSpace(tag[1:]) == "1"
			case strings.HasPrefix(tag, "r"):
				cur = base
			}
		}
	}
}

func splitTags(block string) []string {
	parts := strings.Split(block, "\\")
	out := parts[:0]
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseBoldTag(v string) int {
	v = strings.TrimSpace(v)
	switch v {
	case "0":
		return weightRegular
	case "1", "":
		return weightBold
	default:
		if n, err := strconv.Atoi(v); err == nil && n >= 100 && n <= 900 {
			return n
		}
		return weightRegular
	}
}
