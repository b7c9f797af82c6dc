// Package chapters 读写章节：OGM 简单文本与 matroska XML 两种输入，
// 统一成 domain.ChapterEntry；支持帧号章节与 trim 位移，
// 输出固定为 matroska XML。
package chapters

import (
	"encoding/xml"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/John-Robertt/FMUX/internal/domain"
)

// ParseError 标识章节文件解析失败（带行号定位）。
type ParseError struct {
	Path string
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("章节解析失败 %s:%d: %s", e.Path, e.Line, e.Msg)
	}
	return fmt.Sprintf("章节解析失败 %s: %s", e.Path, e.Msg)
}

// Load 读取章节文件并按内容分派格式：XML 以 '<' 开头，其余按 OGM 处理。
//
// rate 用于帧号章节（OGM 扩展形态 `CHAPTERxx=123` 纯数字为帧号）；
// 纯时间章节不需要 rate，可传零值。
func Load(path string, rate domain.Rate) ([]domain.ChapterEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	head := strings.TrimLeft(string(data), " \t\r\n\uFEFF")
	if strings.HasPrefix(head, "<") {
		return ParseXML(data, path)
	}
	return ParseOGM(data, rate, path)
}

var (
	ogmTimeRE = regexp.MustCompile(`^CHAPTER(\d+)=(\d+):(\d{2}):(\d{2})[.,](\d{1,9})$`)
	ogmFrmRE  = regexp.MustCompile(`^CHAPTER(\d+)=(\d+)$`)
	ogmNameRE = regexp.MustCompile(`^CHAPTER(\d+)NAME=(.*)$`)
)

// ParseOGM 解析 OGM 简单章节文本：
//
//	CHAPTER01=00:00:00.000
//	CHAPTER01NAME=Intro
//
// 扩展：时间位置允许写纯数字帧号（需要有效 rate）。
// NAME 行允许先于时间行出现；缺 NAME 的章节名为空。
func ParseOGM(data []byte, rate domain.Rate, path string) ([]domain.ChapterEntry, error) {
	starts := map[string]domain.Timecode{}
	names := map[string]string{}
	var order []string

	for i, raw := range strings.Split(string(data), "\n") {
		line := strings.TrimSpace(strings.TrimPrefix(raw, "\uFEFF"))
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		switch {
		case ogmTimeRE.MatchString(line):
			m := ogmTimeRE.FindStringSubmatch(line)
			tc, err := parseClock(m[2], m[3], m[4], m[5])
			if err != nil {
				return nil, &ParseError{Path: path, Line: i + 1, Msg: err.Error()}
			}
			if _, ok := starts[m[1]]; !ok {
				order = append(order, m[1])
			}
			starts[m[1]] = tc
		case ogmFrmRE.MatchString(line):
			m := ogmFrmRE.FindStringSubmatch(line)
			if !rate.Valid() {
				return nil, &ParseError{Path: path, Line: i + 1, Msg: "帧号章节需要帧率"}
			}
			frame, _ := strconv.ParseInt(m[2], 10, 64)
			tc, err := domain.TimecodeFromFrame(frame, rate)
			if err != nil {
				return nil, &ParseError{Path: path, Line: i + 1, Msg: err.Error()}
			}
			if _, ok := starts[m[1]]; !ok {
				order = append(order, m[1])
			}
			starts[m[1]] = tc
		case ogmNameRE.MatchString(line):
			m := ogmNameRE.FindStringSubmatch(line)
			names[m[1]] = strings.TrimSpace(m[2])
		default:
			return nil, &ParseError{Path: path, Line: i + 1, Msg: "无法识别的行"}
		}
	}
	if len(order) == 0 {
		return nil, &ParseError{Path: path, Msg: "没有任何章节"}
	}

	out := make([]domain.ChapterEntry, 0, len(order))
	for _, k := range order {
		out = append(out, domain.ChapterEntry{Start: starts[k], Name: names[k]})
	}
	sortEntries(out)
	return out, nil
}

// matroska 章节 XML 的最小子集（读写共用同一组结构体）。
type xmlChapters struct {
	XMLName  xml.Name     `xml:"Chapters"`
	Editions []xmlEdition `xml:"EditionEntry"`
}

type xmlEdition struct {
	Atoms []xmlAtom `xml:"ChapterAtom"`
}

type xmlAtom struct {
	TimeStart string       `xml:"ChapterTimeStart"`
	Displays  []xmlDisplay `xml:"ChapterDisplay"`
}

type xmlDisplay struct {
	String   string `xml:"ChapterString"`
	Language string `xml:"ChapterLanguage,omitempty"`
}

// ParseXML 解析 matroska 章节 XML（只取第一版 edition，嵌套 atom 不支持）。
func ParseXML(data []byte, path string) ([]domain.ChapterEntry, error) {
	var doc xmlChapters
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, &ParseError{Path: path, Msg: err.Error()}
	}
	if len(doc.Editions) == 0 || len(doc.Editions[0].Atoms) == 0 {
		return nil, &ParseError{Path: path, Msg: "没有任何章节"}
	}

	out := make([]domain.ChapterEntry, 0, len(doc.Editions[0].Atoms))
	for _, a := range doc.Editions[0].Atoms {
		tc, err := parseTimestamp(a.TimeStart)
		if err != nil {
			return nil, &ParseError{Path: path, Msg: fmt.Sprintf("时间戳 %q: %v", a.TimeStart, err)}
		}
		name := ""
		if len(a.Displays) > 0 {
			name = strings.TrimSpace(a.Displays[0].String)
		}
		out = append(out, domain.ChapterEntry{Start: tc, Name: name})
	}
	sortEntries(out)
	return out, nil
}

// FromFrames 把帧号列表换算成章节（names 允许比 frames 短）。
func FromFrames(frames []int64, names []string, rate domain.Rate) ([]domain.ChapterEntry, error) {
	out := make([]domain.ChapterEntry, 0, len(frames))
	for i, f := range frames {
		tc, err := domain.TimecodeFromFrame(f, rate)
		if err != nil {
			return nil, err
		}
		e := domain.ChapterEntry{Start: tc}
		if i < len(names) {
			e.Name = names[i]
		}
		out = append(out, e)
	}
	sortEntries(out)
	return out, nil
}

// Shift 把章节重定位到 trim 后的输出时间轴。
//
// 每个保留段 [s,e) 在输出中占据 [off, off+len)，段内章节
// 平移为 t-s+off；落在所有保留段之外的章节被丢弃。
// keep 为空表示整轨保留，原样返回。
func Shift(entries []domain.ChapterEntry, keep []domain.Segment) ([]domain.ChapterEntry, error) {
	if len(keep) == 0 {
		return entries, nil
	}

	var out []domain.ChapterEntry
	offset := domain.Timecode{}
	for _, seg := range keep {
		for _, c := range entries {
			t := c.Start.Abs() // 丢掉帧率标签，对齐绝对时间比较
			if t.Cmp(seg.Start.Abs()) < 0 || t.Cmp(seg.End.Abs()) >= 0 {
				continue
			}
			d, err := t.Sub(seg.Start.Abs())
			if err != nil {
				return nil, err
			}
			nt, err := d.Add(offset)
			if err != nil {
				return nil, err
			}
			out = append(out, domain.ChapterEntry{Start: nt, Name: c.Name})
		}
		d, err := seg.End.Abs().Sub(seg.Start.Abs())
		if err != nil {
			return nil, err
		}
		offset, err = offset.Add(d)
		if err != nil {
			return nil, err
		}
	}
	sortEntries(out)
	return out, nil
}

// EncodeXML 把章节序列化成 matroska XML，时间戳固定九位纳秒。
func EncodeXML(entries []domain.ChapterEntry, lang string) ([]byte, error) {
	if lang == "" {
		lang = "und"
	}
	atoms := make([]xmlAtom, 0, len(entries))
	for i, c := range entries {
		name := c.Name
		if name == "" {
			name = fmt.Sprintf("Chapter %02d", i+1)
		}
		atoms = append(atoms, xmlAtom{
			TimeStart: c.Start.String(),
			Displays:  []xmlDisplay{{String: name, Language: lang}},
		})
	}

	doc := xmlChapters{Editions: []xmlEdition{{Atoms: atoms}}}
	b, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	// 约定：带 standalone 头与 DOCTYPE，mkvmerge 与常见工具都认。
	const header = `<?xml version="1.0" encoding="UTF-8" standalone="yes" ?>` + "\n" +
		`<!DOCTYPE Chapters SYSTEM "matroskachapters.dtd">` + "\n"
	return append([]byte(header), append(b, '\n')...), nil
}

// parseClock 解析 H:MM:SS 加小数秒（1..9 位，补齐到纳秒）。
func parseClock(h, m, s, frac string) (domain.Timecode, error) {
	hh, _ := strconv.ParseInt(h, 10, 64)
	mm, _ := strconv.ParseInt(m, 10, 64)
	ss, _ := strconv.ParseInt(s, 10, 64)
	if mm > 59 || ss > 59 {
		return domain.Timecode{}, fmt.Errorf("时间越界 %s:%s:%s", h, m, s)
	}
	ns, _ := strconv.ParseInt(frac+strings.Repeat("0", 9-len(frac)), 10, 64)
	total := ((hh*60+mm)*60+ss)*1_000_000_000 + ns
	return domain.TimecodeFromNanos(total), nil
}

var tsRE = regexp.MustCompile(`^(\d+):(\d{2}):(\d{2})(?:[.,](\d{1,9}))?$`)

func parseTimestamp(s string) (domain.Timecode, error) {
	m := tsRE.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return domain.Timecode{}, fmt.Errorf("不是 HH:MM:SS.n 形式")
	}
	frac := m[4]
	if frac == "" {
		frac = "0"
	}
	return parseClock(m[1], m[2], m[3], frac)
}

func sortEntries(entries []domain.ChapterEntry) {
	for i := 1; i < len(entries); i++ {
		for j := i; j > 0 && entries[j].Start.Cmp(entries[j-1].Start) < 0; j-- {
			entries[j], entries[j-1] = entries[j-1], entries[j]
		}
	}
}
