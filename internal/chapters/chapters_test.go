package chapters

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/John-Robertt/FMUX/internal/domain"
)

const ogmSample = `CHAPTER01=00:00:00.000
CHAPTER01NAME=Opening
CHAPTER02=00:01:30.500
CHAPTER02NAME=Part A
CHAPTER03=00:12:00.000
`

// OGM：时间与名字配对，顺序按时间排。
func TestParseOGM(t *testing.T) {
	got, err := ParseOGM([]byte(ogmSample), domain.Rate{}, "test.txt")
	if err != nil {
		t.Fatalf("ParseOGM: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("应有 3 章，得到 %d", len(got))
	}
	if got[0].Name != "Opening" || got[1].Name != "Part A" || got[2].Name != "" {
		t.Fatalf("章节名错误: %+v", got)
	}
	if got[1].Start.Milli() != 90500 {
		t.Fatalf("第二章应在 90500ms，得到 %d", got[1].Start.Milli())
	}
}

// OGM 帧号扩展：纯数字按帧率换算；缺帧率报错。
func TestParseOGMFrames(t *testing.T) {
	src := "CHAPTER01=0\nCHAPTER02=2154\nCHAPTER02NAME=Part B\n"
	got, err := ParseOGM([]byte(src), domain.RatePAL, "frames.txt")
	if err != nil {
		t.Fatalf("ParseOGM: %v", err)
	}
	// 2154 帧 @25fps = 86.16s
	if got[1].Start.Milli() != 86160 {
		t.Fatalf("帧号换算错误: %dms", got[1].Start.Milli())
	}

	if _, err := ParseOGM([]byte(src), domain.Rate{}, "frames.txt"); err == nil {
		t.Fatalf("无帧率的帧号章节应报错")
	}
}

// 无法识别的行 → ParseError 带行号。
func TestParseOGMBadLine(t *testing.T) {
	_, err := ParseOGM([]byte("CHAPTER01=00:00:00.000\ngarbage\n"), domain.Rate{}, "bad.txt")
	pe, ok := err.(*ParseError)
	if !ok {
		t.Fatalf("应返回 *ParseError，得到 %T", err)
	}
	if pe.Line != 2 {
		t.Fatalf("行号应为 2，得到 %d", pe.Line)
	}
}

// XML：解析 → 编码 → 再解析，时间与名字不变。
func TestXMLRoundTrip(t *testing.T) {
	in := []domain.ChapterEntry{
		{Start: domain.TimecodeFromMilli(0), Name: "Intro"},
		{Start: domain.TimecodeFromNanos(83_500_333_333), Name: "本編"},
	}
	b, err := EncodeXML(in, "jpn")
	if err != nil {
		t.Fatalf("EncodeXML: %v", err)
	}
	if !strings.Contains(string(b), "matroskachapters.dtd") {
		t.Fatalf("缺少 DOCTYPE 头")
	}
	if !strings.Contains(string(b), "00:01:23.500333333") {
		t.Fatalf("时间戳应为九位纳秒形式:\n%s", b)
	}

	got, err := ParseXML(b, "roundtrip.xml")
	if err != nil {
		t.Fatalf("ParseXML: %v", err)
	}
	if len(got) != 2 || got[1].Name != "本編" {
		t.Fatalf("往返结果错误: %+v", got)
	}
	if got[1].Start.Cmp(in[1].Start) != 0 {
		t.Fatalf("往返时间不一致: %s vs %s", got[1].Start, in[1].Start)
	}
}

// 空名字编码时补 "Chapter NN"。
func TestEncodeXMLDefaultNames(t *testing.T) {
	b, err := EncodeXML([]domain.ChapterEntry{{Start: domain.TimecodeFromMilli(0)}}, "")
	if err != nil {
		t.Fatalf("EncodeXML: %v", err)
	}
	if !strings.Contains(string(b), "Chapter 01") {
		t.Fatalf("空名字应补默认名:\n%s", b)
	}
	if !strings.Contains(string(b), "<ChapterLanguage>und</ChapterLanguage>") {
		t.Fatalf("空语言应补 und")
	}
}

// Load 按内容分派：'<' 开头走 XML，其余走 OGM。
func TestLoadDispatch(t *testing.T) {
	dir := t.TempDir()

	ogm := filepath.Join(dir, "ch.txt")
	if err := os.WriteFile(ogm, []byte(ogmSample), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := Load(ogm, domain.Rate{})
	if err != nil || len(got) != 3 {
		t.Fatalf("OGM 分派失败: %v %d", err, len(got))
	}

	b, _ := EncodeXML(got, "eng")
	xmlPath := filepath.Join(dir, "ch.xml")
	if err := os.WriteFile(xmlPath, b, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	got2, err := Load(xmlPath, domain.Rate{})
	if err != nil || len(got2) != 3 {
		t.Fatalf("XML 分派失败: %v %d", err, len(got2))
	}
}

// Shift：保留段内的章节平移，段外丢弃，多段累计偏移。
func TestShift(t *testing.T) {
	ms := domain.TimecodeFromMilli
	entries := []domain.ChapterEntry{
		{Start: ms(0), Name: "A"},
		{Start: ms(5_000), Name: "B"},
		{Start: ms(20_000), Name: "C"},
		{Start: ms(45_000), Name: "D"},
	}
	keep := []domain.Segment{
		{Start: ms(0), End: ms(10_000)},
		{Start: ms(40_000), End: ms(60_000)},
	}

	got, err := Shift(entries, keep)
	if err != nil {
		t.Fatalf("Shift: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("C 在段外应被丢弃，剩 %d 章", len(got))
	}
	// D: 45000 − 40000 + 10000(第一段长度) = 15000
	if got[2].Name != "D" || got[2].Start.Milli() != 15000 {
		t.Fatalf("D 平移错误: %s %dms", got[2].Name, got[2].Start.Milli())
	}
	if got[0].Start.Milli() != 0 || got[1].Start.Milli() != 5000 {
		t.Fatalf("第一段内章节不应移动: %+v", got)
	}
}

// keep 为空 → 原样返回。
func TestShiftIdentity(t *testing.T) {
	in := []domain.ChapterEntry{{Start: domain.TimecodeFromMilli(1234), Name: "X"}}
	got, err := Shift(in, nil)
	if err != nil {
		t.Fatalf("Shift: %v", err)
	}
	if len(got) != 1 || got[0].Start.Milli() != 1234 {
		t.Fatalf("空 keep 应为恒等: %+v", got)
	}
}
