package domain

import (
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
)

// Rate 是精确的帧率描述（分子/分母），例如 NTSC 衍生的 24000/1001。
//
// 约束：帧率参与的一切换算必须走精确有理数运算；禁止 float（累计漂移
// 在整集时间轴上会放大到可感知的程度）。
type Rate struct {
	Num int64
	Den int64
}

// 常见帧率。fansub 源经常混用 NTSC 衍生帧率与整数帧率。
var (
	RateNTSCFilm = Rate{Num: 24000, Den: 1001} // ~23.976
	RateNTSC     = Rate{Num: 30000, Den: 1001} // ~29.97
	RateFilm     = Rate{Num: 24, Den: 1}
	RatePAL      = Rate{Num: 25, Den: 1}
)

// IsZero 表示“未指定帧率”（字幕轨、纯绝对时间场合）。
func (r Rate) IsZero() bool { return r.Num == 0 && r.Den == 0 }

// Valid 校验帧率是否可用于换算。
func (r Rate) Valid() bool { return r.Num > 0 && r.Den > 0 }

func (r Rate) String() string {
	if r.IsZero() {
		return ""
	}
	return fmt.Sprintf("%d/%d", r.Num, r.Den)
}

// ParseRate 解析 "24000/1001" 或 "25" 形式的帧率字符串。
func ParseRate(s string) (Rate, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Rate{}, errors.New("帧率不能为空")
	}
	num, den := s, "1"
	if i := strings.IndexByte(s, '/'); i >= 0 {
		num, den = s[:i], s[i+1:]
	}
	n, err := strconv.ParseInt(strings.TrimSpace(num), 10, 64)
	if err != nil {
		return Rate{}, fmt.Errorf("帧率分子无效：%q", s)
	}
	d, err := strconv.ParseInt(strings.TrimSpace(den), 10, 64)
	if err != nil {
		return Rate{}, fmt.Errorf("帧率分母无效：%q", s)
	}
	out := Rate{Num: n, Den: d}
	if !out.Valid() {
		return Rate{}, fmt.Errorf("帧率必须为正：%q", s)
	}
	return out, nil
}

// FrameDuration 返回单帧时长（绝对时间）。
func (r Rate) FrameDuration() Timecode {
	if !r.Valid() {
		return Timecode{}
	}
	tc, _ := fromRat(new(big.Rat).SetFrac64(r.Den, r.Num), Rate{})
	return tc
}

// IncompatibleRateError 表示两个“帧号派生”的 Timecode 携带不同帧率却直接做算术。
// 该错误永远不允许被静默强转：调用方要么先 Abs() 进入绝对时间，要么显式换算。
type IncompatibleRateError struct {
	A Rate
	B Rate
}

func (e *IncompatibleRateError) Error() string {
	return fmt.Sprintf("帧率不兼容：%s 与 %s（请先转换到绝对时间或统一帧率）", e.A, e.B)
}

// IsIncompatibleRate 判断 err 是否为帧率不兼容错误。
func IsIncompatibleRate(err error) bool {
	var e *IncompatibleRateError
	return errors.As(err, &e)
}

// ErrTimecodeRange 表示有理数运算结果超出 int64 可表示范围。
// 正常输入（整集时长 + 常见帧率/毫秒分母）不会触发；触发即视为输入异常。
var ErrTimecodeRange = errors.New("timecode 数值超出可表示范围")

// Timecode 用精确有理数（秒 = num/den）表示一个时间点。
//
// 不变量：
// - den > 0 且 num/den 已约分（零值整体视为 0 秒）
// - 由帧号换算而来的值携带其帧率（rate 非零）；绝对时间值 rate 为零值
// - 所有中间运算保持精确；只有最终输出（毫秒/字符串）才允许舍入
type Timecode struct {
	num  int64
	den  int64
	rate Rate
}

// TimecodeFromFrame 把帧号按帧率换算成 Timecode（携带该帧率）。
func TimecodeFromFrame(frame int64, r Rate) (Timecode, error) {
	if !r.Valid() {
		return Timecode{}, fmt.Errorf("帧率无效：%s", r)
	}
	x := new(big.Rat).SetFrac64(frame, 1)
	x.Mul(x, new(big.Rat).SetFrac64(r.Den, r.Num))
	return fromRat(x, r)
}

// TimecodeFromMilli 把毫秒数换算成绝对时间 Timecode。
func TimecodeFromMilli(ms int64) Timecode {
	tc, _ := fromRat(new(big.Rat).SetFrac64(ms, 1000), Rate{})
	return tc
}

// TimecodeFromNanos 把纳秒数换算成绝对时间 Timecode。
func TimecodeFromNanos(ns int64) Timecode {
	tc, _ := fromRat(new(big.Rat).SetFrac64(ns, 1_000_000_000), Rate{})
	return tc
}

// Rate 返回该值携带的帧率（绝对时间返回零值）。
func (t Timecode) Rate() Rate { return t.rate }

// IsZero 判断是否为 0 秒。
func (t Timecode) IsZero() bool { return t.num == 0 }

// Abs 丢弃帧率标记，得到等值的绝对时间表示。
func (t Timecode) Abs() Timecode {
	t.rate = Rate{}
	return t
}

// Add 做精确加法。
// 两个操作数都携带帧率且帧率不同时返回 IncompatibleRateError；
// 其中一方为绝对时间时在绝对时间空间完成，结果为绝对时间。
func (t Timecode) Add(o Timecode) (Timecode, error) {
	rate, err := combineRate(t.rate, o.rate)
	if err != nil {
		return Timecode{}, err
	}
	x := t.rat()
	x.Add(x, o.rat())
	return fromRat(x, rate)
}

// Sub 做精确减法，帧率规则与 Add 相同。
func (t Timecode) Sub(o Timecode) (Timecode, error) {
	rate, err := combineRate(t.rate, o.rate)
	if err != nil {
		return Timecode{}, err
	}
	x := t.rat()
	x.Sub(x, o.rat())
	return fromRat(x, rate)
}

// Cmp 比较两个时间点（全序）。比较的是时刻本身，与帧率标记无关。
func (t Timecode) Cmp(o Timecode) int {
	return t.rat().Cmp(o.rat())
}

// Frames 把时间点换算为 r 下的最近帧号（四舍五入；与 mkv 的取整习惯一致）。
func (t Timecode) Frames(r Rate) (int64, error) {
	if !r.Valid() {
		return 0, fmt.Errorf("帧率无效：%s", r)
	}
	x := t.rat()
	x.Mul(x, new(big.Rat).SetFrac64(r.Num, r.Den))
	return roundRat(x)
}

// Milli 输出四舍五入后的毫秒数（容器 delay 用；这是允许舍入的最终出口之一）。
func (t Timecode) Milli() int64 {
	x := t.rat()
	x.Mul(x, new(big.Rat).SetFrac64(1000, 1))
	n, _ := roundRat(x)
	return n
}

// Nanos 输出四舍五入后的纳秒数。
func (t Timecode) Nanos() int64 {
	x := t.rat()
	x.Mul(x, new(big.Rat).SetFrac64(1_000_000_000, 1))
	n, _ := roundRat(x)
	return n
}

// String 输出 HH:MM:SS.nnnnnnnnn（矩阵卡章节时间戳格式，9 位纳秒）。
// 负值仅用于调试输出，前置 '-'。
func (t Timecode) String() string {
	ns := t.Nanos()
	sign := ""
	if ns < 0 {
		sign = "-"
		ns = -ns
	}
	sec := ns / 1_000_000_000
	frac := ns % 1_000_000_000
	h := sec / 3600
	m := (sec % 3600) / 60
	s := sec % 60
	return fmt.Sprintf("%s%02d:%02d:%02d.%09d", sign, h, m, s, frac)
}

func (t Timecode) rat() *big.Rat {
	den := t.den
	if den == 0 {
		den = 1
	}
	return new(big.Rat).SetFrac64(t.num, den)
}

func combineRate(a, b Rate) (Rate, error) {
	switch {
	case a.IsZero():
		return Rate{}, nil
	case b.IsZero():
		return Rate{}, nil
	case a == b:
		return a, nil
	default:
		return Rate{}, &IncompatibleRateError{A: a, B: b}
	}
}

func fromRat(x *big.Rat, rate Rate) (Timecode, error) {
	n := x.Num()
	d := x.Denom()
	if !n.IsInt64() || !d.IsInt64() {
		return Timecode{}, ErrTimecodeRange
	}
	return Timecode{num: n.Int64(), den: d.Int64(), rate: rate}, nil
}

// roundRat 四舍五入（远离零）到整数。
func roundRat(x *big.Rat) (int64, error) {
	num := new(big.Int).Abs(x.Num())
	den := x.Denom()
	q, r := new(big.Int).QuoRem(num, den, new(big.Int))
	r.Mul(r, big.NewInt(2))
	if r.Cmp(den) >= 0 {
		q.Add(q, big.NewInt(1))
	}
	if x.Sign() < 0 {
		q.Neg(q)
	}
	if !q.IsInt64() {
		return 0, ErrTimecodeRange
	}
	return q.Int64(), nil
}

// Segment 是一个左闭右开的时间区间 [Start, End)。不变量：Start < End。
type Segment struct {
	Start Timecode
	End   Timecode
}

// Valid 校验区间长度为正。
func (s Segment) Valid() bool { return s.Start.Cmp(s.End) < 0 }

// Duration 返回区间时长（绝对时间；区间端点的帧率标记不参与）。
func (s Segment) Duration() Timecode {
	d, _ := s.End.Abs().Sub(s.Start.Abs())
	return d
}
