package domain

// FontFile 描述一次扫描得到的字体文件（只做 stat，不读内容）。
//
// 不变量（实现必须遵守）：
// - AbsPath 必须是 clean + absolute
// - 扫描阶段只做 stat；名字归一化只看文件名，不解析字体内部 name 表
type FontFile struct {
	AbsPath string
	Base    string // filename without ext
	Ext     string // ".ttf" / ".otf" / ".ttc"
	Size    int64
	ModUnix int64
}

// MIME 返回该字体文件作为附件时的 mimetype。
func (f FontFile) MIME() string {
	switch f.Ext {
	case ".ttf", ".ttc":
		return "font/ttf"
	case ".otf":
		return "font/otf"
	default:
		return "application/octet-stream"
	}
}
