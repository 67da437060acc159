package settings

import (
	"fmt"

	"github.com/unalkalkan/ShelfReader/pkg/types"
)

// StyleID is the id of the style element the stylesheet replaces on each page
const StyleID = "reader-custom-styles"

// DefaultFontStack is used when the font family is "default"
const DefaultFontStack = `-apple-system, BlinkMacSystemFont, "Segoe UI", "Microsoft YaHei", "微软雅黑", "PingFang SC", "Hiragino Sans GB", "Heiti SC", "WenQuanYi Micro Hei", sans-serif`

// TargetKind says which part of the view a stylesheet is for
type TargetKind int

const (
	// TargetView styles every page currently on screen
	TargetView TargetKind = iota
	// TargetFrame styles a single page of the view
	TargetFrame
)

// StyleTarget is resolved by the caller before the stylesheet is built
type StyleTarget struct {
	Kind  TargetKind
	Frame int // page index within the view, TargetFrame only
}

// View targets the whole visible view
func View() StyleTarget { return StyleTarget{Kind: TargetView} }

// Frame targets one page of the view
func Frame(i int) StyleTarget { return StyleTarget{Kind: TargetFrame, Frame: i} }

// Covers reports whether the target includes the page at index i of the view
func (t StyleTarget) Covers(i int) bool {
	return t.Kind == TargetView || t.Frame == i
}

// Palette is a background and text color pair
type Palette struct {
	Background string `json:"background"`
	Text       string `json:"text"`
}

var palettes = map[string]Palette{
	types.ThemeLight: {Background: "#ffffff", Text: "#333333"},
	types.ThemeSepia: {Background: "#f4ecd8", Text: "#5c4b37"},
	types.ThemeDark:  {Background: "#2d2d2d", Text: "#e0e0e0"},
	types.ThemeGreen: {Background: "#e8f5e9", Text: "#2e7d32"},
}

// PaletteFor returns the theme colors; unknown and custom themes use the custom colors
func PaletteFor(s types.Settings) Palette {
	if p, ok := palettes[s.Theme]; ok {
		return p
	}
	return Palette{Background: s.CustomBgColor, Text: s.CustomTextColor}
}

// Stylesheet is the CSS injected into rendered pages plus the viewer filter
type Stylesheet struct {
	ID     string      `json:"id"`
	Target StyleTarget `json:"-"`
	CSS    string      `json:"css"`
	Filter string      `json:"filter"`
}

// Build renders the stylesheet for the target
func Build(s types.Settings, target StyleTarget) Stylesheet {
	family := s.FontFamily
	if family == "" || family == "default" {
		family = DefaultFontStack
	}
	p := PaletteFor(s)

	css := fmt.Sprintf(`* { box-sizing: border-box !important; }
html { margin: 0 !important; padding: 0 !important; }
body {
  font-size: %dpx !important;
  font-family: %s !important;
  line-height: %g !important;
  color: %s !important;
  background-color: %s !important;
  margin: 0 !important;
  padding: %dpx !important;
}
p { margin-bottom: 1em !important; }
img { max-width: 100%% !important; height: auto !important; display: block !important; margin: 0 auto !important; }
`, s.FontSize, family, s.LineHeight, p.Text, p.Background, s.Padding)

	return Stylesheet{
		ID:     StyleID,
		Target: target,
		CSS:    css,
		Filter: fmt.Sprintf("brightness(%d%%)", s.Brightness),
	}
}
