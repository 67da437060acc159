package types

// Display modes
const (
	DisplaySingle = "single"
	DisplayDouble = "double"
)

// Themes
const (
	ThemeLight  = "light"
	ThemeSepia  = "sepia"
	ThemeDark   = "dark"
	ThemeGreen  = "green"
	ThemeCustom = "custom"
)

// Settings holds the reader's presentation preferences
type Settings struct {
	FontSize        int     `json:"font_size"`   // px, 12-32
	FontFamily      string  `json:"font_family"` // "default" or a CSS font family
	Theme           string  `json:"theme"`
	LineHeight      float64 `json:"line_height"`
	Padding         int     `json:"padding"`    // px
	Brightness      int     `json:"brightness"` // percent
	CustomBgColor   string  `json:"custom_bg_color"`
	CustomTextColor string  `json:"custom_text_color"`
	DisplayMode     string  `json:"display_mode"` // "single" or "double"
}

// Spread returns the renderer spread mode implied by the display mode
func (s Settings) Spread() string {
	if s.DisplayMode == DisplayDouble {
		return "auto"
	}
	return "none"
}

// DefaultSettings returns the settings a fresh reader starts with
func DefaultSettings() Settings {
	return Settings{
		FontSize:        18,
		FontFamily:      "default",
		Theme:           ThemeLight,
		LineHeight:      1.6,
		Padding:         40,
		Brightness:      100,
		CustomBgColor:   "#ffffff",
		CustomTextColor: "#333333",
		DisplayMode:     DisplaySingle,
	}
}
