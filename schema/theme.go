package schema

// Theme is the desktop color theme mirrored to remote clients.
type Theme struct {
	ID     string            `json:"id" yaml:"id"`
	Name   string            `json:"name" yaml:"name"`
	Mode   string            `json:"mode" yaml:"mode"`
	Colors map[string]string `json:"colors" yaml:"colors"`
}

// DefaultTheme returns the built-in dark theme.
func DefaultTheme() Theme {
	return Theme{
		ID:   "dracula",
		Name: "Dracula",
		Mode: "dark",
		Colors: map[string]string{
			"bgMain":           "#282a36",
			"bgSidebar":        "#21222c",
			"bgActivity":       "#343746",
			"border":           "#44475a",
			"textMain":         "#f8f8f2",
			"textDim":          "#6272a4",
			"accent":           "#bd93f9",
			"accentDim":        "rgba(189, 147, 249, 0.2)",
			"accentText":       "#ff79c6",
			"accentForeground": "#282a36",
			"success":          "#50fa7b",
			"warning":          "#ffb86c",
			"error":            "#ff5555",
		},
	}
}

// Clone returns a deep copy of the theme.
func (t Theme) Clone() Theme {
	out := t
	if t.Colors != nil {
		out.Colors = make(map[string]string, len(t.Colors))
		for k, v := range t.Colors {
			out.Colors[k] = v
		}
	}
	return out
}
