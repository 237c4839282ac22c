package tui

import (
	"testing"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/j-94/waggle-dance/internal/packet"
)

// TestDefaultThemeColors verifies that DefaultTheme returns the honey amber palette.
func TestDefaultThemeColors(t *testing.T) {
	theme := DefaultTheme()
	require.NotNil(t, theme, "DefaultTheme should return a non-nil theme")

	tests := []struct {
		name     string
		got      lipgloss.Color
		expected lipgloss.Color
	}{
		{
			name:     "Primary color should be bright amber",
			got:      theme.Primary,
			expected: lipgloss.Color("#FFD966"),
		},
		{
			name:     "Accent color should be normal amber",
			got:      theme.Accent,
			expected: lipgloss.Color("#FFB000"),
		},
		{
			name:     "Muted color should be dim amber",
			got:      theme.Muted,
			expected: lipgloss.Color("#805800"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.got)
		})
	}
}

// TestDefaultThemeChromeStyles verifies that the chrome styles are correctly configured.
func TestDefaultThemeChromeStyles(t *testing.T) {
	theme := DefaultTheme()
	require.NotNil(t, theme, "DefaultTheme should return a non-nil theme")

	t.Run("TitleStyle has primary color and bold", func(t *testing.T) {
		assert.Equal(t, theme.Primary, theme.TitleStyle.GetForeground())
		assert.True(t, theme.TitleStyle.GetBold(), "TitleStyle should be bold")
	})

	t.Run("GoalStyle has accent color", func(t *testing.T) {
		assert.Equal(t, theme.Accent, theme.GoalStyle.GetForeground())
	})

	t.Run("PanelStyle has muted border", func(t *testing.T) {
		borderColor := theme.PanelStyle.GetBorderTopForeground()
		assert.Equal(t, theme.Muted, borderColor)
	})

	t.Run("HelpStyle has muted color and italic", func(t *testing.T) {
		assert.Equal(t, theme.Muted, theme.HelpStyle.GetForeground())
		assert.True(t, theme.HelpStyle.GetItalic(), "HelpStyle should be italic")
	})
}

// TestStatusStyle verifies that StatusStyle returns the correct style per task status.
func TestStatusStyle(t *testing.T) {
	theme := DefaultTheme()
	require.NotNil(t, theme, "DefaultTheme should return a non-nil theme")

	tests := []struct {
		name           string
		status         packet.Status
		checkBg        bool
		expectedBg     lipgloss.Color
		checkFg        bool
		expectedFg     lipgloss.Color
		checkBold      bool
		expectedBold   bool
		checkItalic    bool
		expectedItalic bool
	}{
		{
			name:         "working should have bright amber, bold",
			status:       packet.StatusWorking,
			checkFg:      true,
			expectedFg:   lipgloss.Color("#FFD966"),
			checkBold:    true,
			expectedBold: true,
		},
		{
			name:           "wait should have normal amber, italic",
			status:         packet.StatusWait,
			checkFg:        true,
			expectedFg:     lipgloss.Color("#FFB000"),
			checkItalic:    true,
			expectedItalic: true,
		},
		{
			name:       "done should have normal amber",
			status:     packet.StatusDone,
			checkFg:    true,
			expectedFg: lipgloss.Color("#FFB000"),
		},
		{
			name:         "error should have inverse (background)",
			status:       packet.StatusError,
			checkBg:      true,
			expectedBg:   lipgloss.Color("#FFD966"),
			checkFg:      true,
			expectedFg:   lipgloss.Color("#000000"),
			checkBold:    true,
			expectedBold: true,
		},
		{
			name:       "idle should have dim amber",
			status:     packet.StatusIdle,
			checkFg:    true,
			expectedFg: lipgloss.Color("#805800"),
		},
		{
			name:       "unknown status should fall back to idle style",
			status:     packet.Status("rebooting"),
			checkFg:    true,
			expectedFg: lipgloss.Color("#805800"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			style := theme.StatusStyle(tt.status)

			if tt.checkBg {
				assert.Equal(t, tt.expectedBg, style.GetBackground(), "Background color should match")
			}

			if tt.checkFg {
				assert.Equal(t, tt.expectedFg, style.GetForeground(), "Foreground color should match")
			}

			if tt.checkBold {
				assert.Equal(t, tt.expectedBold, style.GetBold(), "Style bold setting should match")
			}

			if tt.checkItalic {
				assert.Equal(t, tt.expectedItalic, style.GetItalic(), "Style italic setting should match")
			}
		})
	}
}

// TestStatusStyleRendering verifies that status styles can be applied to text.
func TestStatusStyleRendering(t *testing.T) {
	theme := DefaultTheme()

	statuses := []packet.Status{
		packet.StatusIdle,
		packet.StatusWorking,
		packet.StatusWait,
		packet.StatusDone,
		packet.StatusError,
	}
	for _, status := range statuses {
		t.Run(string(status), func(t *testing.T) {
			rendered := theme.StatusStyle(status).Render(string(status))
			assert.NotEmpty(t, rendered, "Rendered text should not be empty")
		})
	}
}

func TestFirstLine(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "single line passes through",
			input:    "summary of the findings",
			expected: "summary of the findings",
		},
		{
			name:     "multi-line keeps only the first",
			input:    "first line\nsecond line\nthird line",
			expected: "first line",
		},
		{
			name:     "surrounding whitespace is trimmed",
			input:    "  padded  \nrest",
			expected: "padded",
		},
		{
			name:     "carriage return is trimmed",
			input:    "windows text\r\nmore",
			expected: "windows text",
		},
		{
			name:     "empty string stays empty",
			input:    "",
			expected: "",
		},
		{
			name:     "leading newline yields empty",
			input:    "\nbody",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FirstLine(tt.input))
		})
	}
}

func TestEllipsize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		width    int
		expected string
	}{
		{
			name:     "shorter than width is unchanged",
			input:    "short",
			width:    10,
			expected: "short",
		},
		{
			name:     "exact width is unchanged",
			input:    "exact",
			width:    5,
			expected: "exact",
		},
		{
			name:     "longer is cut with ellipsis",
			input:    "a rather long description",
			width:    10,
			expected: "a rathe...",
		},
		{
			name:     "width of three returns bare ellipsis",
			input:    "anything",
			width:    3,
			expected: "...",
		},
		{
			name:     "width of zero returns bare ellipsis",
			input:    "anything",
			width:    0,
			expected: "...",
		},
		{
			name:     "empty string is unchanged",
			input:    "",
			width:    0,
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Ellipsize(tt.input, tt.width)
			assert.Equal(t, tt.expected, got)
			if tt.width > 0 {
				assert.LessOrEqual(t, utf8.RuneCountInString(got), tt.width,
					"result should fit the width")
			}
		})
	}
}

// TestEllipsizeMultibyte verifies the cut happens on rune boundaries.
func TestEllipsizeMultibyte(t *testing.T) {
	got := Ellipsize("日本語のテキストです", 5)

	assert.Equal(t, "日本...", got)
	assert.True(t, utf8.ValidString(got), "cut must not split a rune")
	assert.Equal(t, 5, utf8.RuneCountInString(got))
}
