package widgets

import (
	"fmt"
	"image"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/joe/savegames/internal/savegame"
	"github.com/joe/savegames/internal/tui/shared"
)

// upperHalfBlock draws the top pixel in the foreground and the bottom pixel in
// the background, so each terminal row shows two rows of the image.
const upperHalfBlock = "▀"

// NewThumbnailWidget creates a widget that draws a save's screenshot with
// half-block characters, scaled to width columns.
// Returns an empty string when there is no screenshot.
func NewThumbnailWidget(getScreenshot func() *savegame.Screenshot, width int) func() string {
	return func() string {
		shot := getScreenshot()
		if shot == nil || shot.Width == 0 || shot.Height == 0 {
			return ""
		}

		thumb, err := shot.Thumbnail(min(width, shared.ThumbnailWidth))
		if err != nil {
			return shared.RenderError("screenshot unavailable: " + err.Error())
		}

		return renderHalfBlocks(thumb)
	}
}

func renderHalfBlocks(img *image.RGBA) string {
	bounds := img.Bounds()

	var builder strings.Builder

	for y := bounds.Min.Y; y < bounds.Max.Y; y += 2 {
		if y > bounds.Min.Y {
			builder.WriteString("\n")
		}

		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			style := lipgloss.NewStyle().Foreground(pixelColor(img, x, y))
			if y+1 < bounds.Max.Y {
				style = style.Background(pixelColor(img, x, y+1))
			}

			builder.WriteString(style.Render(upperHalfBlock))
		}
	}

	return builder.String()
}

func pixelColor(img *image.RGBA, x, y int) lipgloss.Color {
	pixel := img.RGBAAt(x, y)

	return lipgloss.Color(fmt.Sprintf("#%02x%02x%02x", pixel.R, pixel.G, pixel.B))
}
