package bot

import (
	"fmt"
	"strings"

	"github.com/mazznoer/colorgrad"
)

const Version = "0.1.0"

// GetBanner returns a colorized ASCII art banner
func GetBanner(version string) string {
	banner := `
  __         _    _               _                 _
 / _|___ _ _| |__(_)_ _  __ _  __| |___ _ _  __ _| |___ ___
|  _/ _ \ '_| / /| | ' \/ _' |/ _' / _ \ ' \/ _' | / -_|_-<
|_| \___/_| |_\_\|_|_||_\__, |\__,_\___/_||_\__, |_\___/__/
                        |___/               |___/
 .  .  .  a  pluggable  irc  bot  [v` + version + `]
`
	grad, _ := colorgrad.NewGradient().
		HtmlColors("#f0a011ff", "#fdfdfdff").
		Build()

	lines := strings.Split(banner, "\n")

	// Find max line length for gradient spread
	maxLen := 0
	for _, line := range lines {
		if n := len([]rune(line)); n > maxLen {
			maxLen = n
		}
	}

	colors := grad.Colors(uint(maxLen))
	var coloredBanner strings.Builder

	for _, line := range lines {
		for i, ch := range []rune(line) {
			r, g, b, _ := colors[i].RGBA255()
			coloredBanner.WriteString(fmt.Sprintf("\x1b[38;2;%d;%d;%dm%c", r, g, b, ch))
		}
		coloredBanner.WriteString("\x1b[0m\n")
	}

	return coloredBanner.String()
}
