// Package format holds small display formatters shared by the renderer and templates.
package format

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// Percent rounds a progress value half up, matching how labels are shown.
func Percent(v float64) int {
	return int(math.Floor(v + 0.5))
}

// Width is the CSS width declaration for a progress bar at v percent.
func Width(v float64) string {
	return "width:" + strconv.FormatFloat(v, 'f', -1, 64) + "%"
}

// Date formats time in a locale-friendly short form.
func Date(t time.Time, lang string) string {
	switch strings.ToLower(lang) {
	case "id":
		return t.Format("02/01/2006")
	default:
		return t.Format("Jan 2, 2006")
	}
}

// DateTime adds the clock to Date.
func DateTime(t time.Time, lang string) string {
	return Date(t, lang) + " " + t.Format("15:04")
}

// Scale renders a zoom factor such as "1.5x".
func Scale(s float64) string {
	return strconv.FormatFloat(math.Round(s*100)/100, 'f', -1, 64) + "x"
}
