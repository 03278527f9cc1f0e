package attendance

import "fmt"

// FormatHM renders minutes as H:MM, e.g. 510 -> "8:30", -45 -> "-0:45".
func FormatHM(minutes int) string {
	sign := ""
	if minutes < 0 {
		sign = "-"
		minutes = -minutes
	}
	return fmt.Sprintf("%s%d:%02d", sign, minutes/60, minutes%60)
}
