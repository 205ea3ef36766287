package handlers

import (
	"math"
	"strconv"
	"strings"
)

const currencySymbol = "₹"

var magnitudeSuffixes = []string{"", "k", "M", "B", "T"}

// compact abbreviates v by thousands with the given number of decimals and
// trailing zeros dropped: 2297200.86 is "2.3M", 37873 is "37.87k".
func compact(v float64, precision int) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return strconv.FormatFloat(v, 'f', -1, 64)
	}

	idx, scale := 0, 1.0
	for idx < len(magnitudeSuffixes)-1 && math.Abs(v) >= scale*1000 {
		idx++
		scale *= 1000
	}

	scaled := v / scale
	s := strconv.FormatFloat(scaled, 'f', precision, 64)
	if strings.Contains(s, ".") {
		s = strings.TrimRight(strings.TrimRight(s, "0"), ".")
	}
	if s == "-0" {
		s = "0"
	}
	return s + magnitudeSuffixes[idx]
}

func compactMoney(v float64) string {
	return currencySymbol + compact(v, 2)
}

// money formats v with two decimals and thousands separators, as the table
// shows it.
func money(v float64) string {
	neg := v < 0
	s := strconv.FormatFloat(math.Abs(v), 'f', 2, 64)
	whole, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	for i, c := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	b.WriteByte('.')
	b.WriteString(frac)
	return b.String()
}

// deltaClass picks the badge style for a formatted change such as "-3.2%".
func deltaClass(delta string) string {
	switch {
	case delta == "NaN" || delta == "":
		return "delta-flat"
	case strings.HasPrefix(delta, "-"):
		return "delta-down"
	case strings.Trim(delta, "0.%") == "":
		return "delta-flat"
	default:
		return "delta-up"
	}
}
