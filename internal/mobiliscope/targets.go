// Package mobiliscope turns Mobiliscope survey exports into training targets:
// day and night population averages per sector, and the assignment of grid
// cells to sectors.
package mobiliscope

import (
	"context"
	"io"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/rotisserie/eris"

	"github.com/sells-group/popgrid/internal/features"
	"github.com/sells-group/popgrid/internal/loader"
)

// Hour labels of the stacked population exports.
var (
	DayHours   = []string{"10am", "11am", "12pm", "1pm", "2pm", "3pm", "4pm"}
	NightHours = []string{"12am", "1am", "2am", "3am", "4am", "5am", "6am"}
)

// Target is the mean present population of one sector.
type Target struct {
	Sector string
	Day    features.Value
	Night  features.Value
}

// SectorUID builds the national sector key: the cleaned city name and the
// sector code padded to three digits.
func SectorUID(city, code string) string {
	code = strings.TrimSpace(code)
	if f, err := strconv.ParseFloat(code, 64); err == nil && f == float64(int(f)) {
		code = strconv.Itoa(int(f))
	}
	for len(code) < 3 {
		code = "0" + code
	}
	return cleanName(city) + "_" + cleanName(code)
}

// cleanName lower-cases s and collapses every run of non-word characters
// into one underscore.
func cleanName(s string) string {
	var b strings.Builder
	sep := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			b.WriteRune(r)
			sep = false
			continue
		}
		if !sep {
			b.WriteByte('_')
			sep = true
		}
	}
	return b.String()
}

type mean struct {
	sum float64
	n   int
}

func (m mean) value() features.Value {
	if m.n == 0 {
		return features.NoData
	}
	return features.Num(m.sum / float64(m.n))
}

// ReadStacked averages a <city>_pop_choro_stacked.csv export over the day and
// night hours. Targets are returned in sector order.
func ReadStacked(ctx context.Context, r io.Reader, city string) ([]Target, error) {
	day := toSet(DayHours)
	night := toSet(NightHours)
	sums := make(map[string]*[2]mean)

	var hour, district, pop = -1, -1, -1
	first := true
	rowCh, errCh := loader.StreamCSV(ctx, r, loader.CSVOptions{LazyQuotes: true})
	var rowErr error
	line := 0
	for row := range rowCh {
		line++
		if rowErr != nil {
			continue
		}
		if first {
			first = false
			for i, name := range row {
				switch strings.ToLower(strings.Trim(name, "\ufeff \"")) {
				case "hour":
					hour = i
				case "district":
					district = i
				case "pop0":
					pop = i
				}
			}
			if hour < 0 || district < 0 || pop < 0 {
				rowErr = eris.New("mobiliscope: stacked csv needs hour, district and pop0 columns")
			}
			continue
		}
		if max(hour, district, pop) >= len(row) {
			continue
		}
		h := strings.ToLower(row[hour])
		isDay, isNight := day[h], night[h]
		if !isDay && !isNight {
			continue
		}
		v, err := strconv.ParseFloat(row[pop], 64)
		if err != nil {
			// Mobiliscope leaves suppressed cells blank or NA.
			continue
		}
		uid := SectorUID(city, row[district])
		m, ok := sums[uid]
		if !ok {
			m = &[2]mean{}
			sums[uid] = m
		}
		if isDay {
			m[0].sum += v
			m[0].n++
		}
		if isNight {
			m[1].sum += v
			m[1].n++
		}
	}
	if err := <-errCh; err != nil {
		return nil, eris.Wrapf(err, "mobiliscope: read %s", city)
	}
	if rowErr != nil {
		return nil, rowErr
	}

	out := make([]Target, 0, len(sums))
	for uid, m := range sums {
		out = append(out, Target{Sector: uid, Day: m[0].value(), Night: m[1].value()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sector < out[j].Sector })
	return out, nil
}

func toSet(values []string) map[string]bool {
	m := make(map[string]bool, len(values))
	for _, v := range values {
		m[v] = true
	}
	return m
}
