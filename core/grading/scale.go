package grading

import (
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Scale maps score percentages to letter grades. Bands are checked from the
// highest threshold down; a percentage below every band gets the fallback.
type Scale struct {
	bands    []band
	fallback string
}

type band struct {
	letter string
	min    float64
}

// ParseScale parses a "A:90,B:80,C:70,D:60" spec plus a fallback letter.
func ParseScale(spec, fallback string) (Scale, error) {
	if strings.TrimSpace(spec) == "" {
		return Scale{}, errors.New("empty grade scale")
	}

	var bands []band
	for _, part := range strings.Split(spec, ",") {
		letter, min, ok := strings.Cut(part, ":")
		if !ok {
			return Scale{}, errors.Errorf("malformed grade band %q", part)
		}
		threshold, err := strconv.ParseFloat(strings.TrimSpace(min), 64)
		if err != nil {
			return Scale{}, errors.Wrapf(err, "parsing grade band %q", part)
		}
		bands = append(bands, band{letter: strings.TrimSpace(letter), min: threshold})
	}
	sort.SliceStable(bands, func(i, j int) bool { return bands[i].min > bands[j].min })

	return Scale{bands: bands, fallback: fallback}, nil
}

// Letter returns the letter grade for a percentage in [0, 100].
func (s Scale) Letter(pct float64) string {
	for _, b := range s.bands {
		if pct >= b.min {
			return b.letter
		}
	}
	return s.fallback
}
