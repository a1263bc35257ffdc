package scorer

import (
	"regexp"
	"strconv"
	"strings"
)

// DefaultReviewScore stands in for any review the model did not score.
const DefaultReviewScore = 1.0

// maxReviewsPerPrompt caps the reviews embedded in one scoring prompt.
// Reviews past the cap keep the default score.
const maxReviewsPerPrompt = 10

var numberPattern = regexp.MustCompile(`\d+(?:\.\d+)?`)

// ParseScores extracts per-review scores from a model reply. The reply is
// split on semicolons; each segment contributes its first in-range number.
// Segments with no usable number are skipped, then the result is padded
// with the default score or truncated to exactly want entries.
func ParseScores(raw string, want int) []float64 {
	if want <= 0 {
		return nil
	}

	scores := make([]float64, 0, want)
	for _, segment := range strings.Split(raw, ";") {
		if len(scores) == want {
			break
		}
		if v, ok := parseSegment(segment); ok {
			scores = append(scores, v)
		}
	}
	for len(scores) < want {
		scores = append(scores, DefaultReviewScore)
	}
	return scores
}

func parseSegment(segment string) (float64, bool) {
	for _, token := range numberPattern.FindAllString(segment, -1) {
		v, err := strconv.ParseFloat(token, 64)
		if err != nil {
			continue
		}
		if v >= 0.0 && v <= 10.0 {
			return v, true
		}
	}
	return 0, false
}
