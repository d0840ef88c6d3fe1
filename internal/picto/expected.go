package picto

import "strings"

// expectedTags maps a semantic category to the tags a symbol must carry
// (in its tags or categories) to be accepted for it.
var expectedTags = map[string][]string{
	"color":   {"color", "colour"},
	"weather": {"weather", "meteorology", "rain", "sun", "cloud", "wind", "snow", "storm"},
	"drink":   {"drink", "beverage"},
	"food":    {"food", "feeding", "fruit", "vegetable", "dessert", "bread"},
	"place":   {"place", "building", "house", "home", "school", "transport", "city"},
}

// MatchesExpectedType reports whether a symbol with these tags and
// categories fits expectedType. Empty or unknown types accept everything.
func MatchesExpectedType(expectedType string, tags, categories []string) bool {
	required, ok := expectedTags[strings.ToLower(strings.TrimSpace(expectedType))]
	if !ok {
		return true
	}

	have := make(map[string]bool, len(tags)+len(categories))
	for _, t := range tags {
		have[strings.ToLower(t)] = true
	}
	for _, c := range categories {
		have[strings.ToLower(c)] = true
	}

	for _, r := range required {
		if have[r] {
			return true
		}
	}
	return false
}
