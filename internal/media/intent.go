package media

import "regexp"

// Intent captures what kind of media a query is asking for, derived
// from surface patterns in the raw query text.
type Intent struct {
	Video    bool // user wants videos; skip the image search
	Recency  bool // user wants fresh uploads; order by date
	Shopping bool // user wants products
}

var (
	videoRe   = regexp.MustCompile(`(?i)\b(video|videos|watch|youtube|clip|trailer|lecture)\b`)
	recencyRe = regexp.MustCompile(`(?i)\b(latest|newest|recent|new|today|this week|this month)\b`)
	shopRe    = regexp.MustCompile(`(?i)\b(buy|price|prices|cost|cheapest|cheap|purchase|shop|shopping|deal|deals|discount|affordable)\b`)

	// pronounRe flags queries that lean on conversation context and
	// cannot stand alone as a search.
	pronounRe = regexp.MustCompile(`(?i)\b(it|its|that|this|these|those|they|them|their|he|she|him|her|his|hers)\b`)
)

// DetectIntent classifies a raw user query.
func DetectIntent(query string) Intent {
	return Intent{
		Video:    videoRe.MatchString(query),
		Recency:  recencyRe.MatchString(query),
		Shopping: shopRe.MatchString(query),
	}
}

// regionHint maps currency and locale cues in the query to a search
// localization and a site filter appended to the shopping query.
type regionHint struct {
	re     *regexp.Regexp
	gl     string
	filter string
}

var regionHints = []regionHint{
	{regexp.MustCompile(`(?i)₹|\brupees?\b|\brs\.?\s*\d|\bindia\b`), "in", "site:amazon.in OR site:flipkart.com"},
	{regexp.MustCompile(`(?i)£|\bpounds?\b|\buk\b`), "uk", "site:amazon.co.uk"},
	{regexp.MustCompile(`(?i)€|\beuros?\b`), "de", ""},
}

func detectRegion(query string) (gl, filter string) {
	for _, h := range regionHints {
		if h.re.MatchString(query) {
			return h.gl, h.filter
		}
	}
	return "", ""
}
