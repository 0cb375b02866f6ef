package pipeline

import (
	"regexp"
	"sort"
	"strings"

	"fintel/internal/core"
)

var (
	urlPattern      = regexp.MustCompile(`https?://\S+`)
	mentionPattern  = regexp.MustCompile(`@\w+`)
	hashPattern     = regexp.MustCompile(`#(\w+)`)
	spacePattern    = regexp.MustCompile(`\s+`)
	nonTextPattern  = regexp.MustCompile("[^\\w\\s.,!?'%-]")
	englishMarkers  = []string{" the ", " is ", " are ", " and ", " for ", " to ", " of ", " in ", " my ", " we "}
	topicTermTables = map[string][]string{
		"fees":        {"fee", "fees", "charge", "charges", "rates", "expensive", "cost"},
		"coverage":    {"coverage", "network", "signal", "upcountry"},
		"regulation":  {"regulation", "regulations", "bank of uganda", "bou", "license", "compliance", "directive"},
		"reliability": {"failed", "failure", "outage", "downtime", "delays", "support", "float"},
		"lending":     {"loan", "loans", "credit", "lending", "borrow"},
		"savings":     {"savings", "sacco", "deposit", "deposits"},
		"remittances": {"remittance", "remittances", "diaspora", "western union"},
		"adoption":    {"switched", "convenience", "record", "growth", "volumes", "changing"},
	}
)

// cleanText normalizes a raw post: URLs and @mentions removed, hashtags
// unwrapped to their word, stray symbols dropped, whitespace collapsed.
func cleanText(text string) string {
	out := urlPattern.ReplaceAllString(text, " ")
	out = mentionPattern.ReplaceAllString(out, " ")
	out = hashPattern.ReplaceAllString(out, "$1")
	out = nonTextPattern.ReplaceAllString(out, " ")
	out = spacePattern.ReplaceAllString(out, " ")
	return strings.TrimSpace(out)
}

// likelyEnglish is a crude function-word check, enough to drop the
// occasional non-English post from a feed that is overwhelmingly
// English. Short texts pass by default.
func likelyEnglish(text string) bool {
	lower := " " + strings.ToLower(text) + " "
	if len(strings.Fields(text)) < 5 {
		return true
	}
	for _, marker := range englishMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// extractTopics tags a post with every topic whose term table matches.
func extractTopics(text string) []string {
	lower := strings.ToLower(text)
	var topics []string
	for topic, terms := range topicTermTables {
		for _, term := range terms {
			if strings.Contains(lower, term) {
				topics = append(topics, topic)
				break
			}
		}
	}
	sort.Strings(topics)
	return topics
}

var (
	positiveTerms = []string{
		"good", "great", "better", "best", "love", "excellent", "convenient",
		"convenience", "cheap", "cheaper", "fast", "growth", "record", "saved",
		"happy", "win", "improved", "finally",
	}
	negativeTerms = []string{
		"too high", "bad", "terrible", "worse", "worst", "lost", "failed",
		"failure", "fraud", "scam", "expensive", "shortage", "shortages",
		"gamble", "never responds", "complaint", "problem", "broken",
	}
)

// lexiconSentiment is the deterministic sentiment pass applied during
// preprocessing. Stages that need finer judgment refine it with the
// model; this keeps every document labeled even in degraded runs.
func lexiconSentiment(text string) (core.Sentiment, float64) {
	lower := strings.ToLower(text)
	var pos, neg int
	for _, term := range positiveTerms {
		if strings.Contains(lower, term) {
			pos++
		}
	}
	for _, term := range negativeTerms {
		if strings.Contains(lower, term) {
			neg++
		}
	}
	switch {
	case pos > neg:
		return core.SentimentPositive, 0.5 + 0.5*float64(pos-neg)/float64(pos+neg)
	case neg > pos:
		return core.SentimentNegative, 0.5 - 0.5*float64(neg-pos)/float64(pos+neg)
	default:
		return core.SentimentNeutral, 0.5
	}
}
