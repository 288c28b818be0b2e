package conversation

import (
	"regexp"
	"strings"
)

// Intent is the local classification of a reply to the meeting proposal.
type Intent string

const (
	IntentPositive Intent = "positive"
	IntentNegative Intent = "negative"
	IntentNeither  Intent = "neither"
)

// IntentClassifier decides whether an utterance accepts or declines the
// proposed meeting. Pluggable so the regex version can be swapped for a
// model-based classifier without touching the state machine.
type IntentClassifier interface {
	Classify(text string) Intent
}

// ---------- package-level compiled regexes ----------

// \b is ASCII-only in Go regexp, so accented French words need explicit
// letter-class guards instead of word boundaries.
const wordStart = `(?:^|[^a-zà-ÿ])`
const wordEnd = `(?:[^a-zà-ÿ]|$)`

var (
	positiveIntentRE = regexp.MustCompile(wordStart +
		`(oui|ouais|yes|yep|ok|okay|d'accord|carrément|volontiers|parfait|super|top|allons-y|pourquoi pas|avec plaisir|bien sûr|je veux bien|ça marche|ca marche|banco|go)` +
		wordEnd)
	negativeIntentRE = regexp.MustCompile(wordStart +
		`(non|nope|no|pas intéressé|pas interesse|pas maintenant|pas pour le moment|plus tard|jamais|sans façon|sans facon|aucun intérêt|aucun interet|refuse)` +
		wordEnd)
)

// RegexClassifier matches lowercased utterances against two independent
// keyword patterns. A text matching both counts as positive.
type RegexClassifier struct {
	positive *regexp.Regexp
	negative *regexp.Regexp
}

// NewRegexClassifier returns the default French/English keyword classifier.
func NewRegexClassifier() *RegexClassifier {
	return &RegexClassifier{
		positive: positiveIntentRE,
		negative: negativeIntentRE,
	}
}

// Classify lowercases the text and applies both patterns.
func (c *RegexClassifier) Classify(text string) Intent {
	lower := strings.ToLower(strings.TrimSpace(text))
	if lower == "" {
		return IntentNeither
	}
	if c.positive.MatchString(lower) {
		return IntentPositive
	}
	if c.negative.MatchString(lower) {
		return IntentNegative
	}
	return IntentNeither
}
