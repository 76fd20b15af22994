// Package intent turns free chat text into inventory commands and remembered facts.
// Everything here is pattern matching and best effort: callers must treat a miss as
// "no opinion" and fall back to asking the user to rephrase.
package intent

import (
	"regexp"
	"strings"
)

// Category classifies a remembered fact
type Category string

const (
	CategoryDecision     Category = "decision"
	CategoryDiscovery    Category = "discovery"
	CategoryProblem      Category = "problem"
	CategorySolution     Category = "solution"
	CategoryPreference   Category = "preference"
	CategoryArchitecture Category = "architecture"
	CategoryTodo         Category = "todo"
)

// Fact is one line of chat worth remembering
type Fact struct {
	Category Category `json:"category"`
	Text     string   `json:"text"`
}

// Extractor finds facts in text
type Extractor interface {
	Extract(text string) []Fact
}

type factRule struct {
	category Category
	pattern  *regexp.Regexp
}

const (
	minFactLen = 8
	maxFactLen = 500
)

// factRules is evaluated top to bottom; the first matching category wins for a line
var factRules = []factRule{
	{CategoryDecision, regexp.MustCompile(`(?i)\b(?:we|i)\s+(?:decided|agreed|chose|settled on)\b|\b(?:we're|we are|i'm|i am)\s+going with\b|\blet'?s go with\b|\bdecision\b`)},
	{CategoryDiscovery, regexp.MustCompile(`(?i)\b(?:turns out|found out|discovered|reali[sz]ed|noticed|til)\b`)},
	{CategoryProblem, regexp.MustCompile(`(?i)\b(?:broken|broke|doesn'?t work|not working|stopped working|failed|leak(?:s|ing)?|missing|lost|problem|issue)\b`)},
	{CategorySolution, regexp.MustCompile(`(?i)\b(?:fixed|solved|resolved|repaired|workaround|the fix)\b`)},
	{CategoryPreference, regexp.MustCompile(`(?i)\b(?:i|we)\s+(?:prefer|like|love|hate|dislike|always|never)\b|\bfavou?rite\b`)},
	{CategoryArchitecture, regexp.MustCompile(`(?i)\b(?:goes|go|belongs?|lives?)\s+in(?:to)?\s+the\b|\borgani[sz]ed?\s+(?:by|into)\b|\blayout\b|\bsystem\b`)},
	{CategoryTodo, regexp.MustCompile(`(?i)\b(?:todo|to-do|need to|needs to|have to|remember to|don'?t forget|should)\b`)},
}

var bulletPrefix = regexp.MustCompile(`^\s*(?:[-*•>]+|\d+[.)])\s*`)

// PatternExtractor is the regex-table Extractor
type PatternExtractor struct {
	rules []factRule
}

// NewPatternExtractor returns an extractor over the built-in rule table
func NewPatternExtractor() *PatternExtractor {
	return &PatternExtractor{rules: factRules}
}

// Extract scans text line by line. Each line yields at most one fact.
func (e *PatternExtractor) Extract(text string) []Fact {
	var facts []Fact
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(bulletPrefix.ReplaceAllString(line, ""))
		if len(line) < minFactLen {
			continue
		}
		if runes := []rune(line); len(runes) > maxFactLen {
			line = string(runes[:maxFactLen])
		}
		for _, rule := range e.rules {
			if rule.pattern.MatchString(line) {
				facts = append(facts, Fact{Category: rule.category, Text: line})
				break
			}
		}
	}
	return facts
}

var defaultExtractor = NewPatternExtractor()

// ExtractFacts runs the built-in extractor
func ExtractFacts(text string) []Fact {
	return defaultExtractor.Extract(text)
}
