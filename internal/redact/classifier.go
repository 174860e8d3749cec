package redact

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"
)

// Classification is the outcome of the name rule.
type Classification int

const (
	Safe Classification = iota
	PersonalByName
	PersonalByContent
)

func (c Classification) String() string {
	switch c {
	case PersonalByName:
		return "PERSONAL_BY_NAME"
	case PersonalByContent:
		return "PERSONAL_BY_CONTENT"
	default:
		return "SAFE"
	}
}

// NameDecision explains a name-rule classification.
type NameDecision struct {
	Class Classification
	// SafeKeyword is set when a safe keyword decided the column; such columns skip content sampling.
	SafeKeyword string
	// Rule names the definite pattern or strict keyword that matched.
	Rule string
	// Personnel is true when the name carries a personnel-adjacent hint.
	Personnel bool
}

// ContentScore is the result of sampling a column's values.
type ContentScore struct {
	Sampled   int
	Weight    int
	Ratio     float64
	Threshold float64
	Personal  bool
}

const (
	weightStrong = 5
	weightName   = 4
	weightShape  = 3
)

var (
	nonWord      = regexp.MustCompile(`[^\p{L}\p{N}_]`)
	numericToken = regexp.MustCompile(`^[\d\-:#_]+$`)
	nationalID   = regexp.MustCompile(`^\d{11}$`)
	phoneNumber  = regexp.MustCompile(`^(\+90|0)?\s*\d{3}\s*\d{3}\s*\d{2}\s*\d{2}$`)
	emailAddress = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
)

// Classifier decides whether a column holds personal data. It is immutable and
// safe for concurrent use.
type Classifier struct {
	rules    Rules
	definite []*regexp.Regexp
	strict   map[string]bool
	names    map[string]bool
	log      *zap.Logger
}

// NewClassifier compiles rules. A nil logger discards output.
func NewClassifier(rules Rules, log *zap.Logger) (*Classifier, error) {
	if log == nil {
		log = zap.NewNop()
	}
	c := &Classifier{
		rules:  rules,
		strict: make(map[string]bool, len(rules.StrictKeywords)),
		names:  make(map[string]bool, len(rules.CommonNames)),
		log:    log,
	}
	for _, p := range rules.DefinitePatterns {
		re, err := regexp.Compile(`^(?:` + p + `)$`)
		if err != nil {
			return nil, fmt.Errorf("definite pattern %q: %w", p, err)
		}
		c.definite = append(c.definite, re)
	}
	for _, k := range rules.StrictKeywords {
		c.strict[strings.ToLower(k)] = true
	}
	for _, n := range rules.CommonNames {
		c.names[strings.ToLower(n)] = true
	}
	if c.rules.SampleSize <= 0 {
		c.rules.SampleSize = 20
	}
	return c, nil
}

// Rules returns the vocabulary the classifier was built with.
func (c *Classifier) Rules() Rules { return c.rules }

func normalizeName(name string) (lower, clean string) {
	lower = strings.ToLower(strings.TrimSpace(name))
	clean = nonWord.ReplaceAllString(lower, "")
	return lower, clean
}

func containsAny(s string, words []string) string {
	for _, w := range words {
		if w != "" && strings.Contains(s, w) {
			return w
		}
	}
	return ""
}

// Classify applies the name rule: safe keywords first, then definite patterns,
// then the strict keyword list.
func (c *Classifier) Classify(name string) NameDecision {
	lower, clean := normalizeName(name)
	d := NameDecision{Personnel: containsAny(lower, c.rules.PersonnelHints) != ""}
	for _, w := range c.rules.SafeKeywords {
		if w != "" && (strings.Contains(lower, w) || strings.Contains(clean, w)) {
			d.SafeKeyword = w
			return d
		}
	}
	for i, re := range c.definite {
		if re.MatchString(lower) {
			d.Class = PersonalByName
			d.Rule = c.rules.DefinitePatterns[i]
			return d
		}
	}
	if c.strict[lower] {
		d.Class, d.Rule = PersonalByName, lower
	} else if c.strict[clean] {
		d.Class, d.Rule = PersonalByName, clean
	}
	return d
}

// ClassifyContent samples up to SampleSize values and reports whether the weighted
// share of personal-looking values reaches the threshold for this column name.
func (c *Classifier) ClassifyContent(values []string, name string) ContentScore {
	lower, _ := normalizeName(name)
	score := ContentScore{Threshold: c.rules.Threshold}
	if containsAny(lower, c.rules.PersonnelHints) != "" {
		score.Threshold = c.rules.PersonnelThreshold
	}
	for _, v := range values {
		if score.Sampled >= c.rules.SampleSize {
			break
		}
		if strings.TrimSpace(v) == "" {
			continue
		}
		score.Sampled++
		w := c.valueWeight(strings.TrimSpace(v))
		if w > 0 {
			c.log.Debug("personal-looking value", zap.String("column", name), zap.String("value", mask(v)), zap.Int("weight", w))
		}
		score.Weight += w
	}
	if score.Sampled == 0 {
		return score
	}
	score.Ratio = float64(score.Weight) / float64(score.Sampled)
	score.Personal = score.Ratio >= score.Threshold
	return score
}

func (c *Classifier) valueWeight(v string) int {
	if utf8.RuneCountInString(v) <= 2 {
		return 0
	}
	if nationalID.MatchString(v) || phoneNumber.MatchString(v) || emailAddress.MatchString(v) {
		return weightStrong
	}
	if numericToken.MatchString(v) {
		return 0
	}
	lower := strings.ToLower(v)
	words := strings.Fields(v)
	if len(words) >= 2 && len(words) <= 3 && allNameShaped(words) && !c.hasTechnicalWord(strings.Fields(lower)) {
		return weightShape
	}
	// any technical term anywhere in the value suppresses a first-name hit
	if containsAny(lower, c.rules.TechnicalTerms) != "" {
		return 0
	}
	for _, w := range strings.Fields(lower) {
		if c.names[w] {
			return weightName
		}
	}
	return 0
}

func (c *Classifier) hasTechnicalWord(words []string) bool {
	for _, w := range words {
		for _, t := range c.rules.TechnicalTerms {
			if w == t {
				return true
			}
		}
	}
	return false
}

// allNameShaped reports whether each word is 3-15 letters in title case.
func allNameShaped(words []string) bool {
	for _, w := range words {
		rs := []rune(w)
		if len(rs) < 3 || len(rs) > 15 {
			return false
		}
		for i, r := range rs {
			if !unicode.IsLetter(r) {
				return false
			}
			if i == 0 && !unicode.IsUpper(r) {
				return false
			}
			if i > 0 && !unicode.IsLower(r) {
				return false
			}
		}
	}
	return true
}

func mask(v string) string {
	rs := []rune(strings.TrimSpace(v))
	if len(rs) > 3 {
		rs = rs[:3]
	}
	return string(rs) + "***"
}
