package extract

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/gamedb-scraper/internal/scraper"
)

// Subject is what exclusion rules are evaluated against.
type Subject struct {
	ID   int
	Name string
	Body string
	Doc  *goquery.Document
}

// Rule is a compiled exclusion rule.
type Rule struct {
	Kind     scraper.RuleKind
	Value    string
	Pattern  *regexp.Regexp
	Selector string
	IDs      map[int]string
	Reason   string
}

// Compile validates a RuleSpec and prepares it for evaluation.
func Compile(spec scraper.RuleSpec) (Rule, error) {
	rule := Rule{
		Kind:     spec.Kind,
		Value:    spec.Value,
		Selector: spec.Selector,
		IDs:      spec.IDs,
		Reason:   spec.Reason,
	}
	switch spec.Kind {
	case scraper.RuleNameContains, scraper.RuleBodyContains:
		if spec.Value == "" {
			return Rule{}, fmt.Errorf("%s rule needs a value", spec.Kind)
		}
	case scraper.RuleNameRegex, scraper.RuleSectionRegex:
		if spec.Pattern == "" {
			return Rule{}, fmt.Errorf("%s rule needs a pattern", spec.Kind)
		}
		if spec.Kind == scraper.RuleSectionRegex && spec.Selector == "" {
			return Rule{}, fmt.Errorf("%s rule needs a selector", spec.Kind)
		}
		re, err := regexp.Compile(spec.Pattern)
		if err != nil {
			return Rule{}, fmt.Errorf("compile %s pattern %q: %w", spec.Kind, spec.Pattern, err)
		}
		rule.Pattern = re
	case scraper.RuleIDListed, scraper.RuleIDException:
		if len(spec.IDs) == 0 {
			return Rule{}, fmt.Errorf("%s rule needs ids", spec.Kind)
		}
	default:
		return Rule{}, fmt.Errorf("unknown rule kind %q", spec.Kind)
	}
	return rule, nil
}

// match reports whether the rule applies and the reason to record.
func (r Rule) match(s Subject) (string, bool) {
	switch r.Kind {
	case scraper.RuleNameContains:
		if strings.Contains(s.Name, r.Value) {
			return r.reasonOr("name has identifier " + r.Value), true
		}
	case scraper.RuleNameRegex:
		if r.Pattern.MatchString(s.Name) {
			return r.reasonOr("name matches " + r.Pattern.String()), true
		}
	case scraper.RuleBodyContains:
		if strings.Contains(s.Body, r.Value) {
			return r.reasonOr("page contains " + strings.TrimSuffix(r.Value, ".")), true
		}
	case scraper.RuleSectionRegex:
		if s.Doc == nil {
			return "", false
		}
		section := s.Doc.Find(r.Selector).First()
		if section.Length() == 0 {
			return "", false
		}
		inner, err := section.Html()
		if err != nil {
			return "", false
		}
		if r.Pattern.MatchString(inner) {
			label := strings.ReplaceAll(r.Pattern.String(), ".*", " ")
			return r.reasonOr("quick facts has identifier " + label), true
		}
	case scraper.RuleIDListed, scraper.RuleIDException:
		if reason, ok := r.IDs[s.ID]; ok {
			if reason != "" {
				return reason, true
			}
			return r.reasonOr("id is listed"), true
		}
	}
	return "", false
}

func (r Rule) reasonOr(fallback string) string {
	if r.Reason != "" {
		return r.Reason
	}
	return fallback
}

// Classifier applies exclusion rules. ID exceptions are checked first and
// make the subject available regardless of the other rules; the remaining
// rules run in order and the first match wins.
type Classifier struct {
	exceptions []Rule
	rules      []Rule
}

// NewClassifier compiles specs into a Classifier.
func NewClassifier(specs []scraper.RuleSpec) (*Classifier, error) {
	c := &Classifier{}
	for i, spec := range specs {
		rule, err := Compile(spec)
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
		if rule.Kind == scraper.RuleIDException {
			c.exceptions = append(c.exceptions, rule)
			continue
		}
		c.rules = append(c.rules, rule)
	}
	return c, nil
}

// Classify returns the exclusion reason, or "" when the subject is available.
func (c *Classifier) Classify(s Subject) string {
	for _, rule := range c.exceptions {
		if _, ok := rule.match(s); ok {
			return ""
		}
	}
	for _, rule := range c.rules {
		if reason, ok := rule.match(s); ok {
			return reason
		}
	}
	return ""
}
