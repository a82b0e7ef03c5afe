// Package extract turns cached pages into records.
//
// Extractors are pure: the same id and content always produce the same
// record, and malformed input produces a record with a reason rather than an
// error.
package extract

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/gamedb-scraper/internal/scraper"
)

// NameSelector locates the entity name heading.
const NameSelector = "h1.heading-size-1"

// Reasons shared by every entity type.
const (
	ReasonNameEmpty = "name was empty"
	ReasonNotFound  = "not found"
)

// NotAvailableHeader is the column set of the not-available output.
var NotAvailableHeader = []string{"id", "name", "reason"}

// ForTarget returns the extractor for the target's entity type. Target rules
// replace the built-in rule set when present.
func ForTarget(target scraper.Target) (scraper.Extractor, error) {
	switch target.Entity {
	case scraper.EntityItem:
		rules := target.Rules
		if len(rules) == 0 {
			rules = DefaultItemRules()
		}
		ex, err := NewItemExtractor(target.NotFoundName, rules)
		if err != nil {
			return nil, fmt.Errorf("item extractor for %s: %w", target.Name, err)
		}
		return Safe(ex), nil
	case scraper.EntityQuest:
		rules := target.Rules
		if len(rules) == 0 {
			rules = DefaultQuestRules()
		}
		ex, err := NewQuestExtractor(target.NotFoundName, target.MaxLevel, rules)
		if err != nil {
			return nil, fmt.Errorf("quest extractor for %s: %w", target.Name, err)
		}
		return Safe(ex), nil
	default:
		return nil, fmt.Errorf("no extractor for entity %q", target.Entity)
	}
}

// page is the parsed form shared by entity extractors.
type page struct {
	subject Subject
	reason  string
}

// parsePage loads the document and applies the name checks and rules that
// every entity shares. A non-empty reason means the record is excluded.
func parsePage(id int, content, notFoundName string, classifier *Classifier) page {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return page{subject: Subject{ID: id}, reason: "unparseable: " + err.Error()}
	}
	name := strings.TrimSpace(doc.Find(NameSelector).First().Text())
	s := Subject{ID: id, Name: name, Body: content, Doc: doc}
	switch {
	case name == "":
		return page{subject: s, reason: ReasonNameEmpty}
	case notFoundName != "" && name == notFoundName:
		return page{subject: s, reason: ReasonNotFound}
	}
	return page{subject: s, reason: classifier.Classify(s)}
}

type safeExtractor struct {
	inner scraper.Extractor
}

// Safe wraps an extractor so a panic becomes an "unparseable" record.
func Safe(inner scraper.Extractor) scraper.Extractor {
	if _, ok := inner.(safeExtractor); ok {
		return inner
	}
	return safeExtractor{inner: inner}
}

func (s safeExtractor) Extract(id int, content string) (record scraper.Record) {
	defer func() {
		if r := recover(); r != nil {
			record = scraper.Excluded(id, "", fmt.Sprintf("unparseable: %v", r))
		}
	}()
	return s.inner.Extract(id, content)
}

func (s safeExtractor) Header() []string {
	return s.inner.Header()
}
