package extract

import (
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/gamedb-scraper/internal/scraper"
)

// Item is an available item row.
type Item struct {
	ID              int
	Name            string
	SellPriceCopper int
}

// Columns implements scraper.Entity.
func (i Item) Columns() []string {
	return []string{strconv.Itoa(i.ID), i.Name, strconv.Itoa(i.SellPriceCopper)}
}

// ItemExtractor parses item pages.
type ItemExtractor struct {
	notFoundName string
	classifier   *Classifier
}

// NewItemExtractor compiles rules into an ItemExtractor.
func NewItemExtractor(notFoundName string, rules []scraper.RuleSpec) (*ItemExtractor, error) {
	c, err := NewClassifier(rules)
	if err != nil {
		return nil, err
	}
	return &ItemExtractor{notFoundName: notFoundName, classifier: c}, nil
}

// Header implements scraper.Extractor.
func (e *ItemExtractor) Header() []string {
	return []string{"id", "name", "sellPriceCopper"}
}

// Extract implements scraper.Extractor.
func (e *ItemExtractor) Extract(id int, content string) scraper.Record {
	p := parsePage(id, content, e.notFoundName, e.classifier)
	if p.reason != "" {
		return scraper.Excluded(id, p.subject.Name, p.reason)
	}
	price, ok := sellPrice(p.subject.Doc)
	if !ok {
		return scraper.Excluded(id, p.subject.Name, "unparseable sell price")
	}
	return scraper.Record{
		ID:     id,
		Name:   p.subject.Name,
		Entity: Item{ID: id, Name: p.subject.Name, SellPriceCopper: price},
	}
}

// sellPrice sums the gold, silver and copper spans in copper.
func sellPrice(doc *goquery.Document) (int, bool) {
	block := doc.Find("div.whtt-sellprice").First()
	if block.Length() == 0 {
		return 0, true
	}
	total := 0
	for _, coin := range []struct {
		selector string
		factor   int
	}{
		{"span.moneygold", 10000},
		{"span.moneysilver", 100},
		{"span.moneycopper", 1},
	} {
		n, ok := money(block.Find(coin.selector).First().Text())
		if !ok {
			return 0, false
		}
		total += n * coin.factor
	}
	return total, true
}

func money(raw string) (int, bool) {
	raw = strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
