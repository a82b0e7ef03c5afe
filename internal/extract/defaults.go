package extract

import "github.com/JakeFAU/gamedb-scraper/internal/scraper"

// QuickFactsSelector locates the item quick-facts infobox.
const QuickFactsSelector = "table.infobox.after-buttons"

// ItemNotAvailableMarker appears on pages of items players cannot obtain.
const ItemNotAvailableMarker = "This item is not available to players."

var itemNameIdentifiers = []string{
	"OLD",
	"(old)",
	"DEBUG",
	"Deprecated",
	"Deprecate",
	"Depricated",
	"Deptecated",
	"DEPRECATED",
	"[DEP]",
	"DEP",
	"(DND)",
	"Monster",
	"[PH]",
	"PH",
	"QA",
	"(test)",
	"(Test)",
	"(TEST)",
	"Test",
	"TEST",
	"Unused",
	"<UNUSED>",
	"[UNUSED]",
	"UNUSED",
}

var itemQuickFactsPatterns = []string{
	"Added in patch.*Season of Discovery",
	"Deprecated",
}

// Items whose names or quick facts trip a rule but that players can obtain.
var itemExceptions = map[int]string{
	16110: "Recipe: Monster Omelet",
	12218: "Monster Omelet",
	8523:  "Field Testing Kit",
	15102: "Un'Goro Tested Sample",
	15103: "Corrupt Tested Sample",
	5108:  "Dark Iron Leather",
}

var questNameIdentifiers = []string{
	"<UNUSED>",
	"[UNUSED]",
	"UNUSED",
	"<NYI>",
	"[NYI]",
	"<TXT>",
	"<CHANGE TO GOSSIP>",
	"[DEPRECATED]",
	"Deprecated",
	"DEPRECATED",
	"REUSE",
	"<TEST>",
	"[PH]",
	"(DND)",
}

// DefaultItemRules is the built-in item rule set.
func DefaultItemRules() []scraper.RuleSpec {
	rules := []scraper.RuleSpec{{Kind: scraper.RuleIDException, IDs: copyIDs(itemExceptions)}}
	for _, id := range itemNameIdentifiers {
		rules = append(rules, scraper.RuleSpec{Kind: scraper.RuleNameContains, Value: id})
	}
	for _, pattern := range itemQuickFactsPatterns {
		rules = append(rules, scraper.RuleSpec{
			Kind:     scraper.RuleSectionRegex,
			Selector: QuickFactsSelector,
			Pattern:  pattern,
		})
	}
	rules = append(rules, scraper.RuleSpec{
		Kind:   scraper.RuleBodyContains,
		Value:  ItemNotAvailableMarker,
		Reason: "item is not available to players",
	})
	return rules
}

// DefaultQuestRules is the built-in quest rule set.
func DefaultQuestRules() []scraper.RuleSpec {
	rules := make([]scraper.RuleSpec, 0, len(questNameIdentifiers))
	for _, id := range questNameIdentifiers {
		rules = append(rules, scraper.RuleSpec{Kind: scraper.RuleNameContains, Value: id})
	}
	return rules
}

func copyIDs(in map[int]string) map[int]string {
	out := make(map[int]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
