package extract

import (
	"encoding/json"
	"fmt"
	"html"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/JakeFAU/gamedb-scraper/internal/scraper"
)

// MaxReputations is the number of reputation column groups in quest output.
const MaxReputations = 10

const questDetailsMarker = `"questDetails":`

var reputationPattern = regexp.MustCompile(
	`(-?\d[\d,]*) reputation with <a [^>]*href="[^"]*faction=(\d+)[^"]*"[^>]*>([^<]+)</a>`,
)

// Reputation is one faction reward.
type Reputation struct {
	FactionID int
	Name      string
	Amount    int
}

// Quest is an available quest row.
type Quest struct {
	ID                    int
	Name                  string
	Level                 int
	Experience            int
	MoneyFlatReward       int
	MoneyExperienceReward int
	Reputations           []Reputation
}

// MoneyTotalReward is the coin paid below the level cap plus the coin paid
// in place of experience at the cap.
func (q Quest) MoneyTotalReward() int {
	return q.MoneyFlatReward + q.MoneyExperienceReward
}

// Columns implements scraper.Entity. Missing reputation groups are blank.
func (q Quest) Columns() []string {
	cols := []string{
		strconv.Itoa(q.ID),
		q.Name,
		strconv.Itoa(q.Level),
		strconv.Itoa(q.Experience),
		strconv.Itoa(q.MoneyFlatReward),
		strconv.Itoa(q.MoneyExperienceReward),
		strconv.Itoa(q.MoneyTotalReward()),
	}
	for i := 0; i < MaxReputations; i++ {
		if i < len(q.Reputations) {
			r := q.Reputations[i]
			cols = append(cols, strconv.Itoa(r.FactionID), r.Name, strconv.Itoa(r.Amount))
			continue
		}
		cols = append(cols, "", "", "")
	}
	return cols
}

// questDetails is the reward block embedded in quest page data.
type questDetails struct {
	Level    int         `json:"level"`
	MinLevel int         `json:"minLevel"`
	MaxLevel int         `json:"maxLevel"`
	XP       progression `json:"xp"`
	Coin     progression `json:"coin"`
}

type progression struct {
	Multiplier  int         `json:"multiplier"`
	Levels      map[int]int `json:"levels"`
	RewardAtCap int         `json:"rewardAtCap"`
}

// base returns the reward at the lowest listed player level, which is the
// full, undiminished reward.
func (p progression) base() int {
	if len(p.Levels) == 0 {
		return 0
	}
	keys := make([]int, 0, len(p.Levels))
	for k := range p.Levels {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return p.Levels[keys[0]]
}

// QuestExtractor parses quest pages.
type QuestExtractor struct {
	notFoundName string
	maxLevel     int
	classifier   *Classifier
}

// NewQuestExtractor compiles rules into a QuestExtractor. maxLevel <= 0
// disables the level cap check.
func NewQuestExtractor(notFoundName string, maxLevel int, rules []scraper.RuleSpec) (*QuestExtractor, error) {
	c, err := NewClassifier(rules)
	if err != nil {
		return nil, err
	}
	return &QuestExtractor{notFoundName: notFoundName, maxLevel: maxLevel, classifier: c}, nil
}

// Header implements scraper.Extractor.
func (e *QuestExtractor) Header() []string {
	header := []string{
		"id",
		"name",
		"level",
		"experience",
		"moneyFlatReward",
		"moneyExperienceReward",
		"moneyTotalReward",
	}
	for i := 1; i <= MaxReputations; i++ {
		header = append(header,
			fmt.Sprintf("reputationId%d", i),
			fmt.Sprintf("reputationName%d", i),
			fmt.Sprintf("reputationAmount%d", i),
		)
	}
	return header
}

// Extract implements scraper.Extractor.
func (e *QuestExtractor) Extract(id int, content string) scraper.Record {
	p := parsePage(id, content, e.notFoundName, e.classifier)
	name := p.subject.Name
	if p.reason != "" {
		return scraper.Excluded(id, name, p.reason)
	}

	details, ok := parseQuestDetails(content)
	if !ok {
		return scraper.Excluded(id, name, "unparseable quest rewards")
	}
	level := details.Level
	if level <= 0 {
		level = details.MaxLevel
	}
	if e.maxLevel > 0 && level > e.maxLevel {
		return scraper.Excluded(id, name, fmt.Sprintf("quest level %d above max level %d", level, e.maxLevel))
	}

	return scraper.Record{
		ID:   id,
		Name: name,
		Entity: Quest{
			ID:                    id,
			Name:                  name,
			Level:                 level,
			Experience:            details.XP.base(),
			MoneyFlatReward:       details.Coin.base(),
			MoneyExperienceReward: details.Coin.RewardAtCap,
			Reputations:           parseReputations(content),
		},
	}
}

func parseQuestDetails(content string) (questDetails, bool) {
	idx := strings.Index(content, questDetailsMarker)
	if idx < 0 {
		return questDetails{}, false
	}
	var details questDetails
	dec := json.NewDecoder(strings.NewReader(content[idx+len(questDetailsMarker):]))
	if err := dec.Decode(&details); err != nil {
		return questDetails{}, false
	}
	return details, true
}

func parseReputations(content string) []Reputation {
	matches := reputationPattern.FindAllStringSubmatch(content, MaxReputations)
	reps := make([]Reputation, 0, len(matches))
	for _, m := range matches {
		amount, err := strconv.Atoi(strings.ReplaceAll(m[1], ",", ""))
		if err != nil {
			continue
		}
		faction, err := strconv.Atoi(m[2])
		if err != nil {
			continue
		}
		reps = append(reps, Reputation{
			FactionID: faction,
			Name:      strings.TrimSpace(html.UnescapeString(m[3])),
			Amount:    amount,
		})
	}
	return reps
}
