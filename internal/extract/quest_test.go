package extract

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/gamedb-scraper/internal/scraper"
)

const questDetailsJSON = `{"level":12,"minLevel":8,"maxLevel":12,` +
	`"xp":{"multiplier":1,"levels":{"20":200,"8":875,"18":437}},` +
	`"coin":{"levels":{"8":350,"20":350},"rewardAtCap":525}}`

func questPage(name, details, rewards string) string {
	var b strings.Builder
	b.WriteString(`<html><body><h1 class="heading-size-1">` + name + `</h1>`)
	b.WriteString(rewards)
	if details != "" {
		b.WriteString(`<script>WH.Gatherer.addData(5, 4, {"1":{"questDetails":` + details + `, "other": 1}});</script>`)
	}
	b.WriteString(`</body></html>`)
	return b.String()
}

func newQuestExtractor(t *testing.T, maxLevel int) scraper.Extractor {
	t.Helper()
	ex, err := ForTarget(scraper.Target{
		Name:         "classic-quests",
		Entity:       scraper.EntityQuest,
		Expansion:    "classic",
		LastID:       9665,
		NotFoundName: "Classic Quest",
		MaxLevel:     maxLevel,
	})
	require.NoError(t, err)
	return ex
}

func TestQuestExtractAvailable(t *testing.T) {
	t.Parallel()

	rewards := `<ul><li>250 reputation with <a href="/classic/faction=72/stormwind">Stormwind</a></li>` +
		`<li>-25 reputation with <a class="q" href="/classic/faction=68">Undercity</a></li></ul>`
	rec := newQuestExtractor(t, 60).Extract(7, questPage("The Defias Brotherhood", questDetailsJSON, rewards))
	require.True(t, rec.Available(), rec.Reason)

	quest, ok := rec.Entity.(Quest)
	require.True(t, ok)
	assert.Equal(t, 12, quest.Level)
	assert.Equal(t, 875, quest.Experience)
	assert.Equal(t, 350, quest.MoneyFlatReward)
	assert.Equal(t, 525, quest.MoneyExperienceReward)
	assert.Equal(t, 875, quest.MoneyTotalReward())
	assert.Equal(t, []Reputation{
		{FactionID: 72, Name: "Stormwind", Amount: 250},
		{FactionID: 68, Name: "Undercity", Amount: -25},
	}, quest.Reputations)

	cols := quest.Columns()
	assert.Len(t, cols, 7+3*MaxReputations)
	assert.Equal(t, []string{"7", "The Defias Brotherhood", "12", "875", "350", "525", "875", "72", "Stormwind", "250"}, cols[:10])
	assert.Equal(t, []string{"", "", ""}, cols[len(cols)-3:])
}

func TestQuestHeader(t *testing.T) {
	t.Parallel()

	header := newQuestExtractor(t, 60).Header()
	assert.Len(t, header, 7+3*MaxReputations)
	assert.Equal(t, "moneyTotalReward", header[6])
	assert.Equal(t, "reputationId1", header[7])
	assert.Equal(t, "reputationAmount10", header[len(header)-1])
}

func TestQuestLevelFallsBackToMaxLevel(t *testing.T) {
	t.Parallel()

	rec := newQuestExtractor(t, 0).Extract(8, questPage("Side Quest", `{"minLevel":1,"maxLevel":5}`, ""))
	require.True(t, rec.Available(), rec.Reason)
	assert.Equal(t, 5, rec.Entity.(Quest).Level)
	assert.Zero(t, rec.Entity.(Quest).Experience)
}

func TestQuestExclusions(t *testing.T) {
	t.Parallel()

	ex := newQuestExtractor(t, 60)
	cases := []struct {
		name    string
		content string
		reason  string
	}{
		{"empty", "", ReasonNameEmpty},
		{"not found", questPage("Classic Quest", questDetailsJSON, ""), ReasonNotFound},
		{"unused name", questPage("&lt;UNUSED&gt; Old Quest", questDetailsJSON, ""), "name has identifier <UNUSED>"},
		{"no details", questPage("Quiet Quest", "", ""), "unparseable quest rewards"},
		{"broken details", questPage("Broken Quest", `{"level": "x"`, ""), "unparseable quest rewards"},
		{"over cap", questPage("Outland Quest", `{"level":62}`, ""), "quest level 62 above max level 60"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			rec := ex.Extract(9, tc.content)
			assert.False(t, rec.Available())
			assert.Equal(t, tc.reason, rec.Reason)
		})
	}
}

func TestQuestReputationsCapped(t *testing.T) {
	t.Parallel()

	var rewards strings.Builder
	for i := 1; i <= 12; i++ {
		rewards.WriteString(`<li>10 reputation with <a href="/faction=` + strings.Repeat("1", i) + `">F</a></li>`)
	}
	rec := newQuestExtractor(t, 60).Extract(10, questPage("Grind", questDetailsJSON, rewards.String()))
	require.True(t, rec.Available(), rec.Reason)
	assert.Len(t, rec.Entity.(Quest).Reputations, MaxReputations)
}
