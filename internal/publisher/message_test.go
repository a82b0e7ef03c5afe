package publisher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/gamedb-scraper/internal/scraper"
)

func TestEncodeRunSummary(t *testing.T) {
	t.Parallel()

	summary := scraper.RunSummary{RunID: "r1", Target: "tbc-quests", Entity: scraper.EntityQuest, Expansion: "tbc", Processed: 3}
	data, attrs, err := Encode(&summary)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"run_id":"r1"`)
	assert.Equal(t, map[string]string{
		"event":     "run.completed",
		"target":    "tbc-quests",
		"entity":    "quest",
		"expansion": "tbc",
		"run_id":    "r1",
	}, attrs)
}

func TestEncodeOtherPayload(t *testing.T) {
	t.Parallel()

	data, attrs, err := Encode(map[string]int{"n": 1})
	require.NoError(t, err)
	assert.JSONEq(t, `{"n":1}`, string(data))
	assert.Empty(t, attrs)

	_, _, err = Encode(make(chan int))
	assert.Error(t, err)
}
