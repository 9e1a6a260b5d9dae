package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/cortexkb/cortex/internal/store"
)

func sqliteTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04:05")
}

func entityHit(title string, content *string, updated time.Time) store.EntitySearchResult {
	return store.EntitySearchResult{
		ID:         "e1",
		EntityType: "note",
		Title:      title,
		Content:    content,
		UpdatedAt:  sqliteTimestamp(updated),
	}
}

func TestScoreExactTitleNoBoost(t *testing.T) {
	// Updated 10 days ago: exact title match scores 0.95 flat.
	hit := entityHit("SearchPanel", nil, time.Now().Add(-10*24*time.Hour))
	assert.InDelta(t, 0.95, scoreEntity("SearchPanel", hit), 1e-9)
}

func TestScoreExactTitleCaseInsensitive(t *testing.T) {
	hit := entityHit("SearchPanel", nil, time.Now().Add(-10*24*time.Hour))
	assert.InDelta(t, 0.95, scoreEntity("searchpanel", hit), 1e-9)
}

func TestScoreTitleSubstring(t *testing.T) {
	hit := entityHit("The SearchPanel widget", nil, time.Now().Add(-10*24*time.Hour))
	assert.InDelta(t, 0.80, scoreEntity("searchpanel", hit), 1e-9)
}

func TestScoreContentSubstring(t *testing.T) {
	content := "renders the SearchPanel component"
	hit := entityHit("Unrelated title", &content, time.Now().Add(-10*24*time.Hour))
	assert.InDelta(t, 0.60, scoreEntity("searchpanel", hit), 1e-9)
}

func TestScoreFallback(t *testing.T) {
	hit := entityHit("Nothing in common", nil, time.Now().Add(-10*24*time.Hour))
	assert.InDelta(t, 0.50, scoreEntity("searchpanel", hit), 1e-9)
}

func TestScoreRecencyBoosts(t *testing.T) {
	// Within 24h: +0.05.
	fresh := entityHit("The SearchPanel widget", nil, time.Now().Add(-1*time.Hour))
	assert.InDelta(t, 0.85, scoreEntity("searchpanel", fresh), 1e-9)

	// Within 7 days: +0.02.
	week := entityHit("The SearchPanel widget", nil, time.Now().Add(-3*24*time.Hour))
	assert.InDelta(t, 0.82, scoreEntity("searchpanel", week), 1e-9)
}

func TestScoreCappedAtOne(t *testing.T) {
	hit := entityHit("SearchPanel", nil, time.Now().Add(-1*time.Hour))
	assert.LessOrEqual(t, scoreEntity("SearchPanel", hit), 1.0)
	assert.InDelta(t, 1.0, scoreEntity("SearchPanel", hit), 1e-9)
}

func TestParseTimestamp(t *testing.T) {
	if _, ok := parseTimestamp("2026-07-31 12:00:00"); !ok {
		t.Error("sqlite timestamp should parse")
	}
	if _, ok := parseTimestamp("not a time"); ok {
		t.Error("garbage should not parse")
	}
}
