package scraper

import (
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"top8scraper/internal/markup"
)

func loadFixture(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile("testdata/" + name)
	if err != nil {
		t.Fatalf("failed to load test fixture: %v", err)
	}
	return data
}

func TestParseEvent(t *testing.T) {
	s := NewScraper(nil)

	page, err := s.ParseEvent(loadFixture(t, "event.html"))
	require.NoError(t, err)

	require.Equal(t, "Modern", page.Format)
	require.Equal(t, "Modern Challenge", page.Name)
	require.NotNil(t, page.PlayerCount)
	require.Equal(t, 24, *page.PlayerCount)
	require.Equal(t, time.Date(2021, 3, 5, 0, 0, 0, 0, time.UTC), page.Date)
	require.Equal(t, []string{
		"?e=17&d=401&f=MO",
		"?e=17&d=402&f=MO",
		"?e=17&d=403&f=MO",
	}, page.DeckPaths)
}

func TestParseEventMalformed(t *testing.T) {
	s := NewScraper(nil)

	tests := []struct {
		name string
		html string
	}{
		{
			name: "missing metadata cell",
			html: `<div class="S18">X</div><div class="S14"><a href="?d=1">d</a></div>`,
		},
		{
			name: "duplicated metadata cell",
			html: `<table><tr><td class="S14">Modern<br>05/03/21</td><td class="S14">Legacy<br>05/03/21</td></tr></table>
				<div class="S18">X</div><div class="S14"><a href="?d=1">d</a></div>`,
		},
		{
			name: "missing title",
			html: `<table><tr><td class="S14">Modern<br>05/03/21</td></tr></table><div class="S14"><a href="?d=1">d</a></div>`,
		},
		{
			name: "no deck links",
			html: `<table><tr><td class="S14">Modern<br>05/03/21</td></tr></table><div class="S18">X</div>`,
		},
		{
			name: "single metadata segment",
			html: `<table><tr><td class="S14">Modern</td></tr></table><div class="S18">X</div><div class="S14"><a href="?d=1">d</a></div>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.ParseEvent([]byte(tt.html))
			require.ErrorIs(t, err, markup.ErrMalformed)
		})
	}
}

func TestParseEventBadDate(t *testing.T) {
	s := NewScraper(nil)
	html := `<table><tr><td class="S14">Modern<br>24 players - 2021-03-05</td></tr></table>
		<div class="S18">X</div><div class="S14"><a href="?d=1">d</a></div>`

	_, err := s.ParseEvent([]byte(html))
	require.Error(t, err)
}

func TestParsePlayersAndDate(t *testing.T) {
	march5 := time.Date(2021, 3, 5, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		input       string
		wantPlayers *int
		wantDate    time.Time
		wantErr     bool
	}{
		{"24 players - 05/03/21", intPtr(24), march5, false},
		{"05/03/21", nil, march5, false},
		{"5/3/21", nil, march5, false},
		{"128 players -  31/12/99", intPtr(128), time.Date(1999, 12, 31, 0, 0, 0, 0, time.UTC), false},
		{"many players - 05/03/21", nil, time.Time{}, true},
		{"32/13/21", nil, time.Time{}, true},
		{"", nil, time.Time{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			players, date, err := ParsePlayersAndDate(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.wantPlayers, players)
			require.True(t, date.Equal(tt.wantDate), "date = %v, want %v", date, tt.wantDate)
		})
	}
}

func TestParseDateError(t *testing.T) {
	_, err := ParseDate("March 5th")

	var dateErr *DateFormatError
	require.True(t, errors.As(err, &dateErr))
	require.Equal(t, "March 5th", dateErr.Value)
}

func TestParseDeck(t *testing.T) {
	s := NewScraper(nil)

	page, err := s.ParseDeck(loadFixture(t, "deck.html"))
	require.NoError(t, err)

	require.Equal(t, "1", page.Rank)
	require.Equal(t, "Jane Doe", page.Player)
	require.Equal(t, []int{123, 456, UnknownCardID}, page.CardIDs)
}

func TestParseDeckMalformed(t *testing.T) {
	s := NewScraper(nil)

	_, err := s.ParseDeck([]byte(`<div class="G14"></div>`))
	require.ErrorIs(t, err, markup.ErrMalformed)

	_, err = s.ParseDeck([]byte(`<div class="chosen_tr"><div>1 - Burn</div></div>`))
	require.ErrorIs(t, err, markup.ErrMalformed)
}

func TestParseDeckWithoutCards(t *testing.T) {
	s := NewScraper(nil)
	html := `<div class="chosen_tr"><div>3-4 - Jund</div><div>Modern</div><div>"Bob"</div></div>`

	page, err := s.ParseDeck([]byte(html))
	require.NoError(t, err)
	require.Equal(t, "3", page.Rank)
	require.Equal(t, "Bob", page.Player)
	require.Empty(t, page.CardIDs)
}

func TestCardID(t *testing.T) {
	tests := []struct {
		handler  string
		expected int
	}{
		{"AffCard(1,'Lightning Bolt','123','')", 123},
		{"AffCard(1,'Mountain','land','')", UnknownCardID},
		{"AffCard(1,'Bolt', ' 77 ' ,'')", 77},
		{"", UnknownCardID},
		{"nocomma", UnknownCardID},
	}

	for _, tt := range tests {
		t.Run(tt.handler, func(t *testing.T) {
			require.Equal(t, tt.expected, CardID(tt.handler))
		})
	}
}

func TestParseCardField(t *testing.T) {
	require.Equal(t, 123, ParseCardField("'123'"))
	require.Equal(t, UnknownCardID, ParseCardField("'abc'"))
}

func TestParseIndex(t *testing.T) {
	s := NewScraper(nil)

	newest, skipped, err := s.ParseIndex(loadFixture(t, "index.html"))
	require.NoError(t, err)
	require.Equal(t, 31044, newest)
	require.Equal(t, []string{"format?f=VI"}, skipped)
}

func TestParseIndexNoMarkers(t *testing.T) {
	s := NewScraper(nil)

	_, _, err := s.ParseIndex([]byte(`<table><tr><td><a href="event?e=1">x</a></td></tr></table>`))
	require.ErrorIs(t, err, ErrNoEvents)
}

func intPtr(n int) *int {
	return &n
}
