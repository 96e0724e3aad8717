package scraper

import "time"

// EventPage is what an event page yields before any store lookups.
type EventPage struct {
	Format      string
	PlayerCount *int
	Date        time.Time
	Name        string
	DeckPaths   []string
}

// DeckPage is what a deck page yields; CardIDs keeps on-page order.
type DeckPage struct {
	Rank    string
	Player  string
	CardIDs []int
}

type Selectors struct {
	EventMeta  string `yaml:"event_meta"`
	EventTitle string `yaml:"event_title"`
	DeckLinks  string `yaml:"deck_links"`
	DeckMeta   string `yaml:"deck_meta"`
	DeckCards  string `yaml:"deck_cards"`
	CardAttr   string `yaml:"card_attr"`
	TopMarker  string `yaml:"top_marker"`
	EventParam string `yaml:"event_param"`
}

func DefaultSelectors() *Selectors {
	return &Selectors{
		EventMeta:  "td.S14",
		EventTitle: ".S18",
		DeckLinks:  "div.S14 > a, div.W14 > a",
		DeckMeta:   ".chosen_tr",
		DeckCards:  "td.G14 > div",
		CardAttr:   "onclick",
		TopMarker:  "td.O16",
		EventParam: "e",
	}
}

// UnknownCardID is stored for card entries whose identifier is not numeric.
const UnknownCardID = -1
