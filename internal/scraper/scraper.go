package scraper

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"top8scraper/internal/markup"
	"top8scraper/internal/normalize"
)

// ErrNoEvents is returned by ParseIndex when no top-event marker resolves to an event ID.
var ErrNoEvents = errors.New("no events found on index page")

type Scraper struct {
	selectors *Selectors
}

func NewScraper(selectors *Selectors) *Scraper {
	if selectors == nil {
		selectors = DefaultSelectors()
	}
	return &Scraper{
		selectors: selectors,
	}
}

// EventParam is the query parameter that carries an event ID.
func (s *Scraper) EventParam() string {
	return s.selectors.EventParam
}

// ParseEvent extracts the event metadata and the ordered deck links from an event page.
func (s *Scraper) ParseEvent(html []byte) (*EventPage, error) {
	doc, err := markup.Parse(html)
	if err != nil {
		return nil, err
	}

	meta, err := markup.SelectOne(doc.Selection, s.selectors.EventMeta)
	if err != nil {
		return nil, err
	}
	segments := markup.TextSegments(meta)
	if len(segments) < 2 {
		return nil, &markup.MalformedMarkupError{
			Selector: s.selectors.EventMeta,
			Found:    1,
			Context:  fmt.Sprintf("expected format and date segments, got %d", len(segments)),
		}
	}

	players, date, err := ParsePlayersAndDate(segments[1])
	if err != nil {
		return nil, err
	}

	title, err := markup.SelectOne(doc.Selection, s.selectors.EventTitle)
	if err != nil {
		return nil, err
	}

	links, err := markup.SelectMany(doc.Selection, s.selectors.DeckLinks)
	if err != nil {
		return nil, err
	}

	page := &EventPage{
		Format:      segments[0],
		PlayerCount: players,
		Date:        date,
		Name:        normalize.Text(title.Text()),
	}

	var missing int
	links.Each(func(_ int, a *goquery.Selection) {
		href, ok := a.Attr("href")
		if !ok || strings.TrimSpace(href) == "" {
			missing++
			return
		}
		page.DeckPaths = append(page.DeckPaths, strings.TrimSpace(href))
	})
	if missing > 0 {
		return nil, &markup.MalformedMarkupError{
			Selector: s.selectors.DeckLinks,
			Found:    links.Length(),
			Context:  fmt.Sprintf("%d deck links without href", missing),
		}
	}

	return page, nil
}

// ParseDeck extracts rank, player name and card identifiers from a deck page.
func (s *Scraper) ParseDeck(html []byte) (*DeckPage, error) {
	doc, err := markup.Parse(html)
	if err != nil {
		return nil, err
	}

	meta, err := markup.SelectFirst(doc.Selection, s.selectors.DeckMeta)
	if err != nil {
		return nil, err
	}

	// 0: "<rank> - <archetype>", 2: player name in quotes
	children := meta.ChildrenFiltered("div")
	if children.Length() < 3 {
		return nil, &markup.MalformedMarkupError{
			Selector: s.selectors.DeckMeta + " > div",
			Found:    children.Length(),
			Context:  "expected rank and player rows",
		}
	}

	page := &DeckPage{
		Rank:   normalize.Text(normalize.BeforeFirst(children.Eq(0).Text(), "-")),
		Player: normalize.Text(normalize.StripChars(children.Eq(2).Text(), `"`)),
	}
	if page.Player == "" {
		return nil, &markup.MalformedMarkupError{
			Selector: s.selectors.DeckMeta + " > div",
			Found:    children.Length(),
			Context:  "empty player name",
		}
	}

	doc.Find(s.selectors.DeckCards).Each(func(_ int, card *goquery.Selection) {
		handler, _ := card.Attr(s.selectors.CardAttr)
		page.CardIDs = append(page.CardIDs, CardID(handler))
	})

	return page, nil
}

// ParseIndex returns the highest event ID linked from a top-event marker on the listing page.
// Markers that do not resolve to a numeric ID are returned as skipped hrefs.
func (s *Scraper) ParseIndex(html []byte) (newest int, skipped []string, err error) {
	doc, err := markup.Parse(html)
	if err != nil {
		return 0, nil, err
	}

	found := false
	doc.Find(s.selectors.TopMarker).Each(func(_ int, marker *goquery.Selection) {
		href, _ := marker.Closest("tr").Find("a").First().Attr("href")
		id, parseErr := s.eventIDFromHref(href)
		if parseErr != nil {
			skipped = append(skipped, href)
			return
		}
		if !found || id > newest {
			newest = id
			found = true
		}
	})

	if !found {
		return 0, skipped, ErrNoEvents
	}
	return newest, skipped, nil
}

func (s *Scraper) eventIDFromHref(href string) (int, error) {
	u, err := url.Parse(href)
	if err != nil {
		return 0, err
	}
	raw := u.Query().Get(s.selectors.EventParam)
	if raw == "" {
		return 0, fmt.Errorf("no %q parameter in %q", s.selectors.EventParam, href)
	}
	return strconv.Atoi(raw)
}

// CardID pulls the card identifier out of a card row's click handler, which looks like
// `AffCard(1,'Lightning Bolt','12345','')`: the second-to-last comma field, unquoted.
func CardID(handler string) int {
	fields := strings.Split(handler, ",")
	if len(fields) < 2 {
		return UnknownCardID
	}
	return ParseCardField(fields[len(fields)-2])
}

// ParseCardField turns a single quoted field such as "'123'" into 123, or UnknownCardID.
func ParseCardField(field string) int {
	raw := strings.TrimSpace(normalize.StripChars(field, "'"))
	id, err := strconv.Atoi(raw)
	if err != nil {
		return UnknownCardID
	}
	return id
}
