package app

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
)

// fakeSite serves index, event and deck pages shaped like the real site.
// Every event has two decks, each with two cards.
type fakeSite struct {
	newest       int
	malformed    map[int]bool
	failingDecks map[string]bool
	// onEvent runs before an event page is served
	onEvent      func(id int)
	requests     int32
}

func newFakeSite(t *testing.T, site *fakeSite) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(site)
	t.Cleanup(srv.Close)
	return srv
}

func (s *fakeSite) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	atomic.AddInt32(&s.requests, 1)
	q := r.URL.Query()

	switch {
	case r.URL.Path == "/index":
		fmt.Fprint(w, s.indexPage())
	case r.URL.Path == "/event" && q.Get("d") == "":
		id, err := strconv.Atoi(q.Get("e"))
		if err != nil {
			http.NotFound(w, r)
			return
		}
		if s.onEvent != nil {
			s.onEvent(id)
		}
		fmt.Fprint(w, s.eventPage(id))
	case r.URL.Path == "/event":
		if s.failingDecks[q.Get("d")] {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, deckPage(q.Get("d")))
	default:
		http.NotFound(w, r)
	}
}

func (s *fakeSite) indexPage() string {
	var b strings.Builder
	b.WriteString("<html><body><table>")
	for _, id := range []int{s.newest - 2, s.newest, s.newest - 1} {
		fmt.Fprintf(&b, `<tr><td class="O16">*</td><td><a href="event?e=%d&f=MO">Event %d</a></td></tr>`, id, id)
	}
	b.WriteString(`<tr><td class="S12">x</td><td><a href="event?e=99999&f=MO">Old</a></td></tr>`)
	b.WriteString("</table></body></html>")
	return b.String()
}

func (s *fakeSite) eventPage(id int) string {
	if s.malformed[id] {
		return `<html><head><title>Event</title></head><body><div class="S18">Broken</div></body></html>`
	}
	return fmt.Sprintf(`<html><head><title>Event</title></head><body>
<div class="S18">Challenge %[1]d</div>
<table><tr><td class="S14">Modern<br>24 players - 05/03/21</td></tr></table>
<div class="S14"><a href="?e=%[1]d&d=%[1]d1&f=MO">Deck one</a></div>
<div class="W14"><a href="?e=%[1]d&d=%[1]d2&f=MO">Deck two</a></div>
</body></html>`, id)
}

func deckPage(deckID string) string {
	player := "Player " + deckID[len(deckID)-1:]
	return fmt.Sprintf(`<html><body>
<div class="chosen_tr"><div>1 - Burn</div><div>Modern</div><div>"%s"</div></div>
<table><tr><td class="G14">
<div onclick="AffCard(1,'Lightning Bolt','123','')">4 Lightning Bolt</div>
<div onclick="AffCard(1,'Mountain','land','')">16 Mountain</div>
</td></tr></table>
</body></html>`, player)
}
