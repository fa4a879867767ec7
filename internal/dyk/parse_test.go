package dyk

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const enMonthHTML = `<html><body>
<div class="mw-heading mw-heading3"><h3>1 March 2024</h3></div>
<ul>
<li>navigation item</li>
<li>... that the <b><a href="/wiki/Alpha_Castle">Alpha Castle</a></b> was built near <a href="/wiki/Beta_River">Beta River</a>?</li>
<li>... that <a href="/wiki/Gamma_%28letter%29">Gamma</a> is a letter?</li>
</ul>
<div class="mw-heading mw-heading3"><h3>2 March 2024</h3></div>
<ul>
<li>navigation item</li>
<li>... that <b><a href="/wiki/Delta_Works">Delta Works</a></b> protect the coast?</li>
<li>... that <a href="/wiki/File:Map.png">a map</a> exists?</li>
</ul>
</body></html>`

const enArchiveHTML = `<html><body>
<div class="floatleft"><table>
<tr><th>2024</th>
<td><a href="/wiki/Wikipedia:Recent_additions/2024/March">March</a></td>
<td><a href="/wiki/Wikipedia:Recent_additions/2024/April" class="new">April</a></td>
</tr>
<tr><th>2023</th>
<td><a href="/wiki/Wikipedia:Recent_additions/2023/December">December</a></td>
</tr>
</table></div>
</body></html>`

const ruArchiveHTML = `<html><body>
<div class="ts-Box-description">
<ul>
<li><b>2024 год:</b> <a href="/wiki/%D0%9F%D1%80%D0%BE%D0%B5%D0%BA%D1%82:%D0%97%D0%BD%D0%B0%D0%B5%D1%82%D0%B5_%D0%BB%D0%B8_%D0%B2%D1%8B/%D0%90%D1%80%D1%85%D0%B8%D0%B2/2024-03">март</a>
<a href="/wiki/A/2024-04" class="new">апрель</a></li>
<li><b>2023 год:</b> <a href="/wiki/A/2023-12">декабрь</a></li>
</ul>
</div>
</body></html>`

func docFromString(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("parse html: %v", err)
	}
	return doc
}

func TestParseMonthFacts(t *testing.T) {
	rules, err := RulesFor("en")
	if err != nil {
		t.Fatalf("RulesFor: %v", err)
	}

	facts := parseMonthFacts(docFromString(t, enMonthHTML), rules)
	if len(facts) != 4 {
		t.Fatalf("facts: got %d want 4", len(facts))
	}

	first := facts[0]
	if first.Section != "1 March 2024" {
		t.Fatalf("section: got %q", first.Section)
	}
	if !strings.Contains(first.Text, "Alpha Castle") {
		t.Fatalf("text: got %q", first.Text)
	}
	if len(first.Links) != 2 {
		t.Fatalf("links: got %v", first.Links)
	}
	if len(first.RelevantLinks) != 1 || !strings.HasSuffix(first.RelevantLinks[0], "/wiki/Alpha_Castle") {
		t.Fatalf("relevant links: got %v", first.RelevantLinks)
	}

	// Percent-encoded titles are decoded.
	if got := facts[1].Links[0]; !strings.HasSuffix(got, "/wiki/Gamma_(letter)") {
		t.Fatalf("decoded link: got %q", got)
	}

	// File: links are not articles.
	last := facts[3]
	if len(last.Links) != 0 {
		t.Fatalf("namespaced link kept: %v", last.Links)
	}
}

func TestParseYearTable(t *testing.T) {
	archive := parseYearTable(docFromString(t, enArchiveHTML), "https://en.wikipedia.org")

	if len(archive) != 2 {
		t.Fatalf("years: got %d want 2", len(archive))
	}
	months := archive["2024"]
	if len(months) != 2 {
		t.Fatalf("2024 months: got %v", months)
	}
	if !months[0].Exists {
		t.Fatalf("March should exist")
	}
	if months[1].Exists {
		t.Fatalf("redlinked April should not exist")
	}
	if months[0].URL != "https://en.wikipedia.org/wiki/Wikipedia:Recent_additions/2024/March" {
		t.Fatalf("month url: got %q", months[0].URL)
	}
}

func TestParseYearList(t *testing.T) {
	archive := parseYearList(docFromString(t, ruArchiveHTML), "https://ru.wikipedia.org")

	if len(archive) != 2 {
		t.Fatalf("years: got %d want 2", len(archive))
	}
	months := archive["2024"]
	if len(months) != 2 {
		t.Fatalf("2024 months: got %v", months)
	}
	if months[0].Name != "март" {
		t.Fatalf("month name: got %q", months[0].Name)
	}
	if !strings.Contains(months[0].URL, "Проект:Знаете_ли_вы") {
		t.Fatalf("month url not decoded: %q", months[0].URL)
	}
	if months[1].Exists {
		t.Fatalf("redlinked month should not exist")
	}
}

func TestMonthFacts_HTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("User-Agent"); !strings.Contains(got, "test-agent") {
			t.Errorf("user agent: got %q", got)
		}
		_, _ = w.Write([]byte(enMonthHTML))
	}))
	defer srv.Close()

	s := NewScraper(WithUserAgent("test-agent"), WithDelay(0))
	facts, err := s.MonthFacts(context.Background(), "en", srv.URL)
	if err != nil {
		t.Fatalf("MonthFacts: %v", err)
	}
	if len(facts) != 4 {
		t.Fatalf("facts: got %d want 4", len(facts))
	}
}

func TestMonthFacts_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	s := NewScraper(WithDelay(0))
	if _, err := s.MonthFacts(context.Background(), "en", srv.URL); err == nil {
		t.Fatalf("MonthFacts: expected status error")
	}
}

func TestRulesFor_Unknown(t *testing.T) {
	if _, err := RulesFor("xx"); err == nil {
		t.Fatalf("RulesFor: expected error")
	}
}

func TestMonthNumber(t *testing.T) {
	cases := []struct {
		lang, name string
		want       time.Month
		ok         bool
	}{
		{"en", "March", time.March, true},
		{"en", "march 2024", time.March, true},
		{"ru", "Декабрь", time.December, true},
		{"vi", "tháng 11", time.November, true},
		{"vi", "tháng 1", time.January, true},
		{"en", "Frimaire", 0, false},
	}
	for _, tc := range cases {
		got, ok := MonthNumber(tc.lang, tc.name)
		if ok != tc.ok || got != tc.want {
			t.Errorf("MonthNumber(%q, %q): got %v %v want %v %v", tc.lang, tc.name, got, ok, tc.want, tc.ok)
		}
	}
}
