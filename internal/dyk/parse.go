package dyk

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var yearRe = regexp.MustCompile(`^\d{4}`)

// parseYearTable handles the English-style archive index: a floated table
// with a th year cell per row and month links in the td cells.
func parseYearTable(doc *goquery.Document, baseURL string) Archive {
	archive := make(Archive)

	doc.Find("div.floatleft tr").Each(func(_ int, tr *goquery.Selection) {
		year := strings.TrimSpace(tr.Find("th").First().Text())
		if !isYear(year) {
			return
		}

		var months []Month
		tr.Find("td").Each(func(_ int, td *goquery.Selection) {
			a := td.Find("a[href]").First()
			if a.Length() == 0 {
				return
			}
			months = append(months, monthFromLink(a, baseURL))
		})
		if len(months) > 0 {
			archive[year] = months
		}
	})

	return archive
}

// parseYearList handles archives laid out as a list with one item per
// year: a bold year label followed by month links.
func parseYearList(doc *goquery.Document, baseURL string) Archive {
	archive := make(Archive)

	doc.Find("li").Each(func(_ int, li *goquery.Selection) {
		label := strings.TrimSpace(li.Find("b").First().Text())
		if label == "" {
			label = strings.TrimSpace(li.Text())
		}
		year := yearRe.FindString(label)
		if year == "" {
			return
		}
		if _, seen := archive[year]; seen {
			return
		}

		var months []Month
		li.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
			href, _ := a.Attr("href")
			if !strings.HasPrefix(href, "/wiki/") && !strings.HasPrefix(href, "/w/") {
				return
			}
			months = append(months, monthFromLink(a, baseURL))
		})
		if len(months) > 0 {
			archive[year] = months
		}
	})

	return archive
}

// parseMonthFacts extracts each batch section on a month page and the list
// items underneath it.
func parseMonthFacts(doc *goquery.Document, rules Rules) []Fact {
	var out []Fact

	doc.Find(rules.SectionSelector).Each(func(_ int, section *goquery.Selection) {
		title := strings.TrimSpace(section.Find("h3").First().Text())
		if title == "" {
			title = strings.TrimSpace(section.Text())
		}

		section.NextUntil(rules.SectionSelector).Filter("ul").Each(func(_ int, ul *goquery.Selection) {
			ul.ChildrenFiltered("li").Each(func(i int, li *goquery.Selection) {
				if rules.SkipFirstItem && i == 0 {
					return
				}

				fact := Fact{
					Section: title,
					Text:    collapseSpaces(li.Text()),
				}
				li.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
					href, _ := a.Attr("href")
					link, ok := wikiLink(href, rules.BaseURL)
					if !ok {
						return
					}
					if a.ParentsFiltered("b").Length() > 0 {
						fact.RelevantLinks = append(fact.RelevantLinks, link)
					}
					fact.Links = append(fact.Links, link)
				})

				if fact.Text != "" {
					out = append(out, fact)
				}
			})
		})
	})

	return out
}

// wikiLink absolutizes and percent-decodes an article href. Non-article
// links (special pages, anchors, external) are rejected.
func wikiLink(href, baseURL string) (string, bool) {
	href = strings.TrimSpace(href)
	if !strings.HasPrefix(href, "/wiki/") {
		return "", false
	}
	title := strings.TrimPrefix(href, "/wiki/")
	if title == "" || strings.Contains(title, ":") {
		// Namespaced pages (File:, Special:, Wikipedia:) are not articles.
		return "", false
	}

	full := baseURL + href
	if decoded, err := url.PathUnescape(full); err == nil {
		full = decoded
	}
	return full, true
}

func monthFromLink(a *goquery.Selection, baseURL string) Month {
	href, _ := a.Attr("href")
	full := href
	if strings.HasPrefix(href, "/") {
		full = baseURL + href
	}
	if decoded, err := url.PathUnescape(full); err == nil {
		full = decoded
	}

	class, _ := a.Attr("class")
	exists := !containsWord(class, "new")

	return Month{
		Name:   strings.TrimSpace(a.Text()),
		URL:    full,
		Exists: exists,
	}
}

func containsWord(attr, word string) bool {
	for _, f := range strings.Fields(attr) {
		if f == word {
			return true
		}
	}
	return false
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func isYear(s string) bool {
	return len(s) == 4 && yearRe.MatchString(s)
}
