package dyk

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

type archiveLayout int

const (
	// layoutYearTable: the archive index is a table with one row per year,
	// year in a th cell and month links in td cells (English Wikipedia).
	layoutYearTable archiveLayout = iota
	// layoutYearList: the archive index is a list with one li per year,
	// year in a bold prefix and month links following it (Russian and most
	// other Wikipedias).
	layoutYearList
)

// Rules capture how one language's DYK archive is laid out.
type Rules struct {
	BaseURL         string
	ArchivePath     string
	Layout          archiveLayout
	SectionSelector string
	// SkipFirstItem drops the first li of every fact list; some archives
	// lead each batch with a navigational item rather than a fact.
	SkipFirstItem bool
	// Months maps lowercased local month names to their number.
	Months map[string]time.Month
}

var languageRules = map[string]Rules{
	"en": {
		BaseURL:         "https://en.wikipedia.org",
		ArchivePath:     "/wiki/Wikipedia:Recent_additions",
		Layout:          layoutYearTable,
		SectionSelector: "div.mw-heading.mw-heading3",
		SkipFirstItem:   true,
		Months: monthMap("january", "february", "march", "april", "may", "june",
			"july", "august", "september", "october", "november", "december"),
	},
	"ru": {
		BaseURL:         "https://ru.wikipedia.org",
		ArchivePath:     "/wiki/Проект:Знаете_ли_вы/Архив_рубрики",
		Layout:          layoutYearList,
		SectionSelector: "div.ext-discussiontools-init-section",
		Months: monthMap("январь", "февраль", "март", "апрель", "май", "июнь",
			"июль", "август", "сентябрь", "октябрь", "ноябрь", "декабрь"),
	},
	"uk": {
		BaseURL:         "https://uk.wikipedia.org",
		ArchivePath:     "/wiki/Вікіпедія:Проєкт:Чи_ви_знаєте/Архів_рубрики",
		Layout:          layoutYearList,
		SectionSelector: "div.ext-discussiontools-init-section",
		Months: monthMap("січень", "лютий", "березень", "квітень", "травень",
			"червень", "липень", "серпень", "вересень", "жовтень", "листопад",
			"грудень"),
	},
	"de": {
		BaseURL:         "https://de.wikipedia.org",
		ArchivePath:     "/wiki/Wikipedia:Hauptseite/Schon_gewusst/Archiv",
		Layout:          layoutYearList,
		SectionSelector: "div.mw-heading.mw-heading3",
		Months: monthMap("januar", "februar", "märz", "april", "mai", "juni",
			"juli", "august", "september", "oktober", "november", "dezember"),
	},
	"fr": {
		BaseURL:         "https://fr.wikipedia.org",
		ArchivePath:     "/wiki/Wikipédia:Le_saviez-vous_%3F",
		Layout:          layoutYearList,
		SectionSelector: "div.mw-heading.mw-heading3",
		Months: monthMap("janvier", "février", "mars", "avril", "mai", "juin",
			"juillet", "août", "septembre", "octobre", "novembre", "décembre"),
	},
	"nl": {
		BaseURL:         "https://nl.wikipedia.org",
		ArchivePath:     "/wiki/Wikipedia:Wist_je_dat",
		Layout:          layoutYearList,
		SectionSelector: "div.mw-heading.mw-heading3",
		Months: monthMap("januari", "februari", "maart", "april", "mei", "juni",
			"juli", "augustus", "september", "oktober", "november", "december"),
	},
	"pl": {
		BaseURL:         "https://pl.wikipedia.org",
		ArchivePath:     "/wiki/Wikiprojekt:Czy_wiesz/archiwum",
		Layout:          layoutYearList,
		SectionSelector: "div.mw-heading.mw-heading3",
		Months: monthMap("styczeń", "luty", "marzec", "kwiecień", "maj",
			"czerwiec", "lipiec", "sierpień", "wrzesień", "październik",
			"listopad", "grudzień"),
	},
	"pt": {
		BaseURL:         "https://pt.wikipedia.org",
		ArchivePath:     "/wiki/Wikipédia:Sabia_que",
		Layout:          layoutYearList,
		SectionSelector: "div.mw-heading.mw-heading3",
		Months: monthMap("janeiro", "fevereiro", "março", "abril", "maio",
			"junho", "julho", "agosto", "setembro", "outubro", "novembro",
			"dezembro"),
	},
	"sv": {
		BaseURL:         "https://sv.wikipedia.org",
		ArchivePath:     "/wiki/Wikipedia:Visste_du_att",
		Layout:          layoutYearList,
		SectionSelector: "div.mw-heading.mw-heading3",
		Months: monthMap("januari", "februari", "mars", "april", "maj", "juni",
			"juli", "augusti", "september", "oktober", "november", "december"),
	},
	"vi": {
		BaseURL:         "https://vi.wikipedia.org",
		ArchivePath:     "/wiki/Wikipedia:Bạn_có_biết",
		Layout:          layoutYearList,
		SectionSelector: "div.mw-heading.mw-heading3",
		Months: monthMap("tháng 1", "tháng 2", "tháng 3", "tháng 4", "tháng 5",
			"tháng 6", "tháng 7", "tháng 8", "tháng 9", "tháng 10", "tháng 11",
			"tháng 12"),
	},
	"zh": {
		BaseURL:         "https://zh.wikipedia.org",
		ArchivePath:     "/wiki/Wikipedia:新条目推荐",
		Layout:          layoutYearList,
		SectionSelector: "div.mw-heading.mw-heading3",
		Months: monthMap("1月", "2月", "3月", "4月", "5月", "6月",
			"7月", "8月", "9月", "10月", "11月", "12月"),
	},
}

// RulesFor returns the archive rules for a language code.
func RulesFor(lang string) (Rules, error) {
	lang = strings.ToLower(strings.TrimSpace(lang))
	r, ok := languageRules[lang]
	if !ok {
		return Rules{}, fmt.Errorf("dyk: unsupported language %q (supported: %s)",
			lang, strings.Join(Languages(), ", "))
	}
	return r, nil
}

// Languages lists supported language codes in sorted order.
func Languages() []string {
	out := make([]string, 0, len(languageRules))
	for k := range languageRules {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// MonthNumber resolves a local month name for lang. The name may carry a
// year or other decoration; the longest matching month name wins so that
// e.g. "tháng 11" is not mistaken for "tháng 1".
func MonthNumber(lang, name string) (time.Month, bool) {
	r, err := RulesFor(lang)
	if err != nil {
		return 0, false
	}

	name = strings.ToLower(strings.TrimSpace(name))
	if m, ok := r.Months[name]; ok {
		return m, true
	}

	best := time.Month(0)
	bestLen := 0
	for k, m := range r.Months {
		if strings.Contains(name, k) && len(k) > bestLen {
			best = m
			bestLen = len(k)
		}
	}
	if bestLen == 0 {
		return 0, false
	}
	return best, true
}

func monthMap(names ...string) map[string]time.Month {
	m := make(map[string]time.Month, len(names))
	for i, n := range names {
		m[n] = time.Month(i + 1)
	}
	return m
}
