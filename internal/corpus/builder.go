// Package corpus turns raw scraped facts into the two benchmark splits:
// corpus.jsonl (article documents) and queries.jsonl (fact queries).
package corpus

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/wikifactslab/wikifacts/internal/dataset"
	"github.com/wikifactslab/wikifacts/internal/dyk"
)

// Extractor fetches article plain text by URL.
type Extractor interface {
	Extract(ctx context.Context, articleURL string) (string, error)
}

type Builder struct {
	wiki Extractor
	lang string
}

func NewBuilder(wiki Extractor, lang string) *Builder {
	return &Builder{wiki: wiki, lang: strings.ToLower(strings.TrimSpace(lang))}
}

// Result is one dataset build.
type Result struct {
	Corpus  []dataset.Document
	Queries []dataset.Query
	// FailedLinks are article URLs whose extract could not be fetched or
	// came back empty.
	FailedLinks []string
}

type flatFact struct {
	fact     dyk.Fact
	factDate string
}

// Build fetches every linked article once and assembles both splits.
// Document ids are c-0.. in first-seen order, query ids q-0.. in archive
// order (years ascending, months ascending, facts in page order).
func (b *Builder) Build(ctx context.Context, raw dyk.RawFacts, progress func(done, total int)) (*Result, error) {
	if b == nil || b.wiki == nil {
		return nil, errors.New("corpus: nil builder")
	}
	if ctx == nil {
		return nil, errors.New("corpus: nil context")
	}
	if len(raw) == 0 {
		return nil, errors.New("corpus: no facts to build from")
	}

	facts := b.flatten(raw)

	out := &Result{}
	linkIDs := make(map[string]string)
	failed := make(map[string]struct{})

	for i, ff := range facts {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		for _, link := range append(append([]string{}, ff.fact.Links...), ff.fact.RelevantLinks...) {
			link = strings.TrimSpace(link)
			if link == "" {
				continue
			}
			if _, done := linkIDs[link]; done {
				continue
			}
			if _, bad := failed[link]; bad {
				continue
			}

			text, err := b.wiki.Extract(ctx, link)
			if err != nil {
				if ctx.Err() != nil {
					return out, ctx.Err()
				}
				failed[link] = struct{}{}
				out.FailedLinks = append(out.FailedLinks, link)
				continue
			}

			text = NormalizeText(text)
			if text == "" {
				failed[link] = struct{}{}
				out.FailedLinks = append(out.FailedLinks, link)
				continue
			}

			id := "c-" + strconv.Itoa(len(out.Corpus))
			linkIDs[link] = id
			out.Corpus = append(out.Corpus, dataset.Document{
				ID:       id,
				Text:     text,
				Abstract: Abstract(text),
				Metadata: dataset.DocumentMeta{URL: link, Language: b.lang},
			})
		}

		q := dataset.Query{
			ID:               "q-" + strconv.Itoa(i),
			Text:             ff.fact.Text,
			LinkedArticles:   resolveLinks(ff.fact.Links, linkIDs),
			RelevantArticles: resolveLinks(ff.fact.RelevantLinks, linkIDs),
			Metadata: dataset.QueryMeta{
				FactDate: ff.factDate,
				Section:  ff.fact.Section,
				Language: b.lang,
			},
		}
		out.Queries = append(out.Queries, q)

		if progress != nil {
			progress(i+1, len(facts))
		}
	}

	if len(out.Corpus) == 0 {
		return out, errors.New("corpus: no articles could be fetched")
	}
	return out, nil
}

// flatten orders the raw facts deterministically and stamps each with its
// archive month as a YYYY-MM fact date.
func (b *Builder) flatten(raw dyk.RawFacts) []flatFact {
	years := make([]string, 0, len(raw))
	for y := range raw {
		years = append(years, y)
	}
	sort.Strings(years)

	var out []flatFact
	for _, year := range years {
		months := make([]string, 0, len(raw[year]))
		for m := range raw[year] {
			months = append(months, m)
		}
		sort.SliceStable(months, func(i, j int) bool {
			mi, iok := dyk.MonthNumber(b.lang, months[i])
			mj, jok := dyk.MonthNumber(b.lang, months[j])
			if iok && jok {
				return mi < mj
			}
			if iok != jok {
				return iok
			}
			return months[i] < months[j]
		})

		for _, month := range months {
			date := ""
			if m, ok := dyk.MonthNumber(b.lang, month); ok {
				date = fmt.Sprintf("%s-%02d", year, int(m))
			}
			for _, f := range raw[year][month] {
				out = append(out, flatFact{fact: f, factDate: date})
			}
		}
	}
	return out
}

func resolveLinks(links []string, linkIDs map[string]string) []string {
	var out []string
	seen := make(map[string]struct{}, len(links))
	for _, link := range links {
		id, ok := linkIDs[strings.TrimSpace(link)]
		if !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// Write stores both splits under dir.
func Write(dir string, res *Result) error {
	if res == nil {
		return errors.New("corpus: nil result")
	}
	if err := dataset.WriteJSONL(filepath.Join(dir, dataset.CorpusFile), res.Corpus); err != nil {
		return err
	}
	return dataset.WriteJSONL(filepath.Join(dir, dataset.QueriesFile), res.Queries)
}
