package extract

import (
	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/unicode/norm"

	"github.com/Sriram-PR/emailscope/pkg/config"
	"github.com/Sriram-PR/emailscope/pkg/models"
	"github.com/Sriram-PR/emailscope/pkg/parse"
)

// Extraction holds the three disjoint candidate sets of one extraction.
// An address appears in at most one of them; mailto wins over observed and
// generated addresses that were found on the page are dropped.
type Extraction struct {
	Found     []models.EmailCandidate // Observed in text
	Mailto    []models.EmailCandidate
	Generated []models.EmailCandidate
}

// All returns mailto, found and generated candidates in that order
func (x Extraction) All() []models.EmailCandidate {
	out := make([]models.EmailCandidate, 0, len(x.Found)+len(x.Mailto)+len(x.Generated))
	out = append(out, x.Mailto...)
	out = append(out, x.Found...)
	return append(out, x.Generated...)
}

// Extractor recognizes plain and obfuscated addresses in page text, harvests
// mailto links and generates role addresses for a domain.
// It is read-only after construction and safe for concurrent use.
type Extractor struct {
	recognizers []recognizer
	tables      *config.Tables
	log         *logrus.Entry
}

// NewExtractor builds the recognizer chain from the tables' context keywords
func NewExtractor(tables *config.Tables, log *logrus.Entry) (*Extractor, error) {
	byContext, err := contextRecognizer(tables.ContextKeywords)
	if err != nil {
		return nil, err
	}
	return &Extractor{
		recognizers: []recognizer{
			{name: "standard", find: matchAll(standardRe)},
			{name: "spaced", find: matchAll(spacedRe)},
			{name: "parenthesized", find: matchAll(parenRe)},
			{name: "word_obfuscated", find: composeObfuscated(wordRe)},
			{name: "bracket_obfuscated", find: composeObfuscated(bracketRe)},
			{name: "context", find: byContext},
		},
		tables: tables,
		log:    log,
	}, nil
}

// Observed runs every recognizer over text and returns the normalized, valid
// addresses de-duplicated in recognizer order. Text is NFKC-folded first so
// full-width "＠" and similar forms are recognized.
func (e *Extractor) Observed(text string) []string {
	if text == "" {
		return nil
	}
	text = norm.NFKC.String(text)

	seen := make(map[string]bool)
	var out []string
	for _, r := range e.recognizers {
		matches := r.find(text)
		for _, raw := range matches {
			email := Normalize(raw)
			if !ValidSyntax(email) || seen[email] {
				continue
			}
			seen[email] = true
			out = append(out, email)
		}
		if len(matches) > 0 {
			e.log.Tracef("Recognizer '%s' matched %d times", r.name, len(matches))
		}
	}
	return out
}

// Generate returns the synthesized role addresses for domain
func (e *Extractor) Generate(domain string) []string {
	return GenerateCandidates(domain, e.tables)
}

// Extract collects candidates from text and doc (either may be empty) and,
// when targetDomain is set, generated candidates for it.
func (e *Extractor) Extract(text string, doc *goquery.Document, targetDomain string) Extraction {
	origin := parse.BareDomain(targetDomain)
	var x Extraction

	mailto := MailtoAddresses(doc)
	known := make(map[string]bool, len(mailto))
	for _, email := range mailto {
		known[email] = true
		x.Mailto = append(x.Mailto, models.EmailCandidate{Address: email, Source: models.SourceMailto, Domain: origin})
	}
	for _, email := range e.Observed(text) {
		if known[email] {
			continue
		}
		known[email] = true
		x.Found = append(x.Found, models.EmailCandidate{Address: email, Source: models.SourceObserved, Domain: origin})
	}

	if origin != "" {
		for _, email := range e.Generate(origin) {
			if known[email] {
				continue
			}
			x.Generated = append(x.Generated, models.EmailCandidate{Address: email, Source: models.SourceGenerated, Domain: origin})
		}
	}

	e.log.WithFields(logrus.Fields{
		"found":     len(x.Found),
		"mailto":    len(x.Mailto),
		"generated": len(x.Generated),
	}).Debug("Extraction finished")
	return x
}
