// Package crosswalk models the time-windowed variable-to-concept mapping
// that drives harmonization: loading, normalization, validation, per-year
// expansion, and the inverse interval compaction used when emitting a
// human-reviewable crosswalk.
package crosswalk

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"panelcli/pkg/contracts/domain"
)

// Normalizer canonicalizes grouping keys and source variable names before
// any matching happens. The same raw text can arrive with different casing,
// padding, or survey-family synonyms across two decades of files.
type Normalizer struct {
	aliases map[string]string
}

// NewNormalizer builds a normalizer from a grouping-key alias map. Alias
// keys and values are themselves normalized, so config authors can write
// them in any case.
func NewNormalizer(aliases map[string]string) *Normalizer {
	n := &Normalizer{aliases: make(map[string]string, len(aliases))}
	for from, to := range aliases {
		n.aliases[canonical(from)] = canonical(to)
	}
	return n
}

// GroupingKey canonicalizes a grouping key: trim, uppercase, strip interior
// spaces, then resolve through the alias map.
func (n *Normalizer) GroupingKey(s string) string {
	key := canonical(s)
	if n == nil || n.aliases == nil {
		return key
	}
	if alias, ok := n.aliases[key]; ok {
		return alias
	}
	return key
}

// SourceVar canonicalizes a raw variable name: trim and uppercase.
func (n *Normalizer) SourceVar(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// NormalizeRule returns a copy of the rule with canonical keys.
func (n *Normalizer) NormalizeRule(r domain.CrosswalkRule) domain.CrosswalkRule {
	r.GroupingKey = n.GroupingKey(r.GroupingKey)
	r.SourceVar = n.SourceVar(r.SourceVar)
	r.ConceptKey = strings.TrimSpace(r.ConceptKey)
	return r
}

func canonical(s string) string {
	return strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(s)), " ", "")
}

// LoadCSV reads crosswalk rules from a delimited file. Required columns:
// concept_key, grouping_key, source_var, year_start, year_end. Optional:
// weight (default 1.0), label, notes. Blank year bounds mean an unbounded
// span, which expansion later clips to the observed data range.
func LoadCSV(path string) ([]domain.CrosswalkRule, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open crosswalk file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read crosswalk header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\uFEFF")))] = i
	}
	for _, required := range []string{"concept_key", "grouping_key", "source_var", "year_start", "year_end"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("crosswalk missing required column %q", required)
		}
	}

	var rules []domain.CrosswalkRule
	line := 1
	for {
		record, err := reader.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("read crosswalk line %d: %w", line+1, err)
		}
		line++

		field := func(name string) string {
			idx, ok := cols[name]
			if !ok || idx >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[idx])
		}

		// Skip rows with no concept assignment; templates carry unmapped
		// candidate rows that curators have not filled in yet.
		if field("concept_key") == "" {
			continue
		}

		yearStart, err := parseYear(field("year_start"), domain.YearUnboundedStart)
		if err != nil {
			return nil, fmt.Errorf("crosswalk line %d: invalid year_start: %w", line, err)
		}
		yearEnd, err := parseYear(field("year_end"), domain.YearUnboundedEnd)
		if err != nil {
			return nil, fmt.Errorf("crosswalk line %d: invalid year_end: %w", line, err)
		}

		weight := 1.0
		if raw := field("weight"); raw != "" {
			weight, err = strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, fmt.Errorf("crosswalk line %d: invalid weight %q: %w", line, raw, err)
			}
		}

		rules = append(rules, domain.CrosswalkRule{
			ConceptKey:  field("concept_key"),
			GroupingKey: field("grouping_key"),
			SourceVar:   field("source_var"),
			YearStart:   yearStart,
			YearEnd:     yearEnd,
			Weight:      weight,
			Label:       field("label"),
			Notes:       field("notes"),
		})
	}

	return rules, nil
}

func parseYear(raw string, unbounded int) (int, error) {
	if raw == "" {
		return unbounded, nil
	}
	year, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	return year, nil
}
