// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package mention

import (
	"regexp"
	"sort"
)

// MatchType classifies a scanned mention candidate.
type MatchType string

const (
	// MatchUser is an @-mention of a user or alias group. Which of
	// the two it resolves to is decided later, by the resolver.
	MatchUser MatchType = "user"
	// MatchSpecial is @here or @channel.
	MatchSpecial MatchType = "special"
	// MatchChannel is a #-reference to a channel.
	MatchChannel MatchType = "channel"
)

// Match is one mention candidate found by Scan. Offsets are byte
// offsets into the source text, half-open [Start,End). The mention
// character class is ASCII, so byte and rune boundaries coincide at
// match edges.
type Match struct {
	Type  MatchType
	Start int
	End   int
	// Text is the literal matched text including the trigger
	// character ("@alice", "#dev").
	Text string
	// Query is the text after the trigger, used for directory
	// resolution ("alice", "dev").
	Query string
}

var (
	// Fenced blocks are matched lazily so adjacent fences do not
	// merge; (?s) lets a fence span lines.
	fencedRegionPattern = regexp.MustCompile("(?s)```.*?```")
	inlineRegionPattern = regexp.MustCompile("`[^`]*`")

	userMentionPattern    = regexp.MustCompile(`@([A-Za-z0-9_-]+)`)
	channelMentionPattern = regexp.MustCompile(`#([A-Za-z0-9_-]+)`)
)

// codeRegion is a [start,end) byte range covered by fenced or inline
// code. Mentions wholly inside a region are suppressed.
type codeRegion struct {
	start int
	end   int
}

// codeRegions locates all code regions in text. Fenced blocks are
// scanned first and take precedence: an inline backtick inside a
// fence does not re-split the fence, so inline candidates overlapping
// a fenced region are discarded.
func codeRegions(text string) []codeRegion {
	var regions []codeRegion
	for _, loc := range fencedRegionPattern.FindAllStringIndex(text, -1) {
		regions = append(regions, codeRegion{start: loc[0], end: loc[1]})
	}
	fencedCount := len(regions)
	for _, loc := range inlineRegionPattern.FindAllStringIndex(text, -1) {
		candidate := codeRegion{start: loc[0], end: loc[1]}
		overlapsFence := false
		for _, fence := range regions[:fencedCount] {
			if candidate.start < fence.end && fence.start < candidate.end {
				overlapsFence = true
				break
			}
		}
		if !overlapsFence {
			regions = append(regions, candidate)
		}
	}
	return regions
}

// contains reports whether the whole match range lies inside the
// region.
func (r codeRegion) contains(start, end int) bool {
	return r.start <= start && end <= r.end
}

// Scan finds all mention candidates in text: @-mentions (classified
// user, or special for the case-sensitive keywords "here" and
// "channel") and #-channel references. Candidates wholly contained in
// a code region are excluded. The result is sorted by ascending Start;
// matches never overlap because "@" and "#" are disjoint triggers and
// each regex consumes its own characters.
func Scan(text string) []Match {
	if text == "" {
		return nil
	}
	regions := codeRegions(text)

	var matches []Match
	appendMatches := func(pattern *regexp.Regexp, classify func(query string) MatchType) {
		for _, loc := range pattern.FindAllStringSubmatchIndex(text, -1) {
			start, end := loc[0], loc[1]
			suppressed := false
			for _, region := range regions {
				if region.contains(start, end) {
					suppressed = true
					break
				}
			}
			if suppressed {
				continue
			}
			query := text[loc[2]:loc[3]]
			matches = append(matches, Match{
				Type:  classify(query),
				Start: start,
				End:   end,
				Text:  text[start:end],
				Query: query,
			})
		}
	}

	appendMatches(userMentionPattern, func(query string) MatchType {
		// Case-sensitive: "@Here" is a user candidate, not special.
		if query == "here" || query == "channel" {
			return MatchSpecial
		}
		return MatchUser
	})
	appendMatches(channelMentionPattern, func(string) MatchType {
		return MatchChannel
	})

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].Start < matches[j].Start
	})
	return matches
}
