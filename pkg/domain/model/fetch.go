package model

import (
	"strconv"
	"strings"
)

// SinceKind selects how far back a timeline is materialized
type SinceKind int

const (
	SinceKindAll SinceKind = iota
	SinceKindCount
	SinceKindTag
)

// Since bounds the releases kept in a timeline: all of them, the latest N, or the
// releases strictly newer than a tag.
type Since struct {
	Kind  SinceKind
	Count int
	Tag   string
}

// SinceAll keeps every release
func SinceAll() Since { return Since{Kind: SinceKindAll} }

// SinceCount keeps at most n releases
func SinceCount(n int) Since { return Since{Kind: SinceKindCount, Count: n} }

// SinceTag keeps releases strictly newer than tag
func SinceTag(tag string) Since { return Since{Kind: SinceKindTag, Tag: tag} }

// ParseSince parses a look-back argument: empty means all releases, a non-negative
// integer is a release count, anything else is a tag name. A "tag:" prefix forces a tag,
// so numeric tags such as "2020" can be given.
func ParseSince(s string) Since {
	s = strings.TrimSpace(s)
	if s == "" {
		return SinceAll()
	}
	if tag, ok := strings.CutPrefix(s, "tag:"); ok {
		return SinceTag(tag)
	}
	if n, err := strconv.Atoi(s); err == nil && n >= 0 {
		return SinceCount(n)
	}
	return SinceTag(s)
}

// String returns the canonical form used in cache keys and logs
func (s Since) String() string {
	switch s.Kind {
	case SinceKindCount:
		return strconv.Itoa(s.Count)
	case SinceKindTag:
		return "tag:" + s.Tag
	default:
		return "all"
	}
}

// Strategy selects how commit windows are fetched
type Strategy string

const (
	// StrategyHistory walks the default branch history once
	StrategyHistory Strategy = "history"
	// StrategyCompare compares adjacent release tags
	StrategyCompare Strategy = "compare"
)

// FetchOptions controls how a RepositoryInfo is built
type FetchOptions struct {
	Since          Since
	Strategy       Strategy
	IncludeCommits bool
	// Refresh bypasses cached snapshots
	Refresh bool
}

// CacheKeyPrefix is the key prefix shared by every snapshot of a repository. Repository
// names are case-insensitive on GitHub, so the prefix is lower-cased.
func CacheKeyPrefix(fullName string) string {
	return strings.ToLower(fullName) + ":"
}

// CacheKey identifies a snapshot of a repository built with these options
func (o FetchOptions) CacheKey(fullName string) string {
	strategy := o.Strategy
	if strategy == "" {
		strategy = StrategyHistory
	}
	return CacheKeyPrefix(fullName) + strings.Join([]string{
		"since=" + o.Since.String(),
		"strategy=" + string(strategy),
		"commits=" + strconv.FormatBool(o.IncludeCommits),
	}, ":")
}
