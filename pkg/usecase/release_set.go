package usecase

import (
	"context"
	"slices"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/reltrace/pkg/domain/model"
	"github.com/m-mizutani/reltrace/pkg/domain/types"
)

// ParseVersion parses a release tag as a semantic version. A leading "v" and missing
// minor/patch components are accepted.
func ParseVersion(tag string) (*semver.Version, error) {
	v, err := semver.NewVersion(strings.TrimSpace(tag))
	if err != nil {
		return nil, goerr.Wrap(types.ErrMalformedVersion, "failed to parse release version",
			goerr.V("tag", tag),
			goerr.V("reason", err.Error()),
		)
	}
	return v, nil
}

// BuildReleaseSet filters raw releases down to the ones that take part in windowing and
// resolves each to its commit. Drafts, pre-releases and tags that are not semantic
// versions are dropped and logged. The result is sorted by version, newest first; equal
// versions keep fetch order. A release whose tag cannot be resolved fails the build.
func BuildReleaseSet(ctx context.Context, raws []model.RawRelease) ([]model.Release, error) {
	logger := ctxlog.From(ctx)

	releases := make([]model.Release, 0, len(raws))
	for _, raw := range raws {
		if raw.IsDraft || raw.IsPrerelease {
			logger.Debug("Skipping release",
				"tag", raw.TagName,
				"draft", raw.IsDraft,
				"prerelease", raw.IsPrerelease,
			)
			continue
		}

		version, err := ParseVersion(raw.TagName)
		if err != nil {
			logger.Warn("Dropping release with malformed version", "tag", raw.TagName, "error", err)
			continue
		}

		hash, date, err := ResolveTag(raw.Tag)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to resolve release tag", goerr.V("tag", raw.TagName))
		}

		releases = append(releases, model.Release{
			TagName:     raw.TagName,
			Version:     version,
			PublishedAt: raw.PublishedAt,
			CommitHash:  hash,
			CommitDate:  date,
		})
	}

	slices.SortStableFunc(releases, func(a, b model.Release) int {
		return b.Version.Compare(a.Version)
	})

	return releases, nil
}
