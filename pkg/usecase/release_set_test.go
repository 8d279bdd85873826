package usecase_test

import (
	"context"
	"errors"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/reltrace/pkg/domain/model"
	"github.com/m-mizutani/reltrace/pkg/domain/types"
	"github.com/m-mizutani/reltrace/pkg/usecase"
)

func tagsOf(releases []model.Release) []string {
	tags := make([]string, len(releases))
	for i, r := range releases {
		tags[i] = r.TagName
	}
	return tags
}

func TestBuildReleaseSet(t *testing.T) {
	ctx := context.Background()

	t.Run("filters drafts, prereleases and malformed tags", func(t *testing.T) {
		draft := rawRelease("3.0.0", "c3")
		draft.IsDraft = true
		pre := rawRelease("2.5.0", "c2")
		pre.IsPrerelease = true

		releases, err := usecase.BuildReleaseSet(ctx, []model.RawRelease{
			rawRelease("1.0.0", "c1"),
			draft,
			pre,
			rawRelease("nightly", "c4"),
			rawRelease("2.0.0", "c5"),
		})
		gt.NoError(t, err)
		gt.Equal(t, tagsOf(releases), []string{"2.0.0", "1.0.0"})
		gt.Equal(t, releases[0].CommitHash, "c5")
		gt.Value(t, releases[0].Version).NotNil()
	})

	t.Run("sorted by version, not by string", func(t *testing.T) {
		releases, err := usecase.BuildReleaseSet(ctx, []model.RawRelease{
			rawRelease("v1.9", "a"),
			rawRelease("v1.10", "b"),
			rawRelease("v1.2.3", "c"),
			rawRelease("2", "d"),
		})
		gt.NoError(t, err)
		gt.Equal(t, tagsOf(releases), []string{"2", "v1.10", "v1.9", "v1.2.3"})
	})

	t.Run("equal versions keep fetch order", func(t *testing.T) {
		releases, err := usecase.BuildReleaseSet(ctx, []model.RawRelease{
			rawRelease("1.0", "a"),
			rawRelease("v1.0.0", "b"),
			rawRelease("0.9", "c"),
		})
		gt.NoError(t, err)
		gt.Equal(t, tagsOf(releases), []string{"1.0", "v1.0.0", "0.9"})
	})

	t.Run("annotated tags are resolved", func(t *testing.T) {
		raw := rawRelease("1.0.0", "")
		raw.Tag = &model.TagRef{
			Kind:   model.TagKindTag,
			Hash:   "tagobj",
			Target: &model.TagRef{Kind: model.TagKindCommit, Hash: "c1"},
		}
		releases, err := usecase.BuildReleaseSet(ctx, []model.RawRelease{raw})
		gt.NoError(t, err)
		gt.Equal(t, releases[0].CommitHash, "c1")
	})

	t.Run("unresolvable tag fails the build", func(t *testing.T) {
		raw := rawRelease("1.0.0", "")
		raw.Tag = &model.TagRef{Kind: "blob"}
		_, err := usecase.BuildReleaseSet(ctx, []model.RawRelease{raw})
		gt.True(t, errors.Is(err, types.ErrUnresolvableTag))
	})

	t.Run("no releases", func(t *testing.T) {
		releases, err := usecase.BuildReleaseSet(ctx, nil)
		gt.NoError(t, err)
		gt.Equal(t, len(releases), 0)
	})
}

func TestParseVersion(t *testing.T) {
	v, err := usecase.ParseVersion(" v4.2 ")
	gt.NoError(t, err)
	gt.Equal(t, v.String(), "4.2.0")

	_, err = usecase.ParseVersion("release-candidate")
	gt.True(t, errors.Is(err, types.ErrMalformedVersion))
}
