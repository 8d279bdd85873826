package usecase

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/reltrace/pkg/domain/interfaces"
	"github.com/m-mizutani/reltrace/pkg/domain/model"
)

// Diff compares two manifests package by package and collects, for every updated
// package, the merges of the release windows between the two versions. repoInfos are
// looked up through packageRepos (package name to owner/name), falling back to a
// repository whose name equals the package name.
func Diff(ctx context.Context, repoInfos []*model.RepositoryInfo, packageRepos map[string]string, initial, final model.VersionManifest) (*model.ChangeSummary, error) {
	logger := ctxlog.From(ctx)

	summary := &model.ChangeSummary{
		New:     []model.PackageVersion{},
		Removed: []string{},
		Updates: []model.PackageUpdate{},
	}

	for _, name := range manifestNames(initial, final) {
		v1, inInitial := initial[name]
		v2, inFinal := final[name]

		switch {
		case inInitial && inFinal && v1 == v2:
			// unchanged
		case !inInitial:
			if v2 != "" {
				summary.New = append(summary.New, model.PackageVersion{Name: name, Version: v2})
			}
		case v2 == "":
			summary.Removed = append(summary.Removed, name)
		default:
			info := findRepositoryInfo(repoInfos, packageRepos, name)
			if info == nil {
				logger.Warn("No repository information for updated package", "package", name)
				summary.Updates = append(summary.Updates, model.PackageUpdate{
					Name:     name,
					Version1: v1,
					Version2: v2,
					Versions: []string{v1, v2},
					Merges:   []model.Merge{},
				})
				continue
			}
			summary.Updates = append(summary.Updates, packageUpdate(ctx, info, name, v1, v2))
		}
	}

	slices.SortFunc(summary.New, func(a, b model.PackageVersion) int {
		return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	})
	slices.Sort(summary.Removed)
	slices.SortFunc(summary.Updates, func(a, b model.PackageUpdate) int {
		return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	})

	return summary, nil
}

func manifestNames(initial, final model.VersionManifest) []string {
	names := make([]string, 0, len(initial)+len(final))
	for name := range initial {
		names = append(names, name)
	}
	for name := range final {
		if _, ok := initial[name]; !ok {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names
}

func findRepositoryInfo(repoInfos []*model.RepositoryInfo, packageRepos map[string]string, pkg string) *model.RepositoryInfo {
	if fullName, ok := packageRepos[pkg]; ok {
		for _, info := range repoInfos {
			if strings.EqualFold(info.FullName(), fullName) {
				return info
			}
		}
		return nil
	}
	for _, info := range repoInfos {
		if strings.EqualFold(info.Name, pkg) {
			return info
		}
	}
	return nil
}

// packageUpdate slices the windows of info to [index(v2), index(v1))
func packageUpdate(ctx context.Context, info *model.RepositoryInfo, name, v1, v2 string) model.PackageUpdate {
	logger := ctxlog.From(ctx).With("package", name, "repository", info.FullName())

	tags := info.ReleaseTags()
	start := indexOfVersion(tags, v2)
	if start < 0 {
		logger.Warn("Final version is not a known release, starting from the latest release",
			"version", v2,
			"releases", tags[1:],
		)
		start = min(1, len(tags))
	}
	end := indexOfVersion(tags, v1)
	if end < 0 {
		logger.Warn("Initial version is not a known release, using all known history",
			"version", v1,
			"releases", tags[1:],
		)
		end = len(tags)
	}
	if end < start {
		logger.Warn("Initial version is newer than final version", "version1", v1, "version2", v2)
		end = start
	}

	window := info.Releases[start:end]

	versions := []string{v1}
	merges := []model.Merge{}
	for i := len(window) - 1; i >= 0; i-- {
		versions = append(versions, window[i].ReleaseTag)
	}
	for _, w := range window {
		merges = append(merges, w.Merges...)
	}
	slices.Reverse(merges)

	return model.PackageUpdate{
		Name:       name,
		Repository: info.FullName(),
		Version1:   v1,
		Version2:   v2,
		Versions:   versions,
		Merges:     merges,
	}
}

// indexOfVersion finds version among window tags. Tags that differ only in form, such as
// "v1.2" and "1.2.0", match. The unreleased window is never matched.
func indexOfVersion(tags []string, version string) int {
	if version == "" {
		return -1
	}
	if i := slices.Index(tags, version); i > 0 {
		return i
	}
	want, err := ParseVersion(version)
	if err != nil {
		return -1
	}
	for i := 1; i < len(tags); i++ {
		if v, err := ParseVersion(tags[i]); err == nil && v.Equal(want) {
			return i
		}
	}
	return -1
}

type changelogUseCase struct {
	timeline     interfaces.TimelineUseCase
	packageRepos map[string]string
	defaultOwner string
	fetchOptions model.FetchOptions
}

// ChangelogOption is a functional option for the changelog use case
type ChangelogOption func(*changelogUseCase)

// WithPackageRepositories maps package names to owner/name
func WithPackageRepositories(m map[string]string) ChangelogOption {
	return func(uc *changelogUseCase) {
		uc.packageRepos = m
	}
}

// WithDefaultOwner sets the owner of packages without an explicit repository
func WithDefaultOwner(owner string) ChangelogOption {
	return func(uc *changelogUseCase) {
		uc.defaultOwner = owner
	}
}

// WithFetchOptions sets the options of the first fetch. Repositories missing the initial
// version are refetched with their whole history.
func WithFetchOptions(opts model.FetchOptions) ChangelogOption {
	return func(uc *changelogUseCase) {
		uc.fetchOptions = opts
	}
}

// NewChangelog creates a new instance of ChangelogUseCase
func NewChangelog(timeline interfaces.TimelineUseCase, opts ...ChangelogOption) interfaces.ChangelogUseCase {
	uc := &changelogUseCase{
		timeline:     timeline,
		fetchOptions: model.FetchOptions{Since: model.SinceAll()},
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// Generate fetches the repositories of updated packages and diffs the manifests.
// Repositories that could not be fetched are listed in the summary's failures.
func (uc *changelogUseCase) Generate(ctx context.Context, initial, final model.VersionManifest) (*model.ChangeSummary, error) {
	logger := ctxlog.From(ctx)

	repos := make(map[string]string)
	var fullNames []string
	for name, v1 := range initial {
		v2, ok := final[name]
		if !ok || v2 == "" || v1 == v2 {
			continue
		}
		fullName, ok := uc.repositoryOf(name)
		if !ok {
			logger.Warn("No repository configured for package", "package", name)
			continue
		}
		repos[name] = fullName
		fullNames = append(fullNames, fullName)
	}
	slices.Sort(fullNames)
	fullNames = slices.Compact(fullNames)

	infos, failures, err := uc.fetch(ctx, fullNames, uc.fetchOptions)
	if err != nil {
		return nil, err
	}

	if uc.fetchOptions.Since.Kind != model.SinceKindAll {
		var truncated []string
		for name, fullName := range repos {
			info := infos[fullName]
			if info != nil && indexOfVersion(info.ReleaseTags(), initial[name]) < 0 {
				truncated = append(truncated, fullName)
			}
		}
		if len(truncated) > 0 {
			slices.Sort(truncated)
			truncated = slices.Compact(truncated)
			logger.Info("Refetching repositories with whole history", "repositories", truncated)

			opts := uc.fetchOptions
			opts.Since = model.SinceAll()
			refetched, refetchFailures, err := uc.fetch(ctx, truncated, opts)
			if err != nil {
				return nil, err
			}
			failures = append(failures, refetchFailures...)
			for fullName, info := range refetched {
				infos[fullName] = info
			}
		}
	}

	repoInfos := make([]*model.RepositoryInfo, 0, len(infos))
	for _, fullName := range fullNames {
		if info := infos[fullName]; info != nil {
			repoInfos = append(repoInfos, info)
		}
	}

	summary, err := Diff(ctx, repoInfos, repos, initial, final)
	if err != nil {
		return nil, err
	}
	summary.Failures = failures
	return summary, nil
}

func (uc *changelogUseCase) repositoryOf(pkg string) (string, bool) {
	if fullName, ok := uc.packageRepos[pkg]; ok {
		return fullName, true
	}
	if uc.defaultOwner == "" {
		return "", false
	}
	return uc.defaultOwner + "/" + pkg, true
}

func (uc *changelogUseCase) fetch(ctx context.Context, fullNames []string, opts model.FetchOptions) (map[string]*model.RepositoryInfo, []model.RepositoryFailure, error) {
	result, err := uc.timeline.FetchAll(ctx, fullNames, opts)
	if err != nil {
		return nil, nil, goerr.Wrap(err, "failed to fetch repositories")
	}
	for _, f := range result.Failures {
		ctxlog.From(ctx).Warn("Repository is missing from changelog", "repository", f.Repository, "error", f.Error)
	}

	infos := make(map[string]*model.RepositoryInfo, len(result.Repositories))
	for _, info := range result.Repositories {
		infos[info.FullName()] = info
	}
	return infos, result.Failures, nil
}

// RenderMarkdown writes summary as a markdown changelog with one bullet per merged pull
// request. baseURL is the web root of the hosting service, e.g. https://github.com.
func RenderMarkdown(w io.Writer, summary *model.ChangeSummary, baseURL string) error {
	baseURL = strings.TrimSuffix(baseURL, "/")
	var b strings.Builder

	if len(summary.New) > 0 {
		b.WriteString("## New packages\n\n")
		for _, p := range summary.New {
			fmt.Fprintf(&b, "- %s %s\n", p.Name, p.Version)
		}
		b.WriteString("\n")
	}
	if len(summary.Removed) > 0 {
		b.WriteString("## Removed packages\n\n")
		for _, name := range summary.Removed {
			fmt.Fprintf(&b, "- %s\n", name)
		}
		b.WriteString("\n")
	}
	if len(summary.Updates) > 0 {
		b.WriteString("## Updated packages\n\n")
		for _, u := range summary.Updates {
			fmt.Fprintf(&b, "**%s: %s -> %s** (all versions: %s)\n",
				u.Name, u.Version1, u.Version2, strings.Join(u.Versions, " -> "))
			for _, m := range u.Merges {
				if m.PRNumber == nil || u.Repository == "" {
					fmt.Fprintf(&b, "  - %s\n", m.Title)
					continue
				}
				fmt.Fprintf(&b, "  - [PR %d](%s/%s/pull/%d): %s\n",
					*m.PRNumber, baseURL, u.Repository, *m.PRNumber, m.Title)
			}
			b.WriteString("\n")
		}
	}

	if _, err := io.WriteString(w, b.String()); err != nil {
		return goerr.Wrap(err, "failed to write changelog")
	}
	return nil
}
