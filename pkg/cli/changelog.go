package cli

import (
	"context"
	"encoding/json"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/reltrace/pkg/infra/manifest"
	"github.com/m-mizutani/reltrace/pkg/usecase"
	"github.com/urfave/cli/v3"
)

func cmdChangelog() *cli.Command {
	var (
		tf             timelineFlags
		initialVersion string
		finalVersion   string
		metaPackages   []string
		format         string
		webURL         string
	)

	flags := append([]cli.Flag{
		&cli.StringFlag{
			Name:        "initial-version",
			Usage:       "Initial manifest: a key of the config file or a JSON/TOML file",
			Required:    true,
			Destination: &initialVersion,
		},
		&cli.StringFlag{
			Name:        "final-version",
			Usage:       "Final manifest: a key of the config file or a JSON/TOML file",
			Required:    true,
			Destination: &finalVersion,
		},
		&cli.StringSliceFlag{
			Name:        "meta-package",
			Usage:       "Merge the manifests of this meta package at both versions, repeatable",
			Destination: &metaPackages,
		},
		&cli.StringFlag{
			Name:        "format",
			Usage:       "Output format (markdown, json)",
			Value:       "markdown",
			Destination: &format,
		},
		&cli.StringFlag{
			Name:        "github-url",
			Usage:       "GitHub web URL used for pull request links",
			Value:       "https://github.com",
			Destination: &webURL,
			Sources:     cli.EnvVars("RELTRACE_GITHUB_URL"),
		},
	}, tf.flags()...)

	return &cli.Command{
		Name:  "changelog",
		Usage: "List merges between two versions of a package manifest",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			if format != "markdown" && format != "json" {
				return goerr.New("unknown output format", goerr.V("format", format))
			}

			fileCfg, err := tf.file.Load()
			if err != nil {
				return err
			}
			opts, err := tf.fetch.Options()
			if err != nil {
				return err
			}

			resolver := manifest.NewResolver(fileCfg.Manifests, fileCfg.MetaPackages)
			initial, err := resolver.Resolve(ctx, initialVersion, metaPackages)
			if err != nil {
				return err
			}
			final, err := resolver.Resolve(ctx, finalVersion, metaPackages)
			if err != nil {
				return err
			}

			_, timeline, cleanup, err := tf.build(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			changelog := usecase.NewChangelog(timeline,
				usecase.WithPackageRepositories(fileCfg.Packages),
				usecase.WithDefaultOwner(fileCfg.Owner),
				usecase.WithFetchOptions(opts),
			)

			summary, err := changelog.Generate(ctx, initial, final)
			if err != nil {
				return err
			}

			ctxlog.From(ctx).Info("Generated changelog",
				"initial", initialVersion,
				"final", finalVersion,
				"new", len(summary.New),
				"removed", len(summary.Removed),
				"updates", len(summary.Updates),
			)

			w := c.Root().Writer
			if format == "json" {
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				if err := enc.Encode(summary); err != nil {
					return goerr.Wrap(err, "failed to write changelog")
				}
			} else if err := usecase.RenderMarkdown(w, summary, webURL); err != nil {
				return err
			}

			reportFailures(c.Root().ErrWriter, summary.Failures)
			return fatalFailure(summary.Failures)
		},
	}
}
