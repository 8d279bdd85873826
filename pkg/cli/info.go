package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/reltrace/pkg/domain/model"
	"github.com/m-mizutani/reltrace/pkg/domain/types"
	"github.com/m-mizutani/reltrace/pkg/usecase"
	"github.com/m-mizutani/reltrace/pkg/utils/paginate"
	"github.com/urfave/cli/v3"
)

func cmdInfo() *cli.Command {
	var (
		tf     timelineFlags
		repos  []string
		orgs   []string
		output string
	)

	flags := append([]cli.Flag{
		&cli.StringSliceFlag{
			Name:        "repo",
			Aliases:     []string{"r"},
			Usage:       "Repository to fetch (owner/name), repeatable",
			Destination: &repos,
		},
		&cli.StringSliceFlag{
			Name:        "org",
			Usage:       "Fetch every source repository of the organization, repeatable",
			Destination: &orgs,
		},
		&cli.StringFlag{
			Name:        "output",
			Aliases:     []string{"o"},
			Usage:       "Write the JSON result to this file instead of stdout",
			Destination: &output,
		},
	}, tf.flags()...)

	return &cli.Command{
		Name:  "info",
		Usage: "Fetch release timelines of repositories as JSON",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			logger := ctxlog.From(ctx)

			fileCfg, err := tf.file.Load()
			if err != nil {
				return err
			}
			opts, err := tf.fetch.Options()
			if err != nil {
				return err
			}

			api, timeline, cleanup, err := tf.build(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			names, err := usecase.ExpandRepositories(ctx, api,
				append(orgs, fileCfg.Organizations...), append(repos, fileCfg.Repositories...),
				paginate.WithMaxPages(tf.fetch.MaxPages))
			if err != nil {
				return err
			}
			if len(names) == 0 {
				return goerr.New("no repositories given, use --repo, --org or the config file")
			}

			result, err := timeline.FetchAll(ctx, names, opts)
			if err != nil {
				return err
			}

			w := c.Root().Writer
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return goerr.Wrap(err, "failed to create output file", goerr.V("path", output))
				}
				defer f.Close()
				w = f
			}

			if err := writeResult(w, result); err != nil {
				return err
			}
			reportFailures(c.Root().ErrWriter, result.Failures)

			logger.Info("Wrote repository timelines",
				"run_id", result.RunID,
				"repositories", len(result.Repositories),
				"failures", len(result.Failures),
				"output", output,
			)
			return fatalFailure(result.Failures)
		},
	}
}

func writeResult(w io.Writer, result *model.BatchResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return goerr.Wrap(err, "failed to write result")
	}
	return nil
}

// reportFailures lists repositories that could not be fetched
func reportFailures(w io.Writer, failures []model.RepositoryFailure) {
	if len(failures) == 0 {
		return
	}

	red := color.New(color.FgRed, color.Bold)
	_, _ = red.Fprintf(w, "Failed to fetch %d repositories:\n", len(failures))
	for _, f := range failures {
		mark := ""
		if f.Fatal {
			mark = red.Sprint(" (fatal)")
		}
		_, _ = fmt.Fprintf(w, "  %s%s: %s\n", color.YellowString(f.Repository), mark, f.Error)
	}
}

// fatalFailure fails the run when a repository stalled. The partial result has been
// written by then; other failures leave the run successful.
func fatalFailure(failures []model.RepositoryFailure) error {
	f := model.FirstFatal(failures)
	if f == nil {
		return nil
	}
	return goerr.Wrap(types.ErrStalledPagination, "result is partial",
		goerr.V("repository", f.Repository),
		goerr.V("error", f.Error),
	)
}
