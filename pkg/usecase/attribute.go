package usecase

import (
	"context"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/reltrace/pkg/domain/model"
)

var mergeMessagePattern = regexp.MustCompile(`^Merge pull request #(\d+) from (\S+)(?:\n\n(.+))?`)

// AttributionWarning reports a merge recovered from its commit message instead of the
// merge-commit index. Squash or rebase merges can match the message pattern by accident,
// so these merges are best effort.
type AttributionWarning struct {
	CommitHash string
	PRNumber   int
}

func (w AttributionWarning) String() string {
	return fmt.Sprintf("merge of PR #%d attributed from the message of commit %s", w.PRNumber, w.CommitHash)
}

// AttributeMerges returns the merges among commits, newest first. commits are the
// commits of one window, newest first. A commit whose hash is the merge commit of a pull
// request yields that pull request; otherwise a standard merge-commit message yields a
// merge of unknown author.
func AttributeMerges(ctx context.Context, commits []model.Commit, prs []model.PullRequest) ([]model.Merge, []AttributionWarning) {
	logger := ctxlog.From(ctx)

	byMergeCommit := make(map[string]*model.PullRequest)
	byNumber := make(map[int]*model.PullRequest, len(prs))
	for i := range prs {
		pr := &prs[i]
		byNumber[pr.Number] = pr
		if pr.MergeCommitHash != "" {
			byMergeCommit[pr.MergeCommitHash] = pr
		}
	}

	var merges []model.Merge
	var warnings []AttributionWarning
	for i := len(commits) - 1; i >= 0; i-- {
		c := commits[i]

		if pr, ok := byMergeCommit[c.Hash]; ok {
			number := pr.Number
			merges = append(merges, model.Merge{
				PRNumber: &number,
				Title:    strings.TrimSpace(pr.Title),
				Branch:   pr.HeadRef,
				Author:   pr.Author,
			})
			continue
		}

		m := mergeMessagePattern.FindStringSubmatch(c.Message)
		if m == nil {
			continue
		}
		number, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}

		title := strings.TrimSpace(m[3])
		if pr, ok := byNumber[number]; ok {
			title = strings.TrimSpace(pr.Title)
		}
		merges = append(merges, model.Merge{
			PRNumber: &number,
			Title:    title,
			Branch:   m[2],
			Author:   model.UnknownAuthor,
		})

		w := AttributionWarning{CommitHash: c.Hash, PRNumber: number}
		warnings = append(warnings, w)
		logger.Warn("Merge attributed from commit message", "commit", c.Hash, "pr_number", number)
	}

	slices.Reverse(merges)
	return merges, warnings
}
