package http

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/reltrace/pkg/domain/interfaces"
	"github.com/m-mizutani/reltrace/pkg/domain/model"
)

// TimelineHandler serves release timelines of repositories
type TimelineHandler struct {
	timelineUC interfaces.TimelineUseCase
}

// NewTimelineHandler creates a new TimelineHandler
func NewTimelineHandler(timelineUC interfaces.TimelineUseCase) *TimelineHandler {
	return &TimelineHandler{timelineUC: timelineUC}
}

// Handle serves GET /repos/{owner}/{repo}/timeline. Query parameters: since (count or
// tag), strategy (history or compare), commits and refresh (booleans).
func (h *TimelineHandler) Handle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := ctxlog.From(ctx)

	fullName := chi.URLParam(r, "owner") + "/" + chi.URLParam(r, "repo")

	opts, err := parseFetchOptions(r)
	if err != nil {
		writeError(ctx, w, err, http.StatusBadRequest)
		return
	}

	info, err := h.timelineUC.Fetch(ctx, fullName, opts)
	if err != nil {
		logger.Error("Failed to fetch timeline", "repository", fullName, "error", err)
		writeError(ctx, w, err, errorStatus(err))
		return
	}

	writeJSON(ctx, w, http.StatusOK, info)
}

func parseFetchOptions(r *http.Request) (model.FetchOptions, error) {
	q := r.URL.Query()

	opts := model.FetchOptions{
		Since:    model.ParseSince(q.Get("since")),
		Strategy: model.StrategyHistory,
	}

	switch s := model.Strategy(q.Get("strategy")); s {
	case "":
	case model.StrategyHistory, model.StrategyCompare:
		opts.Strategy = s
	default:
		return opts, goerr.New("unknown strategy", goerr.V("strategy", s))
	}

	for name, dst := range map[string]*bool{
		"commits": &opts.IncludeCommits,
		"refresh": &opts.Refresh,
	} {
		v := q.Get(name)
		if v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return opts, goerr.Wrap(err, "invalid boolean query parameter", goerr.V("name", name), goerr.V("value", v))
		}
		*dst = b
	}

	return opts, nil
}
