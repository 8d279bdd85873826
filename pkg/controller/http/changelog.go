package http

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/reltrace/pkg/domain/interfaces"
	"github.com/m-mizutani/reltrace/pkg/domain/model"
	"github.com/m-mizutani/reltrace/pkg/usecase"
)

const maxChangelogBody = 1 << 20

// ChangelogRequest is the body of POST /changelog
type ChangelogRequest struct {
	Initial model.VersionManifest `json:"initial"`
	Final   model.VersionManifest `json:"final"`
}

// ChangelogHandler diffs two manifests posted by the client
type ChangelogHandler struct {
	changelogUC interfaces.ChangelogUseCase
	baseURL     string
}

// NewChangelogHandler creates a new ChangelogHandler
func NewChangelogHandler(changelogUC interfaces.ChangelogUseCase, baseURL string) *ChangelogHandler {
	return &ChangelogHandler{
		changelogUC: changelogUC,
		baseURL:     baseURL,
	}
}

// Handle serves POST /changelog. The summary is JSON unless format=markdown is given.
func (h *ChangelogHandler) Handle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := ctxlog.From(ctx)

	var req ChangelogRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxChangelogBody)).Decode(&req); err != nil {
		writeError(ctx, w, goerr.Wrap(err, "invalid changelog request"), http.StatusBadRequest)
		return
	}
	if req.Initial == nil || req.Final == nil {
		writeError(ctx, w, goerr.New("both initial and final manifests are required"), http.StatusBadRequest)
		return
	}

	summary, err := h.changelogUC.Generate(ctx, req.Initial, req.Final)
	if err != nil {
		logger.Error("Failed to generate changelog", "error", err)
		writeError(ctx, w, err, errorStatus(err))
		return
	}

	if r.URL.Query().Get("format") != "markdown" {
		writeJSON(ctx, w, http.StatusOK, summary)
		return
	}

	var buf bytes.Buffer
	if err := usecase.RenderMarkdown(&buf, summary, h.baseURL); err != nil {
		writeError(ctx, w, err, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		logger.Error("Failed to write changelog", "error", err)
	}
}
