package http

import (
	"net/http"

	"github.com/m-mizutani/reltrace/pkg/domain/model"
	"github.com/m-mizutani/reltrace/pkg/domain/types"
)

// handleHealth handles health check requests
func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(r.Context(), w, http.StatusOK, &model.HealthStatus{
		Status:  "healthy",
		Service: "reltrace",
		Version: types.Version,
	})
}
