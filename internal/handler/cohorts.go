package handler

import (
	"net/http"

	"github.com/unifeed-dev/unifeed/internal/middleware"
	"github.com/unifeed-dev/unifeed/internal/utils"
)

// GetOrCreateCohort returns the cohort for (course, year), materializing it
// on first reference. Concurrent first references all land on one record.
func (h *Handler) GetOrCreateCohort(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r)
	if user == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	type bodyJson struct {
		CourseId int64  `validate:"required" json:"course_id"`
		Year     string `validate:"required" json:"year"`
	}
	var body bodyJson
	if err := utils.DecodeValidate(r.Body, &body); err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	cohort, err := h.cohorts.GetOrCreate(r.Context(), body.CourseId, body.Year)
	if err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"id":        cohort.Id,
		"course_id": cohort.CourseId,
		"year":      cohort.Year,
		"slug":      cohort.Slug,
	}, "")
}
