package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/unifeed-dev/unifeed/internal/domain"
	"github.com/unifeed-dev/unifeed/internal/middleware"
	"github.com/unifeed-dev/unifeed/internal/utils"
)

// Progress reports whether an owner has published and how far along its
// media conversion is. The owner kind is part of the route because ids are
// per-kind sequences.
func (h *Handler) Progress(w http.ResponseWriter, r *http.Request) {
	kind := domain.OwnerKind(chi.URLParam(r, "ownerKind"))
	if !kind.Valid() {
		http.Error(w, "Unknown owner kind", http.StatusBadRequest)
		return
	}

	ownerId, err := strconv.ParseInt(chi.URLParam(r, "ownerId"), 10, 64)
	if err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	user := middleware.GetUserFromContext(r)
	if user == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	status, err := h.progress.Query(r.Context(), domain.OwnerRef{Kind: kind, Id: ownerId}, user.Id)
	if err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	writeJSON(w, http.StatusOK, status, "")
}
