package handler

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/unifeed-dev/unifeed/internal/domain"
	"github.com/unifeed-dev/unifeed/internal/middleware"
	"github.com/unifeed-dev/unifeed/internal/service"
	"github.com/unifeed-dev/unifeed/internal/utils"
	"github.com/unifeed-dev/unifeed/internal/validation"
)

// attachmentJson is the client-facing slice of a created attachment.
type attachmentJson struct {
	Id       domain.AttachmentId `json:"id"`
	FileName string              `json:"file_name"`
}

// parsePhotoUploads parses the multipart form and validates the files under
// formField. Returns the pending uploads and a cleanup closing their readers.
func (h *Handler) parsePhotoUploads(w http.ResponseWriter, r *http.Request, formField string) (pending []*service.PendingUpload, cleanup func(), err error) {
	maxRequestSize := validation.CalculateMaxRequestSize(h.cfg.Public.MaxTotalAttachmentSize, 1<<20)
	if err = validation.ValidateAndParseMultipart(r, w, maxRequestSize); err != nil {
		maxSizeMB := validation.FormatSizeMB(h.cfg.Public.MaxTotalAttachmentSize)
		err = fmt.Errorf("%w: total upload size exceeds the limit of %.0f MB", validation.ErrPayloadTooLarge, maxSizeMB)
		return
	}

	files := r.MultipartForm.File[formField]
	if len(files) == 0 {
		err = fmt.Errorf("missing %q file in multipart form", formField)
		return
	}

	pending, err = validation.ValidatePhotos(files, h.cfg.Public.AllowedImageMimeTypes)
	if err != nil {
		return
	}

	caption := r.FormValue("caption")
	for _, p := range pending {
		p.Caption = caption
	}

	cleanup = func() {
		for _, p := range pending {
			if closer, ok := p.Data.(io.Closer); ok {
				closer.Close()
			}
		}
	}
	return
}

// UploadPostPhotos attaches one or more photos to a post and starts the
// conversion pipeline for each.
func (h *Handler) UploadPostPhotos(w http.ResponseWriter, r *http.Request) {
	postId, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	user := middleware.GetUserFromContext(r)
	if user == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	pending, cleanup, err := h.parsePhotoUploads(w, r, "photos")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	defer cleanup()

	ref := domain.OwnerRef{Kind: domain.OwnerPost, Id: postId}
	var created []attachmentJson
	for _, upload := range pending {
		att, err := h.upload.Attach(r.Context(), ref, user.Id, upload)
		if err != nil {
			utils.WriteErrorAndStatusCode(w, err)
			return
		}
		created = append(created, attachmentJson{Id: att.Id, FileName: att.FileName})
	}

	writeJSON(w, http.StatusCreated, map[string]any{"attachments": created}, "Conversion started")
}

// CreateFeaturedImage creates a featured image record carrying exactly one
// uploaded file. If the upload never converts, the watcher reaps the record.
func (h *Handler) CreateFeaturedImage(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r)
	if user == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	pending, cleanup, err := h.parsePhotoUploads(w, r, "image")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	defer cleanup()

	if len(pending) != 1 {
		http.Error(w, "Exactly one image required", http.StatusBadRequest)
		return
	}

	id, err := h.owners.CreateFeaturedImage(r.Context(), user.Id)
	if err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	ref := domain.OwnerRef{Kind: domain.OwnerFeaturedImage, Id: id}
	att, err := h.upload.Attach(r.Context(), ref, user.Id, pending[0])
	if err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"id":         id,
		"attachment": attachmentJson{Id: att.Id, FileName: att.FileName},
	}, "Conversion started")
}
