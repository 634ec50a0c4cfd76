package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"

	"github.com/trunov/audiohub/internal/authclient"
	"github.com/trunov/audiohub/internal/config"
	"github.com/trunov/audiohub/internal/queue"
)

type UseCase interface {
	SubmitUpload(ctx context.Context, payload []byte, contentType, filename, owner string) (queue.JobDescriptor, error)
}

type Auth interface {
	Login(ctx context.Context, username, password string) (string, error)
	Validate(ctx context.Context, token string) (authclient.Claims, error)
}

type Handler struct {
	useCase   UseCase
	auth      Auth
	cfg       *config.Config
	validator *validator.Validate
}

func New(useCase UseCase, auth Auth, cfg *config.Config) *Handler {
	return &Handler{
		useCase:   useCase,
		auth:      auth,
		cfg:       cfg,
		validator: validator.New(),
	}
}

// Login exchanges basic credentials for a bearer token issued by the
// identity service.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	username, password, ok := r.BasicAuth()
	if !ok {
		writeJSONError(w, "missing basic auth credentials", http.StatusUnauthorized)
		return
	}

	token, err := h.auth.Login(r.Context(), username, password)
	if err != nil {
		writeJSONError(w, err.Error(), authErrorStatus(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"token": token})
}

// Upload validates the caller's token, reads the video from the multipart
// form and hands it to the upload coordinator.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	claims, err := h.auth.Validate(r.Context(), r.Header.Get("Authorization"))
	if err != nil {
		writeJSONError(w, err.Error(), authErrorStatus(err))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.Upload.MaxRequestBodyMB<<20)

	if err := r.ParseMultipartForm(h.cfg.Upload.MaxMultipartMemoryMB << 20); err != nil {
		writeMultipartError(w, err)
		return
	}

	file, fh, err := r.FormFile("video")
	if err != nil {
		if strings.Contains(err.Error(), "no such file") {
			writeJSONError(w, `missing video file: form field key should be "video"`, http.StatusBadRequest)
		} else {
			writeJSONError(w, "an error occurred while uploading the file: "+err.Error(), http.StatusBadRequest)
		}
		return
	}
	defer file.Close()

	params := UploadParams{
		Filename: fh.Filename,
		Owner:    claims.Username,
	}
	if err := h.validator.Struct(params); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(validationErrorsToMap(err))
		return
	}

	mime, err := mimetype.DetectReader(file)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if _, err := file.Seek(0, 0); err != nil {
		writeJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	fileType := mime.String()
	if err := validateMimeType(fileType); err != nil {
		writeJSONError(w, fmt.Sprintf("unsupported file type: %s", fileType), http.StatusBadRequest)
		return
	}

	payload, err := io.ReadAll(file)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	desc, err := h.useCase.SubmitUpload(r.Context(), payload, fileType, fh.Filename, claims.Username)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(desc)
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
