package handlers

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/framecraft/mockupbackend/media"
	"github.com/framecraft/mockupbackend/models"
	"github.com/framecraft/mockupbackend/repository"
)

type SavedMockupHandler struct {
	Repo         repository.MockupRepositoryInterface
	AnalysisRepo repository.AnalysisRepositoryInterface
	Store        media.Store
	Validate     *validator.Validate
	Logger       zerolog.Logger
}

type saveMockupRequest struct {
	AnalysisID  string              `json:"analysis_id" validate:"required,uuid4"`
	MockupImage string              `json:"mockup_image" validate:"required"`
	Config      models.MockupConfig `json:"config"`
}

type savedMockupResponse struct {
	ID             string              `json:"id"`
	WallAnalysisID string              `json:"wall_analysis_id"`
	MockupImageURL string              `json:"mockup_image_url"`
	Config         models.MockupConfig `json:"config"`
	CreatedAt      time.Time           `json:"created_at"`
}

func (h *SavedMockupHandler) toResponse(mockup *models.SavedMockup) savedMockupResponse {
	return savedMockupResponse{
		ID:             mockup.ID,
		WallAnalysisID: mockup.WallAnalysisID,
		MockupImageURL: h.Store.URL(mockup.MockupImage),
		Config:         mockup.Config,
		CreatedAt:      mockup.CreatedAt,
	}
}

// SaveMockup stores a client-rendered mockup image (base64 data URL) tied
// to an existing wall analysis.
func (h *SavedMockupHandler) SaveMockup(w http.ResponseWriter, r *http.Request) {
	var req saveMockupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteAPIError(w, http.StatusBadRequest, "invalid_body", "Invalid request body: "+err.Error())
		return
	}
	if err := h.Validate.Struct(&req); err != nil {
		WriteAPIError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	if _, err := h.AnalysisRepo.GetByID(req.AnalysisID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			WriteAPIError(w, http.StatusNotFound, "not_found", "Analysis not found")
			return
		}
		h.Logger.Error().Err(err).Str("analysis_id", req.AnalysisID).Msg("failed to fetch analysis for mockup")
		WriteAPIError(w, http.StatusInternalServerError, "database_error", "Could not fetch analysis")
		return
	}

	imageData, ext, err := decodeDataURL(req.MockupImage)
	if err != nil {
		WriteAPIError(w, http.StatusBadRequest, "invalid_image_data", "Invalid image data: "+err.Error())
		return
	}

	mockupID := uuid.NewString()
	ref, err := h.Store.Save(media.AssetTypeMockup, "mockup_"+mockupID+ext, bytes.NewReader(imageData))
	if err != nil {
		h.Logger.Error().Err(err).Msg("failed to store mockup image")
		WriteAPIError(w, http.StatusInternalServerError, "storage_error", "Could not store mockup image")
		return
	}

	mockup := &models.SavedMockup{
		ID:             mockupID,
		WallAnalysisID: req.AnalysisID,
		MockupImage:    ref,
		Config:         req.Config,
	}
	if err := h.Repo.Create(mockup); err != nil {
		h.Logger.Error().Err(err).Msg("failed to create saved mockup record")
		WriteAPIError(w, http.StatusInternalServerError, "database_error", "Could not save mockup")
		return
	}

	writeJSON(w, http.StatusCreated, h.toResponse(mockup))
}

// GetMockup returns a saved mockup for viewing/sharing.
func (h *SavedMockupHandler) GetMockup(w http.ResponseWriter, r *http.Request) {
	mockupID := chi.URLParam(r, "mockup_id")
	mockup, err := h.Repo.GetByID(mockupID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			WriteAPIError(w, http.StatusNotFound, "not_found", "Mockup not found")
			return
		}
		h.Logger.Error().Err(err).Str("mockup_id", mockupID).Msg("failed to fetch mockup")
		WriteAPIError(w, http.StatusInternalServerError, "database_error", "Could not fetch mockup")
		return
	}
	writeJSON(w, http.StatusOK, h.toResponse(mockup))
}

// decodeDataURL decodes a "data:image/...;base64," payload, defaulting to
// JPEG when the header does not name PNG.
func decodeDataURL(value string) ([]byte, string, error) {
	header := ""
	encoded := value
	if idx := strings.Index(value, ","); idx >= 0 {
		header = value[:idx]
		encoded = value[idx+1:]
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, "", err
	}

	ext := ".jpg"
	if strings.Contains(strings.ToLower(header), "png") {
		ext = ".png"
	}
	return data, ext, nil
}
