package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/framecraft/mockupbackend/media"
	"github.com/framecraft/mockupbackend/models"
	"github.com/framecraft/mockupbackend/repository"
	"github.com/framecraft/mockupbackend/utils"
)

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// AnalysisEnqueuer dispatches background analysis jobs.
type AnalysisEnqueuer interface {
	Enqueue(analysisID string) bool
}

type WallAnalysisHandler struct {
	Repo      repository.AnalysisRepositoryInterface
	Store     media.Store
	Processor AnalysisEnqueuer
	Validate  *validator.Validate
	Logger    zerolog.Logger
}

type wallAnalysisResponse struct {
	ID               string         `json:"id"`
	Status           string         `json:"status"`
	OriginalWidth    int            `json:"original_width"`
	OriginalHeight   int            `json:"original_height"`
	WallBounds       *models.Bounds `json:"wall_bounds"`
	Confidence       *float64       `json:"confidence"`
	PixelsPerInch    *float64       `json:"pixels_per_inch"`
	WallHeightFeet   float64        `json:"wall_height_feet"`
	OriginalImageURL string         `json:"original_image_url"`
	DepthMapURL      *string        `json:"depth_map_url,omitempty"`
	ErrorMessage     string         `json:"error_message,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	CompletedAt      *time.Time     `json:"completed_at,omitempty"`
}

func (h *WallAnalysisHandler) toResponse(analysis *models.WallAnalysis) wallAnalysisResponse {
	resp := wallAnalysisResponse{
		ID:               analysis.ID,
		Status:           analysis.Status,
		OriginalWidth:    analysis.OriginalWidth,
		OriginalHeight:   analysis.OriginalHeight,
		WallBounds:       analysis.WallBounds,
		Confidence:       analysis.Confidence,
		PixelsPerInch:    analysis.PixelsPerInch,
		WallHeightFeet:   analysis.WallHeightFeet,
		OriginalImageURL: h.Store.URL(analysis.OriginalImage),
		ErrorMessage:     analysis.ErrorMessage,
		CreatedAt:        analysis.CreatedAt,
		CompletedAt:      analysis.CompletedAt,
	}
	if analysis.DepthMap != nil {
		url := h.Store.URL(*analysis.DepthMap)
		resp.DepthMapURL = &url
	}
	return resp
}

// UploadWallImage accepts a multipart room photo, stores it, creates a
// pending analysis and dispatches the background job. When the queue
// rejects the job the analysis degrades to manual immediately so the
// client still gets a usable record.
func (h *WallAnalysisHandler) UploadWallImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, utils.MaxUploadBytes+4096)
	if err := r.ParseMultipartForm(utils.MaxUploadBytes); err != nil {
		WriteAPIError(w, http.StatusBadRequest, "invalid_upload", "Image too large or malformed multipart body (max 10MB)")
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		WriteAPIError(w, http.StatusBadRequest, "missing_image", "No image provided")
		return
	}
	defer file.Close()

	if header.Size > utils.MaxUploadBytes {
		WriteAPIError(w, http.StatusBadRequest, "image_too_large", "Image too large (max 10MB)")
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		WriteAPIError(w, http.StatusBadRequest, "invalid_upload", "Failed to read uploaded image")
		return
	}

	contentType := http.DetectContentType(data)
	ext, ok := utils.AllowedUploadExt(contentType)
	if !ok {
		WriteAPIError(w, http.StatusBadRequest, "invalid_image_type", "Invalid image type. Allowed: JPEG, PNG, WebP")
		return
	}

	info, err := utils.ReadImageInfo(data)
	if err != nil {
		WriteAPIError(w, http.StatusBadRequest, "invalid_image", "Could not decode image dimensions")
		return
	}

	wallHeightFeet := models.DefaultWallHeightFeet
	if raw := r.FormValue("wall_height_feet"); raw != "" {
		parsed, parseErr := strconv.ParseFloat(raw, 64)
		if parseErr != nil || parsed <= 0 {
			WriteAPIError(w, http.StatusBadRequest, "invalid_wall_height", "wall_height_feet must be a positive number")
			return
		}
		wallHeightFeet = parsed
	}

	analysisID := uuid.NewString()
	ref, err := h.Store.Save(media.AssetTypeWall, analysisID+ext, bytes.NewReader(data))
	if err != nil {
		h.Logger.Error().Err(err).Msg("failed to store uploaded wall image")
		WriteAPIError(w, http.StatusInternalServerError, "storage_error", "Could not store uploaded image")
		return
	}

	analysis := &models.WallAnalysis{
		ID:             analysisID,
		OriginalImage:  ref,
		OriginalWidth:  info.Width,
		OriginalHeight: info.Height,
		Status:         models.AnalysisStatusPending,
		WallHeightFeet: wallHeightFeet,
		SessionKey:     r.Header.Get("X-Session-Key"),
	}
	if err := h.Repo.Create(analysis); err != nil {
		h.Logger.Error().Err(err).Msg("failed to create wall analysis record")
		WriteAPIError(w, http.StatusInternalServerError, "database_error", "Could not create analysis record")
		return
	}

	if !h.Processor.Enqueue(analysisID) {
		// no worker will pick this up; degrade to manual right away
		fallback := models.FullImageBounds(info.Width, info.Height)
		if err := h.Repo.SetManual(analysisID, fallback, nil, "ML processing not available. Please select wall manually."); err != nil {
			h.Logger.Error().Err(err).Str("analysis_id", analysisID).Msg("failed to degrade unqueued analysis to manual")
		}
	}

	final, err := h.Repo.GetByID(analysisID)
	if err != nil {
		WriteAPIError(w, http.StatusInternalServerError, "database_error", "Could not load created analysis")
		return
	}
	writeJSON(w, http.StatusCreated, h.toResponse(final))
}

// GetWallAnalysis returns current status and results for polling clients.
func (h *WallAnalysisHandler) GetWallAnalysis(w http.ResponseWriter, r *http.Request) {
	analysisID := chi.URLParam(r, "analysis_id")
	analysis, err := h.Repo.GetByID(analysisID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			WriteAPIError(w, http.StatusNotFound, "not_found", "Analysis not found")
			return
		}
		h.Logger.Error().Err(err).Str("analysis_id", analysisID).Msg("failed to fetch analysis")
		WriteAPIError(w, http.StatusInternalServerError, "database_error", "Could not fetch analysis")
		return
	}
	writeJSON(w, http.StatusOK, h.toResponse(analysis))
}

type updateWallAnalysisRequest struct {
	WallBounds     *models.Bounds `json:"wall_bounds"`
	WallHeightFeet *float64       `json:"wall_height_feet" validate:"omitempty,gt=0"`
}

// UpdateWallAnalysis applies a manual correction of the wall bounds and/or
// the stated wall height. Supplying bounds always marks the record manual;
// the derived scale is recomputed on every change.
func (h *WallAnalysisHandler) UpdateWallAnalysis(w http.ResponseWriter, r *http.Request) {
	analysisID := chi.URLParam(r, "analysis_id")

	var req updateWallAnalysisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteAPIError(w, http.StatusBadRequest, "invalid_body", "Invalid request body: "+err.Error())
		return
	}
	if req.WallBounds == nil && req.WallHeightFeet == nil {
		WriteAPIError(w, http.StatusBadRequest, "empty_update", "Provide wall_bounds and/or wall_height_feet")
		return
	}
	if err := h.Validate.Struct(&req); err != nil {
		WriteAPIError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	analysis, err := h.Repo.ApplyManualCorrection(analysisID, req.WallBounds, req.WallHeightFeet)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			WriteAPIError(w, http.StatusNotFound, "not_found", "Analysis not found")
			return
		}
		WriteAPIError(w, http.StatusBadRequest, "invalid_update", fmt.Sprintf("Could not apply correction: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, h.toResponse(analysis))
}
