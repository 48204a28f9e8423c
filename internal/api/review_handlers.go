package api

import (
	"net/http"
	"time"

	"github.com/mampersat/ratewings2025/internal/location"
)

// ReviewHandlers serves the /reviews routes.
type ReviewHandlers struct {
	service *location.Service
}

// NewReviewHandlers creates review handlers.
func NewReviewHandlers(service *location.Service) *ReviewHandlers {
	return &ReviewHandlers{service: service}
}

// ReviewResponse is a stored review.
type ReviewResponse struct {
	ID         int64      `json:"id"`
	LocationID int64      `json:"location_id"`
	Rating     float64    `json:"rating"`
	Comment    *string    `json:"comment"`
	Heat       *int       `json:"heat"`
	CreatedAt  *time.Time `json:"created_at"`
}

// ReviewWithLocationResponse is a review with its location's name and address.
type ReviewWithLocationResponse struct {
	ReviewResponse
	LocationName    *string `json:"location_name"`
	LocationAddress *string `json:"location_address"`
}

func newReviewResponse(r *location.Review) ReviewResponse {
	return ReviewResponse{
		ID:         r.ID,
		LocationID: r.LocationID,
		Rating:     r.Rating,
		Comment:    r.Comment,
		Heat:       r.Heat,
		CreatedAt:  r.CreatedAt,
	}
}

func newReviewWithLocation(d location.ReviewDetail) ReviewWithLocationResponse {
	out := ReviewWithLocationResponse{
		ReviewResponse:  newReviewResponse(d.Review),
		LocationAddress: d.LocationAddress,
	}
	if d.LocationName != "" {
		name := d.LocationName
		out.LocationName = &name
	}
	return out
}

// CreateReviewRequest is the body of POST /reviews/.
type CreateReviewRequest struct {
	LocationID *int64     `json:"location_id"`
	Rating     *float64   `json:"rating"`
	Comment    *string    `json:"comment"`
	Heat       *int       `json:"heat"`
	CreatedAt  *time.Time `json:"created_at"`
}

// UpdateReviewRequest is the body of PATCH /reviews/by-id/{id}. Absent or null
// fields are left unchanged.
type UpdateReviewRequest struct {
	LocationID *int64   `json:"location_id"`
	Rating     *float64 `json:"rating"`
	Comment    *string  `json:"comment"`
	Heat       *int     `json:"heat"`
}

// Reviews handles /reviews and /reviews/: GET lists, POST creates.
func (h *ReviewHandlers) Reviews(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/reviews" && r.URL.Path != "/reviews/" {
		writeCodedError(w, r, ErrCodeNotFound, "Route not found")
		return
	}
	switch r.Method {
	case http.MethodGet:
		h.List(w, r)
	case http.MethodPost:
		h.Create(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

// List handles GET /reviews/ with skip, limit and an optional location_id.
func (h *ReviewHandlers) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var filter location.ReviewFilter
	var err error

	if filter.Offset, err = queryInt(q, "skip", 0, 0); err != nil {
		writeParamError(w, r, err)
		return
	}
	if filter.Limit, err = queryInt(q, "limit", DefaultReviewPageSize, MaxPageSize); err != nil {
		writeParamError(w, r, err)
		return
	}
	if filter.LocationID, err = queryInt64(q, "location_id"); err != nil {
		writeParamError(w, r, err)
		return
	}

	out := make([]ReviewWithLocationResponse, 0)
	// limit=0 asks for nothing; the store treats 0 as unlimited.
	if filter.Limit > 0 {
		details, err := h.service.Reviews(r.Context(), filter)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		for _, d := range details {
			out = append(out, newReviewWithLocation(d))
		}
	}
	writeJSON(w, r, out)
}

// Create handles POST /reviews/.
func (h *ReviewHandlers) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateReviewRequest
	if err := decodeJSON(r, &req); err != nil {
		writeParamError(w, r, err)
		return
	}
	if req.LocationID == nil {
		writeValidationError(w, r, "location_id is required")
		return
	}
	if req.Rating == nil {
		writeValidationError(w, r, "rating is required")
		return
	}

	review := &location.Review{
		LocationID: *req.LocationID,
		Rating:     *req.Rating,
		Comment:    req.Comment,
		Heat:       req.Heat,
		CreatedAt:  req.CreatedAt,
	}
	if err := h.service.CreateReview(r.Context(), review); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, newReviewResponse(review))
}

// ByID handles GET /reviews/by-id/{id}.
func (h *ReviewHandlers) ByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet, http.MethodPatch)
		return
	}
	id, err := pathID(r.URL.Path, "/reviews/by-id/")
	if err != nil {
		writeParamError(w, r, err)
		return
	}

	detail, err := h.service.Review(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, newReviewWithLocation(detail))
}

// Update handles PATCH /reviews/by-id/{id}.
func (h *ReviewHandlers) Update(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPatch {
		methodNotAllowed(w, r, http.MethodPatch)
		return
	}
	id, err := pathID(r.URL.Path, "/reviews/by-id/")
	if err != nil {
		writeParamError(w, r, err)
		return
	}

	var req UpdateReviewRequest
	if err := decodeJSON(r, &req); err != nil {
		writeParamError(w, r, err)
		return
	}

	detail, err := h.service.UpdateReview(r.Context(), id, location.ReviewPatch{
		LocationID: req.LocationID,
		Rating:     req.Rating,
		Comment:    req.Comment,
		Heat:       req.Heat,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, newReviewWithLocation(detail))
}
