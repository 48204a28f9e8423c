package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mampersat/ratewings2025/internal/geo"
	"github.com/mampersat/ratewings2025/internal/location"
	"github.com/mampersat/ratewings2025/internal/ranking"
)

// TotalCountHeader carries the number of matches before pagination.
const TotalCountHeader = "X-Total-Count"

// LocationHandlers serves the /locations routes.
type LocationHandlers struct {
	service            *location.Service
	defaultMaxDistance float64
}

// NewLocationHandlers creates location handlers. defaultMaxDistance <= 0 uses
// geo.DefaultMaxDistanceMiles.
func NewLocationHandlers(service *location.Service, defaultMaxDistance float64) *LocationHandlers {
	if defaultMaxDistance <= 0 {
		defaultMaxDistance = geo.DefaultMaxDistanceMiles
	}
	return &LocationHandlers{service: service, defaultMaxDistance: defaultMaxDistance}
}

// LocationResponse is a location with its review statistics.
// Distance is only present when the request carried lat and lon.
type LocationResponse struct {
	ID             int64      `json:"id"`
	Name           string     `json:"name"`
	Address        *string    `json:"address"`
	Lat            *float64   `json:"lat"`
	Lon            *float64   `json:"lon"`
	Distance       *float64   `json:"distance,omitempty"`
	AverageRating  *float64   `json:"average_rating"`
	AverageHeat    *float64   `json:"average_heat"`
	ReviewCount    int        `json:"review_count"`
	LastReviewedAt *time.Time `json:"last_reviewed_at,omitempty"`
}

func newLocationResponse(loc *location.Location, agg ranking.Aggregate, distance *float64) LocationResponse {
	return LocationResponse{
		ID:             loc.ID,
		Name:           loc.Name,
		Address:        loc.Address,
		Lat:            loc.Lat,
		Lon:            loc.Lon,
		Distance:       distance,
		AverageRating:  agg.AverageRating,
		AverageHeat:    agg.AverageHeat,
		ReviewCount:    agg.ReviewCount,
		LastReviewedAt: agg.LastReviewedAt,
	}
}

// CreateLocationRequest is the body of POST /locations/.
type CreateLocationRequest struct {
	Name    string   `json:"name"`
	Address *string  `json:"address"`
	Lat     *float64 `json:"lat"`
	Lon     *float64 `json:"lon"`
}

// MergeRequest is the body of POST /locations/merge.
type MergeRequest struct {
	FromID *int64 `json:"from_id"`
	IntoID *int64 `json:"into_id"`
}

// DuplicateEntry is one member of a duplicate group.
type DuplicateEntry struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Address     *string `json:"address"`
	ReviewCount int     `json:"review_count"`
}

// DuplicateGroupResponse is a set of locations sharing a normalized name.
type DuplicateGroupResponse struct {
	NormalizedName string           `json:"normalized_name"`
	Locations      []DuplicateEntry `json:"locations"`
}

// Locations handles /locations and /locations/: GET searches, POST creates.
func (h *LocationHandlers) Locations(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/locations" && r.URL.Path != "/locations/" {
		writeCodedError(w, r, ErrCodeNotFound, "Route not found")
		return
	}
	switch r.Method {
	case http.MethodGet:
		h.Search(w, r)
	case http.MethodPost:
		h.Create(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

// Search handles GET /locations/.
//
// Query parameters: skip, limit, search, ids, lat+lon, max_distance,
// min_rating, sort_by. The total match count is returned in X-Total-Count.
func (h *LocationHandlers) Search(w http.ResponseWriter, r *http.Request) {
	params, err := h.parseSearch(r)
	if err != nil {
		writeParamError(w, r, err)
		return
	}

	page, err := h.service.Search(r.Context(), params)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	out := make([]LocationResponse, 0, len(page.Results))
	for _, res := range page.Results {
		out = append(out, newLocationResponse(res.Location, res.Aggregate, res.Distance))
	}
	w.Header().Set(TotalCountHeader, strconv.Itoa(page.Total))
	writeJSON(w, r, out)
}

func (h *LocationHandlers) parseSearch(r *http.Request) (location.SearchParams, error) {
	q := r.URL.Query()
	var p location.SearchParams
	var err error

	if p.Offset, err = queryInt(q, "skip", 0, 0); err != nil {
		return p, err
	}
	if p.Limit, err = queryInt(q, "limit", DefaultLocationPageSize, MaxPageSize); err != nil {
		return p, err
	}
	p.Search = strings.TrimSpace(q.Get("search"))
	if p.IDs, err = queryIDs(q, "ids"); err != nil {
		return p, err
	}

	lat, err := queryFloat(q, "lat")
	if err != nil {
		return p, err
	}
	lon, err := queryFloat(q, "lon")
	if err != nil {
		return p, err
	}
	if err := geo.ValidatePair(lat, lon); err != nil {
		return p, invalidParam("%s", err.Error())
	}
	if origin, ok := geo.PointFrom(lat, lon); ok {
		p.Origin = &origin
	}

	p.MaxDistance = h.defaultMaxDistance
	maxDistance, err := queryFloat(q, "max_distance")
	if err != nil {
		return p, err
	}
	if maxDistance != nil {
		if *maxDistance <= 0 {
			return p, invalidParam("max_distance must be greater than 0")
		}
		p.MaxDistance = *maxDistance
	}

	if p.MinRating, err = queryFloat(q, "min_rating"); err != nil {
		return p, err
	}

	sort, ok := ranking.ParseSortMode(q.Get("sort_by"))
	if !ok {
		modes := make([]string, 0, len(ranking.SortModes))
		for _, m := range ranking.SortModes {
			modes = append(modes, string(m))
		}
		return p, invalidParam("sort_by must be one of: %s", strings.Join(modes, ", "))
	}
	p.Sort = sort
	return p, nil
}

// Create handles POST /locations/.
func (h *LocationHandlers) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateLocationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeParamError(w, r, err)
		return
	}

	loc := &location.Location{
		Name:    req.Name,
		Address: req.Address,
		Lat:     req.Lat,
		Lon:     req.Lon,
	}
	if err := h.service.CreateLocation(r.Context(), loc); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, newLocationResponse(loc, ranking.Aggregate{}, nil))
}

// ByID handles GET /locations/by-id/{id}.
func (h *LocationHandlers) ByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	id, err := pathID(r.URL.Path, "/locations/by-id/")
	if err != nil {
		writeParamError(w, r, err)
		return
	}

	detail, err := h.service.Location(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, newLocationResponse(detail.Location, detail.Aggregate, nil))
}

// Duplicates handles GET /locations/duplicates.
func (h *LocationHandlers) Duplicates(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}

	groups, err := h.service.Duplicates(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	out := make([]DuplicateGroupResponse, 0, len(groups))
	for _, g := range groups {
		entries := make([]DuplicateEntry, 0, len(g.Locations))
		for _, c := range g.Locations {
			entries = append(entries, DuplicateEntry{
				ID:          c.ID,
				Name:        c.Name,
				Address:     c.Address,
				ReviewCount: c.ReviewCount,
			})
		}
		out = append(out, DuplicateGroupResponse{NormalizedName: g.NormalizedName, Locations: entries})
	}
	writeJSON(w, r, out)
}

// Merge handles POST /locations/merge.
func (h *LocationHandlers) Merge(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req MergeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeParamError(w, r, err)
		return
	}
	if req.FromID == nil || req.IntoID == nil {
		writeValidationError(w, r, "from_id and into_id are required")
		return
	}

	res, err := h.service.Merge(r.Context(), *req.FromID, *req.IntoID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, res)
}
