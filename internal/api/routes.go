package api

import (
	"net/http"

	"github.com/mampersat/ratewings2025/internal/location"
)

// WelcomeMessage is returned by GET /.
const WelcomeMessage = "Welcome to the Chicken Wing Rating API!"

// RouterConfig wires the handlers behind NewRouter.
type RouterConfig struct {
	Service *location.Service
	// DefaultMaxDistance is the search radius in miles when max_distance is omitted.
	DefaultMaxDistance float64
	// Admin guards duplicates, merge and review updates. Nil leaves them open.
	Admin  TokenVerifier
	Health HealthHandlersConfig
	// Metrics serves /metrics when set.
	Metrics http.Handler
}

// NewRouter registers every ratewings route on a new ServeMux.
func NewRouter(cfg RouterConfig) *http.ServeMux {
	locations := NewLocationHandlers(cfg.Service, cfg.DefaultMaxDistance)
	reviews := NewReviewHandlers(cfg.Service)
	health := NewHealthHandlers(cfg.Health)
	admin := RequireAdmin(cfg.Admin)

	mux := http.NewServeMux()

	mux.HandleFunc("/", welcome)

	mux.HandleFunc("/locations", locations.Locations)
	mux.HandleFunc("/locations/", locations.Locations)
	mux.HandleFunc("/locations/by-id/", locations.ByID)
	mux.Handle("/locations/duplicates", admin(http.HandlerFunc(locations.Duplicates)))
	mux.Handle("/locations/merge", admin(http.HandlerFunc(locations.Merge)))

	mux.HandleFunc("/reviews", reviews.Reviews)
	mux.HandleFunc("/reviews/", reviews.Reviews)
	updateReview := admin(http.HandlerFunc(reviews.Update))
	mux.HandleFunc("/reviews/by-id/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPatch {
			updateReview.ServeHTTP(w, r)
			return
		}
		reviews.ByID(w, r)
	})

	mux.HandleFunc("/health", health.Health)
	mux.HandleFunc("/ready", health.Ready)
	if cfg.Metrics != nil {
		mux.Handle("/metrics", cfg.Metrics)
	}

	return mux
}

func welcome(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeCodedError(w, r, ErrCodeNotFound, "Route not found")
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	writeJSON(w, r, map[string]string{"message": WelcomeMessage})
}
