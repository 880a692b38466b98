package web

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/conorfennell/knolstudy/internal/schedule"
	"github.com/conorfennell/knolstudy/internal/storage"
	ksync "github.com/conorfennell/knolstudy/internal/sync"
)

// Server holds the dependencies for the HTTP API.
type Server struct {
	db       *storage.DB
	syncer   *ksync.Syncer
	router   *mux.Router
	handler  http.Handler
	schedule schedule.Buckets
	validate *validator.Validate
	log      *zap.Logger
	now      func() time.Time
	origins  []string
}

// Option configures a Server.
type Option func(*Server)

func WithLogger(log *zap.Logger) Option {
	return func(s *Server) {
		if log != nil {
			s.log = log
		}
	}
}

// WithSchedule sets the intervals used to reschedule reviewed cards.
func WithSchedule(b schedule.Buckets) Option {
	return func(s *Server) { s.schedule = b }
}

// WithAllowedOrigins lists the browser origins allowed to call the API.
func WithAllowedOrigins(origins []string) Option {
	return func(s *Server) { s.origins = origins }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// NewServer creates and configures a new server. syncer may be nil, in
// which case the sync endpoint is not available.
func NewServer(db *storage.DB, syncer *ksync.Syncer, opts ...Option) *Server {
	s := &Server{
		db:       db,
		syncer:   syncer,
		router:   mux.NewRouter(),
		schedule: schedule.DefaultBuckets(),
		validate: validator.New(validator.WithRequiredStructEnabled()),
		log:      zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()

	s.handler = s.router
	// An empty origin list means rs/cors allows every origin, so without
	// configured origins the API stays same-origin.
	if len(s.origins) > 0 {
		c := cors.New(cors.Options{
			AllowedOrigins: s.origins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
			AllowedHeaders: []string{"Content-Type"},
		})
		s.handler = c.Handler(s.router)
	}
	return s
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// routes sets up the routing for the server.
func (s *Server) routes() {
	s.router.Use(requestLogger(s.log))
	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respondWithError(w, http.StatusNotFound, "Not found")
	})
	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	r := s.router
	r.HandleFunc("/api/health", s.handleHealth).Methods(http.MethodGet)

	// Study sessions
	r.HandleFunc("/api/decks/{deckID}/due", s.handleGetDueCards).Methods(http.MethodGet)
	r.HandleFunc("/api/decks/{deckID}/stats", s.handleGetDeckStats).Methods(http.MethodGet)
	r.HandleFunc("/api/cards/{cardID}/review", s.handlePostReview).Methods(http.MethodPost)

	// Video quizzes
	r.HandleFunc("/api/lessons/{lessonID}/quizzes", s.handleGetLessonQuizzes).Methods(http.MethodGet)
	r.HandleFunc("/api/quizzes/{quizID}/answer", s.handlePostAnswer).Methods(http.MethodPost)

	// Source management
	r.HandleFunc("/api/sources", s.handleGetSources).Methods(http.MethodGet)
	r.HandleFunc("/api/sources", s.handlePostSource).Methods(http.MethodPost)
	r.HandleFunc("/api/sources/{id:[0-9]+}", s.handleDeleteSource).Methods(http.MethodDelete)
	r.HandleFunc("/api/sync", s.handlePostSync).Methods(http.MethodPost)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
