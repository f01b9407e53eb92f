package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"freeroom/internal/avail"
	"freeroom/internal/config"
	"freeroom/internal/duration"
	appLog "freeroom/internal/log"
	"freeroom/internal/model"
	"freeroom/internal/snapshot"
	"freeroom/internal/timeline"
)

// Refresher produces and stores a snapshot for one day.
type Refresher interface {
	Run(ctx context.Context, date time.Time) (*snapshot.Snapshot, error)
}

// Server provides the HTTP API over stored snapshots.
type Server struct {
	cfg   *config.Config
	store *snapshot.Store
	loc   *time.Location
	mux   *http.ServeMux
	now   func() time.Time

	refresher Refresher

	// Decoded snapshots keyed by YYYY-MM-DD.
	snapMu sync.RWMutex
	snaps  map[string]*snapshot.Snapshot
}

// NewServer constructs a new Server. refresher may be nil, in which case
// only snapshots already on disk are served.
func NewServer(cfg *config.Config, store *snapshot.Store, refresher Refresher) *Server {
	s := &Server{
		cfg:       cfg,
		store:     store,
		loc:       cfg.Location(),
		mux:       http.NewServeMux(),
		now:       time.Now,
		refresher: refresher,
		snaps:     map[string]*snapshot.Snapshot{},
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured. Empty
// credentials count as disabled.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="freeroom", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// Serve runs the API on cfg.Listen until ctx is cancelled, refreshing
// today's snapshot on cfg.RefreshCron when a refresher is set.
func Serve(ctx context.Context, cfg *config.Config, store *snapshot.Store, refresher Refresher) error {
	s := NewServer(cfg, store, refresher)

	if refresher != nil {
		c, err := s.StartCron(ctx)
		if err != nil {
			return err
		}
		defer c.Stop()
	}

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		appLog.Info("shutting down HTTP server")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}

// StartCron schedules Refresh on cfg.RefreshCron in the configured zone.
// The scheduler stops when ctx is cancelled.
func (s *Server) StartCron(ctx context.Context) (*cron.Cron, error) {
	c := cron.New(cron.WithLocation(s.loc))
	_, err := c.AddFunc(s.cfg.RefreshCron, func() {
		if err := s.Refresh(ctx); err != nil {
			appLog.Error("scheduled refresh failed", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("web: bad refresh schedule %q: %w", s.cfg.RefreshCron, err)
	}
	c.Start()
	appLog.Info("refresh scheduled", "cron", s.cfg.RefreshCron, "timezone", s.loc.String())

	go func() {
		<-ctx.Done()
		<-c.Stop().Done()
	}()
	return c, nil
}

// Refresh fetches today's events and swaps the cached snapshot.
func (s *Server) Refresh(ctx context.Context) error {
	if s.refresher == nil {
		return errors.New("web: no refresher configured")
	}
	snap, err := s.refresher.Run(ctx, s.now().In(s.loc))
	if err != nil {
		return err
	}
	s.snapMu.Lock()
	s.snaps[snap.Date] = snap
	s.snapMu.Unlock()
	return nil
}

// snapshotFor returns the snapshot for date, reading it from the store on
// first use.
func (s *Server) snapshotFor(date time.Time) (*snapshot.Snapshot, error) {
	key := date.Format("2006-01-02")

	s.snapMu.RLock()
	snap := s.snaps[key]
	s.snapMu.RUnlock()
	if snap != nil {
		return snap, nil
	}

	snap, err := s.store.Load(date)
	if err != nil {
		return nil, err
	}

	s.snapMu.Lock()
	s.snaps[key] = snap
	s.snapMu.Unlock()
	return snap, nil
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/api/free", s.handleFree)
	s.mux.HandleFunc("/api/timeline", s.handleTimeline)
	s.mux.HandleFunc("/api/rooms", s.handleRooms)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// blockDTO is a JSON-friendly view of a timeline block.
type blockDTO struct {
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Length    string    `json:"length"`
	Available bool      `json:"available"`
	Name      string    `json:"name,omitempty"`
	Status    string    `json:"status,omitempty"`
	Source    string    `json:"source,omitempty"`
	Comment   string    `json:"comment,omitempty"`
}

func toBlockDTO(b model.Block) blockDTO {
	dto := blockDTO{
		Start:     b.Start,
		End:       b.End,
		Length:    duration.Format(b.Start, b.End),
		Available: b.Available,
	}
	if !b.Available {
		dto.Name = b.Name
		dto.Status = b.Status
		dto.Comment = b.Comment
		if b.Source != 0 {
			dto.Source = b.Source.String()
		}
	}
	return dto
}

type candidateDTO struct {
	Room      model.Room `json:"room"`
	FreeUntil time.Time  `json:"free_until"`
	FreeFor   string     `json:"free_for"`
	Previous  blockDTO   `json:"previous"`
}

type failureDTO struct {
	Location string `json:"location"`
	Error    string `json:"error"`
}

// freeResponse is the JSON response shape for /api/free.
type freeResponse struct {
	Date         string         `json:"date"`
	Start        time.Time      `json:"start"`
	End          time.Time      `json:"end"`
	ShowCategory bool           `json:"show_category"`
	Rooms        []candidateDTO `json:"rooms"`
	Failed       []failureDTO   `json:"failed,omitempty"`
	Message      string         `json:"message,omitempty"`
}

// handleFree answers "which rooms are free".
//
// GET /api/free?date=2021-09-14&at=13:00&for=1hr&category=classroom
//   - date:         YYYY-MM-DD, today or tomorrow (default today)
//   - at:           HH:MM or now (default now)
//   - for:          duration such as 1.5, 90min or "1hr 30min" (default 1hr)
//   - category:     comma list, "default" or "all" (default "default")
//   - min_capacity, filter, favorites, booking_only, verbose
func (s *Server) handleFree(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	now := s.now()

	date, err := avail.ParseDate(q.Get("date"), s.loc, now)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	hours := 1.0
	if v := q.Get("for"); v != "" {
		if hours, err = duration.ParseHours(v); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	query, err := avail.Window(date, q.Get("at"), duration.Hours(hours), now)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if query.Verbose, err = parseBool(q, "verbose"); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	filter, err := parseFilter(q, s.cfg.DefaultCategories)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	snap, ok := s.loadSnapshot(w, date)
	if !ok {
		return
	}

	resp := freeResponse{
		Date:  snap.Date,
		Start: query.Start,
		End:   query.End,
		Rooms: []candidateDTO{},
	}
	for _, f := range snap.Errors {
		resp.Failed = append(resp.Failed, failureDTO{Location: f.Location, Error: f.Message})
	}

	usable := avail.MarkFavorites(snap.UsableRooms(), s.cfg.IsFavorite)
	rooms, err := avail.Select(usable, filter)
	if err != nil {
		resp.Message = err.Error()
		writeJSON(w, http.StatusOK, resp)
		return
	}

	res, err := avail.Find(rooms, snap.Events, query)
	switch {
	case errors.Is(err, avail.ErrEmptyResultSet):
		resp.Message = err.Error()
	case err != nil:
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp.ShowCategory = res.ShowCategory
	for _, c := range res.Candidates {
		resp.Rooms = append(resp.Rooms, candidateDTO{
			Room:      c.Room,
			FreeUntil: c.Free.End,
			FreeFor:   duration.Format(query.Start, c.Free.End),
			Previous:  toBlockDTO(c.Preceding),
		})
	}
	for _, f := range res.Failed {
		resp.Failed = append(resp.Failed, failureDTO{Location: f.Location, Error: f.Err.Error()})
	}
	writeJSON(w, http.StatusOK, resp)
}

// timelineResponse is the JSON response shape for /api/timeline.
type timelineResponse struct {
	Date   string     `json:"date"`
	Room   model.Room `json:"room"`
	Blocks []blockDTO `json:"blocks"`
}

// handleTimeline returns the day timeline of one room.
//
// GET /api/timeline?room=DH%202315&date=2021-09-14
func (s *Server) handleTimeline(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("room") == "" {
		writeError(w, http.StatusBadRequest, "room is required")
		return
	}
	date, err := avail.ParseDate(q.Get("date"), s.loc, s.now())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	snap, ok := s.loadSnapshot(w, date)
	if !ok {
		return
	}
	room, found := avail.Lookup(snap.Rooms, q.Get("room"))
	if !found {
		writeError(w, http.StatusNotFound, "unknown room "+strconv.Quote(q.Get("room")))
		return
	}

	blocks, err := timeline.Build(date, snap.Events[room.Location])
	if err != nil {
		appLog.Error("api timeline: build failed", err, "room", room.Location)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := timelineResponse{Date: snap.Date, Room: room, Blocks: make([]blockDTO, 0, len(blocks))}
	for _, b := range blocks {
		resp.Blocks = append(resp.Blocks, toBlockDTO(b))
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleRooms lists the room inventory of the requested (default today's)
// snapshot, falling back to the newest one on disk.
func (s *Server) handleRooms(w http.ResponseWriter, r *http.Request) {
	date, err := avail.ParseDate(r.URL.Query().Get("date"), s.loc, s.now())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	snap, err := s.snapshotFor(date)
	if errors.Is(err, snapshot.ErrNotFound) && r.URL.Query().Get("date") == "" {
		snap, err = s.store.Latest()
	}
	if err != nil {
		s.snapshotError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap.Rooms)
}

func (s *Server) loadSnapshot(w http.ResponseWriter, date time.Time) (*snapshot.Snapshot, bool) {
	snap, err := s.snapshotFor(date)
	if err != nil {
		s.snapshotError(w, err)
		return nil, false
	}
	return snap, true
}

func (s *Server) snapshotError(w http.ResponseWriter, err error) {
	if errors.Is(err, snapshot.ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	appLog.Error("snapshot load failed", err)
	writeError(w, http.StatusInternalServerError, "failed to load snapshot")
}

// parseFilter reads the room filter parameters of /api/free.
func parseFilter(q url.Values, defaults []string) (avail.Filter, error) {
	f := avail.Filter{
		Categories:        avail.ParseCategories(q.Get("category")),
		DefaultCategories: defaults,
		Keyword:           q.Get("filter"),
	}
	if len(f.Categories) == 0 {
		f.Categories = []string{"default"}
	}

	var err error
	if f.MinCapacity, err = parseInt(q, "min_capacity", 0); err != nil {
		return avail.Filter{}, err
	}
	if f.RequireBookingID, err = parseBool(q, "booking_only"); err != nil {
		return avail.Filter{}, err
	}
	if f.FavoritesOnly, err = parseBool(q, "favorites"); err != nil {
		return avail.Filter{}, err
	}
	return f, nil
}

// parseInt returns def when key is absent and an error when it is not a number.
func parseInt(q url.Values, key string, def int) (int, error) {
	v := q.Get(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: want an integer", key, v)
	}
	return n, nil
}

// parseBool returns false when key is absent and an error when it is not a boolean.
func parseBool(q url.Values, key string) (bool, error) {
	v := q.Get(key)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: want true or false", key, v)
	}
	return b, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
