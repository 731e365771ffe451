package api

import (
	"math"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/ajitpratap0/paramsearch/internal/config"
	"github.com/ajitpratap0/paramsearch/internal/store"
	"github.com/ajitpratap0/paramsearch/pkg/paramspace"
	"github.com/ajitpratap0/paramsearch/pkg/selector"
)

var startTime = time.Now()

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// searchResponse is the JSON view of a tracked search
type searchResponse struct {
	ID         string    `json:"id"`
	Mode       string    `json:"mode"`
	Simulator  string    `json:"simulator"`
	Objective  string    `json:"objective"`
	Status     string    `json:"status"`
	Done       int64     `json:"done"`
	Total      int64     `json:"total"`
	Fraction   float64   `json:"fraction"`
	Resident   int       `json:"resident"`
	BestRating *float64  `json:"best_rating,omitempty"`
	StartedAt  time.Time `json:"started_at"`
}

// strategyResponse is the JSON view of one strategy, best first by rank
type strategyResponse struct {
	Rank    int                      `json:"rank"`
	Rating  *float64                 `json:"rating,omitempty"`
	Config  paramspace.Configuration `json:"config"`
	Metrics selector.Metrics         `json:"metrics"`
}

// runResponse is store.Run with a nullable best rating
type runResponse struct {
	ID         string    `json:"id"`
	Mode       string    `json:"mode"`
	Simulator  string    `json:"simulator"`
	Objective  string    `json:"objective"`
	Status     string    `json:"status"`
	Done       int64     `json:"done"`
	Total      int64     `json:"total"`
	BestRating *float64  `json:"best_rating,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

func (s *Server) handleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "paramsearch",
		"version": config.Version,
		"status":  "running",
		"time":    time.Now().UTC(),
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
	})
}

// handleStatus reports process state and which optional components are wired
func (s *Server) handleStatus(c *gin.Context) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	storeStatus := "not_configured"
	if s.store != nil {
		storeStatus = "configured"
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"uptime":    time.Since(startTime).Seconds(),
		"version":   config.Version,
		"searches": gin.H{
			"tracked": len(s.tracker.List()),
			"running": s.tracker.Running(),
		},
		"components": gin.H{
			"store":             gin.H{"status": storeStatus},
			"websocket_clients": s.hub.ClientCount(),
		},
		"system": gin.H{
			"goroutines": runtime.NumGoroutine(),
			"memory": gin.H{
				"alloc_mb": toMB(memStats.Alloc),
				"sys_mb":   toMB(memStats.Sys),
				"num_gc":   memStats.NumGC,
			},
			"go_version": runtime.Version(),
		},
	})
}

func (s *Server) handleListSearches(c *gin.Context) {
	tracked := s.tracker.List()
	out := make([]searchResponse, 0, len(tracked))
	for _, ts := range tracked {
		out = append(out, newSearchResponse(ts))
	}
	c.JSON(http.StatusOK, gin.H{"searches": out, "count": len(out)})
}

func (s *Server) handleGetSearch(c *gin.Context) {
	ts, ok := s.tracker.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "search not found"})
		return
	}
	c.JSON(http.StatusOK, newSearchResponse(ts))
}

// handleGetSearchStrategies returns the current selector snapshot; it may be
// called while the search is still running
func (s *Server) handleGetSearchStrategies(c *gin.Context) {
	ts, ok := s.tracker.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "search not found"})
		return
	}

	snapshot := ts.Search.Selector().Snapshot()
	if limit, ok := parseLimit(c); ok && limit < len(snapshot) {
		snapshot = snapshot[:limit]
	}

	out := make([]strategyResponse, len(snapshot))
	for i, st := range snapshot {
		out[i] = strategyResponse{
			Rank:    i + 1,
			Rating:  finiteOrNil(st.Rating()),
			Config:  st.Config(),
			Metrics: finiteMetrics(st.Metrics()),
		}
	}
	c.JSON(http.StatusOK, gin.H{"search_id": ts.Search.ID(), "strategies": out, "count": len(out)})
}

func (s *Server) handleStopSearch(c *gin.Context) {
	ts, ok := s.tracker.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "search not found"})
		return
	}

	ts.Search.Stop()
	log.Info().Str("search_id", ts.Search.ID()).Msg("Stop requested via API")
	c.JSON(http.StatusAccepted, gin.H{"search_id": ts.Search.ID(), "stop_requested": true})
}

func (s *Server) handleListRuns(c *gin.Context) {
	if !s.requireStore(c) {
		return
	}

	limit, _ := parseLimit(c)
	runs, err := s.store.ListRuns(c.Request.Context(), limit)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list runs")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list runs"})
		return
	}

	out := make([]runResponse, len(runs))
	for i, r := range runs {
		out[i] = newRunResponse(r)
	}
	c.JSON(http.StatusOK, gin.H{"runs": out, "count": len(out)})
}

func (s *Server) handleGetRun(c *gin.Context) {
	if !s.requireStore(c) {
		return
	}

	run, found, err := s.store.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		log.Error().Err(err).Str("run_id", c.Param("id")).Msg("Failed to get run")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get run"})
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return
	}
	c.JSON(http.StatusOK, newRunResponse(run))
}

func (s *Server) handleGetRunStrategies(c *gin.Context) {
	if !s.requireStore(c) {
		return
	}

	records, err := s.store.ListStrategies(c.Request.Context(), c.Param("id"))
	if err != nil {
		log.Error().Err(err).Str("run_id", c.Param("id")).Msg("Failed to list strategies")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list strategies"})
		return
	}

	out := make([]strategyResponse, len(records))
	for i, r := range records {
		out[i] = strategyResponse{
			Rank:    r.Rank,
			Rating:  finiteOrNil(r.Rating),
			Config:  r.Config,
			Metrics: finiteMetrics(r.Metrics),
		}
	}
	c.JSON(http.StatusOK, gin.H{"run_id": c.Param("id"), "strategies": out, "count": len(out)})
}

func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	if !s.hub.attach(conn) {
		conn.Close()
	}
}

func (s *Server) requireStore(c *gin.Context) bool {
	if s.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "result store not configured"})
		return false
	}
	return true
}

func newSearchResponse(ts TrackedSearch) searchResponse {
	p := ts.Search.Progress()
	sel := ts.Search.Selector()
	resp := searchResponse{
		ID:        ts.Search.ID(),
		Mode:      string(ts.Search.Mode()),
		Simulator: ts.Simulator,
		Objective: ts.Objective,
		Status:    ts.Search.Status().String(),
		Done:      p.Done,
		Total:     p.Total,
		Fraction:  p.Fraction(),
		Resident:  sel.Count(),
		StartedAt: ts.StartedAt,
	}
	if best := selector.Best(sel); best != nil {
		resp.BestRating = finiteOrNil(best.Rating())
	}
	return resp
}

func newRunResponse(r store.Run) runResponse {
	return runResponse{
		ID:         r.ID,
		Mode:       r.Mode,
		Simulator:  r.Simulator,
		Objective:  r.Objective,
		Status:     r.Status,
		Done:       r.Done,
		Total:      r.Total,
		BestRating: finiteOrNil(r.BestRating),
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
	}
}

func finiteMetrics(m selector.Metrics) selector.Metrics {
	out := make(selector.Metrics, len(m))
	for k, v := range m {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			out[k] = v
		}
	}
	return out
}

// parseLimit reads a positive ?limit= query value
func parseLimit(c *gin.Context) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return 0, false
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

func toMB(b uint64) float64 {
	return float64(b) / 1024 / 1024
}
