package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"umaai/internal/analysis"
	"umaai/internal/llm"
	"umaai/internal/prompt"
	"umaai/internal/share"
	"umaai/internal/store"
	"umaai/internal/types"
)

// maxBodyBytes bounds request bodies; an odds bundle with every trifecta is
// well under this.
const maxBodyBytes = 8 << 20

// AnalyzeRequest is the body of POST /api/analyze and POST /api/prompt.
// Either RaceData or RaceID must be set.
type AnalyzeRequest struct {
	RaceID     string                `json:"raceId,omitempty"`
	RaceData   *types.RaceRecord     `json:"raceData,omitempty"`
	OddsData   types.OddsBundle      `json:"oddsData,omitempty"`
	UserParams types.UserConstraints `json:"userParams"`
	Provider   string                `json:"provider,omitempty"`
	Model      string                `json:"model,omitempty"`
	NoFallback bool                  `json:"noFallback,omitempty"`
}

// AnalyzeResponse is the successful response of POST /api/analyze.
type AnalyzeResponse struct {
	Success        bool      `json:"success"`
	ID             string    `json:"id"`
	Analysis       string    `json:"analysis"`
	Recommendation string    `json:"recommendation"`
	Provider       string    `json:"provider"`
	Model          string    `json:"model"`
	Attempts       int       `json:"attempts"`
	FellBack       bool      `json:"fellBack"`
	Timestamp      time.Time `json:"timestamp"`
}

// ErrorResponse is returned for every failure.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Kind    string `json:"kind,omitempty"`
	Detail  string `json:"detail,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "ok"})
}

// resolve decodes an analyze request and fills in race and odds.
func (s *Server) resolve(w http.ResponseWriter, r *http.Request) (*AnalyzeRequest, error) {
	var req AnalyzeRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		return nil, fmt.Errorf("%w: malformed request body: %v", analysis.ErrInvalidInput, err)
	}

	if req.RaceData == nil {
		if req.RaceID == "" {
			return nil, fmt.Errorf("%w: raceData or raceId is required", analysis.ErrInvalidInput)
		}
		if s.loader == nil {
			return nil, fmt.Errorf("%w: loading by raceId is not enabled", analysis.ErrInvalidInput)
		}
		data, err := s.loader.Load(r.Context(), req.RaceID)
		if err != nil {
			return nil, analysis.ClassifyLoadError(req.RaceID, err)
		}
		req.RaceData = data.Race
		if req.OddsData == nil {
			req.OddsData = data.Odds
		}
	}
	return &req, nil
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	req, err := s.resolve(w, r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	res, err := s.service.RunAnalysis(r.Context(), req.RaceData, req.OddsData, req.UserParams, analysis.Choice{
		Provider:   req.Provider,
		Model:      req.Model,
		NoFallback: req.NoFallback,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, AnalyzeResponse{
		Success:        true,
		ID:             res.ID,
		Analysis:       res.Text,
		Recommendation: res.Recommendation,
		Provider:       res.Provider,
		Model:          res.Model,
		Attempts:       res.Attempts,
		FellBack:       res.FellBack,
		Timestamp:      res.CreatedAt,
	})
}

func (s *Server) handlePrompt(w http.ResponseWriter, r *http.Request) {
	req, err := s.resolve(w, r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	doc, err := s.service.Document(req.RaceData, req.OddsData, req.UserParams)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":         true,
		"prompt":          doc,
		"estimatedTokens": prompt.EstimateTokens(doc),
	})
}

func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	res, err := s.service.Latest(r.Context(), chi.URLParam(r, "raceID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "result": res})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := store.HistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.writeError(w, fmt.Errorf("%w: invalid limit %q", analysis.ErrInvalidInput, v))
			return
		}
		limit = n
	}

	results, err := s.service.History(r.Context(), chi.URLParam(r, "raceID"), limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "results": results})
}

// maxRaceIDs bounds one GET /api/races request.
const maxRaceIDs = 48

// RaceSummary describes one loadable race.
type RaceSummary struct {
	RaceID         string `json:"raceId"`
	RaceName       string `json:"raceName"`
	Place          string `json:"place,omitempty"`
	Distance       string `json:"distance,omitempty"`
	TrackCondition string `json:"trackCondition,omitempty"`
	StartTime      string `json:"startTime,omitempty"`
	Horses         int    `json:"horses"`
	OddsAvailable  bool   `json:"oddsAvailable"`
}

// handleRaces returns the loadable subset of ?ids=a,b,c in request order.
// Races that cannot be loaded are left out.
func (s *Server) handleRaces(w http.ResponseWriter, r *http.Request) {
	if s.loader == nil {
		s.writeError(w, fmt.Errorf("%w: loading by raceId is not enabled", analysis.ErrInvalidInput))
		return
	}

	var ids []string
	for _, id := range strings.Split(r.URL.Query().Get("ids"), ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 || len(ids) > maxRaceIDs {
		s.writeError(w, fmt.Errorf("%w: ids must list 1 to %d race ids", analysis.ErrInvalidInput, maxRaceIDs))
		return
	}

	bundles, err := s.loader.LoadBundles(r.Context(), ids)
	if err != nil {
		s.writeError(w, err)
		return
	}
	races := make([]RaceSummary, 0, len(bundles))
	for _, b := range bundles {
		races = append(races, RaceSummary{
			RaceID:         b.Race.ID(),
			RaceName:       b.Race.RaceName,
			Place:          b.Race.Place,
			Distance:       b.Race.Distance.String(),
			TrackCondition: b.Race.TrackCondition,
			StartTime:      b.Race.StartTime,
			Horses:         len(b.Race.Horses),
			OddsAvailable:  !b.OddsMissing,
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "races": races})
}

// handleShare returns the share text of the cached result. The race header is
// taken from the loader when available.
func (s *Server) handleShare(w http.ResponseWriter, r *http.Request) {
	raceID := chi.URLParam(r, "raceID")
	res, err := s.service.Latest(r.Context(), raceID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	race := &types.RaceRecord{RaceNumber: raceID}
	if s.loader != nil {
		if loaded, err := s.loader.Race(r.Context(), raceID); err == nil {
			race = loaded
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "text": share.Text(race, res.Text)})
}

// statusFor maps an error to an HTTP status and a kind label.
func statusFor(err error) (int, string) {
	if errors.Is(err, analysis.ErrInvalidInput) {
		return http.StatusBadRequest, "invalid_input"
	}
	if errors.Is(err, store.ErrNotFound) {
		return http.StatusNotFound, "not_found"
	}

	var le *llm.Error
	if !errors.As(err, &le) {
		return http.StatusInternalServerError, "internal"
	}
	switch le.Kind {
	case llm.KindNoDataAvailable:
		return http.StatusNotFound, string(le.Kind)
	case llm.KindRateLimited, llm.KindProviderOverloaded:
		return http.StatusServiceUnavailable, string(le.Kind)
	case llm.KindCanceled:
		return http.StatusGatewayTimeout, string(le.Kind)
	default:
		return http.StatusBadGateway, string(le.Kind)
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status, kind := statusFor(err)

	resp := ErrorResponse{Success: false, Kind: kind, Error: err.Error()}
	var le *llm.Error
	if errors.As(err, &le) {
		resp.Error = le.UserMessage()
		resp.Detail = le.Error()
	}
	if status >= 500 {
		s.log.Error("request failed (%d %s): %v", status, kind, err)
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
