package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/couchcryptid/disaster-match-service/internal/domain"
)

const maxBodyBytes = 1 << 20

type batchRequest struct {
	Events []domain.CalendarEvent `json:"events"`
	Window *domain.Window         `json:"window,omitempty"`
}

type resultsResponse struct {
	Status  string               `json:"status"`
	Count   int                  `json:"count"`
	Results []domain.MatchResult `json:"results"`
}

type disastersResponse struct {
	Status string                  `json:"status"`
	Source string                  `json:"source"`
	Total  int                     `json:"total"`
	Events []domain.DisasterRecord `json:"events"`
}

type matchedResponse struct {
	Status string               `json:"status"`
	Total  int                  `json:"total"`
	Events []domain.MatchResult `json:"events"`
}

type rawProcessResponse struct {
	Status    string               `json:"status"`
	Processed int                  `json:"processed"`
	Count     int                  `json:"count"`
	Results   []domain.MatchResult `json:"results"`
}

type hotspotsResponse struct {
	Status         string           `json:"status"`
	MinOccurrences int              `json:"min_occurrences"`
	Hotspots       []domain.Hotspot `json:"hotspots"`
}

type statisticsResponse struct {
	Status     string         `json:"status"`
	Source     string         `json:"source"`
	Total      int            `json:"total"`
	Incidents  int            `json:"incidents"`
	Categories map[string]int `json:"categories"`
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrMalformedMessage, err)
	}
	return nil
}

func (s *Server) handleMatch(w http.ResponseWriter, r *http.Request) {
	var event domain.CalendarEvent
	if err := decodeBody(w, r, &event); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Matcher.MatchEvent(r.Context(), event))
}

func (s *Server) handleProcessBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	var (
		results []domain.MatchResult
		err     error
	)
	if req.Window != nil {
		results, err = s.deps.Matcher.ProcessBatchWindow(r.Context(), req.Events, *req.Window)
	} else {
		results, err = s.deps.Matcher.ProcessBatch(r.Context(), req.Events)
	}
	if err != nil {
		s.writeBatchError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resultsResponse{Status: "success", Count: len(results), Results: nonNil(results)})
}

func (s *Server) handleProcessRaw(w http.ResponseWriter, r *http.Request) {
	results, processed, err := s.deps.Matcher.ProcessRaw(r.Context())
	if err != nil {
		if errors.Is(err, domain.ErrNoRawEvents) {
			writeError(w, http.StatusNotFound, err)
			return
		}
		s.writeBatchError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rawProcessResponse{
		Status:    "success",
		Processed: processed,
		Count:     len(results),
		Results:   nonNil(results),
	})
}

func (s *Server) writeBatchError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrEmptyBatch), errors.Is(err, domain.ErrMalformedMessage):
		writeError(w, http.StatusBadRequest, err)
	default:
		s.logger.Error("batch processing failed", "error", err)
		writeError(w, http.StatusInternalServerError, errors.New("batch processing failed"))
	}
}

func (s *Server) handleDisasters(w http.ResponseWriter, r *http.Request) {
	records := s.deps.Disasters.ReadAll(r.Context())
	writeJSON(w, http.StatusOK, disastersResponse{
		Status: "success",
		Source: domain.SourceEONET,
		Total:  len(records),
		Events: records,
	})
}

func (s *Server) handleMatchedEvents(w http.ResponseWriter, r *http.Request) {
	results, err := s.deps.Matches.ReadMatched(r.Context())
	if err != nil {
		s.logger.Warn("read matched events failed, returning empty list", "error", err)
		results = []domain.MatchResult{}
	}
	writeJSON(w, http.StatusOK, matchedResponse{Status: "success", Total: len(results), Events: results})
}

func (s *Server) handleHotspots(w http.ResponseWriter, r *http.Request) {
	minOccurrences := s.deps.HotspotMin
	if v := r.URL.Query().Get("min"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("min must be a positive integer, got %q", v))
			return
		}
		minOccurrences = n
	}

	hotspots := domain.Hotspots(s.deps.Disasters.ReadAll(r.Context()), minOccurrences)
	writeJSON(w, http.StatusOK, hotspotsResponse{Status: "success", MinOccurrences: minOccurrences, Hotspots: hotspots})
}

func (s *Server) handleStatistics(w http.ResponseWriter, r *http.Request) {
	stats := domain.Summarize(s.deps.Disasters.ReadAll(r.Context()))
	writeJSON(w, http.StatusOK, statisticsResponse{
		Status:     "success",
		Source:     domain.SourceEONET,
		Total:      stats.Total,
		Incidents:  stats.Incidents,
		Categories: stats.Categories,
	})
}

func nonNil(results []domain.MatchResult) []domain.MatchResult {
	if results == nil {
		return []domain.MatchResult{}
	}
	return results
}
