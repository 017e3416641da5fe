package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/Pablo751/dentcb/internal/catalog"
	"github.com/Pablo751/dentcb/internal/domain"
	"github.com/Pablo751/dentcb/internal/locale"
	"github.com/Pablo751/dentcb/internal/observability"
	"github.com/Pablo751/dentcb/internal/scoring"
)

// RankHandler scores the catalog for given keywords without calling the oracle.
type RankHandler struct {
	logger   *observability.Logger
	ranker   *scoring.Ranker
	sessions *catalog.Sessions
}

// NewRankHandler creates a new rank handler.
func NewRankHandler(logger *observability.Logger, ranker *scoring.Ranker, sessions *catalog.Sessions) *RankHandler {
	return &RankHandler{
		logger:   logger.WithComponent("rank_handler"),
		ranker:   ranker,
		sessions: sessions,
	}
}

// RankRequestDTO represents the API request for ranking.
type RankRequestDTO struct {
	URL      string   `json:"url,omitempty"`
	Country  string   `json:"country,omitempty"`
	Keywords []string `json:"keywords"`
	Limit    int      `json:"limit,omitempty"`
}

// CandidateDTO is one scored catalog row.
type CandidateDTO struct {
	URL      string `json:"url"`
	Title    string `json:"title"`
	Meta     string `json:"meta"`
	Score    int    `json:"score"`
	Strategy string `json:"strategy"`
}

// RankResponseDTO represents the API response.
type RankResponseDTO struct {
	Locale     LocaleDTO      `json:"locale"`
	Keywords   []string       `json:"keywords"`
	Strategy   string         `json:"strategy"`
	Total      int            `json:"total"`
	Candidates []CandidateDTO `json:"candidates"`
}

// Rank handles POST /api/v1/rank. Candidates are returned highest score first.
func (h *RankHandler) Rank(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var reqDTO RankRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&reqDTO); err != nil {
		writeBadRequest(w, h.logger, "invalid request body", err.Error())
		return
	}

	var loc domain.Locale
	switch {
	case reqDTO.Country != "":
		c, ok := locale.ParseCountry(reqDTO.Country)
		if !ok {
			writeBadRequest(w, h.logger, "unknown country", reqDTO.Country)
			return
		}
		loc = locale.ForCountry(c)
	case strings.TrimSpace(reqDTO.URL) != "":
		loc = locale.Resolve(reqDTO.URL)
	default:
		writeBadRequest(w, h.logger, "url or country is required", "")
		return
	}

	kws := domain.NewKeywordSet(reqDTO.Keywords...)
	if kws.Len() == 0 {
		writeDomainError(w, h.logger, domain.NoKeywordsError("no keywords given", nil))
		return
	}

	session := h.sessions.Get(observability.SessionIDFromContext(ctx))
	snap, err := session.Load(ctx, loc)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	candidates, err := h.ranker.Rank(ctx, snap.Rows(), kws)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	resp := RankResponseDTO{
		Locale:     LocaleDTO{Country: string(loc.Country), Language: loc.LanguageCode},
		Keywords:   kws.Sorted(),
		Strategy:   string(domain.StrategyNone),
		Total:      len(candidates),
		Candidates: []CandidateDTO{},
	}
	if len(candidates) > 0 {
		resp.Strategy = string(candidates[0].Strategy)
	}

	for _, c := range scoring.TopK(candidates, reqDTO.Limit) {
		resp.Candidates = append(resp.Candidates, CandidateDTO{
			URL:      c.URL,
			Title:    c.Title,
			Meta:     c.Meta,
			Score:    c.Score,
			Strategy: string(c.Strategy),
		})
	}

	writeJSON(w, h.logger, http.StatusOK, resp)
}
