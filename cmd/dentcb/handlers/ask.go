package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/Pablo751/dentcb/internal/assistant"
	"github.com/Pablo751/dentcb/internal/catalog"
	"github.com/Pablo751/dentcb/internal/domain"
	"github.com/Pablo751/dentcb/internal/locale"
	"github.com/Pablo751/dentcb/internal/observability"
)

// AskHandler answers catalog questions.
type AskHandler struct {
	logger    *observability.Logger
	assistant *assistant.Assistant
	sessions  *catalog.Sessions
}

// NewAskHandler creates a new ask handler.
func NewAskHandler(logger *observability.Logger, a *assistant.Assistant, sessions *catalog.Sessions) *AskHandler {
	return &AskHandler{
		logger:    logger.WithComponent("ask_handler"),
		assistant: a,
		sessions:  sessions,
	}
}

// AskRequestDTO represents the API request for a question.
type AskRequestDTO struct {
	URL      string `json:"url"`
	Question string `json:"question"`
	Country  string `json:"country,omitempty"`
}

// LocaleDTO is the resolved country and language.
type LocaleDTO struct {
	Country  string `json:"country"`
	Language string `json:"language"`
}

// RelatedDTO is one recommended page.
type RelatedDTO struct {
	URL   string `json:"url"`
	Title string `json:"title"`
	Score int    `json:"score"`
}

// AskResponseDTO represents the API response.
type AskResponseDTO struct {
	SessionID  string       `json:"sessionId"`
	ChosenURL  string       `json:"chosenUrl"`
	Answer     string       `json:"answer"`
	Related    []RelatedDTO `json:"related"`
	Keywords   []string     `json:"keywords"`
	Strategy   string       `json:"strategy"`
	Candidates int          `json:"candidates"`
	Outcome    string       `json:"outcome"`
	Locale     LocaleDTO    `json:"locale"`
	LatencyMs  int64        `json:"latencyMs"`
}

// Ask handles POST /api/v1/ask.
func (h *AskHandler) Ask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var reqDTO AskRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&reqDTO); err != nil {
		writeBadRequest(w, h.logger, "invalid request body", err.Error())
		return
	}

	var country domain.Country
	if reqDTO.Country != "" {
		c, ok := locale.ParseCountry(reqDTO.Country)
		if !ok {
			writeBadRequest(w, h.logger, "unknown country", reqDTO.Country)
			return
		}
		country = c
	}

	session := h.sessions.Get(observability.SessionIDFromContext(ctx))

	ans, err := h.assistant.Ask(ctx, assistant.Request{
		SourceURL: strings.TrimSpace(reqDTO.URL),
		Question:  reqDTO.Question,
		Country:   country,
		Catalog:   session,
		SessionID: session.ID(),
	})
	if err != nil {
		h.logger.WithContext(ctx).Warn().Err(err).Str("error_type", string(domain.TypeOf(err))).Msg("Ask failed")
		writeDomainError(w, h.logger, err)
		return
	}

	writeJSON(w, h.logger, http.StatusOK, toAskResponseDTO(session.ID(), ans))
}

func toAskResponseDTO(sessionID string, ans *assistant.Answer) AskResponseDTO {
	dto := AskResponseDTO{
		SessionID:  sessionID,
		ChosenURL:  ans.ChosenURL,
		Answer:     ans.Text,
		Related:    make([]RelatedDTO, 0, len(ans.Related)),
		Keywords:   ans.Keywords,
		Strategy:   string(ans.Strategy),
		Candidates: ans.Candidates,
		Outcome:    string(ans.Outcome),
		Locale: LocaleDTO{
			Country:  string(ans.Locale.Country),
			Language: ans.Locale.LanguageCode,
		},
		LatencyMs: ans.Latency.Milliseconds(),
	}
	if dto.Keywords == nil {
		dto.Keywords = []string{}
	}
	for _, c := range ans.Related {
		dto.Related = append(dto.Related, RelatedDTO{URL: c.URL, Title: c.Title, Score: c.Score})
	}
	return dto
}
