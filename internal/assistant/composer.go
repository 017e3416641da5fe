package assistant

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/Pablo751/dentcb/internal/domain"
	"github.com/Pablo751/dentcb/internal/llm"
	"github.com/Pablo751/dentcb/internal/locale"
	"github.com/Pablo751/dentcb/internal/observability"
)

// Fixed replies of the composer.
const (
	NoURLChosenMessage    = "No URL was chosen for the question."
	DetailNotFoundMessage = "No additional details found for the selected URL."
	citationFormat        = " Click here for more details: [%s]"
)

// RowLookup finds a catalog row by url. *catalog.Snapshot implements it.
type RowLookup interface {
	Lookup(url string) (domain.CatalogRow, bool)
}

// Composer writes the final answer from the chosen page's detail text.
type Composer struct {
	oracle llm.Oracle
	policy *bluemonday.Policy
	logger *observability.Logger
}

// NewComposer creates a composer.
func NewComposer(oracle llm.Oracle, logger *observability.Logger) *Composer {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Composer{
		oracle: oracle,
		policy: bluemonday.StrictPolicy(),
		logger: logger.WithComponent("composer"),
	}
}

// Compose returns the answer text and whether the chosen page had detail.
// A missing page is not an error: a fixed message is returned with found=false.
func (c *Composer) Compose(ctx context.Context, question, chosenURL string, rows RowLookup, languageCode string) (string, bool, error) {
	if strings.TrimSpace(chosenURL) == "" {
		return NoURLChosenMessage, false, nil
	}
	log := c.logger.WithContext(ctx)

	row, ok := rows.Lookup(chosenURL)
	detail := ""
	if ok {
		detail = c.sanitize(row.PageDetail)
	}
	if detail == "" {
		log.Warn().Str("url", domain.NormalizeURL(chosenURL)).Msg("No page detail found for chosen url")
		return DetailNotFoundMessage, false, nil
	}

	reply, err := c.oracle.Complete(ctx, answerPrompt(question, chosenURL, detail, locale.LanguageName(languageCode)))
	if err != nil {
		return "", false, domain.APIError("answer composition failed", err)
	}

	answer := strings.TrimSpace(reply) + fmt.Sprintf(citationFormat, chosenURL)
	log.Info().Str("url", chosenURL).Int("detail_chars", len(detail)).Msg("Answer composed")
	return answer, true, nil
}

// sanitize strips markup from page detail text.
func (c *Composer) sanitize(detail string) string {
	return strings.TrimSpace(html.UnescapeString(c.policy.Sanitize(detail)))
}
