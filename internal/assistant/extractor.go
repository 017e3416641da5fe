package assistant

import (
	"context"
	"strings"

	"github.com/Pablo751/dentcb/internal/domain"
	"github.com/Pablo751/dentcb/internal/llm"
	"github.com/Pablo751/dentcb/internal/observability"
)

// KeywordExtractor asks the oracle for the keyword(s) of a question.
type KeywordExtractor struct {
	oracle  llm.Oracle
	variant PromptVariant
	logger  *observability.Logger
}

// NewKeywordExtractor creates an extractor. An empty variant means PromptVariantSingle.
func NewKeywordExtractor(oracle llm.Oracle, variant PromptVariant, logger *observability.Logger) *KeywordExtractor {
	if variant == "" {
		variant = PromptVariantSingle
	}
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &KeywordExtractor{oracle: oracle, variant: variant, logger: logger.WithComponent("keyword_extractor")}
}

// Extract returns the keyword set of question. Oracle failures surface as api
// errors and a reply without any keyword as a no_keywords error.
func (e *KeywordExtractor) Extract(ctx context.Context, question string) (domain.KeywordSet, error) {
	reply, err := e.oracle.Complete(ctx, keywordPrompt(e.variant, question))
	if err != nil {
		return nil, domain.APIError("keyword extraction failed", err)
	}

	kws := ParseKeywords(reply)
	if kws.Len() == 0 {
		e.logger.WithContext(ctx).Warn().Str("reply", reply).Msg("Oracle reply contained no keyword")
		return nil, domain.NoKeywordsError("no keyword could be extracted from the question", nil)
	}

	e.logger.WithContext(ctx).Info().Strs("keywords", kws.Sorted()).Msg("Keywords extracted")
	return kws, nil
}

// ParseKeywords lower-cases the reply, splits it on ", " and strips quotes
// from each token. Empty tokens are dropped.
func ParseKeywords(reply string) domain.KeywordSet {
	parts := strings.Split(strings.ToLower(strings.TrimSpace(reply)), ", ")
	return domain.NewKeywordSet(parts...)
}
