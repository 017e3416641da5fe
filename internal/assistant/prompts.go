package assistant

import (
	"fmt"
	"strings"

	"github.com/Pablo751/dentcb/internal/domain"
)

// PromptVariant selects the keyword extraction instruction.
type PromptVariant string

const (
	// PromptVariantSingle asks for the one most dental-relevant keyword.
	PromptVariantSingle PromptVariant = "single"
	// PromptVariantList asks for a short comma separated list.
	PromptVariantList PromptVariant = "list"
)

func keywordPrompt(variant PromptVariant, question string) string {
	if variant == PromptVariantList {
		return fmt.Sprintf("What are the main keywords of this question: '%s'? "+
			"Reply only with a short comma separated list of the keywords most relevant to dental topics, "+
			"for example: 'brosse à dents en bambou', 'efficace'", question)
	}
	return fmt.Sprintf("What are the main keyword or keywords of this question: '%s'. "+
		"Only choose one keyword, the most relevant to dental topics. "+
		"For example, lets say you identify ['brosse à dents en bambou', 'efficace'], "+
		"in this case, you should only select at the end 'brosse à dents en bambou'", question)
}

func choicePrompt(question string, candidates []domain.ScoredCandidate) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n\n", question)
	b.WriteString("Here are the possible answers based on relevance:\n")
	for i, c := range candidates {
		fmt.Fprintf(&b, "%d. URL: %s, Title: %s, Meta: %s\n", i+1, c.URL, c.Title, c.Meta)
	}
	b.WriteString("\nWhich URL is the most appropriate for the question? Please provide the URL only.")
	return b.String()
}

func correctivePrompt(base, rejected string) string {
	return fmt.Sprintf("%s\n\nYour previous reply %q is not one of the listed URLs. "+
		"Reply with exactly one URL copied from the list above and nothing else.", base, rejected)
}

func answerPrompt(question, url, detail, language string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n\n", question)
	fmt.Fprintf(&b, "Selected URL: %s\n\n", url)
	fmt.Fprintf(&b, "Page Detail: %s\n\n", detail)
	fmt.Fprintf(&b, "Based on the Page Detail information, provide a brief glimpse of the answer to the question in %s, "+
		"inviting the user to click on the URL for more details.", language)
	return b.String()
}
