package transform

import (
	"fmt"

	"github.com/tjfontaine/headline-restyler/internal/domain"
	"github.com/tjfontaine/headline-restyler/internal/tokens"
)

// SystemPrompt instructs the model to return a single restyled headline.
const SystemPrompt = `You are an expert in writing headlines in the style of different authors.
Rewrite the headline provided to you in the style of the given author, while keeping the same meaning.
Use the article body for context. Output only the transformed headline, nothing else.`

const userPromptFormat = `Original headline: %s

Author style to mimic: %s

Article body:
%s`

// BuildPrompt renders the prompt for req. A positive maxBodyTokens trims the
// article body to that many tokens as counted by counter.
func BuildPrompt(req domain.TransformRequest, counter *tokens.Counter, maxBodyTokens int) domain.Prompt {
	body := req.Body()
	if counter != nil && maxBodyTokens > 0 {
		body = counter.Truncate(body, maxBodyTokens)
	}

	return domain.Prompt{
		System:   SystemPrompt,
		User:     fmt.Sprintf(userPromptFormat, req.Headline(), req.Author(), body),
		Headline: req.Headline(),
		Author:   req.Author(),
		Body:     body,
	}
}
