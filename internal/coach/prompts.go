package coach

import (
	"fmt"

	"github.com/MikeSquared-Agency/pitchcoach/internal/conversation"
)

const systemPrompt = `You are a sales coaching assistant. You only discuss sales: sales strategy, pitching, objection handling, discovery and closing. Politely steer any other topic back to sales.

Your answers must:
- Be concise, actionable and professional
- Use Markdown for headings, bold text and lists
- Give structured advice a sales rep can apply on the next call`

const contentPromptTemplate = `%s

Analyze the sales conversation below one turn at a time. Every turn MUST use exactly this layout:

## Turn [number] - [speaker]
**What was said:** [exact quote of the turn]

**Metrics:**
- **Sentiment:** [positive/neutral/negative]
- **Engagement:** [0-100]%%
- **Effectiveness:** [0-100]%%
- **Objection Raised:** [Yes/No]
- **Next Step Clarity:** [0-100]%%
- **Key Topics:** [comma-separated list]

For Sales Rep turns (required, never omit):
- **Sales Rep Suggestion:** [one specific, actionable way the rep could have improved this statement]

For Customer turns:
- **General Suggestion:** [optional observation about the customer's position]

After the last turn add:

## Overall AI Suggestion for this Conversation
- [complete, actionable sentence]
- [complete, actionable sentence]
- [complete, actionable sentence]

Rules:
1. Never skip the Sales Rep Suggestion on a Sales Rep turn.
2. Every overall suggestion is one complete sentence on a single line.
3. Never write a bullet that is a single word or a fragment.
4. Always include every metric for every turn.

Conversation:
%s
`

const metricsPromptTemplate = `%s

Score every turn of the sales conversation below. Use exactly this layout for each turn and add nothing else:

## Turn [number] - [speaker]
- **Sentiment:** [positive/neutral/negative]
- **Engagement:** [0-100]%%
- **Effectiveness:** [0-100]%%
- **Objection Raised:** [Yes/No]
- **Next Step Clarity:** [0-100]%%
- **Key Topics:** [comma-separated list]

Conversation:
%s
`

const advicePromptTemplate = `%s

Read the whole sales conversation below and give at least 4 numbered or bulleted suggestions the sales rep can use to move this deal forward. Each point is a single complete sentence, specific to this conversation and grounded in sales best practice.

Conversation:
%s
`

const suggestionPromptTemplate = `Given the following sales conversation:

%s

Give one specific, actionable suggestion for the Sales Rep's last statement that would improve the pitch or the outcome of the call. Be concise and answer with the suggestion only.`

const chatPromptTemplate = `%s
%s
User: %s`

func contentPrompt(turns []conversation.Turn) string {
	return fmt.Sprintf(contentPromptTemplate, systemPrompt, conversation.Format(turns))
}

func metricsPrompt(turns []conversation.Turn) string {
	return fmt.Sprintf(metricsPromptTemplate, systemPrompt, conversation.Format(turns))
}

func advicePrompt(turns []conversation.Turn) string {
	return fmt.Sprintf(advicePromptTemplate, systemPrompt, conversation.Format(turns))
}

// suggestionPrompt asks for advice on the last turn of history.
func suggestionPrompt(history []conversation.Turn) string {
	return fmt.Sprintf(suggestionPromptTemplate, conversation.Format(history))
}

func chatPrompt(message, background string) string {
	if background != "" {
		background = "\n" + background + "\n"
	}
	return fmt.Sprintf(chatPromptTemplate, systemPrompt, background, message)
}
