package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/MikeSquared-Agency/pitchcoach/internal/conversation"
	"github.com/MikeSquared-Agency/pitchcoach/internal/store"
)

const defaultPostMessageURL = "https://slack.com/api/chat.postMessage"

type Poster struct {
	token   string
	channel string
	client  *http.Client
	logger  *slog.Logger
	apiURL  string
}

func NewPoster(token, channel string, logger *slog.Logger) *Poster {
	return &Poster{
		token:   token,
		channel: channel,
		client:  &http.Client{Timeout: 10 * time.Second},
		apiURL:  defaultPostMessageURL,
		logger:  logger,
	}
}

// PostAnalysisSummary posts a coaching digest of a to the channel and returns
// the message timestamp.
func (p *Poster) PostAnalysisSummary(ctx context.Context, a *store.Analysis) (string, error) {
	text := formatAnalysisMessage(a)
	ts, err := p.post(ctx, map[string]any{
		"channel": p.channel,
		"text":    text,
		"blocks": []map[string]any{
			{
				"type": "section",
				"text": map[string]any{
					"type": "mrkdwn",
					"text": text,
				},
			},
			{
				"type": "context",
				"elements": []map[string]any{
					{
						"type": "mrkdwn",
						"text": fmt.Sprintf("Analysis `%s` | %s via %s", a.ID, a.Mode, a.Provider),
					},
				},
			},
		},
	})
	if err != nil {
		return "", err
	}
	p.logger.Info("posted analysis to slack", "ts", ts, "analysis_id", a.ID)
	return ts, nil
}

// PostMessage posts plain text, threaded under threadTS when it is set.
func (p *Poster) PostMessage(ctx context.Context, threadTS, text string) error {
	payload := map[string]any{
		"channel": p.channel,
		"text":    text,
	}
	if threadTS != "" {
		payload["thread_ts"] = threadTS
	}
	_, err := p.post(ctx, payload)
	return err
}

func (p *Poster) post(ctx context.Context, payload map[string]any) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Bearer "+p.token)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("slack post: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	var slackResp struct {
		OK    bool   `json:"ok"`
		TS    string `json:"ts"`
		Error string `json:"error,omitempty"`
	}
	if err := json.Unmarshal(respBody, &slackResp); err != nil {
		return "", fmt.Errorf("parse slack response: %w", err)
	}
	if !slackResp.OK {
		return "", fmt.Errorf("slack error: %s", slackResp.Error)
	}
	return slackResp.TS, nil
}

func formatAnalysisMessage(a *store.Analysis) string {
	var sb strings.Builder

	var salesTurns, objections int
	var effectiveness float64
	for _, r := range a.Records {
		if conversation.Classify(r.Speaker) == conversation.SalesRole {
			salesTurns++
		}
		if r.ObjectionRaised {
			objections++
		}
		effectiveness += r.Effectiveness
	}

	fmt.Fprintf(&sb, "*Pitch analysis:* %d turns (%d sales rep)\n", len(a.Records), salesTurns)
	if n := len(a.Records); n > 0 {
		fmt.Fprintf(&sb, "*Avg effectiveness:* %.0f%% | *Objections:* %d | *Closing probability:* %.0f%%\n",
			effectiveness/float64(n)*100, objections, a.Records[n-1].Probability*100)
	}

	if len(a.Advice) > 0 {
		sb.WriteString("\n*Coaching advice:*\n")
		for i, point := range a.Advice {
			fmt.Fprintf(&sb, "%d. %s\n", i+1, point)
		}
	} else {
		sb.WriteString("\n_No coaching advice for this conversation._")
	}

	return sb.String()
}
