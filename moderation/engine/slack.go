package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/veilcampus/warden/moderation/audit"
	"github.com/veilcampus/warden/util/robusthttp"
)

type SlackNotifier struct {
	SlackWebhookURL string
	Client          *http.Client
	// messages beyond this rate are dropped with an error
	Limiter *rate.Limiter
}

var _ Notifier = (*SlackNotifier)(nil)

func NewSlackNotifier(webhookURL string) *SlackNotifier {
	return &SlackNotifier{
		SlackWebhookURL: webhookURL,
		Client:          robusthttp.NewClient(robusthttp.WithMaxRetries(2), robusthttp.WithPublicOnly()),
		Limiter:         rate.NewLimiter(rate.Every(2*time.Second), 5),
	}
}

func (n *SlackNotifier) SendAction(ctx context.Context, a *audit.ModAction) error {
	if n.Limiter != nil && !n.Limiter.Allow() {
		return fmt.Errorf("slack notification rate exceeded, dropping %s notification", a.ActionType)
	}
	return n.sendSlackMsg(ctx, slackBody(a))
}

type SlackWebhookBody struct {
	Text string `json:"text"`
}

// Sends a simple slack message to a channel via "incoming webhook".
//
// The slack incoming webhook must be already configured in the slack workplace.
func (n *SlackNotifier) sendSlackMsg(ctx context.Context, msg string) error {
	body, err := json.Marshal(SlackWebhookBody{Text: msg})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.SlackWebhookURL, bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	req.Header.Add("Content-Type", "application/json")
	client := n.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	buf := new(bytes.Buffer)
	_, _ = buf.ReadFrom(resp.Body)
	if resp.StatusCode != http.StatusOK || buf.String() != "ok" {
		return fmt.Errorf("failed slack webhook POST request. status=%d", resp.StatusCode)
	}
	return nil
}

func slackBody(a *audit.ModAction) string {
	msg := "⚠️ Warden Moderation Action ⚠️\n"
	msg += fmt.Sprintf("`%s` by `%s`\n", a.ActionType, a.ModeratorID)
	if a.TargetUserHash != "" {
		msg += fmt.Sprintf("User: `%s`\n", a.TargetUserHash)
	}
	if a.Metadata.SubjectModeratorID != "" {
		msg += fmt.Sprintf("Moderator: `%s` (%s)\n", a.Metadata.SubjectModeratorID, a.Metadata.AppointedRole)
	}
	if a.Metadata.ScopeType != "" {
		scope := a.Metadata.ScopeType
		if a.Metadata.ScopeID != "" {
			scope += "/" + a.Metadata.ScopeID
		}
		msg += fmt.Sprintf("Scope: `%s`\n", scope)
	}
	msg += fmt.Sprintf("Reason: %s\n", a.Reason)
	return msg
}
