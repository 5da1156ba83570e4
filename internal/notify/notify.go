// Package notify delivers escalation alerts to stakeholders.
//
// The default implementation sends SMS through Twilio. A no-op notifier is
// used when Twilio credentials are not configured, so escalation handling
// never depends on an external messaging account.
package notify

import (
	"fmt"
	"log/slog"

	"github.com/autonoma/autonoma/internal/models"
	"github.com/twilio/twilio-go"
	twilioapi "github.com/twilio/twilio-go/rest/api/v2010"
)

// Notifier delivers an escalation alert to a recipient phone number.
type Notifier interface {
	SendEscalation(to string, project models.Project, esc models.Escalation) error
}

// Opts holds configuration for the Twilio notifier.
type Opts struct {
	AccountSID string
	AuthToken  string
	FromNumber string
}

// Option configures the Twilio notifier.
type Option func(*Opts)

// WithAccountSID sets the Twilio account SID.
func WithAccountSID(sid string) Option {
	return func(o *Opts) { o.AccountSID = sid }
}

// WithAuthToken sets the Twilio auth token.
func WithAuthToken(token string) Option {
	return func(o *Opts) { o.AuthToken = token }
}

// WithFromNumber sets the sender phone number.
func WithFromNumber(from string) Option {
	return func(o *Opts) { o.FromNumber = from }
}

// TwilioNotifier sends escalation alerts as SMS messages.
type TwilioNotifier struct {
	client *twilio.RestClient
	from   string
}

// NewTwilioNotifier creates a Twilio-backed notifier. Account SID, auth
// token, and from number are all required.
func NewTwilioNotifier(opts ...Option) (*TwilioNotifier, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.AccountSID == "" || cfg.AuthToken == "" {
		return nil, fmt.Errorf("twilio credentials not set")
	}
	if cfg.FromNumber == "" {
		return nil, fmt.Errorf("twilio from number not set")
	}
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	slog.Debug("TwilioNotifier.NewTwilioNotifier: notifier created", "from", cfg.FromNumber)
	return &TwilioNotifier{client: client, from: cfg.FromNumber}, nil
}

// SendEscalation sends one SMS summarizing the escalation.
func (n *TwilioNotifier) SendEscalation(to string, project models.Project, esc models.Escalation) error {
	body := fmt.Sprintf("[%s] %s escalation on %s: %s Recommended: %s",
		esc.Severity, esc.TriggerType, project.Name, esc.Description, esc.RecommendedAction)

	params := &twilioapi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(n.from)
	params.SetBody(body)

	if _, err := n.client.Api.CreateMessage(params); err != nil {
		slog.Error("TwilioNotifier.SendEscalation: send failed", "error", err, "to", to, "projectID", project.ID)
		return fmt.Errorf("failed to send escalation SMS: %w", err)
	}
	slog.Info("TwilioNotifier.SendEscalation: alert sent", "to", to, "projectID", project.ID, "severity", esc.Severity)
	return nil
}

// NoopNotifier discards escalation alerts. Used when Twilio is not configured.
type NoopNotifier struct{}

// SendEscalation logs and drops the alert.
func (NoopNotifier) SendEscalation(to string, project models.Project, esc models.Escalation) error {
	slog.Debug("NoopNotifier.SendEscalation: dropping alert, no notifier configured", "to", to, "projectID", project.ID)
	return nil
}
