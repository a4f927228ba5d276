package notifier

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"strings"
	"time"

	"github.com/wneessen/go-mail"

	"github.com/pauljones0/epic-free-games-bot/internal/models"
	"github.com/pauljones0/epic-free-games-bot/internal/util"
)

const (
	emailMaxRetries   = 2
	emailRetryBackoff = 2 * time.Second
)

var emailTemplate = template.Must(template.New("email").Funcs(template.FuncMap{
	"price": formatPrice,
	"date":  formatDate,
	"image": imageSrc,
}).Parse(`<h2>Free games on the Epic Games Store</h2>
{{range .}}<div style="margin-bottom:24px">
  {{if image .ImageURL}}<img src="{{image .ImageURL}}" alt="{{.Title}}" style="max-width:480px"><br>{{end}}
  <h3>{{if .URL}}<a href="{{.URL}}">{{.Title}}</a>{{else}}{{.Title}}{{end}}</h3>
  {{if .Description}}<p>{{.Description}}</p>{{end}}
  <p>Free until {{date .EndDate}}{{with price .OriginalPrice .Currency}} (normally {{.}}){{end}}</p>
</div>
{{end}}`))

type mailDialer interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

type EmailClient struct {
	sender     string
	recipient  string
	dialer     mailDialer
	maxRetries int
}

// NewEmail creates an SMTP notifier. The sender account doubles as the
// SMTP username, as with app passwords on hosted mail.
func NewEmail(host string, port int, sender, password, recipient string) (*EmailClient, error) {
	client, err := mail.NewClient(host,
		mail.WithPort(port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithTLSPolicy(mail.TLSMandatory),
		mail.WithUsername(sender),
		mail.WithPassword(password),
		mail.WithTimeout(30*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create mail client: %w", err)
	}
	return &EmailClient{
		sender:     sender,
		recipient:  recipient,
		dialer:     client,
		maxRetries: emailMaxRetries,
	}, nil
}

// Send emails one message listing all promotions.
func (c *EmailClient) Send(ctx context.Context, promos []models.Promotion) error {
	if len(promos) == 0 {
		return nil
	}
	msg, err := c.buildMessage(promos)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrNotification, err)
	}

	err = util.RetryWithBackoff(ctx, c.maxRetries, emailRetryBackoff, func(attempt int) error {
		if attempt > 0 {
			slog.Warn("Retrying email notification", "attempt", attempt)
		}
		return c.dialer.DialAndSendWithContext(ctx, msg)
	})
	if err != nil {
		return fmt.Errorf("%w: email: %v", models.ErrNotification, err)
	}
	slog.Info("Email notification sent", "recipient", c.recipient, "count", len(promos))
	return nil
}

func (c *EmailClient) buildMessage(promos []models.Promotion) (*mail.Msg, error) {
	body, err := renderEmail(promos)
	if err != nil {
		return nil, err
	}
	msg := mail.NewMsg()
	if err := msg.From(c.sender); err != nil {
		return nil, fmt.Errorf("invalid sender: %w", err)
	}
	if err := msg.To(c.recipient); err != nil {
		return nil, fmt.Errorf("invalid recipient: %w", err)
	}
	msg.Subject(emailSubject(promos))
	msg.SetBodyString(mail.TypeTextHTML, body)
	msg.AddAlternativeString(mail.TypeTextPlain, renderPlain(promos))
	return msg, nil
}

func emailSubject(promos []models.Promotion) string {
	if len(promos) == 1 {
		return "New free game on Epic Games Store: " + promos[0].Title
	}
	return fmt.Sprintf("%d new free games on Epic Games Store", len(promos))
}

func renderEmail(promos []models.Promotion) (string, error) {
	var buf bytes.Buffer
	if err := emailTemplate.Execute(&buf, promos); err != nil {
		return "", fmt.Errorf("render email: %w", err)
	}
	return buf.String(), nil
}

func renderPlain(promos []models.Promotion) string {
	var b strings.Builder
	for _, p := range promos {
		b.WriteString(p.Title)
		if p.URL != "" {
			b.WriteString(" - " + p.URL)
		}
		b.WriteString("\nFree until " + formatDate(p.EndDate) + "\n\n")
	}
	return b.String()
}

// formatPrice renders minor units as "12.99 USD"; nil or zero renders "".
func formatPrice(minor *int64, currency string) string {
	if minor == nil || *minor == 0 {
		return ""
	}
	return fmt.Sprintf("%d.%02d %s", *minor/100, *minor%100, currency)
}

// imageSrc returns the image URL, or "" when the promotion has none.
func imageSrc(u *string) string {
	if u == nil {
		return ""
	}
	return *u
}

func formatDate(iso string) string {
	t, err := time.Parse(time.RFC3339, iso)
	if err != nil {
		return iso
	}
	return t.UTC().Format("Jan 2, 2006 15:04 UTC")
}
