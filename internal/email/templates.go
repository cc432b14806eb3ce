package email

import (
	"fmt"
	"html"
	"strings"

	"github.com/shopspring/decimal"

	"rankwatch/internal/config"
)

// Templates provides email template generation.
type Templates struct {
	cfg *config.Config
}

// NewTemplates creates a new templates instance.
func NewTemplates(cfg *config.Config) *Templates {
	return &Templates{cfg: cfg}
}

// baseHTML wraps content in the shared HTML layout.
func (t *Templates) baseHTML(title, content string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
    <meta charset="utf-8">
    <title>%s</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { background: #0f766e; color: white; padding: 16px 20px; border-radius: 8px 8px 0 0; }
        .content { background: #f9fafb; padding: 20px; border: 1px solid #e5e7eb; }
        .footer { padding: 12px; text-align: center; font-size: 12px; color: #6b7280; }
        .amount { font-family: monospace; font-weight: 600; }
        .warning { color: #b45309; }
    </style>
</head>
<body>
    <div class="header"><h1>%s</h1></div>
    <div class="content">%s</div>
    <div class="footer"><a href="%s">%s</a></div>
</body>
</html>`, html.EscapeString(title), html.EscapeString(t.cfg.SiteTitle), content,
		html.EscapeString(t.cfg.BaseURL), html.EscapeString(t.cfg.SiteTitle))
}

// LowBalanceData describes a skipped auto-tracking cycle.
type LowBalanceData struct {
	UserID   string
	Balance  decimal.Decimal
	Required decimal.Decimal
	Keywords int
}

// LowBalance renders the notification sent when auto-tracking was skipped
// for lack of funds.
func (t *Templates) LowBalance(d LowBalanceData) (subject, htmlBody, textBody string) {
	subject = fmt.Sprintf("[%s] Auto-tracking paused: balance too low", t.cfg.SiteTitle)
	shortfall := d.Required.Sub(d.Balance)

	content := fmt.Sprintf(`
        <p class="warning">Scheduled rank checks for %d keyword(s) were skipped.</p>
        <p>Current balance: <span class="amount">%s</span><br>
        Required for this cycle: <span class="amount">%s</span><br>
        Shortfall: <span class="amount">%s</span></p>
        <p>Top up your balance to resume auto-tracking. Account: <code>%s</code></p>`,
		d.Keywords,
		html.EscapeString(d.Balance.StringFixed(2)),
		html.EscapeString(d.Required.StringFixed(2)),
		html.EscapeString(shortfall.StringFixed(2)),
		html.EscapeString(d.UserID),
	)
	htmlBody = t.baseHTML(subject, content)

	var text strings.Builder
	fmt.Fprintf(&text, "Scheduled rank checks for %d keyword(s) were skipped.\n\n", d.Keywords)
	fmt.Fprintf(&text, "Current balance: %s\n", d.Balance.StringFixed(2))
	fmt.Fprintf(&text, "Required for this cycle: %s\n", d.Required.StringFixed(2))
	fmt.Fprintf(&text, "Shortfall: %s\n\n", shortfall.StringFixed(2))
	fmt.Fprintf(&text, "Top up your balance to resume auto-tracking. Account: %s\n", d.UserID)
	if t.cfg.BaseURL != "" {
		fmt.Fprintf(&text, "\n%s\n", t.cfg.BaseURL)
	}
	textBody = text.String()
	return subject, htmlBody, textBody
}
