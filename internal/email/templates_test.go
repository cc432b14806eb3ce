package email

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"rankwatch/internal/config"
)

func TestTemplates_LowBalance(t *testing.T) {
	tmpl := NewTemplates(&config.Config{SiteTitle: "Rankwatch", BaseURL: "https://rank.example.com"})

	subject, htmlBody, textBody := tmpl.LowBalance(LowBalanceData{
		UserID:   "user-1",
		Balance:  decimal.RequireFromString("0.1"),
		Required: decimal.RequireFromString("0.75"),
		Keywords: 15,
	})

	if subject != "[Rankwatch] Auto-tracking paused: balance too low" {
		t.Errorf("subject = %q", subject)
	}
	for _, want := range []string{"15 keyword(s)", "0.10", "0.75", "0.65", "user-1"} {
		if !strings.Contains(textBody, want) {
			t.Errorf("text body missing %q", want)
		}
		if !strings.Contains(htmlBody, want) {
			t.Errorf("html body missing %q", want)
		}
	}
	if !strings.Contains(textBody, "https://rank.example.com") {
		t.Error("text body missing base URL")
	}
}

func TestTemplates_EscapesHTML(t *testing.T) {
	tmpl := NewTemplates(&config.Config{SiteTitle: "<Rank & Watch>"})

	_, htmlBody, _ := tmpl.LowBalance(LowBalanceData{UserID: "<script>", Balance: decimal.Zero, Required: decimal.NewFromInt(1)})

	if strings.Contains(htmlBody, "<script>") {
		t.Error("html body contains unescaped user id")
	}
	if !strings.Contains(htmlBody, "&lt;Rank &amp; Watch&gt;") {
		t.Error("html body does not escape the site title")
	}
}
