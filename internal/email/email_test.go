package email

import (
	"strings"
	"testing"

	"rankwatch/internal/config"
)

func TestNewService(t *testing.T) {
	tests := []struct {
		name        string
		cfg         *config.Config
		wantEnabled bool
	}{
		{
			name: "enabled when all SMTP settings configured",
			cfg: &config.Config{
				SMTPEnabled: true,
				SMTPHost:    "smtp.example.com",
				SMTPPort:    587,
				SMTPFrom:    "noreply@example.com",
			},
			wantEnabled: true,
		},
		{
			name: "disabled when SMTPEnabled is false",
			cfg: &config.Config{
				SMTPHost: "smtp.example.com",
				SMTPFrom: "noreply@example.com",
			},
			wantEnabled: false,
		},
		{
			name: "disabled when SMTPHost is empty",
			cfg: &config.Config{
				SMTPEnabled: true,
				SMTPFrom:    "noreply@example.com",
			},
			wantEnabled: false,
		},
		{
			name:        "disabled with empty config",
			cfg:         &config.Config{},
			wantEnabled: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(tt.cfg, nil)
			if svc.IsEnabled() != tt.wantEnabled {
				t.Errorf("IsEnabled() = %v, want %v", svc.IsEnabled(), tt.wantEnabled)
			}
		})
	}
}

func TestService_Send_Disabled(t *testing.T) {
	svc := NewService(&config.Config{}, nil)

	if err := svc.Send([]string{"ops@example.com"}, "Test", "<p>HTML</p>", "Text"); err != nil {
		t.Errorf("Send() error = %v, want nil when disabled", err)
	}
}

func TestService_Send_NoRecipients(t *testing.T) {
	svc := NewService(&config.Config{SMTPEnabled: true, SMTPHost: "smtp.invalid", SMTPFrom: "a@b.c"}, nil)

	if err := svc.Send(nil, "Test", "<p>HTML</p>", "Text"); err != nil {
		t.Errorf("Send() error = %v, want nil without recipients", err)
	}
}

func TestService_BuildMessage(t *testing.T) {
	svc := NewService(&config.Config{SMTPFrom: "noreply@example.com", SMTPFromName: "Rankwatch"}, nil)

	msg := svc.buildMessage([]string{"a@example.com", "b@example.com"}, "Hello", "<p>hi</p>", "hi")

	wants := []string{
		"From: Rankwatch <noreply@example.com>\r\n",
		"To: a@example.com, b@example.com\r\n",
		"Subject: Hello\r\n",
		"MIME-Version: 1.0\r\n",
		"Content-Type: text/plain; charset=\"UTF-8\"",
		"Content-Type: text/html; charset=\"UTF-8\"",
		"--" + boundary + "--\r\n",
	}
	for _, want := range wants {
		if !strings.Contains(msg, want) {
			t.Errorf("buildMessage() missing %q", want)
		}
	}
	if strings.Index(msg, "text/plain") > strings.Index(msg, "text/html") {
		t.Error("plain text part should precede the HTML part")
	}
}

func TestService_BuildMessage_TextOnly(t *testing.T) {
	svc := NewService(&config.Config{SMTPFrom: "noreply@example.com"}, nil)

	msg := svc.buildMessage([]string{"a@example.com"}, "Hello", "", "hi")
	if strings.Contains(msg, "text/html") {
		t.Error("buildMessage() included an empty HTML part")
	}
	if !strings.Contains(msg, "From: noreply@example.com\r\n") {
		t.Error("buildMessage() From header without display name is wrong")
	}
}
