package email

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"rankwatch/internal/config"
	"rankwatch/internal/models"
)

// Notifier sends low-balance notifications, at most once per user per
// cooldown.
type Notifier struct {
	service   *Service
	templates *Templates
	cfg       *config.Config
	log       *slog.Logger

	send func(to []string, subject, htmlBody, textBody string)
	now  func() time.Time

	mu       sync.Mutex
	lastSent map[uuid.UUID]time.Time
}

// NewNotifier creates a new email notifier.
func NewNotifier(cfg *config.Config, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	svc := NewService(cfg, logger)
	return &Notifier{
		service:   svc,
		templates: NewTemplates(cfg),
		cfg:       cfg,
		log:       logger.With("component", "notifier"),
		send:      svc.SendAsync,
		now:       time.Now,
		lastSent:  make(map[uuid.UUID]time.Time),
	}
}

// recipients returns the ops list plus the user's own contact, deduplicated.
func (n *Notifier) recipients(balance *models.UserBalance) []string {
	seen := make(map[string]bool)
	var to []string
	add := func(addr string) {
		if addr != "" && !seen[addr] {
			seen[addr] = true
			to = append(to, addr)
		}
	}
	for _, r := range n.cfg.LowBalanceRecipients {
		add(r)
	}
	if balance.NotifyEmail != nil {
		add(*balance.NotifyEmail)
	}
	return to
}

// NotifyLowBalance reports that a user's auto-tracking cycle was skipped.
// Returns true when a message was queued.
func (n *Notifier) NotifyLowBalance(ctx context.Context, balance *models.UserBalance, required decimal.Decimal, keywords int) bool {
	if !n.service.IsEnabled() {
		return false
	}

	to := n.recipients(balance)
	if len(to) == 0 {
		n.log.Debug("no recipients for low balance notification", "user_id", balance.UserID)
		return false
	}

	now := n.now()
	n.mu.Lock()
	if last, ok := n.lastSent[balance.UserID]; ok && now.Sub(last) < n.cfg.LowBalanceCooldown {
		n.mu.Unlock()
		return false
	}
	n.lastSent[balance.UserID] = now
	n.mu.Unlock()

	subject, htmlBody, textBody := n.templates.LowBalance(LowBalanceData{
		UserID:   balance.UserID.String(),
		Balance:  balance.Balance,
		Required: required,
		Keywords: keywords,
	})
	n.send(to, subject, htmlBody, textBody)
	return true
}
