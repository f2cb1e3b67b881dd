package libs

import (
	"fmt"
	"net/smtp"

	"go.uber.org/zap"

	"github.com/polylab/auth/pkg/config"
	"github.com/polylab/auth/pkg/contracts"
)

// NewNotifier selects the delivery sink from configuration. Unknown
// kinds fall back to the console sink so auth flows keep working.
func NewNotifier(cfg *config.Config, log *zap.Logger) contracts.Notifier {
	if cfg.NotifierKind == "smtp" && cfg.SMTPHost != "" {
		return &SMTPNotifier{
			addr:     fmt.Sprintf("%s:%d", cfg.SMTPHost, cfg.SMTPPort),
			host:     cfg.SMTPHost,
			username: cfg.SMTPUsername,
			password: cfg.SMTPPassword,
			from:     cfg.SMTPFrom,
			log:      log,
		}
	}
	return &ConsoleNotifier{log: log}
}

// ConsoleNotifier logs the message instead of delivering it. This is
// the development sink; verification and reset links show up in the
// server log.
type ConsoleNotifier struct {
	log *zap.Logger
}

func (n *ConsoleNotifier) Notify(recipient, subject, body string) {
	n.log.Info("notification",
		zap.String("recipient", recipient),
		zap.String("subject", subject),
		zap.String("body", body),
	)
}

// SMTPNotifier delivers mail over SMTP with plain auth. Delivery
// failures are logged and swallowed; the triggering auth flow must
// never fail because of notification transport.
type SMTPNotifier struct {
	addr     string
	host     string
	username string
	password string
	from     string
	log      *zap.Logger
}

func (n *SMTPNotifier) Notify(recipient, subject, body string) {
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n",
		n.from, recipient, subject, body)

	var auth smtp.Auth
	if n.username != "" {
		auth = smtp.PlainAuth("", n.username, n.password, n.host)
	}
	if err := smtp.SendMail(n.addr, auth, n.from, []string{recipient}, []byte(msg)); err != nil {
		n.log.Error("smtp delivery failed",
			zap.String("recipient", recipient),
			zap.String("subject", subject),
			zap.Error(err),
		)
	}
}
