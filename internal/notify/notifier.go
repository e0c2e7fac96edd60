// Package notify delivers text messages to shop users and administrators.
package notify

import (
	"context"

	"github.com/samber/lo"
	"go.uber.org/zap"
)

// Sender delivers one message to one chat.
type Sender interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
}

// Report summarises a fan-out.
type Report struct {
	Total  int `json:"total"`
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
}

type Notifier struct {
	sender Sender
	logger *zap.Logger
}

func NewNotifier(sender Sender, logger *zap.Logger) *Notifier {
	return &Notifier{sender: sender, logger: logger}
}

// Broadcast sends text to every distinct recipient. A failed delivery is
// logged and counted; it never stops delivery to the others.
func (n *Notifier) Broadcast(ctx context.Context, recipients []int64, text string) Report {
	recipients = lo.Uniq(recipients)
	report := Report{Total: len(recipients)}

	for _, chatID := range recipients {
		if err := n.sender.SendMessage(ctx, chatID, text); err != nil {
			report.Failed++
			n.logger.Warn("message delivery failed",
				zap.Int64("chat_id", chatID),
				zap.Error(err))
			continue
		}
		report.Sent++
	}

	n.logger.Info("broadcast finished",
		zap.Int("total", report.Total),
		zap.Int("sent", report.Sent),
		zap.Int("failed", report.Failed))

	return report
}

// LogSender writes messages to the log instead of delivering them. It is used
// when no bot token is configured.
type LogSender struct {
	logger *zap.Logger
}

func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) SendMessage(_ context.Context, chatID int64, text string) error {
	s.logger.Info("outgoing message", zap.Int64("chat_id", chatID), zap.String("text", text))
	return nil
}
