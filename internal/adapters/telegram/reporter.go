package telegram

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"ghost-activity/internal/domain"
	"ghost-activity/internal/infra/metrics"
)

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Reporter отправляет итоги прогонов движка в служебный чат.
type Reporter struct {
	bot    sender
	chatID int64
	loc    *time.Location
	log    zerolog.Logger
}

// NewReporter создаёт репортер. При chatID == 0 отчёты не отправляются.
func NewReporter(bot sender, chatID int64, loc *time.Location, logger zerolog.Logger) *Reporter {
	if loc == nil {
		loc = time.UTC
	}
	return &Reporter{bot: bot, chatID: chatID, loc: loc, log: logger}
}

// ReportRun форматирует итог прогона и отправляет его частями.
func (r *Reporter) ReportRun(ctx context.Context, summary domain.RunSummary, runErr error) error {
	if r == nil || r.bot == nil || r.chatID == 0 {
		return nil
	}
	target := strconv.FormatInt(r.chatID, 10)
	for _, part := range splitMessage(FormatRun(summary, runErr, r.loc), messageLimit) {
		if err := ctx.Err(); err != nil {
			return err
		}
		start := time.Now()
		_, err := r.bot.Send(tgbotapi.NewMessage(r.chatID, part))
		metrics.ObserveNetworkRequest("telegram_bot", "send_message", target, start, err)
		if err != nil {
			return fmt.Errorf("отправка отчёта: %w", err)
		}
	}
	r.log.Debug().Str("run_id", summary.RunID).Int64("chat_id", r.chatID).Msg("telegram: отчёт отправлен")
	return nil
}

// FormatRun собирает текст отчёта.
func FormatRun(summary domain.RunSummary, runErr error, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	var b strings.Builder
	if runErr != nil {
		b.WriteString("⚠️ Прогон движка завершился ошибкой\n")
	} else {
		b.WriteString("👻 Прогон движка\n")
	}
	if summary.RunID != "" {
		fmt.Fprintf(&b, "ID: %s\n", summary.RunID)
	}
	if !summary.StartedAt.IsZero() {
		fmt.Fprintf(&b, "Время: %s\n", summary.StartedAt.In(loc).Format("02.01 15:04"))
	}
	if runErr != nil {
		fmt.Fprintf(&b, "Ошибка: %v\n", runErr)
	}
	if summary.Skipped != "" {
		fmt.Fprintf(&b, "Пропуск: %s\n", summary.Skipped)
		return b.String()
	}

	b.WriteString("\n")
	fmt.Fprintf(&b, "Посты: %d из %d\n", summary.Published.Posts, summary.Quota.Posts)
	fmt.Fprintf(&b, "Комментарии: %d из %d\n", summary.Published.Comments, summary.Quota.Comments)
	fmt.Fprintf(&b, "Ответы: %d из %d\n", summary.Published.Replies, summary.Quota.Replies)
	if summary.Boosted > 0 {
		fmt.Fprintf(&b, "Буст живых постов: %d\n", summary.Boosted)
	}

	if len(summary.UnitsSkipped) > 0 {
		reasons := make([]string, 0, len(summary.UnitsSkipped))
		for reason := range summary.UnitsSkipped {
			reasons = append(reasons, string(reason))
		}
		sort.Strings(reasons)
		b.WriteString("\nПропущено:\n")
		for _, reason := range reasons {
			fmt.Fprintf(&b, "• %s: %d\n", reason, summary.UnitsSkipped[domain.UnitSkip(reason)])
		}
	}

	t := summary.TodayTotals
	fmt.Fprintf(&b, "\nЗа сутки: %d постов, %d комментариев, %d ответов\n", t.Posts, t.Comments, t.Replies)
	return b.String()
}
