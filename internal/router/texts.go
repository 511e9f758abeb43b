package router

import (
	"fmt"
	"strings"
	"time"

	"remindbot/internal/reminder"
	"remindbot/internal/transport"
)

const welcomeText = "Welcome to the reminder bot! To set a reminder, use one of the following commands:\n\n" +
	"/hourly <reminder text> - Set a reminder to be sent every hour.\n" +
	"/daily <reminder text> - Set a reminder to be sent every day.\n" +
	"/weekly <reminder text> - Set a reminder to be sent every week.\n" +
	"/monthly <reminder text> - Set a reminder to be sent every month.\n" +
	"/list - Show the reminders set in this chat.\n"

const listTimeLayout = "Mon 2006-01-02 15:04 MST"

func menuDescription(k reminder.Kind) string {
	switch k {
	case reminder.KindHourly:
		return "Set a reminder sent every hour"
	case reminder.KindDaily:
		return "Set a reminder sent every day"
	case reminder.KindWeekly:
		return "Set a reminder sent every week"
	default:
		return "Set a reminder sent every month"
	}
}

func menuCommands() []transport.BotCommand {
	out := []transport.BotCommand{{Command: "start", Description: "Show how to set reminders"}}
	for _, k := range reminder.Kinds {
		out = append(out, transport.BotCommand{Command: k.String(), Description: menuDescription(k)})
	}
	return append(out, transport.BotCommand{Command: "list", Description: "Show your reminders"})
}

func confirmText(job reminder.Job, loc *time.Location) string {
	var b strings.Builder
	b.WriteString(job.Recurrence.Kind.Label())
	b.WriteString(" reminder set to: ")
	b.WriteString(job.Text)
	if !job.NextFireAt.IsZero() {
		fmt.Fprintf(&b, "\n\nFirst reminder: %s (%s)", job.NextFireAt.In(loc).Format(listTimeLayout), job.Recurrence.Describe())
	}
	return b.String()
}

func listText(jobs []reminder.Job, loc *time.Location) string {
	if len(jobs) == 0 {
		return "You have no reminders yet. Send /start to see how to set one."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Reminders in this chat (%d):\n", len(jobs))
	for i, j := range jobs {
		text := j.Text
		if strings.TrimSpace(text) == "" {
			text = "(empty)"
		}
		fmt.Fprintf(&b, "\n%d. [%s] %s\n   %s, next %s", i+1, j.Recurrence.Kind.Label(), text, j.Recurrence.Describe(), j.NextFireAt.In(loc).Format(listTimeLayout))
	}
	return b.String()
}
