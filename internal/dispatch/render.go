package dispatch

import "strings"

// Callback data prefixes understood by the front end.
const (
	ActionDone      = "done"
	ActionNotYet    = "notyet"
	ActionBought    = "bought"
	ActionNotBought = "notbought"
)

func renderText(n Notification) string {
	var b strings.Builder
	if n.Missed {
		b.WriteString("⚠️ *Missed while the bot was offline*\n")
	}
	if n.Urgent {
		b.WriteString("‼️ ")
	} else if n.Ingredient {
		b.WriteString("🛒 ")
	} else {
		b.WriteString("⏰ ")
	}
	b.WriteString(n.Text)
	return b.String()
}

func renderButtons(n Notification) []Button {
	if n.Ingredient {
		return []Button{
			{Label: "✅ Bought", Data: ActionBought + "|" + n.ReminderID},
			{Label: "🙅 Not bought yet", Data: ActionNotBought + "|" + n.ReminderID},
		}
	}
	return []Button{
		{Label: "✅ Done", Data: ActionDone + "|" + n.ReminderID},
		{Label: "⏳ Not yet", Data: ActionNotYet + "|" + n.ReminderID},
	}
}
