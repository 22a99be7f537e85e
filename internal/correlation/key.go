package correlation

import (
	"fmt"
	"strconv"
	"strings"
)

// Key identifies the message delivered for one (reminder, recipient) pair.
type Key struct {
	ReminderID  string
	RecipientID int64
}

// String renders the legacy composite form "{reminderId}_{recipientId}".
func (k Key) String() string {
	return fmt.Sprintf("%s_%d", k.ReminderID, k.RecipientID)
}

// ParseKey parses the legacy composite form. Reminder ids contain
// underscores ("rem_1712051112000000000"), so the split happens on the LAST
// underscore. This breaks if recipient ids are ever non-numeric; such
// entries are exactly what PurgeMalformed removes.
func ParseKey(s string) (Key, error) {
	i := strings.LastIndex(s, "_")
	if i <= 0 || i == len(s)-1 {
		return Key{}, fmt.Errorf("malformed correlation key %q", s)
	}
	recipientID, err := strconv.ParseInt(s[i+1:], 10, 64)
	if err != nil {
		return Key{}, fmt.Errorf("malformed correlation key %q: recipient id is not numeric", s)
	}
	return Key{ReminderID: s[:i], RecipientID: recipientID}, nil
}
