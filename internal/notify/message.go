package notify

import (
	"fmt"
	"strconv"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/kira-watch/internal/model"
)

// Kind is the alert class of a notification.
type Kind string

// Alert kinds.
const (
	KindCheckinReminder   Kind = "checkin_reminder"
	KindUrgentLateCheckin Kind = "urgent_late_checkin"
	KindMissedCheckin     Kind = "missed_checkin"
	KindSOSAlert          Kind = "sos_alert"
	KindTimerExpired      Kind = "timer_expired"
	KindSafeDay           Kind = "safe_day"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindCheckinReminder, KindUrgentLateCheckin, KindMissedCheckin,
		KindSOSAlert, KindTimerExpired, KindSafeDay:
		return true
	}
	return false
}

// Payload carries what the caller already knows. Nil fields are looked up.
type Payload struct {
	User     *model.User
	Contacts []model.TrustedContact
	Location *model.Location
}

// Message is a rendered notification.
type Message struct {
	Title string
	Body  string
	Data  map[string]string
}

// SMSText flattens the message for a text channel.
func (m Message) SMSText() string { return m.Title + ": " + m.Body }

func nameOr(u *model.User, fallback string) string {
	if u == nil || u.Name == "" {
		return fallback
	}
	return u.Name
}

// Render builds the message for kind about user.
func Render(kind Kind, userID uuid.UUID, user *model.User, loc *model.Location) Message {
	data := map[string]string{"type": string(kind), "userId": userID.String()}
	switch kind {
	case KindCheckinReminder:
		data["action"] = "open_checkin"
		return Message{
			Title: "🔔 KIRA Safety Reminder",
			Body:  "Don't forget to check in today! Your safety matters.",
			Data:  data,
		}
	case KindUrgentLateCheckin:
		data["action"] = "open_checkin"
		return Message{
			Title: "⚠️ KIRA Check-in Overdue",
			Body:  "You haven't checked in today. Check in now or your emergency contacts will be alerted.",
			Data:  data,
		}
	case KindMissedCheckin:
		return Message{
			Title: "⚠️ KIRA Missed Check-in Alert",
			Body:  fmt.Sprintf("%s has not checked in today. Please verify their safety.", nameOr(user, "A user")),
			Data:  data,
		}
	case KindSOSAlert:
		body := fmt.Sprintf("%s has triggered an SOS!", nameOr(user, "Someone"))
		if loc != nil {
			lat := strconv.FormatFloat(loc.Lat, 'f', -1, 64)
			lng := strconv.FormatFloat(loc.Lng, 'f', -1, 64)
			body += " Location: " + lat + ", " + lng
			data["lat"], data["lng"] = lat, lng
		}
		return Message{Title: "🚨 KIRA EMERGENCY SOS", Body: body, Data: data}
	case KindTimerExpired:
		return Message{
			Title: "⏰ KIRA Safety Timer Expired",
			Body:  fmt.Sprintf("%s's safety timer has expired without check-in. Please verify their safety.", nameOr(user, "A user")),
			Data:  data,
		}
	case KindSafeDay:
		return Message{
			Title: "✅ KIRA Check-in Received",
			Body:  "Thanks for checking in. Have a safe day!",
			Data:  data,
		}
	}
	return Message{Title: "KIRA", Body: string(kind), Data: data}
}
