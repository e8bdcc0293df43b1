package notification

import (
	"fmt"
	"time"

	"coworking/internal/domain"

	"github.com/google/uuid"
)

type Type string

const (
	BookingCreated   Type = "booking_created"
	BookingCancelled Type = "booking_cancelled"
	BookingExtended  Type = "booking_extended"
	ZoneClosed       Type = "zone_closed"
)

// Event is the payload handed to every sender. It is self-contained so a
// sender never needs to read the database.
type Event struct {
	ID         uuid.UUID `json:"id"`
	Type       Type      `json:"type"`
	UserID     int64     `json:"user_id"`
	BookingID  int64     `json:"booking_id"`
	ZoneName   string    `json:"zone_name"`
	StartTime  time.Time `json:"start_time"`
	EndTime    time.Time `json:"end_time"`
	Reason     string    `json:"reason,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

func NewEvent(t Type, b *domain.Booking, reason string) Event {
	return Event{
		ID:         uuid.New(),
		Type:       t,
		UserID:     b.UserID,
		BookingID:  b.ID,
		ZoneName:   b.ZoneName,
		StartTime:  b.StartTime,
		EndTime:    b.EndTime,
		Reason:     reason,
		OccurredAt: time.Now().UTC(),
	}
}

// Message is the human-readable rendering of an event.
type Message struct {
	Subject   string
	EmailText string
	PushTitle string
	PushText  string
}

const displayLayout = "02.01.2006 15:04"

// Render formats the event for people, with times shown in loc.
func (e Event) Render(loc *time.Location) Message {
	start := e.StartTime.In(loc).Format(displayLayout)
	end := e.EndTime.In(loc).Format(displayLayout)

	switch e.Type {
	case BookingCreated:
		return Message{
			Subject:   "Бронирование создано",
			EmailText: fmt.Sprintf("Ваше бронирование в зоне «%s» создано.\nВремя: %s - %s", e.ZoneName, start, end),
			PushTitle: "Бронирование создано",
			PushText:  fmt.Sprintf("Бронирование в зоне «%s» создано", e.ZoneName),
		}
	case BookingCancelled:
		return Message{
			Subject:   "Бронирование отменено",
			EmailText: fmt.Sprintf("Ваше бронирование в зоне «%s» отменено.\nВремя: %s - %s", e.ZoneName, start, end),
			PushTitle: "Бронирование отменено",
			PushText:  fmt.Sprintf("Бронирование в зоне «%s» отменено", e.ZoneName),
		}
	case BookingExtended:
		return Message{
			Subject:   "Бронирование продлено",
			EmailText: fmt.Sprintf("Ваше бронирование в зоне «%s» продлено.\nНовое время окончания: %s", e.ZoneName, end),
			PushTitle: "Бронирование продлено",
			PushText:  fmt.Sprintf("Бронирование в зоне «%s» продлено", e.ZoneName),
		}
	case ZoneClosed:
		return Message{
			Subject: "Зона закрыта, бронирование отменено",
			EmailText: fmt.Sprintf("Зона «%s» закрыта.\nПричина: %s\nВаше бронирование отменено автоматически.\nВремя: %s - %s",
				e.ZoneName, e.Reason, start, end),
			PushTitle: "Зона закрыта",
			PushText:  fmt.Sprintf("Зона «%s» закрыта. Бронирование отменено", e.ZoneName),
		}
	}
	return Message{Subject: string(e.Type), EmailText: string(e.Type), PushTitle: string(e.Type), PushText: string(e.Type)}
}
