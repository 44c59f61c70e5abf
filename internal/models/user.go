package models

// User represents a diner.
type User struct {
	// ID is the unique identifier for the user (UUID format).
	ID string `json:"id"`

	// Name is the display name used in reminders.
	Name string `json:"name"`

	// Phone is the plain phone number. Always present.
	Phone string `json:"phone"`

	// WhatsAppNumber is an optional messaging-capable number.
	// Reminders prefer it over Phone.
	WhatsAppNumber string `json:"whatsapp_number,omitempty"`

	// PaymentHandle is how this user wants to be paid back when they are
	// the payer (e.g. "@alice on Venmo").
	PaymentHandle string `json:"payment_handle,omitempty"`

	// CreatedAt is the Unix timestamp when the user was created.
	CreatedAt int64 `json:"created_at"`
}

// ContactNumber returns the number reminders should go to.
func (u *User) ContactNumber() string {
	if u.WhatsAppNumber != "" {
		return u.WhatsAppNumber
	}
	return u.Phone
}
