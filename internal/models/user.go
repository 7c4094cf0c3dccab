package models

import (
	"encoding/json"
	"time"
)

// DefaultRole is used for users the upstream API returns without a role.
const DefaultRole = "user"

// UserStatusActive is the upstream status of a user that can log in.
const UserStatusActive = "active"

// User is a non-service user account of a tenant.
type User struct {
	Name      string    `json:"name,omitempty"`
	Email     string    `json:"email"`
	Role      string    `json:"role,omitempty"`
	LastLogin Timestamp `json:"last_login"`
	Status    string    `json:"status"`
	IsBlocked bool      `json:"is_blocked"`
}

// IsRegistered reports whether the user counts as registered: active and not blocked.
func (u User) IsRegistered() bool {
	return u.Status == UserStatusActive && !u.IsBlocked
}

// DisplayName returns the user's name, or "N/A" when the upstream omitted it.
func (u User) DisplayName() string {
	if u.Name == "" {
		return "N/A"
	}
	return u.Name
}

// RoleOrDefault returns the user's role, or DefaultRole when unset.
func (u User) RoleOrDefault() string {
	if u.Role == "" {
		return DefaultRole
	}
	return u.Role
}

// RegisteredUsers returns the users that are active and not blocked, in input order.
func RegisteredUsers(users []User) []User {
	out := make([]User, 0, len(users))
	for _, u := range users {
		if u.IsRegistered() {
			out = append(out, u)
		}
	}
	return out
}

// Timestamp is a lenient upstream timestamp. It keeps the raw value so that
// unparseable timestamps can still be shown, and treats null, empty and the
// zero-time sentinels as "never".
type Timestamp struct {
	Time time.Time
	Raw  string

	// unparsed is set when Raw could not be read as an RFC 3339 time.
	unparsed bool
}

// UnmarshalJSON implements json.Unmarshaler. It never fails on a malformed
// timestamp string; the raw value is kept instead.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	*t = Timestamp{}
	if string(data) == "null" {
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		t.Raw = string(data)
		t.unparsed = true
		return nil
	}
	t.Raw = s
	parsed, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		t.unparsed = s != ""
		return nil
	}
	t.Time = parsed
	return nil
}

// MarshalJSON implements json.Marshaler. Never-set timestamps encode as null.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.Never() {
		return []byte("null"), nil
	}
	if t.unparsed {
		return json.Marshal(t.Raw)
	}
	return json.Marshal(t.Time.UTC().Format(time.RFC3339))
}

// Never reports whether the timestamp is absent or one of the upstream
// "never happened" sentinels (Go zero time or the Unix epoch).
func (t Timestamp) Never() bool {
	if t.unparsed {
		return t.Raw == "0001-01-01 00:00:00"
	}
	return t.Time.IsZero() || t.Time.Unix() == 0
}

// String renders the timestamp for the text report.
func (t Timestamp) String() string {
	switch {
	case t.Never():
		return "Never"
	case t.unparsed:
		return t.Raw
	default:
		return t.Time.UTC().Format("2006-01-02 15:04:05")
	}
}
