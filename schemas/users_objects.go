package schemas

// Identity is the opaque principal issued by the identity provider. Held in
// memory only, for the lifetime of the session.
type Identity struct {
	UID UserId `json:"uid"`
}

type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
	SeverityInfo    Severity = "info"
)

// Notification is a transient user-facing status message.
type Notification struct {
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}
