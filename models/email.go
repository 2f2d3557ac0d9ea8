package models

import (
	"strings"
	"time"
)

// Address is a sender or recipient; Name is optional.
type Address struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email"`
}

// Display renders "Name <email>" or just the email when there is no name.
func (a *Address) Display() string {
	if a == nil {
		return ""
	}
	if a.Name == "" {
		return a.Email
	}
	return a.Name + " <" + a.Email + ">"
}

// Part is one node of a message body tree: either a leaf with decoded Content, or a
// multipart container with ordered child Parts.
type Part struct {
	ContentType string  `json:"content_type"` // lower-cased media type, e.g. "text/plain"
	Attachment  bool    `json:"attachment"`   // Content-Disposition: attachment
	Content     string  `json:"-"`
	Parts       []*Part `json:"parts,omitempty"`
}

// IsMultipart reports whether the part is a container.
func (p *Part) IsMultipart() bool {
	return strings.HasPrefix(p.ContentType, "multipart/")
}

// IsText reports whether the part is an inline leaf of the given text subtype.
func (p *Part) IsText(subtype string) bool {
	return !p.Attachment && p.ContentType == "text/"+subtype
}

// Message is a read-only view of a server message, valid for a single operation.
type Message struct {
	UID  uint32
	From *Address
	Date time.Time // zero when the message carries no send time
	To   []string  // recipient addresses, lower-cased
	Body *Part     // nil when the body could not be fetched or parsed
}

// HasDate reports whether the message carries a send time.
func (m Message) HasDate() bool {
	return !m.Date.IsZero()
}

// AddressedTo reports exact (case-insensitive) equality of alias with one of the To
// recipients. This is the only isolation between aliases sharing the mailbox.
func (m Message) AddressedTo(alias string) bool {
	alias = strings.ToLower(strings.TrimSpace(alias))
	if alias == "" {
		return false
	}
	for _, to := range m.To {
		if to == alias {
			return true
		}
	}
	return false
}

// SentTimeLayout is the display format of EmailContent.SentTime.
const SentTimeLayout = "2006-01-02 15:04:05"

// EmailContent is the flattened, display-ready projection of a Message.
type EmailContent struct {
	Sender   string `json:"sender"`
	SentTime string `json:"sentTime"`
	Body     string `json:"body"`
	Preview  string `json:"preview,omitempty"`
}
