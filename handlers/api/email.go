package api

import (
	"fmt"
	"io"
	"strings"

	"aliasmail/models"
	"aliasmail/utils"

	"github.com/emersion/go-imap"
)

// Search returns every message whose To recipients include alias exactly. The server
// search is only a pre-filter (IMAP TO matches substrings); the exact comparison
// happens here. Result order is whatever the server reports.
func (c *Client) Search(alias string) ([]models.Message, error) {
	log := c.log.WithField("alias", alias)

	var result []models.Message
	err := c.withFolder(true, func(s Session) error {
		uids, err := searchRecipient(s, alias)
		if err != nil {
			return err
		}
		msgs, err := fetchMessages(s, uids, true, log)
		if err != nil {
			return err
		}
		result = filterRecipient(msgs, alias, log)
		return nil
	})
	if err != nil {
		return nil, unavailable(err)
	}
	return result, nil
}

// DeleteAll flags every message addressed to alias as \Deleted and purges them. A
// message that cannot be flagged is logged and skipped. It returns how many messages
// were flagged.
func (c *Client) DeleteAll(alias string) (int, error) {
	log := c.log.WithField("alias", alias)

	deleted := 0
	err := c.withFolder(false, func(s Session) error {
		uids, err := searchRecipient(s, alias)
		if err != nil {
			return err
		}
		msgs, err := fetchMessages(s, uids, false, log)
		if err != nil {
			return err
		}
		msgs = filterRecipient(msgs, alias, log)
		if len(msgs) == 0 {
			return nil
		}

		item := imap.FormatFlagsOp(imap.AddFlags, true)
		flags := []interface{}{imap.DeletedFlag}
		for i, msg := range msgs {
			seqSet := new(imap.SeqSet)
			seqSet.AddNum(msg.UID)

			if err := s.UidStore(seqSet, item, flags, nil); err != nil {
				log.Warn("Error marking message %d/%d (uid %d) as deleted: %v", i+1, len(msgs), msg.UID, err)
				continue
			}
			deleted++
		}

		if deleted > 0 {
			// On failure the folder close below still purges the flagged messages.
			if err := s.Expunge(nil); err != nil {
				log.Error("Error expunging folder: %v", err)
			}
		}
		return nil
	})
	if err != nil {
		return -1, unavailable(err)
	}
	return deleted, nil
}

func searchRecipient(s Session, alias string) ([]uint32, error) {
	criteria := imap.NewSearchCriteria()
	criteria.Header.Add("To", alias)

	uids, err := s.UidSearch(criteria)
	if err != nil {
		return nil, fmt.Errorf("error searching for %s: %w", alias, err)
	}
	return uids, nil
}

// fetchMessages fetches envelopes, and full bodies when withBody is set, for uids.
func fetchMessages(s Session, uids []uint32, withBody bool, log *utils.Logger) ([]models.Message, error) {
	if len(uids) == 0 {
		return nil, nil
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uids...)

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchUid, imap.FetchEnvelope}
	if withBody {
		items = append(items, section.FetchItem())
	}

	messages := make(chan *imap.Message, len(uids))
	done := make(chan error, 1)
	go func() {
		done <- s.UidFetch(seqSet, items, messages)
	}()

	var result []models.Message
	for msg := range messages {
		m := toMessage(msg)
		if withBody {
			m.Body = readBody(msg, section, log)
		}
		result = append(result, m)
	}

	if err := <-done; err != nil {
		return nil, fmt.Errorf("error during fetch: %w", err)
	}
	return result, nil
}

func toMessage(msg *imap.Message) models.Message {
	m := models.Message{UID: msg.Uid}
	if msg.Envelope == nil {
		return m
	}

	m.Date = msg.Envelope.Date
	if len(msg.Envelope.From) > 0 && msg.Envelope.From[0] != nil {
		from := msg.Envelope.From[0]
		m.From = &models.Address{Name: from.PersonalName, Email: from.Address()}
	}
	for _, addr := range msg.Envelope.To {
		if addr != nil {
			m.To = append(m.To, strings.ToLower(addr.Address()))
		}
	}
	return m
}

// readBody parses the fetched body. A message that cannot be read or parsed keeps
// whatever tree was recovered (possibly nil) so scans can skip it.
func readBody(msg *imap.Message, section *imap.BodySectionName, log *utils.Logger) *models.Part {
	r := msg.GetBody(section)
	if r == nil {
		log.Warn("No body returned for uid %d", msg.Uid)
		return nil
	}
	raw, err := io.ReadAll(r)
	if err != nil {
		log.Warn("Error reading body of uid %d: %v", msg.Uid, err)
		return nil
	}
	part, err := parseBody(raw)
	if err != nil {
		log.Warn("Error parsing uid %d: %v", msg.Uid, err)
	}
	return part
}

func filterRecipient(msgs []models.Message, alias string, log *utils.Logger) []models.Message {
	matched := msgs[:0:0]
	for _, msg := range msgs {
		if msg.AddressedTo(alias) {
			matched = append(matched, msg)
		}
	}
	if dropped := len(msgs) - len(matched); dropped > 0 {
		log.Debug("Dropped %d server matches not addressed exactly to the alias", dropped)
	}
	return matched
}
