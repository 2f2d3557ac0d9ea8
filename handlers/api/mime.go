package api

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"aliasmail/models"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
)

// parseBody decodes a raw RFC 5322 message into a body tree. Transfer encodings and
// known charsets are decoded; an unknown charset or encoding keeps the raw bytes.
func parseBody(raw []byte) (*models.Part, error) {
	entity, err := message.Read(bytes.NewReader(raw))
	if err != nil && !message.IsUnknownCharset(err) && !message.IsUnknownEncoding(err) {
		return nil, fmt.Errorf("%w: %v", ErrParseFailure, err)
	}

	part, err := walkEntity(entity)
	if err != nil {
		return part, fmt.Errorf("%w: %v", ErrParseFailure, err)
	}
	return part, nil
}

func walkEntity(e *message.Entity) (*models.Part, error) {
	mediaType, _, _ := e.Header.ContentType()
	mediaType = strings.ToLower(mediaType)
	if mediaType == "" {
		mediaType = "text/plain"
	}

	disposition, _, _ := e.Header.ContentDisposition()
	part := &models.Part{
		ContentType: mediaType,
		Attachment:  strings.EqualFold(disposition, "attachment"),
	}

	if mr := e.MultipartReader(); mr != nil {
		for {
			child, err := mr.NextPart()
			if err == io.EOF {
				break
			}
			if err != nil && !message.IsUnknownCharset(err) && !message.IsUnknownEncoding(err) {
				return part, err
			}

			childPart, err := walkEntity(child)
			if childPart != nil {
				part.Parts = append(part.Parts, childPart)
			}
			if err != nil {
				return part, err
			}
		}
		return part, nil
	}

	if !strings.HasPrefix(mediaType, "text/") {
		// Only text leaves are ever read; skip the payload of everything else.
		_, _ = io.Copy(io.Discard, e.Body)
		return part, nil
	}

	body, err := io.ReadAll(e.Body)
	if err != nil {
		return part, err
	}
	part.Content = string(body)
	return part, nil
}
