package api

import (
	"sort"

	"aliasmail/models"
)

// sortNewestFirst returns a copy of msgs ordered by send time descending. Messages
// without a send time sort after all dated ones. Ties, including undated messages, fall
// back to the higher UID first, i.e. the later arrival.
func sortNewestFirst(msgs []models.Message) []models.Message {
	sorted := make([]models.Message, len(msgs))
	copy(sorted, msgs)

	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		switch {
		case a.HasDate() && !b.HasDate():
			return true
		case !a.HasDate() && b.HasDate():
			return false
		case a.HasDate() && !a.Date.Equal(b.Date):
			return a.Date.After(b.Date)
		}
		return a.UID > b.UID
	})
	return sorted
}

// Paginate orders msgs newest first and returns the requested zero-based page. An
// out-of-range page is clamped to the nearest valid one; a non-positive size is
// treated as 1.
func Paginate(msgs []models.Message, page, size int) *models.Page[models.EmailContent] {
	if size <= 0 {
		size = 1
	}
	total := len(msgs)
	page = models.ClampPage(page, models.TotalPages(total, size))

	start := page * size
	end := start + size
	if end > total {
		end = total
	}
	if start > end {
		start = end
	}

	ordered := sortNewestFirst(msgs)
	content := make([]models.EmailContent, 0, end-start)
	for _, msg := range ordered[start:end] {
		content = append(content, ToEmailContent(msg))
	}

	return models.NewPage(content, page, size, total)
}
