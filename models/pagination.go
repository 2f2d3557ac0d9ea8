package models

// Page is one slice of an ordered result set. Number is zero-based.
type Page[T any] struct {
	Content       []T  `json:"content"`
	TotalElements int  `json:"totalElements"`
	TotalPages    int  `json:"totalPages"`
	Number        int  `json:"number"`
	Size          int  `json:"size"`
	First         bool `json:"first"`
	Last          bool `json:"last"`
}

// TotalPages returns ceil(total/size), 0 for an empty set.
func TotalPages(total, size int) int {
	if total <= 0 || size <= 0 {
		return 0
	}
	return (total + size - 1) / size
}

// ClampPage moves page into [0, totalPages-1]; it returns 0 when there are no pages.
func ClampPage(page, totalPages int) int {
	if page < 0 || totalPages == 0 {
		return 0
	}
	if page > totalPages-1 {
		return totalPages - 1
	}
	return page
}

// NewPage creates a page response for content already sliced at page number.
func NewPage[T any](content []T, number, size, totalElements int) *Page[T] {
	if content == nil {
		content = []T{}
	}
	totalPages := TotalPages(totalElements, size)

	return &Page[T]{
		Content:       content,
		TotalElements: totalElements,
		TotalPages:    totalPages,
		Number:        number,
		Size:          size,
		First:         number == 0,
		Last:          number >= totalPages-1,
	}
}
