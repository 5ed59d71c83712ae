package pkg

// Paginate returns the zero-based page of items. Out of range pages are empty.
func Paginate[T any](items []T, page int, pageSize int) []T {
	if page < 0 || pageSize <= 0 || page > len(items)/pageSize {
		return []T{}
	}
	start := page * pageSize
	end := start + pageSize

	if start >= len(items) {
		return []T{}
	}

	if end > len(items) {
		end = len(items)
	}

	return items[start:end]
}
