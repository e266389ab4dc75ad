package scimprov

// pageWindow is the SQL window derived from a list request's pagination
// parameters.
type pageWindow struct {
	offset int
	limit  int
}

// newPageWindow converts protocol pagination parameters into a SQL
// window. startIndex is 1-based; values below 1 are treated as 1. A
// non-positive count is indistinguishable from an absent one and falls
// back to the default page size. The effective limit never exceeds the
// configured maximum and never drops below 1.
func newPageWindow(startIndex, count, defaultPageSize, maxPageSize int) pageWindow {
	offset := startIndex - 1
	if offset < 0 {
		offset = 0
	}

	limit := count
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if limit < 1 {
		limit = 1
	}

	return pageWindow{offset: offset, limit: limit}
}
