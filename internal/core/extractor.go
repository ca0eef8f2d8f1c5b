package core

import "context"

// PageCounter reads document metadata without extracting content.
type PageCounter interface {
	// CountPages returns the page count of a PDF held in data.
	CountPages(ctx context.Context, data []byte) (int, error)
}
