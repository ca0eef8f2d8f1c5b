package ingestion_engine

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"

	"code.sajari.com/docconv"

	"github.com/markdave123-py/studygalaxy/internal/core"
)

// DocconvPageCounter implements core.PageCounter using sajari/docconv.
// Text extraction itself belongs to the AI backend; only the metadata is read.
type DocconvPageCounter struct{}

var _ core.PageCounter = DocconvPageCounter{}

func NewDocconvPageCounter() DocconvPageCounter {
	return DocconvPageCounter{}
}

func (DocconvPageCounter) CountPages(ctx context.Context, data []byte) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	_, meta, err := docconv.ConvertPDF(bytes.NewReader(data))
	if err != nil {
		return 0, fmt.Errorf("docconv: read pdf metadata: %w", err)
	}
	return parsePages(meta)
}

func parsePages(meta map[string]string) (int, error) {
	raw, ok := meta["Pages"]
	if !ok {
		return 0, fmt.Errorf("docconv: no page count in metadata")
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 0 {
		return 0, fmt.Errorf("docconv: bad page count %q", raw)
	}
	return n, nil
}
