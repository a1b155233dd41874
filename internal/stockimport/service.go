package stockimport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/MrJamesThe3rd/cafenet/internal/ledger"
)

// Adder is the slice of the ledger the importer needs.
type Adder interface {
	AddProduct(ctx context.Context, params ledger.AddParams) (*ledger.Product, error)
}

// Result summarizes one import run.
type Result struct {
	Charset string            `json:"charset"`
	Added   []*ledger.Product `json:"added"`
	Skipped []RowError        `json:"skipped"`
}

type Service struct {
	ledger Adder
}

func NewService(l Adder) *Service {
	return &Service{ledger: l}
}

// Import parses r and adds one product per valid row. Every added row is an
// ordinary ADD command, so each can be undone on its own. Rows the ledger
// rejects are reported in Skipped; a storage failure aborts the run.
func (s *Service) Import(ctx context.Context, r io.Reader, opts Options) (*Result, error) {
	sheet, err := Parse(r, opts)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Charset: sheet.Charset,
		Added:   make([]*ledger.Product, 0, len(sheet.Rows)),
		Skipped: sheet.Invalid,
	}

	for _, row := range sheet.Rows {
		p, err := s.ledger.AddProduct(ctx, row.Params)
		if err != nil {
			if errors.Is(err, ledger.ErrStorage) {
				return result, fmt.Errorf("line %d: %w", row.Line, err)
			}

			result.Skipped = append(result.Skipped, RowError{Line: row.Line, Err: err.Error()})

			continue
		}

		result.Added = append(result.Added, p)
	}

	slog.Info("stock import finished",
		"charset", result.Charset, "added", len(result.Added), "skipped", len(result.Skipped))

	return result, nil
}
