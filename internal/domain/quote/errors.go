package quote

import "github.com/pkg/errors"

var (
	ErrRowNotFound              = errors.New("linked row not found")
	ErrStaleIndex               = errors.New("row index no longer matches ledger content")
	ErrSerialAllocationDegraded = errors.New("serial allocated from clock fallback")
	ErrQuotationNotFound        = errors.New("quotation not found")
)
