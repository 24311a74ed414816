package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorLabel(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"not found wrapped", fmt.Errorf("Read: a.pdf: %w", ErrNotFound), "not_found"},
		{"corrupt", fmt.Errorf("Extract: %w", ErrCorruptDocument), "corrupt_document"},
		{"header", ErrHeaderNotFound, "header_not_found"},
		{"timeout", fmt.Errorf("Process: %w", ErrTimeout), "timeout"},
		{"other", errors.New("boom"), "boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ErrorLabel(tt.err))
		})
	}
}

func TestWarningString(t *testing.T) {
	tests := []struct {
		name string
		w    Warning
		want string
	}{
		{
			name: "document level",
			w:    NewWarning(WarnCurrencyUnknown, "no currency detected"),
			want: "currency_unknown: no currency detected",
		},
		{
			name: "page level is one based",
			w:    PageWarning(WarnOCRFallback, 2, "native text too short (%d chars)", 4),
			want: "ocr_fallback: page 3: native text too short (4 chars)",
		},
		{
			name: "row level",
			w:    RowWarning(WarnRowSkipped, 0, 7, "unparseable amount"),
			want: "row_skipped: page 1 row 7: unparseable amount",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.w.String())
		})
	}
}
