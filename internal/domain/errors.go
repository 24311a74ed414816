package domain

import "errors"

var (
	// ErrNotFound means the input file or object does not exist.
	ErrNotFound = errors.New("not found")

	// ErrCorruptDocument means the PDF container could not be opened or has no pages.
	ErrCorruptDocument = errors.New("corrupt document")

	// ErrHeaderNotFound means neither an opening nor a closing balance could be located.
	ErrHeaderNotFound = errors.New("account header not found")

	// ErrTimeout means the document exceeded its processing deadline.
	ErrTimeout = errors.New("document processing timed out")
)

// ErrorLabel maps a pipeline error to the short label used in batch summaries.
func ErrorLabel(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrCorruptDocument):
		return "corrupt_document"
	case errors.Is(err, ErrHeaderNotFound):
		return "header_not_found"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	default:
		return err.Error()
	}
}
