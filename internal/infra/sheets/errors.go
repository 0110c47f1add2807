package sheets

import "fmt"

// TransportError is a failed exchange with the row store: network failure,
// non-2xx status, or a well-formed response with success=false.
type TransportError struct {
	Op         string
	StatusCode int
	Message    string
	Err        error
}

func (e *TransportError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("sheets %s: %v", e.Op, e.Err)
	case e.StatusCode != 0 && e.StatusCode/100 != 2:
		return fmt.Sprintf("sheets %s: status %d: %s", e.Op, e.StatusCode, e.Message)
	default:
		return fmt.Sprintf("sheets %s: rejected: %s", e.Op, e.Message)
	}
}

func (e *TransportError) Unwrap() error { return e.Err }

// MalformedResponseError is a response body that is not the expected JSON
// envelope, typically an HTML login or error page.
type MalformedResponseError struct {
	Op          string
	ContentType string
	Snippet     string
	Err         error
}

func (e *MalformedResponseError) Error() string {
	msg := fmt.Sprintf("sheets %s: malformed response (content-type %q): %s", e.Op, e.ContentType, e.Snippet)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }
