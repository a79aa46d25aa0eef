package attendance

import "fmt"

// FetchError is returned when the attendance list cannot be read.
// Callers show a loading state instead of a partial list.
type FetchError struct {
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch attendance: HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("fetch attendance: %v", e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// UploadError is returned when a capture submission fails. Its message never
// includes server detail.
type UploadError struct {
	StatusCode int
	Err        error
}

func (e *UploadError) Error() string { return "upload failed" }

func (e *UploadError) Unwrap() error { return e.Err }
