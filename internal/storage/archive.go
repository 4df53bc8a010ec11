package storage

import "io"

// Archive keeps server-side copies of generated artifacts, such as
// exported result workbooks, keyed by a relative path.
type Archive interface {
	Save(key string, r io.Reader) error
	Open(key string) (io.ReadCloser, error)
}
