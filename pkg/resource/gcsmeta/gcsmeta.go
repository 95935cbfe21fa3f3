// Package gcsmeta extracts storage-provider metadata from an uploaded file part.
//
// When a client uploads directly to the blob store, the store hands the
// application a file part whose leading bytes are the provider's response
// headers, written as a MIME-style header block followed by the actual
// payload. The header of interest carries the fully qualified object path in
// the form "/gs/<bucket>/<dir...>/<object>".
package gcsmeta

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"net/textproto"
	"strings"
)

// ObjectHeader is the provider response header carrying the object path.
const ObjectHeader = "X-AppEngine-Cloud-Storage-Object"

// ErrMalformed indicates the uploaded part did not carry a usable
// cloud-storage object header.
var ErrMalformed = errors.New("malformed cloud storage metadata")

// Meta is the (bucket, directory, object) triple recovered from an upload.
// Dir may contain slashes when the object sits below nested directories.
type Meta struct {
	Bucket string
	Dir    string
	Object string
}

// Path returns the fully qualified "bucket/dir/object" path.
func (m Meta) Path() string {
	return fmt.Sprintf("%s/%s/%s", m.Bucket, m.Dir, m.Object)
}

// ObjectPath returns the "dir/object" path relative to the bucket.
func (m Meta) ObjectPath() string {
	return fmt.Sprintf("%s/%s", m.Dir, m.Object)
}

// Extract parses the header block at the start of raw and returns the
// storage metadata triple. It reads "Name: value" lines up to the blank-line
// boundary; any payload beyond it is ignored. Extract performs no I/O.
func Extract(raw []byte) (Meta, error) {
	reader := textproto.NewReader(bufio.NewReader(bytes.NewReader(raw)))
	headers, err := reader.ReadMIMEHeader()
	// textproto reports io.EOF / io.ErrUnexpectedEOF when the block ends
	// without a blank line; the headers read so far are still returned.
	if err != nil && len(headers) == 0 {
		return Meta{}, fmt.Errorf("%w: unreadable header block: %v", ErrMalformed, err)
	}

	objectURL := headers.Get(ObjectHeader)
	if objectURL == "" {
		return Meta{}, fmt.Errorf("%w: missing %s header", ErrMalformed, ObjectHeader)
	}

	return splitObjectURL(objectURL)
}

// splitObjectURL splits "/gs/bucket/dir/object" on "/", drops the two leading
// marker segments and requires at least bucket, directory and object to
// remain.
func splitObjectURL(objectURL string) (Meta, error) {
	segments := strings.Split(objectURL, "/")
	if len(segments) <= 2 {
		return Meta{}, fmt.Errorf("%w: object path %q too short", ErrMalformed, objectURL)
	}
	segments = segments[2:]
	if len(segments) < 3 {
		return Meta{}, fmt.Errorf("%w: object path %q too short", ErrMalformed, objectURL)
	}

	return Meta{
		Bucket: segments[0],
		Dir:    strings.Join(segments[1:len(segments)-1], "/"),
		Object: segments[len(segments)-1],
	}, nil
}
