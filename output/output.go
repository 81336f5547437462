// Package output serializes a laid out document and commits it to a
// destination. Serialization completes in memory before the destination is
// touched, so a failed write never leaves a partial artifact behind.
package output

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"pkt.systems/report/layout"
)

var (
	// ErrSerialization matches *SerializationError.
	ErrSerialization = errors.New("serialization failed")
	// ErrWrite matches *WriteError.
	ErrWrite = errors.New("write failed")
)

// SerializationError reports a document the serializer could not encode.
type SerializationError struct {
	Format string
	Err    error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("serialize %s: %v", e.Format, e.Err)
}

func (e *SerializationError) Unwrap() error { return e.Err }

func (e *SerializationError) Is(target error) bool { return target == ErrSerialization }

// WriteError reports a destination I/O failure.
type WriteError struct {
	Dest string
	Op   string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write %s: %s: %v", e.Dest, e.Op, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

func (e *WriteError) Is(target error) bool { return target == ErrWrite }

// Serializer encodes a document in one output format.
type Serializer interface {
	// Format names the output format, e.g. "pdf".
	Format() string
	ContentType() string
	Serialize(w io.Writer, doc *layout.Document) error
}

// Destination receives a fully serialized artifact.
type Destination interface {
	// String names the destination in errors and results.
	String() string
	// Commit writes data in full or reports why it could not.
	Commit(data []byte) error
}

// Artifact describes a committed document.
type Artifact struct {
	Destination string
	Format      string
	ContentType string
	Bytes       int
	// Digest is the hex SHA-256 of the bytes written.
	Digest string
}

// Write validates doc, serializes it in memory and commits the result to
// dest.
func Write(doc *layout.Document, s Serializer, dest Destination) (Artifact, error) {
	if err := doc.Validate(); err != nil {
		return Artifact{}, &SerializationError{Format: s.Format(), Err: err}
	}
	var buf bytes.Buffer
	if err := s.Serialize(&buf, doc); err != nil {
		return Artifact{}, &SerializationError{Format: s.Format(), Err: err}
	}
	if err := dest.Commit(buf.Bytes()); err != nil {
		var we *WriteError
		if !errors.As(err, &we) {
			err = &WriteError{Dest: dest.String(), Op: "commit", Err: err}
		}
		return Artifact{}, err
	}
	sum := sha256.Sum256(buf.Bytes())
	return Artifact{
		Destination: dest.String(),
		Format:      s.Format(),
		ContentType: s.ContentType(),
		Bytes:       buf.Len(),
		Digest:      hex.EncodeToString(sum[:]),
	}, nil
}
