package trace

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// FileDecoder lazily decodes records from one trace file in file order.
// Records with an unknown type code are skipped with a warning. A truncated
// final record ends the stream silently.
type FileDecoder struct {
	name   string
	r      *bufio.Reader
	c      io.Closer
	size   int64
	offset int64
	buf    [RecordSize]byte
	done   bool
	log    *logrus.Entry
}

// OpenFile opens path for decoding. The caller must Close the decoder.
func OpenFile(path string) (*FileDecoder, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening trace file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("stat trace file: %w", err)
	}
	d := NewDecoder(f, path)
	d.c = f
	d.size = info.Size()
	return d, nil
}

// NewDecoder decodes records from r. name only labels diagnostics.
func NewDecoder(r io.Reader, name string) *FileDecoder {
	return &FileDecoder{
		name: name,
		r:    bufio.NewReader(r),
		log:  logrus.WithField("file", name),
	}
}

// Name returns the path or label the decoder was created with.
func (d *FileDecoder) Name() string { return d.name }

// Size returns the file size in bytes, or 0 for decoders not backed by a file.
func (d *FileDecoder) Size() int64 { return d.size }

// Next returns the next valid event, or io.EOF.
func (d *FileDecoder) Next() (*Event, error) {
	for !d.done {
		n, err := io.ReadFull(d.r, d.buf[:])
		switch {
		case errors.Is(err, io.EOF):
			d.done = true
			return nil, io.EOF
		case errors.Is(err, io.ErrUnexpectedEOF):
			d.log.Debugf("discarding %d trailing bytes at offset %d", n, d.offset)
			d.done = true
			return nil, io.EOF
		case err != nil:
			d.done = true
			return nil, fmt.Errorf("reading %s at offset %d: %w", d.name, d.offset, err)
		}

		ev, err := Decode(d.buf[:])
		var invalid *InvalidTypeError
		if errors.As(err, &invalid) {
			d.log.Warnf("skipping record with invalid type num %d at offset %d", invalid.Code, d.offset)
			d.offset += RecordSize
			continue
		}
		if err != nil {
			return nil, err
		}
		d.offset += RecordSize
		return ev, nil
	}
	return nil, io.EOF
}

// Close releases the underlying file. It is safe to call more than once.
func (d *FileDecoder) Close() error {
	d.done = true
	if d.c == nil {
		return nil
	}
	c := d.c
	d.c = nil
	return c.Close()
}
