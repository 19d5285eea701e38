package http

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// UploadFile is one file part of a multipart upload. The encoder closes Data
// exactly once if it implements io.Closer.
type UploadFile struct {
	Data io.Reader
	// FieldName defaults to file0, file1, ... by position in the upload list
	FieldName   string
	FileName    string
	ContentType string
	// Size is the number of bytes Data yields. When zero or negative it is
	// taken from the stream itself.
	Size int64
}

// OpenUploadFile opens path for upload. The content type is guessed from the
// extension.
func OpenUploadFile(fieldName, path string) (*UploadFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &UploadError{Field: fieldName, Err: err}
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, &UploadError{Field: fieldName, Err: err}
	}

	contentType := mime.TypeByExtension(filepath.Ext(path))
	if contentType == "" {
		contentType = OctetStream
	}

	return &UploadFile{
		Data:        f,
		FieldName:   fieldName,
		FileName:    filepath.Base(path),
		ContentType: contentType,
		Size:        info.Size(),
	}, nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

type uploadPart struct {
	field       string
	fileName    string
	contentType string
	data        io.Reader
	closer      io.Closer
	size        int64
}

// MultipartBody is a multipart/form-data body whose exact length is known
// before any byte is written.
type MultipartBody struct {
	boundary string
	fields   *ParameterMap
	parts    []*uploadPart
	length   int64
}

// NewMultipartBody prepares fields and files for upload. Fields are written
// first in map order, then files in list order. If an error is returned
// every stream has already been closed.
func NewMultipartBody(fields *ParameterMap, files []*UploadFile) (*MultipartBody, error) {
	b := &MultipartBody{
		boundary: "----------" + strings.ReplaceAll(uuid.NewString(), "-", ""),
		fields:   fields.Clone(),
	}

	for i, f := range files {
		if f == nil {
			closeUploads(files)
			return nil, &UploadError{Field: fmt.Sprintf("file%d", i), Err: errors.New("nil upload file")}
		}
	}

	for i, f := range files {
		part := &uploadPart{
			field:       f.FieldName,
			fileName:    f.FileName,
			contentType: f.ContentType,
			data:        f.Data,
			size:        f.Size,
		}
		if part.field == "" {
			part.field = fmt.Sprintf("file%d", i)
		}
		if part.fileName == "" {
			part.fileName = part.field
		}
		if part.contentType == "" {
			part.contentType = OctetStream
		}
		if c, ok := f.Data.(io.Closer); ok {
			part.closer = c
		}
		b.parts = append(b.parts, part)
	}

	for _, part := range b.parts {
		if err := part.resolveSize(); err != nil {
			b.Close()
			return nil, &UploadError{Field: part.field, Err: err}
		}
	}

	length, err := b.frameLength()
	if err != nil {
		b.Close()
		return nil, err
	}
	b.length = length
	return b, nil
}

// closeUploads closes the stream of every file in the list.
func closeUploads(files []*UploadFile) {
	for _, f := range files {
		if f == nil {
			continue
		}
		if c, ok := f.Data.(io.Closer); ok {
			c.Close()
		}
	}
}

func (p *uploadPart) resolveSize() error {
	if p.data == nil {
		return errors.New("no data")
	}
	if p.size > 0 {
		return nil
	}

	switch r := p.data.(type) {
	case interface{ Len() int }:
		p.size = int64(r.Len())
		return nil
	case interface{ Stat() (os.FileInfo, error) }:
		info, err := r.Stat()
		if err == nil && info.Mode().IsRegular() {
			p.size = info.Size()
			if s, ok := p.data.(io.Seeker); ok {
				// Account for streams that were already partially read.
				return p.seekSize(s)
			}
			return nil
		}
	}

	if s, ok := p.data.(io.Seeker); ok {
		return p.seekSize(s)
	}

	// Unsized stream: buffer it so the length is exact.
	buf, err := io.ReadAll(p.data)
	if err != nil {
		return err
	}
	p.data = bytes.NewReader(buf)
	p.size = int64(len(buf))
	return nil
}

func (p *uploadPart) seekSize(s io.Seeker) error {
	cur, err := s.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}
	end, err := s.Seek(0, io.SeekEnd)
	if err != nil {
		return err
	}
	if _, err := s.Seek(cur, io.SeekStart); err != nil {
		return err
	}
	p.size = end - cur
	return nil
}

// frameLength writes the framing without content to a counter and adds the
// declared content sizes.
func (b *MultipartBody) frameLength() (int64, error) {
	cw := &countingWriter{w: io.Discard}
	mw, err := b.newWriter(cw)
	if err != nil {
		return 0, err
	}

	var content int64
	var ferr error
	b.fields.Each(func(key, value string) {
		if ferr != nil {
			return
		}
		if _, ferr = mw.CreateFormField(key); ferr == nil {
			content += int64(len(value))
		}
	})
	if ferr != nil {
		return 0, ferr
	}

	for _, part := range b.parts {
		if _, err := mw.CreatePart(part.header()); err != nil {
			return 0, err
		}
		content += part.size
	}
	if err := mw.Close(); err != nil {
		return 0, err
	}
	return cw.n + content, nil
}

func (b *MultipartBody) newWriter(w io.Writer) (*multipart.Writer, error) {
	mw := multipart.NewWriter(w)
	if err := mw.SetBoundary(b.boundary); err != nil {
		return nil, err
	}
	return mw, nil
}

func (p *uploadPart) header() textproto.MIMEHeader {
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		quoteEscaper.Replace(p.field), quoteEscaper.Replace(p.fileName)))
	h.Set("Content-Type", p.contentType)
	return h
}

func (b *MultipartBody) Boundary() string {
	return b.boundary
}

// ContentType is the value of the Content-Type header, including the boundary.
func (b *MultipartBody) ContentType() string {
	return MultipartFormData + "; boundary=" + b.boundary
}

// ContentLength is the exact number of bytes WriteTo produces.
func (b *MultipartBody) ContentLength() int64 {
	return b.length
}

// WriteTo writes the whole body to w. Each stream is closed as soon as it
// has been copied.
func (b *MultipartBody) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}
	mw, err := b.newWriter(cw)
	if err != nil {
		return 0, err
	}

	var ferr error
	b.fields.Each(func(key, value string) {
		if ferr != nil {
			return
		}
		var pw io.Writer
		if pw, ferr = mw.CreateFormField(key); ferr == nil {
			_, ferr = io.WriteString(pw, value)
		}
	})
	if ferr != nil {
		return cw.n, ferr
	}

	for _, part := range b.parts {
		pw, err := mw.CreatePart(part.header())
		if err != nil {
			return cw.n, err
		}

		src := &readErrReader{r: part.data}
		n, err := io.Copy(pw, src)
		cerr := part.close()
		switch {
		case src.err != nil:
			return cw.n, &UploadError{Field: part.field, Err: src.err}
		case err != nil:
			return cw.n, err
		case n != part.size:
			return cw.n, &UploadError{
				Field: part.field,
				Err:   fmt.Errorf("%w: declared %d bytes, read %d", ErrSizeMismatch, part.size, n),
			}
		case cerr != nil:
			return cw.n, &UploadError{Field: part.field, Err: cerr}
		}
	}

	if err := mw.Close(); err != nil {
		return cw.n, err
	}
	return cw.n, nil
}

// Close closes every stream that has not been closed yet.
func (b *MultipartBody) Close() error {
	var errs []error
	for _, part := range b.parts {
		if err := part.close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (p *uploadPart) close() error {
	if p.closer == nil {
		return nil
	}
	c := p.closer
	p.closer = nil
	return c.Close()
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// readErrReader remembers read failures so they can be told apart from
// write failures after io.Copy.
type readErrReader struct {
	r   io.Reader
	err error
}

func (r *readErrReader) Read(p []byte) (int, error) {
	n, err := r.r.Read(p)
	if err != nil && err != io.EOF {
		r.err = err
	}
	return n, err
}
