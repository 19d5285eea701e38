package http

import (
	"bytes"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type trackingReader struct {
	io.Reader
	closed int
}

func (r *trackingReader) Close() error {
	r.closed++
	return nil
}

func TestMultipartBody_PartsInOrder(t *testing.T) {
	file := &trackingReader{Reader: strings.NewReader("file contents")}
	fields := NewParameterMap().Set("title", "report").Set("year", "2024")

	body, err := NewMultipartBody(fields, []*UploadFile{{
		Data:        file,
		FieldName:   "attachment",
		FileName:    "report.txt",
		ContentType: "text/plain",
		Size:        int64(len("file contents")),
	}})
	require.NoError(t, err)

	var buf bytes.Buffer
	n, err := body.WriteTo(&buf)
	require.NoError(t, err)

	assert.Equal(t, int64(buf.Len()), n)
	assert.Equal(t, body.ContentLength(), n)
	assert.Equal(t, 1, file.closed)

	require.NoError(t, body.Close())
	assert.Equal(t, 1, file.closed, "stream must be closed exactly once")

	mediaType, params, err := mime.ParseMediaType(body.ContentType())
	require.NoError(t, err)
	assert.Equal(t, MultipartFormData, mediaType)
	assert.Equal(t, body.Boundary(), params["boundary"])

	reader := multipart.NewReader(&buf, params["boundary"])
	var names []string
	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		content, _ := io.ReadAll(part)
		names = append(names, part.FormName())
		switch part.FormName() {
		case "title":
			assert.Equal(t, "report", string(content))
		case "year":
			assert.Equal(t, "2024", string(content))
		case "attachment":
			assert.Equal(t, "report.txt", part.FileName())
			assert.Equal(t, "text/plain", part.Header.Get("Content-Type"))
			assert.Equal(t, "file contents", string(content))
		}
	}
	assert.Equal(t, []string{"title", "year", "attachment"}, names)
}

func TestMultipartBody_Boundary(t *testing.T) {
	body, err := NewMultipartBody(nil, nil)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(body.Boundary(), "----------"))
	assert.Len(t, body.Boundary(), 42)

	var buf bytes.Buffer
	_, err = body.WriteTo(&buf)
	require.NoError(t, err)
	assert.Equal(t, "\r\n--"+body.Boundary()+"--\r\n", buf.String())
	assert.Equal(t, int64(buf.Len()), body.ContentLength())
}

func TestMultipartBody_DefaultFieldNames(t *testing.T) {
	body, err := NewMultipartBody(nil, []*UploadFile{
		{Data: strings.NewReader("a")},
		{Data: strings.NewReader("b"), FieldName: "named"},
		{Data: strings.NewReader("c")},
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	_, err = body.WriteTo(&buf)
	require.NoError(t, err)

	reader := multipart.NewReader(&buf, body.Boundary())
	var names []string
	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		names = append(names, part.FormName())
		assert.Equal(t, OctetStream, part.Header.Get("Content-Type"))
	}
	assert.Equal(t, []string{"file0", "named", "file2"}, names)
}

func TestMultipartBody_UnsizedStreamIsBuffered(t *testing.T) {
	data := io.MultiReader(strings.NewReader("hello "), strings.NewReader("world"))
	body, err := NewMultipartBody(nil, []*UploadFile{{Data: data, FieldName: "f"}})
	require.NoError(t, err)

	var buf bytes.Buffer
	n, err := body.WriteTo(&buf)
	require.NoError(t, err)
	assert.Equal(t, body.ContentLength(), n)
	assert.Contains(t, buf.String(), "hello world")
}

func TestMultipartBody_SizeMismatch(t *testing.T) {
	file := &trackingReader{Reader: strings.NewReader("short")}
	body, err := NewMultipartBody(nil, []*UploadFile{{Data: file, FieldName: "f", Size: 100}})
	require.NoError(t, err)

	_, err = body.WriteTo(io.Discard)

	var ue *UploadError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, "f", ue.Field)
	assert.ErrorIs(t, err, ErrSizeMismatch)
	assert.Equal(t, 1, file.closed)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("disk error") }

func TestNewMultipartBody_ClosesStreamsOnError(t *testing.T) {
	good := &trackingReader{Reader: strings.NewReader("ok")}
	bad := &trackingReader{Reader: failingReader{}}

	_, err := NewMultipartBody(nil, []*UploadFile{
		{Data: good, FieldName: "good"},
		{Data: bad, FieldName: "bad"},
	})

	var ue *UploadError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, "bad", ue.Field)
	assert.Equal(t, 1, good.closed)
	assert.Equal(t, 1, bad.closed)
}

func TestOpenUploadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"a":1}`), 0o644))

	f, err := OpenUploadFile("doc", path)
	require.NoError(t, err)
	defer f.Data.(io.Closer).Close()

	assert.Equal(t, "doc", f.FieldName)
	assert.Equal(t, "data.json", f.FileName)
	assert.Equal(t, "application/json", f.ContentType)
	assert.Equal(t, int64(7), f.Size)
}

func TestOpenUploadFile_Missing(t *testing.T) {
	_, err := OpenUploadFile("doc", filepath.Join(t.TempDir(), "nope"))
	assert.ErrorIs(t, err, ErrUpload)
}

func TestClient_PostFiles(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Greater(t, r.ContentLength, int64(0))
		require.NoError(t, r.ParseMultipartForm(1<<20))

		assert.Equal(t, "Arsene", r.FormValue("From"))
		file, header, err := r.FormFile("upload")
		require.NoError(t, err)
		defer file.Close()
		content, _ := io.ReadAll(file)
		assert.Equal(t, "notes.txt", header.Filename)
		assert.Equal(t, "some notes", string(content))

		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("some notes"), 0o644))

	upload, err := OpenUploadFile("upload", path)
	require.NoError(t, err)

	client := NewClient(server.URL)
	resp, err := client.PostFiles("/upload", []*UploadFile{upload}, NewParameterMap().Set("From", "Arsene"))

	require.NoError(t, err)
	assert.Equal(t, 201, resp.StatusCode)

	// The file has been closed by the client.
	_, err = upload.Data.(*os.File).Read(make([]byte, 1))
	assert.ErrorIs(t, err, os.ErrClosed)
}

func TestClient_PostFilesWithMockTransport(t *testing.T) {
	transport := &mockTransport{status: 200}
	client := NewClient("http://example.com", WithTransport(transport))
	file := &trackingReader{Reader: strings.NewReader("abc")}

	result := <-client.PostFilesAsync("/upload", []*UploadFile{{Data: file, Size: 3}}, NewParameterMap().Set("a", "1"))

	require.NoError(t, result.Err)
	assert.Equal(t, 1, file.closed)
	assert.Equal(t, int64(transport.written.Len()), transport.prepared.ContentLength)
	assert.True(t, strings.HasPrefix(transport.prepared.ContentType, MultipartFormData+"; boundary="))
}

func TestClient_PostFilesWriteFailureClosesEveryStream(t *testing.T) {
	transport := &mockTransport{writeErr: io.ErrClosedPipe, inputErr: errors.New("connection reset")}
	client := NewClient("http://example.com", WithTransport(transport))
	first := &trackingReader{Reader: strings.NewReader("first")}
	second := &trackingReader{Reader: strings.NewReader("second")}

	resp, err := client.PostFiles("/upload", []*UploadFile{
		{Data: first, FieldName: "a", Size: 5},
		{Data: second, FieldName: "b", Size: 6},
	}, nil)

	assert.Nil(t, resp)
	var te *TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "write", te.Op)
	assert.Equal(t, 1, first.closed)
	assert.Equal(t, 1, second.closed)
}

func TestNewMultipartBody_NilFile(t *testing.T) {
	first := &trackingReader{Reader: strings.NewReader("first")}
	last := &trackingReader{Reader: strings.NewReader("last")}

	_, err := NewMultipartBody(nil, []*UploadFile{{Data: first}, nil, {Data: last}})

	var ue *UploadError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, "file1", ue.Field)
	assert.ErrorIs(t, err, ErrUpload)
	assert.Equal(t, 1, first.closed)
	assert.Equal(t, 1, last.closed)
}
