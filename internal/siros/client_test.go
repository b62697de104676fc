package siros

import (
	"archive/zip"
	"bytes"
	"compress/gzip"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePayload = "1AIRLINE STANDARD SCHEDULE DATA SET\n3 AA 0100...\n"

func serve(t *testing.T, body []byte) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ssimfile", r.URL.Path)
		assert.Equal(t, "S25", r.URL.Query().Get("ds_temporada"))
		w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, 5*time.Second)
}

func zipPayload(t *testing.T, name string, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	f, err := zw.Create(name)
	require.NoError(t, err)
	_, err = f.Write(data)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func gzipPayload(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	_, err := gz.Write(data)
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	return buf.Bytes()
}

func TestFetchSchedulePlainText(t *testing.T) {
	c := serve(t, []byte(samplePayload))
	text, err := c.FetchSchedule(context.Background(), "S25")
	require.NoError(t, err)
	assert.Equal(t, strings.TrimSpace(samplePayload), text)
}

func TestFetchScheduleZip(t *testing.T) {
	c := serve(t, zipPayload(t, "ssim.txt", []byte(samplePayload)))
	text, err := c.FetchSchedule(context.Background(), "S25")
	require.NoError(t, err)
	assert.Equal(t, strings.TrimSpace(samplePayload), text)
}

func TestFetchScheduleGzipInsideZip(t *testing.T) {
	inner := gzipPayload(t, []byte(samplePayload))
	c := serve(t, zipPayload(t, "ssim.txt.gz", inner))
	text, err := c.FetchSchedule(context.Background(), "S25")
	require.NoError(t, err)
	assert.Equal(t, strings.TrimSpace(samplePayload), text)
}

func TestFetchScheduleGzip(t *testing.T) {
	c := serve(t, gzipPayload(t, []byte(samplePayload)))
	text, err := c.FetchSchedule(context.Background(), "S25")
	require.NoError(t, err)
	assert.Equal(t, strings.TrimSpace(samplePayload), text)
}

func TestFetchScheduleJSONEnvelope(t *testing.T) {
	body := `[{"ssimfile":"1AIRLINE STANDARD SCHEDULE DATA SET"},{"ssimfile":"3 AA 0100..."}]`
	c := serve(t, []byte(body))
	text, err := c.FetchSchedule(context.Background(), "S25")
	require.NoError(t, err)
	assert.Equal(t, "1AIRLINE STANDARD SCHEDULE DATA SET\n3 AA 0100...", text)
}

func TestFetchScheduleQuotedEnvelope(t *testing.T) {
	body := `"line one\r\nline two\nsaid \"hi\""`
	c := serve(t, []byte(body))
	text, err := c.FetchSchedule(context.Background(), "S25")
	require.NoError(t, err)
	assert.Equal(t, "line one\nline two\nsaid \"hi\"", text)
}

func TestFetchScheduleStripsBOM(t *testing.T) {
	c := serve(t, append([]byte{0xef, 0xbb, 0xbf}, samplePayload...))
	text, err := c.FetchSchedule(context.Background(), "S25")
	require.NoError(t, err)
	assert.Equal(t, strings.TrimSpace(samplePayload), text)
}

func TestFetchScheduleLatin1Fallback(t *testing.T) {
	// "SÃO" in Latin-1; 0xC3 alone is not valid UTF-8.
	c := serve(t, []byte{'S', 0xc3, 'O', '\n'})
	text, err := c.FetchSchedule(context.Background(), "S25")
	require.NoError(t, err)
	assert.Equal(t, "SÃO", text)
}

func TestFetchScheduleHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second)
	_, err := c.FetchSchedule(context.Background(), "S25")
	require.ErrorIs(t, err, ErrDownload)
}

func TestFetchScheduleEmptyBody(t *testing.T) {
	c := serve(t, nil)
	_, err := c.FetchSchedule(context.Background(), "S25")
	require.ErrorIs(t, err, ErrDownload)
}
