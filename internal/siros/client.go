// Package siros downloads schedule files from the SIROS API. The endpoint
// returns the same logical payload in several envelopes depending on the
// season: plain text, gzip, a ZIP archive, or a JSON array carrying the file
// line by line. Everything is normalised into a decoded string ready for
// parsing.
package siros

import (
	"archive/zip"
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"
)

// ErrDownload marks failures to retrieve or decode a schedule payload.
var ErrDownload = errors.New("siros download failed")

// DefaultBaseURL is the production SIROS API root.
const DefaultBaseURL = "https://sas.anac.gov.br/sas/siros_api"

type Client struct {
	baseURL string
	httpc   *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   &http.Client{Timeout: timeout},
	}
}

// FetchSchedule downloads the schedule file for a season code (e.g. S25).
func (c *Client) FetchSchedule(ctx context.Context, season string) (string, error) {
	u := c.baseURL + "/ssimfile?ds_temporada=" + url.QueryEscape(season)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDownload, err)
	}
	log.Printf("downloading SIROS schedule for season %s", season)
	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDownload, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d from %s", ErrDownload, resp.StatusCode, u)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: read body: %v", ErrDownload, err)
	}

	text, err := decodePayload(raw)
	if err != nil {
		return "", err
	}
	return unwrapEnvelope(text), nil
}

// decodePayload turns the raw response bytes into text, unpacking ZIP (first
// regular file wins) and gzip transparently.
func decodePayload(raw []byte) (string, error) {
	if len(raw) == 0 {
		return "", fmt.Errorf("%w: empty response", ErrDownload)
	}

	if bytes.HasPrefix(raw, []byte("PK")) {
		archive, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
		if err != nil {
			return "", fmt.Errorf("%w: open zip: %v", ErrDownload, err)
		}
		for _, f := range archive.File {
			if f.FileInfo().IsDir() {
				continue
			}
			rc, err := f.Open()
			if err != nil {
				return "", fmt.Errorf("%w: open %s: %v", ErrDownload, f.Name, err)
			}
			data, err := io.ReadAll(rc)
			rc.Close()
			if err != nil {
				return "", fmt.Errorf("%w: read %s: %v", ErrDownload, f.Name, err)
			}
			return decodePayload(data)
		}
		return "", fmt.Errorf("%w: zip archive has no readable file", ErrDownload)
	}

	if bytes.HasPrefix(raw, []byte{0x1f, 0x8b}) {
		gz, err := gzip.NewReader(bytes.NewReader(raw))
		if err != nil {
			return "", fmt.Errorf("%w: open gzip: %v", ErrDownload, err)
		}
		data, err := io.ReadAll(gz)
		gz.Close()
		if err != nil {
			return "", fmt.Errorf("%w: read gzip: %v", ErrDownload, err)
		}
		return decodePayload(data)
	}

	return decodeText(raw), nil
}

// decodeText strips a UTF-8 BOM and falls back to Latin-1 when the bytes are
// not valid UTF-8.
func decodeText(raw []byte) string {
	raw = bytes.TrimPrefix(raw, []byte{0xef, 0xbb, 0xbf})
	if utf8.Valid(raw) {
		return string(raw)
	}
	runes := make([]rune, len(raw))
	for i, b := range raw {
		runes[i] = rune(b)
	}
	return string(runes)
}

// unwrapEnvelope handles the alternate envelopes some seasons use: the whole
// file quoted as a single string with escaped newlines, or a JSON array of
// objects each holding one line under "ssimfile".
func unwrapEnvelope(text string) string {
	stripped := strings.TrimSpace(text)
	if strings.HasPrefix(stripped, `"`) && strings.HasSuffix(stripped, `"`) && len(stripped) >= 2 {
		stripped = stripped[1 : len(stripped)-1]
		stripped = strings.NewReplacer(
			`\r\n`, "\n",
			`\n`, "\n",
			`\r`, "\n",
			`\t`, "\t",
			`\"`, `"`,
			`\\`, `\`,
		).Replace(stripped)
	}

	if strings.HasPrefix(stripped, "[") && strings.Contains(stripped, "ssimfile") {
		var items []struct {
			SSIMFile string `json:"ssimfile"`
		}
		if err := json.Unmarshal([]byte(stripped), &items); err != nil {
			log.Printf("siros: JSON envelope decode failed, keeping raw text: %v", err)
			return stripped
		}
		parts := make([]string, 0, len(items))
		for _, item := range items {
			if item.SSIMFile != "" {
				parts = append(parts, item.SSIMFile)
			}
		}
		if len(parts) > 0 {
			return strings.Join(parts, "\n")
		}
	}
	return stripped
}
