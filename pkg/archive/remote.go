package archive

import (
	"fmt"
	"io"
	"net/http"
)

// HTTPReaderAt adapts an HTTP(S) URL into an io.ReaderAt using Range
// requests, so a remote archive can be read exactly like a local file.
// The server must honor byte ranges.
type HTTPReaderAt struct {
	url    string
	client *http.Client
}

// NewHTTPReaderAt wraps url. A nil client means http.DefaultClient.
func NewHTTPReaderAt(url string, client *http.Client) *HTTPReaderAt {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPReaderAt{url: url, client: client}
}

// ReadAt fetches len(p) bytes at off with a single ranged GET.
func (r *HTTPReaderAt) ReadAt(p []byte, off int64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	req, err := http.NewRequest(http.MethodGet, r.url, nil)
	if err != nil {
		return 0, fmt.Errorf("build range request: %w", err)
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", off, off+int64(len(p))-1))

	resp, err := r.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("range request %s: %w", r.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusPartialContent && resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("range request %s: unexpected status %s", r.url, resp.Status)
	}
	if resp.StatusCode == http.StatusOK && off > 0 {
		return 0, fmt.Errorf("range request %s: server ignored the Range header", r.url)
	}

	n, err := io.ReadFull(resp.Body, p)
	if err == io.ErrUnexpectedEOF || err == io.EOF {
		return n, io.EOF
	}
	return n, err
}
