package release

import (
	"fmt"
	"io"
	"net/http"
	"os"

	pb "github.com/schollz/progressbar/v3"
)

// A Fetcher writes the content of a Target to a file.
type Fetcher struct {
	client *Client

	// Bar, if set, is called with the response size (-1 if unknown) once the
	// download starts, and the returned bar receives every byte written.
	Bar func(size int64) *pb.ProgressBar
	// Tee, if set, also receives every byte written.
	Tee io.Writer
}

// NewFetcher returns a Fetcher that downloads with the session's credentials.
func NewFetcher(s *Session) *Fetcher {
	return &Fetcher{client: s.client}
}

// Fetch downloads t to dest.
func (f *Fetcher) Fetch(t Target, dest string) error {
	switch t := t.(type) {
	case NamedAsset:
		return f.DownloadAsset(t.Asset, dest)
	case DefaultArchive:
		return f.DownloadArchive(t.Release, dest)
	}
	return fmt.Errorf("unsupported download target %T", t)
}

// DownloadAsset streams the binary content of a to dest.
func (f *Fetcher) DownloadAsset(a Asset, dest string) error {
	return f.download("download asset "+a.name, a.URL(), "application/octet-stream", dest)
}

// DownloadArchive writes the generated source tarball of rel to dest.
func (f *Fetcher) DownloadArchive(rel *Release, dest string) error {
	return f.download("download tarball of "+rel.tag, rel.TarballURL(), "application/vnd.github+json", dest)
}

// download fetches url and writes the body to dest. The file is only created
// (or truncated) once the server has answered with 200.
func (f *Fetcher) download(op, url, accept, dest string) error {
	resp, err := f.client.Get(url, accept)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return &TransportError{Op: op, Err: &APIError{
			Code:   resp.StatusCode,
			Status: resp.Status,
			Body:   body,
			URL:    url,
		}}
	}

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}

	writers := []io.Writer{out}
	if f.Bar != nil {
		if bar := f.Bar(resp.ContentLength); bar != nil {
			writers = append(writers, bar)
		}
	}
	if f.Tee != nil {
		writers = append(writers, f.Tee)
	}

	if _, err := io.Copy(io.MultiWriter(writers...), resp.Body); err != nil {
		out.Close()
		return &TransportError{Op: op, Err: err}
	}
	if err := out.Close(); err != nil {
		return &TransportError{Op: op, Err: err}
	}
	return nil
}
