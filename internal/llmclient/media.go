package llmclient

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/bamlgo/baml/internal/bamlerr"
	"github.com/bamlgo/baml/internal/value"
)

// FileReader abstracts reading a media file's bytes, letting callers
// supply a sandboxed or mocked reader instead of raw os.ReadFile.
type FileReader func(path string) ([]byte, error)

// MediaResolver resolves a media value into wire-ready bytes or a URL:
// file references are read and base64-encoded with an inferred MIME type;
// URLs are either passed through or fetched (optionally via a proxy)
// depending on what the destination provider needs; inline bytes without
// a MIME type are sniffed from their magic bytes.
type MediaResolver struct {
	HTTPClient *http.Client
	ReadFile   FileReader
	ProxyURL   string // BOUNDARY_PROXY_URL, injected as a sentinel header when fetching
}

func NewMediaResolver(httpClient *http.Client) *MediaResolver {
	return &MediaResolver{HTTPClient: httpClient, ReadFile: os.ReadFile}
}

// ResolveURL keeps a URL source as a URL (OpenAI's image_url accepts
// either a remote URL or a data: URL); file and inline sources still need
// encoding since they have no URL of their own.
func (r *MediaResolver) ResolveURL(ctx context.Context, m *value.Media) (*MediaPart, error) {
	if m.Source == value.MediaSourceURL {
		return &MediaPart{IsAudio: m.Kind == value.MediaAudio, URL: m.URL, MimeType: m.MimeType}, nil
	}
	return r.ResolveBase64(ctx, m)
}

// ResolveBase64 always produces inline base64 bytes with a MIME type,
// fetching file/URL sources as needed (Anthropic and Google AI's
// inline_data both require this).
func (r *MediaResolver) ResolveBase64(ctx context.Context, m *value.Media) (*MediaPart, error) {
	raw, mime, err := r.rawBytes(ctx, m)
	if err != nil {
		return nil, err
	}
	if mime == "" {
		mime = sniffMimeType(raw)
	}
	if mime == "" {
		return nil, bamlerr.New(bamlerr.UserFailure, "could not determine a MIME type for media; provide one explicitly")
	}
	return &MediaPart{
		IsAudio:  m.Kind == value.MediaAudio,
		MimeType: mime,
		Base64:   base64.StdEncoding.EncodeToString(raw),
	}, nil
}

func (r *MediaResolver) rawBytes(ctx context.Context, m *value.Media) ([]byte, string, error) {
	switch m.Source {
	case value.MediaSourceInline:
		return m.Bytes, m.MimeType, nil
	case value.MediaSourceFile:
		b, err := r.ReadFile(m.Path)
		if err != nil {
			return nil, "", bamlerr.Wrap(bamlerr.ClientError, err, "reading media file %q", m.Path)
		}
		return b, m.MimeType, nil
	case value.MediaSourceURL:
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.URL, nil)
		if err != nil {
			return nil, "", bamlerr.Wrap(bamlerr.ClientError, err, "building media fetch request")
		}
		if r.ProxyURL != "" {
			req.Header.Set("X-Baml-Proxy-Url", r.ProxyURL)
		}
		resp, err := r.HTTPClient.Do(req)
		if err != nil {
			return nil, "", bamlerr.Wrap(bamlerr.ClientError, err, "fetching media URL")
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, "", bamlerr.New(bamlerr.ClientError, "fetching media URL: status %d", resp.StatusCode)
		}
		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, "", bamlerr.Wrap(bamlerr.ClientError, err, "reading media response body")
		}
		mime := m.MimeType
		if mime == "" {
			mime = resp.Header.Get("Content-Type")
		}
		return b, mime, nil
	default:
		return nil, "", bamlerr.New(bamlerr.InternalFailure, "unknown media source %d", m.Source)
	}
}

// sniffMimeType infers a MIME type from magic bytes. net/http's sniffer
// covers the common image/audio formats BAML media values carry; no
// example repo in the pack ships a more capable magic-byte library, so
// this one stdlib call replaces the whole detection step.
func sniffMimeType(raw []byte) string {
	if len(raw) == 0 {
		return ""
	}
	ct := http.DetectContentType(raw)
	if ct == "application/octet-stream" {
		return ""
	}
	return ct
}

// curlSubstitution renders a file-path media value as a shell
// substitution for the debug/curl render mode instead of resolving it.
func curlSubstitution(m *value.Media) string {
	switch m.Source {
	case value.MediaSourceFile:
		return fmt.Sprintf("$(base64 -w0 %q)", m.Path)
	case value.MediaSourceURL:
		return m.URL
	default:
		return "<inline-bytes>"
	}
}
