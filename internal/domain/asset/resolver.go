// Package asset normalizes image references found in the ledger and uploads
// locally captured images to the row store's file area.
package asset

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type Kind int

const (
	KindOpaque Kind = iota
	KindInline
	KindRemote
)

func (k Kind) String() string {
	switch k {
	case KindInline:
		return "inline"
	case KindRemote:
		return "remote"
	default:
		return "opaque"
	}
}

// Reference is a classified image reference. Inline references carry the
// decoded bytes; remote ones a URL and the store's file id when known.
type Reference struct {
	Kind     Kind
	Raw      string
	Data     []byte
	MimeType string
	URL      string
	SourceID string
}

func Inline(data []byte, mimeType string) Reference {
	return Reference{
		Kind:     KindInline,
		Raw:      "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data),
		Data:     data,
		MimeType: mimeType,
	}
}

type UploadError struct {
	FileName string
	Reason   string
	Err      error
}

func (e *UploadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("asset upload %s: %s: %v", e.FileName, e.Reason, e.Err)
	}
	return fmt.Sprintf("asset upload %s: %s", e.FileName, e.Reason)
}

func (e *UploadError) Unwrap() error { return e.Err }

type Uploader interface {
	UploadAsset(ctx context.Context, base64Data, fileName, mimeType, folderID string) (string, error)
}

type Config struct {
	ThumbnailBase string
	AlternateBase string
	DownloadBase  string
	FolderID      string
	DefaultSize   int
}

func DefaultConfig() Config {
	return Config{
		ThumbnailBase: "https://drive.google.com/thumbnail",
		AlternateBase: "https://lh3.googleusercontent.com/d/",
		DownloadBase:  "https://drive.google.com/uc?export=download&id=",
		DefaultSize:   400,
	}
}

type Resolver struct {
	cfg      Config
	matchers []Matcher
	uploader Uploader
	log      logrus.FieldLogger
}

// NewResolver uses DefaultMatchers when no matchers are given.
func NewResolver(cfg Config, uploader Uploader, log logrus.FieldLogger, matchers ...Matcher) *Resolver {
	if len(matchers) == 0 {
		matchers = DefaultMatchers()
	}
	def := DefaultConfig()
	if cfg.ThumbnailBase == "" {
		cfg.ThumbnailBase = def.ThumbnailBase
	}
	if cfg.AlternateBase == "" {
		cfg.AlternateBase = def.AlternateBase
	}
	if cfg.DownloadBase == "" {
		cfg.DownloadBase = def.DownloadBase
	}
	if cfg.DefaultSize <= 0 {
		cfg.DefaultSize = def.DefaultSize
	}
	return &Resolver{cfg: cfg, matchers: matchers, uploader: uploader, log: log}
}

func (r *Resolver) Classify(raw string) Reference {
	raw = strings.TrimSpace(raw)
	if ref, ok := parseDataURL(raw); ok {
		return ref
	}
	if id, ok := r.ExtractID(raw); ok {
		return Reference{Kind: KindRemote, Raw: raw, URL: r.thumbnail(id, r.cfg.DefaultSize), SourceID: id}
	}
	return Reference{Kind: KindOpaque, Raw: raw}
}

// ExtractID runs the matchers in order and returns the first identifier
// found. Inline payloads never yield an identifier.
func (r *Resolver) ExtractID(raw string) (string, bool) {
	if raw == "" || strings.HasPrefix(raw, "data:") {
		return "", false
	}
	for _, m := range r.matchers {
		if id, ok := m.Match(raw); ok {
			return id, true
		}
	}
	return "", false
}

// DisplayURL rewrites raw to the canonical thumbnail URL of the requested
// width. Canonical URLs, inline payloads and references without an
// identifier come back unchanged.
func (r *Resolver) DisplayURL(raw string, size int) string {
	trimmed := strings.TrimSpace(raw)
	if r.IsCanonical(trimmed) {
		return trimmed
	}
	id, ok := r.ExtractID(trimmed)
	if !ok {
		return raw
	}
	if size <= 0 {
		size = r.cfg.DefaultSize
	}
	return r.thumbnail(id, size)
}

func (r *Resolver) IsCanonical(raw string) bool {
	if !strings.HasPrefix(raw, r.cfg.ThumbnailBase+"?") {
		return false
	}
	_, ok := ThumbnailMatcher.Match(raw)
	return ok
}

func (r *Resolver) AlternateURL(id string, size int) string {
	if size <= 0 {
		size = r.cfg.DefaultSize
	}
	return fmt.Sprintf("%s%s=w%d", r.cfg.AlternateBase, id, size)
}

func (r *Resolver) DownloadURL(id string) string {
	return r.cfg.DownloadBase + id
}

func (r *Resolver) thumbnail(id string, size int) string {
	return fmt.Sprintf("%s?id=%s&sz=w%d", r.cfg.ThumbnailBase, id, size)
}

// Upload stores an inline reference and returns its remote form. Remote and
// opaque references are returned as they are.
func (r *Resolver) Upload(ctx context.Context, ref Reference, fileName string) (Reference, error) {
	if ref.Kind != KindInline {
		return ref, nil
	}
	if fileName == "" {
		fileName = "item-" + uuid.NewString() + extensionFor(ref.MimeType)
	}
	if len(ref.Data) == 0 {
		return Reference{}, &UploadError{FileName: fileName, Reason: "inline payload is empty or not valid base64"}
	}

	fileURL, err := r.uploader.UploadAsset(ctx, base64.StdEncoding.EncodeToString(ref.Data), fileName, ref.MimeType, r.cfg.FolderID)
	if err != nil {
		return Reference{}, &UploadError{FileName: fileName, Reason: "store rejected upload", Err: err}
	}
	if fileURL == "" {
		return Reference{}, &UploadError{FileName: fileName, Reason: "response has no file URL"}
	}

	out := Reference{Kind: KindRemote, Raw: fileURL, URL: fileURL, MimeType: ref.MimeType}
	if id, ok := r.ExtractID(fileURL); ok {
		out.SourceID = id
		out.URL = r.thumbnail(id, r.cfg.DefaultSize)
	}
	r.log.WithFields(logrus.Fields{"file": fileName, "size": len(ref.Data), "source_id": out.SourceID}).Info("asset: uploaded")
	return out, nil
}

// Normalize returns the value to store in the ledger for raw: inline images
// are uploaded first, links are rewritten to canonical form.
func (r *Resolver) Normalize(ctx context.Context, raw, fileName string) (string, error) {
	ref := r.Classify(raw)
	switch ref.Kind {
	case KindInline:
		up, err := r.Upload(ctx, ref, fileName)
		if err != nil {
			return "", err
		}
		return up.URL, nil
	case KindRemote:
		return r.DisplayURL(ref.Raw, r.cfg.DefaultSize), nil
	default:
		return ref.Raw, nil
	}
}

func parseDataURL(raw string) (Reference, bool) {
	if !strings.HasPrefix(raw, "data:") {
		return Reference{}, false
	}
	meta, payload, found := strings.Cut(strings.TrimPrefix(raw, "data:"), ",")
	if !found || !strings.HasSuffix(meta, ";base64") {
		return Reference{}, false
	}
	ref := Reference{Kind: KindInline, Raw: raw, MimeType: strings.TrimSuffix(meta, ";base64")}
	if ref.MimeType == "" {
		ref.MimeType = "application/octet-stream"
	}
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding} {
		if data, err := enc.DecodeString(payload); err == nil {
			ref.Data = data
			break
		}
	}
	return ref, true
}

func extensionFor(mimeType string) string {
	switch mimeType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	case "application/pdf":
		return ".pdf"
	default:
		return ""
	}
}
