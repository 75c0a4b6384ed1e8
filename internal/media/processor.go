// Package media normalizes inbound attachments into persisted,
// URL-addressable resources.
package media

import (
	"context"
	"encoding/base64"
	"errors"
	"log"
	"mime"
	"path"
	"strings"

	"github.com/google/uuid"

	"chat-gateway/internal/models"
	"chat-gateway/internal/observability"
)

var ErrAttachmentTooLarge = errors.New("attachment exceeds inline size threshold")

// Attachment payload kinds, resolved once at the boundary.
type payloadKind int

const (
	kindInlineBase64 payloadKind = iota
	kindLocalURIWithData
	kindLocalURINoData
	kindHostedURL
	kindOpaque
)

const (
	thumbnailAt   = 0.0
	thumbnailSize = "320x240"
)

// Processor turns raw client attachment payloads into persisted attachments.
type Processor struct {
	storage   Storage
	threshold int64
}

// NewProcessor constructs a Processor. threshold caps inline payloads on
// the realtime channel; <=0 uses no cap.
func NewProcessor(storage Storage, threshold int64) *Processor {
	return &Processor{storage: storage, threshold: threshold}
}

// Threshold returns the inline size cap in bytes.
func (p *Processor) Threshold() int64 {
	return p.threshold
}

// AcceptsInline reports whether the raw payload may travel the realtime
// channel. Hosted URLs of any size pass; base64 payloads above the
// threshold must go through the HTTP upload endpoint instead. The declared
// size is client input, so the encoded payload itself is bounded too:
// base64 inflates by 4/3, so anything decoding past the threshold is
// rejected regardless of what the client claims.
func (p *Processor) AcceptsInline(raw models.RawAttachment) bool {
	if p.threshold <= 0 {
		return true
	}
	switch classify(raw) {
	case kindInlineBase64, kindLocalURIWithData:
		if raw.Size > p.threshold {
			return false
		}
		return int64(len(raw.Data)) <= p.threshold*4/3+4
	default:
		return true
	}
}

// Process resolves the payload kind once and dispatches. Base64 payloads
// are decoded and written under the conversation's upload path; anything
// without server-usable bytes passes through unchanged rather than failing
// the send.
func (p *Processor) Process(ctx context.Context, raw models.RawAttachment, conversationID string) (models.Attachment, error) {
	switch classify(raw) {
	case kindInlineBase64:
		return p.persist(ctx, raw, conversationID, raw.Data)
	case kindLocalURIWithData:
		return p.persist(ctx, raw, conversationID, raw.Data)
	case kindLocalURINoData, kindHostedURL, kindOpaque:
		// Best effort: some mobile transports deliver the file out-of-band.
		observability.IncAttachmentProcessed("passthrough")
		return passThrough(raw), nil
	default:
		observability.IncAttachmentProcessed("passthrough")
		return passThrough(raw), nil
	}
}

func classify(raw models.RawAttachment) payloadKind {
	hasData := raw.Data != ""
	switch {
	case hasData && !isLocalURI(raw.URL):
		return kindInlineBase64
	case isLocalURI(raw.URL) && hasData:
		return kindLocalURIWithData
	case isLocalURI(raw.URL):
		return kindLocalURINoData
	case strings.HasPrefix(raw.URL, "http://"), strings.HasPrefix(raw.URL, "https://"), strings.HasPrefix(raw.URL, "/"):
		return kindHostedURL
	default:
		return kindOpaque
	}
}

func isLocalURI(url string) bool {
	return strings.HasPrefix(url, "file://") || strings.HasPrefix(url, "content://") ||
		strings.HasPrefix(url, "ph://") || strings.HasPrefix(url, "assets-library://")
}

func (p *Processor) persist(ctx context.Context, raw models.RawAttachment, conversationID, data string) (models.Attachment, error) {
	payload := data
	// Strip a data-URI prefix, e.g. "data:image/png;base64,".
	if idx := strings.Index(payload, "base64,"); idx >= 0 {
		payload = payload[idx+len("base64,"):]
	}
	decoded, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		observability.IncAttachmentProcessed("failed")
		return models.Attachment{}, err
	}

	id := uuid.NewString()
	ext := extensionFor(raw)
	name := id + ext
	destPath := path.Join("messages", conversationID, name)
	if err := p.storage.WriteFile(decoded, destPath); err != nil {
		observability.IncAttachmentProcessed("failed")
		return models.Attachment{}, err
	}

	att := models.Attachment{
		Type:     attachmentType(raw),
		URL:      "/uploads/" + destPath,
		Name:     displayName(raw, name),
		Size:     int64(len(decoded)),
		MimeType: raw.MimeType,
	}

	if att.Type == models.AttachmentVideo {
		thumbPath := path.Join("messages", conversationID, "thumbnails", "thumbnail_"+id+".jpg")
		if err := p.storage.ExtractVideoThumbnail(ctx, destPath, thumbPath, thumbnailAt, thumbnailSize); err != nil {
			// A broken thumbnailer never blocks the send.
			log.Printf("thumbnail extraction failed for %s: %v", destPath, err)
		} else {
			att.ThumbnailURL = "/uploads/" + thumbPath
		}
	}
	observability.IncAttachmentProcessed("stored")
	return att, nil
}

// PersistUpload stores already-read multipart bytes, used by the HTTP
// large-attachment endpoint.
func (p *Processor) PersistUpload(ctx context.Context, data []byte, filename, mimeType, conversationID string) (models.Attachment, error) {
	raw := models.RawAttachment{Name: filename, MimeType: mimeType}
	id := uuid.NewString()
	ext := extensionFor(raw)
	if ext == "" {
		ext = path.Ext(filename)
	}
	name := id + ext
	destPath := path.Join("messages", conversationID, name)
	if err := p.storage.WriteFile(data, destPath); err != nil {
		observability.IncAttachmentProcessed("failed")
		return models.Attachment{}, err
	}

	att := models.Attachment{
		Type:     attachmentType(raw),
		URL:      "/uploads/" + destPath,
		Name:     displayName(raw, name),
		Size:     int64(len(data)),
		MimeType: mimeType,
	}
	if att.Type == models.AttachmentVideo {
		thumbPath := path.Join("messages", conversationID, "thumbnails", "thumbnail_"+id+".jpg")
		if err := p.storage.ExtractVideoThumbnail(ctx, destPath, thumbPath, thumbnailAt, thumbnailSize); err != nil {
			log.Printf("thumbnail extraction failed for %s: %v", destPath, err)
		} else {
			att.ThumbnailURL = "/uploads/" + thumbPath
		}
	}
	observability.IncAttachmentProcessed("stored")
	return att, nil
}

func passThrough(raw models.RawAttachment) models.Attachment {
	return models.Attachment{
		Type:     attachmentType(raw),
		URL:      raw.URL,
		Name:     raw.Name,
		Size:     raw.Size,
		MimeType: raw.MimeType,
	}
}

func attachmentType(raw models.RawAttachment) string {
	if raw.Type != "" {
		return raw.Type
	}
	switch {
	case strings.HasPrefix(raw.MimeType, "image/"):
		return models.AttachmentImage
	case strings.HasPrefix(raw.MimeType, "video/"):
		return models.AttachmentVideo
	case strings.HasPrefix(raw.MimeType, "audio/"):
		return models.AttachmentAudio
	default:
		return models.AttachmentFile
	}
}

func extensionFor(raw models.RawAttachment) string {
	if ext := path.Ext(raw.Name); ext != "" {
		return ext
	}
	if raw.MimeType != "" {
		if exts, err := mime.ExtensionsByType(raw.MimeType); err == nil && len(exts) > 0 {
			return exts[0]
		}
	}
	return ""
}

func displayName(raw models.RawAttachment, fallback string) string {
	if raw.Name != "" {
		return raw.Name
	}
	return fallback
}
