// Package document renders issued certificates and receipts and stores them as
// artifacts in a blob bucket.
package document

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/zeebo/blake3"
	"go.uber.org/zap"
	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"

	"github.com/spec-kit/campus-desk/internal/domain"
	apperrors "github.com/spec-kit/campus-desk/pkg/util"
)

const (
	contentTypePDF = "application/pdf"
	digestKey      = "blake3"
)

var (
	unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9_-]`)
	artifactName    = regexp.MustCompile(`^[A-Za-z0-9_-]+\.pdf$`)
)

type issuer struct {
	institution string
	signatory   string
}

// Options configures a Renderer.
type Options struct {
	Institution string
	Signatory   string
	// PublicPath is the URL prefix artifacts are served under.
	PublicPath string
	Now        func() time.Time
}

// Renderer produces PDF artifacts for approved tickets.
type Renderer struct {
	bucket     *blob.Bucket
	issuer     issuer
	publicPath string
	now        func() time.Time
	logger     *zap.Logger
}

// Artifact describes a stored document.
type Artifact struct {
	Name   string
	URL    string
	Digest string
	Size   int
}

// NewRenderer builds a Renderer writing into bucket.
func NewRenderer(bucket *blob.Bucket, opts Options, logger *zap.Logger) *Renderer {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.PublicPath == "" {
		opts.PublicPath = "/public/certificates"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Renderer{
		bucket:     bucket,
		issuer:     issuer{institution: opts.Institution, signatory: opts.Signatory},
		publicPath: strings.TrimRight(opts.PublicPath, "/"),
		now:        opts.Now,
		logger:     logger,
	}
}

// ArtifactName is the stored name of a ticket's document: {requestType}_{ticketId}.pdf.
func ArtifactName(ticket *domain.Ticket) string {
	base := fmt.Sprintf("%s_%s", ticket.RequestType, ticket.ID)
	return unsafeNameChars.ReplaceAllString(base, "_") + ".pdf"
}

// URL returns the public path of an artifact.
func (r *Renderer) URL(name string) string {
	return r.publicPath + "/" + name
}

// Render writes the ticket's document to the bucket. Any failure is reported as a
// render failure and leaves no readable object behind.
func (r *Renderer) Render(ctx context.Context, ticket *domain.Ticket, user *domain.User) (*Artifact, error) {
	name := ArtifactName(ticket)
	details := map[string]any{"ticketId": ticket.ID, "artifact": name}
	now := r.now()

	var buf bytes.Buffer
	if err := writePDF(&buf, buildContent(ticket, user, r.issuer, now), r.issuer.institution, now); err != nil {
		return nil, apperrors.NewRenderFailure(err, details)
	}
	sum := blake3.Sum256(buf.Bytes())
	digest := hex.EncodeToString(sum[:])

	writeCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	w, err := r.bucket.NewWriter(writeCtx, name, &blob.WriterOptions{
		ContentType: contentTypePDF,
		Metadata:    map[string]string{digestKey: digest, "ticket": ticket.ID},
	})
	if err != nil {
		return nil, apperrors.NewRenderFailure(err, details)
	}
	size := buf.Len()
	if _, err := io.Copy(w, &buf); err != nil {
		cancel()
		_ = w.Close()
		return nil, apperrors.NewRenderFailure(err, details)
	}
	if err := w.Close(); err != nil {
		return nil, apperrors.NewRenderFailure(err, details)
	}

	r.logger.Info("document rendered",
		zap.String("ticket_id", ticket.ID),
		zap.String("artifact", name),
		zap.String("blake3", digest),
		zap.Int("bytes", size),
	)
	return &Artifact{Name: name, URL: r.URL(name), Digest: digest, Size: size}, nil
}

// Open returns a reader for a stored artifact.
func (r *Renderer) Open(ctx context.Context, name string) (*blob.Reader, error) {
	if !artifactName.MatchString(name) {
		return nil, apperrors.NewNotFound("document", map[string]any{"name": name})
	}
	reader, err := r.bucket.NewReader(ctx, name, nil)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, apperrors.NewNotFound("document", map[string]any{"name": name})
		}
		return nil, apperrors.NewInternalError(err)
	}
	return reader, nil
}

// Document is a fully read artifact.
type Document struct {
	Name        string
	ContentType string
	Data        []byte
}

// Fetch reads a stored artifact into memory. The result does not depend on ctx once
// Fetch returns, so it can be written after the request context is gone.
func (r *Renderer) Fetch(ctx context.Context, name string) (*Document, error) {
	reader, err := r.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	contentType := reader.ContentType()
	if contentType == "" {
		contentType = contentTypePDF
	}
	return &Document{Name: name, ContentType: contentType, Data: data}, nil
}

// Digest returns the BLAKE3 digest recorded when the artifact was written.
func (r *Renderer) Digest(ctx context.Context, name string) (string, error) {
	attrs, err := r.bucket.Attributes(ctx, name)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return "", apperrors.NewNotFound("document", map[string]any{"name": name})
		}
		return "", apperrors.NewInternalError(err)
	}
	return attrs.Metadata[digestKey], nil
}
