package service

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"clubledger/models"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const receiptPrefix = "receipts/"

var receiptExtensions = map[string]string{
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"image/webp":      ".webp",
	"application/pdf": ".pdf",
}

// ReceiptUpload is a proof-of-payment artifact sent by an account holder
type ReceiptUpload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

type receiptService struct {
	store    ReceiptStore
	maxBytes int64
	urlTTL   time.Duration
}

// NewReceiptService creates a new receipt service
func NewReceiptService(store ReceiptStore, maxBytes int64, urlTTL time.Duration) ReceiptService {
	return &receiptService{
		store:    store,
		maxBytes: maxBytes,
		urlTTL:   urlTTL,
	}
}

// Upload stores a receipt and returns its opaque reference
func (s *receiptService) Upload(ctx context.Context, caller models.CallerIdentity, upload ReceiptUpload) (string, error) {
	if err := requireAuthenticated(caller); err != nil {
		return "", err
	}
	contentType := strings.ToLower(strings.TrimSpace(strings.Split(upload.ContentType, ";")[0]))
	ext, ok := receiptExtensions[contentType]
	if !ok {
		return "", newError(KindInvalidArgument, "unsupported receipt type %q", upload.ContentType)
	}
	if upload.Size <= 0 {
		return "", newError(KindInvalidArgument, "receipt is empty")
	}
	if s.maxBytes > 0 && upload.Size > s.maxBytes {
		return "", newError(KindInvalidArgument, "receipt exceeds %d bytes", s.maxBytes)
	}

	ref := receiptPrefix + caller.AccountID + "/" + uuid.NewString() + ext
	if err := s.store.Put(ctx, ref, contentType, upload.Body, upload.Size); err != nil {
		return "", fmt.Errorf("failed to store receipt: %w", err)
	}

	log.WithFields(log.Fields{
		"accountID":   caller.AccountID,
		"receiptRef":  ref,
		"contentType": contentType,
		"size":        upload.Size,
		"filename":    path.Base(upload.Filename),
	}).Info("Receipt uploaded")

	return ref, nil
}

// URL returns a short-lived link to a receipt owned by the caller, or any receipt for admins
func (s *receiptService) URL(ctx context.Context, caller models.CallerIdentity, ref string) (string, error) {
	if err := requireAuthenticated(caller); err != nil {
		return "", err
	}
	owner, ok := receiptOwner(ref)
	if !ok {
		return "", newError(KindInvalidArgument, "malformed receipt reference")
	}
	if !caller.CanAccess(owner) {
		return "", newError(KindPermissionDenied, "cannot access receipts of account %s", owner)
	}

	exists, err := s.store.Exists(ctx, ref)
	if err != nil {
		return "", fmt.Errorf("failed to look up receipt: %w", err)
	}
	if !exists {
		return "", newError(KindNotFound, "receipt %s not found", ref)
	}

	url, err := s.store.PresignGet(ctx, ref, s.urlTTL)
	if err != nil {
		return "", fmt.Errorf("failed to sign receipt url: %w", err)
	}
	return url, nil
}

// receiptOwner extracts the account id from receipts/<accountID>/<file>
func receiptOwner(ref string) (string, bool) {
	rest, ok := strings.CutPrefix(ref, receiptPrefix)
	if !ok || strings.Contains(ref, "..") {
		return "", false
	}
	owner, file, ok := strings.Cut(rest, "/")
	if !ok || owner == "" || file == "" || strings.Contains(file, "/") {
		return "", false
	}
	return owner, true
}
