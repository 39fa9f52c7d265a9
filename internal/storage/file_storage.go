// Package storage stores receipt attachments on the local filesystem and
// derives the public URLs handed back to clients.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// AttachmentStore writes attachment content under a base directory
type AttachmentStore interface {
	// SaveAttachment writes content under the given object key and returns
	// the stored path and derived public URL
	SaveAttachment(key string, content []byte) (path string, publicURL string, err error)

	// RemoveAttachment deletes a previously saved attachment by its stored path
	RemoveAttachment(path string) error

	// ValidateKey checks key security (no traversal, no absolute paths)
	ValidateKey(key string) error
}

// LocalAttachmentStore implements AttachmentStore for the local filesystem
type LocalAttachmentStore struct {
	baseDir   string
	publicURL string // URL prefix mapped to baseDir, e.g. "/files"
	logger    *zap.Logger
}

// NewLocalAttachmentStore creates a new local attachment store
func NewLocalAttachmentStore(baseDir, publicURL string, logger *zap.Logger) *LocalAttachmentStore {
	return &LocalAttachmentStore{
		baseDir:   baseDir,
		publicURL: strings.TrimSuffix(publicURL, "/"),
		logger:    logger,
	}
}

// SaveAttachment writes content under the given object key
func (s *LocalAttachmentStore) SaveAttachment(key string, content []byte) (string, string, error) {
	if err := s.ValidateKey(key); err != nil {
		return "", "", err
	}

	fullPath := filepath.Join(s.baseDir, key)

	parentDir := filepath.Dir(fullPath)
	if err := os.MkdirAll(parentDir, 0755); err != nil {
		s.logger.Error("Failed to create attachment directory",
			zap.String("path", parentDir),
			zap.Error(err))
		return "", "", fmt.Errorf("failed to create directories: %w", err)
	}

	if err := os.WriteFile(fullPath, content, 0644); err != nil {
		s.logger.Error("Failed to write attachment",
			zap.String("path", fullPath),
			zap.Error(err))
		return "", "", fmt.Errorf("failed to write attachment: %w", err)
	}

	url := s.publicURL + "/" + filepath.ToSlash(key)

	s.logger.Debug("Attachment saved",
		zap.String("path", fullPath),
		zap.String("url", url),
		zap.Int("bytes", len(content)))

	return fullPath, url, nil
}

// RemoveAttachment deletes a stored attachment. A path that is already gone
// is not an error.
func (s *LocalAttachmentStore) RemoveAttachment(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		s.logger.Error("Failed to remove attachment",
			zap.String("path", path),
			zap.Error(err))
		return fmt.Errorf("failed to remove attachment: %w", err)
	}
	return nil
}

// ValidateKey rejects traversal and absolute keys
func (s *LocalAttachmentStore) ValidateKey(key string) error {
	if key == "" {
		return fmt.Errorf("attachment key is empty")
	}
	if filepath.IsAbs(key) {
		return fmt.Errorf("attachment key must be relative: %s", key)
	}

	clean := filepath.Clean(key)
	if strings.HasPrefix(clean, "..") || strings.Contains(clean, ".."+string(filepath.Separator)) {
		return fmt.Errorf("attachment key escapes base directory: %s", key)
	}

	return nil
}

// BaseDir returns the directory attachments are written under
func (s *LocalAttachmentStore) BaseDir() string {
	return s.baseDir
}

// Verify interface compliance
var _ AttachmentStore = (*LocalAttachmentStore)(nil)
