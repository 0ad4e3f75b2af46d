// Package input validates uploads and label lists before any file content is
// read. Rejections here are cheap and side-effect free: no temporary file is
// created and no remote call is made until both the upload metadata and the
// label list have passed.
package input

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"bioclim/internal/config"
	"bioclim/internal/types"
)

// Service applies the configured upload and label constraints.
type Service struct {
	upload config.UploadConfig
	labels config.LabelConfig

	// allowedExts is the lowercased extension allow-list, precomputed for
	// O(1) lookup.
	allowedExts map[string]struct{}
}

// NewService creates an input validation Service from the upload and label
// configuration sections.
func NewService(upload config.UploadConfig, labels config.LabelConfig) *Service {
	exts := make(map[string]struct{}, len(upload.AllowedExtensions))
	for _, ext := range upload.AllowedExtensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		exts[ext] = struct{}{}
	}

	return &Service{
		upload:      upload,
		labels:      labels,
		allowedExts: exts,
	}
}

// ValidateUpload rejects an upload from its metadata alone: a missing file, an
// unsafe filename, a disallowed extension, or a size above the limit. Content
// is never inspected here.
func (s *Service) ValidateUpload(meta types.UploadMeta) error {
	if meta.Filename == "" {
		return types.NewAppError(
			types.ErrCodeValidationMissingFile,
			"no file was provided",
			nil,
		)
	}

	if err := types.ValidateUploadName(meta.Filename); err != nil {
		return err
	}

	ext := strings.ToLower(filepath.Ext(meta.Filename))
	if _, ok := s.allowedExts[ext]; !ok {
		return types.NewAppErrorWithDetails(
			types.ErrCodeValidationFileExtension,
			fmt.Sprintf("file extension %q is not allowed", ext),
			nil,
			map[string]any{
				"extension": ext,
				"allowed":   s.allowedExtensionList(),
			},
		)
	}

	if meta.Size > s.upload.MaxBytes {
		return types.NewAppErrorWithDetails(
			types.ErrCodeValidationFileTooLarge,
			fmt.Sprintf("file exceeds the maximum size of %d bytes", s.upload.MaxBytes),
			nil,
			map[string]any{
				"max_bytes":  s.upload.MaxBytes,
				"file_bytes": meta.Size,
			},
		)
	}

	return nil
}

// MaxUploadBytes returns the configured upload size limit. Handlers use it to
// cap multipart parsing before ValidateUpload sees the part header.
func (s *Service) MaxUploadBytes() int64 {
	return s.upload.MaxBytes
}

// ParseLabels splits a raw comma-separated label string into a trimmed,
// non-empty label list. "A, B ,C," parses to ["A","B","C"]. Fails when the
// input is empty after trimming, when the parsed count exceeds the
// configured maximum, or when any label violates the length/character rules.
func (s *Service) ParseLabels(raw string) ([]string, error) {
	parts := strings.Split(raw, ",")
	labels := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		labels = append(labels, p)
	}

	if len(labels) == 0 {
		return nil, types.NewAppError(
			types.ErrCodeValidationMissingLabels,
			"at least one label is required",
			nil,
		)
	}

	if len(labels) > s.labels.MaxCount {
		return nil, types.NewAppErrorWithDetails(
			types.ErrCodeValidationTooManyLabels,
			fmt.Sprintf("label count exceeds the maximum of %d", s.labels.MaxCount),
			nil,
			map[string]any{
				"max_count":   s.labels.MaxCount,
				"label_count": len(labels),
			},
		)
	}

	for i, label := range labels {
		if err := types.ValidateLabel(label, s.labels.MaxLength); err != nil {
			var appErr *types.AppError
			if errors.As(err, &appErr) {
				return nil, appErr.WithDetails(map[string]any{"index": i})
			}
			return nil, err
		}
	}

	return labels, nil
}

// allowedExtensionList returns the allow-list in a stable order for error
// details.
func (s *Service) allowedExtensionList() []string {
	out := make([]string, 0, len(s.upload.AllowedExtensions))
	for _, ext := range s.upload.AllowedExtensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		out = append(out, ext)
	}
	return out
}
