// Package export builds translation bundles for a branch and optionally
// uploads them to object storage for download links.
package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/minio/minio-go/v7"

	"lingx/api/internal/branch"
)

// SnapshotLoader reads a branch's live content.
type SnapshotLoader interface {
	LoadBranchSnapshot(ctx context.Context, branchID string) (branch.Snapshot, error)
}

// Bundle is the exported artifact: one flat key-to-value document per
// language, encoded as JSON.
type Bundle struct {
	BranchID    string            `json:"branchId"`
	GeneratedAt time.Time         `json:"generatedAt"`
	Languages   map[string]Locale `json:"languages"`
}

// Locale is the per-language document inside a bundle.
type Locale struct {
	Keys map[string]string `json:"keys"`
}

type Service struct {
	snapshots SnapshotLoader
	objects   *minio.Client
	bucket    string
	now       func() time.Time
}

// NewService creates an export service. objects may be nil; exports then stay
// download-only with no stored copy.
func NewService(snapshots SnapshotLoader, objects *minio.Client, bucket string) *Service {
	return &Service{snapshots: snapshots, objects: objects, bucket: bucket, now: time.Now}
}

// Build assembles the bundle for a branch from its current content.
func (s *Service) Build(ctx context.Context, branchID string) (Bundle, error) {
	snap, err := s.snapshots.LoadBranchSnapshot(ctx, branchID)
	if err != nil {
		return Bundle{}, fmt.Errorf("load branch: %w", err)
	}

	bundle := Bundle{
		BranchID:    branchID,
		GeneratedAt: s.now().UTC(),
		Languages:   map[string]Locale{},
	}
	for key, values := range snap {
		for lang, value := range values {
			locale, ok := bundle.Languages[lang]
			if !ok {
				locale = Locale{Keys: map[string]string{}}
				bundle.Languages[lang] = locale
			}
			locale.Keys[key] = value
		}
	}
	return bundle, nil
}

// LanguageJSON renders one language of a bundle as indented JSON with sorted
// keys, the format translation files ship in.
func (b Bundle) LanguageJSON(language string) ([]byte, error) {
	locale, ok := b.Languages[language]
	if !ok {
		return nil, fmt.Errorf("language %q not in bundle", language)
	}
	// encoding/json sorts map keys, but building an ordered document keeps
	// the output stable if the encoding ever changes.
	names := make([]string, 0, len(locale.Keys))
	for name := range locale.Keys {
		names = append(names, name)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	buf.WriteString("{\n")
	for i, name := range names {
		entry, err := json.Marshal(locale.Keys[name])
		if err != nil {
			return nil, fmt.Errorf("encode value for %q: %w", name, err)
		}
		quotedName, _ := json.Marshal(name)
		buf.WriteString("  ")
		buf.Write(quotedName)
		buf.WriteString(": ")
		buf.Write(entry)
		if i < len(names)-1 {
			buf.WriteString(",")
		}
		buf.WriteString("\n")
	}
	buf.WriteString("}\n")
	return buf.Bytes(), nil
}

// Upload stores the full bundle in object storage and returns the object key.
func (s *Service) Upload(ctx context.Context, bundle Bundle) (string, error) {
	if s.objects == nil {
		return "", fmt.Errorf("object storage not configured")
	}

	payload, err := json.Marshal(bundle)
	if err != nil {
		return "", fmt.Errorf("encode bundle: %w", err)
	}

	objectKey := fmt.Sprintf("exports/%s/%s.json", bundle.BranchID, bundle.GeneratedAt.Format("20060102T150405Z"))
	_, err = s.objects.PutObject(ctx, s.bucket, objectKey,
		bytes.NewReader(payload), int64(len(payload)),
		minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		return "", fmt.Errorf("upload bundle: %w", err)
	}
	return objectKey, nil
}
