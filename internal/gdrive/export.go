package gdrive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

const googleDocMimeType = "application/vnd.google-apps.document"

// Exporter uploads saved transcripts to a Drive folder as Google Docs.
// Exporting the same file again updates the existing document.
type Exporter struct {
	service  *drive.Service
	folderID string
	fileIDs  map[string]string
	mu       sync.Mutex
}

func NewExporter(ctx context.Context, credPath, folderID string) (*Exporter, error) {
	creds, err := os.ReadFile(credPath)
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}

	config, err := google.CredentialsFromJSONWithTypeAndParams(ctx, creds, google.ServiceAccount, google.CredentialsParams{Scopes: []string{drive.DriveFileScope}})
	if err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}

	return newExporter(ctx, folderID, option.WithCredentials(config))
}

func newExporter(ctx context.Context, folderID string, opts ...option.ClientOption) (*Exporter, error) {
	svc, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create drive service: %w", err)
	}

	return &Exporter{
		service:  svc,
		folderID: folderID,
		fileIDs:  make(map[string]string),
	}, nil
}

// Export uploads localPath and returns the Drive file ID.
func (e *Exporter) Export(ctx context.Context, localPath string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", localPath, err)
	}
	defer func() { _ = f.Close() }()

	if fileID, ok := e.fileIDs[localPath]; ok {
		if _, err := e.service.Files.Update(fileID, &drive.File{}).Media(f).Context(ctx).Do(); err != nil {
			return "", fmt.Errorf("drive update: %w", err)
		}
		return fileID, nil
	}

	file := &drive.File{
		Name:     documentName(localPath),
		MimeType: googleDocMimeType,
	}
	if e.folderID != "" {
		file.Parents = []string{e.folderID}
	}

	doc, err := e.service.Files.Create(file).Media(f).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("drive create: %w", err)
	}

	e.fileIDs[localPath] = doc.Id
	return doc.Id, nil
}

func documentName(localPath string) string {
	base := strings.TrimSuffix(filepath.Base(localPath), filepath.Ext(localPath))
	return "dictaite-" + base
}
