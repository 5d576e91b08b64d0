// Package gcal uploads artifacts to Google Drive and records application
// events on Google Calendar. Both surfaces sit behind small interfaces so
// the pipeline can run with either disabled.
package gcal

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

const folderMIME = "application/vnd.google-apps.folder"

// Uploader stores a compiled artifact and returns a shareable link.
type Uploader interface {
	Upload(ctx context.Context, pdfPath, company, role string) (link string, err error)
}

// DriveUploader uploads PDFs under Jobs/{Company}/{Role}/ in Drive.
type DriveUploader struct {
	svc *drive.Service
}

// NewDriveUploader builds a Drive client from a service account or OAuth
// credentials file.
func NewDriveUploader(ctx context.Context, credentialsPath string) (*DriveUploader, error) {
	if _, err := os.Stat(credentialsPath); err != nil {
		return nil, fmt.Errorf("google credentials not found at %s: %w", credentialsPath, err)
	}
	svc, err := drive.NewService(ctx, option.WithCredentialsFile(credentialsPath), option.WithScopes(drive.DriveFileScope))
	if err != nil {
		return nil, fmt.Errorf("failed to build drive service: %w", err)
	}
	return &DriveUploader{svc: svc}, nil
}

// Upload places the PDF in Jobs/{Company}/{Role}/ and returns its
// webViewLink.
func (u *DriveUploader) Upload(ctx context.Context, pdfPath, company, role string) (string, error) {
	jobsID, err := u.findOrCreateFolder(ctx, "Jobs", "")
	if err != nil {
		return "", err
	}
	companyID, err := u.findOrCreateFolder(ctx, company, jobsID)
	if err != nil {
		return "", err
	}
	roleID, err := u.findOrCreateFolder(ctx, role, companyID)
	if err != nil {
		return "", err
	}

	f, err := os.Open(pdfPath)
	if err != nil {
		return "", fmt.Errorf("failed to open artifact: %w", err)
	}
	defer f.Close()

	file, err := u.svc.Files.Create(&drive.File{
		Name:    filepath.Base(pdfPath),
		Parents: []string{roleID},
	}).Media(f).Fields("id", "webViewLink").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("drive upload failed: %w", err)
	}

	if file.WebViewLink != "" {
		return file.WebViewLink, nil
	}
	return fmt.Sprintf("https://drive.google.com/file/d/%s", file.Id), nil
}

func (u *DriveUploader) findOrCreateFolder(ctx context.Context, name, parentID string) (string, error) {
	query := fmt.Sprintf("name = '%s' and mimeType = '%s' and trashed = false", escapeQuery(name), folderMIME)
	if parentID != "" {
		query += fmt.Sprintf(" and '%s' in parents", parentID)
	}

	list, err := u.svc.Files.List().Q(query).Spaces("drive").Fields("files(id)").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("drive folder lookup failed for %q: %w", name, err)
	}
	if len(list.Files) > 0 {
		return list.Files[0].Id, nil
	}

	meta := &drive.File{Name: name, MimeType: folderMIME}
	if parentID != "" {
		meta.Parents = []string{parentID}
	}
	folder, err := u.svc.Files.Create(meta).Fields("id").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("drive folder create failed for %q: %w", name, err)
	}
	return folder.Id, nil
}

// escapeQuery escapes single quotes in Drive query string literals.
func escapeQuery(s string) string {
	return strings.ReplaceAll(s, `'`, `\'`)
}
