package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"github.com/codebuildervaibhav/meeting-stt/internal/types"
)

const folderMimeType = "application/vnd.google-apps.folder"

// DriveClient uploads meeting exports to Google Drive
type DriveClient struct {
	service  *drive.Service
	folderID string
}

// NewDriveClient creates a Drive client from OAuth client credentials. A missing
// token file starts the interactive consent flow on stdin.
func NewDriveClient(ctx context.Context, credentialsFile, tokenFile, folderName string) (*DriveClient, error) {
	b, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read credentials file: %w", err)
	}

	config, err := google.ConfigFromJSON(b, drive.DriveFileScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse credentials: %w", err)
	}

	client, err := getClient(ctx, config, tokenFile)
	if err != nil {
		return nil, err
	}

	srv, err := drive.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("unable to create Drive service: %w", err)
	}

	dc := &DriveClient{service: srv}
	if dc.folderID, err = dc.findOrCreateFolder(ctx, folderName, ""); err != nil {
		return nil, fmt.Errorf("unable to prepare folder %q: %w", folderName, err)
	}
	return dc, nil
}

// getClient retrieves a token, saves the token, then returns the generated client
func getClient(ctx context.Context, config *oauth2.Config, tokenFile string) (*http.Client, error) {
	tok, err := tokenFromFile(tokenFile)
	if err != nil {
		if tok, err = getTokenFromWeb(ctx, config); err != nil {
			return nil, err
		}
		if err := saveToken(tokenFile, tok); err != nil {
			return nil, err
		}
	}
	return config.Client(ctx, tok), nil
}

// getTokenFromWeb requests a token from the web
func getTokenFromWeb(ctx context.Context, config *oauth2.Config) (*oauth2.Token, error) {
	authURL := config.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
	fmt.Printf("Go to the following link in your browser:\n%v\n", authURL)
	fmt.Print("Enter authorization code: ")

	var authCode string
	if _, err := fmt.Scan(&authCode); err != nil {
		return nil, fmt.Errorf("unable to read authorization code: %w", err)
	}

	tok, err := config.Exchange(ctx, authCode)
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve token from web: %w", err)
	}
	return tok, nil
}

// tokenFromFile retrieves a token from a local file
func tokenFromFile(file string) (*oauth2.Token, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	err = json.NewDecoder(f).Decode(tok)
	return tok, err
}

// saveToken saves a token to a file path
func saveToken(path string, token *oauth2.Token) error {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("unable to cache oauth token: %w", err)
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(token)
}

// Upload stores the transcript, subtitles and metadata under
// <root>/<meeting id>/ and returns a link to the transcript.
func (dc *DriveClient) Upload(ctx context.Context, exp *types.MeetingExport) (string, error) {
	folderID, err := dc.findOrCreateFolder(ctx, fmt.Sprintf("meeting_%d", exp.MeetingID), dc.folderID)
	if err != nil {
		return "", err
	}

	base := exportBaseName(exp)
	txt, err := dc.create(ctx, base+".txt", "text/plain", folderID, exp.Transcript)
	if err != nil {
		return "", fmt.Errorf("failed to upload transcript: %w", err)
	}
	if _, err := dc.create(ctx, base+".srt", "application/x-subrip", folderID, exp.SRT); err != nil {
		return "", fmt.Errorf("failed to upload subtitles: %w", err)
	}

	metaJSON, err := json.MarshalIndent(exportMetadata(exp), "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if _, err := dc.create(ctx, base+"_meta.json", "application/json", folderID, string(metaJSON)); err != nil {
		return "", fmt.Errorf("failed to upload metadata: %w", err)
	}

	return fmt.Sprintf("https://drive.google.com/file/d/%s/view", txt.Id), nil
}

func (dc *DriveClient) create(ctx context.Context, name, mimeType, parentID, content string) (*drive.File, error) {
	f := &drive.File{
		Name:     name,
		MimeType: mimeType,
		Parents:  []string{parentID},
	}
	return dc.service.Files.Create(f).
		Media(strings.NewReader(content)).
		Fields("id").
		Context(ctx).
		Do()
}

// findOrCreateFolder finds or creates a folder; an empty parentID searches the whole drive.
func (dc *DriveClient) findOrCreateFolder(ctx context.Context, name, parentID string) (string, error) {
	query := fmt.Sprintf("name='%s' and mimeType='%s' and trashed=false", name, folderMimeType)
	if parentID != "" {
		query += fmt.Sprintf(" and '%s' in parents", parentID)
	}

	r, err := dc.service.Files.List().Q(query).Spaces("drive").Fields("files(id)").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("unable to search for folder: %w", err)
	}
	if len(r.Files) > 0 {
		return r.Files[0].Id, nil
	}

	folder := &drive.File{
		Name:     name,
		MimeType: folderMimeType,
	}
	if parentID != "" {
		folder.Parents = []string{parentID}
	}

	file, err := dc.service.Files.Create(folder).Fields("id").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("unable to create folder: %w", err)
	}
	return file.Id, nil
}
