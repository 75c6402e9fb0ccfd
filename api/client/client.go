package client

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/aouyang1/inkframe/api/models"
)

// FrameClient talks to a running inkframe server.
type FrameClient struct {
	baseURL string
	client  *http.Client
}

func NewFrameClient(baseURL string) *FrameClient {
	return &FrameClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 2 * time.Minute},
	}
}

// Toggle switches an external event on or off.
func (fc *FrameClient) Toggle(linkName, action string) (*models.ToggleResponse, error) {
	u := fmt.Sprintf("%s/externalevent/%s/%s", fc.baseURL, url.PathEscape(linkName), url.PathEscape(action))
	var resp models.ToggleResponse
	if err := fc.do(http.MethodGet, u, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RefreshImages forces the server to rebuild its image index.
func (fc *FrameClient) RefreshImages() (*models.RefreshResponse, error) {
	var resp models.RefreshResponse
	if err := fc.do(http.MethodPost, fc.baseURL+"/refresh_images", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Folders lists the folder labels known to the server.
func (fc *FrameClient) Folders() ([]string, error) {
	var resp models.FolderListResponse
	if err := fc.do(http.MethodGet, fc.baseURL+"/api/folders", &resp); err != nil {
		return nil, err
	}
	return resp.Folders, nil
}

func (fc *FrameClient) do(method, u string, out any) error {
	req, err := http.NewRequest(method, u, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := fc.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp models.ErrorResponse
		if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
			return fmt.Errorf("server error: %s", errResp.Error)
		}
		return fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}
