// Package models tracks all api models for request and responses
package models

import "time"

type ErrorResponse struct {
	Error string `json:"error"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type ToggleResponse struct {
	LinkName string `json:"linkname"`
	Action   string `json:"action"`
	Status   string `json:"status"`
	Message  string `json:"message"`
}

type RefreshResponse struct {
	IndexedAt time.Time `json:"indexed_at"`
	Folders   int       `json:"folders"`
	Images    int       `json:"images"`
	Message   string    `json:"message"`
}

type FolderListResponse struct {
	Folders []string `json:"folders"`
}

type CreatedResponse struct {
	ID      int64  `json:"id"`
	Message string `json:"message"`
}
