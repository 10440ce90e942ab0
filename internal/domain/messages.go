// Package domain defines the work items exchanged over the broker.
package domain

import (
	"errors"
	"time"
)

var (
	// ErrMissingURL indicates a work item without a url field.
	ErrMissingURL = errors.New("message missing url")
	// ErrMissingTargetID indicates a process request without a target id.
	ErrMissingTargetID = errors.New("process request missing target_id")
	// ErrMissingFilepath indicates a process request without an object key.
	ErrMissingFilepath = errors.New("process request missing filepath")
	// ErrMissingMetadataID indicates a process request without a metadata row reference.
	ErrMissingMetadataID = errors.New("process request missing metadata id")
)

// FetchRequest asks the fetch worker to retrieve one URL.
type FetchRequest struct {
	URL string `json:"url"`
}

// Validate checks required fields.
func (r *FetchRequest) Validate() error {
	if r.URL == "" {
		return ErrMissingURL
	}
	return nil
}

// RenderRequest asks the render worker to produce rendered HTML for one URL.
type RenderRequest struct {
	URL string `json:"url"`
}

// Validate checks required fields.
func (r *RenderRequest) Validate() error {
	if r.URL == "" {
		return ErrMissingURL
	}
	return nil
}

// ProcessRequest asks the process worker to analyze one stored artifact.
// MetadataID references the metadata row written by the finish sequence;
// Filepath is the object-store key of the raw HTML.
type ProcessRequest struct {
	URL        string    `json:"url"`
	TargetID   string    `json:"target_id"`
	Filepath   string    `json:"filepath"`
	MetadataID int64     `json:"metadata"`
	Datetime   time.Time `json:"datetime"`
}

// Validate checks required fields.
func (r *ProcessRequest) Validate() error {
	if r.URL == "" {
		return ErrMissingURL
	}
	if r.TargetID == "" {
		return ErrMissingTargetID
	}
	if r.Filepath == "" {
		return ErrMissingFilepath
	}
	if r.MetadataID <= 0 {
		return ErrMissingMetadataID
	}
	return nil
}
