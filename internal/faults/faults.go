// Package faults defines the error categories the dispatcher branches on.
// Every collaborator failure is wrapped with exactly one category so retry
// policy can differ per kind without inspecting error strings.
package faults

import "errors"

var (
	ErrValidation    = errors.New("validation failed")
	ErrDownload      = errors.New("download failed")
	ErrTranscription = errors.New("transcription failed")
	ErrAnalysis      = errors.New("analysis failed")
	ErrMedia         = errors.New("media operation failed")
	ErrPosting       = errors.New("posting failed")
	ErrQuality       = errors.New("quality check failed")
)
