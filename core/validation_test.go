package core

import (
	"errors"
	"testing"
	"time"
)

func TestValidateChunkInput(t *testing.T) {
	tests := []struct {
		name    string
		chunk   ChunkInput
		wantErr error
	}{
		{
			name:    "valid chunk",
			chunk:   ChunkInput{Text: "Revenue increased by twelve percent.", Page: 1},
			wantErr: nil,
		},
		{
			name:    "empty text",
			chunk:   ChunkInput{Text: "", Page: 1},
			wantErr: ErrEmptyContent,
		},
		{
			name:    "whitespace text",
			chunk:   ChunkInput{Text: " \n\t", Page: 2},
			wantErr: ErrEmptyContent,
		},
		{
			name:    "zero page",
			chunk:   ChunkInput{Text: "text", Page: 0},
			wantErr: ErrInvalidPage,
		},
		{
			name:    "negative page",
			chunk:   ChunkInput{Text: "text", Page: -4},
			wantErr: ErrInvalidPage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateChunkInput(tt.chunk)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateChunkInput() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateChunkInput() error = %v, want %v", err, tt.wantErr)
			}
			if !errors.Is(err, ErrInvalidChunk) {
				t.Errorf("ValidateChunkInput() error should wrap ErrInvalidChunk, got %v", err)
			}
		})
	}
}

func TestValidateTurn(t *testing.T) {
	validTime := time.Now().Add(-1 * time.Minute)
	futureTime := time.Now().Add(1 * time.Hour)

	tests := []struct {
		name    string
		turn    *Turn
		wantErr error
	}{
		{
			name:    "valid turn",
			turn:    &Turn{Query: "q", Answer: "a", Timestamp: validTime},
			wantErr: nil,
		},
		{
			name:    "valid turn without answer or sources",
			turn:    &Turn{Query: "q", Timestamp: validTime},
			wantErr: nil,
		},
		{
			name:    "nil turn",
			turn:    nil,
			wantErr: ErrInvalidTurn,
		},
		{
			name:    "empty query",
			turn:    &Turn{Answer: "a", Timestamp: validTime},
			wantErr: nil,
		},
		{
			name:    "future timestamp",
			turn:    &Turn{Query: "q", Timestamp: futureTime},
			wantErr: ErrInvalidTimestamp,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTurn(tt.turn)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateTurn() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateTurn() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestIsValidTimestamp(t *testing.T) {
	if !IsValidTimestamp(time.Now().Add(-time.Second)) {
		t.Errorf("past timestamp should be valid")
	}
	if IsValidTimestamp(time.Now().Add(time.Hour)) {
		t.Errorf("future timestamp should be invalid")
	}
}
