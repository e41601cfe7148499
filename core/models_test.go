package core

import (
	"slices"
	"testing"
	"time"
)

func TestIDFromBytes(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name:    "short content",
			content: "test content",
		},
		{
			name:    "empty string",
			content: "",
		},
		{
			name:    "long content",
			content: "This is a much longer piece of content that should still hash consistently",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id1 := IDFromBytes([]byte(tt.content))
			id2 := IDFromBytes([]byte(tt.content))
			if id1 != id2 {
				t.Errorf("IDFromBytes() produced different IDs for same content: %d vs %d", id1, id2)
			}
		})
	}
}

func TestIDFromBytes_Different(t *testing.T) {
	id1 := IDFromBytes([]byte("content1"))
	id2 := IDFromBytes([]byte("content2"))

	if id1 == id2 {
		t.Errorf("IDFromBytes() produced same ID for different content")
	}
}

func TestDocumentSet(t *testing.T) {
	set := NewDocumentSet("b.pdf", "a.pdf", "b.pdf")

	if set.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", set.Len())
	}
	if !set.Contains("a.pdf") || !set.Contains("b.pdf") {
		t.Errorf("Contains() missing a member: %v", set)
	}
	if set.Contains("c.pdf") {
		t.Errorf("Contains(c.pdf) = true, want false")
	}
	if got, want := set.Sorted(), []string{"a.pdf", "b.pdf"}; !slices.Equal(got, want) {
		t.Errorf("Sorted() = %v, want %v", got, want)
	}

	var empty DocumentSet
	if empty.Len() != 0 || empty.Contains("a.pdf") || len(empty.Sorted()) != 0 {
		t.Errorf("zero DocumentSet should behave as empty")
	}
}

func TestExtractedChunk_Input(t *testing.T) {
	e := ExtractedChunk{Document: "a.pdf", Text: "hello", Page: 3}
	if got := e.Input(); got != (ChunkInput{Text: "hello", Page: 3}) {
		t.Errorf("Input() = %+v", got)
	}
}

func TestTurnMUS(t *testing.T) {
	turn := Turn{
		Query:               "What were company b's earnings?",
		Answer:              "Revenue grew 12% year over year.",
		ReferencedDocuments: "company_b_earnings.pdf; company_c_earnings.pdf",
		Timestamp:           time.Date(2025, 3, 14, 9, 26, 53, 589000, time.UTC),
	}

	buf := make([]byte, TurnMUS.Size(turn))
	n := TurnMUS.Marshal(turn, buf)
	if n != len(buf) {
		t.Fatalf("Marshal() wrote %d bytes, Size() said %d", n, len(buf))
	}

	got, read, err := TurnMUS.Unmarshal(buf)
	if err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if read != n {
		t.Errorf("Unmarshal() read %d bytes, want %d", read, n)
	}
	if got.Query != turn.Query || got.Answer != turn.Answer || got.ReferencedDocuments != turn.ReferencedDocuments {
		t.Errorf("Unmarshal() = %+v, want %+v", got, turn)
	}
	if !got.Timestamp.Equal(turn.Timestamp) {
		t.Errorf("Timestamp = %v, want %v", got.Timestamp, turn.Timestamp)
	}

	if _, err := TurnMUS.Skip(buf); err != nil {
		t.Errorf("Skip() error = %v", err)
	}
	if _, _, err := TurnMUS.Unmarshal(buf[:2]); err == nil {
		t.Errorf("Unmarshal() of truncated data should fail")
	}
}
