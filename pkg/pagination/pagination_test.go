package pagination

import (
	"testing"
	"time"
)

func TestNormalizeLimit(t *testing.T) {
	if got := NormalizeLimit(0); got != DefaultLimit {
		t.Fatalf("zero limit should default, got %d", got)
	}
	if got := NormalizeLimit(-3); got != DefaultLimit {
		t.Fatalf("negative limit should default, got %d", got)
	}
	if got := NormalizeLimit(MaxLimit + 50); got != MaxLimit {
		t.Fatalf("oversized limit should cap, got %d", got)
	}
	if got := NormalizeLimit(10); got != 10 {
		t.Fatalf("valid limit should pass through, got %d", got)
	}
	if got := LimitWithBuffer(10); got != 11 {
		t.Fatalf("buffer should add one, got %d", got)
	}
}

func TestCursorRoundTrip(t *testing.T) {
	for _, key := range []string{"42", "ORD-9F2C1A"} {
		cursor := Cursor{
			CreatedAt: time.Date(2025, 8, 15, 10, 30, 0, 123456789, time.UTC),
			Key:       key,
		}

		encoded := EncodeCursor(cursor)
		parsed, err := ParseCursor(encoded)
		if err != nil {
			t.Fatalf("parse cursor: %v", err)
		}
		if parsed == nil {
			t.Fatalf("expected cursor, got nil")
		}
		if !parsed.CreatedAt.Equal(cursor.CreatedAt) {
			t.Fatalf("timestamp mismatch: %v vs %v", parsed.CreatedAt, cursor.CreatedAt)
		}
		if parsed.Key != cursor.Key {
			t.Fatalf("key mismatch: %s vs %s", parsed.Key, cursor.Key)
		}
	}
}

func TestCursorIntKey(t *testing.T) {
	seq, err := (&Cursor{Key: "42"}).IntKey()
	if err != nil || seq != 42 {
		t.Fatalf("expected 42, got %d %v", seq, err)
	}
	if _, err := (&Cursor{Key: "ORD-9F2C1A"}).IntKey(); err == nil {
		t.Fatalf("expected error for non-numeric key")
	}
}

func TestParseCursorEmptyAndInvalid(t *testing.T) {
	if c, err := ParseCursor("  "); err != nil || c != nil {
		t.Fatalf("blank cursor should be nil, got %v %v", c, err)
	}
	if _, err := ParseCursor("not-base64!!"); err == nil {
		t.Fatalf("expected error for invalid base64")
	}
	if _, err := ParseCursor("aGVsbG8="); err == nil {
		t.Fatalf("expected error for missing separator")
	}
}
