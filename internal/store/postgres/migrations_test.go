package postgres

import "testing"

func TestPendingMigrations(t *testing.T) {
	files, err := pendingMigrations(map[string]bool{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(files) == 0 || files[0] != "001_face_recognition.sql" {
		t.Fatalf("expected 001_face_recognition.sql first, got %v", files)
	}

	files, err = pendingMigrations(map[string]bool{"001_face_recognition.sql": true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, f := range files {
		if f == "001_face_recognition.sql" {
			t.Error("applied migration returned as pending")
		}
	}
}
