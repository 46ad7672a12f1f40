package repository

import "testing"

func TestParseSort(t *testing.T) {
	fields, err := ParseSort("title,-createdAt")
	if err != nil {
		t.Fatalf("ParseSort: %v", err)
	}
	if len(fields) != 2 {
		t.Fatalf("fields = %d, want 2", len(fields))
	}
	if fields[0].Column != "title" || fields[0].Desc {
		t.Errorf("first field = %+v", fields[0])
	}
	if fields[1].Column != "created_at" || !fields[1].Desc {
		t.Errorf("second field = %+v", fields[1])
	}
}

func TestParseSortRejectsUnknownColumns(t *testing.T) {
	if _, err := ParseSort("password_hash"); err == nil {
		t.Fatal("unknown column accepted")
	}
	if _, err := ParseSort("title;DROP TABLE tickets"); err == nil {
		t.Fatal("injection-shaped expression accepted")
	}
}

func TestParseSortEmptyExpression(t *testing.T) {
	fields, err := ParseSort("  ")
	if err != nil {
		t.Fatalf("ParseSort: %v", err)
	}
	if fields != nil {
		t.Fatalf("fields = %+v, want nil", fields)
	}
}
