package gcsuploader

import (
	"testing"
	"time"
)

func TestParseGCSURI(t *testing.T) {
	tests := []struct {
		uri        string
		wantBucket string
		wantObject string
		wantErr    bool
	}{
		{"gs://bucket/statements/march.xlsx", "bucket", "statements/march.xlsx", false},
		{"gs://bucket/file.csv", "bucket", "file.csv", false},
		{"gs://bucket", "", "", true},
		{"gs://bucket/", "", "", true},
		{"s3://bucket/file.csv", "", "", true},
		{"/tmp/file.csv", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			bucket, object, err := ParseGCSURI(tt.uri)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseGCSURI(%q) error = %v, wantErr %v", tt.uri, err, tt.wantErr)
			}
			if bucket != tt.wantBucket || object != tt.wantObject {
				t.Errorf("ParseGCSURI(%q) = %q, %q", tt.uri, bucket, object)
			}
		})
	}
}

func TestExtractFilenameFromGCSURI(t *testing.T) {
	tests := []struct {
		uri  string
		want string
	}{
		{"gs://bucket/folder/statement.xlsx", "statement.xlsx"},
		{"gs://bucket/statement.csv", "statement.csv"},
		{"gs://bucket", "bucket"},
	}
	for _, tt := range tests {
		if got := ExtractFilenameFromGCSURI(tt.uri); got != tt.want {
			t.Errorf("ExtractFilenameFromGCSURI(%q) = %q, want %q", tt.uri, got, tt.want)
		}
	}
}

func TestStatementObjectName(t *testing.T) {
	at := time.Date(2024, 3, 9, 10, 0, 0, 0, time.UTC)
	got := StatementObjectName("abc", "../../evil/march.xlsx", at)
	if got != "statements/2024/03/abc/march.xlsx" {
		t.Errorf("StatementObjectName() = %q", got)
	}
	if uri := GCSURI("b", got); uri != "gs://b/statements/2024/03/abc/march.xlsx" {
		t.Errorf("GCSURI() = %q", uri)
	}
}

func TestContentTypeFor(t *testing.T) {
	if got := ContentTypeFor("A.XLSX"); got != "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet" {
		t.Errorf("xlsx content type = %q", got)
	}
	if got := ContentTypeFor("a.csv"); got != "text/csv" {
		t.Errorf("csv content type = %q", got)
	}
	if got := ContentTypeFor("a.pdf"); got != "application/octet-stream" {
		t.Errorf("pdf content type = %q", got)
	}
}
