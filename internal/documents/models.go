// Package documents generates certificates, tabular exports and view
// snapshots, archives them in object storage and records their metadata.
package documents

import (
	"time"

	"github.com/google/uuid"
)

// Kind is the builder that produced a document
type Kind string

const (
	KindCertificate Kind = "certificate"
	KindTable       Kind = "table"
	KindSnapshot    Kind = "snapshot"
)

// Document is the archive record of one generated file
type Document struct {
	ID            uuid.UUID  `json:"id" db:"id"`
	Kind          Kind       `json:"kind" db:"kind"`
	Filename      string     `json:"filename" db:"filename"`
	ContentType   string     `json:"content_type" db:"content_type"`
	Size          int64      `json:"size" db:"size"`
	Bucket        string     `json:"-" db:"bucket"`
	StorageKey    string     `json:"storage_key" db:"storage_key"`
	CooperativeID *uuid.UUID `json:"cooperative_id,omitempty" db:"cooperative_id"`
	Locale        string     `json:"locale,omitempty" db:"locale"`
	CreatedBy     string     `json:"created_by,omitempty" db:"created_by"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
}

// Generated is a freshly built document and its archive record
type Generated struct {
	Document *Document
	Data     []byte
}

// CertificateRequest asks for the certificate of one cooperative
type CertificateRequest struct {
	CooperativeID uuid.UUID
	Locale        string
	RequestedBy   string
}

// SnapshotRequest asks for a capture of one element of a server-rendered view.
// Path is relative to the portal's public URL.
type SnapshotRequest struct {
	Path        string `json:"path" binding:"required"`
	ElementID   string `json:"element_id" binding:"required"`
	Filename    string `json:"filename"`
	Title       string `json:"title"`
	RequestedBy string `json:"-"`
}

// Schema creates the archive table. It is valid on PostgreSQL and SQLite.
const Schema = `
CREATE TABLE IF NOT EXISTS documents (
	id VARCHAR(36) PRIMARY KEY,
	kind VARCHAR(32) NOT NULL,
	filename TEXT NOT NULL,
	content_type TEXT NOT NULL,
	size BIGINT NOT NULL DEFAULT 0,
	bucket TEXT NOT NULL,
	storage_key TEXT NOT NULL,
	cooperative_id VARCHAR(36),
	locale VARCHAR(8) NOT NULL DEFAULT '',
	created_by TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_documents_kind ON documents (kind);
CREATE INDEX IF NOT EXISTS idx_documents_cooperative ON documents (cooperative_id);
`
