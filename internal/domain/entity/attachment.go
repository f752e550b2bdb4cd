package entity

import "time"

// Attachment records who uploaded a file and which record owns it.
// RecordID stays empty until a record submitted by the uploader references the URL.
type Attachment struct {
	URL         string    `json:"url"`
	FileName    string    `json:"file_name"`
	ContentType string    `json:"content_type,omitempty"`
	UploadedBy  string    `json:"uploaded_by"`
	RecordID    string    `json:"record_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// IsClaimed reports whether a record owns the upload
func (a *Attachment) IsClaimed() bool {
	return a.RecordID != ""
}
