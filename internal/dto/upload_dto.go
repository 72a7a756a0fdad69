package dto

// UploadResponse describes a stored recording.
type UploadResponse struct {
	URL      string `json:"url"`
	MimeType string `json:"mime_type"`
	Size     int64  `json:"size"`
}
