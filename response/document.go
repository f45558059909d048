package response

import "time"

type SubmitDocumentResponse struct {
	DocumentID string `json:"document_id"`
	State      string `json:"state"`
}

type DocumentStatusResponse struct {
	State       string    `json:"state"`
	ErrorReason *string   `json:"error_reason,omitempty"`
	ChunkCount  *int      `json:"chunk_count,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type DocumentResponse struct {
	DocumentID       string    `json:"document_id"`
	OriginalFilename string    `json:"original_filename"`
	MimeType         string    `json:"mime_type"`
	ByteSize         int64     `json:"byte_size"`
	State            string    `json:"state"`
	CreatedAt        time.Time `json:"created_at"`
}

type GetDocumentsResponse struct {
	Documents []DocumentResponse `json:"documents"`
}

type GetDownloadLinkResponse struct {
	URL string `json:"url"`
}
