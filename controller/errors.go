package controller

import "errors"

var (
	ErrParseRequest = errors.New("failed to parse request")

	ErrSubmitDocument    = errors.New("failed to submit document")
	ErrEnqueueIngestTask = errors.New("failed to enqueue ingest task")
	ErrGetDocument       = errors.New("failed to get document")
	ErrDocumentNotFound  = errors.New("document not found")
	ErrGetDocuments      = errors.New("failed to get documents")
	ErrDeleteDocument    = errors.New("failed to delete document")
	ErrGetDownloadLink   = errors.New("failed to get download link")
	ErrRetryDocument     = errors.New("failed to retry document")
	ErrDocumentNotFailed = errors.New("document is not in ERROR state")
)
