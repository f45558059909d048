package ingest

import (
	"errors"
	"fmt"
)

// RetryDocument的调用方错误，controller据此区分404与409
var (
	ErrDocumentNotFound     = errors.New("document not found")
	ErrDocumentNotRetryable = errors.New("document is not in ERROR state")
)

// 永久失败原因码，写入文档的error_reason字段
const (
	ReasonUnsupportedMimeType = "unsupported mime type"
	ReasonCorruptContent      = "corrupt or empty content"
	ReasonDimensionMismatch   = "embedding dimension mismatch"
	ReasonRetriesExhausted    = "retries exhausted"
)

// PermanentError 重试也不可能成功的失败
// 文档转入ERROR并确认任务；其余错误一律视为瞬时，重投后再试
type PermanentError struct {
	Reason string
	Err    error
}

func (e *PermanentError) Error() string {
	if e.Err == nil {
		return e.Reason
	}
	return fmt.Sprintf("%s: %v", e.Reason, e.Err)
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

func permanent(reason string, err error) *PermanentError {
	return &PermanentError{Reason: reason, Err: err}
}
