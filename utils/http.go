package utils

import (
	"net/http"
	"time"
)

const defaultHTTPTimeout = 60 * time.Second

// DefaultHTTPClient 带超时的出站HTTP客户端，所有外部调用共用
func DefaultHTTPClient() *http.Client {
	return &http.Client{
		Timeout: defaultHTTPTimeout,
	}
}
