package model

import "time"

type State string

const (
	// 已提交，等待worker处理
	StatePending State = "PENDING"

	// worker已认领，处理中
	StateProcessing State = "PROCESSING"

	// 向量已全部写入索引
	StateIndexed State = "INDEXED"

	// 处理失败，ErrorReason记录原因
	StateError State = "ERROR"
)

// ValidStates 文档状态全集，状态机只允许在这些值之间迁移
var ValidStates = []State{StatePending, StateProcessing, StateIndexed, StateError}

func (s State) Valid() bool {
	for _, v := range ValidStates {
		if s == v {
			return true
		}
	}
	return false
}

// Terminal 终态下任务直接ack丢弃
func (s State) Terminal() bool {
	return s == StateIndexed || s == StateError
}

// Document 文档元数据，状态的唯一权威来源
// 建立联合索引 (owner_id, created_at)
type Document struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `gorm:"not null;index:idx_owner_created" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`

	DocumentID       string `gorm:"not null;uniqueIndex;size:36" json:"document_id"`
	OwnerID          string `gorm:"not null;index:idx_owner_created" json:"owner_id"`
	OriginalFilename string `gorm:"not null" json:"original_filename"`
	ContentHash      string `gorm:"not null;size:64" json:"content_hash"`
	ByteSize         int64  `gorm:"not null" json:"byte_size"`
	MimeType         string `gorm:"not null" json:"mime_type"`

	// 文件在OSS上的完整路径，不包含bucket名称
	StorageKey string `gorm:"not null" json:"storage_key"`

	State State `gorm:"not null;default:PENDING;index" json:"state"`

	// 仅在State为ERROR时非空
	ErrorReason *string `json:"error_reason,omitempty"`

	// 仅在State为INDEXED时非空
	ChunkCount *int `json:"chunk_count,omitempty"`
}

func (Document) TableName() string {
	return "document_metadata"
}
