package dao

import (
	"errors"
	"time"

	"doc-ingest-backend/model"

	"gorm.io/gorm"
)

func CreateDocument(doc *model.Document) error {
	return DB.Create(doc).Error
}

func GetDocumentByID(documentID string) (*model.Document, error) {
	var doc model.Document
	if err := DB.Where("document_id = ?", documentID).
		First(&doc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &doc, nil
}

func GetDocumentsByOwner(ownerID string, state model.State) ([]model.Document, error) {
	var docs []model.Document
	query := DB.Where("owner_id = ?", ownerID)
	if state != "" {
		query = query.Where("state = ?", state)
	}
	if err := query.Order("created_at DESC").
		Find(&docs).Error; err != nil {
		return nil, err
	}
	return docs, nil
}

// TransitionState 条件状态迁移，状态字段唯一的修改入口
// 仅当当前状态等于from时生效；返回false表示状态已被其他worker改变，调用方按无冲突处理
func TransitionState(documentID string, from, to model.State, fields map[string]any) (bool, error) {
	updates := map[string]any{"state": to}
	for k, v := range fields {
		updates[k] = v
	}

	result := DB.Model(&model.Document{}).
		Where("document_id = ? AND state = ?", documentID, from).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func DeleteDocument(ownerID, documentID string) error {
	return DB.Where("owner_id = ? AND document_id = ?", ownerID, documentID).
		Delete(&model.Document{}).Error
}

// GetStaleDocuments 恢复扫描用：超过年龄阈值仍处于指定状态的文档
func GetStaleDocuments(state model.State, olderThan time.Duration, limit int) ([]model.Document, error) {
	var docs []model.Document
	cutoff := time.Now().Add(-olderThan)
	if err := DB.Where("state = ? AND updated_at < ?", state, cutoff).
		Order("updated_at ASC").
		Limit(limit).
		Find(&docs).Error; err != nil {
		return nil, err
	}
	return docs, nil
}
