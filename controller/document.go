package controller

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"doc-ingest-backend/dao"
	"doc-ingest-backend/model"
	"doc-ingest-backend/response"
	"doc-ingest-backend/service/ingest"
	"doc-ingest-backend/service/mq"
	"doc-ingest-backend/service/storage"

	"github.com/gin-gonic/gin"
)

var (
	ingestService *ingest.Service
	blobClient    *storage.Client
)

// Init 注入controller依赖，须在路由注册前调用
func Init(svc *ingest.Service, blobs *storage.Client) {
	ingestService = svc
	blobClient = blobs
}

// SubmitDocument 接收文档上传，持久化后入队异步摄取
// 入队失败不向调用方暴露：文档停留在PENDING，由恢复扫描补投
func SubmitDocument(c *gin.Context) {
	ownerID := c.GetString("owner_id")

	fileHeader, err := c.FormFile("file")
	if err != nil {
		slog.Error(ErrParseRequest.Error(), "err", err)
		c.AbortWithStatusJSON(http.StatusBadRequest, response.Response{
			Msg: ErrParseRequest.Error(),
		})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		slog.Error(ErrParseRequest.Error(), "err", err)
		c.AbortWithStatusJSON(http.StatusBadRequest, response.Response{
			Msg: ErrParseRequest.Error(),
		})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		slog.Error(ErrParseRequest.Error(), "err", err)
		c.AbortWithStatusJSON(http.StatusBadRequest, response.Response{
			Msg: ErrParseRequest.Error(),
		})
		return
	}

	mimeType := fileHeader.Header.Get("Content-Type")
	doc, err := ingestService.SubmitDocument(c.Request.Context(), ownerID, fileHeader.Filename, mimeType, data)
	if err != nil {
		slog.Error(ErrSubmitDocument.Error(), "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, response.Response{
			Msg: ErrSubmitDocument.Error(),
		})
		return
	}

	if err := mq.SendMessage(c.Request.Context(), &mq.Message{
		Topic: mq.TopicDocument,
		Tag:   mq.TagIngest,
		Payload: ingest.IngestMessage{
			DocumentID: doc.DocumentID,
			EnqueuedAt: time.Now(),
		},
	}); err != nil {
		slog.Error(ErrEnqueueIngestTask.Error(),
			"document_id", doc.DocumentID,
			"err", err)
	}

	c.JSON(http.StatusAccepted, response.Response{
		Data: response.SubmitDocumentResponse{
			DocumentID: doc.DocumentID,
			State:      string(doc.State),
		},
	})
}

// GetDocumentStatus 状态查询只读元数据库
func GetDocumentStatus(c *gin.Context) {
	doc := ownedDocument(c)
	if doc == nil {
		return
	}

	c.JSON(http.StatusOK, response.Response{
		Data: response.DocumentStatusResponse{
			State:       string(doc.State),
			ErrorReason: doc.ErrorReason,
			ChunkCount:  doc.ChunkCount,
			UpdatedAt:   doc.UpdatedAt,
		},
	})
}

func GetDocuments(c *gin.Context) {
	ownerID := c.GetString("owner_id")
	state := model.State(c.Query("state"))

	docs, err := dao.GetDocumentsByOwner(ownerID, state)
	if err != nil {
		slog.Error(ErrGetDocuments.Error(), "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, response.Response{
			Msg: ErrGetDocuments.Error(),
		})
		return
	}

	var resp response.GetDocumentsResponse
	for _, doc := range docs {
		resp.Documents = append(resp.Documents, response.DocumentResponse{
			DocumentID:       doc.DocumentID,
			OriginalFilename: doc.OriginalFilename,
			MimeType:         doc.MimeType,
			ByteSize:         doc.ByteSize,
			State:            string(doc.State),
			CreatedAt:        doc.CreatedAt,
		})
	}

	c.JSON(http.StatusOK, response.Response{
		Data: resp,
	})
}

// DeleteDocument 删除元数据行，向MQ发送物理清理任务
func DeleteDocument(c *gin.Context) {
	doc := ownedDocument(c)
	if doc == nil {
		return
	}

	if err := dao.DeleteDocument(doc.OwnerID, doc.DocumentID); err != nil {
		slog.Error(ErrDeleteDocument.Error(), "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, response.Response{
			Msg: ErrDeleteDocument.Error(),
		})
		return
	}

	if err := mq.SendMessage(c.Request.Context(), &mq.Message{
		Topic: mq.TopicDocument,
		Tag:   mq.TagDelete,
		Payload: ingest.DeleteMessage{
			DocumentID: doc.DocumentID,
			StorageKey: doc.StorageKey,
		},
	}); err != nil {
		slog.Error(ErrDeleteDocument.Error(),
			"document_id", doc.DocumentID,
			"err", err)
	}

	c.JSON(http.StatusOK, response.Response{})
}

// RetryDocument 将ERROR文档重置回PENDING并重新入队摄取任务
// 入队失败与上传路径同理：文档留在PENDING由恢复扫描补投
func RetryDocument(c *gin.Context) {
	ownerID := c.GetString("owner_id")
	documentID := c.Param("id")

	doc, err := ingestService.RetryDocument(ownerID, documentID)
	if err != nil {
		switch {
		case errors.Is(err, ingest.ErrDocumentNotFound):
			c.AbortWithStatusJSON(http.StatusNotFound, response.Response{
				Msg: ErrDocumentNotFound.Error(),
			})
		case errors.Is(err, ingest.ErrDocumentNotRetryable):
			c.AbortWithStatusJSON(http.StatusConflict, response.Response{
				Msg: ErrDocumentNotFailed.Error(),
			})
		default:
			slog.Error(ErrRetryDocument.Error(), "err", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, response.Response{
				Msg: ErrRetryDocument.Error(),
			})
		}
		return
	}

	if err := mq.SendMessage(c.Request.Context(), &mq.Message{
		Topic: mq.TopicDocument,
		Tag:   mq.TagIngest,
		Payload: ingest.IngestMessage{
			DocumentID: doc.DocumentID,
			EnqueuedAt: time.Now(),
		},
	}); err != nil {
		slog.Error(ErrEnqueueIngestTask.Error(),
			"document_id", doc.DocumentID,
			"err", err)
	}

	c.JSON(http.StatusAccepted, response.Response{
		Data: response.SubmitDocumentResponse{
			DocumentID: doc.DocumentID,
			State:      string(doc.State),
		},
	})
}

func GetDownloadLink(c *gin.Context) {
	doc := ownedDocument(c)
	if doc == nil {
		return
	}

	url, err := blobClient.PresignGetObject(c.Request.Context(), doc.StorageKey)
	if err != nil {
		slog.Error(ErrGetDownloadLink.Error(), "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, response.Response{
			Msg: ErrGetDownloadLink.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, response.Response{
		Data: response.GetDownloadLinkResponse{
			URL: url,
		},
	})
}

// ownedDocument 查找路径参数指向的文档，归属不符一律按404处理
func ownedDocument(c *gin.Context) *model.Document {
	ownerID := c.GetString("owner_id")
	documentID := c.Param("id")

	doc, err := dao.GetDocumentByID(documentID)
	if err != nil {
		slog.Error(ErrGetDocument.Error(), "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, response.Response{
			Msg: ErrGetDocument.Error(),
		})
		return nil
	}
	if doc == nil || doc.OwnerID != ownerID {
		c.AbortWithStatusJSON(http.StatusNotFound, response.Response{
			Msg: ErrDocumentNotFound.Error(),
		})
		return nil
	}
	return doc
}
