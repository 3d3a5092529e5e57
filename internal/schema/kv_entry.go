package schema

import "time"

// KVEntry 键值存储行，奖励档案以 JSON 文本存放于此
// 数据量级：个位数
type KVEntry struct {
	Key       string    `gorm:"primaryKey;size:100"`
	Value     string    `gorm:"type:text"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// TableName 指定表名
func (KVEntry) TableName() string {
	return "kv_store"
}
