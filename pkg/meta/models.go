package meta

import (
	"time"

	"gorm.io/datatypes"
)

// FileRecord 是一次 add 在关系型数据库中的投影
// 与索引文件一样是日志：同名文件每次 add 都新增一行，查询时取最新的
type FileRecord struct {
	ID uint `gorm:"primaryKey;autoIncrement"`

	// Root 是文件的 Merkle Root
	Root string `gorm:"index;type:varchar(64);not null"`
	Name string `gorm:"index;type:varchar(1024);not null"`

	Size      int64
	Blocks    int
	BlockSize int
	Hash      string `gorm:"type:varchar(16)"` // 哈希算法
	Codec     string `gorm:"type:varchar(16)"`

	// Attrs 存来源路径、文件权限等非结构化信息
	Attrs datatypes.JSON

	CreatedAt time.Time
}

func (FileRecord) TableName() string {
	return "files"
}
