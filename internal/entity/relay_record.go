package entity

import "time"

const (
	RelayActionMint = "mint"

	RelayStatusSuccess = "success"
	RelayStatusFailed  = "failed"
	RelayStatusSkipped = "skipped"
)

// DbRelayRecord 记录每一次经由后端中继的链上操作，仅作审计用途
type DbRelayRecord struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	Action       string `gorm:"column:action;type:varchar(64);index" json:"action"`
	Wallet       string `gorm:"column:wallet;type:varchar(64);index" json:"wallet"`
	Target       string `gorm:"column:target;type:varchar(255)" json:"target"`
	TxHash       string `gorm:"column:tx_hash;type:varchar(66)" json:"tx_hash"`
	TokenID      string `gorm:"column:token_id;type:varchar(80)" json:"token_id"`
	Status       string `gorm:"column:status;type:varchar(16);index" json:"status"`
	ErrorMessage string `gorm:"column:error_message;type:text" json:"error_message"`
	MetadataURL  string `gorm:"column:metadata_url;type:varchar(255)" json:"metadata_url"`
}

// TableName 指定表名
func (DbRelayRecord) TableName() string {
	return "relay_records"
}

// RelayRecordQuery 审计日志查询参数
type RelayRecordQuery struct {
	BaseParams
	Action string `json:"action" form:"action"`
	Wallet string `json:"wallet" form:"wallet"`
	Status string `json:"status" form:"status"`
}
