package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"originmint/internal/entity"
	"originmint/internal/model"
)

const auditWriteTimeout = 5 * time.Second

// RelayAuditor 把链上中继结果写入审计表。repo 为 nil 时不记录。
type RelayAuditor struct {
	repo model.Repository
}

func NewRelayAuditor(repo model.Repository) *RelayAuditor {
	return &RelayAuditor{repo: repo}
}

// Record 写入失败只记录日志，不影响主流程
func (a *RelayAuditor) Record(ctx context.Context, record entity.DbRelayRecord) {
	if a == nil || a.repo == nil {
		return
	}
	// 请求取消后仍然要落审计
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditWriteTimeout)
	defer cancel()

	if err := a.repo.CreateRelayRecord(ctx, &record); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"action":  record.Action,
			"wallet":  record.Wallet,
			"tx_hash": record.TxHash,
		}).Warn("relay_audit_write_failed")
	}
}

// List 分页查询审计记录
func (a *RelayAuditor) List(ctx context.Context, params *entity.RelayRecordQuery) ([]entity.DbRelayRecord, *entity.Meta, error) {
	if a == nil || a.repo == nil {
		return nil, nil, newError(KindConfiguration, "list relay records", "audit log is disabled", nil)
	}
	records, meta, err := a.repo.ListRelayRecords(ctx, params)
	if err != nil {
		return nil, nil, newError(KindInternal, "list relay records", "", err)
	}
	return records, meta, nil
}

// Enabled 表示是否配置了审计数据库
func (a *RelayAuditor) Enabled() bool {
	return a != nil && a.repo != nil
}

func relayStatus(err error) string {
	if err != nil {
		return entity.RelayStatusFailed
	}
	return entity.RelayStatusSuccess
}

func errorMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
