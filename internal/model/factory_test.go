package model

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"originmint/internal/config"
	"originmint/internal/entity"
)

func TestInitRepositoryDisabled(t *testing.T) {
	repo, err := InitRepository(&config.Config{DBType: ""})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo != nil {
		t.Fatal("expected nil repository when DB_TYPE is empty")
	}
}

func TestInitRepositoryUnsupported(t *testing.T) {
	if _, err := InitRepository(&config.Config{DBType: "oracle"}); err == nil {
		t.Fatal("expected error for unsupported db type")
	}
}

func TestSQLiteRelayRecords(t *testing.T) {
	cfg := &config.Config{DBType: "sqlite", DBPath: filepath.Join(t.TempDir(), "nested", "relay.db")}
	repo, err := InitRepository(cfg)
	if err != nil {
		t.Fatalf("init sqlite repository: %v", err)
	}
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	records := []entity.DbRelayRecord{
		{CreatedAt: base, Action: entity.RelayActionMint, Wallet: "0xAbC", Status: entity.RelayStatusSuccess, TokenID: "7"},
		{CreatedAt: base.Add(time.Minute), Action: "linkDiscord", Wallet: "0xabc", Status: entity.RelayStatusFailed, ErrorMessage: "reverted"},
		{CreatedAt: base.Add(2 * time.Minute), Action: "creditRep", Wallet: "0xdef", Status: entity.RelayStatusSuccess},
	}
	for i := range records {
		if err := repo.CreateRelayRecord(ctx, &records[i]); err != nil {
			t.Fatalf("create record %d: %v", i, err)
		}
	}

	tests := []struct {
		name      string
		query     *entity.RelayRecordQuery
		wantTotal int64
		wantFirst string
	}{
		{name: "全部", query: nil, wantTotal: 3, wantFirst: "creditRep"},
		{name: "按钱包忽略大小写", query: &entity.RelayRecordQuery{Wallet: "0xABC"}, wantTotal: 2, wantFirst: "linkDiscord"},
		{name: "按状态", query: &entity.RelayRecordQuery{Status: "failed"}, wantTotal: 1, wantFirst: "linkDiscord"},
		{name: "按动作", query: &entity.RelayRecordQuery{Action: "mint"}, wantTotal: 1, wantFirst: "mint"},
		{name: "分页", query: &entity.RelayRecordQuery{BaseParams: entity.BaseParams{Page: 2, PageSize: 2}}, wantTotal: 3, wantFirst: "mint"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, meta, err := repo.ListRelayRecords(ctx, tt.query)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if meta.Total != tt.wantTotal {
				t.Fatalf("expected total %d, got %d", tt.wantTotal, meta.Total)
			}
			if len(got) == 0 || got[0].Action != tt.wantFirst {
				t.Fatalf("expected first action %s, got %+v", tt.wantFirst, got)
			}
		})
	}

	if err := repo.CreateRelayRecord(ctx, &entity.DbRelayRecord{}); err == nil {
		t.Fatal("expected error for record without action")
	}
}
