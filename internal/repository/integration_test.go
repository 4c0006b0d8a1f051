//go:build integration

package repository_test

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/MarcoNaik/tectramin-sub001/internal/model"
	"github.com/MarcoNaik/tectramin-sub001/internal/repository"
	"github.com/MarcoNaik/tectramin-sub001/internal/testutil"
)

// ═══════════════════════════════════════════════════════════
// Test Setup
// ═══════════════════════════════════════════════════════════

var pgDB *gorm.DB

func TestMain(m *testing.M) {
	dsn := os.Getenv("TEST_DATABASE_DSN")
	if dsn == "" {
		dsn = "host=localhost port=5433 user=faena password=faena_password dbname=faena_test sslmode=disable TimeZone=America/Santiago"
	}

	var err error
	pgDB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "无法连接测试数据库: %v\n", err)
		os.Exit(1)
	}

	if err := pgDB.AutoMigrate(testutil.AllModels()...); err != nil {
		fmt.Fprintf(os.Stderr, "AutoMigrate 失败: %v\n", err)
		os.Exit(1)
	}

	os.Exit(m.Run())
}

// ═══════════════════════════════════════════════════════════
// Test: 并发插入同一身份键只保留一行
// ═══════════════════════════════════════════════════════════

func TestPostgres_ConcurrentInsertKeepsSingleRow(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewRepository(pgDB)

	suffix := time.Now().UnixNano()
	_, days := testutil.SeedWorkOrder(t, pgDB, fmt.Sprintf("PG-%d", suffix), 1)
	tmpl := testutil.SeedTaskTemplate(t, pgDB, "Inspección")
	sa := testutil.SeedStandaloneAttachment(t, pgDB, days[0].WorkOrderDayID, tmpl.TaskTemplateID)
	xid := fmt.Sprintf("xid-pg-%d", suffix)

	const writers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			inst := &model.TaskInstance{
				WorkOrderDayID: days[0].WorkOrderDayID,
				PersonXID:      xid,
				TaskTemplateID: tmpl.TaskTemplateID,
				Label:          tmpl.Name,
				Status:         model.InstanceStatusDraft,
				State:          model.InstanceStateActive,
				CreatedAt:      1,
				UpdatedAt:      1,
			}
			inst.SetRef(model.StandaloneRef(sa.StandaloneAttachmentID))
			ok, err := repo.TaskInstance.Insert(ctx, inst)
			if err != nil {
				t.Errorf("Insert 失败: %v", err)
				return
			}
			if ok {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if created != 1 {
		t.Errorf("期望恰好 1 个写入者成功，实际 %d", created)
	}
	if n := testutil.CountInstances(t, pgDB, days[0].WorkOrderDayID, xid); n != 1 {
		t.Errorf("期望 1 行，实际 %d", n)
	}
}
