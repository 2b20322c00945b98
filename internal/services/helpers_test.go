package services

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-legal-assistant-backend/internal/llm"
	"github.com/tbourn/go-legal-assistant-backend/internal/repo"
)

var svcDBSeq int

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	svcDBSeq++
	dsn := fmt.Sprintf("file:svcdb%d?mode=memory&cache=shared", svcDBSeq)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

// fakeGen is a canned Generator. Errors, when set, win over the canned
// outputs.
type fakeGen struct {
	reply    string
	title    string
	genErr   error
	titleErr error

	genCalls   atomic.Int64
	titleCalls atomic.Int64
}

func (f *fakeGen) Generate(_ context.Context, _ []llm.Message) (string, error) {
	f.genCalls.Add(1)
	if f.genErr != nil {
		return "", f.genErr
	}
	return f.reply, nil
}

func (f *fakeGen) GenerateTitle(_ context.Context, _ string) (string, error) {
	f.titleCalls.Add(1)
	if f.titleErr != nil {
		return "", f.titleErr
	}
	return f.title, nil
}
