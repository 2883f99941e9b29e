package database

import (
	"lingua-stream/internal/domain"
	"lingua-stream/internal/ports/output"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var _ output.DownloadRepository = (*DownloadRepository)(nil)

const defaultPageSize = 50

// DownloadRepository struct - Secondary/Driven adapter for the download ledger
// on any gorm dialect (sqlite on device, PostgreSQL on a server)
type DownloadRepository struct {
	dbGorm *gorm.DB
}

// NewDownloadRepository func - Migrates the ledger table and creates the repository
func NewDownloadRepository(dbGorm *gorm.DB) (*DownloadRepository, error) {
	logrus.Info("Migrate database ...")
	if err := domain.MigrateDatabase(dbGorm); err != nil {
		logrus.Errorln(err)
		return nil, err
	}
	return &DownloadRepository{
		dbGorm: dbGorm,
	}, nil
}

// CreateDownload func - Inserts one ledger record
func (p *DownloadRepository) CreateDownload(record *domain.DownloadRecord) error {
	tx := p.dbGorm.Begin()
	defer func() {
		tx.Rollback()
	}()
	if err := tx.Create(record).Error; err != nil {
		logrus.Errorln(err)
		return err
	}
	if err := tx.Commit().Error; err != nil {
		logrus.Errorln(err)
		return err
	}
	return nil
}

func (p *DownloadRepository) condition(query domain.DownloadQuery) map[string]interface{} {
	expression := make(map[string]interface{})
	if query.ModelID != nil {
		expression["model_id"] = *query.ModelID
	}
	if query.Status != nil {
		expression["status"] = *query.Status
	}
	return expression
}

// ListDownloads func - Retrieves ledger records with filtering and pagination, newest first
func (p *DownloadRepository) ListDownloads(query domain.DownloadQuery) (*domain.DownloadList, error) {
	var (
		record  domain.DownloadRecord
		records []domain.DownloadRecord
	)
	cond := p.condition(query)

	var totalItem int64
	if err := p.dbGorm.Model(&record).Where(cond).Count(&totalItem).Error; err != nil {
		logrus.Errorln(err)
		return nil, err
	}

	limit := query.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}
	tx := p.dbGorm.Where(cond).
		Order("started_at DESC").
		Limit(limit).
		Offset(query.Offset).
		Find(&records)
	if tx.Error != nil {
		logrus.Errorln(tx.Error)
		return nil, tx.Error
	}

	result := domain.DownloadList{
		Records:   []domain.DownloadRecord{},
		TotalItem: totalItem,
	}
	result.Records = append(result.Records, records...)
	return &result, nil
}
