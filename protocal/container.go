package protocal

import (
	"fmt"
	"net/http"
	"time"

	"lingua-stream/configs"
	"lingua-stream/internal/adapters/output/database"
	"lingua-stream/internal/adapters/output/filestore"
	"lingua-stream/internal/adapters/output/llamacpp"
	"lingua-stream/internal/adapters/output/memory"
	"lingua-stream/internal/adapters/output/openaicompat"
	"lingua-stream/internal/application"
	"lingua-stream/internal/ports/output"
	"lingua-stream/pkg/database_driver/gorm"
	"lingua-stream/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// turnMaxDuration bounds how long a conversation turn may stay registered
const turnMaxDuration = 15 * time.Minute

// Container struct - the wired hexagonal layers shared by the server and the CLI
type Container struct {
	DB       *gorm.DB
	Store    *filestore.Store
	Session  *application.LocalInferenceSession
	Registry *application.ModelRegistry
	Library  *application.ModelLibrary
	Metrics  *metrics.Metrics
}

// NewContainer func - Builds every adapter and service from cfg.
// reg may be nil, in which case no metrics are collected.
func NewContainer(cfg *configs.Config, reg prometheus.Registerer) (*Container, error) {
	db, err := gorm.Connect(
		cfg.Database.Driver,
		cfg.Database.SQLitePath,
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.Username,
		cfg.Database.Password,
		cfg.Database.DbName,
		cfg.Database.SSLMode,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open download ledger: %w", err)
	}

	// Output adapters
	var ledger output.DownloadRepository
	if db != nil {
		repo, err := database.NewDownloadRepository(db.Gorm)
		if err != nil {
			gorm.Disconnect(db)
			return nil, err
		}
		ledger = repo
	} else {
		logrus.Info("Download ledger kept in memory")
		ledger = memory.NewDownloadRepository()
	}

	store, err := filestore.NewStore(cfg.Local, &http.Client{})
	if err != nil {
		gorm.Disconnect(db)
		return nil, err
	}
	remote, err := openaicompat.NewClient(cfg.Remote)
	if err != nil {
		gorm.Disconnect(db)
		return nil, err
	}
	engine := llamacpp.NewEngine(cfg.Local)
	turns := memory.NewMemoryTurnStore(turnMaxDuration)

	// Application services
	session := application.NewLocalInferenceSession(store, engine, nil, cfg.Local.MaxTokens)
	store.SetInUseFunc(session.IsLoaded)
	registry := application.NewModelRegistry(remote, store, session, turns, turns.GetMaxDuration())
	library := application.NewModelLibrary(store, session, ledger)

	var m *metrics.Metrics
	if reg != nil {
		m = metrics.New(reg)
		remote.SetMetrics(m)
		session.SetMetrics(m)
		registry.SetMetrics(m)
		library.SetMetrics(m)
	}

	return &Container{
		DB:       db,
		Store:    store,
		Session:  session,
		Registry: registry,
		Library:  library,
		Metrics:  m,
	}, nil
}

// Close func - Releases the loaded model and the ledger connection
func (c *Container) Close() {
	if err := c.Session.Cleanup(); err != nil {
		logrus.Errorf("Failed to release inference session: %v", err)
	}
	gorm.Disconnect(c.DB)
}
