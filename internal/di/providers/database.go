package providers

import (
	"path/filepath"

	"github.com/samber/do/v2"

	"github.com/inkwellapp/inkwell-server/internal/audit"
	"github.com/inkwellapp/inkwell-server/internal/config"
	"github.com/inkwellapp/inkwell-server/internal/logger"
	"github.com/inkwellapp/inkwell-server/internal/store"
)

// StoreHandle wraps the store with shutdown capability.
type StoreHandle struct {
	*store.Store
}

// Shutdown implements do.Shutdownable.
func (h *StoreHandle) Shutdown() error {
	return h.Close()
}

// ProvideStore provides the database store.
func ProvideStore(i do.Injector) (*StoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	dbPath := filepath.Join(cfg.Data.BasePath, "db")
	db, err := store.New(dbPath, log.Logger)
	if err != nil {
		return nil, err
	}

	log.Info("Database initialized", "path", dbPath)

	return &StoreHandle{Store: db}, nil
}

// AuditTrailHandle wraps the audit trail with shutdown capability. The
// trail is nil when auditing is disabled.
type AuditTrailHandle struct {
	*audit.Trail
}

// Shutdown implements do.Shutdownable.
func (h *AuditTrailHandle) Shutdown() error {
	if h.Trail == nil {
		return nil
	}
	return h.Close()
}

// ProvideAuditTrail provides the audit trail database.
func ProvideAuditTrail(i do.Injector) (*AuditTrailHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	if !cfg.Audit.Enabled {
		log.Info("Audit trail disabled by configuration")
		return &AuditTrailHandle{Trail: nil}, nil
	}

	path := cfg.Audit.Path
	if path == "" {
		path = filepath.Join(cfg.Data.BasePath, "audit.db")
	}

	trail, err := audit.Open(path, log.Logger)
	if err != nil {
		return nil, err
	}

	log.Info("Audit trail opened", "path", path)

	return &AuditTrailHandle{Trail: trail}, nil
}
