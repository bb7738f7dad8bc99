package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/hugh/agricoop/internal/audit"
	"github.com/hugh/agricoop/internal/dns"
	"github.com/hugh/agricoop/internal/database/models"
	"github.com/hugh/agricoop/pkg/util"
	"gorm.io/gorm"
)

// Sweeper suspends organizations whose trial or subscription has lapsed.
// Satisfied by *registry.Service.
type Sweeper interface {
	ExpireLapsed(ctx context.Context) (int, error)
}

type Handler struct {
	db        *gorm.DB
	logger    *slog.Logger
	recorder  *audit.Recorder
	sweeper   Sweeper
	dns       *dns.Service
	sweepCron string
}

func NewHandler(db *gorm.DB, logger *slog.Logger, sweeper Sweeper, dnsService *dns.Service, sweepCron string) *Handler {
	return &Handler{
		db:        db,
		logger:    logger,
		recorder:  audit.NewRecorder(db),
		sweeper:   sweeper,
		dns:       dnsService,
		sweepCron: sweepCron,
	}
}

func (h *Handler) RegisterHandlers(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeAuditRecord, h.HandleAuditRecord)
	mux.HandleFunc(TypeLifecycleSweep, h.HandleLifecycleSweep)
	mux.HandleFunc(TypeDNSProvision, h.HandleDNSProvision)
	mux.HandleFunc(TypeDNSDeprovision, h.HandleDNSDeprovision)
}

func (h *Handler) HandleAuditRecord(ctx context.Context, t *asynq.Task) error {
	e, err := audit.ParseTask(t)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	if err := h.recorder.Record(ctx, e); err != nil {
		return err
	}

	h.logger.Debug("audit event recorded",
		"org_id", e.OrganizationID,
		"entity", e.Entity,
		"action", e.Action,
	)
	return nil
}

func (h *Handler) HandleLifecycleSweep(ctx context.Context, t *asynq.Task) error {
	start := time.Now()
	suspended, err := h.sweeper.ExpireLapsed(ctx)
	if err != nil {
		return fmt.Errorf("lifecycle sweep: %w", err)
	}

	attrs := []any{"suspended", suspended, "duration", time.Since(start)}
	if h.sweepCron != "" {
		if next, err := util.NextCronTime(h.sweepCron, time.Now()); err == nil {
			attrs = append(attrs, "next_run", next)
		}
	}
	h.logger.Info("lifecycle sweep completed", attrs...)
	return nil
}

func (h *Handler) HandleDNSProvision(ctx context.Context, t *asynq.Task) error {
	p, err := dns.ParsePayload(t)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	// the organization may be gone or cancelled by the time the job runs
	var org models.Organization
	if err := h.db.WithContext(ctx).First(&org, "id = ?", p.OrganizationID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			h.logger.Warn("skipping dns provision for missing organization", "org_id", p.OrganizationID, "subdomain", p.Subdomain)
			return nil
		}
		return err
	}
	if org.Status == models.StatusCancelled || org.Subdomain != p.Subdomain {
		h.logger.Warn("skipping stale dns provision", "org_id", org.ID, "subdomain", p.Subdomain, "status", org.Status)
		return nil
	}

	h.logger.Info("provisioning tenant dns", "org_id", p.OrganizationID, "subdomain", p.Subdomain)
	return h.dns.Provision(ctx, p.Subdomain)
}

func (h *Handler) HandleDNSDeprovision(ctx context.Context, t *asynq.Task) error {
	p, err := dns.ParsePayload(t)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	// a subdomain registered again since the delete keeps its record
	var n int64
	if err := h.db.WithContext(ctx).Model(&models.Organization{}).Where("subdomain = ?", p.Subdomain).Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		h.logger.Warn("subdomain re-registered, keeping dns record", "subdomain", p.Subdomain)
		return nil
	}

	h.logger.Info("removing tenant dns", "org_id", p.OrganizationID, "subdomain", p.Subdomain)
	return h.dns.Deprovision(ctx, p.Subdomain)
}
