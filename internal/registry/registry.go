// Package registry is the authoritative store of organizations and their
// memberships. It owns registration, the lifecycle state machine and the
// subdomain lookups the resolver depends on.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/hugh/agricoop/internal/archive"
	"github.com/hugh/agricoop/internal/audit"
	"github.com/hugh/agricoop/internal/auth"
	"github.com/hugh/agricoop/internal/database"
	"github.com/hugh/agricoop/internal/database/models"
	"github.com/hugh/agricoop/internal/dns"
	"github.com/hugh/agricoop/internal/tenancy"
	"github.com/hugh/agricoop/pkg/crypto"
	"gorm.io/gorm"
)

var (
	ErrInvalidSubdomain  = errors.New("subdomain must be 3-63 lowercase letters, digits or hyphens")
	ErrReservedSubdomain = errors.New("subdomain is reserved")
	ErrSubdomainTaken    = errors.New("subdomain already taken")
	ErrInvalidTransition = errors.New("organization status change not allowed")
	ErrUnknownPlan       = errors.New("unknown plan")
	ErrInvalidLimits     = errors.New("limits must be positive")
	ErrUserLimitReached  = errors.New("organization user limit reached")
	ErrAlreadyMember     = errors.New("user is already a member")
	ErrInvalidRole       = errors.New("invalid role")
	ErrNotCancelled      = errors.New("organization must be cancelled first")
	ErrPasswordRequired  = errors.New("password required for a new account")

	ErrArchiveUnavailable = errors.New("hard delete needs a durable archive")
)

var subdomainRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{1,61}[a-z0-9]$`)

// NormalizeSubdomain lowercases s and checks the DNS label rules.
func NormalizeSubdomain(s string) (string, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if !subdomainRegex.MatchString(s) || strings.Contains(s, "--") {
		return "", ErrInvalidSubdomain
	}
	return s, nil
}

// Enqueuer is satisfied by *asynq.Client.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

type Options struct {
	Cache         Cache
	Events        audit.Publisher
	Jobs          Enqueuer
	Archiver      archive.Archiver
	ArchivePrefix string
	Sealer        *crypto.Sealer
	TrialPeriod   time.Duration
	Reserved      func(string) bool
	Logger        *slog.Logger
	Now           func() time.Time
}

type Service struct {
	db   *gorm.DB
	opts Options
}

func New(db *gorm.DB, opts Options) *Service {
	if opts.Cache == nil {
		opts.Cache = NopCache{}
	}
	if opts.Events == nil {
		opts.Events = audit.Nop{}
	}
	if opts.Archiver == nil {
		opts.Archiver = archive.Discard{}
	}
	if opts.TrialPeriod <= 0 {
		opts.TrialPeriod = 30 * 24 * time.Hour
	}
	if opts.Reserved == nil {
		opts.Reserved = func(string) bool { return false }
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{db: db, opts: opts}
}

func (s *Service) now() time.Time {
	return s.opts.Now().UTC()
}

// LookupSubdomain returns the organization with subdomain, whatever its
// status, or database.ErrNotFound.
func (s *Service) LookupSubdomain(ctx context.Context, subdomain string) (*models.Organization, error) {
	subdomain = strings.ToLower(strings.TrimSpace(subdomain))
	if org, ok := s.opts.Cache.Get(ctx, subdomain); ok {
		return org, nil
	}
	// taken before the read so an invalidation racing it wins
	gen, cacheable := s.opts.Cache.Generation(ctx, subdomain)

	var org models.Organization
	if err := s.db.WithContext(ctx).Where("subdomain = ?", subdomain).First(&org).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, database.ErrNotFound
		}
		return nil, fmt.Errorf("looking up %q: %w", subdomain, err)
	}
	if cacheable {
		s.opts.Cache.Set(ctx, &org, gen)
	}
	return &org, nil
}

// Resolve returns the tenant for subdomain if it may be served.
func (s *Service) Resolve(ctx context.Context, subdomain string) (tenancy.Tenant, error) {
	org, err := s.LookupSubdomain(ctx, subdomain)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return tenancy.Tenant{}, tenancy.ErrUnresolvedTenant
		}
		return tenancy.Tenant{}, err
	}
	if !org.CanServe() {
		return tenancy.Tenant{}, tenancy.ErrInactiveTenant
	}
	return org.Tenant(), nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Organization, error) {
	var org models.Organization
	if err := s.db.WithContext(ctx).Preload("Usage").First(&org, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, database.ErrNotFound
		}
		return nil, err
	}
	return &org, nil
}

type ListFilter struct {
	Status models.OrganizationStatus
	Search string
	Offset int
	Limit  int
}

func (s *Service) List(ctx context.Context, f ListFilter) ([]models.Organization, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Organization{})
	if f.Status != "" {
		query = query.Where("status = ?", f.Status)
	}
	if f.Search != "" {
		like := "%" + strings.ToLower(f.Search) + "%"
		query = query.Where("subdomain LIKE ? OR LOWER(name) LIKE ?", like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var orgs []models.Organization
	if f.Limit > 0 {
		query = query.Offset(f.Offset).Limit(f.Limit)
	}
	if err := query.Order("created_at DESC").Find(&orgs).Error; err != nil {
		return nil, 0, err
	}
	return orgs, total, nil
}

type RegisterInput struct {
	Subdomain    string
	Name         string
	ContactEmail string
	ContactPhone string

	OwnerEmail    string
	OwnerName     string
	OwnerPassword string
}

type Registration struct {
	Organization *models.Organization `json:"organization"`
	Owner        *models.User         `json:"owner,omitempty"`
	Membership   *models.Membership   `json:"membership,omitempty"`
}

// Register is self-service signup. The organization, its owner membership
// and its usage counter are committed together or not at all. An existing
// account may register a new cooperative if its password matches.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*Registration, error) {
	subdomain, err := s.checkSubdomain(in.Subdomain)
	if err != nil {
		return nil, err
	}
	limits, _ := models.LimitsFor(models.PlanTrial)
	trialEnds := s.now().Add(s.opts.TrialPeriod)

	org := &models.Organization{
		Subdomain:    subdomain,
		Name:         strings.TrimSpace(in.Name),
		ContactEmail: in.ContactEmail,
		ContactPhone: in.ContactPhone,
		Plan:         models.PlanTrial,
		Status:       models.StatusTrial,
		Limits:       limits,
		IsActive:     true,
		TrialEndsAt:  &trialEnds,
	}
	owner := newOwner{
		email:         in.OwnerEmail,
		name:          in.OwnerName,
		password:      in.OwnerPassword,
		checkExisting: true,
	}

	reg, err := s.create(ctx, org, &owner)
	if err != nil {
		return nil, err
	}
	s.afterCreate(ctx, org, in.OwnerEmail)
	return reg, nil
}

type newOwner struct {
	email         string
	name          string
	password      string
	checkExisting bool // existing accounts must present their password
}

func (s *Service) create(ctx context.Context, org *models.Organization, owner *newOwner) (*Registration, error) {
	reg := &Registration{Organization: org}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(org).Error; err != nil {
			if database.IsDuplicate(err) {
				return ErrSubdomainTaken
			}
			return fmt.Errorf("creating organization: %w", err)
		}

		usage := &models.UsageCounter{OrganizationID: org.ID}
		if owner != nil {
			user, err := s.findOrCreateUser(tx, owner)
			if err != nil {
				return err
			}
			membership := &models.Membership{
				OrganizationID: org.ID,
				UserID:         user.ID,
				Role:           models.RoleOwner,
				IsActive:       true,
				JoinedAt:       s.now(),
			}
			if err := tx.Create(membership).Error; err != nil {
				return fmt.Errorf("creating owner membership: %w", err)
			}
			reg.Owner = user
			reg.Membership = membership
			usage.Users = 1
		}

		if err := tx.Create(usage).Error; err != nil {
			return fmt.Errorf("creating usage counter: %w", err)
		}
		org.Usage = usage
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reg, nil
}

func (s *Service) findOrCreateUser(tx *gorm.DB, o *newOwner) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(o.email))

	var user models.User
	err := tx.Where("email = ?", email).First(&user).Error
	switch {
	case err == nil:
		if !user.IsActive {
			return nil, auth.ErrInactiveUser
		}
		if o.checkExisting && !auth.CheckPassword(o.password, user.PasswordHash) {
			return nil, auth.ErrInvalidCredentials
		}
		return &user, nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, err
	}

	if o.password == "" {
		return nil, ErrPasswordRequired
	}
	hash, err := auth.HashPassword(o.password)
	if err != nil {
		return nil, err
	}
	user = models.User{
		Email:        email,
		PasswordHash: hash,
		Name:         strings.TrimSpace(o.name),
		IsActive:     true,
	}
	if err := tx.Create(&user).Error; err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}
	return &user, nil
}

func (s *Service) checkSubdomain(raw string) (string, error) {
	subdomain, err := NormalizeSubdomain(raw)
	if err != nil {
		return "", err
	}
	if s.opts.Reserved(subdomain) {
		return "", ErrReservedSubdomain
	}
	return subdomain, nil
}

func (s *Service) afterCreate(ctx context.Context, org *models.Organization, actor string) {
	s.opts.Cache.Invalidate(ctx, org.Subdomain)
	s.publish(ctx, audit.ActionRegistered, org.ID, actor)
	s.enqueue(ctx, org, dns.NewProvisionTask)

	s.opts.Logger.Info("organization created",
		"org_id", org.ID,
		"subdomain", org.Subdomain,
		"plan", org.Plan,
		"status", org.Status,
	)
}

func (s *Service) publish(ctx context.Context, action audit.Action, orgID uuid.UUID, actor string) {
	if actor == "" {
		actor = tenancy.ActorFrom(ctx)
	}
	s.opts.Events.Publish(ctx, audit.Event{
		Action:         action,
		Entity:         "organizations",
		EntityID:       orgID,
		OrganizationID: orgID,
		Actor:          actor,
		OccurredAt:     s.now(),
	})
}

func (s *Service) enqueue(ctx context.Context, org *models.Organization, build func(uuid.UUID, string) (*asynq.Task, error)) {
	if s.opts.Jobs == nil {
		return
	}
	task, err := build(org.ID, org.Subdomain)
	if err != nil {
		s.opts.Logger.Error("building dns task", "error", err, "subdomain", org.Subdomain)
		return
	}
	if _, err := s.opts.Jobs.EnqueueContext(context.WithoutCancel(ctx), task); err != nil {
		s.opts.Logger.Error("enqueueing dns task", "error", err, "subdomain", org.Subdomain)
	}
}
