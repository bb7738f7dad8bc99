package tasks

import (
	"github.com/hibiken/asynq"
	"github.com/hugh/agricoop/internal/audit"
	"github.com/hugh/agricoop/internal/dns"
)

// Task type names
const (
	TypeAuditRecord    = audit.TypeRecord
	TypeDNSProvision   = dns.TypeProvision
	TypeDNSDeprovision = dns.TypeDeprovision
	TypeLifecycleSweep = "tenancy:lifecycle_sweep"
)

// NewLifecycleSweepTask is empty - the sweep checks every organization.
func NewLifecycleSweepTask() *asynq.Task {
	return asynq.NewTask(TypeLifecycleSweep, nil, asynq.MaxRetry(1))
}
