package auth

import (
	"aip-platform/deal-portal-backend/internal/apperr"
)

// Operation names every role-gated action in the platform. The engines
// consult the policy themselves instead of trusting per-route role lists.
type Operation string

const (
	OpVerificationOpen   Operation = "verification.open"
	OpVerificationAssign Operation = "verification.assign"
	OpVerificationAttach Operation = "verification.attach_document"
	OpVerificationRead   Operation = "verification.read"

	OpDataRoomCreate Operation = "dataroom.create"
	OpDataRoomManage Operation = "dataroom.manage"
	OpDataRoomRead   Operation = "dataroom.read"

	OpProjectWrite Operation = "project.write"
	OpProjectRead  Operation = "project.read"

	OpInvestorWrite Operation = "investor.write"
	OpInvestorRead  Operation = "investor.read"

	OpMovementWrite  Operation = "movement.write"
	OpMovementRead   Operation = "movement.read"
	OpAlertCreate    Operation = "alert.create"
	OpAlertUpdate    Operation = "alert.update"
	OpAlertRead      Operation = "alert.read"
	OpCaseCreate     Operation = "case.create"
	OpCaseUpdate     Operation = "case.update"
	OpCaseClose      Operation = "case.close"
	OpCaseRead       Operation = "case.read"
	OpEvidenceCreate Operation = "evidence.create"
	OpEvidenceVerify Operation = "evidence.verify"
	OpEvidenceRead   Operation = "evidence.read"
	OpPlaybookWrite  Operation = "playbook.write"
	OpPlaybookRead   Operation = "playbook.read"
)

// Policy maps operations to the roles allowed to perform them.
// Admin is always allowed.
type Policy struct {
	allowed map[Operation][]string
}

// DefaultPolicy returns the platform policy table.
func DefaultPolicy() *Policy {
	siraReaders := []string{RoleOperator, RoleSupervisor, RoleSecurityLead, RoleViewer}
	return &Policy{allowed: map[Operation][]string{
		OpVerificationOpen:   {RoleSponsor, RoleAnalyst},
		OpVerificationAssign: {RoleAnalyst},
		OpVerificationAttach: {RoleSponsor, RoleAnalyst, RoleFundPreparer},
		OpVerificationRead:   {RoleSponsor, RoleAnalyst, RoleInvestor, RoleFundPreparer, RoleLeadPartner, RoleViewer},

		OpDataRoomCreate: {RoleSponsor, RoleAnalyst},
		OpDataRoomManage: {RoleSponsor, RoleAnalyst},
		OpDataRoomRead:   {RoleSponsor, RoleAnalyst, RoleInvestor, RoleFundPreparer, RoleLeadPartner, RoleViewer},

		OpProjectWrite: {RoleSponsor, RoleAnalyst},
		OpProjectRead:  {RoleSponsor, RoleAnalyst, RoleInvestor, RoleFundPreparer, RoleLeadPartner, RoleViewer},

		OpInvestorWrite: {RoleAnalyst},
		OpInvestorRead:  {RoleSponsor, RoleAnalyst, RoleInvestor, RoleViewer},

		OpMovementWrite:  {RoleOperator, RoleSupervisor},
		OpMovementRead:   siraReaders,
		OpAlertCreate:    {RoleSecurityLead},
		OpAlertUpdate:    {RoleSecurityLead, RoleOperator},
		OpAlertRead:      siraReaders,
		OpCaseCreate:     {RoleSecurityLead, RoleOperator},
		OpCaseUpdate:     {RoleSecurityLead, RoleOperator},
		OpCaseClose:      {RoleSecurityLead},
		OpCaseRead:       siraReaders,
		OpEvidenceCreate: {RoleOperator, RoleSupervisor, RoleSecurityLead},
		OpEvidenceVerify: {RoleSecurityLead},
		OpEvidenceRead:   siraReaders,
		OpPlaybookWrite:  {RoleSecurityLead, RoleSupervisor},
		OpPlaybookRead:   siraReaders,
	}}
}

// Allow reports whether the role may perform the operation.
func (p *Policy) Allow(op Operation, role string) bool {
	if role == RoleAdmin {
		return true
	}
	for _, r := range p.allowed[op] {
		if r == role {
			return true
		}
	}
	return false
}

// Require returns an authorization error when the actor's role is not
// allowed to perform the operation.
func (p *Policy) Require(op Operation, actor Actor) error {
	if !p.Allow(op, actor.Role) {
		return apperr.Unauthorized("role %q is not permitted to perform %s", actor.Role, op)
	}
	return nil
}
