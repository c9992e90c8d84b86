package models

// All lists every persistent model in migration order
func All() []any {
	return []any{
		&Organization{},
		&OrganizationMember{},
		&Team{},
		&Player{},
		&Coach{},
		&Communication{},
		&CommunicationDelivery{},
		&AuditLog{},
	}
}
