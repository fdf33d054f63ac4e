package templates

// Built-in catalogues for the reference adapters. SQL is written in each
// target store's placeholder dialect: PostgreSQL $N for ticketing, SQLite
// and DuckDB ? for the embedded files.

// TicketingTemplates returns the built-in catalogue for the ticketing
// source.
func TicketingTemplates() []Template {
	return []Template{
		{
			Name:        "team_workload",
			Description: "Open tickets for one team, oldest first",
			Parameters:  []string{"team_name"},
			SQL: `SELECT "TKT-Ticket Number", "TKT-Summary", "TKT-Status", "TKT-Priority", "TKT-Team", "TKT-Assigned To User", "TKT-Organization", "TKT-Created Date", "TKT-Last Updated"
				FROM tickets
				WHERE "TKT-Team" = $1 AND "TKT-Status" NOT IN ('Closed', 'Resolved', 'Cancelled')
				ORDER BY "TKT-Created Date" ASC`,
		},
		{
			Name:        "user_open_tickets",
			Description: "Open tickets assigned to one user",
			Parameters:  []string{"user_name"},
			SQL: `SELECT "TKT-Ticket Number", "TKT-Summary", "TKT-Status", "TKT-Priority", "TKT-Team", "TKT-Assigned To User", "TKT-Organization", "TKT-Created Date", "TKT-Last Updated"
				FROM tickets
				WHERE "TKT-Assigned To User" = $1 AND "TKT-Status" NOT IN ('Closed', 'Resolved', 'Cancelled')
				ORDER BY "TKT-Created Date" ASC`,
		},
		{
			Name:        "organization_recent_tickets",
			Description: "Tickets opened for one organization since a cutoff timestamp",
			Parameters:  []string{"organization", "since"},
			SQL: `SELECT "TKT-Ticket Number", "TKT-Summary", "TKT-Status", "TKT-Priority", "TKT-Team", "TKT-Assigned To User", "TKT-Organization", "TKT-Created Date", "TKT-Last Updated"
				FROM tickets
				WHERE "TKT-Organization" = $1 AND "TKT-Created Date" >= $2
				ORDER BY "TKT-Created Date" DESC`,
		},
	}
}

// PatchTemplates returns the built-in catalogue for the patch management
// source.
func PatchTemplates() []Template {
	return []Template{
		{
			Name:        "organization_systems",
			Description: "Managed systems in one branch office",
			Parameters:  []string{"organization"},
			SQL: `SELECT pmp_resource_id, pmp_resource_name, pmp_os_platform, pmp_branch_office, pmp_agent_status
				FROM systems WHERE pmp_branch_office = ? ORDER BY pmp_resource_name`,
		},
		{
			Name:        "critical_exposure",
			Description: "Systems missing at least one patch of a given severity",
			Parameters:  []string{"severity"},
			SQL: `SELECT DISTINCT s.pmp_resource_id, s.pmp_resource_name, s.pmp_branch_office
				FROM systems s
				JOIN patch_status ps ON ps.pmp_resource_id = s.pmp_resource_id
				JOIN patches p ON p.pmp_patch_id = ps.pmp_patch_id
				WHERE ps.pmp_status = 'Missing' AND p.pmp_severity = ?
				ORDER BY s.pmp_resource_name`,
		},
	}
}

// AssetTemplates returns the built-in catalogue for the asset inventory
// source.
func AssetTemplates() []Template {
	return []Template{
		{
			Name:        "site_assets",
			Description: "Assets registered to one site",
			Parameters:  []string{"site"},
			SQL: `SELECT ast_asset_id, ast_hostname, ast_site, ast_asset_type, ast_agent_version, ast_last_seen
				FROM assets WHERE ast_site = ? ORDER BY ast_hostname`,
		},
	}
}

// RegisterBuiltins loads every built-in catalogue into the registry.
// Built-in templates are maintained alongside the adapters, so a
// registration failure here is a bug, not an environmental condition.
func RegisterBuiltins(r *Registry) error {
	for _, set := range [][]Template{TicketingTemplates(), PatchTemplates(), AssetTemplates()} {
		for _, t := range set {
			if err := r.Register(t); err != nil {
				return err
			}
		}
	}
	return nil
}
