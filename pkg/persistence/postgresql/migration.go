package postgresql

// migrations returns the ordered schema migrations. The unique index
// on (trigger_id, subject_id, occurrence_id) is what makes run
// creation idempotent under duplicate event deliveries.
func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE IF NOT EXISTS automations (
				id UUID PRIMARY KEY,
				workspace_id VARCHAR(255) NOT NULL,
				name VARCHAR(255) NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				is_active BOOLEAN NOT NULL DEFAULT FALSE,
				published_version INTEGER NOT NULL DEFAULT 0,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				deleted_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX IF NOT EXISTS idx_automations_workspace
				ON automations (workspace_id) WHERE deleted_at IS NULL;
		`,
		2: `
			CREATE TABLE IF NOT EXISTS automation_versions (
				id UUID PRIMARY KEY,
				automation_id UUID NOT NULL,
				version INTEGER NOT NULL,
				definition JSONB NOT NULL,
				created_by VARCHAR(255) NOT NULL DEFAULT '',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				UNIQUE (automation_id, version)
			);
		`,
		3: `
			CREATE TABLE IF NOT EXISTS automation_triggers (
				id UUID PRIMARY KEY,
				automation_id UUID NOT NULL,
				workspace_id VARCHAR(255) NOT NULL,
				event_key VARCHAR(255) NOT NULL,
				workflow_id VARCHAR(255),
				workflow_stage_id VARCHAR(255),
				is_active BOOLEAN NOT NULL DEFAULT FALSE,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE INDEX IF NOT EXISTS idx_triggers_event_key
				ON automation_triggers (workspace_id, event_key);
		`,
		4: `
			CREATE TABLE IF NOT EXISTS automation_runs (
				id UUID PRIMARY KEY,
				automation_id UUID NOT NULL,
				automation_version_id UUID NOT NULL,
				workspace_id VARCHAR(255) NOT NULL,
				trigger_id UUID NOT NULL,
				trigger_event_key VARCHAR(255) NOT NULL,
				occurrence_id VARCHAR(255) NOT NULL,
				subject_type VARCHAR(255) NOT NULL,
				subject_id VARCHAR(255) NOT NULL,
				status VARCHAR(50) NOT NULL,
				pending_nodes JSONB NOT NULL DEFAULT '[]',
				trigger_payload JSONB,
				error TEXT NOT NULL DEFAULT '',
				started_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				finished_at TIMESTAMP WITH TIME ZONE
			);

			CREATE UNIQUE INDEX IF NOT EXISTS idx_runs_occurrence
				ON automation_runs (trigger_id, subject_id, occurrence_id);

			CREATE INDEX IF NOT EXISTS idx_runs_automation
				ON automation_runs (automation_id);
		`,
		5: `
			CREATE TABLE IF NOT EXISTS automation_node_runs (
				id UUID PRIMARY KEY,
				automation_run_id UUID NOT NULL,
				node_id VARCHAR(255) NOT NULL,
				node_type VARCHAR(255) NOT NULL,
				status VARCHAR(50) NOT NULL,
				attempts INTEGER NOT NULL DEFAULT 0,
				input JSONB,
				output JSONB,
				branch VARCHAR(255) NOT NULL DEFAULT '',
				error TEXT NOT NULL DEFAULT '',
				started_at TIMESTAMP WITH TIME ZONE,
				finished_at TIMESTAMP WITH TIME ZONE,
				UNIQUE (automation_run_id, node_id)
			);
		`,
	}
}
