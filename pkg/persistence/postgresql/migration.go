package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE workflow_templates (
				id UUID PRIMARY KEY,
				template_group_id UUID NOT NULL,
				name VARCHAR(255) NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				category VARCHAR(100) NOT NULL,
				status VARCHAR(50) NOT NULL,
				sla_hours INT NOT NULL,
				levels JSONB NOT NULL DEFAULT '[]',
				auto_approval JSONB,
				reminder_offset_minutes JSONB,
				escalation_after_minutes INT NOT NULL DEFAULT 0,
				payload_schema JSONB,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				published_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX idx_templates_group ON workflow_templates(template_group_id);
			CREATE INDEX idx_templates_status ON workflow_templates(status);
			CREATE INDEX idx_templates_category ON workflow_templates(category);

			CREATE TABLE workflow_requests (
				id UUID PRIMARY KEY,
				reference_number VARCHAR(50) NOT NULL UNIQUE,
				template_id UUID NOT NULL REFERENCES workflow_templates(id),
				requester VARCHAR(255) NOT NULL,
				title VARCHAR(255) NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				priority VARCHAR(20) NOT NULL DEFAULT 'medium',
				payload JSONB,
				status VARCHAR(50) NOT NULL,
				current_level INT NOT NULL DEFAULT 0,
				submitted_at TIMESTAMP WITH TIME ZONE NOT NULL,
				target_completion_at TIMESTAMP WITH TIME ZONE NOT NULL,
				completed_at TIMESTAMP WITH TIME ZONE,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_requests_status ON workflow_requests(status);
			CREATE INDEX idx_requests_requester ON workflow_requests(requester);
			CREATE INDEX idx_requests_submitted_at ON workflow_requests(submitted_at);

			CREATE TABLE approval_records (
				id UUID PRIMARY KEY,
				request_id UUID NOT NULL REFERENCES workflow_requests(id) ON DELETE CASCADE,
				level INT NOT NULL,
				assigned_approver VARCHAR(255) NOT NULL DEFAULT '',
				required_role VARCHAR(100) NOT NULL,
				decision VARCHAR(50) NOT NULL DEFAULT 'pending',
				comment TEXT NOT NULL DEFAULT '',
				decided_at TIMESTAMP WITH TIME ZONE,
				decided_by VARCHAR(255) NOT NULL DEFAULT '',
				expected_response_at TIMESTAMP WITH TIME ZONE,
				reminder_count INT NOT NULL DEFAULT 0,
				last_reminder_at TIMESTAMP WITH TIME ZONE,
				escalation_triggered BOOLEAN NOT NULL DEFAULT false,
				delegated_to VARCHAR(255) NOT NULL DEFAULT '',
				superseded BOOLEAN NOT NULL DEFAULT false,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_approvals_request ON approval_records(request_id, level);
			CREATE INDEX idx_approvals_pending ON approval_records(decision) WHERE decision = 'pending';

			CREATE TABLE history_events (
				id UUID PRIMARY KEY,
				request_id UUID NOT NULL REFERENCES workflow_requests(id) ON DELETE CASCADE,
				action VARCHAR(100) NOT NULL,
				old_status VARCHAR(50) NOT NULL DEFAULT '',
				new_status VARCHAR(50) NOT NULL DEFAULT '',
				level INT NOT NULL DEFAULT 0,
				actor VARCHAR(255) NOT NULL,
				reason TEXT NOT NULL DEFAULT '',
				timestamp TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_history_request ON history_events(request_id, timestamp);

			CREATE TABLE documents (
				collection VARCHAR(100) NOT NULL,
				id VARCHAR(255) NOT NULL,
				data JSONB NOT NULL DEFAULT '{}',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				PRIMARY KEY (collection, id)
			);
		`,
	}
}
