// internal/notifications/projection/whitelist.go
package projection

// Field is one whitelist entry. A nil Children marks a leaf copied as-is; a non-nil
// Children descends into the nested mapping of the same name.
type Field struct {
	Name     string
	Children Whitelist
}

// Whitelist is an ordered set of permitted fields.
type Whitelist []Field

// Leaves builds leaf entries.
func Leaves(names ...string) Whitelist {
	wl := make(Whitelist, len(names))
	for i, n := range names {
		wl[i] = Field{Name: n}
	}
	return wl
}

// Node builds a subtree entry.
func Node(name string, children Whitelist) Field {
	if children == nil {
		children = Whitelist{}
	}
	return Field{Name: name, Children: children}
}

// JobFieldsWhitelist is every job field a notification template may reference.
var JobFieldsWhitelist = append(
	Leaves(
		"id", "type", "url", "created", "modified", "name", "description", "job_type", "playbook",
		"forks", "limit", "verbosity", "job_tags", "force_handlers", "skip_tags", "start_at_task",
		"timeout", "use_fact_cache", "launch_type", "status", "failed", "started", "finished",
		"elapsed", "job_explanation", "execution_node", "controller_node", "allow_simultaneous",
		"scm_revision", "diff_mode", "job_slice_number", "job_slice_count", "custom_virtualenv",
	),
	Node("host_status_counts", Leaves("skipped", "ok", "changed", "failures", "dark")),
	Node("playbook_counts", Leaves("play_count", "task_count")),
	Node("summary_fields", Whitelist{
		Node("inventory", Leaves("id", "name", "description", "has_active_failures",
			"total_hosts", "hosts_with_active_failures", "total_groups",
			"groups_with_active_failures", "has_inventory_sources",
			"total_inventory_sources", "inventory_sources_with_failures",
			"organization_id", "kind")),
		Node("project", Leaves("id", "name", "description", "status", "scm_type")),
		Node("project_update", Leaves("id", "name", "description", "status", "failed")),
		Node("job_template", Leaves("id", "name", "description")),
		Node("unified_job_template", Leaves("id", "name", "description", "unified_job_type")),
		Node("instance_group", Leaves("name", "id")),
		Node("created_by", Leaves("id", "username", "first_name", "last_name")),
		Node("labels", Leaves("count", "results")),
		Node("source_workflow_job", Leaves("description", "elapsed", "failed", "id", "name", "status")),
	}),
)

// Contains reports whether the dotted path is reachable through the whitelist.
func (wl Whitelist) Contains(path ...string) bool {
	if len(path) == 0 {
		return true
	}
	for _, f := range wl {
		if f.Name != path[0] {
			continue
		}
		if f.Children == nil {
			return len(path) == 1
		}
		return f.Children.Contains(path[1:]...)
	}
	return false
}
