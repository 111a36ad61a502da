// internal/notifications/projection/stub.go
package projection

// Stub returns a context with the same shape as a real one, used to check that message
// templates render before they are saved.
func Stub() map[string]interface{} {
	return map[string]interface{}{
		KeyJob: map[string]interface{}{
			"allow_simultaneous": false,
			"controller_node":    "foo_controller",
			"created":            "2018-11-13T06:04:00Z",
			"custom_virtualenv":  "my_venv",
			"description":        "Sample job description",
			"diff_mode":          false,
			"elapsed":            0.403018,
			"execution_node":     "awx",
			"failed":             false,
			"finished":           false,
			"force_handlers":     false,
			"forks":              0,
			"host_status_counts": map[string]interface{}{
				"skipped": 1, "ok": 5, "changed": 3, "failures": 0, "dark": 0,
			},
			"id":               42,
			"job_explanation":  "Sample job explanation",
			"job_slice_count":  1,
			"job_slice_number": 0,
			"job_tags":         "",
			"job_type":         "run",
			"launch_type":      "workflow",
			"limit":            "bar_limit",
			"modified":         "2018-12-13T06:04:00Z",
			"name":             "Stub JobTemplate",
			"playbook_counts":  map[string]interface{}{"play_count": 5, "task_count": 10},
			"playbook":         "ping.yml",
			"scm_revision":     "",
			"skip_tags":        "",
			"start_at_task":    "",
			"started":          "2019-07-29T17:38:14.137461Z",
			"status":           "running",
			"summary_fields": map[string]interface{}{
				"created_by": map[string]interface{}{
					"first_name": "", "id": 1, "last_name": "", "username": "admin",
				},
				"instance_group": map[string]interface{}{"id": 1, "name": "tower"},
				"inventory": map[string]interface{}{
					"description":                     "Sample inventory description",
					"groups_with_active_failures":     0,
					"has_active_failures":             false,
					"has_inventory_sources":           false,
					"hosts_with_active_failures":      0,
					"id":                              17,
					"inventory_sources_with_failures": 0,
					"kind":                            "",
					"name":                            "Stub Inventory",
					"organization_id":                 121,
					"total_groups":                    0,
					"total_hosts":                     1,
					"total_inventory_sources":         0,
				},
				"job_template": map[string]interface{}{
					"description": "Sample job template description", "id": 39, "name": "Stub JobTemplate",
				},
				"labels": map[string]interface{}{"count": 0, "results": []interface{}{}},
				"project": map[string]interface{}{
					"description": "Sample project description", "id": 38, "name": "Stub project",
					"scm_type": "git", "status": "successful",
				},
				"project_update": map[string]interface{}{
					"id": 5, "name": "Stub Project Update", "description": "Project Update",
					"status": "running", "failed": false,
				},
				"unified_job_template": map[string]interface{}{
					"description": "Sample unified job template description", "id": 39,
					"name": "Stub Job Template", "unified_job_type": "job",
				},
				"source_workflow_job": map[string]interface{}{
					"description": "Sample workflow job description", "elapsed": 0.0, "failed": false,
					"id": 88, "name": "Stub WorkflowJobTemplate", "status": "running",
				},
			},
			"timeout":        0,
			"type":           "job",
			"url":            "/api/v2/jobs/13/",
			"use_fact_cache": false,
			"verbosity":      0,
		},
		KeyFriendlyName: "Job",
		KeyURL:          "https://towerhost/#/jobs/playbook/1010",
		KeyJobSummaryDict: `{
    "created_by": "admin",
    "credential": "Stub credential",
    "finished": false,
    "friendly_name": "Job",
    "hosts": {},
    "id": 42,
    "inventory": "Stub Inventory",
    "limit": "",
    "name": "Stub Job Template",
    "playbook": "ping.yml",
    "project": "Stub project",
    "started": "2019-08-07T21:46:38.362630+00:00",
    "status": "running",
    "traceback": "",
    "url": "https://towerhost/#/jobs/playbook/13"
}`,
	}
}
