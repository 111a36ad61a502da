// internal/notifications/projection/projection_test.go
package projection

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	data map[string]interface{}
}

func (f fakeSource) FriendlyName() string { return "Job" }

func (f fakeSource) UIURL() string { return "https://awx.example.com/#/jobs/playbook/42" }

func (f fakeSource) NotificationData() map[string]interface{} { return f.data }

func serializedJob() map[string]interface{} {
	return map[string]interface{}{
		"id":         42,
		"name":       "Deploy",
		"status":     "failed",
		"extra_vars": `{"db_password": "hunter2"}`,
		"host_status_counts": map[string]interface{}{
			"ok":       3,
			"failures": 1,
			"secret":   "nope",
		},
		"summary_fields": map[string]interface{}{
			"inventory": map[string]interface{}{"id": 1, "name": "prod", "variables": "token: abc"},
			"credential": map[string]interface{}{
				"id": 9, "name": "vault", "password": "hunter2",
			},
			"labels": map[string]interface{}{"count": 1, "results": []interface{}{map[string]interface{}{"name": "web"}}},
		},
		"playbook_counts": "not-a-map",
	}
}

func TestProject_CopiesWhitelistedFields(t *testing.T) {
	ctx := Project(serializedJob(), JobFieldsWhitelist)

	assert.Equal(t, 42, ctx["id"])
	assert.Equal(t, "Deploy", ctx["name"])
	assert.Equal(t, map[string]interface{}{"ok": 3, "failures": 1}, ctx["host_status_counts"])

	summary := ctx["summary_fields"].(map[string]interface{})
	assert.Equal(t, map[string]interface{}{"id": 1, "name": "prod"}, summary["inventory"])
	assert.Contains(t, summary, "labels")
}

func TestProject_SkipsAbsentFields(t *testing.T) {
	ctx := Project(map[string]interface{}{"id": 1}, JobFieldsWhitelist)

	assert.Equal(t, map[string]interface{}{"id": 1}, ctx)
	assert.NotContains(t, ctx, "summary_fields")
	assert.NotContains(t, ctx, "name")
}

func TestProject_NonMapUnderSubtreeYieldsEmptyNode(t *testing.T) {
	ctx := Project(serializedJob(), JobFieldsWhitelist)
	assert.Equal(t, map[string]interface{}{}, ctx["playbook_counts"])
}

// collectPaths returns every key path in a nested map, stopping at whitelist leaves.
func collectPaths(prefix []string, node map[string]interface{}, wl Whitelist, visit func(path []string)) {
	for key, value := range node {
		path := append(append([]string{}, prefix...), key)
		visit(path)
		var child Whitelist
		for _, f := range wl {
			if f.Name == key {
				child = f.Children
			}
		}
		if nested, ok := value.(map[string]interface{}); ok && child != nil {
			collectPaths(path, nested, child, visit)
		}
	}
}

func TestProject_WhitelistContainment(t *testing.T) {
	ctx := Project(serializedJob(), JobFieldsWhitelist)

	collectPaths(nil, ctx, JobFieldsWhitelist, func(path []string) {
		assert.True(t, JobFieldsWhitelist.Contains(path...), "path %v escaped the whitelist", path)
	})

	raw, err := json.Marshal(ctx)
	require.NoError(t, err)
	for _, leaked := range []string{"hunter2", "extra_vars", "credential", "token: abc", "secret"} {
		assert.NotContains(t, string(raw), leaked)
	}
}

func TestProject_DoesNotAliasNestedMaps(t *testing.T) {
	record := serializedJob()
	ctx := Project(record, JobFieldsWhitelist)

	ctx["host_status_counts"].(map[string]interface{})["ok"] = 99
	assert.Equal(t, 3, record["host_status_counts"].(map[string]interface{})["ok"])
}

func TestBuild(t *testing.T) {
	src := fakeSource{data: map[string]interface{}{"id": 42, "status": "failed"}}

	ctx, err := Build(src, serializedJob())
	require.NoError(t, err)

	assert.Equal(t, "Job", ctx[KeyFriendlyName])
	assert.Equal(t, "https://awx.example.com/#/jobs/playbook/42", ctx[KeyURL])
	assert.Equal(t, "{\n    \"id\": 42,\n    \"status\": \"failed\"\n}", ctx[KeyJobSummaryDict])
	assert.Equal(t, 42, ctx[KeyJob].(map[string]interface{})["id"])
}

func TestBuild_UnmarshalableDataFails(t *testing.T) {
	src := fakeSource{data: map[string]interface{}{"bad": make(chan int)}}
	_, err := Build(src, serializedJob())
	assert.Error(t, err)
}

func TestStub_HasSameShape(t *testing.T) {
	stub := Stub()
	for _, key := range []string{KeyJob, KeyFriendlyName, KeyURL, KeyJobSummaryDict} {
		assert.Contains(t, stub, key)
	}

	job := stub[KeyJob].(map[string]interface{})
	assert.Equal(t, job, Project(job, JobFieldsWhitelist))
}

func TestWhitelist_Contains(t *testing.T) {
	assert.True(t, JobFieldsWhitelist.Contains("summary_fields", "inventory", "name"))
	assert.True(t, JobFieldsWhitelist.Contains("summary_fields"))
	assert.False(t, JobFieldsWhitelist.Contains("summary_fields", "credential"))
	assert.False(t, JobFieldsWhitelist.Contains("extra_vars"))
	assert.False(t, JobFieldsWhitelist.Contains("id", "nested"))
}
