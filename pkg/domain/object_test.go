package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObject_Getters(t *testing.T) {
	var obj Object
	require.NoError(t, json.Unmarshal([]byte(`{
		"name": "stack-a",
		"replicas": "3",
		"ratio": 0.5,
		"enabled": "true",
		"timeout": "5s",
		"tags": ["a", "b"],
		"stack": {"region": "eu-west-1", "size": {"disk": 20}}
	}`), &obj))

	assert.Equal(t, "stack-a", obj.GetString("name"))
	assert.Equal(t, 3, obj.GetInt("replicas"))
	assert.Equal(t, int64(3), obj.GetInt64("replicas"))
	assert.Equal(t, 0.5, obj.GetFloat64("ratio"))
	assert.True(t, obj.GetBool("enabled"))
	assert.Equal(t, 5*time.Second, obj.GetDuration("timeout"))
	assert.Equal(t, []string{"a", "b"}, obj.GetStringSlice("tags"))
	assert.Len(t, obj.GetSlice("tags"), 2)

	t.Run("Nested Keys", func(t *testing.T) {
		assert.Equal(t, "eu-west-1", obj.GetString("stack.region"))
		assert.Equal(t, 20, obj.GetInt("stack.size.disk"))
		assert.Equal(t, "eu-west-1", obj.GetObject("stack").GetString("region"))
	})

	t.Run("Missing Keys", func(t *testing.T) {
		assert.Equal(t, "", obj.GetString("nope"))
		assert.Equal(t, 0, obj.GetInt("stack.size.ram"))
		assert.False(t, obj.Has("stack.region.deeper"))
		assert.Nil(t, obj.GetObject("name"))
	})

	t.Run("Nil Object", func(t *testing.T) {
		var empty Object
		assert.Equal(t, "", empty.GetString("x"))
		assert.Nil(t, empty.GetObject("x"))
		assert.Nil(t, empty.Clone())
	})
}

func TestObject_NestedObjectValue(t *testing.T) {
	obj := Object{"metadata": Object{"activityID": "act-1"}}
	assert.Equal(t, "act-1", obj.GetString("metadata.activityID"))
}

func TestObject_Decode(t *testing.T) {
	type stackSpec struct {
		Name     string        `json:"name"`
		Replicas int           `json:"replicas"`
		Timeout  time.Duration `json:"timeout"`
	}

	obj := Object{"name": "stack-a", "replicas": "4", "timeout": "2m"}
	var out stackSpec
	require.NoError(t, obj.Decode(&out))
	assert.Equal(t, stackSpec{Name: "stack-a", Replicas: 4, Timeout: 2 * time.Minute}, out)
}

func TestRequest_Envelope(t *testing.T) {
	body := Object{"counter": 1, KeyPrevious: map[string]any{"counter": 2}}
	ic := InvocationContext{ActivityID: "act-1", EnvironmentName: "prod", WorkflowToken: "secret"}

	req := NewRequest(body, ic)

	assert.Equal(t, "act-1", req.ActivityID())
	assert.Equal(t, "prod", req.Metadata().GetString(MetaEnvironmentName))
	assert.False(t, req.Metadata().Has("workflowToken"), "tokens must not leak into metadata")
	assert.True(t, req.IsContinuation())
	assert.Equal(t, 2, req.Previous().GetInt("counter"))
	assert.NotContains(t, body, KeyMetadata, "caller body must not be mutated")
}
