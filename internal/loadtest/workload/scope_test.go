package workload

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wesleyorama2/surge/internal/loadtest"
	"github.com/wesleyorama2/surge/internal/loadtest/config"
)

func TestScope_Builtins(t *testing.T) {
	data, err := loadtest.NewSetupData(map[string]interface{}{"token": "tok-1", "userId": 42})
	require.NoError(t, err)

	s := newScope(map[string]string{"baseUrl": "http://api"}, testVU(t, 3), data)
	assert.Equal(t, "3", s.vars["vu"])
	assert.Equal(t, "tok-1", s.vars["token"])
	assert.Equal(t, "42", s.vars["userId"])
	_, hasIter := s.vars["iter"]
	assert.False(t, hasIter, "no iteration started yet")

	assert.Equal(t, "http://api/users/42?vu=3", s.resolve("{{baseUrl}}/users/{{userId}}?vu={{vu}}"))
}

func TestScope_FreshUUID(t *testing.T) {
	s := testScope(nil)
	a := s.resolve("{{uuid}}")
	b := s.resolve("{{uuid}}")
	_, err := uuid.Parse(a)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestScope_ResolveValue(t *testing.T) {
	s := testScope(map[string]string{"name": "Bert"})
	in := map[string]interface{}{
		"name":  "{{name}}",
		"age":   12,
		"tags":  []interface{}{"{{name}}", 1},
		"owner": map[interface{}]interface{}{"first": "{{name}}"},
	}
	out := s.resolveValue(in).(map[string]interface{})
	assert.Equal(t, "Bert", out["name"])
	assert.Equal(t, 12, out["age"])
	assert.Equal(t, []interface{}{"Bert", 1}, out["tags"])
	assert.Equal(t, map[string]interface{}{"first": "Bert"}, out["owner"])
	assert.Equal(t, "{{name}}", in["name"], "input is not modified")
}

func TestSetupVars(t *testing.T) {
	assert.Nil(t, setupVars(loadtest.SetupData{}))

	data, err := loadtest.NewSetupData("just-a-token")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"data": "just-a-token"}, setupVars(data))
}

func TestResolveFileVariables(t *testing.T) {
	cfg := &config.TestConfig{
		Settings: config.Settings{BaseURL: "http://api"},
		Variables: map[string]string{
			"email":    "{{uuid}}@example.com",
			"loginUrl": "{{baseUrl}}/auth/",
		},
	}
	vars := resolveFileVariables(cfg)
	assert.Equal(t, "http://api/auth/", vars["loginUrl"])
	assert.Regexp(t, `^[0-9a-f-]{36}@example\.com$`, vars["email"])
	assert.NotContains(t, vars, "uuid")

	again := resolveFileVariables(cfg)
	assert.NotEqual(t, vars["email"], again["email"])
}
