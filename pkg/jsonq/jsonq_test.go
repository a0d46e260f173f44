package jsonq

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluateStringLiteral(t *testing.T) {
	inputs := []interface{}{
		nil,
		map[string]interface{}{"name": "svc-demo"},
		[]interface{}{1.0, 2.0},
		"plain string",
	}

	for _, input := range inputs {
		v, err := Evaluate(`"service"`, input)
		require.NoError(t, err)
		assert.Equal(t, "service", v)
	}
}

func TestEvaluateFieldAccess(t *testing.T) {
	input := map[string]interface{}{
		"user": map[string]interface{}{"login": "octocat"},
	}

	v, err := Evaluate(".user.login", input)
	require.NoError(t, err)
	assert.Equal(t, "octocat", v)
}

func TestEvaluateMissingFieldIsNull(t *testing.T) {
	input := map[string]interface{}{"name": "svc-demo"}

	v, err := Evaluate(".user.login", input)
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestEvaluateOptionalDefault(t *testing.T) {
	input := map[string]interface{}{"name": "svc-demo"}

	v, err := Evaluate("(.assignees // [])", input)
	require.NoError(t, err)
	assert.Equal(t, []interface{}{}, v)
}

func TestEvaluateConcatenation(t *testing.T) {
	input := map[string]interface{}{
		"id": 42.0,
		"head": map[string]interface{}{
			"repo": map[string]interface{}{"name": "svc-demo"},
		},
	}

	v, err := Evaluate(`.head.repo.name + "-" + (.id|tostring)`, input)
	require.NoError(t, err)
	assert.Equal(t, "svc-demo-42", v)
}

func TestEvaluateArrayProjection(t *testing.T) {
	input := map[string]interface{}{
		"requested_reviewers": []interface{}{
			map[string]interface{}{"login": "alice"},
			map[string]interface{}{"login": "bob"},
		},
	}

	v, err := Evaluate("[ (.requested_reviewers // [])[].login ]", input)
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"alice", "bob"}, v)
}

func TestEvaluateArrayProjectionMissingSource(t *testing.T) {
	v, err := Evaluate(
		"[ (.requested_reviewers // [])[].login ]",
		map[string]interface{}{},
	)
	require.NoError(t, err)
	assert.Equal(t, []interface{}{}, v)
}

func TestEvaluateBareTrue(t *testing.T) {
	v, err := Evaluate("true", map[string]interface{}{"anything": 1.0})
	require.NoError(t, err)
	assert.Equal(t, true, v)
}

func TestEvaluateSyntaxError(t *testing.T) {
	_, err := Evaluate(".[unbalanced", nil)
	require.Error(t, err)

	var exprErr *ExpressionError
	require.ErrorAs(t, err, &exprErr)
	assert.Equal(t, ".[unbalanced", exprErr.Expr)
}

func TestEvaluateRuntimeError(t *testing.T) {
	_, err := Evaluate(".name.nested", map[string]interface{}{"name": "x"})
	require.Error(t, err)

	var exprErr *ExpressionError
	require.ErrorAs(t, err, &exprErr)
}

func TestEvaluateStartswith(t *testing.T) {
	input := map[string]interface{}{
		"repository": map[string]interface{}{"name": "svc-demo"},
	}

	v, err := Evaluate(`.repository.name | startswith("service")`, input)
	require.NoError(t, err)
	assert.Equal(t, false, v)
}

func TestTruthy(t *testing.T) {
	assert.False(t, Truthy(nil))
	assert.False(t, Truthy(false))
	assert.True(t, Truthy(true))
	assert.True(t, Truthy("no"))
	assert.True(t, Truthy(0.0))
	assert.True(t, Truthy([]interface{}{}))
}
