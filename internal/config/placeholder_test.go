package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandPlaceholders(t *testing.T) {
	tree := map[string]any{
		"elasticsearch": map[string]any{
			"index_new_name": "orders_v2",
			"index_old_name": "orders",
		},
		"snowflake": map[string]any{
			"raw_database": "db_{index_new_name}",
			"raw_table":    "{elasticsearch_index_old_name}_tbl",
			"nested":       "{snowflake_raw_database}.{snowflake_raw_table}",
		},
		"prefixes": []any{"pipeline_{env}", "{unknown}", 3},
	}

	expandPlaceholders(tree, map[string]string{"env": "prod"})

	sf := tree["snowflake"].(map[string]any)
	assert.Equal(t, "db_orders_v2", sf["raw_database"])
	assert.Equal(t, "orders_tbl", sf["raw_table"])
	assert.Equal(t, "db_orders_v2.orders_tbl", sf["nested"])
	assert.Equal(t, []any{"pipeline_prod", "{unknown}", 3}, tree["prefixes"])
}

func TestExpandPlaceholders_StopsOnCycle(t *testing.T) {
	tree := map[string]any{"a": "x{a}"}
	passes := expandPlaceholders(tree, nil)
	assert.Equal(t, maxPlaceholderPasses, passes)
}

func TestExpandPlaceholders_StopsWhenStable(t *testing.T) {
	tree := map[string]any{"a": "plain", "b": "{a}"}
	passes := expandPlaceholders(tree, nil)
	assert.Equal(t, 2, passes)
	assert.Equal(t, "plain", tree["b"])
}

func TestExpandEnv(t *testing.T) {
	tree := map[string]any{
		"dsn":  "${HOST}:${PORT}/db",
		"list": []any{"${HOST}"},
		"n":    5,
	}
	lookup := func(name string) (string, bool) {
		v, ok := map[string]string{"HOST": "localhost", "PORT": "5432"}[name]
		return v, ok
	}

	require.NoError(t, expandEnv(tree, lookup))
	assert.Equal(t, "localhost:5432/db", tree["dsn"])
	assert.Equal(t, []any{"localhost"}, tree["list"])

	err := expandEnv(map[string]any{"x": "${NOPE}"}, lookup)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NOPE")
}

func TestFlatten(t *testing.T) {
	got := flatten(map[string]any{
		"a": map[string]any{"b": map[string]any{"c": 1}},
		"d": true,
		"e": []any{"ignored"},
	})
	assert.Equal(t, map[string]string{"a_b_c": "1", "d": "true"}, got)
}
