package flagx

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterArgs_SeparateValue(t *testing.T) {
	args := []string{"-a", ":8080", "-x", "nope", "-d", "dsn"}
	got := FilterArgs(args, []string{"-a", "-d"})
	assert.Equal(t, []string{"-a", ":8080", "-d", "dsn"}, got)
}

func TestFilterArgs_EqualsForm(t *testing.T) {
	args := []string{"--config=conf.json", "-a=:9090", "-z=skip"}
	got := FilterArgs(args, []string{"--config", "-a"})
	assert.Equal(t, []string{"--config=conf.json", "-a=:9090"}, got)
}

func TestFilterArgs_BoolFlagWithoutValue(t *testing.T) {
	args := []string{"-v", "-a", ":8080"}
	got := FilterArgs(args, []string{"-v"})
	assert.Equal(t, []string{"-v"}, got)
}

func TestFilterArgs_Empty(t *testing.T) {
	got := FilterArgs(nil, []string{"-a"})
	assert.NotNil(t, got)
	assert.Len(t, got, 0)
}

func TestJsonConfigFlags(t *testing.T) {
	oldArgs := os.Args
	defer func() { os.Args = oldArgs }()

	os.Args = []string{"test", "-c", "conf.json"}
	assert.Equal(t, "conf.json", JsonConfigFlags())

	os.Args = []string{"test", "-config=other.json"}
	assert.Equal(t, "other.json", JsonConfigFlags())

	os.Args = []string{"test", "-a", ":8080"}
	assert.Equal(t, "", JsonConfigFlags())
}
