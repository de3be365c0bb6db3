package docker

import (
	"testing"

	"github.com/docker/go-connections/nat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eightyone/botdock/internal/core/domain"
)

func TestLaunchEnvInjectsPort(t *testing.T) {
	env := launchEnv(domain.LaunchSpec{Port: 10000})
	assert.Equal(t, []string{"PORT=10000"}, env)
}

func TestLaunchEnvSortedAndPortWins(t *testing.T) {
	env := launchEnv(domain.LaunchSpec{
		Port: 9000,
		Env: map[string]string{
			"ZED":  "1",
			"ABC":  "2",
			"PORT": "7777", // caller-supplied PORT must not shadow LaunchSpec.Port
		},
	})
	assert.Equal(t, []string{"PORT=9000", "ABC=2", "ZED=1"}, env)
}

func TestPublishPortBindsAllInterfaces(t *testing.T) {
	set, bindings, err := publishPort(10000, 18000)
	require.NoError(t, err)

	p := nat.Port("10000/tcp")
	_, ok := set[p]
	assert.True(t, ok)

	require.Len(t, bindings[p], 1)
	assert.Equal(t, "0.0.0.0", bindings[p][0].HostIP)
	assert.Equal(t, "18000", bindings[p][0].HostPort)
}
