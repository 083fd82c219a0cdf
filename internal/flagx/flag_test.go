package flagx

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterArgs(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		allowed []string
		want    []string
	}{
		{
			name:    "separate value",
			args:    []string{"-c", "server.json", "-a", ":50051"},
			allowed: []string{"-c"},
			want:    []string{"-c", "server.json"},
		},
		{
			name:    "equals form",
			args:    []string{"-config=server.json", "-a", ":50051"},
			allowed: []string{"-c", "-config"},
			want:    []string{"-config=server.json"},
		},
		{
			name:    "several allowed flags keep order",
			args:    []string{"-a", ":50051", "-env", "production", "-w", ":8080"},
			allowed: []string{"-a", "-w"},
			want:    []string{"-a", ":50051", "-w", ":8080"},
		},
		{
			name:    "unknown flags dropped",
			args:    []string{"-x", "1", "--y=2", "positional"},
			allowed: []string{"-c"},
			want:    []string{},
		},
		{
			name:    "flag at end without value",
			args:    []string{"-c"},
			allowed: []string{"-c"},
			want:    []string{"-c"},
		},
		{
			name:    "dash token is not a value",
			args:    []string{"-c", "-d", "postgres://"},
			allowed: []string{"-c"},
			want:    []string{"-c"},
		},
		{
			name:    "repeated flag kept",
			args:    []string{"-c", "one.json", "-c", "two.json"},
			allowed: []string{"-c"},
			want:    []string{"-c", "one.json", "-c", "two.json"},
		},
		{
			name:    "empty",
			args:    []string{},
			allowed: []string{"-c"},
			want:    []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FilterArgs(tt.args, tt.allowed))
		})
	}
}

func TestJsonConfigFlags(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	os.Args = []string{"server", "-c", "/etc/phr/short.json"}
	assert.Equal(t, "/etc/phr/short.json", JsonConfigFlags())

	os.Args = []string{"server", "-config", "/etc/phr/long.json"}
	assert.Equal(t, "/etc/phr/long.json", JsonConfigFlags())

	os.Args = []string{"server", "-a", ":50051"}
	assert.Empty(t, JsonConfigFlags())

	os.Args = []string{"server", "-c", "/one.json", "-config", "/two.json"}
	assert.Equal(t, "/two.json", JsonConfigFlags())
}
