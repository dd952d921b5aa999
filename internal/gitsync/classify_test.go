package gitsync

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		output string
		want   ErrorKind
	}{
		{
			name:   "dns resolution failure",
			output: "fatal: unable to access 'https://github.com/a/b.git/': Could not resolve host: github.com",
			want:   KindNetwork,
		},
		{
			name:   "connection refused",
			output: "ssh: connect to host github.com port 22: Connection refused",
			want:   KindNetwork,
		},
		{
			name:   "connection timed out",
			output: "fatal: unable to access 'https://github.com/a/b.git/': Connection timed out",
			want:   KindNetwork,
		},
		{
			name:   "unreachable network",
			output: "fatal: unable to access remote: Network is unreachable",
			want:   KindNetwork,
		},
		{
			name:   "name resolution",
			output: "Temporary failure in name resolution",
			want:   KindNetwork,
		},
		{
			name:   "authentication failure",
			output: "remote: Invalid username or password.\nfatal: Authentication failed for 'https://github.com/a/b.git/'",
			want:   KindFatal,
		},
		{
			name:   "non fast-forward rejection",
			output: "! [rejected] main -> main (non-fast-forward)",
			want:   KindFatal,
		},
		{
			name:   "merge conflict",
			output: "CONFLICT (content): Merge conflict in registry.json",
			want:   KindFatal,
		},
		{
			name:   "empty output",
			output: "",
			want:   KindFatal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classify(tt.output))
		})
	}
}

func TestErrorKindString(t *testing.T) {
	assert.Equal(t, "none", KindNone.String())
	assert.Equal(t, "network", KindNetwork.String())
	assert.Equal(t, "fatal", KindFatal.String())
}
