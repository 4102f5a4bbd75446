package process

import (
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireBinary(t *testing.T, name string) string {
	t.Helper()
	path, err := exec.LookPath(name)
	if err != nil {
		t.Skipf("%s not available: %v", name, err)
	}
	return path
}

func Test_mergeEnv_Cases(t *testing.T) {
	tests := []struct {
		name      string
		base      []string
		overrides map[string]string
		want      []string
	}{
		{
			name: "no overrides keeps base",
			base: []string{"HOME=/root", "LANG=de_DE.UTF-8"},
			want: []string{"HOME=/root", "LANG=de_DE.UTF-8"},
		},
		{
			name:      "existing key replaced in place",
			base:      []string{"HOME=/root", "LC_ALL=de_DE.UTF-8"},
			overrides: map[string]string{"LC_ALL": "C"},
			want:      []string{"HOME=/root", "LC_ALL=C"},
		},
		{
			name:      "new keys appended sorted",
			base:      []string{"HOME=/root"},
			overrides: map[string]string{"PASSWD": "x", "LC_ALL": "C"},
			want:      []string{"HOME=/root", "LC_ALL=C", "PASSWD=x"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, mergeEnv(tc.base, tc.overrides))
		})
	}
}

func Test_ExecSpawner_EmptyName(t *testing.T) {
	_, err := ExecSpawner{}.Spawn(Command{})
	assert.Error(t, err)
}

func Test_ExecSpawner_RunsWithForcedLocale(t *testing.T) {
	sh := requireBinary(t, "sh")

	p := New(ExecSpawner{})
	require.NoError(t, p.Start(Command{
		Name: sh,
		Args: []string{"-c", `echo "$LC_ALL:$SMBSHARE_TEST"; echo oops >&2; exit 3`},
		Env:  map[string]string{"SMBSHARE_TEST": "v", LocaleEnv: "fr_FR"},
	}, nil))

	res := p.Wait()
	require.NoError(t, res.Err)
	assert.Equal(t, 3, res.ExitCode)
	assert.Equal(t, "C:v", strings.TrimSpace(string(res.Stdout)))
	assert.Equal(t, "oops", strings.TrimSpace(string(res.Stderr)))
	assert.False(t, res.Aborted)
}

func Test_ExecSpawner_MissingBinaryCompletesWithError(t *testing.T) {
	p := New(ExecSpawner{})
	require.NoError(t, p.Start(Command{Name: "/nonexistent/smbclient"}, nil))

	res := p.Wait()
	assert.Error(t, res.Err)
	assert.Equal(t, -1, res.ExitCode)
}

func Test_ExecSpawner_AbortTerminatesChild(t *testing.T) {
	sleep := requireBinary(t, "sleep")

	p := New(ExecSpawner{})
	require.NoError(t, p.Start(Command{Name: sleep, Args: []string{"30"}}, nil))

	start := time.Now()
	p.Abort()
	assert.Less(t, time.Since(start), 10*time.Second)

	res := p.Wait()
	assert.True(t, res.Aborted)
	assert.NoError(t, res.Err)
	assert.NotEqual(t, 0, res.ExitCode)
}
