package mount

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGvfsName(t *testing.T) {
	cases := []struct {
		uri  string
		want string
	}{
		{"smb://server/share", "smb-share:server=server,share=share"},
		{"smb://Server/Share/deep/path", "smb-share:server=server,share=share"},
		{"sftp://host/home", "sftp:host=host"},
		{"sftp://bob@host:2222/home", "sftp:host=host,port=2222,user=bob"},
		{"sftp://host:22/", "sftp:host=host"},
		{"ftp://ftp.example.org/pub", "ftp:host=ftp.example.org"},
		{"ftp://anon@ftp.example.org", "ftp:host=ftp.example.org,user=anon"},
		{"davs://cloud.example.org/dav", "dav:host=cloud.example.org"},
		{"nfs://nas/export", "nfs:host=nas"},
		{"afp://mac-mini/Media", "afp:host=mac-mini"},
	}
	for _, tc := range cases {
		got, ok := gvfsName(tc.uri)
		require.True(t, ok, "uri %s", tc.uri)
		assert.Equal(t, tc.want, got, "uri %s", tc.uri)
	}
}

func TestGvfsNameRejectsUnusable(t *testing.T) {
	for _, uri := range []string{"smb://server", "smb://server/", "not a uri", "smb://"} {
		_, ok := gvfsName(uri)
		assert.False(t, ok, "uri %q", uri)
	}
}

func TestKernelDevice(t *testing.T) {
	dev, ok := kernelDevice("smb://server/share/sub")
	require.True(t, ok)
	assert.Equal(t, "//server/share", dev)

	dev, ok = kernelDevice("nfs://nas/export/media")
	require.True(t, ok)
	assert.Equal(t, "nas:/export/media", dev)

	_, ok = kernelDevice("sftp://host/home")
	assert.False(t, ok)

	_, ok = kernelDevice("nfs://nas")
	assert.False(t, ok)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "unmounted", Unmounted.String())
	assert.Equal(t, "mounting", Mounting.String())
	assert.Equal(t, "mounted", Mounted.String())
	assert.Equal(t, "unmounting", Unmounting.String())
	assert.Equal(t, "failed", Failed.String())
	assert.Equal(t, "unknown", State(99).String())
}
