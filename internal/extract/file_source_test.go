package extract

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/cv-extractor/internal/common"
)

func TestFileSource_Text(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "cv.txt"), []byte("\ufeffJane Doe\nEngineer"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(root, "blob.bin"), []byte{0xff, 0xfe, 0x00}, 0o600))
	require.NoError(t, os.Mkdir(filepath.Join(root, "dir"), 0o700))

	src := NewFileSource(root)
	tests := []struct {
		name    string
		ref     string
		want    string
		wantErr error
	}{
		{name: "plain text with BOM", ref: "cv.txt", want: "Jane Doe\nEngineer"},
		{name: "escape attempt stays in root", ref: "../../cv.txt", want: "Jane Doe\nEngineer"},
		{name: "missing", ref: "nope.txt", wantErr: common.ErrNotFound},
		{name: "binary", ref: "blob.bin", wantErr: common.ErrInvalidInput},
		{name: "directory", ref: "dir", wantErr: common.ErrInvalidInput},
		{name: "empty ref", ref: "  ", wantErr: common.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := src.Text(context.Background(), tt.ref)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
