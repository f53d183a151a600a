package panowalk

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
)

//go:embed assets
var assetsFS embed.FS

// Assets returns the file system panoramas, the footstep icon and the logo are served from.
// With an empty dir the copy compiled into the binary is used; otherwise the directory on disk.
func Assets(dir string) (fs.FS, error) {
	if dir != "" {
		info, err := os.Stat(dir)
		if err != nil {
			return nil, fmt.Errorf("assets dir: %w", err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("assets dir: %s is not a directory", dir)
		}
		return os.DirFS(dir), nil
	}
	return fs.Sub(assetsFS, "assets")
}
