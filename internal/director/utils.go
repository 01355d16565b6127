package director

import (
	"fmt"
	"path/filepath"
	"time"
)

// GeneratePlanPath creates a timestamped plan filename in dir. ext includes the dot.
func GeneratePlanPath(dir, ext string) string {
	if ext == "" {
		ext = ".yaml"
	}
	timestamp := time.Now().Format("2006-01-02_15-04-05")
	return filepath.Join(dir, fmt.Sprintf("plan_%s%s", timestamp, ext))
}
