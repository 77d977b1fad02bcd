package rejectedtx

import (
	"fmt"
	"os"
)

func ensureDir(dir string) error {
	return os.MkdirAll(dir, 0o755)
}

func readFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

func removeFile(path string) error {
	return os.Remove(path)
}

func errDirLocked(dir string) error {
	return fmt.Errorf("rejectedtx: directory %s is already owned by another reporter process", dir)
}
