// Package preflight makes sure the directories a launch writes into exist
// before the process detaches, so that failures are still reported on the
// terminal.
package preflight

import (
	"fmt"
	"os"
	"path/filepath"
)

// FileCheck represents a required file or directory
type FileCheck struct {
	Path      string
	IsDir     bool
	MustExist bool // If true, a missing path is an error instead of being created
	FailFatal bool // If true, a failure is returned from ValidateAndCreate
}

// CheckResult represents the result of a preflight check
type CheckResult struct {
	Path    string
	Exists  bool
	Created bool
	Error   error
}

// ChecksFor returns the checks for an application rooted at root that writes
// the given files. root must already exist; the parent directory of every
// non-empty file is created. Duplicate directories are checked once.
func ChecksFor(root string, files ...string) []FileCheck {
	checks := []FileCheck{{Path: root, IsDir: true, MustExist: true, FailFatal: true}}
	seen := map[string]bool{filepath.Clean(root): true}

	for _, f := range files {
		if f == "" {
			continue
		}
		dir := filepath.Dir(f)
		if seen[dir] {
			continue
		}
		seen[dir] = true
		checks = append(checks, FileCheck{Path: dir, IsDir: true, FailFatal: true})
	}
	return checks
}

// ValidateAndCreate checks if required files and directories exist
// and creates them if they don't. A failed MustExist check stops the run:
// later checks usually live below it and MkdirAll would create it.
func ValidateAndCreate(checks []FileCheck) ([]CheckResult, error) {
	var results []CheckResult
	var fatalErrors []error

	for _, check := range checks {
		result := run(check)
		results = append(results, result)
		if result.Error != nil && check.MustExist {
			return results, result.Error
		}
		if result.Error != nil && check.FailFatal {
			fatalErrors = append(fatalErrors, result.Error)
		}
	}

	// If any fatal errors occurred, return the first one
	if len(fatalErrors) > 0 {
		return results, fatalErrors[0]
	}

	return results, nil
}

func run(check FileCheck) CheckResult {
	result := CheckResult{Path: check.Path}

	info, err := os.Stat(check.Path)
	switch {
	case err == nil:
		result.Exists = true
		if check.IsDir && !info.IsDir() {
			result.Error = fmt.Errorf("path exists but is not a directory: %s", check.Path)
		} else if !check.IsDir && info.IsDir() {
			result.Error = fmt.Errorf("path exists but is a directory: %s", check.Path)
		}

	case os.IsNotExist(err) && check.MustExist:
		result.Error = fmt.Errorf("required path does not exist: %s", check.Path)

	case os.IsNotExist(err) && check.IsDir:
		if err := os.MkdirAll(check.Path, 0755); err != nil {
			result.Error = fmt.Errorf("failed to create directory %s: %w", check.Path, err)
		} else {
			result.Created = true
		}

	case os.IsNotExist(err):
		// For files, create parent directory and touch the file
		if err := os.MkdirAll(filepath.Dir(check.Path), 0755); err != nil {
			result.Error = fmt.Errorf("failed to create parent directory for %s: %w", check.Path, err)
			break
		}
		// O_EXCL ensures we don't overwrite
		f, err := os.OpenFile(check.Path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
		if err != nil {
			result.Error = fmt.Errorf("failed to create file %s: %w", check.Path, err)
			break
		}
		f.Close()
		result.Created = true

	default:
		result.Error = fmt.Errorf("failed to check path %s: %w", check.Path, err)
	}

	return result
}
