package pathutils

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	currentDirectoryConstant               = "."
	repositoryDirectoryInvalidTemplate     = "repository directory %q is not accessible: %w"
	repositoryDirectoryNotDirectoryMessage = "not a directory"
)

// ErrNotDirectory indicates the repository path names a file.
var ErrNotDirectory = errors.New(repositoryDirectoryNotDirectoryMessage)

// RepositoryDirectoryResolver turns the --directory flag into an absolute, existing directory.
type RepositoryDirectoryResolver struct {
	homeExpander *HomeExpander
}

// NewRepositoryDirectoryResolver constructs a resolver. A nil expander uses the OS home directory.
func NewRepositoryDirectoryResolver(homeExpander *HomeExpander) *RepositoryDirectoryResolver {
	if homeExpander == nil {
		homeExpander = NewHomeExpander()
	}
	return &RepositoryDirectoryResolver{homeExpander: homeExpander}
}

// Resolve trims, expands ~, and makes the path absolute. An empty path means the working directory.
func (resolver *RepositoryDirectoryResolver) Resolve(candidatePath string) (string, error) {
	trimmedPath := strings.TrimSpace(candidatePath)
	if len(trimmedPath) == 0 {
		trimmedPath = currentDirectoryConstant
	}

	expandedPath := resolver.homeExpander.Expand(trimmedPath)
	absolutePath, absoluteError := filepath.Abs(expandedPath)
	if absoluteError != nil {
		return "", fmt.Errorf(repositoryDirectoryInvalidTemplate, trimmedPath, absoluteError)
	}

	fileInfo, statError := os.Stat(absolutePath)
	if statError != nil {
		return "", fmt.Errorf(repositoryDirectoryInvalidTemplate, trimmedPath, statError)
	}
	if !fileInfo.IsDir() {
		return "", fmt.Errorf(repositoryDirectoryInvalidTemplate, trimmedPath, ErrNotDirectory)
	}

	return filepath.Clean(absolutePath), nil
}
