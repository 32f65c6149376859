package media

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"unicode"

	"go-user-accounts/pkg/apierror"
)

type PathValidator struct {
	rootAbs string
}

func NewPathValidator(root string) (*PathValidator, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("media root cannot be empty")
	}

	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve media root: %w", err)
	}

	return &PathValidator{rootAbs: rootAbs}, nil
}

func (v *PathValidator) RootAbs() string {
	return v.rootAbs
}

// ResolveKey maps an object key to a file below the root.
func (v *PathValidator) ResolveKey(key string) (string, error) {
	normalized := strings.Trim(strings.ReplaceAll(strings.TrimSpace(key), `\`, "/"), "/")
	if normalized == "" {
		return "", apierror.New("INVALID_KEY", "object key cannot be empty", key, http.StatusBadRequest)
	}

	if strings.Contains(normalized, "\x00") || hasControlCharacters(normalized) {
		return "", apierror.New("INVALID_KEY", "object key contains invalid characters", key, http.StatusBadRequest)
	}

	for _, segment := range strings.Split(normalized, "/") {
		if segment == ".." {
			return "", apierror.New("PATH_TRAVERSAL", "path traversal attempt detected", key, http.StatusForbidden)
		}
	}

	resolvedAbs, err := filepath.Abs(filepath.Join(v.rootAbs, filepath.Clean(normalized)))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path: %w", err)
	}

	if resolvedAbs == v.rootAbs || !isWithinRoot(v.rootAbs, resolvedAbs) {
		return "", apierror.New("PATH_TRAVERSAL", "resolved path is outside media root", key, http.StatusForbidden)
	}

	return resolvedAbs, nil
}

func hasControlCharacters(value string) bool {
	for _, char := range value {
		if unicode.IsControl(char) {
			return true
		}
	}

	return false
}

func isWithinRoot(rootAbs string, candidateAbs string) bool {
	rootWithSeparator := rootAbs + string(filepath.Separator)
	return strings.HasPrefix(candidateAbs, rootWithSeparator)
}
