package media

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Store persists media objects and returns their public URL.
type Store interface {
	Put(ctx context.Context, key string, contentType string, body []byte) (string, error)
}

// Upload is a file received from a client.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

type Kind string

const (
	KindAvatar     Kind = "avatars"
	KindCoverImage Kind = "covers"
)

// ObjectKey builds a collision-free key, grouped by kind and owner. Uploads
// made before an owner exists get a fresh uuid segment.
func ObjectKey(kind Kind, ownerID string, ext string) string {
	owner := strings.TrimSpace(ownerID)
	if owner == "" {
		owner = uuid.NewString()
	}
	return fmt.Sprintf("%s/%s/%s%s", kind, owner, uuid.NewString(), ext)
}

func joinURL(base string, key string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(key, "/")
}
