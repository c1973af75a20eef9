package service

import (
	"crypto/sha256"
	"encoding/hex"

	"golang.org/x/sync/singleflight"

	"github.com/YathuPiraba/lead-management-system-sub000/internal/models"
)

// refreshCoalescer collapses concurrent refreshes of the same credential into
// one store round trip; every waiter receives the leader's result. Keys are
// digests so raw tokens never sit in the in-flight map.
type refreshCoalescer struct {
	group singleflight.Group
}

func (c *refreshCoalescer) do(refreshToken string, fn func() (*models.RefreshTokenResponse, error)) (*models.RefreshTokenResponse, bool, error) {
	sum := sha256.Sum256([]byte(refreshToken))
	v, err, shared := c.group.Do(hex.EncodeToString(sum[:]), func() (interface{}, error) {
		return fn()
	})
	if err != nil {
		return nil, shared, err
	}
	return v.(*models.RefreshTokenResponse), shared, nil
}
