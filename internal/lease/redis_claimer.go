// Package lease provides a Redis-backed claim on enrollments, for
// deployments that keep claim traffic off the primary database.
package lease

import (
	"context"
	"errors"
	"fmt"
	"time"

	"inboxpilot/internal/models"
	"inboxpilot/internal/repository"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only while it still holds our token
var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// EnrollmentReader loads the current state of an enrollment
type EnrollmentReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.SequenceEnrollment, error)
}

// RedisClaimer claims enrollments with SET NX PX. The key expires with the
// lease, so a crashed worker's claim frees itself.
type RedisClaimer struct {
	client *redis.Client
	reader EnrollmentReader
	prefix string
}

// NewRedisClaimer creates a claimer. prefix namespaces the lease keys.
func NewRedisClaimer(client *redis.Client, reader EnrollmentReader, prefix string) *RedisClaimer {
	return &RedisClaimer{client: client, reader: reader, prefix: prefix}
}

func (c *RedisClaimer) key(id uuid.UUID) string {
	return c.prefix + "enrollment:" + id.String()
}

// Claim takes the lease, then re-reads the enrollment so a row that was
// advanced or stopped since the due query is not processed again
func (c *RedisClaimer) Claim(ctx context.Context, id uuid.UUID, now time.Time, lease time.Duration) (*models.SequenceEnrollment, string, error) {
	token := uuid.NewString()

	ok, err := c.client.SetNX(ctx, c.key(id), token, lease).Result()
	if err != nil {
		return nil, "", fmt.Errorf("failed to acquire enrollment lease: %w", err)
	}
	if !ok {
		return nil, "", repository.ErrAlreadyClaimed
	}

	enrollment, err := c.reader.GetByID(ctx, id)
	if err == nil && enrollment.IsDue(now) {
		return enrollment, token, nil
	}

	releaseErr := c.Release(context.WithoutCancel(ctx), id, token)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, "", errors.Join(fmt.Errorf("failed to load claimed enrollment: %w", err), releaseErr)
	}
	if releaseErr != nil {
		return nil, "", releaseErr
	}
	return nil, "", repository.ErrAlreadyClaimed
}

// Release drops the lease if token still owns it
func (c *RedisClaimer) Release(ctx context.Context, id uuid.UUID, token string) error {
	if err := releaseScript.Run(ctx, c.client, []string{c.key(id)}, token).Err(); err != nil {
		return fmt.Errorf("failed to release enrollment lease: %w", err)
	}
	return nil
}
