package directory

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/mr1hm/go-emergency-dispatch/internal/models"
)

// Redis reads institutions stored as hashes under "<prefix>:<id>" with the
// fields name, district, state, students, parents, staff and emergency.
type Redis struct {
	client *redis.Client
	prefix string
}

func NewRedis(client *redis.Client, prefix string) *Redis {
	return &Redis{client: client, prefix: prefix}
}

func (r *Redis) key(institutionID string) string {
	return fmt.Sprintf("%s:%s", r.prefix, institutionID)
}

func (r *Redis) Resolve(ctx context.Context, institutionID string) (*Entry, error) {
	fields, err := r.client.HGetAll(ctx, r.key(institutionID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read institution from Redis: %w", err)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("institution %s: %w", institutionID, models.ErrUnknownInstitution)
	}

	e := &Entry{
		Institution: models.Institution{
			ID:       institutionID,
			Name:     fields["name"],
			District: fields["district"],
			State:    fields["state"],
		},
	}
	counts := []struct {
		field string
		dst   *int
	}{
		{"students", &e.Counts.Students},
		{"parents", &e.Counts.Parents},
		{"staff", &e.Counts.Staff},
		{"emergency", &e.Counts.Emergency},
	}
	for _, c := range counts {
		v, ok := fields[c.field]
		if !ok || v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("institution %s has invalid %s count %q", institutionID, c.field, v)
		}
		*c.dst = n
	}
	return e, nil
}

// Store writes an entry in the layout Resolve reads.
func (r *Redis) Store(ctx context.Context, e Entry) error {
	err := r.client.HSet(ctx, r.key(e.Institution.ID),
		"name", e.Institution.Name,
		"district", e.Institution.District,
		"state", e.Institution.State,
		"students", e.Counts.Students,
		"parents", e.Counts.Parents,
		"staff", e.Counts.Staff,
		"emergency", e.Counts.Emergency,
	).Err()
	if err != nil {
		return fmt.Errorf("failed to store institution in Redis: %w", err)
	}
	return nil
}
