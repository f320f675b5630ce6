// SPDX-License-Identifier: Apache-2.0

package domain

import (
	"time"

	"github.com/google/uuid"
)

const DefaultMaxRequestsPerMin = 600

type CreateAPIKeyParams struct {
	Name              string
	BrandID           string
	MaxRequestsPerMin int
}

type CreatedAPIKey struct {
	ID    uuid.UUID
	Token string
}

type APIKeyRecord struct {
	ID                uuid.UUID `json:"id"`
	Name              string    `json:"name"`
	BrandID           string    `json:"brand_id,omitempty"`
	MaxRequestsPerMin int       `json:"max_requests_per_min"`
	CreatedAt         time.Time `json:"created_at"`
}
