// SPDX-License-Identifier: Apache-2.0

package repository

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oks-citadel/UGC-Content-Creation-SaaS-Platform-sub007/internal/auth"
	"github.com/oks-citadel/UGC-Content-Creation-SaaS-Platform-sub007/internal/domain"
)

// APIKeyRepository stores hashed bearer tokens. A key with a brand_id is
// scoped to that tenant.
type APIKeyRepository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewAPIKeyRepository(pool *pgxpool.Pool, logger *slog.Logger) *APIKeyRepository {
	if logger == nil {
		logger = slog.Default()
	}

	return &APIKeyRepository{
		pool:   pool,
		logger: logger,
	}
}

const apiKeyTokenPrefix = "evk_"

// ResolveAPIKey looks up an unrevoked key by token. Tokens without the issued
// prefix are rejected without a query.
func (r *APIKeyRepository) ResolveAPIKey(ctx context.Context, bearerToken string) (auth.APIKey, bool, error) {
	if !strings.HasPrefix(bearerToken, apiKeyTokenPrefix) {
		return auth.APIKey{}, false, nil
	}
	tokenHash := sha256Hex(bearerToken)

	var key auth.APIKey
	err := r.pool.QueryRow(ctx,
		`SELECT id, brand_id, max_requests_per_min
		 FROM api_keys
		 WHERE token_hash=$1 AND revoked_at IS NULL`,
		tokenHash,
	).Scan(&key.ID, &key.BrandID, &key.MaxRequestsPerMin)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return auth.APIKey{}, false, nil
		}
		r.logger.Error("resolve api key failed", "error", err)
		return auth.APIKey{}, false, err
	}

	if key.MaxRequestsPerMin <= 0 {
		key.MaxRequestsPerMin = domain.DefaultMaxRequestsPerMin
	}

	return key, true, nil
}

func (r *APIKeyRepository) CreateAPIKey(ctx context.Context, params domain.CreateAPIKeyParams) (domain.CreatedAPIKey, error) {
	name := strings.TrimSpace(params.Name)
	if name == "" {
		return domain.CreatedAPIKey{}, domain.ErrInvalidAPIKeyName
	}

	maxRequestsPerMin := params.MaxRequestsPerMin
	if maxRequestsPerMin <= 0 {
		maxRequestsPerMin = domain.DefaultMaxRequestsPerMin
	}

	token, tokenHash, err := generateAPIKeyToken()
	if err != nil {
		r.logger.Error("generate api key token failed", "error", err)
		return domain.CreatedAPIKey{}, err
	}

	apiKeyID := uuid.New()
	if _, err := r.pool.Exec(ctx, `
		INSERT INTO api_keys (id, name, token_hash, brand_id, max_requests_per_min)
		VALUES ($1, $2, $3, $4, $5)
	`,
		apiKeyID,
		name,
		tokenHash,
		strings.TrimSpace(params.BrandID),
		maxRequestsPerMin,
	); err != nil {
		r.logger.Error("create api key failed", "name", name, "brand_id", params.BrandID, "error", err)
		return domain.CreatedAPIKey{}, err
	}

	r.logger.Info("api key created", "api_key_id", apiKeyID, "brand_id", params.BrandID)
	return domain.CreatedAPIKey{
		ID:    apiKeyID,
		Token: token,
	}, nil
}

// ListAPIKeys returns unrevoked keys, all of them when brandID is empty.
func (r *APIKeyRepository) ListAPIKeys(ctx context.Context, brandID string) ([]domain.APIKeyRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, brand_id, max_requests_per_min, created_at
		FROM api_keys
		WHERE revoked_at IS NULL
		  AND ($1 = '' OR brand_id = $1)
		ORDER BY created_at DESC
	`, strings.TrimSpace(brandID))
	if err != nil {
		r.logger.Error("list api keys query failed", "error", err)
		return nil, err
	}
	defer rows.Close()

	keys := make([]domain.APIKeyRecord, 0, 32)
	for rows.Next() {
		var record domain.APIKeyRecord
		if err := rows.Scan(
			&record.ID,
			&record.Name,
			&record.BrandID,
			&record.MaxRequestsPerMin,
			&record.CreatedAt,
		); err != nil {
			return nil, err
		}
		keys = append(keys, record)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return keys, nil
}

func (r *APIKeyRepository) RevokeAPIKey(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE api_keys
		SET revoked_at = NOW()
		WHERE id = $1 AND revoked_at IS NULL
	`, id)
	if err != nil {
		r.logger.Error("revoke api key failed", "api_key_id", id, "error", err)
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAPIKeyNotFound
	}
	r.logger.Info("api key revoked", "api_key_id", id)
	return nil
}

func generateAPIKeyToken() (string, string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", "", err
	}
	token := apiKeyTokenPrefix + hex.EncodeToString(raw)
	return token, sha256Hex(token), nil
}

func sha256Hex(input string) string {
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}
