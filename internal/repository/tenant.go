// SPDX-License-Identifier: Apache-2.0

package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oks-citadel/UGC-Content-Creation-SaaS-Platform-sub007/internal/auth"
	"github.com/oks-citadel/UGC-Content-Creation-SaaS-Platform-sub007/internal/domain"
)

const pgUniqueViolation = "23505"

// tenantBrandID applies the caller's brand scope to a requested brand filter.
func tenantBrandID(ctx context.Context, requested string) (string, error) {
	brandID, err := auth.ScopeBrandID(ctx, requested)
	if err != nil {
		return "", domain.NewValidationError("brandId %q is outside the caller's tenant", requested)
	}
	return brandID, nil
}

// uniqueViolation reports the violated constraint name for a 23505 error.
func uniqueViolation(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return pgErr.ConstraintName, true
	}
	return "", false
}
