package database

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/yourusername/place-better/internal/models"
)

// SQLSTATE values and classes that mean the server cannot serve requests.
const (
	uniqueViolation        = "23505"
	connectionExceptionCls = "08"
	insufficientResources  = "53"
	adminShutdown          = "57P01"
	crashShutdown          = "57P02"
	cannotConnectNow       = "57P03"
)

// ClassifyError maps connectivity failures to models.ErrStoreUnavailable and
// unique violations to models.ErrDuplicateKey. Other errors pass through.
func ClassifyError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, models.ErrStoreUnavailable) || errors.Is(err, models.ErrDuplicateKey) {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == uniqueViolation:
			return fmt.Errorf("%w: %w", models.ErrDuplicateKey, err)
		case strings.HasPrefix(pgErr.Code, connectionExceptionCls),
			strings.HasPrefix(pgErr.Code, insufficientResources),
			pgErr.Code == adminShutdown,
			pgErr.Code == crashShutdown,
			pgErr.Code == cannotConnectNow:
			return fmt.Errorf("%w: %w", models.ErrStoreUnavailable, err)
		}
		return err
	}

	if IsConnectivityError(err) {
		return fmt.Errorf("%w: %w", models.ErrStoreUnavailable, err)
	}
	return err
}

// IsConnectivityError reports whether err comes from reaching the server
// rather than from a statement.
func IsConnectivityError(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	return pgconn.Timeout(err) && !errors.Is(err, context.DeadlineExceeded)
}
