// Package repository provides storage for raw telegrams and the entities
// decoded from them, backed by PostgreSQL or by memory.
package repository

import (
	"context"
	"fmt"

	"github.com/yourusername/place-better/internal/database"
)

// Repositories holds all repository implementations
type Repositories struct {
	Telegram      TelegramStore
	Race          RaceRepository
	Entry         EntryRepository
	Odds          OddsRepository
	Passing       PassingRepository
	Feature       FeatureRepository
	Master        MasterRepository
	LatestMetrics LatestMetricsRepository
	Tx            Transactor
}

// NewRepositories creates the PostgreSQL repository implementations
func NewRepositories(db *database.DB) (*Repositories, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	return &Repositories{
		Telegram:      NewPostgresTelegramStore(db),
		Race:          NewPostgresRaceRepository(db),
		Entry:         NewPostgresEntryRepository(db),
		Odds:          NewPostgresOddsRepository(db),
		Passing:       NewPostgresPassingRepository(db),
		Feature:       NewPostgresFeatureRepository(db),
		Master:        NewPostgresMasterRepository(db),
		LatestMetrics: NewPostgresLatestMetricsRepository(db),
		Tx:            db,
	}, nil
}

// NewMemoryRepositories creates in-memory repositories sharing nothing with any database
func NewMemoryRepositories() *Repositories {
	return &Repositories{
		Telegram:      NewMemoryTelegramStore(),
		Race:          NewMemoryRaceRepository(),
		Entry:         NewMemoryEntryRepository(),
		Odds:          NewMemoryOddsRepository(),
		Passing:       NewMemoryPassingRepository(),
		Feature:       NewMemoryFeatureRepository(),
		Master:        NewMemoryMasterRepository(),
		LatestMetrics: NewMemoryLatestMetricsRepository(),
		Tx:            noopTransactor{},
	}
}

// TruncateDerived empties every table rebuilt from raw telegrams
func (r *Repositories) TruncateDerived(ctx context.Context) error {
	return r.Tx.WithTransaction(ctx, func(ctx context.Context) error {
		for _, truncate := range []func(context.Context) error{
			r.Feature.Truncate,
			r.Passing.Truncate,
			r.Odds.Truncate,
			r.Entry.Truncate,
			r.Race.Truncate,
			r.LatestMetrics.Truncate,
			r.Master.Truncate,
		} {
			if err := truncate(ctx); err != nil {
				return err
			}
		}
		return nil
	})
}

type noopTransactor struct{}

func (noopTransactor) WithTransaction(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}
