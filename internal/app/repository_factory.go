package app

import (
	"fmt"
	"time"

	calendarDomain "github.com/felixgeelhaar/nestly/internal/calendar/domain"
	calendarPersistence "github.com/felixgeelhaar/nestly/internal/calendar/infrastructure/persistence"
	schedulingDomain "github.com/felixgeelhaar/nestly/internal/scheduling/domain"
	schedulingPersistence "github.com/felixgeelhaar/nestly/internal/scheduling/infrastructure/persistence"
	sharedApplication "github.com/felixgeelhaar/nestly/internal/shared/application"
	"github.com/felixgeelhaar/nestly/internal/shared/infrastructure/database"
	"github.com/felixgeelhaar/nestly/internal/shared/infrastructure/outbox"
)

// Repositories is the storage side of the container.
type Repositories struct {
	Bookings     schedulingDomain.BookingRepository
	Availability schedulingDomain.AvailabilityRepository
	Locker       schedulingDomain.ProviderLocker
	UnitOfWork   sharedApplication.UnitOfWork
	Outbox       outbox.Repository
	Failures     calendarDomain.SyncFailureRepository
}

// RepositoryFactory creates repositories based on the database driver.
type RepositoryFactory struct {
	conn   database.Connection
	driver database.Driver
	loc    *time.Location
}

// NewRepositoryFactory creates a new repository factory. A nil conn selects
// the in-memory driver.
func NewRepositoryFactory(conn database.Connection, loc *time.Location) *RepositoryFactory {
	driver := database.DriverMemory
	if conn != nil {
		driver = conn.Driver()
	}
	return &RepositoryFactory{conn: conn, driver: driver, loc: loc}
}

// Driver returns the backend the factory builds for.
func (f *RepositoryFactory) Driver() database.Driver {
	return f.driver
}

// Build creates every repository for the configured driver. Postgres and
// SQLite share the dialect-aware SQL implementations.
func (f *RepositoryFactory) Build() (*Repositories, error) {
	switch f.driver {
	case database.DriverPostgres, database.DriverSQLite:
		return &Repositories{
			Bookings:     schedulingPersistence.NewSQLBookingRepository(f.conn),
			Availability: schedulingPersistence.NewSQLAvailabilityRepository(f.conn, f.loc),
			Locker:       schedulingPersistence.NewSQLLocker(f.conn),
			UnitOfWork:   database.NewUnitOfWork(f.conn),
			Outbox:       outbox.NewSQLRepository(f.conn),
			Failures:     calendarPersistence.NewSQLFailureRepository(f.conn),
		}, nil

	case database.DriverMemory:
		store := schedulingPersistence.NewMemoryStore()
		return &Repositories{
			Bookings:     store.Bookings(),
			Availability: store.Availability(),
			Locker:       store.Locker(),
			UnitOfWork:   store.UnitOfWork(),
			Outbox:       outbox.NewInMemoryRepository(),
			Failures:     calendarPersistence.NewMemoryFailureRepository(),
		}, nil

	default:
		return nil, fmt.Errorf("unsupported driver: %s", f.driver)
	}
}
