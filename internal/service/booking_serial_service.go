package service

import (
	"context"
	"fmt"
	"time"

	"telehealth-booking/internal/domain/repository"
	"telehealth-booking/internal/infrastructure/database"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// nextSerialScript seeds the day counter from the database on first use and
// then increments it. Seeding and INCR run atomically so two callers cannot
// both observe an unseeded key.
//
// KEYS[1] = counter key, ARGV[1] = seed, ARGV[2] = ttl seconds
var nextSerialScript = redis.NewScript(`
	if redis.call('EXISTS', KEYS[1]) == 0 then
		redis.call('SET', KEYS[1], ARGV[1], 'EX', ARGV[2])
	end
	return redis.call('INCR', KEYS[1])
`)

const (
	RedisBookingSerialKeyPrefix = "booking:serial:"

	serialKeyTTL       = 48 * time.Hour
	redisSerialTimeout = 2 * time.Second
)

// BookingNumber is a human readable booking reference.
type BookingNumber struct {
	Number string
	Serial int
}

// BookingSerialService issues PREFIX-DDMMYYYY-NNN booking numbers numbered per
// creation day. The numbers are cosmetic: a duplicate under a Redis outage is
// tolerated and nothing keys on them.
type BookingSerialService interface {
	Next(ctx context.Context, at time.Time) (*BookingNumber, error)
}

type bookingSerialService struct {
	transactor  database.Transactor
	redisClient *redis.Client
	log         *logrus.Logger
	bookingRepo repository.BookingRepository
	prefix      string
	loc         *time.Location
}

// NewBookingSerialService builds the service. redisClient may be nil, in which
// case every serial comes from the database.
func NewBookingSerialService(
	transactor database.Transactor,
	redisClient *redis.Client,
	log *logrus.Logger,
	bookingRepo repository.BookingRepository,
	prefix string,
	loc *time.Location,
) BookingSerialService {
	if loc == nil {
		loc = time.UTC
	}
	return &bookingSerialService{
		transactor:  transactor,
		redisClient: redisClient,
		log:         log,
		bookingRepo: bookingRepo,
		prefix:      prefix,
		loc:         loc,
	}
}

func (s *bookingSerialService) Next(ctx context.Context, at time.Time) (*BookingNumber, error) {
	local := at.In(s.loc)
	dayStart := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.loc)
	dayKey := dayStart.Format("02012006")

	last, err := s.bookingRepo.LastSerialBetween(s.transactor.DB(ctx), dayStart, dayStart.AddDate(0, 0, 1))
	if err != nil {
		return nil, fmt.Errorf("read last booking serial: %w", err)
	}

	serial := last + 1
	if s.redisClient != nil {
		redisCtx, cancel := context.WithTimeout(ctx, redisSerialTimeout)
		n, err := nextSerialScript.Run(redisCtx, s.redisClient,
			[]string{RedisBookingSerialKeyPrefix + dayKey},
			last, int(serialKeyTTL.Seconds()),
		).Int()
		cancel()
		if err != nil {
			s.log.Warnf("Failed to increment booking serial in Redis, using database: %+v", err)
		} else if n > last {
			serial = n
		}
	}

	return &BookingNumber{
		Number: fmt.Sprintf("%s-%s-%03d", s.prefix, dayKey, serial),
		Serial: serial,
	}, nil
}
