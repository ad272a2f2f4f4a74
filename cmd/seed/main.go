package main

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-scheduling/internal/apperr"
	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/availability"
	"github.com/hackgods/clinic-scheduling/internal/clock"
	"github.com/hackgods/clinic-scheduling/internal/config"
	"github.com/hackgods/clinic-scheduling/internal/db"
	"github.com/hackgods/clinic-scheduling/internal/logging"
	redisclient "github.com/hackgods/clinic-scheduling/internal/redis"
)

const (
	doctorCount  = 40
	patientCount = 2000
	bookingDays  = 10
	fillRatio    = 0.35
)

var reasons = []string{
	"General check-up",
	"Follow-up visit",
	"Blood pressure control",
	"Lab results review",
	"Persistent cough",
	"Back pain",
	"Skin rash",
	"Headache",
	"Vaccination",
	"Prescription renewal",
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := logging.New("dev", "info", "seed")
		boot.Fatal().Err(err).Msg("config load error")
	}
	logger := logging.New(cfg.Env, cfg.LogLevel, "seed")
	logger.Info().Msg("seed starting")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg)
	if err != nil {
		logger.Error().Err(err).Msg("connect postgres")
		os.Exit(1)
	}
	defer pool.Close()

	if _, err := db.Migrate(ctx, pool, logger); err != nil {
		logger.Error().Err(err).Msg("migrate")
		os.Exit(1)
	}

	faker := gofakeit.New(0)
	clk := clock.New(cfg.Location)
	templateRepo := availability.NewPgRepository(pool)

	templates := availability.NewService(templateRepo, clk, logger.Level(zerolog.WarnLevel))
	appointments := appointment.NewService(appointment.NewPgRepository(pool), templateRepo,
		redisclient.NewLocalDayLocker(cfg.LockWait), clk, cfg, logger.Level(zerolog.WarnLevel))

	doctors, err := seedTemplates(ctx, templates, faker, doctorCount)
	if err != nil {
		logger.Error().Err(err).Msg("seed templates")
		os.Exit(1)
	}
	logger.Info().Int("doctors", len(doctors)).Msg("templates seeded")

	booked, err := seedAppointments(ctx, appointments, faker, clk, doctors)
	if err != nil {
		logger.Error().Err(err).Msg("seed appointments")
		os.Exit(1)
	}
	logger.Info().Int("appointments", booked).Msg("seed complete")
}

// seedTemplates gives every doctor a Monday to Friday schedule.
func seedTemplates(ctx context.Context, svc *availability.Service, faker *gofakeit.Faker, count int) ([]uuid.UUID, error) {
	slotLengths := []int{15, 20, 30}
	doctors := make([]uuid.UUID, 0, count)

	for i := 0; i < count; i++ {
		doctor := uuid.New()
		startHour := faker.Number(7, 9)
		hours := faker.Number(4, 8)
		slot := slotLengths[faker.Number(0, len(slotLengths)-1)]

		for wd := time.Monday; wd <= time.Friday; wd++ {
			_, err := svc.CreateTemplate(ctx, doctor, availability.NewTemplate{
				DoctorID:    doctor,
				Weekday:     wd,
				Start:       availability.NewTimeOfDay(startHour, 0),
				End:         availability.NewTimeOfDay(startHour+hours, 0),
				SlotMinutes: slot,
			})
			if err != nil {
				return nil, err
			}
		}
		doctors = append(doctors, doctor)
	}

	return doctors, nil
}

// seedAppointments books a share of the free slots over the coming days and
// confirms about half of them.
func seedAppointments(ctx context.Context, svc *appointment.Service, faker *gofakeit.Faker, clk clock.Clock, doctors []uuid.UUID) (int, error) {
	patients := make([]uuid.UUID, patientCount)
	for i := range patients {
		patients[i] = uuid.New()
	}

	today := availability.DateOf(clk.Now())
	booked := 0

	for day := 1; day <= bookingDays; day++ {
		date := today.AddDays(day)

		for _, doctor := range doctors {
			slots, err := svc.AvailableSlots(ctx, doctor, date)
			if err != nil {
				return booked, err
			}

			for _, start := range slots {
				if faker.Float64Range(0, 1) > fillRatio {
					continue
				}

				appt, err := svc.Book(ctx, appointment.BookingRequest{
					PatientID: patients[faker.Number(0, len(patients)-1)],
					DoctorID:  doctor,
					Date:      date,
					Start:     start,
					End:       start.Add(15 * time.Minute),
					Reason:    faker.RandomString(reasons),
				})
				if err != nil {
					if errors.Is(err, apperr.ErrConflict) {
						continue
					}
					return booked, err
				}
				booked++

				if faker.Bool() {
					if _, err := svc.Confirm(ctx, appt.ID); err != nil {
						return booked, err
					}
				}
			}
		}
	}

	return booked, nil
}
