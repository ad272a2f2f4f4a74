package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/hackgods/clinic-scheduling/internal/availability"
	"github.com/hackgods/clinic-scheduling/internal/config"
	"github.com/hackgods/clinic-scheduling/internal/db"
	"github.com/hackgods/clinic-scheduling/internal/logging"
)

type SimConfig struct {
	APIBaseURL   string
	Duration     time.Duration
	Workers      int
	BookingRatio float64
	ConfirmRatio float64
	CancelRatio  float64
	ReadRatio    float64
	RaceEvery    time.Duration // how often all workers fire at one slot together
	RaceWidth    int
	DoctorLimit  int
	DaysAhead    int
	PostgresDSN  string
	Location     *time.Location
}

type DataPool struct {
	Doctors      []uuid.UUID
	Dates        []availability.Date
	mu           sync.RWMutex
	appointments []uuid.UUID
}

func (dp *DataPool) AddAppointment(id uuid.UUID) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.appointments = append(dp.appointments, id)
}

func (dp *DataPool) GetRandomAppointment(rng *rand.Rand) (uuid.UUID, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	if len(dp.appointments) == 0 {
		return uuid.Nil, false
	}
	return dp.appointments[rng.Intn(len(dp.appointments))], true
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, status int, err error) {
	atomic.AddInt64(&om.Total, 1)
	switch {
	case err == nil && status < 300:
		atomic.AddInt64(&om.Success, 1)
	case err == nil && status == http.StatusConflict:
		atomic.AddInt64(&om.Conflict, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, min, max, p50, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.Latencies) == 0 {
		return 0, 0, 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)
	sort.Slice(latencies, func(i, j int) bool {
		return latencies[i] < latencies[j]
	})

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}

	avg = sum / time.Duration(len(latencies))
	min = latencies[0]
	max = latencies[len(latencies)-1]
	p50 = latencies[percentileIndex(len(latencies), 50)]
	p95 = latencies[percentileIndex(len(latencies), 95)]
	return avg, min, max, p50, p95
}

func percentileIndex(n, p int) int {
	idx := n * p / 100
	if idx >= n {
		idx = n - 1
	}
	return idx
}

type Metrics struct {
	Booking    OperationMetrics
	RaceBook   OperationMetrics
	Confirm    OperationMetrics
	Cancel     OperationMetrics
	ReadByID   OperationMetrics
	ListByDay  OperationMetrics
	Slots      OperationMetrics
	Attendance OperationMetrics

	// a race round that ends with more than one 201 means slot exclusivity broke
	RaceRounds     int64
	RaceDoubleBook int64
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	metrics Metrics
	log     zerolog.Logger
}

func main() {
	baseCfg, err := config.Load()
	if err != nil {
		boot := logging.New("dev", "info", "simulate")
		boot.Fatal().Err(err).Msg("config load error")
	}
	logger := logging.New(baseCfg.Env, baseCfg.LogLevel, "simulate")

	cfg := loadConfig(baseCfg)
	if err := validateConfig(cfg); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	logger.Info().
		Dur("duration", cfg.Duration).
		Int("workers", cfg.Workers).
		Float64("booking", cfg.BookingRatio).
		Float64("confirm", cfg.ConfirmRatio).
		Float64("cancel", cfg.CancelRatio).
		Float64("read", cfg.ReadRatio).
		Msg("simulator starting")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, baseCfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect postgres")
	}
	defer pgPool.Close()

	dataPool, err := loadDataPool(ctx, pgPool, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("load data pool")
	}
	logger.Info().Int("doctors", len(dataPool.Doctors)).Int("days", len(dataPool.Dates)).Msg("data pool loaded")

	sim := &Simulator{
		config: cfg,
		pool:   dataPool,
		client: &http.Client{Timeout: 10 * time.Second},
		log:    logger,
	}

	if err := sim.Run(context.Background()); err != nil {
		logger.Error().Err(err).Msg("simulation aborted")
	}
	sim.PrintReport()

	if sim.metrics.RaceDoubleBook > 0 {
		os.Exit(2)
	}
}

func loadConfig(base config.Config) SimConfig {
	cfg := SimConfig{
		APIBaseURL:   getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:     getDuration("SIM_DURATION", 30*time.Second),
		Workers:      getInt("SIM_WORKERS", 10),
		BookingRatio: getFloat("SIM_BOOKING_RATIO", 0.4),
		ConfirmRatio: getFloat("SIM_CONFIRM_RATIO", 0.15),
		CancelRatio:  getFloat("SIM_CANCEL_RATIO", 0.05),
		ReadRatio:    getFloat("SIM_READ_RATIO", 0.4),
		RaceEvery:    getDuration("SIM_RACE_EVERY", 2*time.Second),
		RaceWidth:    getInt("SIM_RACE_WIDTH", 20),
		DoctorLimit:  getInt("SIM_DOCTOR_LIMIT", 50),
		DaysAhead:    getInt("SIM_DAYS_AHEAD", 14),
		PostgresDSN:  base.PostgresDSN,
		Location:     base.Location,
	}

	total := cfg.BookingRatio + cfg.ConfirmRatio + cfg.CancelRatio + cfg.ReadRatio
	if total > 0 {
		cfg.BookingRatio /= total
		cfg.ConfirmRatio /= total
		cfg.CancelRatio /= total
		cfg.ReadRatio /= total
	}

	return cfg
}

func validateConfig(cfg SimConfig) error {
	if cfg.PostgresDSN == "" {
		return fmt.Errorf("POSTGRES_DSN is required (set in .env or environment)")
	}
	if cfg.Workers <= 0 {
		return fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("SIM_DURATION must be > 0")
	}
	if cfg.DaysAhead <= 0 {
		return fmt.Errorf("SIM_DAYS_AHEAD must be > 0")
	}
	return nil
}

// loadDataPool picks doctors that have an active template and the upcoming
// calendar days to book on.
func loadDataPool(ctx context.Context, pool *pgxpool.Pool, cfg SimConfig) (*DataPool, error) {
	dataPool := &DataPool{}

	rows, err := pool.Query(ctx, `
		SELECT DISTINCT doctor_id FROM availability_templates
		WHERE active
		LIMIT $1
	`, cfg.DoctorLimit)
	if err != nil {
		return nil, fmt.Errorf("load doctors: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		dataPool.Doctors = append(dataPool.Doctors, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(dataPool.Doctors) == 0 {
		return nil, fmt.Errorf("no doctors with active templates, run cmd/seed first")
	}

	today := availability.DateOf(time.Now().In(cfg.Location))
	for i := 1; i <= cfg.DaysAhead; i++ {
		dataPool.Dates = append(dataPool.Dates, today.AddDays(i))
	}

	return dataPool, nil
}

func (s *Simulator) Run(parent context.Context) error {
	ctx, cancel := context.WithTimeout(parent, s.config.Duration)
	defer cancel()

	s.log.Info().Dur("duration", s.config.Duration).Int("workers", s.config.Workers).Msg("starting simulation")

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < s.config.Workers; i++ {
		workerID := i
		g.Go(func() error {
			s.worker(gctx, workerID)
			return nil
		})
	}
	if s.config.RaceEvery > 0 && s.config.RaceWidth > 1 {
		g.Go(func() error {
			s.racer(gctx)
			return nil
		})
	}

	err := g.Wait()
	s.log.Info().Msg("simulation complete")
	return err
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		r := rng.Float64()
		switch {
		case r < s.config.BookingRatio:
			s.doBooking(ctx, rng)
		case r < s.config.BookingRatio+s.config.ConfirmRatio:
			s.doConfirm(ctx, rng)
		case r < s.config.BookingRatio+s.config.ConfirmRatio+s.config.CancelRatio:
			s.doCancel(ctx, rng)
		default:
			switch rng.Intn(4) {
			case 0:
				s.doReadByID(ctx, rng)
			case 1:
				s.doListByDay(ctx, rng)
			case 2:
				s.doSlots(ctx, rng)
			case 3:
				s.doAttendance(ctx, rng)
			}
		}
	}
}

// racer periodically sends RaceWidth simultaneous bookings for the same slot.
// Exactly one of them may succeed.
func (s *Simulator) racer(ctx context.Context) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	ticker := time.NewTicker(s.config.RaceEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		doctor, date := s.randomDoctorDay(rng)
		slots, err := s.fetchSlots(ctx, doctor, date)
		if err != nil || len(slots) == 0 {
			continue
		}
		start := slots[rng.Intn(len(slots))]

		var (
			wg      sync.WaitGroup
			created int64
		)
		release := make(chan struct{})
		for i := 0; i < s.config.RaceWidth; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-release
				status, id, err := s.book(ctx, &s.metrics.RaceBook, doctor, date, start)
				if err == nil && status == http.StatusCreated {
					atomic.AddInt64(&created, 1)
					s.pool.AddAppointment(id)
				}
			}()
		}
		close(release)
		wg.Wait()

		atomic.AddInt64(&s.metrics.RaceRounds, 1)
		if created > 1 {
			atomic.AddInt64(&s.metrics.RaceDoubleBook, 1)
			s.log.Error().
				Str("doctor_id", doctor.String()).
				Str("date", date.String()).
				Str("start", start.String()).
				Int64("created", created).
				Msg("slot booked more than once")
		}
	}
}

func (s *Simulator) randomDoctorDay(rng *rand.Rand) (uuid.UUID, availability.Date) {
	return s.pool.Doctors[rng.Intn(len(s.pool.Doctors))], s.pool.Dates[rng.Intn(len(s.pool.Dates))]
}

func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand) {
	doctor, date := s.randomDoctorDay(rng)
	slots, err := s.fetchSlots(ctx, doctor, date)
	if err != nil || len(slots) == 0 {
		return
	}

	status, id, err := s.book(ctx, &s.metrics.Booking, doctor, date, slots[rng.Intn(len(slots))])
	if err == nil && status == http.StatusCreated {
		s.pool.AddAppointment(id)
	}
}

func (s *Simulator) book(ctx context.Context, om *OperationMetrics, doctor uuid.UUID, date availability.Date, start availability.TimeOfDay) (int, uuid.UUID, error) {
	body := map[string]string{
		"patient_id": uuid.NewString(),
		"doctor_id":  doctor.String(),
		"date":       date.String(),
		"start":      start.String(),
		"end":        start.Add(15 * time.Minute).String(),
		"reason":     "load test",
	}

	var created struct {
		ID uuid.UUID `json:"id"`
	}
	status, err := s.call(ctx, om, http.MethodPost, "/appointments", body, &created)
	return status, created.ID, err
}

func (s *Simulator) fetchSlots(ctx context.Context, doctor uuid.UUID, date availability.Date) ([]availability.TimeOfDay, error) {
	var resp struct {
		Slots []string `json:"slots"`
	}
	path := fmt.Sprintf("/doctors/%s/slots?date=%s", doctor, date)
	status, err := s.call(ctx, &s.metrics.Slots, http.MethodGet, path, nil, &resp)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("slots: status %d", status)
	}

	slots := make([]availability.TimeOfDay, 0, len(resp.Slots))
	for _, raw := range resp.Slots {
		t, err := availability.ParseTimeOfDay(raw)
		if err != nil {
			return nil, err
		}
		slots = append(slots, t)
	}
	return slots, nil
}

func (s *Simulator) doConfirm(ctx context.Context, rng *rand.Rand) {
	if id, ok := s.pool.GetRandomAppointment(rng); ok {
		_, _ = s.call(ctx, &s.metrics.Confirm, http.MethodPost, "/appointments/"+id.String()+"/confirm", nil, nil)
	}
}

func (s *Simulator) doCancel(ctx context.Context, rng *rand.Rand) {
	if id, ok := s.pool.GetRandomAppointment(rng); ok {
		body := map[string]string{"reason": "simulated cancellation"}
		_, _ = s.call(ctx, &s.metrics.Cancel, http.MethodPost, "/appointments/"+id.String()+"/cancel", body, nil)
	}
}

func (s *Simulator) doReadByID(ctx context.Context, rng *rand.Rand) {
	if id, ok := s.pool.GetRandomAppointment(rng); ok {
		_, _ = s.call(ctx, &s.metrics.ReadByID, http.MethodGet, "/appointments/"+id.String(), nil, nil)
	}
}

func (s *Simulator) doAttendance(ctx context.Context, rng *rand.Rand) {
	if id, ok := s.pool.GetRandomAppointment(rng); ok {
		_, _ = s.call(ctx, &s.metrics.Attendance, http.MethodGet, "/appointments/"+id.String()+"/attendance", nil, nil)
	}
}

func (s *Simulator) doListByDay(ctx context.Context, rng *rand.Rand) {
	doctor, date := s.randomDoctorDay(rng)
	path := fmt.Sprintf("/appointments?doctor_id=%s&date=%s", doctor, date)
	_, _ = s.call(ctx, &s.metrics.ListByDay, http.MethodGet, path, nil, nil)
}

func (s *Simulator) doSlots(ctx context.Context, rng *rand.Rand) {
	doctor, date := s.randomDoctorDay(rng)
	_, _ = s.fetchSlots(ctx, doctor, date)
}

// call performs one request, records it in om and decodes a 2xx body into out.
func (s *Simulator) call(ctx context.Context, om *OperationMetrics, method, path string, body, out any) (int, error) {
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.config.APIBaseURL+path, reader)
	if err != nil {
		return 0, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := s.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		// requests cut off by the end of the run are not failures
		if ctx.Err() == nil {
			om.Record(latency, 0, err)
		}
		return 0, err
	}
	defer resp.Body.Close()

	om.Record(latency, resp.StatusCode, nil)

	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, err
		}
	}
	return resp.StatusCode, nil
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Println()

	printOperationReport("Booking", &s.metrics.Booking)
	printOperationReport("Same-slot race booking", &s.metrics.RaceBook)
	printOperationReport("Confirm", &s.metrics.Confirm)
	printOperationReport("Cancel", &s.metrics.Cancel)
	printOperationReport("Read by ID", &s.metrics.ReadByID)
	printOperationReport("List by doctor and day", &s.metrics.ListByDay)
	printOperationReport("Available slots", &s.metrics.Slots)
	printOperationReport("Attendance check", &s.metrics.Attendance)

	rounds := atomic.LoadInt64(&s.metrics.RaceRounds)
	doubles := atomic.LoadInt64(&s.metrics.RaceDoubleBook)
	fmt.Printf("Race rounds: %d, double bookings: %d\n", rounds, doubles)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	failed := atomic.LoadInt64(&om.Error)

	avg, min, max, p50, p95 := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if conflict > 0 {
		fmt.Printf("  Conflicts: %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	}
	if failed > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failed, float64(failed)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s min=%s max=%s p50=%s p95=%s\n",
		avg.Round(time.Millisecond), min.Round(time.Millisecond), max.Round(time.Millisecond),
		p50.Round(time.Millisecond), p95.Round(time.Millisecond))
	fmt.Println()
}

// Helper functions

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
