package scheduler

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/julianbeese/mietcheck/internal/config"
	"github.com/julianbeese/mietcheck/internal/domain"
)

type fakeService struct {
	averages map[string]float64
	rents    map[string]float64
	failURL  string
}

func (f *fakeService) RefreshMarketRent(_ context.Context, plz string) domain.MarketRentResult {
	avg, ok := f.averages[plz]
	if !ok {
		return domain.MarketRentResult{PostalCode: plz, Reason: "PLZ nicht gefunden"}
	}
	return domain.MarketRentResult{
		PostalCode: plz,
		Found:      true,
		Area:       &domain.AreaDescriptor{PostalCode: plz, City: "Bremen"},
		Benchmark:  &domain.RentBenchmark{Average: domain.Ptr(avg)},
	}
}

func (f *fakeService) RefreshURL(_ context.Context, url string) (*domain.AnalysisResult, error) {
	if url == f.failURL {
		return nil, domain.ErrExtractionFailed
	}
	return &domain.AnalysisResult{
		URL:    url,
		Record: domain.PropertyRecord{RentMonthly: domain.Ptr(f.rents[url])},
	}, nil
}

type fakeStore struct {
	benchmarks map[string]*domain.MarketRentResult
	analyses   map[string]*domain.AnalysisResult
	activity   []string
}

func (f *fakeStore) LatestBenchmark(_ context.Context, plz string) (*domain.MarketRentResult, error) {
	if b, ok := f.benchmarks[plz]; ok {
		return b, nil
	}
	return nil, domain.ErrNotFound
}

func (f *fakeStore) LatestAnalysis(_ context.Context, url string) (*domain.AnalysisResult, error) {
	if a, ok := f.analyses[url]; ok {
		return a, nil
	}
	return nil, domain.ErrNotFound
}

func (f *fakeStore) LogActivity(_ context.Context, log *domain.ActivityLog) error {
	f.activity = append(f.activity, log.Action+":"+log.EntityID)
	return nil
}

type fakeNotifier struct {
	changed  []string
	analyses []string
	errors   []string
}

func (f *fakeNotifier) NotifyBenchmarkChanged(_ context.Context, _, cur domain.MarketRentResult) error {
	f.changed = append(f.changed, cur.PostalCode)
	return nil
}

func (f *fakeNotifier) NotifyAnalysis(_ context.Context, res *domain.AnalysisResult) error {
	f.analyses = append(f.analyses, res.URL)
	return nil
}

func (f *fakeNotifier) NotifyError(_ context.Context, msg string) error {
	f.errors = append(f.errors, msg)
	return nil
}

func snapshot(plz string, avg float64) *domain.MarketRentResult {
	return &domain.MarketRentResult{
		PostalCode: plz,
		Found:      true,
		Benchmark:  &domain.RentBenchmark{Average: domain.Ptr(avg)},
	}
}

func TestRunOnce_PostalCodes(t *testing.T) {
	svc := &fakeService{averages: map[string]float64{"28203": 11.35, "28195": 12.0, "28199": 9.0}}
	store := &fakeStore{benchmarks: map[string]*domain.MarketRentResult{
		"28203": snapshot("28203", 10.9), // moved
		"28195": snapshot("28195", 12.0), // unchanged
		"00000": snapshot("00000", 8.0),  // no longer resolvable
	}}
	notifier := &fakeNotifier{}

	s := NewScheduler(config.WatchConfig{
		Schedule:    "0 6 * * *",
		PostalCodes: []string{"28203", "28195", "28199", "00000"},
	}, svc, store, notifier, nil)

	require.NoError(t, s.RunOnce(context.Background()))

	assert.Equal(t, []string{"28203"}, notifier.changed)
	assert.Equal(t, []string{domain.ActionWatchChanged + ":28203"}, store.activity)
	assert.Contains(t, s.Status(), "<b>Änderungen:</b> 1")
}

func TestRunOnce_URLs(t *testing.T) {
	svc := &fakeService{
		rents:   map[string]float64{"https://a.example/1": 650, "https://a.example/2": 700, "https://a.example/3": 800},
		failURL: "https://a.example/broken",
	}
	store := &fakeStore{analyses: map[string]*domain.AnalysisResult{
		"https://a.example/1": {Record: domain.PropertyRecord{RentMonthly: domain.Ptr(650.0)}},
		"https://a.example/2": {Record: domain.PropertyRecord{RentMonthly: domain.Ptr(680.0)}},
	}}
	notifier := &fakeNotifier{}

	s := NewScheduler(config.WatchConfig{
		URLs: []string{"https://a.example/1", "https://a.example/2", "https://a.example/3", "https://a.example/broken"},
	}, svc, store, notifier, nil)

	err := s.RunOnce(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrExtractionFailed)

	// unchanged rent is quiet, changed and first-seen listings are reported
	assert.Equal(t, []string{"https://a.example/2", "https://a.example/3"}, notifier.analyses)
}

func TestRunOnce_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := NewScheduler(config.WatchConfig{PostalCodes: []string{"28203"}}, &fakeService{}, &fakeStore{}, nil, nil)
	assert.True(t, errors.Is(s.RunOnce(ctx), context.Canceled))
}

func TestStartStop(t *testing.T) {
	s := NewScheduler(config.WatchConfig{Schedule: "0 6 * * *"}, &fakeService{}, &fakeStore{}, nil, nil)
	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Start(context.Background()))
	s.Stop()
	s.Stop()

	bad := NewScheduler(config.WatchConfig{Schedule: "every day"}, &fakeService{}, &fakeStore{}, nil, nil)
	assert.Error(t, bad.Start(context.Background()))
}

func TestAverageChanged(t *testing.T) {
	a := &domain.RentBenchmark{Average: domain.Ptr(10.0)}
	assert.False(t, averageChanged(a, &domain.RentBenchmark{Average: domain.Ptr(10.004)}))
	assert.True(t, averageChanged(a, &domain.RentBenchmark{Average: domain.Ptr(10.2)}))
	assert.True(t, averageChanged(a, &domain.RentBenchmark{}))
	assert.False(t, averageChanged(&domain.RentBenchmark{}, &domain.RentBenchmark{}))
}
