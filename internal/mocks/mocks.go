// internal/mocks/mocks.go
package mocks

import (
	"context"
	"time"

	"github.com/damon-houk/exchange-rate-resolver/internal/domain/entity"
	domain "github.com/damon-houk/exchange-rate-resolver/internal/domain/service"
	"github.com/damon-houk/exchange-rate-resolver/internal/infrastructure/logger"
	"github.com/stretchr/testify/mock"
)

// MockRateProvider mocks the RateProvider interface
type MockRateProvider struct {
	mock.Mock
	Desc domain.ProviderDescriptor
}

// NewMockRateProvider creates a provider mock with a fixed descriptor
func NewMockRateProvider(desc domain.ProviderDescriptor) *MockRateProvider {
	return &MockRateProvider{Desc: desc}
}

func (m *MockRateProvider) Descriptor() domain.ProviderDescriptor {
	return m.Desc
}

func (m *MockRateProvider) FetchRates(ctx context.Context, start, end time.Time, freq entity.Frequency) ([]entity.Rate, error) {
	args := m.Called(ctx, start, end, freq)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Rate), args.Error(1)
}

// MockRateRepository mocks the RateRepository interface
type MockRateRepository struct {
	mock.Mock
}

func (m *MockRateRepository) LoadRates(ctx context.Context, minDate, maxDate time.Time) ([]entity.Rate, error) {
	args := m.Called(ctx, minDate, maxDate)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Rate), args.Error(1)
}

func (m *MockRateRepository) SaveRates(ctx context.Context, rates []entity.Rate) error {
	args := m.Called(ctx, rates)
	return args.Error(0)
}

func (m *MockRateRepository) LoadPeggedCurrencies(ctx context.Context) ([]entity.PeggedCurrency, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.PeggedCurrency), args.Error(1)
}

// MockChangeNotifier mocks the change notifier
type MockChangeNotifier struct {
	mock.Mock
}

func (m *MockChangeNotifier) NotifyRatesChanged(ctx context.Context, source string, rates []entity.Rate) error {
	args := m.Called(ctx, source, rates)
	return args.Error(0)
}

// MockLogger mocks the logger interface
type MockLogger struct {
	mock.Mock
}

func (m *MockLogger) Debug(msg string, fields map[string]interface{}) {
	m.Called(msg, fields)
}

func (m *MockLogger) Info(msg string, fields map[string]interface{}) {
	m.Called(msg, fields)
}

func (m *MockLogger) Warn(msg string, fields map[string]interface{}) {
	m.Called(msg, fields)
}

func (m *MockLogger) Error(msg string, fields map[string]interface{}) {
	m.Called(msg, fields)
}

func (m *MockLogger) Fatal(msg string, fields map[string]interface{}) {
	m.Called(msg, fields)
}

func (m *MockLogger) WithField(key string, value interface{}) logger.Logger {
	m.Called(key, value)
	return m
}

func (m *MockLogger) WithFields(fields map[string]interface{}) logger.Logger {
	m.Called(fields)
	return m
}
