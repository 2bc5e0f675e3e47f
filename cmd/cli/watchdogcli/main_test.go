package main

import (
	"context"
	"testing"

	"github.com/core-tools/hsu-watchdog/pkg/domain"
	"github.com/core-tools/hsu-watchdog/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockContract struct {
	mock.Mock
}

func (m *mockContract) Status(ctx context.Context) ([]domain.TargetStatus, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.TargetStatus), args.Error(1)
}

func (m *mockContract) TargetStatus(ctx context.Context, id string) (domain.TargetStatus, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(domain.TargetStatus), args.Error(1)
}

func (m *mockContract) ProposeConfig(ctx context.Context, id string, record domain.ConfigRecord) (uint64, error) {
	args := m.Called(ctx, id, record)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *mockContract) StartTarget(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockContract) StopTarget(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func TestParseSetRecord(t *testing.T) {
	id, record, err := parseSetRecord("pool/mywebapipool=ManagedPool, Warning, 30")
	require.NoError(t, err)
	assert.Equal(t, "pool/mywebapipool", id)
	assert.Equal(t, "ManagedPool", record.TargetKind)
	assert.Equal(t, "Warning", record.LogLevel)
	require.NotNil(t, record.PollIntervalSeconds)
	assert.Equal(t, 30, *record.PollIntervalSeconds)

	_, record, err = parseSetRecord("control/watchdog=Control,Error")
	require.NoError(t, err)
	assert.Nil(t, record.PollIntervalSeconds)

	for _, value := range []string{"", "pool/a", "=pool,Debug", "pool/a=pool", "pool/a=pool,Debug,1,2", "pool/a=pool,Debug,soon"} {
		_, _, err := parseSetRecord(value)
		assert.Error(t, err, value)
	}
}

func TestRun_StopsAtFirstRejection(t *testing.T) {
	contract := &mockContract{}
	contract.On("ProposeConfig", mock.Anything, "service/MockService", mock.Anything).Return(uint64(2), nil).Once()
	contract.On("ProposeConfig", mock.Anything, "pool/mywebapipool", mock.Anything).
		Return(uint64(0), errors.NewInvalidConfigError("poll interval must be positive", nil)).Once()

	err := run(contract, flagOptions{
		Set: []string{
			"service/MockService=ManagedService,Debug,5",
			"pool/mywebapipool=ManagedPool,Debug,0",
			"control/watchdog=Control,Error",
		},
	})
	require.Error(t, err)
	assert.True(t, errors.IsInvalidConfigError(err))
	contract.AssertExpectations(t)
	contract.AssertNotCalled(t, "ProposeConfig", mock.Anything, "control/watchdog", mock.Anything)
}

func TestRun_Status(t *testing.T) {
	contract := &mockContract{}
	contract.On("Status", mock.Anything).Return([]domain.TargetStatus{{Target: "control/watchdog"}}, nil).Once()

	require.NoError(t, run(contract, flagOptions{}))
	contract.AssertExpectations(t)

	contract = &mockContract{}
	contract.On("StopTarget", mock.Anything, "service/MockService").Return(nil).Once()
	require.NoError(t, run(contract, flagOptions{Stop: "service/MockService"}))
	contract.AssertNotCalled(t, "Status", mock.Anything)
}
