package handlers

import (
	"context"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/RMahshie/sweepwatch/pkg/models"
)

// MockSpectrumReader implements SpectrumReader for testing
type MockSpectrumReader struct {
	mock.Mock
}

func (m *MockSpectrumReader) Snapshot() (models.Snapshot, bool) {
	args := m.Called()
	return args.Get(0).(models.Snapshot), args.Bool(1)
}

func (m *MockSpectrumReader) Bounds() (int64, int64, bool) {
	args := m.Called()
	return args.Get(0).(int64), args.Get(1).(int64), args.Bool(2)
}

func (m *MockSpectrumReader) Len() int {
	return m.Called().Int(0)
}

// MockRateReader implements RateReader for testing
type MockRateReader struct {
	mock.Mock
}

func (m *MockRateReader) Rate(window time.Duration) float64 {
	args := m.Called(window)
	return args.Get(0).(float64)
}

// MockFrameCounter implements FrameCounter for testing
type MockFrameCounter struct {
	mock.Mock
}

func (m *MockFrameCounter) Totals() (uint64, uint64) {
	args := m.Called()
	return args.Get(0).(uint64), args.Get(1).(uint64)
}

func testSnapshot() models.Snapshot {
	var snap models.Snapshot
	snap.Append(100, models.BinRecord{Last: -50, Min: -60, Max: -20, Timestamp: 1})
	snap.Append(200, models.BinRecord{Last: -10, Min: -70, Max: -10, Timestamp: 2})
	snap.Append(300, models.BinRecord{Last: -30, Min: -30, Max: -5, Timestamp: 3})
	return snap
}

func TestGetSpectrum(t *testing.T) {
	tests := []struct {
		name      string
		req       models.GetSpectrumRequest
		mockSetup func(*MockSpectrumReader)
		wantData  bool
		wantFreqs []int64
		wantCode  int
	}{
		{
			name: "no data yet",
			mockSetup: func(m *MockSpectrumReader) {
				m.On("Snapshot").Return(models.Snapshot{}, false)
			},
		},
		{
			name: "full aggregate",
			mockSetup: func(m *MockSpectrumReader) {
				m.On("Snapshot").Return(testSnapshot(), true)
			},
			wantData:  true,
			wantFreqs: []int64{100, 200, 300},
		},
		{
			name: "window",
			req:  models.GetSpectrumRequest{LowHz: 150, HighHz: 300},
			mockSetup: func(m *MockSpectrumReader) {
				m.On("Snapshot").Return(testSnapshot(), true)
			},
			wantData:  true,
			wantFreqs: []int64{200, 300},
		},
		{
			name:      "inverted window",
			req:       models.GetSpectrumRequest{LowHz: 500, HighHz: 100},
			mockSetup: func(*MockSpectrumReader) {},
			wantCode:  400,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reader := &MockSpectrumReader{}
			tt.mockSetup(reader)
			handler := NewSpectrumHandler(reader, &MockRateReader{}, &MockFrameCounter{}, "tcp://sdr:5555", 0)

			resp, err := handler.GetSpectrum(context.Background(), &tt.req)

			if tt.wantCode != 0 {
				var statusErr huma.StatusError
				require.ErrorAs(t, err, &statusErr)
				assert.Equal(t, tt.wantCode, statusErr.GetStatus())
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantData, resp.Body.HasData)
				assert.Equal(t, tt.wantFreqs, resp.Body.Frequencies)
				assert.Equal(t, len(tt.wantFreqs), resp.Body.BinCount)
				assert.Len(t, resp.Body.Last, len(tt.wantFreqs))
			}

			reader.AssertExpectations(t)
		})
	}
}

func TestGetPeaks(t *testing.T) {
	reader := &MockSpectrumReader{}
	reader.On("Snapshot").Return(testSnapshot(), true)
	handler := NewSpectrumHandler(reader, &MockRateReader{}, &MockFrameCounter{}, "", 0)

	resp, err := handler.GetPeaks(context.Background(), &models.GetPeaksRequest{Metric: "max", Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, "max", resp.Body.Metric)
	assert.Equal(t, []models.Peak{{FrequencyHz: 300, Power: -5}, {FrequencyHz: 200, Power: -10}}, resp.Body.Peaks)

	// zero values fall back to last and the default limit
	resp, err = handler.GetPeaks(context.Background(), &models.GetPeaksRequest{})
	require.NoError(t, err)
	assert.Equal(t, "last", resp.Body.Metric)
	assert.Len(t, resp.Body.Peaks, 3)
	assert.Equal(t, int64(200), resp.Body.Peaks[0].FrequencyHz)

	_, err = handler.GetPeaks(context.Background(), &models.GetPeaksRequest{Metric: "median"})
	assert.Error(t, err)
}

func TestGetPeaks_NoData(t *testing.T) {
	reader := &MockSpectrumReader{}
	reader.On("Snapshot").Return(models.Snapshot{}, false)
	handler := NewSpectrumHandler(reader, &MockRateReader{}, &MockFrameCounter{}, "", 0)

	resp, err := handler.GetPeaks(context.Background(), &models.GetPeaksRequest{Metric: "last", Limit: 15})
	require.NoError(t, err)
	assert.NotNil(t, resp.Body.Peaks)
	assert.Empty(t, resp.Body.Peaks)
}

func TestGetRate(t *testing.T) {
	rate := &MockRateReader{}
	rate.On("Rate", 5*time.Second).Return(1.0)
	rate.On("Rate", 500*time.Millisecond).Return(4.0)
	handler := NewSpectrumHandler(&MockSpectrumReader{}, rate, &MockFrameCounter{}, "", 0)

	resp, err := handler.GetRate(context.Background(), &models.GetRateRequest{})
	require.NoError(t, err)
	assert.Equal(t, 5.0, resp.Body.WindowSeconds)
	assert.Equal(t, 1.0, resp.Body.MessagesPerSecond)

	resp, err = handler.GetRate(context.Background(), &models.GetRateRequest{Window: 0.5})
	require.NoError(t, err)
	assert.Equal(t, 0.5, resp.Body.WindowSeconds)
	assert.Equal(t, 4.0, resp.Body.MessagesPerSecond)

	rate.AssertExpectations(t)
}

func TestRateWindow_FollowsConfiguration(t *testing.T) {
	reader := &MockSpectrumReader{}
	reader.On("Len").Return(0)
	reader.On("Bounds").Return(int64(0), int64(0), false)
	rate := &MockRateReader{}
	rate.On("Rate", 30*time.Second).Return(0.5)
	counters := &MockFrameCounter{}
	counters.On("Totals").Return(uint64(0), uint64(0))
	handler := NewSpectrumHandler(reader, rate, counters, "", 30*time.Second)

	resp, err := handler.GetRate(context.Background(), &models.GetRateRequest{})
	require.NoError(t, err)
	assert.Equal(t, 30.0, resp.Body.WindowSeconds)
	assert.Equal(t, 0.5, resp.Body.MessagesPerSecond)

	status, err := handler.GetStatus(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 30.0, status.Body.WindowSeconds)
	assert.Equal(t, 0.5, status.Body.MessagesPerSecond)
	assert.Nil(t, status.Body.LowestHz)

	rate.AssertExpectations(t)
}

func TestGetStatus(t *testing.T) {
	reader := &MockSpectrumReader{}
	reader.On("Len").Return(3)
	reader.On("Bounds").Return(int64(100), int64(300), true)
	rate := &MockRateReader{}
	rate.On("Rate", 5*time.Second).Return(2.5)
	counters := &MockFrameCounter{}
	counters.On("Totals").Return(uint64(12), uint64(2))

	handler := NewSpectrumHandler(reader, rate, counters, "tcp://sdr:5555", 0)
	resp, err := handler.GetStatus(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, "tcp://sdr:5555", resp.Body.Source)
	assert.Equal(t, 3, resp.Body.BinCount)
	require.NotNil(t, resp.Body.LowestHz)
	assert.Equal(t, int64(100), *resp.Body.LowestHz)
	assert.Equal(t, int64(300), *resp.Body.HighestHz)
	assert.Equal(t, 2.5, resp.Body.MessagesPerSecond)
	assert.Equal(t, uint64(12), resp.Body.FramesReceived)
	assert.Equal(t, uint64(2), resp.Body.DecodeErrors)
}

func TestGetStatus_Empty(t *testing.T) {
	reader := &MockSpectrumReader{}
	reader.On("Len").Return(0)
	reader.On("Bounds").Return(int64(0), int64(0), false)
	rate := &MockRateReader{}
	rate.On("Rate", mock.Anything).Return(0.0)
	counters := &MockFrameCounter{}
	counters.On("Totals").Return(uint64(0), uint64(0))

	resp, err := NewSpectrumHandler(reader, rate, counters, "", 0).GetStatus(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, resp.Body.LowestHz)
	assert.Nil(t, resp.Body.HighestHz)
}
