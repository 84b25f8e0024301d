//go:build integration

package vehicle_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"platecheck/internal/domain"
	"platecheck/internal/vehicle"
	"platecheck/pkg/testutil/containers"
)

type RedisStoreSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *vehicle.RedisStore
}

func TestRedisStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) SetupSuite() {
	s.redis = containers.NewRedisContainer(s.T())
	s.store = vehicle.NewRedisStore(s.redis.Client)
}

func (s *RedisStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisStoreSuite) TestSaveAndLoad() {
	ctx := context.Background()

	record := domain.NewVehicleRecord("AB12")
	record.DisplayName = "Van 7"
	record.VinAuditStatus = domain.StatusFail
	record.ExtraInfo = map[string]string{"Depot": "North"}
	record.LastMergedAt = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	s.Require().NoError(s.store.SaveVehicles(ctx, []domain.VehicleRecord{record}))

	loaded, err := s.store.LoadVehicles(ctx)
	s.Require().NoError(err)
	s.Require().Len(loaded, 1)
	s.Equal("AB12", loaded[0].Plate)
	s.Equal("Van 7", loaded[0].DisplayName)
	s.Equal(domain.StatusFail, loaded[0].VinAuditStatus)
	s.Equal(map[string]string{"Depot": "North"}, loaded[0].ExtraInfo)
	s.True(loaded[0].LastMergedAt.Equal(record.LastMergedAt))
}

func (s *RedisStoreSuite) TestSaveReplacesWholeSet() {
	ctx := context.Background()
	s.Require().NoError(s.store.SaveVehicles(ctx, []domain.VehicleRecord{
		domain.NewVehicleRecord("OLD1"),
		domain.NewVehicleRecord("OLD2"),
	}))

	s.Require().NoError(s.store.SaveVehicles(ctx, []domain.VehicleRecord{
		domain.NewVehicleRecord("NEW1"),
	}))

	loaded, err := s.store.LoadVehicles(ctx)
	s.Require().NoError(err)
	s.Require().Len(loaded, 1)
	s.Equal("NEW1", loaded[0].Plate)
}

func (s *RedisStoreSuite) TestSaveEmptyClears() {
	ctx := context.Background()
	s.Require().NoError(s.store.SaveVehicles(ctx, []domain.VehicleRecord{
		domain.NewVehicleRecord("AB12"),
	}))
	s.Require().NoError(s.store.SaveVehicles(ctx, nil))

	loaded, err := s.store.LoadVehicles(ctx)
	s.Require().NoError(err)
	s.Empty(loaded)
}
