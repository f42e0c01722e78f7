package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/BearBump/ColisBox/config"
	"github.com/BearBump/ColisBox/internal/integrations/seventeentrack"
	"github.com/BearBump/ColisBox/internal/models"
	"github.com/BearBump/ColisBox/internal/services/engine"
	"github.com/BearBump/ColisBox/internal/storage"
	"github.com/BearBump/ColisBox/internal/storage/filestore"
	"github.com/BearBump/ColisBox/internal/storage/redisstore"
)

type fakeStore struct{}

func (s *fakeStore) Load(ctx context.Context) ([]models.PackageRecord, error) { return nil, nil }
func (s *fakeStore) Save(ctx context.Context, records []models.PackageRecord) error {
	return nil
}

type fakeProvider struct{}

func (p *fakeProvider) Register(ctx context.Context, number, carrier string) (bool, error) {
	return true, nil
}
func (p *fakeProvider) GetTrackInfo(ctx context.Context, numbers []string) (map[string]seventeentrack.TrackInfo, error) {
	return map[string]seventeentrack.TrackInfo{}, nil
}
func (p *fakeProvider) StopTracking(ctx context.Context, number string) (bool, error) {
	return true, nil
}
func (p *fakeProvider) GetQuota(ctx context.Context) (seventeentrack.Quota, error) {
	return seventeentrack.Quota{}, nil
}
func (p *fakeProvider) ValidateCredential(ctx context.Context) error { return nil }

func TestDefaultEngineFactories_SelectStore(t *testing.T) {
	f := defaultEngineFactories()

	cfgFile := &config.Config{Storage: config.StorageConfig{Backend: "file", FilePath: "x.json"}}
	st, closeFn, err := f.newStore(cfgFile)
	require.NoError(t, err)
	require.Nil(t, closeFn)
	_, ok := st.(*filestore.FileStore)
	require.True(t, ok)

	cfgRedis := &config.Config{Storage: config.StorageConfig{
		Backend: "redis",
		Redis:   config.RedisConfig{Host: "localhost", Port: 6379},
	}}
	st, _, err = f.newStore(cfgRedis)
	require.NoError(t, err)
	_, ok = st.(*redisstore.RedisStore)
	require.True(t, ok)

	cfgBad := &config.Config{Storage: config.StorageConfig{Backend: "etcd"}}
	_, _, err = f.newStore(cfgBad)
	require.Error(t, err)
}

func TestDefaultEngineFactories_OptionalCollaborators(t *testing.T) {
	f := defaultEngineFactories()

	// Без сервера почта не настраивается, без хоста не настраивается брокер.
	mail, err := f.newMailbox(&config.Config{})
	require.NoError(t, err)
	require.Nil(t, mail)
	require.Nil(t, f.newProducer(&config.Config{}))

	mail, err = f.newMailbox(&config.Config{Mailbox: config.MailboxConfig{Server: "imap.example.org"}})
	require.NoError(t, err)
	require.NotNil(t, mail)
	require.NotNil(t, f.newProducer(&config.Config{Kafka: config.KafkaConfig{Host: "localhost", Port: 9092}}))
}

func TestRunColisEngine_ContextCanceled(t *testing.T) {
	calledClose := false

	f := engineFactories{
		newStore: func(cfg *config.Config) (storage.Store, func(), error) {
			return &fakeStore{}, func() { calledClose = true }, nil
		},
		newProvider: func(cfg *config.Config) providerClient {
			return &fakeProvider{}
		},
		newMailbox: func(cfg *config.Config) (engine.MailFetcher, error) {
			return nil, nil
		},
		newProducer: func(cfg *config.Config) engine.Producer {
			return nil
		},
	}

	cfg := &config.Config{
		Engine: config.EngineConfig{UpdateIntervalMinutes: 30},
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := RunColisEngine(ctx, cfg, "", f)
	require.ErrorIs(t, err, context.Canceled)
	require.True(t, calledClose)
}
