package config

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"PORT", "STORE_BACKEND", "DATABASE_URL", "DB_PORT", "CATALOG_CACHE_TTL", "RATE_LIMIT_RPS", "SEED_CATALOG", "CORS_ALLOWED_ORIGINS", "AWS_REGION", "AWS_DEFAULT_REGION"} {
		t.Setenv(k, "")
	}
	cfg := Load()
	assert.Equal(t, "8084", cfg.Port)
	assert.Equal(t, BackendPostgres, cfg.StoreBackend)
	assert.Equal(t, 5432, cfg.DB.Port)
	assert.Equal(t, 5*time.Minute, cfg.CatalogCacheTTL)
	assert.Equal(t, 5.0, cfg.RateLimitRPS)
	assert.False(t, cfg.SeedCatalog)
	assert.Equal(t, "eu-central-1", cfg.AWSRegion)
	assert.Equal(t, []string{"http://localhost:3000", "http://localhost:5173"}, cfg.CORSAllowedOrigins)
}

func TestLoadOverridesAndBadValues(t *testing.T) {
	t.Setenv("STORE_BACKEND", "SQLite")
	t.Setenv("DB_PORT", "not-a-port")
	t.Setenv("CATALOG_CACHE_TTL", "90s")
	t.Setenv("SEED_CATALOG", "true")
	t.Setenv("RATE_LIMIT_BURST", "x")
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://enjaz.sa , ,https://admin.enjaz.sa")

	cfg := Load()
	assert.Equal(t, BackendSQLite, cfg.StoreBackend)
	assert.Equal(t, 5432, cfg.DB.Port)
	assert.Equal(t, 90*time.Second, cfg.CatalogCacheTTL)
	assert.True(t, cfg.SeedCatalog)
	assert.Equal(t, 10, cfg.RateLimitBurst)
	assert.Equal(t, []string{"https://enjaz.sa", "https://admin.enjaz.sa"}, cfg.CORSAllowedOrigins)
}

func TestValidate(t *testing.T) {
	cfg := Config{StoreBackend: BackendMemory, JWTSecret: "s"}
	assert.NoError(t, cfg.Validate())

	cfg.StoreBackend = "mongo"
	assert.Error(t, cfg.Validate())

	cfg = Config{StoreBackend: BackendMemory}
	assert.Error(t, cfg.Validate())
}

func TestPostgresDSN(t *testing.T) {
	cfg := Config{DB: DBConfig{Host: "db", Port: 5433, User: "enjaz", Password: "p@ss word", DBName: "enjaz_db", SSLMode: "require"}}
	assert.Equal(t, "postgres://enjaz:p%40ss%20word@db:5433/enjaz_db?sslmode=require", cfg.PostgresDSN())

	cfg.DB.Password = ""
	assert.Equal(t, "postgres://enjaz@db:5433/enjaz_db?sslmode=require", cfg.PostgresDSN())

	cfg.DatabaseURL = "postgres://x@y/z"
	assert.Equal(t, "postgres://x@y/z", cfg.PostgresDSN())
}

type fakeSecrets struct {
	value *string
	err   error
	calls int
}

func (f *fakeSecrets) GetSecretValue(_ context.Context, in *secretsmanager.GetSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &secretsmanager.GetSecretValueOutput{ARN: in.SecretId, SecretString: f.value}, nil
}

func TestResolveDatabaseURL(t *testing.T) {
	ctx := context.Background()

	sm := &fakeSecrets{value: aws.String(`{"DATABASE_URL":"postgres://u:p@h/db"}`)}
	cfg := Config{DBSecretARN: "arn:aws:secretsmanager:eu-central-1:1:secret:db"}
	require.NoError(t, cfg.ResolveDatabaseURL(ctx, sm))
	assert.Equal(t, "postgres://u:p@h/db", cfg.DatabaseURL)

	// already set: no lookup
	require.NoError(t, cfg.ResolveDatabaseURL(ctx, sm))
	assert.Equal(t, 1, sm.calls)

	cfg = Config{DBSecretARN: "arn"}
	assert.Error(t, cfg.ResolveDatabaseURL(ctx, &fakeSecrets{value: aws.String(`{}`)}))
	assert.Error(t, cfg.ResolveDatabaseURL(ctx, &fakeSecrets{value: aws.String(`not json`)}))
	assert.Error(t, cfg.ResolveDatabaseURL(ctx, &fakeSecrets{}))
	assert.Error(t, cfg.ResolveDatabaseURL(ctx, &fakeSecrets{err: errors.New("denied")}))

	none := Config{}
	assert.NoError(t, none.ResolveDatabaseURL(ctx, nil))
}
